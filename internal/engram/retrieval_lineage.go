package engram

import (
	"context"
	"sort"
	"time"
)

// GetLineage performs a variable-length CAUSED_BY traversal
// from node_id, bounded by max_depth, deduplicated by id, scored, and
// access-bumped.
func (r *Retriever) GetLineage(ctx context.Context, nodeID string, maxDepth, maxNodes int, queryEmbedding []float32) (AtlasEnvelope, error) {
	start := time.Now()
	maxDepth = clampInt(maxDepth, 1, 10)
	maxNodes = clampInt(maxNodes, 1, 500)

	paths, err := r.Graph.TraceCausedBy(ctx, nodeID, maxDepth)
	if err != nil {
		return AtlasEnvelope{}, err
	}

	seen := make(map[string]LineagePath)
	order := make([]string, 0, len(paths))
	for _, p := range paths {
		id := p.Node.EventID.String()
		if existing, ok := seen[id]; !ok || p.Depth < existing.Depth {
			if !ok {
				order = append(order, id)
			}
			seen[id] = p
		}
	}

	totalCandidates := len(order)

	sort.Slice(order, func(i, j int) bool { return seen[order[i]].Depth < seen[order[j]].Depth })
	if len(order) > maxNodes {
		order = order[:maxNodes]
	}

	now := r.now()
	nodes := make(map[string]ScoredNode, len(order))
	var edges []Edge
	ids := make([]string, 0, len(order))
	for _, id := range order {
		lp := seen[id]
		ageHours := now.Sub(lp.Node.OccurredAt).Hours()
		scores := r.Scorer.Composite(ScoreInputs{
			AgeHours:       ageHours,
			ImportanceHint: lp.Node.ImportanceHint,
			QueryEmbedding: queryEmbedding,
		})
		nodes[id] = ScoredNode{Node: lp.Node, Scores: scores, Depth: lp.Depth}
		ids = append(ids, id)
		if lp.Edge.Type != "" {
			edges = append(edges, lp.Edge)
		}
	}

	if err := r.Graph.BumpAccess(ctx, ids); err != nil {
		return AtlasEnvelope{}, err
	}

	return AtlasEnvelope{
		Nodes: nodes,
		Edges: edges,
		Meta: Meta{
			QueryLatencyMs: time.Since(start).Milliseconds(),
			NodesReturned:  len(nodes),
			Truncated:      totalCandidates >= maxNodes,
			Capacity:       Capacity{MaxDepth: maxDepth, MaxNodes: maxNodes},
		},
	}, nil
}
