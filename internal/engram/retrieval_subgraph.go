package engram

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// SubgraphQuery is the request shape for GetSubgraph.
type SubgraphQuery struct {
	QueryText string
	SessionID string
	AgentID   string
	MaxNodes  int
	MaxDepth  int
	TimeoutMs int
	Intent    string
	SeedNodes []string

	QueryEmbedding []float32
}

// GetSubgraph runs intent classification, edge-weight
// derivation, seed selection, concurrent per-seed neighbor expansion with
// weight-proportional boosting, truncation, and access-bump. Per-seed
// expansion runs concurrently via errgroup, the usual fan-out pattern for
// independent per-item sub-fetches.
func (r *Retriever) GetSubgraph(ctx context.Context, q SubgraphQuery) (AtlasEnvelope, error) {
	start := time.Now()

	maxNodes := clampInt(q.MaxNodes, 1, 500)
	timeoutMs := clampInt(q.TimeoutMs, 100, 30000)
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()

	// Step 1: intent classification.
	var mix IntentMix
	intentOverride := ""
	if q.Intent != "" {
		mix = IntentMix{q.Intent: 1.0}
		intentOverride = q.Intent
	} else {
		mix = r.Intent.Classify(q.QueryText)
	}

	// Step 2: edge weights.
	weights := EdgeWeights(mix)

	// Step 3: seeds.
	var seedIDs []string
	if len(q.SeedNodes) > 0 {
		seedIDs = q.SeedNodes
	} else {
		limit := clampInt(10, 1, maxNodes)
		events, err := r.Ledger.GetBySession(ctx, q.SessionID, 10000, 0)
		if err != nil {
			return AtlasEnvelope{}, err
		}
		sort.Slice(events, func(i, j int) bool { return events[i].OccurredAt.After(events[j].OccurredAt) })
		if len(events) > limit {
			events = events[:limit]
		}
		for _, e := range events {
			seedIDs = append(seedIDs, e.EventID.String())
		}
	}

	now := r.now()

	type candidate struct {
		node            EventNode
		scores          NodeScores
		reason          string
		proactiveSignal string
	}

	var mu sync.Mutex
	candidates := make(map[string]candidate)
	var edgeList []Edge
	edgeSeen := make(map[string]bool)

	// Seeds themselves are candidates with no boost applied.
	for _, seedID := range seedIDs {
		node, ok, err := r.Graph.GetEventNode(ctx, seedID)
		if err != nil {
			return AtlasEnvelope{}, err
		}
		if !ok {
			continue
		}
		ageHours := now.Sub(node.OccurredAt).Hours()
		scores := r.Scorer.Composite(ScoreInputs{
			AgeHours:       ageHours,
			ImportanceHint: node.ImportanceHint,
			QueryEmbedding: q.QueryEmbedding,
		})
		candidates[seedID] = candidate{node: node, scores: scores}
	}

	// Step 4: concurrent per-seed expansion.
	eg, egCtx := errgroup.WithContext(ctx)
	for _, seedID := range seedIDs {
		seedID := seedID
		eg.Go(func() error {
			neighbors, err := r.Graph.Neighbors(egCtx, seedID)
			if err != nil {
				return fmt.Errorf("subgraph: neighbors of %q: %w", seedID, err)
			}
			for _, nb := range neighbors {
				ageHours := now.Sub(nb.Event.OccurredAt).Hours()
				scores := r.Scorer.Composite(ScoreInputs{
					AgeHours:       ageHours,
					ImportanceHint: nb.Event.ImportanceHint,
					QueryEmbedding: q.QueryEmbedding,
				})
				weight := weights[nb.Edge.Type]
				boosted := scores.DecayScore * (1 + weight*0.1)
				if boosted > 1.0 {
					boosted = 1.0
				}
				scores.DecayScore = boosted

				id := nb.Event.EventID.String()

				mu.Lock()
				if _, exists := candidates[id]; !exists {
					candidates[id] = candidate{
						node:            nb.Event,
						scores:          scores,
						reason:          "proactive",
						proactiveSignal: ProactiveSignal(nb.Edge.Type),
					}
				}
				edgeKey := string(nb.Edge.Type) + "|" + seedID + "|" + id
				if !edgeSeen[edgeKey] {
					edgeSeen[edgeKey] = true
					edgeList = append(edgeList, Edge{Type: nb.Edge.Type, SourceID: seedID, TargetID: id, Props: nb.Edge.Props})
				}
				mu.Unlock()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return AtlasEnvelope{}, err
	}

	// Step 5: truncation — sort all accumulated nodes by boosted decay_score.
	type kv struct {
		id string
		c  candidate
	}
	all := make([]kv, 0, len(candidates))
	for id, c := range candidates {
		all = append(all, kv{id, c})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].c.scores.DecayScore > all[j].c.scores.DecayScore })

	totalCandidates := len(all)
	if len(all) > maxNodes {
		all = all[:maxNodes]
	}

	nodes := make(map[string]ScoredNode, len(all))
	ids := make([]string, 0, len(all))
	proactiveCount := 0
	for _, e := range all {
		nodes[e.id] = ScoredNode{
			Node:            e.c.node,
			Scores:          e.c.scores,
			RetrievalReason: e.c.reason,
			ProactiveSignal: e.c.proactiveSignal,
		}
		ids = append(ids, e.id)
		if e.c.reason == "proactive" {
			proactiveCount++
		}
	}

	// Step 6: bump access counters on event nodes only.
	if err := r.Graph.BumpAccess(ctx, ids); err != nil {
		return AtlasEnvelope{}, err
	}

	return AtlasEnvelope{
		Nodes: nodes,
		Edges: edgeList,
		Meta: Meta{
			QueryLatencyMs:  time.Since(start).Milliseconds(),
			NodesReturned:   len(nodes),
			Truncated:       totalCandidates > maxNodes,
			InferredIntents: mix,
			IntentOverride:  intentOverride,
			SeedNodes:       seedIDs,
			ProactiveCount:  proactiveCount,
			Capacity:        Capacity{MaxDepth: clampInt(q.MaxDepth, 1, 10), MaxNodes: maxNodes},
		},
	}, nil
}
