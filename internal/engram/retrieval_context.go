package engram

import (
	"context"
	"sort"
	"time"
)

// Retriever bundles the ledger/graph/scorer collaborators shared by the
// three retrieval algorithms.
type Retriever struct {
	Ledger Ledger
	Graph  GraphStore
	Scorer *Scorer
	Intent *IntentClassifier
	Now    func() time.Time
}

// NewRetriever constructs a Retriever.
func NewRetriever(ledger Ledger, graph GraphStore, scorer *Scorer, intent *IntentClassifier) *Retriever {
	return &Retriever{Ledger: ledger, Graph: graph, Scorer: scorer, Intent: intent, Now: time.Now}
}

func (r *Retriever) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// GetContext fetches all events in the session,
// score each, keep the top max_nodes by composite decay_score, bump access
// counters, and return the Atlas envelope with capacity.max_depth = 1.
func (r *Retriever) GetContext(ctx context.Context, sessionID string, maxNodes int, queryEmbedding []float32) (AtlasEnvelope, error) {
	start := time.Now()
	maxNodes = clampInt(maxNodes, 1, 500)

	events, err := r.Ledger.GetBySession(ctx, sessionID, 10000, 0)
	if err != nil {
		return AtlasEnvelope{}, err
	}
	// Descending by occurred_at, most recent first.
	sort.Slice(events, func(i, j int) bool { return events[i].OccurredAt.After(events[j].OccurredAt) })
	rawCount := len(events)
	if len(events) > maxNodes {
		events = events[:maxNodes]
	}

	now := r.now()
	scored := make([]ScoredNode, 0, len(events))
	for _, e := range events {
		ageHours := now.Sub(e.OccurredAt).Hours()
		scores := r.Scorer.Composite(ScoreInputs{
			AgeHours:       ageHours,
			ImportanceHint: e.ImportanceHint,
			QueryEmbedding: queryEmbedding,
		})
		scored = append(scored, ScoredNode{Node: EventNode{Event: e}, Scores: scores})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Scores.DecayScore > scored[j].Scores.DecayScore })
	if len(scored) > maxNodes {
		scored = scored[:maxNodes]
	}

	ids := make([]string, 0, len(scored))
	nodes := make(map[string]ScoredNode, len(scored))
	for _, sn := range scored {
		id := sn.Node.EventID.String()
		ids = append(ids, id)
		nodes[id] = sn
	}
	if err := r.Graph.BumpAccess(ctx, ids); err != nil {
		return AtlasEnvelope{}, err
	}

	return AtlasEnvelope{
		Nodes: nodes,
		Edges: nil,
		Meta: Meta{
			QueryLatencyMs: time.Since(start).Milliseconds(),
			NodesReturned:  len(nodes),
			Truncated:      rawCount >= maxNodes,
			Capacity:       Capacity{MaxDepth: 1, MaxNodes: maxNodes},
		},
	}, nil
}
