// Package testutil provides in-memory fakes for engram.Ledger and
// engram.GraphStore, standing in for real Redis/Neo4j in unit tests — a
// no-DB-in-tests approach, with no sqlmock/testcontainers dependency.
package testutil

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/arunmenon/Engram/internal/engram"
)

// FakeLedger is an in-memory engram.Ledger.
type FakeLedger struct {
	mu       sync.Mutex
	byID     map[string]engram.Event
	sessions map[string][]string // session -> ordered event ids
	dedup    map[string]int64    // event id -> occurred_at epoch ms
	seq      int64
}

// NewFakeLedger constructs an empty FakeLedger.
func NewFakeLedger() *FakeLedger {
	return &FakeLedger{
		byID:     make(map[string]engram.Event),
		sessions: make(map[string][]string),
		dedup:    make(map[string]int64),
	}
}

func (f *FakeLedger) Append(ctx context.Context, e engram.Event) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := e.EventID.String()
	if existing, exists := f.byID[id]; exists {
		return existing.GlobalPosition, nil
	}
	f.seq++
	e.GlobalPosition = strconv.FormatInt(f.seq, 10)
	f.byID[id] = e
	f.sessions[e.SessionID] = append(f.sessions[e.SessionID], id)
	// Keyed off OccurredAt rather than wall-clock ingestion time so tests can
	// backdate an event to exercise age-cutoff trimming/expiry directly.
	f.dedup[id] = e.OccurredAt.UnixMilli()
	return strconv.FormatInt(f.seq, 10), nil
}

func (f *FakeLedger) AppendBatch(ctx context.Context, events []engram.Event) ([]string, error) {
	out := make([]string, len(events))
	for i, e := range events {
		pos, err := f.Append(ctx, e)
		if err != nil {
			return nil, err
		}
		out[i] = pos
	}
	return out, nil
}

func (f *FakeLedger) GetByID(ctx context.Context, eventID string) (engram.Event, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[eventID]
	return e, ok, nil
}

func (f *FakeLedger) GetBySession(ctx context.Context, sessionID string, limit int, cursor int) ([]engram.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := f.sessions[sessionID]
	events := make([]engram.Event, 0, len(ids))
	for _, id := range ids {
		events = append(events, f.byID[id])
	}
	sort.Slice(events, func(i, j int) bool { return events[i].OccurredAt.Before(events[j].OccurredAt) })
	if cursor < len(events) {
		events = events[cursor:]
	} else {
		events = nil
	}
	if limit > 0 && limit < len(events) {
		events = events[:limit]
	}
	return events, nil
}

func (f *FakeLedger) Search(ctx context.Context, q engram.SearchQuery) ([]engram.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []engram.Event
	for _, e := range f.byID {
		if q.SessionID != "" && e.SessionID != q.SessionID {
			continue
		}
		if q.AgentID != "" && e.AgentID != q.AgentID {
			continue
		}
		if q.EventType != "" && e.EventType != q.EventType {
			continue
		}
		if q.TraceID != "" && e.TraceID != q.TraceID {
			continue
		}
		if q.ToolName != "" && e.ToolName != q.ToolName {
			continue
		}
		if q.After != nil && e.OccurredAt.Before(*q.After) {
			continue
		}
		if q.Before != nil && e.OccurredAt.After(*q.Before) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func (f *FakeLedger) CleanupDedup(ctx context.Context, retention time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := time.Now().Add(-retention).UnixMilli()
	var removed int64
	for id, ts := range f.dedup {
		if ts < cutoff {
			delete(f.dedup, id)
			removed++
		}
	}
	return removed, nil
}

// TrimGlobalStream counts entries older than hotWindow, standing in for a
// real stream's min-id trim (the fake has no separate append-order log to
// truncate).
func (f *FakeLedger) TrimGlobalStream(ctx context.Context, hotWindow time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := time.Now().Add(-hotWindow).UnixMilli()
	var trimmed int64
	for _, ts := range f.dedup {
		if ts < cutoff {
			trimmed++
		}
	}
	return trimmed, nil
}

// ExpireDocs removes event documents ingested before the retention ceiling.
func (f *FakeLedger) ExpireDocs(ctx context.Context, retentionCeiling time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := time.Now().Add(-retentionCeiling).UnixMilli()
	var removed int64
	for id, ts := range f.dedup {
		if ts >= cutoff {
			continue
		}
		if _, ok := f.byID[id]; ok {
			delete(f.byID, id)
			removed++
		}
	}
	return removed, nil
}

func (f *FakeLedger) Ping(ctx context.Context) error { return nil }

// FakeGraph is an in-memory engram.GraphStore.
type FakeGraph struct {
	mu         sync.Mutex
	Events     map[string]engram.EventNode
	Entities   map[string]engram.EntityNode
	Summaries  map[string]engram.SummaryNode
	Attributes map[string]engram.AttributeNode
	Edges      []engram.Edge
}

// NewFakeGraph constructs an empty FakeGraph.
func NewFakeGraph() *FakeGraph {
	return &FakeGraph{
		Events:     make(map[string]engram.EventNode),
		Entities:   make(map[string]engram.EntityNode),
		Summaries:  make(map[string]engram.SummaryNode),
		Attributes: make(map[string]engram.AttributeNode),
	}
}

func (g *FakeGraph) MergeEventNode(ctx context.Context, n engram.EventNode) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Events[n.EventID.String()] = n
	return nil
}

func (g *FakeGraph) MergeEntityNode(ctx context.Context, n engram.EntityNode) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Entities[n.EntityID] = n
	return nil
}

func (g *FakeGraph) MergeSummaryNode(ctx context.Context, n engram.SummaryNode) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Summaries[n.SummaryID] = n
	return nil
}

func (g *FakeGraph) MergeAttributeNode(ctx context.Context, n engram.AttributeNode) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Attributes[n.Label+":"+n.ID] = n
	return nil
}

func (g *FakeGraph) LinkEntityToAttribute(ctx context.Context, entityID string, edgeType engram.EdgeType, attributeID string, props map[string]any) error {
	return g.CreateEdge(ctx, engram.Edge{Type: edgeType, SourceID: entityID, TargetID: attributeID, Props: props})
}

func (g *FakeGraph) CreateEdge(ctx context.Context, e engram.Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Edges = append(g.Edges, e)
	return nil
}

func (g *FakeGraph) CreateEdgesBatch(ctx context.Context, edges []engram.Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Edges = append(g.Edges, edges...)
	return nil
}

func (g *FakeGraph) EnsureConstraints(ctx context.Context) error { return nil }

func (g *FakeGraph) GetEventNode(ctx context.Context, eventID string) (engram.EventNode, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.Events[eventID]
	return n, ok, nil
}

func (g *FakeGraph) GetEntityNode(ctx context.Context, entityID string) (engram.EntityNode, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.Entities[entityID]
	return n, ok, nil
}

func (g *FakeGraph) GetConnectedEvents(ctx context.Context, entityID string) ([]engram.EventNode, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []engram.EventNode
	for _, e := range g.Edges {
		if e.Type != engram.EdgeReferences || e.TargetID != entityID {
			continue
		}
		if n, ok := g.Events[e.SourceID]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func (g *FakeGraph) Neighbors(ctx context.Context, nodeID string) ([]engram.NeighborEdge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []engram.NeighborEdge
	for _, e := range g.Edges {
		if e.SourceID != nodeID {
			continue
		}
		if n, ok := g.Events[e.TargetID]; ok {
			out = append(out, engram.NeighborEdge{Edge: e, Event: n})
		}
	}
	return out, nil
}

func (g *FakeGraph) TraceCausedBy(ctx context.Context, nodeID string, maxDepth int) ([]engram.LineagePath, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	visited := map[string]int{}
	var out []engram.LineagePath
	frontier := []string{nodeID}
	depth := 0
	for depth < maxDepth && len(frontier) > 0 {
		depth++
		var next []string
		for _, id := range frontier {
			for _, e := range g.Edges {
				if e.Type != engram.EdgeCausedBy || e.SourceID != id {
					continue
				}
				if _, seen := visited[e.TargetID]; seen {
					continue
				}
				visited[e.TargetID] = depth
				if n, ok := g.Events[e.TargetID]; ok {
					out = append(out, engram.LineagePath{Node: n, Depth: depth, Edge: e})
				}
				next = append(next, e.TargetID)
			}
		}
		frontier = next
	}
	return out, nil
}

func (g *FakeGraph) InDegree(ctx context.Context, nodeID string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var n int64
	for _, e := range g.Edges {
		if e.TargetID == nodeID {
			n++
		}
	}
	return n, nil
}

func (g *FakeGraph) BumpAccess(ctx context.Context, eventIDs []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	for _, id := range eventIDs {
		n, ok := g.Events[id]
		if !ok {
			continue
		}
		n.AccessCount++
		n.LastAccessedAt = &now
		g.Events[id] = n
	}
	return nil
}

func (g *FakeGraph) PruneSimilarEdges(ctx context.Context, minSimilarity float64) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var kept []engram.Edge
	var pruned int64
	for _, e := range g.Edges {
		if e.Type == engram.EdgeSimilarTo {
			score, _ := e.Props["similarity_score"].(float64)
			if score < minSimilarity {
				pruned++
				continue
			}
		}
		kept = append(kept, e)
	}
	g.Edges = kept
	return pruned, nil
}

func (g *FakeGraph) DeleteEventNodesIf(ctx context.Context, olderThanHours float64, maxImportance *float64, maxAccessCount *int64) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cutoff := time.Now().Add(-time.Duration(olderThanHours * float64(time.Hour)))
	var deleted int64
	for id, n := range g.Events {
		if n.OccurredAt.After(cutoff) {
			continue
		}
		if maxImportance != nil && n.ImportanceScore >= *maxImportance {
			continue
		}
		if maxAccessCount != nil && n.AccessCount >= *maxAccessCount {
			continue
		}
		delete(g.Events, id)
		deleted++
	}
	return deleted, nil
}

// DeleteAttributeSubgraph removes every AttributeNode reachable from
// entityID and the edges that linked them, leaving the entity itself
// untouched.
func (g *FakeGraph) DeleteAttributeSubgraph(ctx context.Context, entityID string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	targets := make(map[string]bool)
	var kept []engram.Edge
	for _, e := range g.Edges {
		if e.SourceID == entityID {
			if _, isAttribute := g.Attributes[attributeKeyFor(e.TargetID, g.Attributes)]; isAttribute {
				targets[e.TargetID] = true
				continue
			}
		}
		kept = append(kept, e)
	}
	g.Edges = kept

	var deleted int64
	for key, n := range g.Attributes {
		if targets[n.ID] {
			delete(g.Attributes, key)
			deleted++
		}
	}
	return deleted, nil
}

// attributeKeyFor finds the Label:ID key for an attribute node whose ID is
// id, since AttributeNode edges only carry the bare id, not the full key.
func attributeKeyFor(id string, attrs map[string]engram.AttributeNode) string {
	for key, n := range attrs {
		if n.ID == id {
			return key
		}
	}
	return ""
}

func (g *FakeGraph) Ping(ctx context.Context) error { return nil }
