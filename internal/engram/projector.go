package engram

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"
)

// sessionLRU is a bounded map from session_id to its last-seen event,
// evicting the least-recently-touched session once over capacity. This
// replaces an unbounded per-instance map so a
// long-lived projector instance doesn't grow without bound.
type sessionLRU struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[string]*list.Element
}

type lruEntry struct {
	sessionID string
	event     Event
	touchedAt time.Time
}

func newSessionLRU(capacity int) *sessionLRU {
	if capacity <= 0 {
		capacity = 10000
	}
	return &sessionLRU{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

func (c *sessionLRU) get(sessionID string) (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[sessionID]
	if !ok {
		return Event{}, false
	}
	return el.Value.(*lruEntry).event, true
}

func (c *sessionLRU) put(sessionID string, e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[sessionID]; ok {
		el.Value.(*lruEntry).event = e
		el.Value.(*lruEntry).touchedAt = time.Now()
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&lruEntry{sessionID: sessionID, event: e, touchedAt: time.Now()})
	c.items[sessionID] = el
	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*lruEntry).sessionID)
		}
	}
}

// evictIdle removes sessions whose last touch is older than idle.
func (c *sessionLRU) evictIdle(idle time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := time.Now().Add(-idle)
	removed := 0
	for el := c.ll.Back(); el != nil; {
		prev := el.Prev()
		entry := el.Value.(*lruEntry)
		if entry.touchedAt.Before(cutoff) {
			c.ll.Remove(el)
			delete(c.items, entry.sessionID)
			removed++
		}
		el = prev
	}
	return removed
}

// Projector is the stateless Event → graph-primitives transform.
type Projector struct {
	graph    GraphStore
	lastSeen *sessionLRU
}

// NewProjector constructs a Projector. maxSessions bounds the per-session
// "last event" map; idle entries are removed only by EvictIdleSessions.
func NewProjector(graph GraphStore, maxSessions int) *Projector {
	return &Projector{graph: graph, lastSeen: newSessionLRU(maxSessions)}
}

// Project converts a single Event into an EventNode plus FOLLOWS/CAUSED_BY
// edges, writes them to the graph, and updates the per-session last-event
// tracker.
func (p *Projector) Project(ctx context.Context, e Event) error {
	importance := 5.0
	if e.ImportanceHint != nil {
		importance = float64(*e.ImportanceHint)
	}
	node := EventNode{
		Event:           e,
		ImportanceScore: importance,
		AccessCount:     0,
	}

	if err := p.graph.MergeEventNode(ctx, node); err != nil {
		return fmt.Errorf("project: merge event node: %w", err)
	}

	var edges []Edge

	if prev, ok := p.lastSeen.get(e.SessionID); ok && prev.SessionID == e.SessionID {
		delta := e.OccurredAt.Sub(prev.OccurredAt).Milliseconds()
		if delta < 0 {
			delta = 0
		}
		edges = append(edges, Edge{
			Type:     EdgeFollows,
			SourceID: e.EventID.String(),
			TargetID: prev.EventID.String(),
			Props: map[string]any{
				"session_id": e.SessionID,
				"delta_ms":   delta,
			},
		})
	}

	if e.ParentEventID != nil {
		edges = append(edges, Edge{
			Type:     EdgeCausedBy,
			SourceID: e.EventID.String(),
			TargetID: e.ParentEventID.String(),
			Props: map[string]any{
				"mechanism": string(MechanismDirect),
			},
		})
	}

	if len(edges) > 0 {
		if err := p.graph.CreateEdgesBatch(ctx, edges); err != nil {
			return fmt.Errorf("project: create edges: %w", err)
		}
	}

	p.lastSeen.put(e.SessionID, e)
	return nil
}

// EvictIdleSessions drops last-event tracking for sessions untouched for
// longer than idle, bounding the map's growth across a long-lived instance.
func (p *Projector) EvictIdleSessions(idle time.Duration) int {
	return p.lastSeen.evictIdle(idle)
}
