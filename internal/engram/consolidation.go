package engram

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// ConsolidationConfig carries the consolidation tunables.
type ConsolidationConfig struct {
	ReflectionThreshold int           // default 150
	GapMinutes          time.Duration // default 30m
}

// DefaultConsolidationConfig returns the documented defaults.
func DefaultConsolidationConfig() ConsolidationConfig {
	return ConsolidationConfig{ReflectionThreshold: 150, GapMinutes: 30 * time.Minute}
}

// Consolidator runs episode grouping, deterministic summary creation, and
// centrality-driven importance refresh. Summary creation for
// independent episodes fans out concurrently, generalizing the
// PromoteSession transactional multi-artifact creation into a parallel
// per-episode write followed by the session-scoped summary, which is a
// genuine barrier since it must count every episode.
type Consolidator struct {
	Ledger Ledger
	Graph  GraphStore
	Cfg    ConsolidationConfig
	Now    func() time.Time
}

// NewConsolidator constructs a Consolidator.
func NewConsolidator(ledger Ledger, graph GraphStore, cfg ConsolidationConfig) *Consolidator {
	return &Consolidator{Ledger: ledger, Graph: graph, Cfg: cfg, Now: time.Now}
}

func (c *Consolidator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// ShouldReconsolidate reports whether a session with eventCount events
// qualifies for consolidation: count >= reflection_threshold. An
// importance-weighted variant was considered and deliberately not
// implemented — a flat event count is simpler to reason about and test.
func (c *Consolidator) ShouldReconsolidate(eventCount int) bool {
	threshold := c.Cfg.ReflectionThreshold
	if threshold <= 0 {
		threshold = DefaultConsolidationConfig().ReflectionThreshold
	}
	return eventCount >= threshold
}

// Episode is a maximal contiguous run of a session's events separated from
// neighbors by a gap exceeding GapMinutes.
type Episode struct {
	Events []Event
}

// GroupEpisodes sorts events by occurred_at and splits into episodes
// wherever the gap between consecutive events exceeds gapMinutes.
func GroupEpisodes(events []Event, gap time.Duration) []Episode {
	if len(events) == 0 {
		return nil
	}
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OccurredAt.Before(sorted[j].OccurredAt) })

	var episodes []Episode
	current := Episode{Events: []Event{sorted[0]}}
	for i := 1; i < len(sorted); i++ {
		if sorted[i].OccurredAt.Sub(sorted[i-1].OccurredAt) > gap {
			episodes = append(episodes, current)
			current = Episode{Events: []Event{sorted[i]}}
		} else {
			current.Events = append(current.Events, sorted[i])
		}
	}
	episodes = append(episodes, current)
	return episodes
}

// SummaryIDFor computes the deterministic summary_id:
// "summary-<scope_id>-<first12(sha256(join(sorted event_ids, '|')))>".
func SummaryIDFor(scopeID string, eventIDs []string) string {
	sorted := make([]string, len(eventIDs))
	copy(sorted, eventIDs)
	sort.Strings(sorted)
	joined := ""
	for i, id := range sorted {
		if i > 0 {
			joined += "|"
		}
		joined += id
	}
	sum := sha256.Sum256([]byte(joined))
	hash := hex.EncodeToString(sum[:])[:12]
	return fmt.Sprintf("summary-%s-%s", scopeID, hash)
}

// BuildSummary constructs the deterministic, non-LLM summary for a set of
// events sharing scope/scopeID.
func BuildSummary(scope SummaryScope, scopeID string, events []Event, now time.Time) SummaryNode {
	eventIDs := make([]string, len(events))
	typeSet := make(map[string]bool)
	var first, last time.Time
	for i, e := range events {
		eventIDs[i] = e.EventID.String()
		typeSet[e.EventType] = true
		if first.IsZero() || e.OccurredAt.Before(first) {
			first = e.OccurredAt
		}
		if last.IsZero() || e.OccurredAt.After(last) {
			last = e.OccurredAt
		}
	}
	types := make([]string, 0, len(typeSet))
	for t := range typeSet {
		types = append(types, t)
	}
	sort.Strings(types)

	content := fmt.Sprintf("%d events (%v) from %s to %s", len(events), types, first.Format(time.RFC3339), last.Format(time.RFC3339))

	return SummaryNode{
		SummaryID:  SummaryIDFor(scopeID, eventIDs),
		Scope:      scope,
		ScopeID:    scopeID,
		Content:    content,
		CreatedAt:  now,
		EventCount: len(events),
		TimeRange:  TimeRange{First: first, Last: last},
	}
}

// ConsolidateSession runs a full consolidation cycle for one session: groups
// episodes, writes an episode Summary per episode (concurrently), writes a
// session-scoped summary over all events, and writes SUMMARIZES edges. The
// agent-scoped summary is the caller's responsibility (it spans sessions)
// and is produced by ConsolidateAgent.
func (c *Consolidator) ConsolidateSession(ctx context.Context, sessionID string, events []Event) error {
	now := c.now()
	episodes := GroupEpisodes(events, c.Cfg.GapMinutes)

	eg, egCtx := errgroup.WithContext(ctx)
	for i, ep := range episodes {
		ep := ep
		episodeScopeID := fmt.Sprintf("%s-episode-%d", sessionID, i)
		eg.Go(func() error {
			return c.writeSummary(egCtx, ScopeEpisode, episodeScopeID, ep.Events, now)
		})
	}
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("consolidate session: episodes: %w", err)
	}

	// Session-scoped summary is a barrier: it needs the full event set.
	if err := c.writeSummary(ctx, ScopeSession, sessionID, events, now); err != nil {
		return fmt.Errorf("consolidate session: session summary: %w", err)
	}

	return c.refreshImportance(ctx, events)
}

// ConsolidateAgent builds the agent-scoped summary over all sessions
// sharing an agent.
func (c *Consolidator) ConsolidateAgent(ctx context.Context, agentID string, events []Event) error {
	return c.writeSummary(ctx, ScopeAgent, agentID, events, c.now())
}

func (c *Consolidator) writeSummary(ctx context.Context, scope SummaryScope, scopeID string, events []Event, now time.Time) error {
	if len(events) == 0 {
		return nil
	}
	summary := BuildSummary(scope, scopeID, events, now)
	if err := c.Graph.MergeSummaryNode(ctx, summary); err != nil {
		return fmt.Errorf("merge summary node: %w", err)
	}
	edges := make([]Edge, 0, len(events))
	for _, e := range events {
		edges = append(edges, Edge{
			Type:     EdgeSummarizes,
			SourceID: summary.SummaryID,
			TargetID: e.EventID.String(),
			Props:    map[string]any{"created_at": now.Format(time.RFC3339Nano)},
		})
	}
	return c.Graph.CreateEdgesBatch(ctx, edges)
}

// refreshImportance recomputes importance_score from in-degree centrality
// for each event: in>=10 -> 10, >=5 -> 8, >=3 -> 6, else keep/default 5.
func (c *Consolidator) refreshImportance(ctx context.Context, events []Event) error {
	for _, e := range events {
		inDegree, err := c.Graph.InDegree(ctx, e.EventID.String())
		if err != nil {
			return fmt.Errorf("refresh importance: in-degree for %s: %w", e.EventID, err)
		}

		node, ok, err := c.Graph.GetEventNode(ctx, e.EventID.String())
		if err != nil {
			return fmt.Errorf("refresh importance: get node %s: %w", e.EventID, err)
		}
		if !ok {
			continue
		}

		switch {
		case inDegree >= 10:
			node.ImportanceScore = 10
		case inDegree >= 5:
			node.ImportanceScore = 8
		case inDegree >= 3:
			node.ImportanceScore = 6
		default:
			if node.ImportanceScore == 0 {
				node.ImportanceScore = 5
			}
		}

		if err := c.Graph.MergeEventNode(ctx, node); err != nil {
			return fmt.Errorf("refresh importance: merge node %s: %w", e.EventID, err)
		}
	}
	return nil
}
