package engram

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arunmenon/Engram/internal/engram/testutil"
)

func eventAt(sessionID string, at time.Time) Event {
	return Event{
		EventID:    uuid.New(),
		EventType:  "tool.invoked",
		OccurredAt: at,
		SessionID:  sessionID,
		AgentID:    "agent-1",
		TraceID:    "trace-1",
		PayloadRef: "blob://x",
	}
}

func TestShouldReconsolidate_ThresholdBoundary(t *testing.T) {
	c := NewConsolidator(nil, nil, ConsolidationConfig{ReflectionThreshold: 150})
	assert.False(t, c.ShouldReconsolidate(149))
	assert.True(t, c.ShouldReconsolidate(150))
}

func TestGroupEpisodes_SplitsOnGap(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []Event{
		eventAt("s1", base),
		eventAt("s1", base.Add(5*time.Minute)),
		eventAt("s1", base.Add(time.Hour)), // gap > 30m starts a new episode
		eventAt("s1", base.Add(time.Hour+2*time.Minute)),
	}
	episodes := GroupEpisodes(events, 30*time.Minute)
	require.Len(t, episodes, 2)
	assert.Len(t, episodes[0].Events, 2)
	assert.Len(t, episodes[1].Events, 2)
}

func TestGroupEpisodes_EmptyInput(t *testing.T) {
	assert.Nil(t, GroupEpisodes(nil, time.Minute))
}

func TestSummaryIDFor_DeterministicAndOrderIndependent(t *testing.T) {
	a := SummaryIDFor("scope-1", []string{"b", "a", "c"})
	b := SummaryIDFor("scope-1", []string{"a", "b", "c"})
	assert.Equal(t, a, b)

	c := SummaryIDFor("scope-2", []string{"a", "b", "c"})
	assert.NotEqual(t, a, c)
}

func TestConsolidateSession_WritesEpisodeAndSessionSummaries(t *testing.T) {
	graph := testutil.NewFakeGraph()
	ledger := testutil.NewFakeLedger()
	consolidator := NewConsolidator(ledger, graph, DefaultConsolidationConfig())

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []Event{
		eventAt("sess-a", base),
		eventAt("sess-a", base.Add(time.Minute)),
		eventAt("sess-a", base.Add(2*time.Hour)),
	}

	err := consolidator.ConsolidateSession(context.Background(), "sess-a", events)
	require.NoError(t, err)

	// Two episodes plus one session-scoped summary.
	assert.Len(t, graph.Summaries, 3)

	var sessionSummary *SummaryNode
	for id, s := range graph.Summaries {
		s := s
		if s.Scope == ScopeSession {
			assert.Equal(t, "sess-a", s.ScopeID)
			sessionSummary = &s
			_ = id
		}
	}
	require.NotNil(t, sessionSummary)
	assert.Equal(t, 3, sessionSummary.EventCount)
}

func TestConsolidateSession_SkipsEmptyEpisodes(t *testing.T) {
	graph := testutil.NewFakeGraph()
	ledger := testutil.NewFakeLedger()
	consolidator := NewConsolidator(ledger, graph, DefaultConsolidationConfig())

	err := consolidator.ConsolidateSession(context.Background(), "sess-empty", nil)
	require.NoError(t, err)
	assert.Empty(t, graph.Summaries)
}

func TestRefreshImportance_RaisesScoreByInDegree(t *testing.T) {
	graph := testutil.NewFakeGraph()
	ledger := testutil.NewFakeLedger()
	consolidator := NewConsolidator(ledger, graph, DefaultConsolidationConfig())

	e := eventAt("sess-b", time.Now())
	require.NoError(t, graph.MergeEventNode(context.Background(), EventNode{Event: e}))
	// Manufacture 10 inbound edges to push this event's in-degree past the top bucket.
	for i := 0; i < 10; i++ {
		require.NoError(t, graph.CreateEdge(context.Background(), Edge{
			Type: EdgeReferences, SourceID: uuid.New().String(), TargetID: e.EventID.String(),
		}))
	}

	require.NoError(t, consolidator.refreshImportance(context.Background(), []Event{e}))

	node, ok, err := graph.GetEventNode(context.Background(), e.EventID.String())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 10.0, node.ImportanceScore)
}
