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

func TestProjector_FirstEventInSessionHasNoFollowsEdge(t *testing.T) {
	graph := testutil.NewFakeGraph()
	p := NewProjector(graph, 100)

	e := eventAt("sess-1", time.Now())
	require.NoError(t, p.Project(context.Background(), e))

	for _, edge := range graph.Edges {
		assert.NotEqual(t, EdgeFollows, edge.Type)
	}
	node, ok, err := graph.GetEventNode(context.Background(), e.EventID.String())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5.0, node.ImportanceScore)
}

func TestProjector_SecondEventGetsFollowsEdge(t *testing.T) {
	graph := testutil.NewFakeGraph()
	p := NewProjector(graph, 100)

	base := time.Now()
	first := eventAt("sess-2", base)
	second := eventAt("sess-2", base.Add(time.Second))

	require.NoError(t, p.Project(context.Background(), first))
	require.NoError(t, p.Project(context.Background(), second))

	var follows *Edge
	for i, edge := range graph.Edges {
		if edge.Type == EdgeFollows {
			follows = &graph.Edges[i]
		}
	}
	require.NotNil(t, follows)
	assert.Equal(t, second.EventID.String(), follows.SourceID)
	assert.Equal(t, first.EventID.String(), follows.TargetID)
	assert.Equal(t, int64(1000), follows.Props["delta_ms"])
}

func TestProjector_ParentEventIDCreatesCausedByEdge(t *testing.T) {
	graph := testutil.NewFakeGraph()
	p := NewProjector(graph, 100)

	parentID := uuid.New()
	e := eventAt("sess-3", time.Now())
	e.ParentEventID = &parentID

	require.NoError(t, p.Project(context.Background(), e))

	var causedBy *Edge
	for i, edge := range graph.Edges {
		if edge.Type == EdgeCausedBy {
			causedBy = &graph.Edges[i]
		}
	}
	require.NotNil(t, causedBy)
	assert.Equal(t, parentID.String(), causedBy.TargetID)
	assert.Equal(t, string(MechanismDirect), causedBy.Props["mechanism"])
}

func TestProjector_DifferentSessionsDoNotLinkFollows(t *testing.T) {
	graph := testutil.NewFakeGraph()
	p := NewProjector(graph, 100)

	require.NoError(t, p.Project(context.Background(), eventAt("sess-a", time.Now())))
	require.NoError(t, p.Project(context.Background(), eventAt("sess-b", time.Now())))

	for _, edge := range graph.Edges {
		assert.NotEqual(t, EdgeFollows, edge.Type)
	}
}

func TestSessionLRU_EvictsOldestOverCapacity(t *testing.T) {
	lru := newSessionLRU(2)
	lru.put("s1", eventAt("s1", time.Now()))
	lru.put("s2", eventAt("s2", time.Now()))
	lru.put("s3", eventAt("s3", time.Now()))

	_, ok := lru.get("s1")
	assert.False(t, ok)
	_, ok = lru.get("s3")
	assert.True(t, ok)
}

func TestProjector_EvictIdleSessions(t *testing.T) {
	graph := testutil.NewFakeGraph()
	p := NewProjector(graph, 100)
	require.NoError(t, p.Project(context.Background(), eventAt("sess-idle", time.Now())))

	evicted := p.EvictIdleSessions(-time.Second) // everything is "older" than a negative window
	assert.Equal(t, 1, evicted)
}
