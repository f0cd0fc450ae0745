package engram

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arunmenon/Engram/internal/engram/testutil"
)

func TestGetSubgraph_SeedsFromSessionWhenNoneProvided(t *testing.T) {
	graph := testutil.NewFakeGraph()
	ledger := testutil.NewFakeLedger()
	r := newTestRetriever(graph, ledger)

	e := eventAt("sess-sub", time.Now())
	_, err := ledger.Append(context.Background(), e)
	require.NoError(t, err)
	require.NoError(t, graph.MergeEventNode(context.Background(), EventNode{Event: e}))

	envelope, err := r.GetSubgraph(context.Background(), SubgraphQuery{
		QueryText: "why did this happen", SessionID: "sess-sub", MaxNodes: 10, MaxDepth: 3, TimeoutMs: 1000,
	})
	require.NoError(t, err)
	assert.Contains(t, envelope.Meta.SeedNodes, e.EventID.String())
	assert.Contains(t, envelope.Nodes, e.EventID.String())
}

func TestGetSubgraph_ExpandsToNeighborsWithProactiveSignal(t *testing.T) {
	graph := testutil.NewFakeGraph()
	ledger := testutil.NewFakeLedger()
	r := newTestRetriever(graph, ledger)

	seed := eventAt("sess-neigh", time.Now())
	neighbor := eventAt("sess-neigh", time.Now().Add(-time.Minute))
	require.NoError(t, graph.MergeEventNode(context.Background(), EventNode{Event: seed}))
	require.NoError(t, graph.MergeEventNode(context.Background(), EventNode{Event: neighbor}))
	require.NoError(t, graph.CreateEdge(context.Background(), Edge{
		Type: EdgeCausedBy, SourceID: seed.EventID.String(), TargetID: neighbor.EventID.String(),
	}))

	envelope, err := r.GetSubgraph(context.Background(), SubgraphQuery{
		SeedNodes: []string{seed.EventID.String()}, Intent: IntentWhy, MaxNodes: 10, MaxDepth: 3, TimeoutMs: 1000,
	})
	require.NoError(t, err)
	require.Contains(t, envelope.Nodes, neighbor.EventID.String())
	assert.Equal(t, "proactive", envelope.Nodes[neighbor.EventID.String()].RetrievalReason)
	assert.Equal(t, "causal_chain", envelope.Nodes[neighbor.EventID.String()].ProactiveSignal)
	assert.Equal(t, 1, envelope.Meta.ProactiveCount)
	assert.Equal(t, IntentWhy, envelope.Meta.IntentOverride)
}

func TestGetSubgraph_TruncatesAtMaxNodes(t *testing.T) {
	graph := testutil.NewFakeGraph()
	ledger := testutil.NewFakeLedger()
	r := newTestRetriever(graph, ledger)

	seed := eventAt("sess-many", time.Now())
	require.NoError(t, graph.MergeEventNode(context.Background(), EventNode{Event: seed}))
	for i := 0; i < 5; i++ {
		n := eventAt("sess-many", time.Now().Add(-time.Duration(i+1)*time.Minute))
		require.NoError(t, graph.MergeEventNode(context.Background(), EventNode{Event: n}))
		require.NoError(t, graph.CreateEdge(context.Background(), Edge{
			Type: EdgeReferences, SourceID: seed.EventID.String(), TargetID: n.EventID.String(),
		}))
	}

	envelope, err := r.GetSubgraph(context.Background(), SubgraphQuery{
		SeedNodes: []string{seed.EventID.String()}, MaxNodes: 3, MaxDepth: 3, TimeoutMs: 1000,
	})
	require.NoError(t, err)
	assert.Len(t, envelope.Nodes, 3)
	assert.True(t, envelope.Meta.Truncated)
}
