package engram

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arunmenon/Engram/internal/engram/testutil"
)

func TestGetLineage_TraversesCausedByChain(t *testing.T) {
	graph := testutil.NewFakeGraph()
	ledger := testutil.NewFakeLedger()
	r := newTestRetriever(graph, ledger)

	root := eventAt("sess-lineage", time.Now().Add(-3*time.Hour))
	mid := eventAt("sess-lineage", time.Now().Add(-2*time.Hour))
	leaf := eventAt("sess-lineage", time.Now().Add(-time.Hour))

	require.NoError(t, graph.MergeEventNode(context.Background(), EventNode{Event: root}))
	require.NoError(t, graph.MergeEventNode(context.Background(), EventNode{Event: mid}))
	require.NoError(t, graph.MergeEventNode(context.Background(), EventNode{Event: leaf}))

	// leaf CAUSED_BY mid CAUSED_BY root.
	require.NoError(t, graph.CreateEdge(context.Background(), Edge{Type: EdgeCausedBy, SourceID: leaf.EventID.String(), TargetID: mid.EventID.String()}))
	require.NoError(t, graph.CreateEdge(context.Background(), Edge{Type: EdgeCausedBy, SourceID: mid.EventID.String(), TargetID: root.EventID.String()}))

	envelope, err := r.GetLineage(context.Background(), leaf.EventID.String(), 5, 10, nil)
	require.NoError(t, err)
	assert.Len(t, envelope.Nodes, 2)
	assert.Contains(t, envelope.Nodes, mid.EventID.String())
	assert.Contains(t, envelope.Nodes, root.EventID.String())
	assert.Equal(t, 1, envelope.Nodes[mid.EventID.String()].Depth)
	assert.Equal(t, 2, envelope.Nodes[root.EventID.String()].Depth)
}

func TestGetLineage_RespectsMaxDepth(t *testing.T) {
	graph := testutil.NewFakeGraph()
	ledger := testutil.NewFakeLedger()
	r := newTestRetriever(graph, ledger)

	a := eventAt("sess-depth", time.Now().Add(-3*time.Hour))
	b := eventAt("sess-depth", time.Now().Add(-2*time.Hour))
	c := eventAt("sess-depth", time.Now().Add(-time.Hour))

	for _, e := range []Event{a, b, c} {
		require.NoError(t, graph.MergeEventNode(context.Background(), EventNode{Event: e}))
	}
	require.NoError(t, graph.CreateEdge(context.Background(), Edge{Type: EdgeCausedBy, SourceID: c.EventID.String(), TargetID: b.EventID.String()}))
	require.NoError(t, graph.CreateEdge(context.Background(), Edge{Type: EdgeCausedBy, SourceID: b.EventID.String(), TargetID: a.EventID.String()}))

	envelope, err := r.GetLineage(context.Background(), c.EventID.String(), 1, 10, nil)
	require.NoError(t, err)
	assert.Len(t, envelope.Nodes, 1)
	assert.Contains(t, envelope.Nodes, b.EventID.String())
}

func TestGetLineage_NoCausesReturnsEmpty(t *testing.T) {
	graph := testutil.NewFakeGraph()
	ledger := testutil.NewFakeLedger()
	r := newTestRetriever(graph, ledger)

	envelope, err := r.GetLineage(context.Background(), "nonexistent", 5, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, envelope.Nodes)
}
