package engram

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arunmenon/Engram/internal/engram/testutil"
)

func newTestRetriever(graph *testutil.FakeGraph, ledger *testutil.FakeLedger) *Retriever {
	return NewRetriever(ledger, graph, NewScorer(DefaultScoringConfig()), NewIntentClassifier(nil))
}

func TestGetContext_ReturnsAllSessionEventsUnderMaxNodes(t *testing.T) {
	graph := testutil.NewFakeGraph()
	ledger := testutil.NewFakeLedger()
	r := newTestRetriever(graph, ledger)

	base := time.Now().Add(-time.Hour)
	e1 := eventAt("sess-ctx", base)
	e2 := eventAt("sess-ctx", base.Add(time.Minute))
	_, err := ledger.Append(context.Background(), e1)
	require.NoError(t, err)
	_, err = ledger.Append(context.Background(), e2)
	require.NoError(t, err)

	envelope, err := r.GetContext(context.Background(), "sess-ctx", 10, nil)
	require.NoError(t, err)
	assert.Len(t, envelope.Nodes, 2)
	assert.Equal(t, 1, envelope.Meta.Capacity.MaxDepth)
	assert.False(t, envelope.Meta.Truncated)
}

func TestGetContext_TruncatesAtMaxNodes(t *testing.T) {
	graph := testutil.NewFakeGraph()
	ledger := testutil.NewFakeLedger()
	r := newTestRetriever(graph, ledger)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		_, err := ledger.Append(context.Background(), eventAt("sess-trunc", base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	envelope, err := r.GetContext(context.Background(), "sess-trunc", 2, nil)
	require.NoError(t, err)
	assert.Len(t, envelope.Nodes, 2)
	assert.True(t, envelope.Meta.Truncated)
}

func TestGetContext_BumpsAccessCounters(t *testing.T) {
	graph := testutil.NewFakeGraph()
	ledger := testutil.NewFakeLedger()
	r := newTestRetriever(graph, ledger)

	e := eventAt("sess-bump", time.Now())
	_, err := ledger.Append(context.Background(), e)
	require.NoError(t, err)
	require.NoError(t, graph.MergeEventNode(context.Background(), EventNode{Event: e}))

	_, err = r.GetContext(context.Background(), "sess-bump", 10, nil)
	require.NoError(t, err)

	node, ok, err := graph.GetEventNode(context.Background(), e.EventID.String())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), node.AccessCount)
}

func TestGetContext_MaxNodesClampedToBounds(t *testing.T) {
	graph := testutil.NewFakeGraph()
	ledger := testutil.NewFakeLedger()
	r := newTestRetriever(graph, ledger)

	envelope, err := r.GetContext(context.Background(), "sess-empty", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, envelope.Meta.Capacity.MaxNodes)
}
