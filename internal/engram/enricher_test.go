package engram

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arunmenon/Engram/internal/engram/testutil"
)

func TestExtractKeywords_DedupesLowercasesAndDropsStopwords(t *testing.T) {
	got := ExtractKeywords("Tool Invoked: the Deploy Script and the Deploy Script again")
	assert.Contains(t, got, "tool")
	assert.Contains(t, got, "invoked")
	assert.Contains(t, got, "deploy")
	assert.NotContains(t, got, "the")
	assert.NotContains(t, got, "and")

	count := 0
	for _, kw := range got {
		if kw == "deploy" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestExtractKeywords_DropsSingleCharTokens(t *testing.T) {
	got := ExtractKeywords("a b tool")
	assert.NotContains(t, got, "a")
	assert.NotContains(t, got, "b")
	assert.Contains(t, got, "tool")
}

func TestEnricher_DerivesKeywordsAndBaselineImportance(t *testing.T) {
	graph := testutil.NewFakeGraph()
	en := NewEnricher(graph)

	e := eventAt("sess-enrich", time.Now())
	e.ToolName = "deploy_script"
	require.NoError(t, graph.MergeEventNode(context.Background(), EventNode{Event: e}))

	require.NoError(t, en.Enrich(context.Background(), e))

	node, ok, err := graph.GetEventNode(context.Background(), e.EventID.String())
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, node.Keywords)
	assert.GreaterOrEqual(t, node.ImportanceScore, 5.0)
}

func TestEnricher_NoOpWhenEventNodeMissing(t *testing.T) {
	graph := testutil.NewFakeGraph()
	en := NewEnricher(graph)

	e := eventAt("sess-missing", time.Now())
	err := en.Enrich(context.Background(), e)
	assert.NoError(t, err)
	_, ok, err := graph.GetEventNode(context.Background(), e.EventID.String())
	require.NoError(t, err)
	assert.False(t, ok)
}
