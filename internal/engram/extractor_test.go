package engram

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arunmenon/Engram/internal/engram/testutil"
)

type fakeExtractionService struct {
	result ExtractionResult
	err    error
}

func (f fakeExtractionService) ExtractFromSession(ctx context.Context, events []Event, sessionID, agentID string) (ExtractionResult, error) {
	return f.result, f.err
}

func TestExtractor_WritesPreferencesSkillsAndInterests(t *testing.T) {
	graph := testutil.NewFakeGraph()
	svc := fakeExtractionService{result: ExtractionResult{
		Preferences: []ExtractedPreference{{Key: "editor", Value: "vim", Confidence: 1.0, Source: SourceExplicit, SourceQuote: "I use vim"}},
		Skills:      []ExtractedSkill{{Name: "golang", Confidence: 1.0, Source: SourceObserved, SourceQuote: "wrote a goroutine pool"}},
		Interests:   []ExtractedInterest{{Topic: "distributed systems", Confidence: 0.9, Source: SourceInferred, SourceQuote: "talked about consensus"}},
	}}
	ex := NewExtractor(graph, svc)

	require.NoError(t, ex.ExtractSession(context.Background(), "sess-extract", "agent-7", nil))

	assert.Contains(t, graph.Attributes, "Preference:pref-agent-agent-7-editor")
	assert.Contains(t, graph.Attributes, "Skill:skill-agent-agent-7-golang")
	assert.Contains(t, graph.Attributes, "Interest:interest-agent-agent-7-distributed systems")

	var sawPreferenceEdge, sawSkillEdge, sawInterestEdge bool
	for _, e := range graph.Edges {
		switch e.Type {
		case EdgeHasPreference:
			sawPreferenceEdge = true
		case EdgeHasSkill:
			sawSkillEdge = true
		case EdgeInterestedIn:
			sawInterestEdge = true
		}
	}
	assert.True(t, sawPreferenceEdge)
	assert.True(t, sawSkillEdge)
	assert.True(t, sawInterestEdge)
}

func TestExtractor_AppliesConfidenceCeiling(t *testing.T) {
	graph := testutil.NewFakeGraph()
	svc := fakeExtractionService{result: ExtractionResult{
		Preferences: []ExtractedPreference{{Key: "theme", Value: "dark", Confidence: 0.99, Source: SourceImplicitUnintentional, SourceQuote: "seemed to prefer dark mode"}},
	}}
	ex := NewExtractor(graph, svc)

	require.NoError(t, ex.ExtractSession(context.Background(), "sess-ceiling", "agent-1", nil))

	node := graph.Attributes["Preference:pref-agent-agent-1-theme"]
	assert.Equal(t, ConfidenceCeilings[SourceImplicitUnintentional], node.Props["confidence"])
}

func TestExtractor_SkipsEntitiesWithoutSourceQuote(t *testing.T) {
	graph := testutil.NewFakeGraph()
	svc := fakeExtractionService{result: ExtractionResult{
		Entities: []ExtractedEntity{{Name: "Stripe", EntityType: EntityService, Confidence: 0.9, Source: SourceObserved, SourceQuote: ""}},
	}}
	ex := NewExtractor(graph, svc)

	require.NoError(t, ex.ExtractSession(context.Background(), "sess-no-quote", "agent-2", nil))
	assert.Empty(t, graph.Entities)
}

func TestExtractor_WritesCitedEntities(t *testing.T) {
	graph := testutil.NewFakeGraph()
	svc := fakeExtractionService{result: ExtractionResult{
		Entities: []ExtractedEntity{{Name: "Stripe", EntityType: EntityService, Confidence: 0.9, Source: SourceObserved, SourceQuote: "we use Stripe for billing"}},
	}}
	ex := NewExtractor(graph, svc)

	require.NoError(t, ex.ExtractSession(context.Background(), "sess-cited", "agent-3", nil))
	require.Len(t, graph.Entities, 1)

	var aboutEdge *Edge
	for i, e := range graph.Edges {
		if e.Type == EdgeAbout {
			aboutEdge = &graph.Edges[i]
		}
	}
	require.NotNil(t, aboutEdge)
	assert.Equal(t, "agent-agent-3", aboutEdge.SourceID)
}

func TestExtractor_PropagatesServiceError(t *testing.T) {
	graph := testutil.NewFakeGraph()
	svc := fakeExtractionService{err: assert.AnError}
	ex := NewExtractor(graph, svc)

	err := ex.ExtractSession(context.Background(), "sess-err", "agent-4", nil)
	assert.Error(t, err)
}

func TestNewExtractor_NilServiceFallsBackToNoOp(t *testing.T) {
	graph := testutil.NewFakeGraph()
	ex := NewExtractor(graph, nil)
	require.NoError(t, ex.ExtractSession(context.Background(), "sess-noop", "agent-5", nil))
	assert.Empty(t, graph.Attributes)
}
