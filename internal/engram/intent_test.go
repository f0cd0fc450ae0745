package engram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntentClassifier_ClassifyIsDeterministic(t *testing.T) {
	c := NewIntentClassifier(nil)
	a := c.Classify("why did the deploy fail")
	b := c.Classify("why did the deploy fail")
	assert.Equal(t, a, b)
}

func TestIntentClassifier_NoMatchReturnsGeneral(t *testing.T) {
	c := NewIntentClassifier(nil)
	mix := c.Classify("xyzzy plugh")
	require.Len(t, mix, 1)
	assert.Equal(t, 0.5, mix[IntentGeneral])
}

func TestIntentClassifier_WhyKeywordsScoreHighest(t *testing.T) {
	c := NewIntentClassifier(nil)
	mix := c.Classify("why did it fail, what was the cause of the error")
	top := ""
	best := -1.0
	for intent, score := range mix {
		if score > best {
			best = score
			top = intent
		}
	}
	assert.Equal(t, IntentWhy, top)
	assert.Equal(t, 1.0, mix[IntentWhy])
}

func TestIntentClassifier_CustomTableOverridesDefault(t *testing.T) {
	c := NewIntentClassifier(map[string][]string{"custom": {"frobnicate"}})
	mix := c.Classify("please frobnicate the widget")
	assert.Contains(t, mix, "custom")
}

func TestSeedStrategy_KnownIntents(t *testing.T) {
	assert.Equal(t, "causal_roots", SeedStrategy(IntentWhy))
	assert.Equal(t, "temporal_anchors", SeedStrategy(IntentWhen))
	assert.Equal(t, "entity_hubs", SeedStrategy(IntentWhat))
	assert.Equal(t, "entity_hubs", SeedStrategy(IntentWhoIs))
	assert.Equal(t, "general", SeedStrategy("unknown"))
}

func TestEdgeWeights_ScalesByConfidenceAndSums(t *testing.T) {
	mix := IntentMix{IntentWhy: 1.0, IntentWhen: 0.5}
	weights := EdgeWeights(mix)
	assert.Equal(t, 5.0+0.5*1.0, weights[EdgeCausedBy])
	assert.Equal(t, 1.0+0.5*5.0, weights[EdgeFollows])
}

func TestEdgeWeights_UnknownIntentIgnored(t *testing.T) {
	mix := IntentMix{"nonsense": 1.0}
	weights := EdgeWeights(mix)
	assert.Empty(t, weights)
}

func TestProactiveSignal_MapsKnownEdgeTypes(t *testing.T) {
	assert.Equal(t, "entity_context", ProactiveSignal(EdgeReferences))
	assert.Equal(t, "recurring_pattern", ProactiveSignal(EdgeSimilarTo))
	assert.Equal(t, "causal_chain", ProactiveSignal(EdgeCausedBy))
	assert.Equal(t, "related_context", ProactiveSignal(EdgeHasSkill))
}
