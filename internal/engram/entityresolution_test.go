package engram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntityResolver_ExactMatchSameTypeMerges(t *testing.T) {
	r := NewEntityResolver(nil)
	known := []EntityNode{{EntityID: "e1", Name: "Stripe", EntityType: EntityService}}
	got := r.Resolve("stripe", EntityService, known)
	assert.Equal(t, ActionMerge, got.Action)
	assert.Equal(t, 1.0, got.Confidence)
}

func TestEntityResolver_ExactMatchDifferentTypeSameAs(t *testing.T) {
	r := NewEntityResolver(nil)
	known := []EntityNode{{EntityID: "e1", Name: "Stripe", EntityType: EntityService}}
	got := r.Resolve("Stripe", EntityConcept, known)
	assert.Equal(t, ActionSameAs, got.Action)
}

func TestEntityResolver_AliasResolvesToCanonical(t *testing.T) {
	aliases := NewAliasDictionary(map[string][]string{"Stripe": {"stripe.com", "Stripe Inc"}})
	r := NewEntityResolver(aliases)
	known := []EntityNode{{EntityID: "e1", Name: "Stripe", EntityType: EntityService}}
	got := r.Resolve("Stripe Inc", EntityService, known)
	assert.Equal(t, ActionMerge, got.Action)
	assert.Equal(t, "stripe", got.CanonicalName)
}

func TestEntityResolver_FuzzyMatchNeverAutoMerges(t *testing.T) {
	r := NewEntityResolver(nil)
	known := []EntityNode{{EntityID: "e1", Name: "Acme Corporation", EntityType: EntityService}}
	got := r.Resolve("Acme Corporatoin", EntityService, known)
	assert.NotEqual(t, ActionMerge, got.Action)
	assert.Equal(t, ActionSameAs, got.Action)
}

func TestEntityResolver_NoMatchCreates(t *testing.T) {
	r := NewEntityResolver(nil)
	known := []EntityNode{{EntityID: "e1", Name: "Stripe", EntityType: EntityService}}
	got := r.Resolve("entirely different name", EntityService, known)
	assert.Equal(t, ActionCreate, got.Action)
}

func TestEntityResolver_FuzzyBelowThresholdCreates(t *testing.T) {
	r := NewEntityResolver(nil)
	r.FuzzyMinScore = 0.9
	known := []EntityNode{{EntityID: "e1", Name: "Completely Different Token", EntityType: EntityService}}
	got := r.Resolve("Nothing Alike At All", EntityService, known)
	assert.Equal(t, ActionCreate, got.Action)
}

func TestRatcliffObershelp_IdenticalStringsScoreOne(t *testing.T) {
	assert.Equal(t, 1.0, ratcliffObershelp("hello", "hello"))
}

func TestRatcliffObershelp_EmptyStrings(t *testing.T) {
	assert.Equal(t, 1.0, ratcliffObershelp("", ""))
	assert.Equal(t, 0.0, ratcliffObershelp("a", ""))
}

func TestFuzzyQuoteMatch_FindsSubstringInLongerTranscript(t *testing.T) {
	transcript := "the user said they prefer dark mode for all interfaces going forward"
	assert.True(t, FuzzyQuoteMatch("they prefer dark mode", transcript))
}

func TestFuzzyQuoteMatch_RejectsUnrelatedQuote(t *testing.T) {
	transcript := "the weather today is sunny with a light breeze"
	assert.False(t, FuzzyQuoteMatch("database migration failed at step three", transcript))
}

func TestFuzzyQuoteMatch_EmptyQuoteRejected(t *testing.T) {
	assert.False(t, FuzzyQuoteMatch("", "anything"))
}
