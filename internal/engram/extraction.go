package engram

import (
	"context"
	"strings"
)

// ExtractionSource names where an extracted fact came from, used to pick
// its confidence ceiling.
type ExtractionSource string

const (
	SourceExplicit               ExtractionSource = "explicit"
	SourceImplicitIntentional    ExtractionSource = "implicit_intentional"
	SourceImplicitUnintentional  ExtractionSource = "implicit_unintentional"
	SourceObserved               ExtractionSource = "observed"
	SourceDeclared               ExtractionSource = "declared"
	SourceInferred               ExtractionSource = "inferred"
)

// ConfidenceCeilings are the default per-source confidence caps.
var ConfidenceCeilings = map[ExtractionSource]float64{
	SourceExplicit:              0.95,
	SourceImplicitIntentional:   0.7,
	SourceImplicitUnintentional: 0.5,
	SourceObserved:              0.85,
	SourceDeclared:              0.95,
	SourceInferred:              0.6,
}

// ExtractedEntity, ExtractedPreference, ExtractedSkill and ExtractedInterest
// are the typed extraction outputs: tagged structs in place of a dynamic dict.
type ExtractedEntity struct {
	Name         string
	EntityType   EntityType
	Confidence   float64
	Source       ExtractionSource
	SourceQuote  string
}

type ExtractedPreference struct {
	Key          string
	Value        string
	Confidence   float64
	Source       ExtractionSource
	SourceQuote  string
}

type ExtractedSkill struct {
	Name         string
	Confidence   float64
	Source       ExtractionSource
	SourceQuote  string
}

type ExtractedInterest struct {
	Topic        string
	Confidence   float64
	Source       ExtractionSource
	SourceQuote  string
}

// ExtractionResult is the pluggable extraction service's return shape.
type ExtractionResult struct {
	Entities    []ExtractedEntity
	Preferences []ExtractedPreference
	Skills      []ExtractedSkill
	Interests   []ExtractedInterest
}

// ExtractionService is the pluggable capability interface for an external
// extraction collaborator. Extractor applies confidence ceilings on top of
// whatever a concrete implementation returns and skips entities with an
// empty source_quote; it does not match quotes against the session's text.
type ExtractionService interface {
	ExtractFromSession(ctx context.Context, events []Event, sessionID, agentID string) (ExtractionResult, error)
}

// NoOpExtractionService is the default pluggable-port implementation when no
// extraction backend is configured, in the style of a
// NoOpEmbedder default-port pattern.
type NoOpExtractionService struct{}

func (NoOpExtractionService) ExtractFromSession(ctx context.Context, events []Event, sessionID, agentID string) (ExtractionResult, error) {
	return ExtractionResult{}, nil
}

// ApplyConfidenceCeiling clamps confidence to min(confidence, ceiling[source]).
func ApplyConfidenceCeiling(confidence float64, source ExtractionSource) float64 {
	ceiling, ok := ConfidenceCeilings[source]
	if !ok {
		return confidence
	}
	if confidence > ceiling {
		return ceiling
	}
	return confidence
}

// FuzzyQuoteMatch reports whether quote fuzzy-matches somewhere in
// transcript via a sliding window of the quote's length, using the same
// Ratcliff/Obershelp-equivalent similarity as entity resolution. Returns
// true when the best window's similarity is >= 0.85.
func FuzzyQuoteMatch(quote, transcript string) bool {
	quote = strings.TrimSpace(quote)
	transcript = strings.TrimSpace(transcript)
	if quote == "" {
		return false
	}
	if len(transcript) < len(quote) {
		return ratcliffObershelp(strings.ToLower(quote), strings.ToLower(transcript)) >= 0.85
	}
	best := 0.0
	qLower := strings.ToLower(quote)
	step := 1
	if len(transcript) > 4000 {
		step = len(transcript) / 2000 // bound work on very long transcripts
	}
	for i := 0; i+len(quote) <= len(transcript); i += step {
		window := strings.ToLower(transcript[i : i+len(quote)])
		score := ratcliffObershelp(qLower, window)
		if score > best {
			best = score
		}
		if best >= 0.85 {
			return true
		}
	}
	return best >= 0.85
}
