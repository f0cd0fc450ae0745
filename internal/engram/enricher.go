package engram

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// enrichmentStopwords filters common low-signal tokens out of derived
// keywords, the same deterministic, non-LLM approach intent.go uses for
// keyword-rule classification.
var enrichmentStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "on": true, "for": true, "with": true, "is": true,
	"at": true, "by": true, "from": true, "this": true, "that": true,
}

// Enricher derives keywords and a baseline importance adjustment for
// projected events. It consumes the event and session annotation fields
// directly rather than an external payload body, since payload_ref is an
// opaque pointer into a store outside this system's scope.
type Enricher struct {
	Graph GraphStore
}

// NewEnricher constructs an Enricher.
func NewEnricher(graph GraphStore) *Enricher {
	return &Enricher{Graph: graph}
}

// Enrich loads the projected EventNode, derives keywords from its
// event_type/tool_name/payload_ref, and raises its importance_score when the
// event belongs to a keyword-rich, tool-bearing class, then re-merges it.
func (en *Enricher) Enrich(ctx context.Context, e Event) error {
	node, ok, err := en.Graph.GetEventNode(ctx, e.EventID.String())
	if err != nil {
		return fmt.Errorf("enrich: get event node %s: %w", e.EventID, err)
	}
	if !ok {
		return nil
	}

	node.Keywords = ExtractKeywords(fmt.Sprintf("%s %s %s", e.EventType, e.ToolName, e.PayloadRef))
	if node.ImportanceScore == 0 {
		node.ImportanceScore = 5
	}
	if e.ToolName != "" && len(node.Keywords) >= 3 {
		node.ImportanceScore += 0.5
	}

	if err := en.Graph.MergeEventNode(ctx, node); err != nil {
		return fmt.Errorf("enrich: merge event node %s: %w", e.EventID, err)
	}
	return nil
}

// ExtractKeywords tokenizes text on non-alphanumeric boundaries, lowercases,
// drops stopwords and single-character tokens, dedups, and returns the
// result sorted for deterministic output.
func ExtractKeywords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	seen := make(map[string]bool)
	var out []string
	for _, f := range fields {
		if len(f) <= 1 || enrichmentStopwords[f] || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
