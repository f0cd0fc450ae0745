package engram

import "strings"

// Intent tags
const (
	IntentWhy         = "why"
	IntentWhen        = "when"
	IntentWhat        = "what"
	IntentRelated     = "related"
	IntentWhoIs       = "who_is"
	IntentPersonalize = "personalize"
	IntentHowDoes     = "how_does"
	IntentGeneral     = "general"
)

// intentKeywords is the deterministic keyword-rule table. Case-
// insensitive substring match on the query text, grounded in the shape of
// a keyword/word-overlap intent-matching idiom.
var intentKeywords = map[string][]string{
	IntentWhy:         {"why", "reason", "cause", "caused", "failed", "failure", "broke", "error"},
	IntentWhen:        {"when", "time", "date", "timeline", "history", "sequence"},
	IntentWhat:        {"what", "which", "describe", "explain", "is"},
	IntentRelated:     {"related", "similar", "like", "resembl"},
	IntentWhoIs:       {"who is", "who's", "about the user", "who am i"},
	IntentPersonalize: {"my preference", "my profile", "personalize", "my settings"},
	IntentHowDoes:     {"how does", "how do", "workflow", "process"},
}

// IntentClassifier scores a query string against the keyword rules.
type IntentClassifier struct {
	keywords map[string][]string
}

// NewIntentClassifier constructs a classifier using the default keyword
// table. Pass a custom table to override (e.g. from CG_ configuration).
func NewIntentClassifier(keywords map[string][]string) *IntentClassifier {
	if keywords == nil {
		keywords = intentKeywords
	}
	return &IntentClassifier{keywords: keywords}
}

// Classify is a pure function of queryText: for any two calls on the same
// input, the returned mix is identical.
func (c *IntentClassifier) Classify(queryText string) IntentMix {
	lower := strings.ToLower(queryText)
	mix := make(IntentMix)

	for intent, keywords := range c.keywords {
		matches := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				matches++
			}
		}
		if matches > 0 {
			score := float64(matches) * 0.4
			if score > 1.0 {
				score = 1.0
			}
			mix[intent] = score
		}
	}

	if len(mix) == 0 {
		return IntentMix{IntentGeneral: 0.5}
	}

	max := 0.0
	for _, v := range mix {
		if v > max {
			max = v
		}
	}
	if max > 0 {
		for k, v := range mix {
			mix[k] = v / max
		}
	}
	return mix
}

// SeedStrategy returns the default seed-selection strategy name for an
// intent, used for observability/metadata only — actual seed
// selection logic lives in retrieval_subgraph.go.
func SeedStrategy(intent string) string {
	switch intent {
	case IntentWhy:
		return "causal_roots"
	case IntentWhen:
		return "temporal_anchors"
	case IntentWhat, IntentWhoIs:
		return "entity_hubs"
	case IntentRelated:
		return "similar_cluster"
	case IntentHowDoes:
		return "workflow_pattern"
	case IntentPersonalize:
		return "user_profile"
	default:
		return "general"
	}
}

// edgeWeightMatrix is the illustrative intent -> edge-type -> weight table
// used to derive per-edge weights from an intent mix.
var edgeWeightMatrix = map[string]map[EdgeType]float64{
	IntentWhy: {
		EdgeCausedBy:   5,
		EdgeFollows:    1,
		EdgeSimilarTo:  1.5,
		EdgeReferences: 2,
	},
	IntentWhen: {
		EdgeFollows:   5,
		EdgeCausedBy:  1,
		EdgeSimilarTo: 0.5,
	},
	IntentWhat: {
		EdgeReferences: 5,
		EdgeSimilarTo:  2,
		EdgeCausedBy:   2,
	},
	IntentRelated: {
		EdgeSimilarTo:  5,
		EdgeReferences: 2,
		EdgeCausedBy:   1.5,
	},
	IntentWhoIs: {
		EdgeHasProfile:    4,
		EdgeHasPreference: 4,
		EdgeHasSkill:      3,
		EdgeInterestedIn:  3,
		EdgeAbout:         5,
		EdgeSimilarTo:     0.5,
		EdgeFollows:       0.5,
	},
	IntentPersonalize: {
		EdgeHasProfile:    5,
		EdgeHasPreference: 5,
		EdgeExhibitsPattern: 4,
		EdgeInterestedIn:  3,
		EdgeSimilarTo:     0.5,
		EdgeFollows:       0.5,
	},
	IntentHowDoes: {
		EdgeExhibitsPattern: 4,
		EdgeHasSkill:        3,
		EdgeAbout:           3,
		EdgeSimilarTo:       1,
		EdgeFollows:         1,
	},
	IntentGeneral: {
		EdgeCausedBy:   2,
		EdgeFollows:    2,
		EdgeSimilarTo:  2,
		EdgeReferences: 2,
	},
}

// EdgeWeights scales each intent's row of the matrix by its confidence and
// sums across intents present in mix, producing a per-edge-type weight map.
func EdgeWeights(mix IntentMix) map[EdgeType]float64 {
	weights := make(map[EdgeType]float64)
	for intent, confidence := range mix {
		row, ok := edgeWeightMatrix[intent]
		if !ok {
			continue
		}
		for edgeType, w := range row {
			weights[edgeType] += w * confidence
		}
	}
	return weights
}

// ProactiveSignal maps an incoming edge type to the neighbor's proactive
// signal label.
func ProactiveSignal(edgeType EdgeType) string {
	switch edgeType {
	case EdgeReferences:
		return "entity_context"
	case EdgeSimilarTo:
		return "recurring_pattern"
	case EdgeCausedBy:
		return "causal_chain"
	case EdgeFollows:
		return "temporal_sequence"
	case EdgeSummarizes:
		return "summary_context"
	default:
		return "related_context"
	}
}
