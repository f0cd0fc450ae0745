package engram

import (
	"strings"
)

// ResolutionAction is the action taxonomy returned by entity resolution.
type ResolutionAction string

const (
	ActionMerge    ResolutionAction = "MERGE"
	ActionSameAs   ResolutionAction = "SAME_AS"
	ActionRelated  ResolutionAction = "RELATED_TO"
	ActionCreate   ResolutionAction = "CREATE"
)

// ResolutionResult is the three-tier resolver's output for one candidate.
type ResolutionResult struct {
	Action        ResolutionAction
	CanonicalName string
	EntityType    EntityType
	Confidence    float64
	Justification string
}

// AliasDictionary maps a canonical name to its known aliases, with a
// reverse index for alias -> canonical lookup.
type AliasDictionary struct {
	canonicalToAliases map[string][]string
	aliasToCanonical   map[string]string
}

// NewAliasDictionary builds a dictionary from canonical -> aliases.
func NewAliasDictionary(canonicalToAliases map[string][]string) *AliasDictionary {
	d := &AliasDictionary{
		canonicalToAliases: canonicalToAliases,
		aliasToCanonical:   make(map[string]string),
	}
	for canonical, aliases := range canonicalToAliases {
		norm := normalizeName(canonical)
		d.aliasToCanonical[norm] = norm
		for _, alias := range aliases {
			d.aliasToCanonical[normalizeName(alias)] = norm
		}
	}
	return d
}

// Canonicalize returns the canonical normalized name for name, following
// the alias dictionary if present.
func (d *AliasDictionary) Canonicalize(name string) string {
	norm := normalizeName(name)
	if d == nil {
		return norm
	}
	if canon, ok := d.aliasToCanonical[norm]; ok {
		return canon
	}
	return norm
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(name))), " ")
}

// EntityResolver implements the three-tier exact/fuzzy/create algorithm.
// The fuzzy-match tier never auto-merges.
type EntityResolver struct {
	Aliases       *AliasDictionary
	FuzzyMinScore float64 // default 0.9
}

// NewEntityResolver constructs a resolver with the documented default fuzzy
// threshold.
func NewEntityResolver(aliases *AliasDictionary) *EntityResolver {
	return &EntityResolver{Aliases: aliases, FuzzyMinScore: 0.9}
}

// Resolve runs the three tiers in order against a set of known entities,
// returning the first tier that produces a result.
func (r *EntityResolver) Resolve(candidateName string, candidateType EntityType, known []EntityNode) ResolutionResult {
	canon := r.Aliases.Canonicalize(candidateName)

	// Tier 1: exact match.
	for _, k := range known {
		if r.Aliases.Canonicalize(k.Name) == canon {
			if k.EntityType == candidateType {
				return ResolutionResult{
					Action:        ActionMerge,
					CanonicalName: canon,
					EntityType:    candidateType,
					Confidence:    1.0,
					Justification: "exact name match, same entity type",
				}
			}
			return ResolutionResult{
				Action:        ActionSameAs,
				CanonicalName: canon,
				EntityType:    candidateType,
				Confidence:    0.9,
				Justification: "exact name match, differing entity type",
			}
		}
	}

	// Tier 2: fuzzy match (never auto-merges).
	normCandidate := normalizeName(candidateName)
	bestScore := 0.0
	var best EntityNode
	for _, k := range known {
		score := ratcliffObershelp(normCandidate, normalizeName(k.Name))
		if score > bestScore {
			bestScore = score
			best = k
		}
	}
	if bestScore >= r.FuzzyMinScore {
		if best.EntityType == candidateType {
			return ResolutionResult{
				Action:        ActionSameAs,
				CanonicalName: normalizeName(best.Name),
				EntityType:    candidateType,
				Confidence:    bestScore,
				Justification: "fuzzy name match, same entity type",
			}
		}
		return ResolutionResult{
			Action:        ActionRelated,
			CanonicalName: normalizeName(best.Name),
			EntityType:    candidateType,
			Confidence:    bestScore,
			Justification: "fuzzy name match, differing entity type",
		}
	}

	// Tier 3: create.
	return ResolutionResult{
		Action:        ActionCreate,
		CanonicalName: canon,
		EntityType:    candidateType,
		Confidence:    1.0,
		Justification: "no exact or fuzzy match found",
	}
}

// ratcliffObershelp computes the Ratcliff/Obershelp similarity ratio:
// 2*matches / (len(a)+len(b)), where matches is found recursively via the
// longest common substring at each level. Hand-rolled: no fuzzy-string-
// matching library covers this tier's threshold semantics (see DESIGN.md).
func ratcliffObershelp(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	matches := matchingCharacters(a, b)
	return 2.0 * float64(matches) / float64(len(a)+len(b))
}

func matchingCharacters(a, b string) int {
	start1, start2, length := longestCommonSubstring(a, b)
	if length == 0 {
		return 0
	}
	total := length
	total += matchingCharacters(a[:start1], b[:start2])
	total += matchingCharacters(a[start1+length:], b[start2+length:])
	return total
}

func longestCommonSubstring(a, b string) (startA, startB, length int) {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	best := 0
	bestA, bestB := 0, 0

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > best {
					best = curr[j]
					bestA = i - best
					bestB = j - best
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
		for k := range curr {
			curr[k] = 0
		}
	}

	return bestA, bestB, best
}
