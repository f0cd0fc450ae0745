package engram

import "math"

// Scoring tunables with the documented defaults (CG_ config keys).
type ScoringConfig struct {
	StabilityBase  float64 // hours, default 168
	StabilityBoost float64 // hours, default 24
	WeightRecency  float64 // default 1.0
	WeightImportance float64 // default 1.0
	WeightRelevance  float64 // default 1.0
	WeightAffinity   float64 // default 0.5
}

// DefaultScoringConfig returns the documented default weights and stability.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		StabilityBase:    168,
		StabilityBoost:   24,
		WeightRecency:    1.0,
		WeightImportance: 1.0,
		WeightRelevance:  1.0,
		WeightAffinity:   0.5,
	}
}

// Scorer computes the 4-factor composite decay score. Each
// factor is a small pure function, in the style of a scoring
// sub-score bucket functions, generalized from a 0-100 richness rubric to
// the normalized [0,1] forgetting-curve formulas.
type Scorer struct {
	cfg ScoringConfig
	now func() float64 // hours since unix epoch, for testability
}

// NewScorer constructs a Scorer with cfg.
func NewScorer(cfg ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Recency implements R = exp(-t/S). tHours is hours since the later of
// occurred_at and last_accessed_at; accessCount feeds stability growth.
func (s *Scorer) Recency(tHours float64, accessCount int64) float64 {
	if tHours <= 0 {
		return 1.0
	}
	stability := s.cfg.StabilityBase + float64(accessCount)*s.cfg.StabilityBoost
	if stability <= 0 {
		return 0.0
	}
	return math.Exp(-tHours / stability)
}

// Importance implements I = base + min(0.2, log1p(access)*0.05) +
// min(0.2, log1p(in_degree)*0.05), clamped to <= 1.
func (s *Scorer) Importance(importanceHint *int, accessCount int64, inDegree int64) float64 {
	base := 0.5
	if importanceHint != nil {
		base = float64(*importanceHint) / 10.0
	}
	accessBoost := math.Min(0.2, math.Log1p(float64(accessCount))*0.05)
	degreeBoost := math.Min(0.2, math.Log1p(float64(inDegree))*0.05)
	i := base + accessBoost + degreeBoost
	if i > 1 {
		i = 1
	}
	return i
}

// Relevance returns cosine similarity of query/node embeddings, clamped to
// [0,1]. Returns the neutral prior 0.5 when either is empty, dimensions
// mismatch, or either vector has zero norm.
func (s *Scorer) Relevance(query, node []float32) float64 {
	if len(query) == 0 || len(node) == 0 || len(query) != len(node) {
		return 0.5
	}
	var dot, qNorm, nNorm float64
	for i := range query {
		dot += float64(query[i]) * float64(node[i])
		qNorm += float64(query[i]) * float64(query[i])
		nNorm += float64(node[i]) * float64(node[i])
	}
	if qNorm == 0 || nNorm == 0 {
		return 0.5
	}
	cos := dot / (math.Sqrt(qNorm) * math.Sqrt(nNorm))
	if cos < 0 {
		cos = 0
	}
	if cos > 1 {
		cos = 1
	}
	return cos
}

// UserAffinity implements the optional weighted sum
// 0.4*session_proximity + 0.3*retrieval_recurrence + 0.3*entity_overlap.
func (s *Scorer) UserAffinity(sessionProximity, retrievalRecurrence, entityOverlap float64) float64 {
	v := 0.4*sessionProximity + 0.3*retrievalRecurrence + 0.3*entityOverlap
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v
}

// ScoreInputs bundles the inputs Composite needs for one node.
type ScoreInputs struct {
	AgeHours        float64
	AccessCount     int64
	InDegree        int64
	ImportanceHint  *int
	QueryEmbedding  []float32
	NodeEmbedding   []float32
	UserAffinity    *float64 // nil when affinity is not applicable
}

// Composite computes the weighted composite of the four factors and
// returns the NodeScores output surface.
func (s *Scorer) Composite(in ScoreInputs) NodeScores {
	r := s.Recency(in.AgeHours, in.AccessCount)
	imp := s.Importance(in.ImportanceHint, in.AccessCount, in.InDegree)
	v := s.Relevance(in.QueryEmbedding, in.NodeEmbedding)

	wSum := s.cfg.WeightRecency + s.cfg.WeightImportance + s.cfg.WeightRelevance
	num := s.cfg.WeightRecency*r + s.cfg.WeightImportance*imp + s.cfg.WeightRelevance*v

	if in.UserAffinity != nil {
		wSum += s.cfg.WeightAffinity
		num += s.cfg.WeightAffinity * (*in.UserAffinity)
	}

	composite := 0.0
	if wSum > 0 {
		composite = num / wSum
	}

	importanceScore := 5
	if in.ImportanceHint != nil {
		importanceScore = *in.ImportanceHint
	} else {
		importanceScore = int(math.Round(imp * 10))
	}

	return NodeScores{
		DecayScore:      composite,
		RelevanceScore:  v,
		ImportanceScore: importanceScore,
	}
}
