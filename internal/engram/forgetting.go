package engram

import (
	"context"
	"fmt"
	"time"
)

// Tier is a retention tier derived from event age.
type Tier string

const (
	TierHot     Tier = "HOT"
	TierWarm    Tier = "WARM"
	TierCold    Tier = "COLD"
	TierArchive Tier = "ARCHIVE"
)

// RetentionConfig carries the tier boundaries and pruning thresholds, with
// the documented defaults.
type RetentionConfig struct {
	HotHours             float64 // default 24
	WarmHours            float64 // default 168
	ColdHours            float64 // default 720
	WarmMinSimilarity    float64 // default 0.7
	ColdMinImportance    float64 // default 5
	ColdMinAccessCount   int64   // default 3
	HotWindowDays        int     // default 7
	RetentionCeilingDays int     // default 90
}

// DefaultRetentionConfig returns the documented default tier boundaries.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		HotHours:             24,
		WarmHours:            168,
		ColdHours:            720,
		WarmMinSimilarity:    0.7,
		ColdMinImportance:    5,
		ColdMinAccessCount:   3,
		HotWindowDays:        DefaultHotWindowDays,
		RetentionCeilingDays: DefaultRetentionCeilingDays,
	}
}

// ClassifyTier returns the retention tier for an event of the given age.
func ClassifyTier(ageHours float64, cfg RetentionConfig) Tier {
	switch {
	case ageHours < cfg.HotHours:
		return TierHot
	case ageHours < cfg.WarmHours:
		return TierWarm
	case ageHours < cfg.ColdHours:
		return TierCold
	default:
		return TierArchive
	}
}

// PruneResult reports the outcome of one tier's pruning pass, in the shape
// of a GCResult-style reporting idiom.
type PruneResult struct {
	Tier          Tier   `json:"tier"`
	EdgesPruned   int64  `json:"edges_pruned"`
	NodesDeleted  int64  `json:"nodes_deleted"`
	DryRun        bool   `json:"dry_run"`
}

// Forgetter applies tier-specific pruning rules and independent ledger/JSON
// trimming, modeled on a GCPolicy/RunGC idiom with an explicit protected-
// tier list (HOT is never pruned).
type Forgetter struct {
	Graph  GraphStore
	Ledger Ledger
	Cfg    RetentionConfig
	Now    func() time.Time
}

// NewForgetter constructs a Forgetter.
func NewForgetter(graph GraphStore, ledger Ledger, cfg RetentionConfig) *Forgetter {
	return &Forgetter{Graph: graph, Ledger: ledger, Cfg: cfg, Now: time.Now}
}

func (f *Forgetter) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

// PruneTier runs the pruning rule for one tier. HOT is a no-op by
// definition (never pruned).
func (f *Forgetter) PruneTier(ctx context.Context, tier Tier, dryRun bool) (PruneResult, error) {
	result := PruneResult{Tier: tier, DryRun: dryRun}

	switch tier {
	case TierHot:
		return result, nil

	case TierWarm:
		if dryRun {
			return result, nil
		}
		pruned, err := f.Graph.PruneSimilarEdges(ctx, f.Cfg.WarmMinSimilarity)
		if err != nil {
			return result, fmt.Errorf("prune warm tier: %w", err)
		}
		result.EdgesPruned = pruned
		return result, nil

	case TierCold:
		if dryRun {
			return result, nil
		}
		maxImportance := f.Cfg.ColdMinImportance
		maxAccess := f.Cfg.ColdMinAccessCount
		deleted, err := f.Graph.DeleteEventNodesIf(ctx, f.Cfg.WarmHours, &maxImportance, &maxAccess)
		if err != nil {
			return result, fmt.Errorf("prune cold tier: %w", err)
		}
		result.NodesDeleted = deleted
		return result, nil

	case TierArchive:
		if dryRun {
			return result, nil
		}
		deleted, err := f.Graph.DeleteEventNodesIf(ctx, f.Cfg.ColdHours, nil, nil)
		if err != nil {
			return result, fmt.Errorf("prune archive tier: %w", err)
		}
		result.NodesDeleted = deleted
		return result, nil

	default:
		return result, fmt.Errorf("unknown tier %q", tier)
	}
}

// TrimHotWindow trims global ledger entries older than hot_window_days and
// expires JSON documents older than retention_ceiling_days, independently
// of each other. Returns the total number of ledger entries affected
// across both operations.
func (f *Forgetter) TrimHotWindow(ctx context.Context) (int64, error) {
	hotWindow := time.Duration(f.Cfg.HotWindowDays) * 24 * time.Hour
	trimmed, err := f.Ledger.TrimGlobalStream(ctx, hotWindow)
	if err != nil {
		return 0, fmt.Errorf("trim hot window: %w", err)
	}

	ceiling := time.Duration(f.Cfg.RetentionCeilingDays) * 24 * time.Hour
	expired, err := f.Ledger.ExpireDocs(ctx, ceiling)
	if err != nil {
		return 0, fmt.Errorf("trim hot window: %w", err)
	}
	return trimmed + expired, nil
}
