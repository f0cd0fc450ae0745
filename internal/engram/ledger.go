package engram

import (
	"context"
	"time"
)

// SearchQuery filters Ledger.Search. Zero values mean "no filter" except
// Limit, which defaults to 100 when zero.
type SearchQuery struct {
	SessionID string
	AgentID   string
	TraceID   string
	EventType string
	ToolName  string
	After     *time.Time
	Before    *time.Time
	Limit     int
	Offset    int
}

// Ledger is the append-only event log port. Implementations
// MUST make Append idempotent by event_id and MUST assign a monotonic,
// total-ordered GlobalPosition.
type Ledger interface {
	// Append atomically persists e (if not already ingested) and returns the
	// assigned or pre-existing global_position.
	Append(ctx context.Context, e Event) (string, error)

	// AppendBatch appends each event individually-atomically, preserving
	// input order in the returned positions slice.
	AppendBatch(ctx context.Context, events []Event) ([]string, error)

	// GetByID returns the event with the given id, or (Event{}, false, nil)
	// if absent.
	GetByID(ctx context.Context, eventID string) (Event, bool, error)

	// GetBySession returns events for sessionID ordered by occurred_at
	// ascending, paged by limit/cursor (cursor is a numeric offset).
	GetBySession(ctx context.Context, sessionID string, limit int, cursor int) ([]Event, error)

	// Search returns events matching q, ordered by occurred_at ascending.
	Search(ctx context.Context, q SearchQuery) ([]Event, error)

	// CleanupDedup removes dedup entries (and their corresponding position
	// lookups) older than retention, returning the number removed.
	CleanupDedup(ctx context.Context, retention time.Duration) (int64, error)

	// TrimGlobalStream trims the global append-order log to entries newer
	// than hotWindow, returning the number of entries trimmed.
	TrimGlobalStream(ctx context.Context, hotWindow time.Duration) (int64, error)

	// ExpireDocs removes keyed event documents older than retentionCeiling,
	// independently of the global stream trim, returning the number removed.
	ExpireDocs(ctx context.Context, retentionCeiling time.Duration) (int64, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}

// Default ledger tunables.
const (
	DefaultHotWindowDays       = 7
	DefaultRetentionCeilingDays = 90
)
