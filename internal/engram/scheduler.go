package engram

import (
	"context"
	"time"
)

// ConsumerGroup names the four projection-pipeline consumers.
type ConsumerGroup string

const (
	GroupProjector    ConsumerGroup = "projector"
	GroupEnricher     ConsumerGroup = "enricher"
	GroupExtractor    ConsumerGroup = "extractor"
	GroupConsolidator ConsumerGroup = "consolidator"
)

// StreamReader abstracts the ledger's consumer-group read primitive so the
// scheduler can be exercised against a fake in tests. A real implementation
// reads from Redis Streams via XREADGROUP, draining the PEL before fresh
// entries.
type StreamReader interface {
	// ReadPEL returns pending (unacknowledged) entries from a prior run, or
	// an empty slice once the PEL is drained.
	ReadPEL(ctx context.Context, group ConsumerGroup) ([]StreamEntry, error)
	// ReadNext blocks up to blockTimeout for the next fresh entry; returns a
	// zero entry (ok=false) on timeout, which is not an error.
	ReadNext(ctx context.Context, group ConsumerGroup, blockTimeout time.Duration) (StreamEntry, bool, error)
	// Ack acknowledges successful processing of an entry.
	Ack(ctx context.Context, group ConsumerGroup, entry StreamEntry) error
}

// StreamEntry is one ledger entry delivered to a consumer group.
type StreamEntry struct {
	ID      string
	EventID string
}

// ConsumerFunc processes one ledger entry's event. Returning an error
// leaves the entry unacknowledged for PEL redelivery.
type ConsumerFunc func(ctx context.Context, entry StreamEntry) error

// Scheduler runs one goroutine per consumer group, each sequential
// internally and independent across groups. Loops respond to a
// cooperative stop via context cancellation: after finishing the current
// message they exit.
type Scheduler struct {
	Reader       StreamReader
	BlockTimeout time.Duration
	Logger       *Logger
}

// NewScheduler constructs a Scheduler with the documented default 5s block
// timeout.
func NewScheduler(reader StreamReader, logger *Logger) *Scheduler {
	return &Scheduler{Reader: reader, BlockTimeout: 5 * time.Second, Logger: logger}
}

// Run starts group's consumer loop: drain the PEL, then read fresh entries
// until ctx is cancelled, running fn on each. Blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context, group ConsumerGroup, fn ConsumerFunc) error {
	pending, err := s.Reader.ReadPEL(ctx, group)
	if err != nil {
		return err
	}
	for _, entry := range pending {
		s.process(ctx, group, entry, fn)
	}

	blockTimeout := s.BlockTimeout
	if blockTimeout <= 0 {
		blockTimeout = 5 * time.Second
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		entry, ok, err := s.Reader.ReadNext(ctx, group, blockTimeout)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Errorf("scheduler: %s: read next: %v", group, err)
			}
			continue
		}
		if !ok {
			// Block timeout elapsed with nothing to read; loop continues.
			continue
		}
		s.process(ctx, group, entry, fn)
	}
}

func (s *Scheduler) process(ctx context.Context, group ConsumerGroup, entry StreamEntry, fn ConsumerFunc) {
	if err := fn(ctx, entry); err != nil {
		if s.Logger != nil {
			s.Logger.Errorf("scheduler: %s: entry %s: %v", group, entry.ID, err)
		}
		// Left unacknowledged; PEL redelivers on next cycle.
		return
	}
	if err := s.Reader.Ack(ctx, group, entry); err != nil && s.Logger != nil {
		s.Logger.Errorf("scheduler: %s: ack entry %s: %v", group, entry.ID, err)
	}
}
