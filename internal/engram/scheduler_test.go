package engram

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStreamReader is a minimal in-memory StreamReader: a fixed PEL backlog
// drained first, then a channel of fresh entries, mirroring the real
// Redis-backed reader's two-phase read loop closely enough to exercise
// Scheduler.Run without a live broker.
type fakeStreamReader struct {
	mu      sync.Mutex
	pel     []StreamEntry
	fresh   chan StreamEntry
	acked   []StreamEntry
	ackErr  error
	readErr error
}

func newFakeStreamReader(pel []StreamEntry) *fakeStreamReader {
	return &fakeStreamReader{pel: pel, fresh: make(chan StreamEntry, 16)}
}

func (f *fakeStreamReader) ReadPEL(ctx context.Context, group ConsumerGroup) ([]StreamEntry, error) {
	return f.pel, nil
}

func (f *fakeStreamReader) ReadNext(ctx context.Context, group ConsumerGroup, blockTimeout time.Duration) (StreamEntry, bool, error) {
	if f.readErr != nil {
		return StreamEntry{}, false, f.readErr
	}
	select {
	case e := <-f.fresh:
		return e, true, nil
	case <-time.After(10 * time.Millisecond):
		return StreamEntry{}, false, nil
	case <-ctx.Done():
		return StreamEntry{}, false, nil
	}
}

func (f *fakeStreamReader) Ack(ctx context.Context, group ConsumerGroup, entry StreamEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ackErr != nil {
		return f.ackErr
	}
	f.acked = append(f.acked, entry)
	return nil
}

func (f *fakeStreamReader) ackedEntries() []StreamEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]StreamEntry, len(f.acked))
	copy(out, f.acked)
	return out
}

func TestScheduler_DrainsPELBeforeFreshEntries(t *testing.T) {
	reader := newFakeStreamReader([]StreamEntry{{ID: "0-1", EventID: "ev-pel"}})
	s := NewScheduler(reader, nil)

	var processed []string
	var mu sync.Mutex
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx, GroupProjector, func(ctx context.Context, entry StreamEntry) error {
			mu.Lock()
			processed = append(processed, entry.EventID)
			mu.Unlock()
			if entry.EventID == "ev-fresh" {
				cancel()
			}
			return nil
		})
		close(done)
	}()

	reader.fresh <- StreamEntry{ID: "1-1", EventID: "ev-fresh"}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after context cancellation")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, processed, 2)
	assert.Equal(t, "ev-pel", processed[0])
	assert.Equal(t, "ev-fresh", processed[1])
}

func TestScheduler_FailedEntryIsNotAcked(t *testing.T) {
	reader := newFakeStreamReader([]StreamEntry{{ID: "0-1", EventID: "ev-fail"}})
	s := NewScheduler(reader, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, GroupEnricher, func(ctx context.Context, entry StreamEntry) error {
			cancel()
			return assert.AnError
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	assert.Empty(t, reader.ackedEntries())
}

func TestScheduler_SuccessfulEntryIsAcked(t *testing.T) {
	reader := newFakeStreamReader([]StreamEntry{{ID: "0-1", EventID: "ev-ok"}})
	s := NewScheduler(reader, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, GroupExtractor, func(ctx context.Context, entry StreamEntry) error {
			cancel()
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	acked := reader.ackedEntries()
	require.Len(t, acked, 1)
	assert.Equal(t, "ev-ok", acked[0].EventID)
}
