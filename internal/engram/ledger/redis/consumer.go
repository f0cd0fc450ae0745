package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/arunmenon/Engram/internal/engram"
)

// StreamReader adapts engram.StreamReader onto the global Redis Stream's
// consumer groups, one group per engram.ConsumerGroup. Each
// consumer reads its own copy of every ledger entry via XREADGROUP and
// drains its Pending Entries List on startup via XPENDING/XCLAIM-equivalent
// zero-id reads.
type StreamReader struct {
	client     *goredis.Client
	consumerID string
}

// NewStreamReader constructs a StreamReader, creating the consumer group
// for group (if absent) starting from the beginning of the stream.
func NewStreamReader(ctx context.Context, client *goredis.Client, consumerID string, groups ...engram.ConsumerGroup) (*StreamReader, error) {
	for _, g := range groups {
		err := client.XGroupCreateMkStream(ctx, keyGlobalStream, string(g), "0").Err()
		if err != nil && !isBusyGroup(err) {
			return nil, fmt.Errorf("redis: create consumer group %s: %w", g, err)
		}
	}
	return &StreamReader{client: client, consumerID: consumerID}, nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}

// ReadPEL drains entries delivered to this consumer in a prior run but not
// yet acknowledged, by paging through the PEL from id "0" until a read
// returns no entries.
func (r *StreamReader) ReadPEL(ctx context.Context, group engram.ConsumerGroup) ([]engram.StreamEntry, error) {
	var out []engram.StreamEntry
	start := "0"
	for {
		res, err := r.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    string(group),
			Consumer: r.consumerID,
			Streams:  []string{keyGlobalStream, start},
			Count:    100,
		}).Result()
		if err != nil && err != goredis.Nil {
			return nil, fmt.Errorf("redis: read PEL for %s: %w", group, err)
		}
		page := toEntries(res)
		if len(page) == 0 {
			return out, nil
		}
		out = append(out, page...)
		start = page[len(page)-1].ID
	}
}

// ReadNext blocks up to blockTimeout for the next fresh stream entry.
func (r *StreamReader) ReadNext(ctx context.Context, group engram.ConsumerGroup, blockTimeout time.Duration) (engram.StreamEntry, bool, error) {
	res, err := r.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
		Group:    string(group),
		Consumer: r.consumerID,
		Streams:  []string{keyGlobalStream, ">"},
		Count:    1,
		Block:    blockTimeout,
	}).Result()
	if err == goredis.Nil {
		return engram.StreamEntry{}, false, nil
	}
	if err != nil {
		return engram.StreamEntry{}, false, fmt.Errorf("redis: read next for %s: %w", group, err)
	}
	entries := toEntries(res)
	if len(entries) == 0 {
		return engram.StreamEntry{}, false, nil
	}
	return entries[0], true, nil
}

// Ack acknowledges entry for group.
func (r *StreamReader) Ack(ctx context.Context, group engram.ConsumerGroup, entry engram.StreamEntry) error {
	if err := r.client.XAck(ctx, keyGlobalStream, string(group), entry.ID).Err(); err != nil {
		return fmt.Errorf("redis: ack %s for %s: %w", entry.ID, group, err)
	}
	return nil
}

func toEntries(streams []goredis.XStream) []engram.StreamEntry {
	var out []engram.StreamEntry
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			eventID, _ := msg.Values["event_id"].(string)
			out = append(out, engram.StreamEntry{ID: msg.ID, EventID: eventID})
		}
	}
	return out
}
