// Package redis adapts engram.Ledger onto Redis: a Stream for the global
// ordered log, Sorted Sets for per-session views and the dedup index, and
// Hashes for keyed JSON event documents. Client construction follows the
// thin-wrapper idiom (ParseURL/NewClient/Ping) common to Redis clients.
package redis

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/arunmenon/Engram/internal/engram"
)

const (
	keyGlobalStream = "engram:ledger:global"
	keyDedup        = "engram:ledger:dedup"
	keySessionFmt   = "engram:ledger:session:%s"
	keyDocFmt       = "engram:ledger:doc:%s"
	keyIdxTypeFmt   = "engram:ledger:idx:type:%s"
	keyIdxAgentFmt  = "engram:ledger:idx:agent:%s"
	keyIdxTraceFmt  = "engram:ledger:idx:trace:%s"
	keyIdxToolFmt   = "engram:ledger:idx:tool:%s"
)

// appendScript performs the dedup-check-and-assign plus the four writes
// atomically. KEYS: [1]=dedup zset, [2]=global stream, [3]=session zset,
// [4]=doc hash, [5..]=secondary index zsets.
// ARGV: [1]=event_id, [2]=occurred_at_ms, [3]=json doc, [4]=ingestion_ms.
// Each secondary index zset gets event_id as member, scored by occurred_at_ms.
const appendScript = `
local dedup_key = KEYS[1]
local stream_key = KEYS[2]
local session_key = KEYS[3]
local doc_key = KEYS[4]

local event_id = ARGV[1]
local occurred_ms = ARGV[2]
local doc_json = ARGV[3]
local ingest_ms = ARGV[4]

local existing = redis.call('HGET', dedup_key .. ':pos', event_id)
if existing then
  return existing
end

local id = redis.call('XADD', stream_key, '*', 'event_id', event_id)
redis.call('ZADD', session_key, occurred_ms, event_id)
redis.call('HSET', doc_key, 'json', doc_json)
redis.call('ZADD', dedup_key, ingest_ms, event_id)
redis.call('HSET', dedup_key .. ':pos', event_id, id)

for i = 5, #KEYS do
  redis.call('ZADD', KEYS[i], occurred_ms, event_id)
end

return id
`

// Ledger adapts engram.Ledger onto a Redis client.
type Ledger struct {
	client     *goredis.Client
	scriptSHA  string
	replicaAck bool
}

// New constructs a Ledger from a redis:// URL using a thin
// ParseURL + NewClient + Ping wrapper.
func New(ctx context.Context, url string, replicaAck bool) (*Ledger, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	l := &Ledger{client: client, replicaAck: replicaAck}
	sha := sha1.Sum([]byte(appendScript))
	l.scriptSHA = hex.EncodeToString(sha[:])
	return l, nil
}

// Close releases the underlying client.
func (l *Ledger) Close() error { return l.client.Close() }

// Client exposes the underlying go-redis client for constructing a
// StreamReader against the same connection.
func (l *Ledger) Client() *goredis.Client { return l.client }

func sessionKey(id string) string  { return fmt.Sprintf(keySessionFmt, id) }
func docKey(id string) string      { return fmt.Sprintf(keyDocFmt, id) }
func idxTypeKey(t string) string   { return fmt.Sprintf(keyIdxTypeFmt, t) }
func idxAgentKey(a string) string  { return fmt.Sprintf(keyIdxAgentFmt, a) }
func idxTraceKey(tr string) string { return fmt.Sprintf(keyIdxTraceFmt, tr) }
func idxToolKey(tl string) string  { return fmt.Sprintf(keyIdxToolFmt, tl) }

func (l *Ledger) Append(ctx context.Context, e engram.Event) (string, error) {
	doc, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("redis: marshal event: %w", err)
	}
	occurredMs := e.OccurredAt.UnixMilli()
	ingestMs := time.Now().UnixMilli()

	keys := []string{
		keyDedup,
		keyGlobalStream,
		sessionKey(e.SessionID),
		docKey(e.EventID.String()),
		idxTypeKey(e.EventType),
		idxAgentKey(e.AgentID),
		idxTraceKey(e.TraceID),
	}
	if e.ToolName != "" {
		keys = append(keys, idxToolKey(e.ToolName))
	}
	argv := []any{e.EventID.String(), occurredMs, string(doc), ingestMs}

	res, err := l.client.EvalSha(ctx, l.scriptSHA, keys, argv...).Result()
	if err != nil && isNoScript(err) {
		res, err = l.client.Eval(ctx, appendScript, keys, argv...).Result()
	}
	if err != nil {
		return "", fmt.Errorf("redis: append script: %w", err)
	}
	if l.replicaAck {
		l.client.Do(ctx, "WAIT", 1, 2000)
	}
	return fmt.Sprint(res), nil
}

func isNoScript(err error) bool {
	return strings.Contains(err.Error(), "NOSCRIPT")
}

func (l *Ledger) AppendBatch(ctx context.Context, events []engram.Event) ([]string, error) {
	positions := make([]string, len(events))
	for i, e := range events {
		pos, err := l.Append(ctx, e)
		if err != nil {
			return nil, fmt.Errorf("redis: append batch item %d: %w", i, err)
		}
		positions[i] = pos
	}
	return positions, nil
}

func (l *Ledger) GetByID(ctx context.Context, eventID string) (engram.Event, bool, error) {
	res, err := l.client.HGet(ctx, docKey(eventID), "json").Result()
	if err == goredis.Nil {
		return engram.Event{}, false, nil
	}
	if err != nil {
		return engram.Event{}, false, fmt.Errorf("redis: get by id: %w", err)
	}
	var e engram.Event
	if err := json.Unmarshal([]byte(res), &e); err != nil {
		return engram.Event{}, false, fmt.Errorf("redis: unmarshal event: %w", err)
	}
	return e, true, nil
}

func (l *Ledger) GetBySession(ctx context.Context, sessionID string, limit int, cursor int) ([]engram.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := l.client.ZRange(ctx, sessionKey(sessionID), int64(cursor), int64(cursor+limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get by session: %w", err)
	}
	return l.hydrate(ctx, ids)
}

func (l *Ledger) hydrate(ctx context.Context, ids []string) ([]engram.Event, error) {
	events := make([]engram.Event, 0, len(ids))
	for _, id := range ids {
		e, ok, err := l.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			events = append(events, e)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].OccurredAt.Before(events[j].OccurredAt) })
	return events, nil
}

// Search intersects the facet indices named in q (application-side, since
// the secondary index is a set of per-facet Sorted Sets) and filters the
// remaining candidates by the requested time range.
func (l *Ledger) Search(ctx context.Context, q engram.SearchQuery) ([]engram.Event, error) {
	limit := q.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var candidateKeys []string
	if q.SessionID != "" {
		candidateKeys = append(candidateKeys, sessionKey(q.SessionID))
	}
	if q.EventType != "" {
		candidateKeys = append(candidateKeys, idxTypeKey(q.EventType))
	}
	if q.AgentID != "" {
		candidateKeys = append(candidateKeys, idxAgentKey(q.AgentID))
	}
	if q.TraceID != "" {
		candidateKeys = append(candidateKeys, idxTraceKey(q.TraceID))
	}
	if q.ToolName != "" {
		candidateKeys = append(candidateKeys, idxToolKey(q.ToolName))
	}

	var ids []string
	var err error
	if len(candidateKeys) == 0 {
		ids, err = l.client.ZRange(ctx, keyGlobalStreamFallback(), 0, -1).Result()
	} else if len(candidateKeys) == 1 {
		ids, err = l.client.ZRange(ctx, candidateKeys[0], 0, -1).Result()
	} else {
		tmpKey := "engram:ledger:tmp:" + uuid.New().String()
		defer l.client.Del(ctx, tmpKey)
		if err := l.client.ZInterStore(ctx, tmpKey, &goredis.ZStore{Keys: candidateKeys}).Err(); err != nil {
			return nil, fmt.Errorf("redis: search intersect: %w", err)
		}
		ids, err = l.client.ZRange(ctx, tmpKey, 0, -1).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("redis: search: %w", err)
	}

	events, err := l.hydrate(ctx, ids)
	if err != nil {
		return nil, err
	}

	filtered := events[:0]
	for _, e := range events {
		if q.After != nil && e.OccurredAt.Before(*q.After) {
			continue
		}
		if q.Before != nil && e.OccurredAt.After(*q.Before) {
			continue
		}
		filtered = append(filtered, e)
	}
	if q.Offset > 0 && q.Offset < len(filtered) {
		filtered = filtered[q.Offset:]
	} else if q.Offset >= len(filtered) {
		filtered = nil
	}
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, nil
}

// keyGlobalStreamFallback is used only when a search has no facet filter;
// in that case the search falls back to the dedup ZSET, whose members are
// every ingested event_id (scored by ingestion time, not occurred_at).
func keyGlobalStreamFallback() string { return keyDedup }

// CleanupDedup removes dedup-index entries older than retention from both
// the score-ordered ZSET and the event_id -> stream_id lookup HASH that
// the append script's duplicate check (HGET dedup_key..':pos') actually
// consults -- the ZSET alone growing bounded doesn't stop the HASH from
// growing unbounded, since both are keyed by the same event_id and written
// together at append time, so the ZSET's score is a valid age proxy for
// the HASH entries too.
func (l *Ledger) CleanupDedup(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UnixMilli()
	ids, err := l.client.ZRangeByScore(ctx, keyDedup, &goredis.ZRangeBy{
		Min: "-inf", Max: strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: list dedup entries: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, keyDedup, "-inf", strconv.FormatInt(cutoff, 10))
	pipe.HDel(ctx, keyDedup+":pos", ids...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis: cleanup dedup: %w", err)
	}
	return int64(len(ids)), nil
}

// TrimGlobalStream trims the global append-order stream to entries whose
// auto-generated id (millis-seq, per XADD "*") is within hotWindow of now.
func (l *Ledger) TrimGlobalStream(ctx context.Context, hotWindow time.Duration) (int64, error) {
	cutoffMs := time.Now().Add(-hotWindow).UnixMilli()
	minID := fmt.Sprintf("%d-0", cutoffMs)
	trimmed, err := l.client.XTrimMinID(ctx, keyGlobalStream, minID).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: trim global stream: %w", err)
	}
	return trimmed, nil
}

// ExpireDocs removes JSON event documents whose dedup-index ingestion
// timestamp predates retentionCeiling, independently of the stream trim.
func (l *Ledger) ExpireDocs(ctx context.Context, retentionCeiling time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retentionCeiling).UnixMilli()
	ids, err := l.client.ZRangeByScore(ctx, keyDedup, &goredis.ZRangeBy{
		Min: "-inf", Max: strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: list expired docs: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	pipe := l.client.Pipeline()
	for _, id := range ids {
		pipe.Del(ctx, docKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis: expire docs: %w", err)
	}
	return int64(len(ids)), nil
}

func (l *Ledger) Ping(ctx context.Context) error {
	if err := l.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}
