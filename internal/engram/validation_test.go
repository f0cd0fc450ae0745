package engram

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEvent() Event {
	return Event{
		EventID:    uuid.New(),
		EventType:  "tool.invoked",
		OccurredAt: time.Now(),
		SessionID:  "sess-1",
		AgentID:    "agent-1",
		TraceID:    "trace-1",
		PayloadRef: "blob://abc",
	}
}

func TestValidator_ValidEventPasses(t *testing.T) {
	v := NewValidator()
	errs, ok := v.Validate(validEvent())
	assert.True(t, ok)
	assert.Empty(t, errs)
}

func TestValidator_MissingRequiredFields(t *testing.T) {
	v := NewValidator()
	errs, ok := v.Validate(Event{})
	require.False(t, ok)

	fields := make(map[string]bool)
	for _, e := range errs {
		fields[e.Field] = true
	}
	for _, want := range []string{"event_id", "event_type", "occurred_at", "session_id", "agent_id", "trace_id", "payload_ref"} {
		assert.True(t, fields[want], "expected error for field %s", want)
	}
}

func TestValidator_EventTypeMustBeDotNamespaced(t *testing.T) {
	v := NewValidator()
	e := validEvent()
	e.EventType = "invoked"
	errs, ok := v.Validate(e)
	require.False(t, ok)
	assert.Equal(t, "event_type", errs[0].Field)
}

func TestValidator_FutureDriftRejected(t *testing.T) {
	v := NewValidator()
	v.Now = func() time.Time { return time.Unix(1000, 0) }
	v.MaxFutureDrift = 5 * time.Second

	e := validEvent()
	e.OccurredAt = time.Unix(1100, 0)
	errs, ok := v.Validate(e)
	require.False(t, ok)

	found := false
	for _, er := range errs {
		if er.Field == "occurred_at" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidator_PayloadRefTooLong(t *testing.T) {
	v := NewValidator()
	e := validEvent()
	long := make([]byte, MaxPayloadRefLen+1)
	for i := range long {
		long[i] = 'a'
	}
	e.PayloadRef = string(long)
	errs, ok := v.Validate(e)
	require.False(t, ok)
	assert.Equal(t, "payload_ref", errs[0].Field)
}

func TestValidator_ParentEventIDMustNotSelfReference(t *testing.T) {
	v := NewValidator()
	e := validEvent()
	id := e.EventID
	e.ParentEventID = &id
	errs, ok := v.Validate(e)
	require.False(t, ok)
	assert.Equal(t, "parent_event_id", errs[0].Field)
}

func TestValidator_EndedAtMustNotPrecedeOccurredAt(t *testing.T) {
	v := NewValidator()
	e := validEvent()
	before := e.OccurredAt.Add(-time.Minute)
	e.EndedAt = &before
	errs, ok := v.Validate(e)
	require.False(t, ok)
	assert.Equal(t, "ended_at", errs[0].Field)
}

func TestValidator_ImportanceHintOutOfRange(t *testing.T) {
	v := NewValidator()
	e := validEvent()
	hi := 11
	e.ImportanceHint = &hi
	errs, ok := v.Validate(e)
	require.False(t, ok)
	assert.Equal(t, "importance_hint", errs[0].Field)
}

func TestNormalize_DefaultsSchemaVersion(t *testing.T) {
	e := validEvent()
	e.SchemaVersion = 0
	out := Normalize(e)
	assert.Equal(t, 1, out.SchemaVersion)
	// Normalize must not mutate the input's copy semantics.
	assert.Equal(t, 0, e.SchemaVersion)
}

func TestEvent_CloneIsIndependent(t *testing.T) {
	e := validEvent()
	hint := 7
	e.ImportanceHint = &hint
	clone := e.Clone()
	*clone.ImportanceHint = 3
	assert.Equal(t, 7, *e.ImportanceHint)
}
