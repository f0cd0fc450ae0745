package engram

import (
	"fmt"
	"time"
)

// ValidationError holds one field-level validation failure: a collected
// list of field/message pairs rather than a single combined error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("%d validation errors: %s (and %d more)", len(e), e[0].Error(), len(e)-1)
}

// Validator checks Event envelope invariants
type Validator struct {
	MaxFutureDrift time.Duration
	Now            func() time.Time
}

// NewValidator returns a Validator with the documented default drift bound.
func NewValidator() *Validator {
	return &Validator{
		MaxFutureDrift: MaxFutureDriftSeconds * time.Second,
		Now:            time.Now,
	}
}

// Validate rejects an event against the envelope invariant rule list,
// returning the collected errors. A nil return (with ok=true) means the
// event is valid.
func (v *Validator) Validate(e Event) (ValidationErrors, bool) {
	var errs ValidationErrors

	if e.EventID == [16]byte{} {
		errs = append(errs, &ValidationError{Field: "event_id", Message: "required field is missing"})
	}
	if e.EventType == "" {
		errs = append(errs, &ValidationError{Field: "event_type", Message: "required field is missing"})
	} else if !eventTypePattern.MatchString(e.EventType) {
		errs = append(errs, &ValidationError{Field: "event_type", Message: "must be dot-namespaced, matching ^[a-z][a-z0-9]*(\\.[a-z][a-z0-9_]*)+$"})
	}
	if e.OccurredAt.IsZero() {
		errs = append(errs, &ValidationError{Field: "occurred_at", Message: "required field is missing"})
	} else {
		now := v.now()
		drift := v.maxDrift()
		if e.OccurredAt.After(now.Add(drift)) {
			errs = append(errs, &ValidationError{Field: "occurred_at", Message: fmt.Sprintf("more than %s ahead of wall clock", drift)})
		}
	}
	if e.SessionID == "" {
		errs = append(errs, &ValidationError{Field: "session_id", Message: "required field is missing"})
	}
	if e.AgentID == "" {
		errs = append(errs, &ValidationError{Field: "agent_id", Message: "required field is missing"})
	}
	if e.TraceID == "" {
		errs = append(errs, &ValidationError{Field: "trace_id", Message: "required field is missing"})
	}
	if e.PayloadRef == "" {
		errs = append(errs, &ValidationError{Field: "payload_ref", Message: "required field is missing"})
	} else if len(e.PayloadRef) > MaxPayloadRefLen {
		errs = append(errs, &ValidationError{Field: "payload_ref", Message: fmt.Sprintf("must not exceed %d characters", MaxPayloadRefLen)})
	}
	if e.ParentEventID != nil && *e.ParentEventID == e.EventID {
		errs = append(errs, &ValidationError{Field: "parent_event_id", Message: "must not equal event_id"})
	}
	if e.EndedAt != nil && e.EndedAt.Before(e.OccurredAt) {
		errs = append(errs, &ValidationError{Field: "ended_at", Message: "must be >= occurred_at"})
	}
	if !e.Status.Valid() {
		errs = append(errs, &ValidationError{Field: "status", Message: "must be one of pending, running, completed, failed, timeout"})
	}
	if e.SchemaVersion != 0 && e.SchemaVersion < 1 {
		errs = append(errs, &ValidationError{Field: "schema_version", Message: "must be >= 1"})
	}
	if e.ImportanceHint != nil && (*e.ImportanceHint < 1 || *e.ImportanceHint > 10) {
		errs = append(errs, &ValidationError{Field: "importance_hint", Message: "must be in [1,10]"})
	}

	if len(errs) > 0 {
		return errs, false
	}
	return nil, true
}

func (v *Validator) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

func (v *Validator) maxDrift() time.Duration {
	if v.MaxFutureDrift > 0 {
		return v.MaxFutureDrift
	}
	return MaxFutureDriftSeconds * time.Second
}

// Normalize fills in defaults: schema_version defaults to 1.
func Normalize(e Event) Event {
	out := e.Clone()
	if out.SchemaVersion == 0 {
		out.SchemaVersion = 1
	}
	return out
}
