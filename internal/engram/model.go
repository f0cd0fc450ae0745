// Package engram implements the traceability-first context graph: an
// immutable event ledger projected into a typed knowledge graph, with
// intent-aware retrieval and an Ebbinghaus-style forgetting curve.
package engram

import (
	"encoding/json"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// eventTypePattern matches dot-namespaced event types, e.g. "tool.invoked",
// "llm.completion_received". Known top-level prefixes: agent, tool, llm,
// observation, system, user.
var eventTypePattern = regexp.MustCompile(`^[a-z][a-z0-9]*(\.[a-z][a-z0-9_]*)+$`)

// MaxPayloadRefLen is the maximum length of an Event's payload_ref.
const MaxPayloadRefLen = 2048

// MaxFutureDriftSeconds bounds how far ahead of wall clock occurred_at may be.
const MaxFutureDriftSeconds = 300

// Status is an Event's lifecycle status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusTimeout, "":
		return true
	default:
		return false
	}
}

// EntityType enumerates Entity node kinds.
type EntityType string

const (
	EntityAgent    EntityType = "agent"
	EntityUser     EntityType = "user"
	EntityService  EntityType = "service"
	EntityTool     EntityType = "tool"
	EntityResource EntityType = "resource"
	EntityConcept  EntityType = "concept"
)

// SummaryScope enumerates the scope a Summary node covers.
type SummaryScope string

const (
	ScopeEpisode SummaryScope = "episode"
	ScopeSession SummaryScope = "session"
	ScopeAgent   SummaryScope = "agent"
)

// EdgeType enumerates the typed, directed edge taxonomy.
type EdgeType string

const (
	EdgeFollows         EdgeType = "FOLLOWS"
	EdgeCausedBy        EdgeType = "CAUSED_BY"
	EdgeSimilarTo       EdgeType = "SIMILAR_TO"
	EdgeReferences      EdgeType = "REFERENCES"
	EdgeSummarizes      EdgeType = "SUMMARIZES"
	EdgeSameAs          EdgeType = "SAME_AS"
	EdgeRelatedTo       EdgeType = "RELATED_TO"
	EdgeHasProfile      EdgeType = "HAS_PROFILE"
	EdgeHasPreference   EdgeType = "HAS_PREFERENCE"
	EdgeHasSkill        EdgeType = "HAS_SKILL"
	EdgeExhibitsPattern EdgeType = "EXHIBITS_PATTERN"
	EdgeInterestedIn    EdgeType = "INTERESTED_IN"
	EdgeAbout           EdgeType = "ABOUT"
	EdgeDerivedFrom     EdgeType = "DERIVED_FROM"
	EdgeAbstractedFrom  EdgeType = "ABSTRACTED_FROM"
	EdgeParentSkill     EdgeType = "PARENT_SKILL"
)

// CausalMechanism describes how a CAUSED_BY edge was established.
type CausalMechanism string

const (
	MechanismDirect   CausalMechanism = "direct"
	MechanismInferred CausalMechanism = "inferred"
)

// Event is an immutable ledger record. 
type Event struct {
	EventID        uuid.UUID  `json:"event_id"`
	EventType      string     `json:"event_type"`
	OccurredAt     time.Time  `json:"occurred_at"`
	SessionID      string     `json:"session_id"`
	AgentID        string     `json:"agent_id"`
	TraceID        string     `json:"trace_id"`
	PayloadRef     string     `json:"payload_ref"`
	ToolName       string     `json:"tool_name,omitempty"`
	ParentEventID  *uuid.UUID `json:"parent_event_id,omitempty"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	Status         Status     `json:"status,omitempty"`
	SchemaVersion  int        `json:"schema_version"`
	ImportanceHint *int       `json:"importance_hint,omitempty"`

	// GlobalPosition is assigned by the ledger on append; empty until appended.
	GlobalPosition string `json:"global_position,omitempty"`
}

// Clone returns a deep-enough copy for safe internal reuse.
func (e Event) Clone() Event {
	clone := e
	if e.ParentEventID != nil {
		id := *e.ParentEventID
		clone.ParentEventID = &id
	}
	if e.EndedAt != nil {
		t := *e.EndedAt
		clone.EndedAt = &t
	}
	if e.ImportanceHint != nil {
		h := *e.ImportanceHint
		clone.ImportanceHint = &h
	}
	return clone
}

// EventNode is the graph projection of an Event, with derived attributes.
type EventNode struct {
	Event

	Keywords        []string  `json:"keywords,omitempty"`
	Summary         string    `json:"summary,omitempty"`
	Embedding       []float32 `json:"embedding,omitempty"`
	ImportanceScore float64   `json:"importance_score"`
	AccessCount     int64     `json:"access_count"`
	LastAccessedAt  *time.Time `json:"last_accessed_at,omitempty"`
}

// EntityNode is a resolved real-world entity referenced by events.
type EntityNode struct {
	EntityID      string     `json:"entity_id"`
	Name          string     `json:"name"`
	EntityType    EntityType `json:"entity_type"`
	FirstSeen     time.Time  `json:"first_seen"`
	LastSeen      time.Time  `json:"last_seen"`
	MentionCount  int64      `json:"mention_count"`
}

// TimeRange is an inclusive [First, Last] timestamp span.
type TimeRange struct {
	First time.Time `json:"first"`
	Last  time.Time `json:"last"`
}

// SummaryNode is a deterministically-derived rollup over a set of events.
type SummaryNode struct {
	SummaryID  string       `json:"summary_id"`
	Scope      SummaryScope `json:"scope"`
	ScopeID    string       `json:"scope_id"`
	Content    string       `json:"content"`
	CreatedAt  time.Time    `json:"created_at"`
	EventCount int          `json:"event_count"`
	TimeRange  TimeRange    `json:"time_range"`
}

// AttributeNode is a generic personalization-graph node — Preference, Skill,
// Interest, BehavioralPattern, or Workflow — keyed by Label (the Neo4j
// node label) and ID.
type AttributeNode struct {
	Label string         `json:"label"`
	ID    string         `json:"id"`
	Props map[string]any `json:"props,omitempty"`
}

// Edge is a typed, directed edge between two graph nodes.
type Edge struct {
	Type     EdgeType       `json:"type"`
	SourceID string         `json:"source_id"`
	TargetID string         `json:"target_id"`
	Props    map[string]any `json:"props,omitempty"`
}

// NodeScores is the scoring engine's output surface for one node.
type NodeScores struct {
	DecayScore      float64 `json:"decay_score"`
	RelevanceScore  float64 `json:"relevance_score"`
	ImportanceScore int     `json:"importance_score"`
}

// ScoredNode pairs an EventNode with its computed scores and retrieval metadata.
type ScoredNode struct {
	Node             EventNode  `json:"node"`
	Scores           NodeScores `json:"scores"`
	RetrievalReason  string     `json:"retrieval_reason,omitempty"`
	ProactiveSignal  string     `json:"proactive_signal,omitempty"`
	Depth            int        `json:"depth,omitempty"`
}

// Capacity describes the traversal bounds applied to a retrieval.
type Capacity struct {
	MaxDepth int `json:"max_depth"`
	MaxNodes int `json:"max_nodes"`
}

// IntentMix is a normalized confidence distribution over intent tags.
type IntentMix map[string]float64

// Meta carries retrieval metadata for the Atlas envelope.
type Meta struct {
	QueryLatencyMs  int64     `json:"query_latency_ms"`
	NodesReturned   int       `json:"nodes_returned"`
	Truncated       bool      `json:"truncated"`
	InferredIntents IntentMix `json:"inferred_intents,omitempty"`
	IntentOverride  string    `json:"intent_override,omitempty"`
	SeedNodes       []string  `json:"seed_nodes,omitempty"`
	ProactiveCount  int       `json:"proactive_count"`
	Capacity        Capacity  `json:"capacity"`
}

// AtlasEnvelope is the standard retrieval response shape.
type AtlasEnvelope struct {
	Nodes  map[string]ScoredNode `json:"nodes"`
	Edges  []Edge                `json:"edges"`
	Cursor string                `json:"cursor,omitempty"`
	Meta   Meta                  `json:"meta"`
}

// RawJSON marshals v using the canonical JSON encoding (helper for doc stores).
func RawJSON(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
