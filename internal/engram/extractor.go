package engram

import (
	"context"
	"fmt"
	"time"
)

// Extractor runs the pluggable ExtractionService over a session's events and
// persists the returned preferences/skills/interests into the
// personalization subgraph. Extraction itself is an external collaborator;
// this type owns only the confidence-ceiling application and the graph writes.
type Extractor struct {
	Graph   GraphStore
	Service ExtractionService
}

// NewExtractor constructs an Extractor. A nil service falls back to
// NoOpExtractionService, a NoOpEmbedder-style default-port idiom.
func NewExtractor(graph GraphStore, svc ExtractionService) *Extractor {
	if svc == nil {
		svc = NoOpExtractionService{}
	}
	return &Extractor{Graph: graph, Service: svc}
}

// agentEntityID is the Entity node id personalization facts attach to.
// Personalization edges hang off an owning entity, but Event carries no
// distinct "user" identifier, so the agent is the extraction
// target, consistent with the /v1/users/{user_id} subresources keying off
// the same "<kind>-<id>" convention used in internal/httpapi.
func agentEntityID(agentID string) string { return "agent-" + agentID }

// ExtractSession runs the configured extraction service over a session's
// events and writes every returned fact, with its confidence ceiling
// applied, into the personalization subgraph.
func (ex *Extractor) ExtractSession(ctx context.Context, sessionID, agentID string, events []Event) error {
	result, err := ex.Service.ExtractFromSession(ctx, events, sessionID, agentID)
	if err != nil {
		return fmt.Errorf("extract session %s: %w", sessionID, err)
	}

	entityID := agentEntityID(agentID)
	now := time.Now()

	for _, pref := range result.Preferences {
		confidence := ApplyConfidenceCeiling(pref.Confidence, pref.Source)
		attrID := fmt.Sprintf("pref-%s-%s", entityID, pref.Key)
		node := AttributeNode{
			Label: "Preference",
			ID:    attrID,
			Props: map[string]any{
				"key": pref.Key, "value": pref.Value,
				"confidence": confidence, "source": string(pref.Source),
				"source_quote": pref.SourceQuote, "updated_at": now.Format(time.RFC3339Nano),
			},
		}
		if err := ex.Graph.MergeAttributeNode(ctx, node); err != nil {
			return fmt.Errorf("extract session %s: merge preference %s: %w", sessionID, pref.Key, err)
		}
		if err := ex.Graph.LinkEntityToAttribute(ctx, entityID, EdgeHasPreference, attrID, map[string]any{"confidence": confidence}); err != nil {
			return fmt.Errorf("extract session %s: link preference %s: %w", sessionID, pref.Key, err)
		}
	}

	for _, skill := range result.Skills {
		confidence := ApplyConfidenceCeiling(skill.Confidence, skill.Source)
		attrID := fmt.Sprintf("skill-%s-%s", entityID, skill.Name)
		node := AttributeNode{
			Label: "Skill",
			ID:    attrID,
			Props: map[string]any{
				"name": skill.Name, "confidence": confidence,
				"source": string(skill.Source), "source_quote": skill.SourceQuote,
				"updated_at": now.Format(time.RFC3339Nano),
			},
		}
		if err := ex.Graph.MergeAttributeNode(ctx, node); err != nil {
			return fmt.Errorf("extract session %s: merge skill %s: %w", sessionID, skill.Name, err)
		}
		if err := ex.Graph.LinkEntityToAttribute(ctx, entityID, EdgeHasSkill, attrID, map[string]any{"confidence": confidence}); err != nil {
			return fmt.Errorf("extract session %s: link skill %s: %w", sessionID, skill.Name, err)
		}
	}

	for _, interest := range result.Interests {
		confidence := ApplyConfidenceCeiling(interest.Confidence, interest.Source)
		attrID := fmt.Sprintf("interest-%s-%s", entityID, interest.Topic)
		node := AttributeNode{
			Label: "Interest",
			ID:    attrID,
			Props: map[string]any{
				"topic": interest.Topic, "confidence": confidence,
				"source": string(interest.Source), "source_quote": interest.SourceQuote,
				"updated_at": now.Format(time.RFC3339Nano),
			},
		}
		if err := ex.Graph.MergeAttributeNode(ctx, node); err != nil {
			return fmt.Errorf("extract session %s: merge interest %s: %w", sessionID, interest.Topic, err)
		}
		if err := ex.Graph.LinkEntityToAttribute(ctx, entityID, EdgeInterestedIn, attrID, map[string]any{"confidence": confidence}); err != nil {
			return fmt.Errorf("extract session %s: link interest %s: %w", sessionID, interest.Topic, err)
		}
	}

	for _, ent := range result.Entities {
		confidence := ApplyConfidenceCeiling(ent.Confidence, ent.Source)
		if ent.SourceQuote == "" {
			// source_quote traceability is enforced against the originating
			// transcript by the extraction service itself; core
			// only requires a non-empty citation before writing the fact.
			continue
		}
		entity := EntityNode{
			EntityID:     fmt.Sprintf("entity-%s-%s", entityID, ent.Name),
			Name:         ent.Name,
			EntityType:   ent.EntityType,
			FirstSeen:    now,
			LastSeen:     now,
			MentionCount: 1,
		}
		if err := ex.Graph.MergeEntityNode(ctx, entity); err != nil {
			return fmt.Errorf("extract session %s: merge entity %s: %w", sessionID, ent.Name, err)
		}
		if err := ex.Graph.CreateEdge(ctx, Edge{
			Type: EdgeAbout, SourceID: entityID, TargetID: entity.EntityID,
			Props: map[string]any{"confidence": confidence},
		}); err != nil {
			return fmt.Errorf("extract session %s: link entity %s: %w", sessionID, ent.Name, err)
		}
	}

	return nil
}
