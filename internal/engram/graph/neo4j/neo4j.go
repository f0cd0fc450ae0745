// Package neo4j adapts engram.GraphStore onto a real Neo4j instance via the
// official Go driver. Write-parameter marshaling (building []map[string]any
// rows for UNWIND-based batched MERGE) follows the pattern used by a
// concept-graph adapter's Neo4j integration.
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/arunmenon/Engram/internal/engram"
	"github.com/arunmenon/Engram/internal/engram/graph/queries"
)

// Store adapts engram.GraphStore onto Neo4j.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
}

// New constructs a Store against the given bolt/neo4j URI.
func New(ctx context.Context, uri, username, password, database string) (*Store, error) {
	drv, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j: new driver: %w", err)
	}
	if err := drv.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}
	if database == "" {
		database = "neo4j"
	}
	return &Store{driver: drv, database: database}, nil
}

// Close releases the underlying driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Store) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database, AccessMode: mode})
}

func (s *Store) MergeEventNode(ctx context.Context, n engram.EventNode) error {
	sess := s.session(ctx, neo4j.AccessModeWrite)
	defer sess.Close(ctx)

	var parentID any
	if n.ParentEventID != nil {
		parentID = n.ParentEventID.String()
	}
	var endedAt any
	if n.EndedAt != nil {
		endedAt = n.EndedAt.Format(time.RFC3339Nano)
	}
	var lastAccessed any
	if n.LastAccessedAt != nil {
		lastAccessed = n.LastAccessedAt.Format(time.RFC3339Nano)
	}

	params := map[string]any{
		"event_id":          n.EventID.String(),
		"event_type":        n.EventType,
		"occurred_at":       n.OccurredAt.Format(time.RFC3339Nano),
		"session_id":        n.SessionID,
		"agent_id":          n.AgentID,
		"trace_id":          n.TraceID,
		"payload_ref":       n.PayloadRef,
		"tool_name":         n.ToolName,
		"parent_event_id":   parentID,
		"ended_at":          endedAt,
		"status":            string(n.Status),
		"schema_version":    n.SchemaVersion,
		"keywords":          n.Keywords,
		"summary":           n.Summary,
		"embedding":         toFloat64Slice(n.Embedding),
		"importance_score":  n.ImportanceScore,
		"access_count":      n.AccessCount,
		"last_accessed_at":  lastAccessed,
	}
	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, queries.MergeEventNode, params)
	})
	return err
}

func (s *Store) MergeEntityNode(ctx context.Context, n engram.EntityNode) error {
	sess := s.session(ctx, neo4j.AccessModeWrite)
	defer sess.Close(ctx)

	params := map[string]any{
		"entity_id":     n.EntityID,
		"name":          n.Name,
		"entity_type":   string(n.EntityType),
		"first_seen":    n.FirstSeen.Format(time.RFC3339Nano),
		"last_seen":     n.LastSeen.Format(time.RFC3339Nano),
		"mention_count": n.MentionCount,
	}
	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, queries.MergeEntityNode, params)
	})
	return err
}

func (s *Store) MergeSummaryNode(ctx context.Context, n engram.SummaryNode) error {
	sess := s.session(ctx, neo4j.AccessModeWrite)
	defer sess.Close(ctx)

	params := map[string]any{
		"summary_id":       n.SummaryID,
		"scope":            string(n.Scope),
		"scope_id":         n.ScopeID,
		"content":          n.Content,
		"created_at":       n.CreatedAt.Format(time.RFC3339Nano),
		"event_count":      n.EventCount,
		"time_range_first": n.TimeRange.First.Format(time.RFC3339Nano),
		"time_range_last":  n.TimeRange.Last.Format(time.RFC3339Nano),
	}
	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, queries.MergeSummaryNode, params)
	})
	return err
}

func (s *Store) MergeAttributeNode(ctx context.Context, n engram.AttributeNode) error {
	sess := s.session(ctx, neo4j.AccessModeWrite)
	defer sess.Close(ctx)

	q := queries.MergeAttributeNode(n.Label)
	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, q, map[string]any{"id": n.ID, "props": n.Props})
	})
	return err
}

func (s *Store) LinkEntityToAttribute(ctx context.Context, entityID string, edgeType engram.EdgeType, attributeID string, props map[string]any) error {
	sess := s.session(ctx, neo4j.AccessModeWrite)
	defer sess.Close(ctx)

	q := queries.LinkEntityToAttribute(string(edgeType))
	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, q, map[string]any{
			"entity_id":    entityID,
			"attribute_id": attributeID,
			"props":        props,
		})
	})
	return err
}

func (s *Store) CreateEdge(ctx context.Context, e engram.Edge) error {
	return s.CreateEdgesBatch(ctx, []engram.Edge{e})
}

// CreateEdgesBatch groups by type: FOLLOWS and CAUSED_BY (the high-volume
// types) use a single UNWIND-based batched MERGE; other types
// fall back to one MERGE per edge. All run inside one write transaction.
func (s *Store) CreateEdgesBatch(ctx context.Context, edges []engram.Edge) error {
	if len(edges) == 0 {
		return nil
	}
	sess := s.session(ctx, neo4j.AccessModeWrite)
	defer sess.Close(ctx)

	var follows, causedBy []engram.Edge
	var rest []engram.Edge
	for _, e := range edges {
		switch e.Type {
		case engram.EdgeFollows:
			follows = append(follows, e)
		case engram.EdgeCausedBy:
			causedBy = append(causedBy, e)
		default:
			rest = append(rest, e)
		}
	}

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if len(follows) > 0 {
			rows := make([]map[string]any, 0, len(follows))
			for _, e := range follows {
				rows = append(rows, map[string]any{
					"source_id":  e.SourceID,
					"target_id":  e.TargetID,
					"session_id": e.Props["session_id"],
					"delta_ms":   e.Props["delta_ms"],
				})
			}
			if _, err := tx.Run(ctx, queries.MergeFollowsBatch, map[string]any{"rows": rows}); err != nil {
				return nil, fmt.Errorf("merge follows batch: %w", err)
			}
		}
		if len(causedBy) > 0 {
			rows := make([]map[string]any, 0, len(causedBy))
			for _, e := range causedBy {
				rows = append(rows, map[string]any{
					"source_id": e.SourceID,
					"target_id": e.TargetID,
					"mechanism": e.Props["mechanism"],
				})
			}
			if _, err := tx.Run(ctx, queries.MergeCausedByBatch, map[string]any{"rows": rows}); err != nil {
				return nil, fmt.Errorf("merge caused_by batch: %w", err)
			}
		}
		for _, e := range rest {
			q := fmt.Sprintf(queries.MergeGenericEdge, e.Type)
			if _, err := tx.Run(ctx, q, map[string]any{
				"source_id": e.SourceID,
				"target_id": e.TargetID,
				"props":     e.Props,
			}); err != nil {
				return nil, fmt.Errorf("merge edge %s: %w", e.Type, err)
			}
		}
		return nil, nil
	})
	return err
}

func (s *Store) EnsureConstraints(ctx context.Context) error {
	sess := s.session(ctx, neo4j.AccessModeWrite)
	defer sess.Close(ctx)

	for _, q := range []string{queries.EnsureEventConstraint, queries.EnsureEntityConstraint, queries.EnsureSummaryConstraint} {
		if _, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			return tx.Run(ctx, q, nil)
		}); err != nil {
			return fmt.Errorf("ensure constraints: %w", err)
		}
	}
	return nil
}

func (s *Store) GetEventNode(ctx context.Context, eventID string) (engram.EventNode, bool, error) {
	sess := s.session(ctx, neo4j.AccessModeRead)
	defer sess.Close(ctx)

	res, err := sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		r, err := tx.Run(ctx, queries.GetEventNode, map[string]any{"event_id": eventID})
		if err != nil {
			return nil, err
		}
		rec, err := r.Single(ctx)
		if err != nil {
			return nil, nil // not found
		}
		raw, _, err := neo4j.GetRecordValue[neo4j.Node](rec, "e")
		if err != nil {
			return nil, err
		}
		return raw, nil
	})
	if err != nil {
		return engram.EventNode{}, false, err
	}
	if res == nil {
		return engram.EventNode{}, false, nil
	}
	return nodeToEventNode(res.(neo4j.Node)), true, nil
}

func (s *Store) GetEntityNode(ctx context.Context, entityID string) (engram.EntityNode, bool, error) {
	sess := s.session(ctx, neo4j.AccessModeRead)
	defer sess.Close(ctx)

	res, err := sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		r, err := tx.Run(ctx, queries.GetEntityNode, map[string]any{"entity_id": entityID})
		if err != nil {
			return nil, err
		}
		rec, err := r.Single(ctx)
		if err != nil {
			return nil, nil
		}
		n, _, err := neo4j.GetRecordValue[neo4j.Node](rec, "n")
		if err != nil {
			return nil, err
		}
		return n, nil
	})
	if err != nil {
		return engram.EntityNode{}, false, err
	}
	if res == nil {
		return engram.EntityNode{}, false, nil
	}
	n := res.(neo4j.Node)
	get := func(k string) string {
		v, _ := n.Props[k].(string)
		return v
	}
	firstSeen, _ := time.Parse(time.RFC3339Nano, get("first_seen"))
	lastSeen, _ := time.Parse(time.RFC3339Nano, get("last_seen"))
	mentionCount, _ := n.Props["mention_count"].(int64)
	return engram.EntityNode{
		EntityID:     get("entity_id"),
		Name:         get("name"),
		EntityType:   engram.EntityType(get("entity_type")),
		FirstSeen:    firstSeen,
		LastSeen:     lastSeen,
		MentionCount: mentionCount,
	}, true, nil
}

func (s *Store) GetConnectedEvents(ctx context.Context, entityID string) ([]engram.EventNode, error) {
	sess := s.session(ctx, neo4j.AccessModeRead)
	defer sess.Close(ctx)

	out, err := sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		r, err := tx.Run(ctx, queries.GetConnectedEvents, map[string]any{"entity_id": entityID})
		if err != nil {
			return nil, err
		}
		records, err := r.Collect(ctx)
		if err != nil {
			return nil, err
		}
		var result []engram.EventNode
		for _, rec := range records {
			n, _, err := neo4j.GetRecordValue[neo4j.Node](rec, "e")
			if err != nil {
				continue
			}
			result = append(result, nodeToEventNode(n))
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]engram.EventNode), nil
}

func (s *Store) Neighbors(ctx context.Context, nodeID string) ([]engram.NeighborEdge, error) {
	sess := s.session(ctx, neo4j.AccessModeRead)
	defer sess.Close(ctx)

	out, err := sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		r, err := tx.Run(ctx, queries.Neighbors, map[string]any{"node_id": nodeID})
		if err != nil {
			return nil, err
		}
		var result []engram.NeighborEdge
		records, err := r.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			relType, _ := rec.Get("rel_type")
			relProps, _ := rec.Get("rel_props")
			bNode, _, err := neo4j.GetRecordValue[neo4j.Node](rec, "b")
			if err != nil {
				continue
			}
			props, _ := relProps.(map[string]any)
			result = append(result, engram.NeighborEdge{
				Edge: engram.Edge{
					Type:     engram.EdgeType(fmt.Sprint(relType)),
					SourceID: nodeID,
					TargetID: fmt.Sprint(bNode.Props["event_id"]),
					Props:    props,
				},
				Event: nodeToEventNode(bNode),
			})
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]engram.NeighborEdge), nil
}

func (s *Store) TraceCausedBy(ctx context.Context, nodeID string, maxDepth int) ([]engram.LineagePath, error) {
	sess := s.session(ctx, neo4j.AccessModeRead)
	defer sess.Close(ctx)

	q := queries.TraceCausedByQuery(maxDepth)
	out, err := sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		r, err := tx.Run(ctx, q, map[string]any{"node_id": nodeID})
		if err != nil {
			return nil, err
		}
		records, err := r.Collect(ctx)
		if err != nil {
			return nil, err
		}
		var result []engram.LineagePath
		for _, rec := range records {
			bNode, _, err := neo4j.GetRecordValue[neo4j.Node](rec, "b")
			if err != nil {
				continue
			}
			depthVal, _ := rec.Get("depth")
			depth, _ := depthVal.(int64)

			node := nodeToEventNode(bNode)
			var edge engram.Edge
			if relVal, ok := rec.Get("last_rel"); ok && relVal != nil {
				if rel, ok := relVal.(neo4j.Relationship); ok {
					prevID := nodeID
					if prevVal, ok := rec.Get("prev_event_id"); ok && prevVal != nil {
						prevID = fmt.Sprint(prevVal)
					}
					edge = engram.Edge{
						Type:     engram.EdgeType(rel.Type),
						SourceID: prevID,
						TargetID: node.EventID.String(),
						Props:    rel.Props,
					}
				}
			}
			result = append(result, engram.LineagePath{
				Node:  node,
				Depth: int(depth),
				Edge:  edge,
			})
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]engram.LineagePath), nil
}

func (s *Store) InDegree(ctx context.Context, nodeID string) (int64, error) {
	sess := s.session(ctx, neo4j.AccessModeRead)
	defer sess.Close(ctx)

	out, err := sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		r, err := tx.Run(ctx, queries.InDegree, map[string]any{"node_id": nodeID})
		if err != nil {
			return nil, err
		}
		rec, err := r.Single(ctx)
		if err != nil {
			return int64(0), nil
		}
		v, _ := rec.Get("in_degree")
		n, _ := v.(int64)
		return n, nil
	})
	if err != nil {
		return 0, err
	}
	return out.(int64), nil
}

func (s *Store) BumpAccess(ctx context.Context, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	sess := s.session(ctx, neo4j.AccessModeWrite)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, queries.BumpAccess, map[string]any{
			"event_ids": eventIDs,
			"now":       time.Now().Format(time.RFC3339Nano),
		})
	})
	return err
}

func (s *Store) PruneSimilarEdges(ctx context.Context, minSimilarity float64) (int64, error) {
	sess := s.session(ctx, neo4j.AccessModeWrite)
	defer sess.Close(ctx)

	out, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		r, err := tx.Run(ctx, queries.PruneSimilarEdges, map[string]any{"min_similarity": minSimilarity})
		if err != nil {
			return nil, err
		}
		rec, err := r.Single(ctx)
		if err != nil {
			return int64(0), nil
		}
		v, _ := rec.Get("pruned")
		n, _ := v.(int64)
		return n, nil
	})
	if err != nil {
		return 0, err
	}
	return out.(int64), nil
}

func (s *Store) DeleteEventNodesIf(ctx context.Context, olderThanHours float64, maxImportance *float64, maxAccessCount *int64) (int64, error) {
	sess := s.session(ctx, neo4j.AccessModeWrite)
	defer sess.Close(ctx)

	cutoff := time.Now().Add(-time.Duration(olderThanHours * float64(time.Hour))).Format(time.RFC3339Nano)
	params := map[string]any{
		"cutoff":           cutoff,
		"max_importance":   nil,
		"max_access_count": nil,
	}
	if maxImportance != nil {
		params["max_importance"] = *maxImportance
	}
	if maxAccessCount != nil {
		params["max_access_count"] = *maxAccessCount
	}

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, queries.DeleteEventNodesOlderThan, params)
	})
	return 0, err
}

func (s *Store) DeleteAttributeSubgraph(ctx context.Context, entityID string) (int64, error) {
	sess := s.session(ctx, neo4j.AccessModeWrite)
	defer sess.Close(ctx)

	out, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		r, err := tx.Run(ctx, queries.DeleteAttributeSubgraph, map[string]any{"entity_id": entityID})
		if err != nil {
			return nil, err
		}
		rec, err := r.Single(ctx)
		if err != nil {
			return int64(0), nil
		}
		v, _ := rec.Get("deleted")
		n, _ := v.(int64)
		return n, nil
	})
	if err != nil {
		return 0, fmt.Errorf("neo4j: delete attribute subgraph: %w", err)
	}
	return out.(int64), nil
}

func (s *Store) Ping(ctx context.Context) error {
	sess := s.session(ctx, neo4j.AccessModeRead)
	defer sess.Close(ctx)

	_, err := sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		r, err := tx.Run(ctx, queries.Ping, nil)
		if err != nil {
			return nil, err
		}
		_, err = r.Single(ctx)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("neo4j: ping: %w", err)
	}
	return nil
}

func nodeToEventNode(n neo4j.Node) engram.EventNode {
	get := func(k string) string {
		v, _ := n.Props[k].(string)
		return v
	}
	occurredAt, _ := time.Parse(time.RFC3339Nano, get("occurred_at"))

	var parentID *uuid.UUID
	if raw := get("parent_event_id"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			parentID = &id
		}
	}
	var endedAt *time.Time
	if raw := get("ended_at"); raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			endedAt = &t
		}
	}
	var lastAccessed *time.Time
	if raw := get("last_accessed_at"); raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			lastAccessed = &t
		}
	}

	eventID, _ := uuid.Parse(get("event_id"))
	schemaVersion, _ := n.Props["schema_version"].(int64)
	accessCount, _ := n.Props["access_count"].(int64)
	importanceScore, _ := n.Props["importance_score"].(float64)

	var keywords []string
	if raw, ok := n.Props["keywords"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				keywords = append(keywords, s)
			}
		}
	}
	var embedding []float32
	if raw, ok := n.Props["embedding"].([]any); ok {
		embedding = make([]float32, 0, len(raw))
		for _, v := range raw {
			if f, ok := v.(float64); ok {
				embedding = append(embedding, float32(f))
			}
		}
	}

	return engram.EventNode{
		Event: engram.Event{
			EventID:       eventID,
			EventType:     get("event_type"),
			OccurredAt:    occurredAt,
			SessionID:     get("session_id"),
			AgentID:       get("agent_id"),
			TraceID:       get("trace_id"),
			PayloadRef:    get("payload_ref"),
			ToolName:      get("tool_name"),
			ParentEventID: parentID,
			EndedAt:       endedAt,
			Status:        engram.Status(get("status")),
			SchemaVersion: int(schemaVersion),
		},
		Keywords:        keywords,
		Summary:         get("summary"),
		Embedding:       embedding,
		ImportanceScore: importanceScore,
		AccessCount:     accessCount,
		LastAccessedAt:  lastAccessed,
	}
}

func toFloat64Slice(f []float32) []float64 {
	if f == nil {
		return nil
	}
	out := make([]float64, len(f))
	for i, v := range f {
		out[i] = float64(v)
	}
	return out
}
