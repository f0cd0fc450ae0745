// Package queries holds named Cypher statements for the Neo4j graph store
// adapter. Keeping queries as constants here, rather than composing strings
// at call sites, keeps the query surface auditable in one place.
package queries

import "fmt"

// TraceCausedByQuery builds the variable-length CAUSED_BY traversal query.
// Cypher requires relationship hop bounds to be literal integers, not query
// parameters, so maxDepth (already clamped to [1,10] by the caller) is
// formatted directly rather than bound as $max_depth.
func TraceCausedByQuery(maxDepth int) string {
	return fmt.Sprintf(`
MATCH p = (a {event_id: $node_id})-[:CAUSED_BY*1..%d]->(b:Event)
RETURN b, length(p) AS depth, relationships(p)[-1] AS last_rel,
       nodes(p)[-2].event_id AS prev_event_id
ORDER BY depth`, maxDepth)
}

// MergeAttributeNode builds the upsert for a generic personalization node.
// Neo4j labels can't be bound as query parameters, so label (drawn from the
// fixed AttributeNode.Label enum, never raw user input) is formatted in.
func MergeAttributeNode(label string) string {
	return fmt.Sprintf(`
MERGE (n:%s {attribute_id: $id})
SET n += $props`, label)
}

// LinkEntityToAttribute builds the edge-creation query from an Entity node
// to a previously-merged attribute node, for the fixed edgeType.
func LinkEntityToAttribute(edgeType string) string {
	return fmt.Sprintf(`
MATCH (a:Entity {entity_id: $entity_id})
MATCH (b {attribute_id: $attribute_id})
MERGE (a)-[r:%s]->(b)
SET r += $props`, edgeType)
}

const (
	MergeEventNode = `
MERGE (e:Event {event_id: $event_id})
SET e.event_type = $event_type,
    e.occurred_at = $occurred_at,
    e.session_id = $session_id,
    e.agent_id = $agent_id,
    e.trace_id = $trace_id,
    e.payload_ref = $payload_ref,
    e.tool_name = $tool_name,
    e.parent_event_id = $parent_event_id,
    e.ended_at = $ended_at,
    e.status = $status,
    e.schema_version = $schema_version,
    e.keywords = $keywords,
    e.summary = $summary,
    e.embedding = $embedding,
    e.importance_score = $importance_score,
    e.access_count = coalesce(e.access_count, $access_count),
    e.last_accessed_at = coalesce(e.last_accessed_at, $last_accessed_at)`

	MergeEntityNode = `
MERGE (n:Entity {entity_id: $entity_id})
SET n.name = $name,
    n.entity_type = $entity_type,
    n.first_seen = coalesce(n.first_seen, $first_seen),
    n.last_seen = $last_seen,
    n.mention_count = $mention_count`

	MergeSummaryNode = `
MERGE (s:Summary {summary_id: $summary_id})
SET s.scope = $scope,
    s.scope_id = $scope_id,
    s.content = $content,
    s.created_at = $created_at,
    s.event_count = $event_count,
    s.time_range_first = $time_range_first,
    s.time_range_last = $time_range_last`

	MergeEdgeByType = `
UNWIND $rows AS row
MATCH (a {`

	MergeFollowsBatch = `
UNWIND $rows AS row
MATCH (a:Event {event_id: row.source_id})
MATCH (b:Event {event_id: row.target_id})
MERGE (a)-[r:FOLLOWS]->(b)
SET r.session_id = row.session_id, r.delta_ms = row.delta_ms`

	MergeCausedByBatch = `
UNWIND $rows AS row
MATCH (a:Event {event_id: row.source_id})
MATCH (b:Event {event_id: row.target_id})
MERGE (a)-[r:CAUSED_BY]->(b)
SET r.mechanism = row.mechanism`

	MergeGenericEdge = `
MATCH (a) WHERE a.event_id = $source_id OR a.entity_id = $source_id OR a.summary_id = $source_id
MATCH (b) WHERE b.event_id = $target_id OR b.entity_id = $target_id OR b.summary_id = $target_id
MERGE (a)-[r:%s]->(b)
SET r += $props`

	EnsureEventConstraint = `
CREATE CONSTRAINT event_id_unique IF NOT EXISTS
FOR (e:Event) REQUIRE e.event_id IS UNIQUE`

	EnsureEntityConstraint = `
CREATE CONSTRAINT entity_id_unique IF NOT EXISTS
FOR (n:Entity) REQUIRE n.entity_id IS UNIQUE`

	EnsureSummaryConstraint = `
CREATE CONSTRAINT summary_id_unique IF NOT EXISTS
FOR (s:Summary) REQUIRE s.summary_id IS UNIQUE`

	GetEventNode = `MATCH (e:Event {event_id: $event_id}) RETURN e`

	GetEntityNode = `MATCH (n:Entity {entity_id: $entity_id}) RETURN n`

	GetConnectedEvents = `
MATCH (n:Entity {entity_id: $entity_id})<-[:REFERENCES]-(e:Event)
RETURN DISTINCT e`

	Neighbors = `
MATCH (a {event_id: $node_id})-[r]->(b:Event)
RETURN type(r) AS rel_type, properties(r) AS rel_props, b`

	InDegree = `
MATCH (n {event_id: $node_id})<-[r]-()
RETURN count(r) AS in_degree`

	BumpAccess = `
UNWIND $event_ids AS eid
MATCH (e:Event {event_id: eid})
SET e.access_count = coalesce(e.access_count, 0) + 1, e.last_accessed_at = $now`

	PruneSimilarEdges = `
MATCH (:Event)-[r:SIMILAR_TO]->(:Event)
WHERE r.similarity_score < $min_similarity
DELETE r
RETURN count(r) AS pruned`

	DeleteEventNodesOlderThan = `
MATCH (e:Event)
WHERE e.occurred_at < $cutoff
  AND ($max_importance IS NULL OR e.importance_score < $max_importance)
  AND ($max_access_count IS NULL OR e.access_count < $max_access_count)
DETACH DELETE e`

	// DeleteAttributeSubgraph removes every personalization node (Preference,
	// Skill, Interest, ...) reachable directly from the entity, leaving the
	// entity node itself untouched.
	DeleteAttributeSubgraph = `
MATCH (a:Entity {entity_id: $entity_id})-[r]->(n)
WHERE NOT n:Event AND NOT n:Entity AND NOT n:Summary
WITH DISTINCT n
DETACH DELETE n
RETURN count(n) AS deleted`

	Ping = `RETURN 1`
)
