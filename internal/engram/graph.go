package engram

import "context"

// NeighborEdge is one outgoing edge discovered during expansion, paired with
// the neighbor node it leads to.
type NeighborEdge struct {
	Edge  Edge
	Event EventNode
}

// LineagePath is one discovered CAUSED_BY chain step during lineage traversal.
type LineagePath struct {
	Node  EventNode
	Depth int
	Edge  Edge
}

// GraphStore is the typed knowledge-graph port. All writes MUST
// be MERGE-idempotent.
type GraphStore interface {
	MergeEventNode(ctx context.Context, n EventNode) error
	MergeEntityNode(ctx context.Context, n EntityNode) error
	MergeSummaryNode(ctx context.Context, n SummaryNode) error
	// MergeAttributeNode upserts a personalization-graph node (Preference,
	// Skill, Interest, ...) identified by n.Label/n.ID.
	MergeAttributeNode(ctx context.Context, n AttributeNode) error
	// LinkEntityToAttribute merges a typed edge from an Entity node to a
	// previously-merged AttributeNode.
	LinkEntityToAttribute(ctx context.Context, entityID string, edgeType EdgeType, attributeID string, props map[string]any) error

	CreateEdge(ctx context.Context, e Edge) error
	// CreateEdgesBatch groups edges by type and uses a batched UPSERT for
	// high-volume types (at minimum FOLLOWS and CAUSED_BY), falling back to
	// per-edge upsert for rare types. Runs inside a single transaction.
	CreateEdgesBatch(ctx context.Context, edges []Edge) error

	EnsureConstraints(ctx context.Context) error

	// GetEventNode returns the event node with the given id, if present.
	GetEventNode(ctx context.Context, eventID string) (EventNode, bool, error)
	// GetEntityNode returns the entity node with the given id, if present.
	GetEntityNode(ctx context.Context, entityID string) (EntityNode, bool, error)
	// GetConnectedEvents returns event nodes that reference entityID via a
	// REFERENCES edge.
	GetConnectedEvents(ctx context.Context, entityID string) ([]EventNode, error)

	// Neighbors enumerates outgoing edges and target event nodes from nodeID,
	// across all edge types.
	Neighbors(ctx context.Context, nodeID string) ([]NeighborEdge, error)

	// TraceCausedBy walks variable-length outgoing CAUSED_BY edges from
	// nodeID, bounded by maxDepth, returning each reached node once with its
	// minimal depth and the edge that reached it.
	TraceCausedBy(ctx context.Context, nodeID string, maxDepth int) ([]LineagePath, error)

	// InDegree returns the number of incoming edges of any type to nodeID.
	InDegree(ctx context.Context, nodeID string) (int64, error)

	// BumpAccess increments access_count and sets last_accessed_at := now for
	// the given event node ids, batched.
	BumpAccess(ctx context.Context, eventIDs []string) error

	// PruneSimilarEdges deletes every SIMILAR_TO edge with similarity_score
	// below minSimilarity, whatever the age of the nodes it joins. Returns
	// count.
	PruneSimilarEdges(ctx context.Context, minSimilarity float64) (int64, error)

	// DeleteEventNodesIf deletes event nodes whose occurred_at is
	// older than olderThanHours ago, optionally filtered by the given
	// importance/access thresholds (nil means "unconditional delete").
	DeleteEventNodesIf(ctx context.Context, olderThanHours float64, maxImportance *float64, maxAccessCount *int64) (int64, error)

	// DeleteAttributeSubgraph detaches and deletes every AttributeNode
	// (Preference/Skill/Interest/...) reachable from entityID via a
	// personalization edge, without touching the entity node itself.
	// Returns the number of attribute nodes removed.
	DeleteAttributeSubgraph(ctx context.Context, entityID string) (int64, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}
