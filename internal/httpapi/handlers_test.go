package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arunmenon/Engram/internal/engram"
	"github.com/arunmenon/Engram/internal/engram/testutil"
)

func newTestServer(graph *testutil.FakeGraph, ledger *testutil.FakeLedger) *Server {
	return &Server{
		Ledger:       ledger,
		Graph:        graph,
		Validator:    engram.NewValidator(),
		Retriever:    engram.NewRetriever(ledger, graph, engram.NewScorer(engram.DefaultScoringConfig()), engram.NewIntentClassifier(nil)),
		Consolidator: engram.NewConsolidator(ledger, graph, engram.DefaultConsolidationConfig()),
		Forgetter:    engram.NewForgetter(graph, ledger, engram.DefaultRetentionConfig()),
		Logger:       engram.NewLogger("engram-test", "error", "json"),
	}
}

func TestHandleHealth_HealthyWhenBothStoresReachable(t *testing.T) {
	s := newTestServer(testutil.NewFakeGraph(), testutil.NewFakeLedger())
	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
	assert.Contains(t, rec.Body.String(), `"redis":"ok"`)
	assert.Contains(t, rec.Body.String(), `"neo4j":"ok"`)
}

func TestHandleUserErasure_RemovesPersonalizationSubgraphAndAnonymizesName(t *testing.T) {
	graph := testutil.NewFakeGraph()
	ledger := testutil.NewFakeLedger()
	s := newTestServer(graph, ledger)

	ctx := context.Background()
	entityID := "user-42"
	require.NoError(t, graph.MergeEntityNode(ctx, engram.EntityNode{
		EntityID: entityID, Name: "Alice", EntityType: engram.EntityUser,
		FirstSeen: time.Now(), LastSeen: time.Now(),
	}))
	require.NoError(t, graph.MergeAttributeNode(ctx, engram.AttributeNode{
		Label: "Preference", ID: "pref-1", Props: map[string]any{"key": "editor", "value": "vim"},
	}))
	require.NoError(t, graph.LinkEntityToAttribute(ctx, entityID, engram.EdgeHasPreference, "pref-1", nil))

	req := httptest.NewRequest(http.MethodDelete, "/v1/users/42", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)

	entity, ok, err := graph.GetEntityNode(ctx, entityID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "REDACTED", entity.Name)
	assert.Empty(t, graph.Attributes)

	for _, e := range graph.Edges {
		assert.NotEqual(t, entityID, e.SourceID, "no personalization edge should survive erasure")
	}
}

func TestHandleUserErasure_UnknownUserReturns404(t *testing.T) {
	s := newTestServer(testutil.NewFakeGraph(), testutil.NewFakeLedger())
	req := httptest.NewRequest(http.MethodDelete, "/v1/users/nobody", nil)
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
