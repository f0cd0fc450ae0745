package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/arunmenon/Engram/internal/engram"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) fail5xx(w http.ResponseWriter, r *http.Request, err error) {
	s.Logger.WithContext(r.Context()).WithError(err).Error("request failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "internal error"})
}

type eventDetailError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (s *Server) handlePostEvent(w http.ResponseWriter, r *http.Request) {
	var e engram.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "malformed JSON body"})
		return
	}
	e = engram.Normalize(e)

	if errs, ok := s.Validator.Validate(e); !ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": toDetail(errs)})
		return
	}

	pos, err := s.Ledger.Append(r.Context(), e)
	if err != nil {
		s.fail5xx(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"event_id": e.EventID.String(), "global_position": pos})
}

func toDetail(errs engram.ValidationErrors) []eventDetailError {
	out := make([]eventDetailError, len(errs))
	for i, e := range errs {
		out[i] = eventDetailError{Field: e.Field, Message: e.Message}
	}
	return out
}

func (s *Server) handlePostEventBatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Events []engram.Event `json:"events"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "malformed JSON body"})
		return
	}
	if len(body.Events) == 0 || len(body.Events) > 1000 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "events must contain between 1 and 1000 items"})
		return
	}

	type result struct {
		EventID        string `json:"event_id"`
		GlobalPosition string `json:"global_position"`
	}
	var accepted, rejected int
	var results []result
	var errorsOut []map[string]any

	for _, e := range body.Events {
		e = engram.Normalize(e)
		if errs, ok := s.Validator.Validate(e); !ok {
			rejected++
			errorsOut = append(errorsOut, map[string]any{"event_id": e.EventID.String(), "detail": toDetail(errs)})
			continue
		}
		pos, err := s.Ledger.Append(r.Context(), e)
		if err != nil {
			s.fail5xx(w, r, err)
			return
		}
		accepted++
		results = append(results, result{EventID: e.EventID.String(), GlobalPosition: pos})
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"accepted": accepted,
		"rejected": rejected,
		"results":  results,
		"errors":   errorsOut,
	})
}

func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	maxNodes := queryInt(r, "max_nodes", 50)

	envelope, err := s.Retriever.GetContext(r.Context(), sessionID, maxNodes, nil)
	if err != nil {
		s.fail5xx(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope)
}

func (s *Server) handlePostSubgraph(w http.ResponseWriter, r *http.Request) {
	var q engram.SubgraphQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "malformed JSON body"})
		return
	}
	envelope, err := s.Retriever.GetSubgraph(r.Context(), q)
	if err != nil {
		s.fail5xx(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope)
}

func (s *Server) handleGetLineage(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "node_id")
	maxDepth := queryInt(r, "max_depth", 5)
	maxNodes := queryInt(r, "max_nodes", 50)

	envelope, err := s.Retriever.GetLineage(r.Context(), nodeID, maxDepth, maxNodes, nil)
	if err != nil {
		s.fail5xx(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope)
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entity_id")
	entity, ok, err := s.Graph.GetEntityNode(r.Context(), entityID)
	if err != nil {
		s.fail5xx(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "entity not found"})
		return
	}
	events, err := s.Graph.GetConnectedEvents(r.Context(), entityID)
	if err != nil {
		s.fail5xx(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entity": entity, "events": events})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	redisOK, neo4jOK := s.pingStores(r)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  healthStatus(redisOK, neo4jOK),
		"redis":   healthLabel(redisOK),
		"neo4j":   healthLabel(neo4jOK),
		"version": "0.1.0",
	})
}

// pingStores checks both backing stores' reachability independently so one
// being down doesn't mask the other's status.
func (s *Server) pingStores(r *http.Request) (redisOK, neo4jOK bool) {
	redisOK = s.Ledger.Ping(r.Context()) == nil
	neo4jOK = s.Graph.Ping(r.Context()) == nil
	return redisOK, neo4jOK
}

// healthStatus derives the documented status string: healthy iff both
// stores are reachable, degraded iff exactly one is, unhealthy iff neither
// is.
func healthStatus(redisOK, neo4jOK bool) string {
	switch {
	case redisOK && neo4jOK:
		return "healthy"
	case redisOK || neo4jOK:
		return "degraded"
	default:
		return "unhealthy"
	}
}

func healthLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "unreachable"
}

func (s *Server) handleAdminReconsolidate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "malformed JSON body"})
		return
	}
	events, err := s.Ledger.GetBySession(r.Context(), body.SessionID, 100000, 0)
	if err != nil {
		s.fail5xx(w, r, err)
		return
	}
	if !s.Consolidator.ShouldReconsolidate(len(events)) {
		writeJSON(w, http.StatusOK, map[string]any{"reconsolidated": false, "event_count": len(events)})
		return
	}
	if err := s.Consolidator.ConsolidateSession(r.Context(), body.SessionID, events); err != nil {
		s.fail5xx(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reconsolidated": true, "event_count": len(events)})
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAdminPrune(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Tier   string `json:"tier"`
		DryRun bool   `json:"dry_run"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "malformed JSON body"})
		return
	}
	tier := engram.Tier(strings.ToUpper(body.Tier))
	if tier != engram.TierWarm && tier != engram.TierCold {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "tier must be warm or cold"})
		return
	}
	result, err := s.Forgetter.PruneTier(r.Context(), tier, body.DryRun)
	if err != nil {
		s.fail5xx(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAdminHealthDetailed(w http.ResponseWriter, r *http.Request) {
	redisOK, neo4jOK := s.pingStores(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": healthStatus(redisOK, neo4jOK),
		"components": map[string]string{
			"redis": healthLabel(redisOK),
			"neo4j": healthLabel(neo4jOK),
		},
	})
}

func (s *Server) handleUserSubresource(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "user_id")
		entityID := "user-" + userID
		events, err := s.Graph.GetConnectedEvents(r.Context(), entityID)
		if err != nil {
			s.fail5xx(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "kind": kind, "events": events})
	}
}

// handleUserErasure implements the GDPR cascade delete in two graph writes:
// remove the personalization subgraph rooted at the user entity, then
// anonymize the entity's name to "REDACTED". The writes are separate calls,
// not one transaction; if the second fails, the subgraph is already gone.
func (s *Server) handleUserErasure(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	entityID := "user-" + userID
	entity, ok, err := s.Graph.GetEntityNode(r.Context(), entityID)
	if err != nil {
		s.fail5xx(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "user not found"})
		return
	}
	if _, err := s.Graph.DeleteAttributeSubgraph(r.Context(), entityID); err != nil {
		s.fail5xx(w, r, err)
		return
	}
	entity.Name = "REDACTED"
	if err := s.Graph.MergeEntityNode(r.Context(), entity); err != nil {
		s.fail5xx(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
