// Package httpapi is the thin chi-router HTTP adapter over the core engram
// package. Handlers translate requests into core calls and core
// errors into the documented status codes; no business logic lives here.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/arunmenon/Engram/internal/engram"
)

// Server bundles the core collaborators the HTTP adapter delegates to.
type Server struct {
	Ledger       engram.Ledger
	Graph        engram.GraphStore
	Validator    *engram.Validator
	Retriever    *engram.Retriever
	Consolidator *engram.Consolidator
	Forgetter    *engram.Forgetter
	Logger       *engram.Logger
}

// Router builds the chi router implementing the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestTimer)
	r.Use(traceIDMiddleware)

	r.Post("/v1/events", s.handlePostEvent)
	r.Post("/v1/events/batch", s.handlePostEventBatch)
	r.Get("/v1/context/{session_id}", s.handleGetContext)
	r.Post("/v1/query/subgraph", s.handlePostSubgraph)
	r.Get("/v1/nodes/{node_id}/lineage", s.handleGetLineage)
	r.Get("/v1/entities/{entity_id}", s.handleGetEntity)
	r.Get("/v1/health", s.handleHealth)

	r.Post("/v1/admin/reconsolidate", s.handleAdminReconsolidate)
	r.Get("/v1/admin/stats", s.handleAdminStats)
	r.Post("/v1/admin/prune", s.handleAdminPrune)
	r.Get("/v1/admin/health/detailed", s.handleAdminHealthDetailed)

	r.Get("/v1/users/{user_id}/profile", s.handleUserSubresource("profile"))
	r.Get("/v1/users/{user_id}/preferences", s.handleUserSubresource("preferences"))
	r.Get("/v1/users/{user_id}/skills", s.handleUserSubresource("skills"))
	r.Get("/v1/users/{user_id}/patterns", s.handleUserSubresource("patterns"))
	r.Get("/v1/users/{user_id}/interests", s.handleUserSubresource("interests"))
	r.Get("/v1/users/{user_id}/data-export", s.handleUserSubresource("data-export"))
	r.Delete("/v1/users/{user_id}", s.handleUserErasure)

	return r
}

// requestTimer records handler duration into the X-Request-Time-Ms header.
func requestTimer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		w.Header().Set("X-Request-Time-Ms", time.Since(start).String())
	})
}

// traceIDMiddleware propagates an inbound trace id (or mints one) onto the
// request context for structured logging.
func traceIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-Id")
		if traceID == "" {
			traceID = uuid.New().String()
		}
		ctx := engram.ContextWithTraceID(r.Context(), traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
