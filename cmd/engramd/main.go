// Command engramd runs the Engram server: ledger/graph wiring, the
// projection-pipeline consumer loops, and the thin HTTP adapter.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arunmenon/Engram/internal/engram"
	neo4jadapter "github.com/arunmenon/Engram/internal/engram/graph/neo4j"
	redisledger "github.com/arunmenon/Engram/internal/engram/ledger/redis"
	"github.com/arunmenon/Engram/internal/httpapi"
)

func main() {
	cfg := engram.LoadConfig()
	logger := engram.NewLogger("engramd", envOr("CG_LOG_LEVEL", "info"), envOr("CG_LOG_FORMAT", "json"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, err := redisledger.New(ctx, cfg.RedisURL, cfg.ReplicaWait)
	if err != nil {
		logger.WithError(err).Fatal("connect ledger")
	}
	defer ledger.Close()

	graph, err := neo4jadapter.New(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass, cfg.Neo4jDB)
	if err != nil {
		logger.WithError(err).Fatal("connect graph store")
	}
	defer graph.Close(ctx)

	if err := graph.EnsureConstraints(ctx); err != nil {
		logger.WithError(err).Fatal("ensure constraints")
	}

	scorer := engram.NewScorer(cfg.Scoring)
	intentClassifier := engram.NewIntentClassifier(nil)
	retriever := engram.NewRetriever(ledger, graph, scorer, intentClassifier)
	consolidator := engram.NewConsolidator(ledger, graph, cfg.Consolidate)
	forgetter := engram.NewForgetter(graph, ledger, cfg.Retention)
	validator := engram.NewValidator()

	projector := engram.NewProjector(graph, 10000)
	enricher := engram.NewEnricher(graph)
	extractor := engram.NewExtractor(graph, engram.NoOpExtractionService{})

	streamReader, err := redisledger.NewStreamReader(ctx, ledger.Client(), "engramd-1",
		engram.GroupProjector, engram.GroupEnricher, engram.GroupExtractor, engram.GroupConsolidator)
	if err != nil {
		logger.WithError(err).Fatal("create stream reader")
	}
	scheduler := engram.NewScheduler(streamReader, logger)

	startConsumer(ctx, logger, scheduler, ledger, engram.GroupProjector, func(loopCtx context.Context, e engram.Event) error {
		return projector.Project(loopCtx, e)
	})
	startConsumer(ctx, logger, scheduler, ledger, engram.GroupEnricher, func(loopCtx context.Context, e engram.Event) error {
		return enricher.Enrich(loopCtx, e)
	})
	startConsumer(ctx, logger, scheduler, ledger, engram.GroupExtractor, func(loopCtx context.Context, e engram.Event) error {
		events, err := ledger.GetBySession(loopCtx, e.SessionID, 100000, 0)
		if err != nil {
			return err
		}
		return extractor.ExtractSession(loopCtx, e.SessionID, e.AgentID, events)
	})
	startConsumer(ctx, logger, scheduler, ledger, engram.GroupConsolidator, func(loopCtx context.Context, e engram.Event) error {
		events, err := ledger.GetBySession(loopCtx, e.SessionID, 100000, 0)
		if err != nil {
			return err
		}
		if !consolidator.ShouldReconsolidate(len(events)) {
			return nil
		}
		return consolidator.ConsolidateSession(loopCtx, e.SessionID, events)
	})

	evictIdleSessionsPeriodically(ctx, logger, projector)

	server := &httpapi.Server{
		Ledger:       ledger,
		Graph:        graph,
		Validator:    validator,
		Retriever:    retriever,
		Consolidator: consolidator,
		Forgetter:    forgetter,
		Logger:       logger,
	}

	httpServer := &http.Server{
		Addr:              envOr("CG_HTTP_ADDR", ":8080"),
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("http server")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

// eventConsumerFunc processes one already-hydrated Event for a consumer
// group, wrapping engram.ConsumerFunc's stream-entry shape.
type eventConsumerFunc func(ctx context.Context, e engram.Event) error

// startConsumer runs one of the four projection-pipeline consumer loops
// in its own goroutine: hydrate the stream entry's event from
// the ledger, then hand it to fn. Each group is independent and sequential
// internally, per the scheduler's model.
func startConsumer(ctx context.Context, logger *engram.Logger, scheduler *engram.Scheduler, ledger engram.Ledger, group engram.ConsumerGroup, fn eventConsumerFunc) {
	go func() {
		err := scheduler.Run(ctx, group, func(loopCtx context.Context, entry engram.StreamEntry) error {
			e, ok, err := ledger.GetByID(loopCtx, entry.EventID)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			return fn(loopCtx, e)
		})
		if err != nil {
			logger.WithError(err).Errorf("%s consumer loop exited", group)
		}
	}()
}

// evictIdleSessionsPeriodically reaps the projector's session LRU so
// long-idle sessions don't pin memory between bursts of activity.
func evictIdleSessionsPeriodically(ctx context.Context, logger *engram.Logger, projector *engram.Projector) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := projector.EvictIdleSessions(time.Hour); n > 0 {
					logger.Debugf("evicted %d idle sessions from projector LRU", n)
				}
			}
		}
	}()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
