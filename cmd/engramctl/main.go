// Command engramctl is a thin admin CLI over the core engram package:
// reconsolidate a session, prune a retention tier, print a session's event
// count, or run dedup cleanup. Output is JSON to stdout, in the same
// subcommand-switch-plus-JSON-encoder shape.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/arunmenon/Engram/internal/engram"
	neo4jadapter "github.com/arunmenon/Engram/internal/engram/graph/neo4j"
	redisledger "github.com/arunmenon/Engram/internal/engram/ledger/redis"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := engram.LoadConfig()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ledger, err := redisledger.New(ctx, cfg.RedisURL, cfg.ReplicaWait)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engramctl: connect ledger: %v\n", err)
		os.Exit(1)
	}
	defer ledger.Close()

	graph, err := neo4jadapter.New(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass, cfg.Neo4jDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engramctl: connect graph store: %v\n", err)
		os.Exit(1)
	}
	defer graph.Close(ctx)

	cmd := os.Args[1]
	args := os.Args[2:]

	var result any
	switch cmd {
	case "reconsolidate":
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "engramctl reconsolidate: usage: reconsolidate <session_id>")
			os.Exit(1)
		}
		result, err = reconsolidate(ctx, ledger, graph, cfg, args[0])

	case "prune":
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "engramctl prune: usage: prune <warm|cold|archive> [--dry-run]")
			os.Exit(1)
		}
		dryRun := len(args) > 1 && args[1] == "--dry-run"
		result, err = prune(ctx, graph, ledger, cfg, args[0], dryRun)

	case "cleanup-dedup":
		result, err = cleanupDedup(ctx, ledger, cfg)

	case "stats":
		result, err = stats(ctx, ledger, graph, args)

	case "help", "-h", "--help":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "engramctl: unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "engramctl: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(result)
}

func printUsage() {
	fmt.Println(`engramctl - Admin operations over the Engram context graph

Usage: engramctl <command> [args]

Commands:
  reconsolidate <session_id>          Force a consolidation pass for a session
  prune <warm|cold|archive> [--dry-run]  Run one retention tier's pruning rule
  cleanup-dedup                       Trim the ledger's dedup index past the retention ceiling
  stats [session_id]                  Print one session's event count; without a session, only a status line
  help                                Show this help

Examples:
  engramctl reconsolidate sess-abc123
  engramctl prune cold --dry-run
  engramctl cleanup-dedup
  engramctl stats sess-abc123`)
}

func reconsolidate(ctx context.Context, ledger engram.Ledger, graph engram.GraphStore, cfg engram.Config, sessionID string) (any, error) {
	consolidator := engram.NewConsolidator(ledger, graph, cfg.Consolidate)

	events, err := ledger.GetBySession(ctx, sessionID, 100000, 0)
	if err != nil {
		return nil, fmt.Errorf("get session events: %w", err)
	}
	if !consolidator.ShouldReconsolidate(len(events)) {
		return map[string]any{
			"session_id":     sessionID,
			"reconsolidated": false,
			"event_count":    len(events),
			"reason":         "below reflection_threshold",
		}, nil
	}
	if err := consolidator.ConsolidateSession(ctx, sessionID, events); err != nil {
		return nil, fmt.Errorf("consolidate session: %w", err)
	}
	return map[string]any{
		"session_id":     sessionID,
		"reconsolidated": true,
		"event_count":    len(events),
	}, nil
}

func prune(ctx context.Context, graph engram.GraphStore, ledger engram.Ledger, cfg engram.Config, tierArg string, dryRun bool) (any, error) {
	forgetter := engram.NewForgetter(graph, ledger, cfg.Retention)

	var tier engram.Tier
	switch tierArg {
	case "warm":
		tier = engram.TierWarm
	case "cold":
		tier = engram.TierCold
	case "archive":
		tier = engram.TierArchive
	default:
		return nil, fmt.Errorf("unknown tier %q (want warm, cold, or archive)", tierArg)
	}

	result, err := forgetter.PruneTier(ctx, tier, dryRun)
	if err != nil {
		return nil, fmt.Errorf("prune tier %s: %w", tier, err)
	}
	return result, nil
}

func cleanupDedup(ctx context.Context, ledger engram.Ledger, cfg engram.Config) (any, error) {
	retention := time.Duration(cfg.Retention.RetentionCeilingDays) * 24 * time.Hour
	removed, err := ledger.CleanupDedup(ctx, retention)
	if err != nil {
		return nil, fmt.Errorf("cleanup dedup: %w", err)
	}
	return map[string]any{"removed": removed, "retention_ceiling_days": cfg.Retention.RetentionCeilingDays}, nil
}

func stats(ctx context.Context, ledger engram.Ledger, graph engram.GraphStore, args []string) (any, error) {
	if len(args) > 0 {
		events, err := ledger.GetBySession(ctx, args[0], 100000, 0)
		if err != nil {
			return nil, fmt.Errorf("get session events: %w", err)
		}
		return map[string]any{"session_id": args[0], "event_count": len(events)}, nil
	}
	return map[string]any{"status": "ok"}, nil
}
