// Command hatidata-mcp runs the hatidata agent-state engine as an MCP
// server over stdio.
//
// In local mode (--local) it opens an embedded DuckDB file and serves the
// full 23-tool catalog: memory, chain-of-thought ledger, triggers, branches,
// and the SQL catalog tools. Otherwise it connects to a remote SQL warehouse;
// all 23 tools stay listed, but only the catalog/query tools work there and
// the domain tools report that they need the local engine.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hatidata/hati-mcp/internal/branch"
	"github.com/hatidata/hati-mcp/internal/config"
	"github.com/hatidata/hati-mcp/internal/dispatcher"
	"github.com/hatidata/hati-mcp/internal/guide"
	"github.com/hatidata/hati-mcp/internal/maintenance"
	"github.com/hatidata/hati-mcp/internal/mcp"
	"github.com/hatidata/hati-mcp/internal/mcptools"
	"github.com/hatidata/hati-mcp/internal/remote"
	"github.com/hatidata/hati-mcp/internal/substrate"
)

// Version is set via ldflags at build time.
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "hatidata-mcp: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	logger.Info("starting hatidata-mcp", "version", Version, "local", cfg.Local)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := mcp.NewRegistry()

	var (
		disp    *dispatcher.Dispatcher
		sweeper *maintenance.BranchSweeper
		sched   *maintenance.Scheduler
	)

	if cfg.Local {
		db, err := substrate.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("opening local storage at %s: %w", cfg.DBPath, err)
		}
		defer db.Close()

		disp = dispatcher.NewLocal(db, cfg.AgentID)
		logger.Info("local engine ready", "db_path", cfg.DBPath)

		if cfg.Sweep.Enabled {
			sweeper = maintenance.NewBranchSweeper(branch.New(db), logger)
			sched = maintenance.NewScheduler(logger)
			if err := sched.AddJob(ctx, sweeper, cfg.Sweep.Cron); err != nil {
				return fmt.Errorf("scheduling branch sweep: %w", err)
			}
			sched.Start(ctx)
		}
	} else {
		client, err := remote.Open(ctx, remote.Config{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Database: cfg.Database,
			User:     cfg.User,
			Password: cfg.Password,
		})
		if err != nil {
			return fmt.Errorf("connecting to remote backend: %w", err)
		}
		defer client.Close()

		disp = dispatcher.NewRemote(client)
		logger.Info("remote backend ready", "host", cfg.Host, "port", cfg.Port, "database", cfg.Database)
	}

	mcptools.RegisterAll(registry, disp, sweeper)

	registry.RegisterPrompt(&guide.BranchLifecyclePrompt{})
	registry.RegisterResource(&guide.SchemaReferenceResource{})
	registry.RegisterResource(&guide.ToolReferenceResource{})

	server := mcp.NewServer(registry, mcp.ServerInfo{
		Name:    "hatidata-mcp",
		Version: Version,
	}, logger)

	return server.Run(ctx)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
