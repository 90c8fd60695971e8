package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hyperengineering/standup/internal/api"
	"github.com/hyperengineering/standup/internal/config"
	"github.com/hyperengineering/standup/internal/lifecycle"
	"github.com/hyperengineering/standup/internal/snapshot"
	"github.com/hyperengineering/standup/internal/store"
	"github.com/hyperengineering/standup/internal/worker"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var (
	dbPathOverride string
	jsonOutput     bool
)

var rootCmd = &cobra.Command{
	Use:   "standup",
	Short: "Standup - daily plan and review service",
	Long: "Runs the standup API server. Subcommands inspect and administer\n" +
		"the plan database directly without starting the server.",
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPathOverride, "db", "",
		"Database path (overrides config and STANDUP_DB_PATH)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output in JSON format")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(profileCmd)
}

func run(cmd *cobra.Command, args []string) error {
	// 1. Signal handling
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if dbPathOverride != "" {
		cfg.Database.Path = dbPathOverride
	}
	slog.Info("configuration loaded")

	// 3. Initialize logger
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))
	slog.Info("logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	// 4. Initialize store (migrations, WAL mode)
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	slog.Info("store initialized", "path", cfg.Database.Path)

	// 5. Initialize lifecycle engine
	settings, err := settingsFromConfig(cfg)
	if err != nil {
		db.Close()
		return err
	}
	engine := lifecycle.NewEngine(db, settings)
	slog.Info("engine initialized",
		"timezone", settings.Location.String(),
		"max_goals", settings.MaxGoals,
		"auto_closure", settings.AutoClosure,
	)

	// 6. Initialize snapshot uploader
	uploader, err := snapshot.NewUploader(cfg.SnapshotStorage)
	if err != nil {
		db.Close()
		return err
	}
	if cfg.SnapshotStorage.Bucket != "" {
		slog.Info("snapshot uploader initialized", "bucket", cfg.SnapshotStorage.Bucket)
	}

	// 7. Initialize HTTP router
	handler := api.NewHandler(engine, db, uploader, cfg.Database.SnapshotPath, cfg.Auth.APIKey, Version)
	router := api.NewRouter(handler)
	slog.Info("router initialized")

	// 8. Configure HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	// 9. Start background workers
	var wg sync.WaitGroup
	lockWorker := worker.NewPlanLockWorker(engine, time.Duration(cfg.Worker.LockInterval))
	startWorker(ctx, &wg, "plan-lock", lockWorker.Run)
	snapshotWorker := worker.NewSnapshotGenerationWorker(db, cfg.Database.SnapshotPath,
		time.Duration(cfg.Worker.SnapshotInterval), uploader)
	startWorker(ctx, &wg, "snapshot-generation", snapshotWorker.Run)

	// 10. Start HTTP server in goroutine
	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected error when Shutdown() is called gracefully.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel() // Trigger shutdown on server failure
		}
	}()

	// 11. Block until signal received
	<-ctx.Done()
	slog.Info("shutdown initiated")

	// 12. Graceful shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// 12a. Stop HTTP server (drains in-flight requests)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// 12b. Wait for workers to complete
	wg.Wait()

	// 12c. Close store
	if err := db.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// settingsFromConfig builds the lifecycle rules from configuration.
func settingsFromConfig(cfg *config.Config) (lifecycle.Settings, error) {
	loc, err := cfg.Location()
	if err != nil {
		return lifecycle.Settings{}, err
	}
	return lifecycle.Settings{
		Location:              loc,
		MaxGoals:              cfg.Planning.MaxGoals,
		RescheduleHorizonDays: cfg.Planning.RescheduleHorizonDays,
		LockAfterDays:         cfg.Planning.LockAfterDays,
		AwarenessPoints:       cfg.Scoring.AwarenessPoints,
		ClosurePoints:         cfg.Scoring.ClosurePoints,
		AutoClosure:           cfg.Scoring.AutoClosure,
	}, nil
}

// newLogger builds the process logger. Format "text" selects the text
// handler; anything else is JSON.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// startWorker launches a background worker goroutine that respects context cancellation.
// Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}
