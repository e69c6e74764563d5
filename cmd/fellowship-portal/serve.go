package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/sfp-labs/fellowship-portal/internal/api"
	"github.com/sfp-labs/fellowship-portal/internal/application"
	"github.com/sfp-labs/fellowship-portal/internal/config"
	"github.com/sfp-labs/fellowship-portal/internal/drafts"
	"github.com/sfp-labs/fellowship-portal/internal/forwarder"
	"github.com/sfp-labs/fellowship-portal/internal/sessions"
	"github.com/sfp-labs/fellowship-portal/internal/storage"
	"github.com/sfp-labs/fellowship-portal/internal/sweeper"
	"github.com/sfp-labs/fellowship-portal/internal/tablestore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the portal HTTP server",
	RunE:  serve,
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireForwarder(); err != nil {
		slog.Warn("submissions disabled", "error", err)
	}

	slog.Info("starting fellowship-portal",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	loader, err := loadProgram(cfg.Program.File)
	if err != nil {
		return err
	}
	deadlines := func() application.Deadlines { return loader.Get().Deadlines }

	checks := make(map[string]api.Check)

	// Draft storage falls back to memory when Redis is unreachable
	stores, memDrafts, closeDrafts := openDraftStores(initCtx, cfg.Redis, checks)
	defer closeDrafts()

	// Submission ledger
	var repo *storage.PostgresRepository
	if cfg.Database.Enabled() {
		repo, err = openLedger(initCtx, cfg.Database)
		if err != nil {
			return err
		}
		defer repo.Close()
		checks["postgres"] = repo.Ping
	}

	// Submission relay
	var fwd *forwarder.Forwarder
	if cfg.Forwarder.ScriptURL != "" {
		fwd = newForwarder(cfg, repo)
	}

	regCfg := sessions.Config{
		Stores:    stores,
		Deadlines: deadlines,
	}
	if fwd != nil {
		regCfg.Submitter = forwarder.LocalSubmitter{Forwarder: fwd}
	}
	registry := sessions.NewRegistry(regCfg)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pruner sweeper.Pruner
	if repo != nil {
		pruner = repo
	}
	sweep := sweeper.New(sweeper.Config{
		SessionIdle: cfg.Sweeper.SessionIdle,
		Retention:   cfg.Sweeper.Retention,
	}, deadlines, registry, pruner)
	if memDrafts != nil {
		sweep.SetDraftPruner(memDrafts)
	}
	if err := sweep.Start(ctx); err != nil {
		return err
	}

	deps := api.Dependencies{
		Sessions: registry,
		Program:  loader,
		Checks:   checks,
	}
	if fwd != nil {
		deps.Forwarder = fwd
	}
	if repo != nil {
		deps.Ledger = repo
	}

	server := api.NewServer(cfg.Server, deps)
	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Forwarder.HardTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		slog.Error("HTTP server error", "error", err)
	}

	slog.Info("shutting down gracefully...")

	cancel()
	sweep.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Let late upstream results and mirror writes land in the ledger
	if fwd != nil {
		fwd.Wait()
	}

	slog.Info("fellowship-portal stopped")
	return nil
}

// openDraftStores returns the memory backend too when it falls back to one,
// so the sweeper can expire its drafts.
func openDraftStores(ctx context.Context, cfg config.RedisConfig, checks map[string]api.Check) (sessions.StoreFactory, *drafts.MemoryBackend, func()) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, keeping drafts in memory", "address", cfg.Address, "error", err)
		_ = client.Close()
		backend := drafts.NewMemoryBackend(drafts.WithTTL(cfg.DraftTTL))
		return func(key string) application.DraftStore { return backend.Store(key) }, backend, func() {}
	}

	if n, err := drafts.Count(ctx, client); err == nil {
		slog.Info("redis connected", "address", cfg.Address, "drafts", n)
	}

	checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }

	stores := func(key string) application.DraftStore {
		return drafts.NewRedisStore(client, key, cfg.DraftTTL)
	}
	closer := func() {
		if err := client.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}
	return stores, nil, closer
}

func openLedger(ctx context.Context, cfg config.DatabaseConfig) (*storage.PostgresRepository, error) {
	slog.Info("running database migrations", "dir", cfg.MigrationsDir)
	applied, err := storage.MigrateFromDSN(ctx, cfg.DSN, cfg.MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("migrations complete", "applied", applied)

	repo, err := storage.NewPostgresRepository(ctx, storage.PostgresConfig{
		DSN:          cfg.DSN,
		MaxOpenConns: int32(cfg.MaxConns),
		MaxIdleConns: int32(cfg.MaxConns / 2),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create database repository: %w", err)
	}
	slog.Info("database connected successfully")
	return repo, nil
}

func newForwarder(cfg *config.Config, repo *storage.PostgresRepository) *forwarder.Forwarder {
	opts := []forwarder.Option{
		forwarder.WithLogger(slog.Default().With("component", "forwarder")),
	}
	if repo != nil {
		opts = append(opts, forwarder.WithRecorder(repo))
	}

	if cfg.Table.Enabled() {
		httpClient := &http.Client{Timeout: 15 * time.Second}
		tokens := tablestore.NewTokenSource(cfg.Table.BaseURL, tablestore.Credentials{
			AppID:     cfg.Table.AppID,
			AppSecret: cfg.Table.AppSecret,
		}, httpClient)
		table := tablestore.NewClient(cfg.Table.BaseURL, tablestore.Table{
			AppToken: cfg.Table.AppToken,
			TableID:  cfg.Table.TableID,
		}, tokens, httpClient)
		opts = append(opts, forwarder.WithMirror(table))
		slog.Info("table mirror enabled", "table", cfg.Table.TableID)
	}

	return forwarder.New(forwarder.Config{
		ScriptURL:       cfg.Forwarder.ScriptURL,
		OptimisticAfter: cfg.Forwarder.OptimisticAfter,
		HardTimeout:     cfg.Forwarder.HardTimeout,
	}, opts...)
}
