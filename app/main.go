package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openrss/reader/app/api"
	"github.com/openrss/reader/app/cfg"
	"github.com/openrss/reader/app/database"
	"github.com/openrss/reader/app/feed"
	"github.com/openrss/reader/app/session"
	"github.com/openrss/reader/app/sync"
	"github.com/openrss/reader/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting OpenRSS Reader server", "version", appCfg.Version)

	// Article database
	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	feedRepo := database.NewFeedRepository(db)
	articleRepo := database.NewArticleRepository(db)

	// Session snapshot store; a broken store degrades to in-memory state
	// rather than blocking startup
	var sessionStore session.Store
	boltStore, err := session.NewBoltStore(appCfg.SessionDBPath)
	if err != nil {
		slog.Warn("Session store unavailable, using in-memory session state", "path", appCfg.SessionDBPath, "error", err)
		sessionStore = session.NewMemoryStore()
	} else {
		defer boltStore.Close()
		sessionStore = boltStore
	}

	tracker := session.NewTracker(sessionStore, session.Options{
		DwellThreshold: time.Duration(appCfg.AutoReadDwellMs) * time.Millisecond,
		TTL:            time.Duration(appCfg.SnapshotTTL) * time.Minute,
		ScrollThrottle: time.Duration(appCfg.ScrollThrottleMs) * time.Millisecond,
	})

	// Feed subscriptions
	configCache := feed.NewConfigCache(appCfg.FeedsDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load feed subscriptions", "error", err)
		os.Exit(1)
	}
	slog.Info("Feed subscriptions loaded", "count", configCache.GetConfigCount())

	// Sync coordinator and background scheduler
	coordinator := sync.NewCoordinator(time.Duration(appCfg.SyncStallTimeout) * time.Second)
	defer coordinator.Stop()

	httpClient := &http.Client{Timeout: 60 * time.Second}
	parser := feed.NewParser()
	contentExtractor := feed.NewContentExtractor()

	scheduler := tasks.NewScheduler(coordinator, configCache, feedRepo, articleRepo,
		httpClient, parser, contentExtractor)
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Background scheduler started", "workers", appCfg.WorkerCount, "interval", appCfg.SchedulerInterval)

	// HTTP server
	handler := api.NewHandler(configCache, feedRepo, articleRepo, tracker,
		coordinator, scheduler, httpClient, appCfg.UserAgent)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	// Scheduler, coordinator and stores are stopped via defer
	slog.Info("Shutdown complete")
}
