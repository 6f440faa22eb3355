package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/openrss/reader/app/database"
	"github.com/openrss/reader/app/feed"
)

// SyncFeedsTask is the user-triggered sync pipeline. It processes every
// enabled subscription, reporting forward progress to the coordinator
// after each feed, and seals the job itself: pipeline failures become
// FailSync, never a retried task, so the job cannot be reported twice.
// Content extraction is enqueued detached and does not gate completion.
type SyncFeedsTask struct {
	Task
	SyncID      string
	coordinator SyncCoordinatorInterface
	configCache *feed.ConfigCache
	httpClient  *http.Client
	parser      *feed.Parser
	feedRepo    database.FeedRepository
	articleRepo database.ArticleRepository
	// enqueueExtract fires the detached content prefetch for one feed
	enqueueExtract func(feedName string, feedConfig *feed.Config) error
	userAgent      string
}

func NewSyncFeedsTask(syncID string, coordinator SyncCoordinatorInterface, configCache *feed.ConfigCache, httpClient *http.Client, parser *feed.Parser, feedRepo database.FeedRepository, articleRepo database.ArticleRepository, enqueueExtract func(string, *feed.Config) error, userAgent string) *SyncFeedsTask {
	task := NewTask(TaskTypeSyncFeeds, "")
	task.MaxRetries = 0 // the job seals itself; re-running would report into a terminal job

	return &SyncFeedsTask{
		Task:           task,
		SyncID:         syncID,
		coordinator:    coordinator,
		configCache:    configCache,
		httpClient:     httpClient,
		parser:         parser,
		feedRepo:       feedRepo,
		articleRepo:    articleRepo,
		enqueueExtract: enqueueExtract,
		userAgent:      userAgent,
	}
}

func (t *SyncFeedsTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		t.coordinator.FailSync(t.SyncID, "sync cancelled before start")
		return ctx.Err()
	default:
	}

	configs := t.configCache.GetEnabledConfigs()
	if err := t.coordinator.ReportProgress(t.SyncID, 1); err != nil {
		// Terminal already (watchdog or shutdown beat us to it); nothing to do
		slog.Warn("Sync job no longer accepting progress", "sync_id", t.SyncID, "error", err)
		return nil
	}

	if len(configs) == 0 {
		t.coordinator.CompleteSync(t.SyncID)
		slog.Info("Task completed", "type", t.GetType(), "sync_id", t.SyncID, "feeds", 0)
		return nil
	}

	// Deterministic order gives a stable progress progression
	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)

	errorCount := 0
	for i, name := range names {
		if ctx.Err() != nil {
			t.coordinator.FailSync(t.SyncID, "sync cancelled")
			return ctx.Err()
		}

		feedConfig := configs[name]
		if err := processFeed(ctx, feedConfig, t.httpClient, t.parser, t.feedRepo, t.articleRepo, t.userAgent); err != nil {
			slog.Warn("Feed failed during sync, continuing", "sync_id", t.SyncID, "feed", name, "error", err)
			errorCount++
		}

		// Hold 100 back for the terminal transition
		progress := (i + 1) * 99 / len(names)
		if err := t.coordinator.ReportProgress(t.SyncID, progress); err != nil {
			slog.Warn("Sync job sealed mid-pipeline, stopping", "sync_id", t.SyncID, "error", err)
			return nil
		}

		// Detached prefetch: enqueue failures are logged and dropped, the
		// prefetch has no correctness impact on the sync itself
		if feedConfig.Settings.ExtractContent && t.enqueueExtract != nil {
			if err := t.enqueueExtract(name, feedConfig); err != nil {
				slog.Warn("Failed to enqueue ExtractContentTask", "feed", name, "error", err)
			}
		}
	}

	if errorCount == len(names) {
		t.coordinator.FailSync(t.SyncID, fmt.Sprintf("all %d feeds failed", errorCount))
		return nil
	}

	t.coordinator.CompleteSync(t.SyncID)

	slog.Info("Task completed",
		"type", t.GetType(),
		"sync_id", t.SyncID,
		"duration", t.GetDuration(),
		"feeds", len(names),
		"errors", errorCount)

	return nil
}
