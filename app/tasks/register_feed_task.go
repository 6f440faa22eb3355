package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openrss/reader/app/database"
	"github.com/openrss/reader/app/feed"
)

// RegisterFeedTask pushes a subscription's identity into the database so
// repositories can resolve it before the first fetch.
type RegisterFeedTask struct {
	Task
	FeedConfig *feed.Config
	feedRepo   database.FeedRepository
}

func NewRegisterFeedTask(feedName string, feedConfig *feed.Config, feedRepo database.FeedRepository) *RegisterFeedTask {
	return &RegisterFeedTask{
		Task:       NewTask(TaskTypeRegisterFeed, feedName),
		FeedConfig: feedConfig,
		feedRepo:   feedRepo,
	}
}

func (t *RegisterFeedTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := t.feedRepo.UpsertFeed(t.FeedConfig.Name, t.FeedConfig.URL)
	if err != nil {
		slog.Error("Task failed", "type", t.GetType(), "feed", t.FeedName, "error", err)
		return fmt.Errorf("failed to register feed in database: %w", err)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"feed", t.FeedName,
		"duration", t.GetDuration())

	return nil
}
