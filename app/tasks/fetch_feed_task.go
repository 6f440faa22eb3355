package tasks

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/openrss/reader/app/database"
	"github.com/openrss/reader/app/feed"
)

// FetchFeedTask refreshes one subscription in the background, outside of
// any user-triggered sync job.
type FetchFeedTask struct {
	Task
	FeedConfig  *feed.Config
	httpClient  *http.Client
	parser      *feed.Parser
	feedRepo    database.FeedRepository
	articleRepo database.ArticleRepository
	userAgent   string
}

func NewFetchFeedTask(feedName string, feedConfig *feed.Config, httpClient *http.Client, parser *feed.Parser, feedRepo database.FeedRepository, articleRepo database.ArticleRepository, userAgent string) *FetchFeedTask {
	return &FetchFeedTask{
		Task:        NewTask(TaskTypeFetchFeed, feedName),
		FeedConfig:  feedConfig,
		httpClient:  httpClient,
		parser:      parser,
		feedRepo:    feedRepo,
		articleRepo: articleRepo,
		userAgent:   userAgent,
	}
}

func (t *FetchFeedTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.FeedConfig.Settings.Enabled {
		slog.Debug("Feed disabled, skipping", "feed", t.FeedName)
		return nil
	}

	err := processFeed(ctx, t.FeedConfig, t.httpClient, t.parser, t.feedRepo, t.articleRepo, t.userAgent)
	if err != nil {
		return err
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"feed", t.FeedName,
		"duration", t.GetDuration())

	return nil
}
