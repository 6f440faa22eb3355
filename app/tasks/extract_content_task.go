package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/openrss/reader/app/database"
	"github.com/openrss/reader/app/feed"
)

// ExtractContentTask pre-extracts full article content for a feed. It is
// strictly best-effort and detached: it is enqueued as a side effect of
// syncing and nothing waits on it, so its failures or slowness can never
// hold back sync progress.
type ExtractContentTask struct {
	Task
	FeedConfig       *feed.Config
	httpClient       *http.Client
	contentExtractor *feed.ContentExtractor
	articleRepo      database.ArticleRepository
	limiter          *rate.Limiter
	userAgent        string
}

func NewExtractContentTask(feedName string, feedConfig *feed.Config, httpClient *http.Client, contentExtractor *feed.ContentExtractor, articleRepo database.ArticleRepository, limiter *rate.Limiter, userAgent string) *ExtractContentTask {
	return &ExtractContentTask{
		Task:             NewTask(TaskTypeExtractContent, feedName),
		FeedConfig:       feedConfig,
		httpClient:       httpClient,
		contentExtractor: contentExtractor,
		articleRepo:      articleRepo,
		limiter:          limiter,
		userAgent:        userAgent,
	}
}

func (t *ExtractContentTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.FeedConfig.Settings.ExtractContent {
		slog.Debug("Content extraction disabled for feed", "feed", t.FeedName)
		return nil
	}

	articles, err := t.articleRepo.GetArticlesForExtraction(t.FeedName, t.FeedConfig.Settings.MaxItems)
	if err != nil {
		return fmt.Errorf("failed to get articles for content extraction: %w", err)
	}

	if len(articles) == 0 {
		slog.Debug("No articles need content extraction", "feed", t.FeedName)
		return nil
	}

	successCount := 0
	errorCount := 0

	for _, article := range articles {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}

		err := t.extractContentForArticle(ctx, article)
		if err != nil {
			slog.Error("Failed to extract content for article", "article_id", article.ID, "url", article.Link, "error", err)
			errorCount++

			now := time.Now().UTC()
			err = t.articleRepo.UpdateExtractedContent(article.ID, "", "failed", &now)
			if err != nil {
				slog.Error("Failed to update content extraction status", "article_id", article.ID, "error", err)
			}
		} else {
			successCount++
		}
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"feed", t.FeedName,
		"duration", t.GetDuration(),
		"success", successCount,
		"errors", errorCount)

	return nil
}

func (t *ExtractContentTask) extractContentForArticle(ctx context.Context, article database.ArticleForExtraction) error {
	if article.Link == "" {
		return fmt.Errorf("article has no link")
	}

	data, err := fetchURL(ctx, t.httpClient, article.Link, t.userAgent,
		time.Duration(t.FeedConfig.Settings.Timeout)*time.Second, "text/html")
	if err != nil {
		return fmt.Errorf("failed to fetch article page: %w", err)
	}

	extractedContent, err := t.contentExtractor.Run(data, article.Link)
	if err != nil {
		return fmt.Errorf("failed to extract content: %w", err)
	}

	now := time.Now().UTC()
	err = t.articleRepo.UpdateExtractedContent(article.ID, extractedContent, "success", &now)
	if err != nil {
		return fmt.Errorf("failed to store extracted content: %w", err)
	}

	slog.Debug("Content extracted successfully", "article_id", article.ID, "url", article.Link, "content_length", len(extractedContent))
	return nil
}
