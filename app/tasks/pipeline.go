package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openrss/reader/app/database"
	"github.com/openrss/reader/app/feed"
)

// processFeed fetches, parses and stores one subscription. It is shared by
// the background refresh task and the user-triggered sync pipeline.
func processFeed(ctx context.Context, feedConfig *feed.Config, httpClient *http.Client,
	parser *feed.Parser, feedRepo database.FeedRepository,
	articleRepo database.ArticleRepository, userAgent string) error {

	data, err := fetchURL(ctx, httpClient, feedConfig.URL, userAgent,
		time.Duration(feedConfig.Settings.Timeout)*time.Second, "")
	if err != nil {
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	metadata, items, err := parser.Run(data)
	if err != nil {
		return fmt.Errorf("failed to parse feed: %w", err)
	}

	nextFetch := time.Now().UTC().Add(time.Duration(feedConfig.Settings.RefreshInterval) * time.Second)
	err = feedRepo.UpdateFeedMetadata(feedConfig.Name, metadata.Title, metadata.Link,
		metadata.Description, metadata.ImageURL, metadata.Language, metadata.FeedPublishedAt, nextFetch)
	if err != nil {
		return fmt.Errorf("failed to store feed metadata: %w", err)
	}

	duplicateCount := 0
	newCount := 0

	if feedConfig.Settings.MaxItems > 0 && len(items) > feedConfig.Settings.MaxItems {
		items = items[:feedConfig.Settings.MaxItems]
	}

	for _, item := range items {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		isDuplicate, err := articleRepo.CheckDuplicate(feedConfig.Name, item.ContentHash)
		if err != nil {
			return fmt.Errorf("failed to check for duplicates: %w", err)
		}
		if isDuplicate {
			duplicateCount++
			continue
		}

		article := database.FeedArticle{
			GUID:        item.GUID,
			Title:       item.Title,
			Link:        item.Link,
			Description: item.Description,
			Content:     item.Content,
			PublishedAt: item.PublishedAt,
			UpdatedAt:   item.UpdatedAt,
			Authors:     item.Authors,
			Categories:  item.Categories,
			Tags:        feedConfig.Tags,
			ContentHash: item.ContentHash,
		}
		if err := articleRepo.UpsertArticle(feedConfig.Name, article); err != nil {
			return fmt.Errorf("failed to store article: %w", err)
		}
		newCount++
	}

	slog.Info("Feed processed",
		"feed", feedConfig.Name,
		"total", len(items),
		"duplicates", duplicateCount,
		"new", newCount)

	return nil
}

func fetchURL(ctx context.Context, httpClient *http.Client, url string, userAgent string,
	timeout time.Duration, requiredContentType string) ([]byte, error) {

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	if requiredContentType != "" {
		contentType := resp.Header.Get("Content-Type")
		if !containsFold(contentType, requiredContentType) {
			return nil, fmt.Errorf("unexpected content type: %s", contentType)
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
