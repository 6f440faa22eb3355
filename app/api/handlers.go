package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openrss/reader/app/database"
	"github.com/openrss/reader/app/feed"
	"github.com/openrss/reader/app/session"
	"github.com/openrss/reader/app/sync"
	"github.com/openrss/reader/app/tasks"
)

func NewHandler(configCache *feed.ConfigCache, feedRepo database.FeedRepository,
	articleRepo database.ArticleRepository, tracker *session.Tracker,
	coordinator *sync.Coordinator, scheduler tasks.TaskSchedulerInterface,
	httpClient *http.Client, userAgent string) *Handler {
	return &Handler{
		feedRepo:    feedRepo,
		articleRepo: articleRepo,
		configCache: configCache,
		annotator:   feed.NewAnnotator(),
		extractor:   feed.NewContentExtractor(),
		tracker:     tracker,
		coordinator: coordinator,
		scheduler:   scheduler,
		httpClient:  httpClient,
		userAgent:   userAgent,
	}
}

func parseFilter(mode, feedID, tagID string) (session.Filter, bool) {
	if mode == "" {
		mode = string(session.FilterModeAll)
	}
	if mode != string(session.FilterModeAll) && mode != string(session.FilterModeUnread) {
		return session.Filter{}, false
	}
	if feedID != "" && tagID != "" {
		return session.Filter{}, false
	}
	return session.Filter{Mode: session.FilterMode(mode), FeedID: feedID, TagID: tagID}, true
}

// GetArticles returns the article list for a view, annotated with session
// read state. Read-but-session-tracked articles stay listed in unread mode.
func (h *Handler) GetArticles(c *gin.Context) {
	filter, ok := parseFilter(c.Query("filterMode"), c.Query("feedId"), c.Query("tagId"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filter parameters"})
		return
	}

	articles, err := h.articleRepo.ListArticles(database.ListOptions{
		FeedName: filter.FeedID,
		Tag:      filter.TagID,
	})
	if err != nil {
		slog.Error("Database error", "operation", "list_articles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	annotated := h.annotator.Run(articles, filter.Mode, h.tracker.ReadSet())

	response := make([]articleResponse, 0, len(annotated))
	for _, article := range annotated {
		updatedAt := ""
		if article.UpdatedAt != nil {
			updatedAt = article.UpdatedAt.UTC().Format(time.RFC3339)
		}
		response = append(response, articleResponse{
			ID:          article.ID,
			FeedID:      article.FeedID,
			Title:       article.Title,
			Link:        article.Link,
			Description: article.Description,
			PublishedAt: article.PublishedAt.UTC().Format(time.RFC3339),
			UpdatedAt:   updatedAt,
			Authors:     article.Authors,
			Categories:  article.Categories,
			IsRead:      article.IsRead,
			SessionRead: article.SessionRead,
			Tags:        article.Tags,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"articles":   response,
		"total":      len(response),
		"filterMode": filter.Mode,
	})
}

func (h *Handler) getArticleOr404(c *gin.Context) *database.Article {
	articleID := c.Param("id")
	article, err := h.articleRepo.GetArticle(articleID)
	if err != nil {
		slog.Error("Database error", "operation", "get_article", "article_id", articleID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil
	}
	if article == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return nil
	}
	return article
}

// MarkArticleRead records an explicit read: the stored flag flips and the
// session tracker keeps the article visible for the rest of the session.
func (h *Handler) MarkArticleRead(c *gin.Context) {
	article := h.getArticleOr404(c)
	if article == nil {
		return
	}

	if err := h.articleRepo.SetArticleRead(article.ID, true); err != nil {
		slog.Error("Database error", "operation", "set_read", "article_id", article.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	h.tracker.RecordManualRead(article.ID)

	c.JSON(http.StatusOK, gin.H{"success": true, "id": article.ID, "isRead": true})
}

func (h *Handler) MarkArticleUnread(c *gin.Context) {
	article := h.getArticleOr404(c)
	if article == nil {
		return
	}

	if err := h.articleRepo.SetArticleRead(article.ID, false); err != nil {
		slog.Error("Database error", "operation", "set_unread", "article_id", article.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	h.tracker.RecordUnread(article.ID)

	c.JSON(http.StatusOK, gin.H{"success": true, "id": article.ID, "isRead": false})
}

// RecordAutoRead reports a scroll-dwell observation. The tracker decides
// whether the dwell reached the read threshold; short dwells are ignored.
func (h *Handler) RecordAutoRead(c *gin.Context) {
	article := h.getArticleOr404(c)
	if article == nil {
		return
	}

	var req autoReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid auto-read payload"})
		return
	}

	committed := h.tracker.RecordAutoRead(article.ID,
		time.Duration(req.DwellTimeMs)*time.Millisecond, req.ScrollPosition)

	if committed {
		if err := h.articleRepo.SetArticleRead(article.ID, true); err != nil {
			slog.Error("Database error", "operation", "set_auto_read", "article_id", article.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "id": article.ID, "committed": committed})
}

// GetArticleContent serves the readable full content for the detail view,
// extracting on demand when no prefetched copy exists. Extraction failures
// always degrade to the feed-provided content, never to a user error.
func (h *Handler) GetArticleContent(c *gin.Context) {
	article := h.getArticleOr404(c)
	if article == nil {
		return
	}

	if article.ExtractedContent != "" {
		c.JSON(http.StatusOK, contentResponse{Success: true, Content: article.ExtractedContent, Cached: true})
		return
	}

	content, err := h.extractLive(c.Request.Context(), article)
	if err != nil {
		slog.Warn("Live content extraction failed, serving fallback",
			"article_id", article.ID, "url", article.Link, "error", err)

		fallback := article.Content
		if fallback == "" {
			fallback = article.Description
		}
		c.JSON(http.StatusOK, contentResponse{Success: true, Content: fallback, Fallback: true})
		return
	}

	c.JSON(http.StatusOK, contentResponse{Success: true, Content: content})
}

func (h *Handler) extractLive(ctx context.Context, article *database.Article) (string, error) {
	if article.Link == "" {
		return "", errors.New("article has no link")
	}

	fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, "GET", article.Link, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.New(resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	content, err := h.extractor.Run(data, article.Link)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	if err := h.articleRepo.UpdateExtractedContent(article.ID, content, "success", &now); err != nil {
		slog.Warn("Failed to cache extracted content", "article_id", article.ID, "error", err)
	}

	return content, nil
}

// StartSync triggers a new sync job and acknowledges immediately with its
// identifier. A live job rejects the request; the client keeps its trigger
// enabled and may retry after the live job settles.
func (h *Handler) StartSync(c *gin.Context) {
	syncID, err := h.coordinator.StartSync()
	if err != nil {
		if errors.Is(err, sync.ErrSyncInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "Sync already in progress", "retryable": true})
			return
		}
		slog.Error("Failed to start sync", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start sync", "retryable": true})
		return
	}

	if err := h.scheduler.EnqueueSync(syncID); err != nil {
		slog.Error("Failed to enqueue sync pipeline", "sync_id", syncID, "error", err)
		h.coordinator.FailSync(syncID, "failed to enqueue sync pipeline")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Sync could not be scheduled", "retryable": true})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"syncId": syncID})
}

func (h *Handler) GetSyncStatus(c *gin.Context) {
	syncID := c.Param("id")

	status, err := h.coordinator.PollStatus(syncID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Sync job not found"})
		return
	}

	response := gin.H{"progress": status.Progress, "state": status.State}
	if status.State == sync.StateFailed {
		response["reason"] = h.coordinator.Reason(syncID)
	}

	c.JSON(http.StatusOK, response)
}

// ChangeFilter switches the session to a new list view. The new view's
// membership bounds which manual reads stay tracked.
func (h *Handler) ChangeFilter(c *gin.Context) {
	var req filterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filter payload"})
		return
	}

	filter, ok := parseFilter(req.FilterMode, req.FeedID, req.TagID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filter parameters"})
		return
	}

	articles, err := h.articleRepo.ListArticles(database.ListOptions{
		FeedName: filter.FeedID,
		Tag:      filter.TagID,
	})
	if err != nil {
		slog.Error("Database error", "operation", "list_articles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	memberIDs := make([]string, 0, len(articles))
	for _, article := range articles {
		memberIDs = append(memberIDs, article.ID)
	}

	h.tracker.OnFilterChange(filter, memberIDs)

	c.JSON(http.StatusOK, gin.H{"success": true, "filterMode": filter.Mode})
}

func (h *Handler) RecordScroll(c *gin.Context) {
	var req scrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid scroll payload"})
		return
	}

	h.tracker.RecordScroll(req.ScrollPosition)

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RestoreSession applies the persisted snapshot on list mount when it is
// fresh and matches the requested view. A discarded snapshot is the normal
// "fresh view" branch, not an error.
func (h *Handler) RestoreSession(c *gin.Context) {
	var req filterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid restore payload"})
		return
	}

	filter, ok := parseFilter(req.FilterMode, req.FeedID, req.TagID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filter parameters"})
		return
	}

	restored := h.tracker.RestoreSnapshot(filter)

	response := gin.H{"restored": restored}
	if restored {
		response["snapshot"] = h.tracker.CaptureSnapshot()
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.tracker.CaptureSnapshot())
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		health["feeds"] = feedCount
	}
	if articleCount, err := h.articleRepo.GetArticleCount(); err == nil {
		health["articles"] = articleCount
	}
	if unreadCount, err := h.articleRepo.GetUnreadCount(); err == nil {
		health["unread"] = unreadCount
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListFeeds(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	feeds := make([]map[string]interface{}, 0, len(configs))

	for _, feedConfig := range configs {
		feedInfo := map[string]interface{}{
			"name":             feedConfig.Name,
			"url":              feedConfig.URL,
			"title":            "",
			"tags":             feedConfig.Tags,
			"enabled":          feedConfig.Settings.Enabled,
			"max_items":        feedConfig.Settings.MaxItems,
			"refresh_interval": (time.Duration(feedConfig.Settings.RefreshInterval) * time.Second).String(),
			"extract_content":  feedConfig.Settings.ExtractContent,
		}

		if dbFeed, err := h.feedRepo.GetFeed(feedConfig.Name); err == nil && dbFeed != nil {
			feedInfo["title"] = dbFeed.Title
			feedInfo["last_fetched_at"] = dbFeed.LastFetchedAt
			feedInfo["next_fetch_at"] = dbFeed.NextFetchAt
			feedInfo["updated_at"] = dbFeed.UpdatedAt
		}

		feeds = append(feeds, feedInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"feeds": feeds,
		"total": len(feeds),
	})
}
