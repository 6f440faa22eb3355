package api

import (
	"net/http"

	"github.com/openrss/reader/app/database"
	"github.com/openrss/reader/app/feed"
	"github.com/openrss/reader/app/session"
	"github.com/openrss/reader/app/sync"
	"github.com/openrss/reader/app/tasks"
)

type Handler struct {
	feedRepo    database.FeedRepository
	articleRepo database.ArticleRepository
	configCache *feed.ConfigCache
	annotator   *feed.Annotator
	extractor   *feed.ContentExtractor
	tracker     *session.Tracker
	coordinator *sync.Coordinator
	scheduler   tasks.TaskSchedulerInterface
	httpClient  *http.Client
	userAgent   string
}

// Request payloads

type autoReadRequest struct {
	DwellTimeMs    int64   `json:"dwellTimeMs" binding:"required"`
	ScrollPosition float64 `json:"scrollPosition"`
}

type scrollRequest struct {
	ScrollPosition float64 `json:"scrollPosition"`
}

type filterRequest struct {
	FilterMode string `json:"filterMode" binding:"required"`
	FeedID     string `json:"feedId"`
	TagID      string `json:"tagId"`
}

// Response payloads

type articleResponse struct {
	ID          string   `json:"id"`
	FeedID      string   `json:"feedId"`
	Title       string   `json:"title"`
	Link        string   `json:"link"`
	Description string   `json:"description"`
	PublishedAt string   `json:"publishedAt"`
	UpdatedAt   string   `json:"updatedAt,omitempty"`
	Authors     []string `json:"authors"`
	Categories  []string `json:"categories"`
	IsRead      bool     `json:"isRead"`
	SessionRead bool     `json:"sessionRead"`
	Tags        []string `json:"tagIds"`
}

type contentResponse struct {
	Success  bool   `json:"success"`
	Content  string `json:"content"`
	Cached   bool   `json:"cached"`
	Fallback bool   `json:"fallback,omitempty"`
}
