package database

import (
	"time"
)

// FeedArticle is the parsed, normalized form of a feed entry as produced by
// the sync pipeline, before it is stored.
type FeedArticle struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Content     string
	PublishedAt time.Time
	UpdatedAt   *time.Time
	Authors     []string
	Categories  []string
	Tags        []string
	ContentHash string
}

type FeedRepository interface {
	GetFeed(feedName string) (*Feed, error)
	GetFeeds() ([]Feed, error)
	GetFeedCount() (int, error)

	UpsertFeed(feedName, feedURL string) error
	UpdateFeedMetadata(feedName string, title string, link string, description string, imageURL string, language string, publishedAt *time.Time, nextFetch time.Time) error
}

// ListOptions narrows an article listing to one feed or one tag. FeedName
// and Tag are mutually exclusive; zero values mean "all articles".
type ListOptions struct {
	FeedName string
	Tag      string
	Limit    int
}

type ArticleForExtraction struct {
	ID   string
	Link string
}

type ArticleRepository interface {
	GetArticle(articleID string) (*Article, error)
	ListArticles(opts ListOptions) ([]Article, error)
	GetArticleCount() (int, error)
	GetUnreadCount() (int, error)

	UpsertArticle(feedName string, article FeedArticle) error
	SetArticleRead(articleID string, read bool) error

	CheckDuplicate(feedName, contentHash string) (bool, error)

	GetArticlesForExtraction(feedName string, limit int) ([]ArticleForExtraction, error)
	UpdateExtractedContent(articleID string, content string, status string, extractedAt *time.Time) error
}
