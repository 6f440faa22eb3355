package database

import (
	"time"
)

type Feed struct {
	ID            string // Database UUID
	Name          string // Subscription identifier derived from filename
	FeedURL       string // RSS/Atom feed URL from the subscription config
	Title         string
	Link          string // Homepage URL from feed's <link> element
	Description   string
	ImageURL      string
	Language      string
	PublishedAt   *time.Time // Feed-level publication date from the feed document
	LastFetchedAt *time.Time
	NextFetchAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time // Tracks last successful processing
}

type Article struct {
	ID               string
	FeedID           string
	GUID             string
	Link             string
	Title            string
	Description      string
	Content          string
	ExtractedContent string
	ExtractionStatus string // pending, success, failed, skipped
	ExtractedAt      *time.Time
	PublishedAt      time.Time
	UpdatedAt        *time.Time
	IsRead           bool
	Authors          []string // Formatted as "email (name)" or "name"
	Categories       []string // Feed-provided categories, distinct from subscription tags
	Tags             []string
	ContentHash      string
	CreatedAt        time.Time
}
