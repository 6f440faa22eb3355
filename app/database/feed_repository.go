package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type FeedRepositoryImpl struct {
	db *DB
}

var _ FeedRepository = (*FeedRepositoryImpl)(nil)

func NewFeedRepository(db *DB) *FeedRepositoryImpl {
	return &FeedRepositoryImpl{db: db}
}

// UpsertFeed registers a subscription, updating the URL when the
// configuration changed but leaving fetched metadata untouched.
func (r *FeedRepositoryImpl) UpsertFeed(feedName, feedURL string) error {
	_, err := r.db.Exec(`
		INSERT INTO feeds (id, name, feed_url)
		VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE
		SET feed_url = excluded.feed_url, updated_at = CURRENT_TIMESTAMP
	`, uuid.NewString(), feedName, feedURL)

	if err != nil {
		return fmt.Errorf("failed to upsert feed: %w", err)
	}

	return nil
}

// UpdateFeedMetadata stores feed-level metadata after successful parsing
// and schedules the next fetch.
func (r *FeedRepositoryImpl) UpdateFeedMetadata(feedName string, title string, link string, description string, imageURL string, language string, publishedAt *time.Time, nextFetch time.Time) error {
	var published any
	if publishedAt != nil {
		published = publishedAt.UTC()
	}

	_, err := r.db.Exec(`
		UPDATE feeds
		SET title = ?, link = ?, description = ?, image_url = ?, language = ?, published_at = ?,
		    last_fetched_at = CURRENT_TIMESTAMP, next_fetch_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE name = ?
	`, title, link, description, imageURL, language, published, nextFetch.UTC(), feedName)

	if err != nil {
		return fmt.Errorf("failed to update feed metadata: %w", err)
	}

	return nil
}

func (r *FeedRepositoryImpl) GetFeed(feedName string) (*Feed, error) {
	var feed Feed
	err := r.db.QueryRow(`
		SELECT id, name, feed_url, title, link, description, image_url, language,
		       published_at, last_fetched_at, next_fetch_at, created_at, updated_at
		FROM feeds
		WHERE name = ?
	`, feedName).Scan(
		&feed.ID, &feed.Name, &feed.FeedURL, &feed.Title, &feed.Link, &feed.Description,
		&feed.ImageURL, &feed.Language, &feed.PublishedAt, &feed.LastFetchedAt,
		&feed.NextFetchAt, &feed.CreatedAt, &feed.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	return &feed, nil
}

func (r *FeedRepositoryImpl) GetFeeds() ([]Feed, error) {
	rows, err := r.db.Query(`
		SELECT id, name, feed_url, title, link, description, image_url, language,
		       published_at, last_fetched_at, next_fetch_at, created_at, updated_at
		FROM feeds
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		var feed Feed
		err := rows.Scan(
			&feed.ID, &feed.Name, &feed.FeedURL, &feed.Title, &feed.Link, &feed.Description,
			&feed.ImageURL, &feed.Language, &feed.PublishedAt, &feed.LastFetchedAt,
			&feed.NextFetchAt, &feed.CreatedAt, &feed.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

func (r *FeedRepositoryImpl) GetFeedCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}
