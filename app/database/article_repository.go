package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ArticleRepositoryImpl struct {
	db *DB
}

var _ ArticleRepository = (*ArticleRepositoryImpl)(nil)

func NewArticleRepository(db *DB) *ArticleRepositoryImpl {
	return &ArticleRepositoryImpl{db: db}
}

const articleColumns = `a.id, a.feed_id, a.guid, a.link, a.title, a.description, a.content,
	a.extracted_content, a.extraction_status, a.extracted_at, a.published_at, a.updated_at,
	a.is_read, a.authors, a.categories, a.tags, a.content_hash, a.created_at`

func (r *ArticleRepositoryImpl) scanArticle(row interface{ Scan(...any) error }) (*Article, error) {
	var article Article
	var isRead int
	var authorsJSON, categoriesJSON, tagsJSON string

	err := row.Scan(
		&article.ID, &article.FeedID, &article.GUID, &article.Link, &article.Title,
		&article.Description, &article.Content, &article.ExtractedContent,
		&article.ExtractionStatus, &article.ExtractedAt, &article.PublishedAt,
		&article.UpdatedAt, &isRead, &authorsJSON, &categoriesJSON, &tagsJSON,
		&article.ContentHash, &article.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	article.IsRead = isRead != 0
	if err := json.Unmarshal([]byte(authorsJSON), &article.Authors); err != nil {
		return nil, fmt.Errorf("failed to decode article authors: %w", err)
	}
	if err := json.Unmarshal([]byte(categoriesJSON), &article.Categories); err != nil {
		return nil, fmt.Errorf("failed to decode article categories: %w", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &article.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode article tags: %w", err)
	}

	return &article, nil
}

// encodeList marshals a string list for storage, mapping nil to the empty
// JSON array so the columns' defaults stay uniform.
func encodeList(values []string) (string, error) {
	if values == nil {
		return "[]", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UpsertArticle inserts or refreshes a parsed article. The read flag is an
// authoritative user decision and is never reset by a refresh.
func (r *ArticleRepositoryImpl) UpsertArticle(feedName string, article FeedArticle) error {
	authorsJSON, err := encodeList(article.Authors)
	if err != nil {
		return fmt.Errorf("failed to encode article authors: %w", err)
	}
	categoriesJSON, err := encodeList(article.Categories)
	if err != nil {
		return fmt.Errorf("failed to encode article categories: %w", err)
	}
	tagsJSON, err := encodeList(article.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode article tags: %w", err)
	}

	var updatedAt any
	if article.UpdatedAt != nil {
		updatedAt = article.UpdatedAt.UTC()
	}

	_, err = r.db.Exec(`
		INSERT INTO articles (id, feed_id, guid, link, title, description, content,
		                      published_at, updated_at, authors, categories, tags, content_hash)
		SELECT ?, f.id, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		FROM feeds f
		WHERE f.name = ?
		ON CONFLICT (feed_id, guid) DO UPDATE
		SET link = excluded.link, title = excluded.title,
		    description = excluded.description, content = excluded.content,
		    published_at = excluded.published_at, updated_at = excluded.updated_at,
		    authors = excluded.authors, categories = excluded.categories,
		    tags = excluded.tags, content_hash = excluded.content_hash
	`, uuid.NewString(), article.GUID, article.Link, article.Title, article.Description,
		article.Content, article.PublishedAt.UTC(), updatedAt, authorsJSON, categoriesJSON,
		tagsJSON, article.ContentHash, feedName)

	if err != nil {
		return fmt.Errorf("failed to upsert article: %w", err)
	}

	return nil
}

func (r *ArticleRepositoryImpl) GetArticle(articleID string) (*Article, error) {
	row := r.db.QueryRow(`
		SELECT `+articleColumns+`
		FROM articles a
		WHERE a.id = ?
	`, articleID)

	article, err := r.scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}

	return article, nil
}

// ListArticles returns articles narrowed by the options, newest first.
// Read-state filtering is deliberately not done here: the presentation
// layer decides visibility so session-read articles can stay listed.
func (r *ArticleRepositoryImpl) ListArticles(opts ListOptions) ([]Article, error) {
	query := `
		SELECT ` + articleColumns + `
		FROM articles a
		JOIN feeds f ON f.id = a.feed_id
	`
	var args []any

	switch {
	case opts.FeedName != "":
		query += " WHERE f.name = ?"
		args = append(args, opts.FeedName)
	case opts.Tag != "":
		query += " WHERE EXISTS (SELECT 1 FROM json_each(a.tags) WHERE json_each.value = ?)"
		args = append(args, opts.Tag)
	}

	query += " ORDER BY a.published_at DESC, a.created_at DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		article, err := r.scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		articles = append(articles, *article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}

	return articles, nil
}

func (r *ArticleRepositoryImpl) SetArticleRead(articleID string, read bool) error {
	readVal := 0
	if read {
		readVal = 1
	}

	result, err := r.db.Exec(`
		UPDATE articles SET is_read = ? WHERE id = ?
	`, readVal, articleID)
	if err != nil {
		return fmt.Errorf("failed to set article read state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("article not found: %s", articleID)
	}

	return nil
}

func (r *ArticleRepositoryImpl) CheckDuplicate(feedName, contentHash string) (bool, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*)
		FROM articles a
		JOIN feeds f ON f.id = a.feed_id
		WHERE f.name = ? AND a.content_hash = ?
	`, feedName, contentHash).Scan(&count)

	if err != nil {
		return false, fmt.Errorf("failed to check for duplicate: %w", err)
	}

	return count > 0, nil
}

func (r *ArticleRepositoryImpl) GetArticleCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM articles").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get article count: %w", err)
	}
	return count, nil
}

func (r *ArticleRepositoryImpl) GetUnreadCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM articles WHERE is_read = 0").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get unread count: %w", err)
	}
	return count, nil
}

// GetArticlesForExtraction returns articles still awaiting full-content
// extraction for the given feed.
func (r *ArticleRepositoryImpl) GetArticlesForExtraction(feedName string, limit int) ([]ArticleForExtraction, error) {
	rows, err := r.db.Query(`
		SELECT a.id, a.link
		FROM articles a
		JOIN feeds f ON f.id = a.feed_id
		WHERE f.name = ? AND a.extraction_status = 'pending' AND a.link != ''
		ORDER BY a.published_at DESC
		LIMIT ?
	`, feedName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get articles for extraction: %w", err)
	}
	defer rows.Close()

	var articles []ArticleForExtraction
	for rows.Next() {
		var article ArticleForExtraction
		if err := rows.Scan(&article.ID, &article.Link); err != nil {
			return nil, fmt.Errorf("failed to scan extraction row: %w", err)
		}
		articles = append(articles, article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating extraction rows: %w", err)
	}

	return articles, nil
}

func (r *ArticleRepositoryImpl) UpdateExtractedContent(articleID string, content string, status string, extractedAt *time.Time) error {
	var at any
	if extractedAt != nil {
		at = extractedAt.UTC()
	}

	_, err := r.db.Exec(`
		UPDATE articles
		SET extracted_content = ?, extraction_status = ?, extracted_at = ?
		WHERE id = ?
	`, content, status, at, articleID)

	if err != nil {
		return fmt.Errorf("failed to update extracted content: %w", err)
	}

	return nil
}
