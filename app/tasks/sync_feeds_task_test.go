package tasks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/openrss/reader/app/database"
	"github.com/openrss/reader/app/feed"
)

type mockCoordinator struct {
	mu        sync.Mutex
	progress  []int
	completed bool
	failed    bool
	reason    string
}

func (m *mockCoordinator) ReportProgress(syncID string, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress = append(m.progress, value)
	return nil
}

func (m *mockCoordinator) CompleteSync(syncID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = true
	return nil
}

func (m *mockCoordinator) FailSync(syncID string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = true
	m.reason = reason
	return nil
}

type mockFeedRepo struct {
	metadataUpdates []string
}

func (m *mockFeedRepo) GetFeed(feedName string) (*database.Feed, error) { return nil, nil }
func (m *mockFeedRepo) GetFeeds() ([]database.Feed, error)             { return nil, nil }
func (m *mockFeedRepo) GetFeedCount() (int, error)                     { return 0, nil }
func (m *mockFeedRepo) UpsertFeed(feedName, feedURL string) error      { return nil }
func (m *mockFeedRepo) UpdateFeedMetadata(feedName string, title string, link string, description string, imageURL string, language string, publishedAt *time.Time, nextFetch time.Time) error {
	m.metadataUpdates = append(m.metadataUpdates, feedName)
	return nil
}

type mockArticleRepo struct {
	upserted []database.FeedArticle
}

func (m *mockArticleRepo) GetArticle(articleID string) (*database.Article, error) { return nil, nil }
func (m *mockArticleRepo) ListArticles(opts database.ListOptions) ([]database.Article, error) {
	return nil, nil
}
func (m *mockArticleRepo) GetArticleCount() (int, error) { return 0, nil }
func (m *mockArticleRepo) GetUnreadCount() (int, error)  { return 0, nil }
func (m *mockArticleRepo) UpsertArticle(feedName string, article database.FeedArticle) error {
	m.upserted = append(m.upserted, article)
	return nil
}
func (m *mockArticleRepo) SetArticleRead(articleID string, read bool) error { return nil }
func (m *mockArticleRepo) CheckDuplicate(feedName, contentHash string) (bool, error) {
	return false, nil
}
func (m *mockArticleRepo) GetArticlesForExtraction(feedName string, limit int) ([]database.ArticleForExtraction, error) {
	return nil, nil
}
func (m *mockArticleRepo) UpdateExtractedContent(articleID string, content string, status string, extractedAt *time.Time) error {
	return nil
}

const syncTestFeed = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Sync Test Feed</title>
    <link>https://example.com</link>
    <item>
      <title>Article One</title>
      <link>https://example.com/1</link>
      <guid>one</guid>
    </item>
    <item>
      <title>Article Two</title>
      <link>https://example.com/2</link>
      <guid>two</guid>
    </item>
  </channel>
</rss>`

func newSyncConfigCache(t *testing.T, feedURLs map[string]string) *feed.ConfigCache {
	t.Helper()
	dir := t.TempDir()
	for name, url := range feedURLs {
		content := "url: " + url + "\nsettings:\n  enabled: true\n"
		if err := os.WriteFile(filepath.Join(dir, name+".yml"), []byte(content), 0o644); err != nil {
			t.Fatalf("Expected no error writing config, got: %v", err)
		}
	}
	cache := feed.NewConfigCache(dir)
	if err := cache.Run(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	return cache
}

func TestSyncFeedsTaskCompletes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(syncTestFeed))
	}))
	defer server.Close()

	cache := newSyncConfigCache(t, map[string]string{
		"feed-a": server.URL,
		"feed-b": server.URL,
	})
	coordinator := &mockCoordinator{}
	feedRepo := &mockFeedRepo{}
	articleRepo := &mockArticleRepo{}

	task := NewSyncFeedsTask("sync-1", coordinator, cache, server.Client(), feed.NewParser(), feedRepo, articleRepo, nil, "test-agent")
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !coordinator.completed {
		t.Error("Expected sync to complete")
	}
	if coordinator.failed {
		t.Errorf("Expected no failure, got reason: %q", coordinator.reason)
	}

	for i := 1; i < len(coordinator.progress); i++ {
		if coordinator.progress[i] < coordinator.progress[i-1] {
			t.Errorf("Expected non-decreasing progress, got: %v", coordinator.progress)
		}
	}
	last := coordinator.progress[len(coordinator.progress)-1]
	if last != 99 {
		t.Errorf("Expected pipeline to stop at 99 before completion, got: %d", last)
	}

	if len(feedRepo.metadataUpdates) != 2 {
		t.Errorf("Expected metadata updates for both feeds, got: %v", feedRepo.metadataUpdates)
	}
	if len(articleRepo.upserted) != 4 {
		t.Errorf("Expected 4 stored articles, got: %d", len(articleRepo.upserted))
	}
}

func TestSyncFeedsTaskNoFeeds(t *testing.T) {
	cache := newSyncConfigCache(t, nil)
	coordinator := &mockCoordinator{}

	task := NewSyncFeedsTask("sync-1", coordinator, cache, http.DefaultClient, feed.NewParser(), &mockFeedRepo{}, &mockArticleRepo{}, nil, "test-agent")
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !coordinator.completed {
		t.Error("Expected empty sync to complete immediately")
	}
}

func TestSyncFeedsTaskPartialFailure(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(syncTestFeed))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	cache := newSyncConfigCache(t, map[string]string{
		"good-feed": good.URL,
		"bad-feed":  bad.URL,
	})
	coordinator := &mockCoordinator{}

	task := NewSyncFeedsTask("sync-1", coordinator, cache, http.DefaultClient, feed.NewParser(), &mockFeedRepo{}, &mockArticleRepo{}, nil, "test-agent")
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	// One working feed is enough for the sync to count as successful
	if !coordinator.completed {
		t.Error("Expected sync with a surviving feed to complete")
	}
	if coordinator.failed {
		t.Errorf("Expected no failure, got reason: %q", coordinator.reason)
	}
}

func TestSyncFeedsTaskAllFeedsFail(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	cache := newSyncConfigCache(t, map[string]string{
		"bad-a": bad.URL,
		"bad-b": bad.URL,
	})
	coordinator := &mockCoordinator{}

	task := NewSyncFeedsTask("sync-1", coordinator, cache, http.DefaultClient, feed.NewParser(), &mockFeedRepo{}, &mockArticleRepo{}, nil, "test-agent")
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if coordinator.completed {
		t.Error("Expected all-failed sync to not complete")
	}
	if !coordinator.failed {
		t.Error("Expected all-failed sync to be failed")
	}
}

func TestSyncFeedsTaskEnqueuesExtraction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(syncTestFeed))
	}))
	defer server.Close()

	dir := t.TempDir()
	content := "url: " + server.URL + "\nsettings:\n  enabled: true\n  extract_content: true\n"
	if err := os.WriteFile(filepath.Join(dir, "extracting.yml"), []byte(content), 0o644); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	cache := feed.NewConfigCache(dir)
	if err := cache.Run(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	var extractedFeeds []string
	enqueue := func(feedName string, feedConfig *feed.Config) error {
		extractedFeeds = append(extractedFeeds, feedName)
		return nil
	}

	coordinator := &mockCoordinator{}
	task := NewSyncFeedsTask("sync-1", coordinator, cache, http.DefaultClient, feed.NewParser(), &mockFeedRepo{}, &mockArticleRepo{}, enqueue, "test-agent")
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(extractedFeeds) != 1 || extractedFeeds[0] != "extracting" {
		t.Errorf("Expected extraction enqueued for 'extracting', got: %v", extractedFeeds)
	}
	if !coordinator.completed {
		t.Error("Expected sync to complete regardless of prefetch")
	}
}

func TestSyncFeedsTaskCancelled(t *testing.T) {
	cache := newSyncConfigCache(t, nil)
	coordinator := &mockCoordinator{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task := NewSyncFeedsTask("sync-1", coordinator, cache, http.DefaultClient, feed.NewParser(), &mockFeedRepo{}, &mockArticleRepo{}, nil, "test-agent")
	if err := task.Execute(ctx); err == nil {
		t.Error("Expected an error for a cancelled sync")
	}

	if !coordinator.failed {
		t.Error("Expected cancelled sync to be failed")
	}
}
