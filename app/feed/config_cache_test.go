package feed

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("Expected no error writing config file, got: %v", err)
	}
}

func TestConfigCacheRun(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "tech-blog.yml", `url: https://example.com/feed.xml
tags:
  - tech
  - programming
settings:
  enabled: true
  extract_content: true
`)
	writeConfigFile(t, dir, "news.yml", `url: https://news.example.com/rss
settings:
  enabled: false
`)

	cache := NewConfigCache(dir)
	if err := cache.Run(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cache.GetConfigCount() != 2 {
		t.Errorf("Expected 2 configs, got: %d", cache.GetConfigCount())
	}

	config, err := cache.GetConfig("tech-blog")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if config.Name != "tech-blog" {
		t.Errorf("Expected name 'tech-blog', got: %s", config.Name)
	}
	if config.URL != "https://example.com/feed.xml" {
		t.Errorf("Expected URL 'https://example.com/feed.xml', got: %s", config.URL)
	}
	if len(config.Tags) != 2 || config.Tags[0] != "tech" || config.Tags[1] != "programming" {
		t.Errorf("Expected tags [tech programming], got: %v", config.Tags)
	}
	if !config.Settings.ExtractContent {
		t.Error("Expected extract_content to be enabled")
	}
}

func TestConfigCacheDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "minimal.yml", `url: https://example.com/feed.xml
`)

	cache := NewConfigCache(dir)
	if err := cache.Run(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	config, err := cache.GetConfig("minimal")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if config.Settings.RefreshInterval != 3600 {
		t.Errorf("Expected default refresh interval 3600, got: %d", config.Settings.RefreshInterval)
	}
	if config.Settings.MaxItems != 100 {
		t.Errorf("Expected default max items 100, got: %d", config.Settings.MaxItems)
	}
	if config.Settings.Timeout != 30 {
		t.Errorf("Expected default timeout 30, got: %d", config.Settings.Timeout)
	}
}

func TestConfigCacheMissingURL(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "broken.yml", `tags:
  - tech
`)

	cache := NewConfigCache(dir)
	if err := cache.Run(); err == nil {
		t.Error("Expected an error for config without URL")
	}
}

func TestConfigCacheEmptyTag(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "broken.yml", `url: https://example.com/feed.xml
tags:
  - tech
  - ""
`)

	cache := NewConfigCache(dir)
	if err := cache.Run(); err == nil {
		t.Error("Expected an error for empty tag")
	}
}

func TestConfigCacheMissingDir(t *testing.T) {
	cache := NewConfigCache(filepath.Join(t.TempDir(), "does-not-exist"))
	if err := cache.Run(); err != nil {
		t.Errorf("Expected missing feeds directory to be tolerated, got: %v", err)
	}
	if cache.GetConfigCount() != 0 {
		t.Errorf("Expected 0 configs, got: %d", cache.GetConfigCount())
	}
}

func TestConfigCacheGetEnabledConfigs(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "on.yml", `url: https://example.com/a.xml
settings:
  enabled: true
`)
	writeConfigFile(t, dir, "off.yml", `url: https://example.com/b.xml
settings:
  enabled: false
`)

	cache := NewConfigCache(dir)
	if err := cache.Run(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	enabled := cache.GetEnabledConfigs()
	if len(enabled) != 1 {
		t.Fatalf("Expected 1 enabled config, got: %d", len(enabled))
	}
	if _, ok := enabled["on"]; !ok {
		t.Error("Expected 'on' to be in enabled configs")
	}
}

func TestConfigCacheUnknownFeed(t *testing.T) {
	cache := NewConfigCache(t.TempDir())
	if _, err := cache.GetConfig("missing"); err == nil {
		t.Error("Expected an error for unknown feed name")
	}
}
