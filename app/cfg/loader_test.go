package cfg

import (
	"testing"
)

func TestGetVersion(t *testing.T) {
	// Test default version
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}

	version := GetVersion()
	if version != "dev" && version != "unknown" {
		// This is fine, version could be set at build time
		t.Logf("Version: %s", version)
	}
}

func TestConfigFields(t *testing.T) {
	cfg := &Cfg{
		Port:              "8080",
		UserAgent:         "Test Agent",
		WorkerCount:       5,
		SchedulerInterval: 30,
		APIAccessKey:      "test-key",
		Version:           "test-version",
		FeedsDir:          "./feeds",
		DBPath:            "./data/reader.db",
		SessionDBPath:     "./data/session.db",
		AutoReadDwellMs:   2000,
		SnapshotTTL:       30,
		ScrollThrottleMs:  500,
		SyncStallTimeout:  30,
		ExtractRateLimit:  2,
		Timezone:          "UTC",
		Debug:             true,
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected port '8080', got '%s'", cfg.Port)
	}
	if cfg.UserAgent != "Test Agent" {
		t.Errorf("Expected user agent 'Test Agent', got '%s'", cfg.UserAgent)
	}
	if cfg.WorkerCount != 5 {
		t.Errorf("Expected worker count 5, got %d", cfg.WorkerCount)
	}
	if cfg.SchedulerInterval != 30 {
		t.Errorf("Expected scheduler interval 30, got %d", cfg.SchedulerInterval)
	}
	if cfg.DBPath != "./data/reader.db" {
		t.Errorf("Expected DB path './data/reader.db', got '%s'", cfg.DBPath)
	}
	if cfg.SessionDBPath != "./data/session.db" {
		t.Errorf("Expected session DB path './data/session.db', got '%s'", cfg.SessionDBPath)
	}
	if cfg.AutoReadDwellMs != 2000 {
		t.Errorf("Expected auto-read dwell 2000, got %d", cfg.AutoReadDwellMs)
	}
	if cfg.SnapshotTTL != 30 {
		t.Errorf("Expected snapshot TTL 30, got %d", cfg.SnapshotTTL)
	}
	if cfg.SyncStallTimeout != 30 {
		t.Errorf("Expected sync stall timeout 30, got %d", cfg.SyncStallTimeout)
	}
	if !cfg.Debug {
		t.Error("Expected debug to be enabled")
	}
}

func TestGetPanicsWithoutLoad(t *testing.T) {
	prev := globalCfg
	globalCfg = nil
	defer func() {
		globalCfg = prev
		if r := recover(); r == nil {
			t.Error("Expected Get to panic when configuration is not loaded")
		}
	}()

	Get()
}
