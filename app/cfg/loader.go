package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath        string `long:"db-path" env:"DB_PATH" default:"./data/reader.db" description:"Path to the SQLite article database"`
	SessionDBPath string `long:"session-db-path" env:"SESSION_DB_PATH" default:"./data/session.db" description:"Path to the session state store"`

	// Application configuration
	FeedsDir          string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing feed subscription files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for task processing"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"30" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for mutating endpoints (optional)"`

	// Session tracking configuration
	AutoReadDwellMs  int `long:"auto-read-dwell-ms" env:"AUTO_READ_DWELL_MS" default:"2000" description:"Viewport dwell time before an article counts as auto-read"`
	SnapshotTTL      int `long:"snapshot-ttl" env:"SNAPSHOT_TTL" default:"30" description:"Session snapshot time-to-live in minutes"`
	ScrollThrottleMs int `long:"scroll-throttle-ms" env:"SCROLL_THROTTLE_MS" default:"500" description:"Minimum interval between scroll position persists"`

	// Sync configuration
	SyncStallTimeout int     `long:"sync-stall-timeout" env:"SYNC_STALL_TIMEOUT" default:"30" description:"Seconds without sync progress before the watchdog fails the job"`
	ExtractRateLimit float64 `long:"extract-rate-limit" env:"EXTRACT_RATE_LIMIT" default:"2" description:"Content extraction requests per second"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"OpenRSS Reader/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		SessionDBPath:     raw.SessionDBPath,
		FeedsDir:          raw.FeedsDir,
		Port:              raw.Port,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		APIAccessKey:      raw.APIAccessKey,
		AutoReadDwellMs:   raw.AutoReadDwellMs,
		SnapshotTTL:       raw.SnapshotTTL,
		ScrollThrottleMs:  raw.ScrollThrottleMs,
		SyncStallTimeout:  raw.SyncStallTimeout,
		ExtractRateLimit:  raw.ExtractRateLimit,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
