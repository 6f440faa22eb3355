package cfg

type Cfg struct {
	// Storage configuration
	DBPath        string
	SessionDBPath string

	// Application configuration
	FeedsDir          string
	Port              string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Session tracking configuration
	AutoReadDwellMs  int
	SnapshotTTL      int // minutes
	ScrollThrottleMs int

	// Sync configuration
	SyncStallTimeout int     // seconds
	ExtractRateLimit float64 // requests per second for content extraction

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
