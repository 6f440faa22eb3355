package tasks

// TaskSchedulerInterface defines the interface for task scheduling
// operations. EnqueueSync builds and enqueues the full sync pipeline for an
// already-registered sync job.
// Example usage:
//
//	scheduler := NewScheduler(coordinator, configCache, feedRepo, articleRepo, httpClient, parser, contentExtractor)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueSync(syncID)
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	EnqueueSync(syncID string) error
}

// SyncCoordinatorInterface is the slice of the sync coordinator the
// pipeline needs: reporting forward progress and sealing the job.
type SyncCoordinatorInterface interface {
	ReportProgress(syncID string, value int) error
	CompleteSync(syncID string) error
	FailSync(syncID string, reason string) error
}
