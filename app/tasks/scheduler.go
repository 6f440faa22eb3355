package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/openrss/reader/app/cfg"
	"github.com/openrss/reader/app/database"
	"github.com/openrss/reader/app/feed"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	coordinator      SyncCoordinatorInterface
	feedRepo         database.FeedRepository
	articleRepo      database.ArticleRepository
	configCache      *feed.ConfigCache
	httpClient       *http.Client
	parser           *feed.Parser
	contentExtractor *feed.ContentExtractor
	extractLimiter   *rate.Limiter
	userAgent        string
	interval         time.Duration
	workerCount      int
	ctx              context.Context
	cancel           context.CancelFunc
	wg               sync.WaitGroup
	taskQueue        chan TaskInterface
}

func NewScheduler(coordinator SyncCoordinatorInterface, configCache *feed.ConfigCache,
	feedRepo database.FeedRepository, articleRepo database.ArticleRepository,
	httpClient *http.Client, parser *feed.Parser,
	contentExtractor *feed.ContentExtractor) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		coordinator:      coordinator,
		feedRepo:         feedRepo,
		articleRepo:      articleRepo,
		configCache:      configCache,
		httpClient:       httpClient,
		parser:           parser,
		contentExtractor: contentExtractor,
		extractLimiter:   rate.NewLimiter(rate.Limit(cfg.ExtractRateLimit), 1),
		userAgent:        cfg.UserAgent,
		interval:         time.Duration(cfg.SchedulerInterval) * time.Second,
		workerCount:      cfg.WorkerCount,
		ctx:              ctx,
		cancel:           cancel,
		taskQueue:        make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()

}

// Stop cancels in-flight work and waits for the workers and any pending
// retry timers. The queue channel is left open so a late EnqueueTask from
// a caller races against ctx cancellation instead of a closed channel.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// EnqueueSync builds and enqueues the full sync pipeline for a job already
// registered with the coordinator.
func (s *Scheduler) EnqueueSync(syncID string) error {
	task := NewSyncFeedsTask(syncID, s.coordinator, s.configCache, s.httpClient,
		s.parser, s.feedRepo, s.articleRepo, s.enqueueExtractTask, s.userAgent)
	return s.EnqueueTask(task)
}

func (s *Scheduler) enqueueExtractTask(feedName string, feedConfig *feed.Config) error {
	extractTask := NewExtractContentTask(feedName, feedConfig, s.httpClient,
		s.contentExtractor, s.articleRepo, s.extractLimiter, s.userAgent)
	return s.EnqueueTask(extractTask)
}

func (s *Scheduler) enqueueStartupTasks() {
	feedConfigs := s.configCache.GetConfigs()
	if len(feedConfigs) == 0 {
		slog.Debug("No feed subscriptions found")
		return
	}

	slog.Debug("Registering feed subscriptions", "count", len(feedConfigs))

	for _, feedConfig := range feedConfigs {
		registerTask := NewRegisterFeedTask(feedConfig.Name, feedConfig, s.feedRepo)
		if err := s.EnqueueTask(registerTask); err != nil {
			slog.Warn("Failed to enqueue RegisterFeedTask", "feed", feedConfig.Name, "error", err)
			continue
		}

		if !feedConfig.Settings.Enabled {
			slog.Debug("Feed disabled, skipping FetchFeedTask", "feed", feedConfig.Name)
			continue
		}

		fetchTask := NewFetchFeedTask(feedConfig.Name, feedConfig, s.httpClient, s.parser, s.feedRepo, s.articleRepo, s.userAgent)
		if err := s.EnqueueTask(fetchTask); err != nil {
			slog.Warn("Failed to enqueue FetchFeedTask", "feed", feedConfig.Name, "error", err)
		}
	}
}

func (s *Scheduler) enqueueTasks() {
	feedConfigs := s.configCache.GetEnabledConfigs()
	if len(feedConfigs) == 0 {
		slog.Debug("No enabled feed subscriptions found")
		return
	}

	slog.Debug("Checking enabled feed subscriptions for refresh", "count", len(feedConfigs))

	for _, feedConfig := range feedConfigs {
		dbFeed, err := s.feedRepo.GetFeed(feedConfig.Name)
		if err != nil {
			slog.Warn("Failed to get feed from database, skipping", "feed", feedConfig.Name, "error", err)
			continue
		}
		if dbFeed == nil {
			slog.Warn("Feed not found in database, skipping", "feed", feedConfig.Name)
			continue
		}

		now := time.Now().UTC()
		if dbFeed.NextFetchAt != nil && dbFeed.NextFetchAt.After(now) {
			slog.Debug("Feed not due for refresh yet", "feed", feedConfig.Name, "next_fetch_at", dbFeed.NextFetchAt)
		} else {
			fetchTask := NewFetchFeedTask(feedConfig.Name, feedConfig, s.httpClient, s.parser, s.feedRepo, s.articleRepo, s.userAgent)
			if err := s.EnqueueTask(fetchTask); err != nil {
				slog.Warn("Failed to enqueue FetchFeedTask", "feed", feedConfig.Name, "error", err)
			}
		}

		if feedConfig.Settings.ExtractContent {
			if err := s.enqueueExtractTask(feedConfig.Name, feedConfig); err != nil {
				slog.Warn("Failed to enqueue ExtractContentTask", "feed", feedConfig.Name, "error", err)
			}
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "feed", task.GetFeedName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			s.wg.Add(1)
			go func() {
				defer s.wg.Done()

				timer := time.NewTimer(retryDelay)
				defer timer.Stop()

				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
				case <-timer.C:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
