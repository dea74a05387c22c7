package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tapplay-backend/internal/logging"
	"tapplay-backend/internal/models"
	"tapplay-backend/internal/services"
)

const maxAttempts = 3

type metadataLookup interface {
	Lookup(ctx context.Context, platform, videoID string) (*models.VideoMetadata, error)
}

type videoStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error)
	UpdateMetadata(ctx context.Context, id uuid.UUID, meta *models.VideoMetadata) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

type jobStore interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateError(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error
}

type enqueuer interface {
	Enqueue(ctx context.Context, job *models.Job) error
}

// Pool resolves video metadata off the request path. Jobs arrive on Redis
// lists and are retried with exponential backoff before the video is marked
// failed.
type Pool struct {
	redis       *redis.Client
	queue       enqueuer
	metadata    metadataLookup
	videos      videoStore
	jobs        jobStore
	events      services.EventPublisher
	workerCount int

	// schedule runs f after d; replaced in tests.
	schedule func(d time.Duration, f func())

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPool(
	redisClient *redis.Client,
	metadata metadataLookup,
	videos videoStore,
	jobs jobStore,
	events services.EventPublisher,
	workerCount int,
) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		redis:       redisClient,
		queue:       NewQueue(redisClient),
		metadata:    metadata,
		videos:      videos,
		jobs:        jobs,
		events:      events,
		workerCount: workerCount,
		schedule:    func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (p *Pool) Start() {
	queues := []string{jobQueueName(models.JobTypeVideoMetadata)}

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i, queues)
	}

	logging.Info().Int("workers", p.workerCount).Msg("Started worker goroutines")
}

// Stop cancels in-flight BLPOP calls and waits for workers to return.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
}

func (p *Pool) worker(id int, queues []string) {
	defer p.wg.Done()

	for {
		if p.ctx.Err() != nil {
			logging.Info().Int("worker", id).Msg("Worker shutting down")
			return
		}

		result, err := p.redis.BLPop(p.ctx, 30*time.Second, queues...).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && p.ctx.Err() == nil {
				logging.Warn().Err(err).Int("worker", id).Msg("BLPOP failed")
				time.Sleep(time.Second)
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			logging.Error().Err(err).Int("worker", id).Msg("Failed to parse job")
			continue
		}

		lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
		locked, err := p.redis.SetNX(p.ctx, lockKey, "1", 10*time.Minute).Result()
		if err != nil || !locked {
			continue
		}

		logging.Info().Int("worker", id).Str("job_id", job.ID.String()).Str("type", job.Type).Msg("Processing job")
		p.process(p.ctx, &job)

		p.redis.Del(context.Background(), lockKey)
	}
}

func (p *Pool) process(ctx context.Context, job *models.Job) {
	p.jobs.UpdateStatus(ctx, job.ID, "processing")

	var processErr error
	switch job.Type {
	case models.JobTypeVideoMetadata:
		processErr = p.processVideoMetadata(ctx, job)
	default:
		processErr = fmt.Errorf("unknown job type: %s", job.Type)
	}

	if processErr != nil {
		p.handleFailure(ctx, job, processErr)
		return
	}
	p.handleSuccess(ctx, job)
}

func (p *Pool) processVideoMetadata(ctx context.Context, job *models.Job) error {
	video, err := p.videos.GetByID(ctx, job.ReferenceID)
	if err != nil {
		return fmt.Errorf("failed to get video: %w", err)
	}

	meta, err := p.metadata.Lookup(ctx, video.Platform, video.PlatformVideoID)
	if err != nil {
		return fmt.Errorf("metadata lookup failed for %s video %s: %w", video.Platform, video.PlatformVideoID, err)
	}
	if meta.DurationSeconds <= 0 {
		return fmt.Errorf("%s video %s reported no duration", video.Platform, video.PlatformVideoID)
	}

	if err := p.videos.UpdateMetadata(ctx, video.ID, meta); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	return nil
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job) {
	p.jobs.UpdateStatus(ctx, job.ID, "completed")

	p.events.Publish(ctx, job.UserID, models.WSMessage{
		Type: "video_ready",
		Payload: models.VideoReadyEvent{
			JobID:   job.ID,
			VideoID: job.ReferenceID,
			Status:  models.VideoStatusReady,
		},
	})

	logging.Info().Str("job_id", job.ID.String()).Msg("Job completed successfully")
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()

	if job.RetryCount < maxAttempts {
		logging.Warn().Str("job_id", job.ID.String()).Int("attempt", job.RetryCount).Str("error", errMsg).Msg("Job failed, retrying")
		p.jobs.UpdateStatus(ctx, job.ID, "pending")
		p.jobs.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

		retry := *job
		backoff := time.Duration(1<<uint(job.RetryCount)) * time.Second
		p.schedule(backoff, func() {
			if err := p.queue.Enqueue(context.Background(), &retry); err != nil {
				logging.Error().Err(err).Str("job_id", retry.ID.String()).Msg("Failed to requeue job")
			}
		})
		return
	}

	logging.Error().Str("job_id", job.ID.String()).Str("error", errMsg).Msg("Job failed permanently")
	p.jobs.UpdateStatus(ctx, job.ID, "failed")
	p.jobs.UpdateError(ctx, job.ID, errMsg, job.RetryCount)
	if job.Type == models.JobTypeVideoMetadata {
		p.videos.UpdateStatus(ctx, job.ReferenceID, models.VideoStatusFailed)
	}

	p.events.Publish(ctx, job.UserID, models.WSMessage{
		Type: "error",
		Payload: models.JobErrorEvent{
			JobID:        job.ID,
			ErrorCode:    "JOB_FAILED",
			ErrorMessage: errMsg,
		},
	})
}
