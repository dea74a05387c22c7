package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"tapplay-backend/internal/models"
)

type stubLookup struct {
	meta *models.VideoMetadata
	err  error
}

func (s *stubLookup) Lookup(ctx context.Context, platform, videoID string) (*models.VideoMetadata, error) {
	return s.meta, s.err
}

type stubVideos struct {
	video  *models.Video
	meta   *models.VideoMetadata
	status string
}

func (s *stubVideos) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	return s.video, nil
}

func (s *stubVideos) UpdateMetadata(ctx context.Context, id uuid.UUID, meta *models.VideoMetadata) error {
	s.meta = meta
	s.status = models.VideoStatusReady
	return nil
}

func (s *stubVideos) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	s.status = status
	return nil
}

type stubJobs struct {
	statuses []string
	retries  int
}

func (s *stubJobs) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *stubJobs) UpdateError(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error {
	s.retries = retryCount
	return nil
}

func (s *stubJobs) last() string {
	return s.statuses[len(s.statuses)-1]
}

type stubQueue struct {
	queued []*models.Job
}

func (s *stubQueue) Enqueue(ctx context.Context, job *models.Job) error {
	s.queued = append(s.queued, job)
	return nil
}

type stubPublisher struct {
	mu       sync.Mutex
	messages []models.WSMessage
}

func (s *stubPublisher) Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

func newTestPool(lookup *stubLookup, videos *stubVideos, jobs *stubJobs, queue *stubQueue, events *stubPublisher, delays *[]time.Duration) *Pool {
	return &Pool{
		queue:    queue,
		metadata: lookup,
		videos:   videos,
		jobs:     jobs,
		events:   events,
		schedule: func(d time.Duration, f func()) {
			*delays = append(*delays, d)
			f()
		},
	}
}

func newMetadataJob(videoID uuid.UUID) *models.Job {
	return &models.Job{ID: uuid.New(), UserID: uuid.New(), Type: models.JobTypeVideoMetadata, ReferenceID: videoID}
}

func TestPool_Process_StoresMetadata(t *testing.T) {
	video := &models.Video{ID: uuid.New(), Platform: models.PlatformYouTube, PlatformVideoID: "dQw4w9WgXcQ"}
	videos := &stubVideos{video: video}
	jobs := &stubJobs{}
	events := &stubPublisher{}
	var delays []time.Duration

	lookup := &stubLookup{meta: &models.VideoMetadata{Title: "Counting to ten", DurationSeconds: 212}}
	p := newTestPool(lookup, videos, jobs, &stubQueue{}, events, &delays)

	p.process(context.Background(), newMetadataJob(video.ID))

	if videos.meta == nil || videos.meta.DurationSeconds != 212 {
		t.Fatalf("expected metadata to be stored, got %+v", videos.meta)
	}
	if jobs.last() != "completed" {
		t.Fatalf("expected job completed, got %v", jobs.statuses)
	}
	if len(events.messages) != 1 || events.messages[0].Type != "video_ready" {
		t.Fatalf("expected a video_ready event, got %+v", events.messages)
	}
}

func TestPool_Process_RetriesWithBackoff(t *testing.T) {
	video := &models.Video{ID: uuid.New(), Platform: models.PlatformVimeo, PlatformVideoID: "76979871"}
	videos := &stubVideos{video: video}
	jobs := &stubJobs{}
	queue := &stubQueue{}
	var delays []time.Duration

	p := newTestPool(&stubLookup{err: errors.New("upstream 503")}, videos, jobs, queue, &stubPublisher{}, &delays)

	p.process(context.Background(), newMetadataJob(video.ID))

	if len(queue.queued) != 1 || queue.queued[0].RetryCount != 1 {
		t.Fatalf("expected one requeue with retry_count 1, got %+v", queue.queued)
	}
	if len(delays) != 1 || delays[0] != 2*time.Second {
		t.Fatalf("expected 2s backoff, got %v", delays)
	}
	if jobs.last() != "pending" {
		t.Fatalf("expected job back to pending, got %v", jobs.statuses)
	}
	if videos.status == models.VideoStatusFailed {
		t.Fatalf("video must not be failed before retries are exhausted")
	}
}

func TestPool_Process_FailsPermanently(t *testing.T) {
	video := &models.Video{ID: uuid.New(), Platform: models.PlatformDailymotion, PlatformVideoID: "x8abc12"}
	videos := &stubVideos{video: video}
	jobs := &stubJobs{}
	queue := &stubQueue{}
	events := &stubPublisher{}
	var delays []time.Duration

	p := newTestPool(&stubLookup{meta: &models.VideoMetadata{Title: "Live stream"}}, videos, jobs, queue, events, &delays)

	job := newMetadataJob(video.ID)
	job.RetryCount = maxAttempts - 1
	p.process(context.Background(), job)

	if len(queue.queued) != 0 {
		t.Fatalf("expected no requeue after the last attempt")
	}
	if jobs.last() != "failed" || jobs.retries != maxAttempts {
		t.Fatalf("expected job failed after %d attempts, got %v (%d)", maxAttempts, jobs.statuses, jobs.retries)
	}
	if videos.status != models.VideoStatusFailed {
		t.Fatalf("expected video marked failed, got %q", videos.status)
	}
	if len(events.messages) != 1 || events.messages[0].Type != "error" {
		t.Fatalf("expected an error event, got %+v", events.messages)
	}
}

func TestJobQueueName(t *testing.T) {
	if got := jobQueueName(models.JobTypeVideoMetadata); got != "queue:video-metadata" {
		t.Fatalf("unexpected queue name %q", got)
	}
}
