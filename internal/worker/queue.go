package worker

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"tapplay-backend/internal/models"
)

// Queue pushes jobs onto the Redis lists the pool consumes.
type Queue struct {
	redis *redis.Client
}

func NewQueue(redisClient *redis.Client) *Queue {
	return &Queue{redis: redisClient}
}

func (q *Queue) Enqueue(ctx context.Context, job *models.Job) error {
	jobJSON, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.redis.LPush(ctx, jobQueueName(job.Type), jobJSON).Err()
}

func jobQueueName(jobType string) string {
	return "queue:" + jobType
}
