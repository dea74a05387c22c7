package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"tapplay-backend/internal/logging"
	"tapplay-backend/internal/models"
)

// EventPublisher delivers feed messages to a guardian's connected clients.
type EventPublisher interface {
	Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage)
}

// UserChannel is the Redis pub/sub channel the websocket hub subscribes to.
func UserChannel(userID uuid.UUID) string {
	return "user_updates:" + userID.String()
}

type RedisPublisher struct {
	redis *redis.Client
}

func NewRedisPublisher(redisClient *redis.Client) *RedisPublisher {
	return &RedisPublisher{redis: redisClient}
}

// Publish is fire-and-forget; a dropped feed event never fails a request.
func (p *RedisPublisher) Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Error().Err(err).Str("type", msg.Type).Msg("Failed to encode feed event")
		return
	}
	if err := p.redis.Publish(ctx, UserChannel(userID), data).Err(); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("type", msg.Type).Msg("Failed to publish feed event")
	}
}
