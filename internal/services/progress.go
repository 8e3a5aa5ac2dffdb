package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"seolab-api/internal/models"
)

// JobChannel is the pub/sub channel carrying a job's progress events.
func JobChannel(jobID uuid.UUID) string {
	return "job_updates:" + jobID.String()
}

// ProgressPublisher fans job progress out through Redis pub/sub.
type ProgressPublisher struct {
	redis  *redis.Client
	logger *zap.Logger
}

func NewProgressPublisher(redisClient *redis.Client, logger *zap.Logger) *ProgressPublisher {
	return &ProgressPublisher{redis: redisClient, logger: logger}
}

func (p *ProgressPublisher) Publish(ctx context.Context, event models.ProgressEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := p.redis.Publish(ctx, JobChannel(event.JobID), data).Err(); err != nil {
		p.logger.Warn("failed to publish progress",
			zap.String("job_id", event.JobID.String()),
			zap.String("type", event.Type),
			zap.Error(err),
		)
	}
}
