package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"seolab-api/internal/models"
)

const (
	GenerationQueue = "queue:seo-generation"

	jobKeyPrefix = "seo:job:"
	jobTTL       = 24 * time.Hour
	maxRetries   = 3
)

// JobStore keeps asynchronous generation jobs in Redis.
type JobStore struct {
	redis *redis.Client
}

func NewJobStore(redisClient *redis.Client) *JobStore {
	return &JobStore{redis: redisClient}
}

// Create stores a new pending job and pushes it onto the generation queue.
func (s *JobStore) Create(ctx context.Context, j *models.Job) error {
	j.ID = uuid.New()
	j.Status = models.JobPending
	j.RetryCount = 0
	j.MaxRetries = maxRetries
	j.CreatedAt = time.Now().UTC()

	if err := s.Save(ctx, j); err != nil {
		return err
	}
	return s.Enqueue(ctx, j)
}

// Enqueue pushes the job onto the generation queue.
func (s *JobStore) Enqueue(ctx context.Context, j *models.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	if err := s.redis.RPush(ctx, GenerationQueue, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

func (s *JobStore) Save(ctx context.Context, j *models.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	if err := s.redis.Set(ctx, jobKey(j.ID), data, jobTTL).Err(); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	data, err := s.redis.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}

	var j models.Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	return &j, nil
}

func (s *JobStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

func jobKey(id uuid.UUID) string {
	return jobKeyPrefix + id.String()
}
