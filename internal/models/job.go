package models

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

type Job struct {
	ID          uuid.UUID         `json:"id"`
	TraceID     string            `json:"traceId"`
	Status      JobStatus         `json:"status"`
	Request     GenerateRequest   `json:"request"`
	Result      *GenerateResponse `json:"result,omitempty"`
	Error       *string           `json:"error,omitempty"`
	RetryCount  int               `json:"retryCount"`
	MaxRetries  int               `json:"maxRetries"`
	CreatedAt   time.Time         `json:"createdAt"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
}

// Terminal reports whether the job will not change status again.
func (j *Job) Terminal() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}

// WebSocket message types
const (
	EventStatusUpdate = "status_update"
	EventCompleted    = "completed"
	EventError        = "error"
)

type ProgressEvent struct {
	Type       string    `json:"type"`
	JobID      uuid.UUID `json:"jobId"`
	Step       int       `json:"step,omitempty"`
	TotalSteps int       `json:"totalSteps,omitempty"`
	Task       string    `json:"task,omitempty"`
	Agent      string    `json:"agent,omitempty"`
	Message    string    `json:"message,omitempty"`
}

type JobAccepted struct {
	JobID       uuid.UUID `json:"jobId"`
	TraceID     string    `json:"traceId"`
	StreamToken string    `json:"streamToken,omitempty"`
}
