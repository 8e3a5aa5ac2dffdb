package services

import (
	"fmt"
	"time"
)

// ValidationError reports request fields that failed validation.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

// UnavailableError reports that an optional backing service is not configured
// or not reachable.
type UnavailableError struct {
	Code    string
	Message string
	Err     error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UnavailableError) Unwrap() error { return e.Err }

var (
	ErrQueueUnavailable   = &UnavailableError{Code: "QUEUE_UNAVAILABLE", Message: "Async generation requires REDIS_URL"}
	ErrHistoryUnavailable = &UnavailableError{Code: "HISTORY_UNAVAILABLE", Message: "Generation history requires DATABASE_URL"}
)

type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Content generation timed out after %s", e.After)
}

// GenerationError wraps any failure of the generation pipeline.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return "Content generation failed: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}
