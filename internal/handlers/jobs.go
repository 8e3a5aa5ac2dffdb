package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"seolab-api/internal/models"
	"seolab-api/internal/repository"
	"seolab-api/internal/services"
)

type RequestPreparer interface {
	Prepare(req *models.GenerateRequest) error
}

type JobQueue interface {
	Create(ctx context.Context, j *models.Job) error
	Get(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

type TokenIssuer interface {
	Issue(jobID uuid.UUID) (string, error)
}

type JobHandler struct {
	svc    RequestPreparer
	jobs   JobQueue
	tokens TokenIssuer
}

// NewJobHandler builds the async job endpoints. A nil queue makes them
// answer 503.
func NewJobHandler(svc RequestPreparer, jobs JobQueue, tokens TokenIssuer) *JobHandler {
	return &JobHandler{svc: svc, jobs: jobs, tokens: tokens}
}

func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		handleServiceError(w, r, services.ErrQueueUnavailable)
		return
	}

	var req models.GenerateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.svc.Prepare(&req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	job := &models.Job{TraceID: services.NewTraceID(), Request: req}
	if err := h.jobs.Create(r.Context(), job); err != nil {
		handleServiceError(w, r, &services.UnavailableError{
			Code:    services.ErrQueueUnavailable.Code,
			Message: "Failed to queue generation",
			Err:     err,
		})
		return
	}

	token, err := h.tokens.Issue(job.ID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, models.JobAccepted{
		JobID:       job.ID,
		TraceID:     job.TraceID,
		StreamToken: token,
	})
}

func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		handleServiceError(w, r, services.ErrQueueUnavailable)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid job ID", r))
		return
	}

	job, err := h.jobs.Get(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		handleServiceError(w, r, &services.NotFoundError{Resource: "Job"})
		return
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, job)
}
