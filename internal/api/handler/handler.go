package handler

import (
	"context"
	"log/slog"

	"github.com/trbui/queryjobs-be/internal/api/model"
	"github.com/trbui/queryjobs-be/internal/api/storage"
)

// JobStore is the persistence surface the handlers need
type JobStore interface {
	CreateJob(ctx context.Context, job *model.Job) error
	GetJobByID(ctx context.Context, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]model.Job, error)
	MarkJobFailed(ctx context.Context, jobID, errorMsg string) error
	DeleteJob(ctx context.Context, jobID string) error
}

// Publisher enqueues work items for the worker service
type Publisher interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Store     JobStore
	Publisher Publisher
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger    *slog.Logger
	store     JobStore
	publisher Publisher
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:    deps.Logger,
		store:     deps.Store,
		publisher: deps.Publisher,
	}
}
