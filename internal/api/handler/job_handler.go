package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/trbui/queryjobs-be/internal/api/domain"
	"github.com/trbui/queryjobs-be/internal/api/dto"
	"github.com/trbui/queryjobs-be/internal/api/model"
	"github.com/trbui/queryjobs-be/internal/api/storage"
)

// CreateJob handles POST /api/v1/jobs
// Persists a pending job and enqueues it for asynchronous execution. The
// request returns as soon as the job is durable and enqueued; the workload
// itself never runs on the request path.
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	jobType := req.JobType
	if jobType == "" {
		jobType = "chat"
	}

	// The full request body is the job's opaque input payload
	payload, err := json.Marshal(req)
	if err != nil {
		h.logger.Error("Failed to serialize job input", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to serialize job input",
		})
		return
	}

	callbackParams := "{}"
	if len(req.CallbackParams) > 0 {
		callbackParams = string(req.CallbackParams)
	}

	now := time.Now().UTC()
	job := model.Job{
		JobID:          uuid.New().String(),
		JobType:        jobType,
		AppID:          nullString(req.AppID),
		Payload:        string(payload),
		Status:         domain.JobStatusPending,
		CallbackURL:    nullString(req.CallbackURL),
		CallbackParams: sql.NullString{String: callbackParams, Valid: true},
		TraceID:        nullString(req.TraceID),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := h.store.CreateJob(c.Request.Context(), &job); err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create job",
		})
		return
	}

	message, _ := json.Marshal(map[string]string{"job_id": job.JobID})
	if err := h.publisher.Publish(c.Request.Context(), message, "application/json"); err != nil {
		h.logger.Error("Failed to enqueue job",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)

		// The job row exists but no worker will ever pick it up
		if markErr := h.store.MarkJobFailed(c.Request.Context(), job.JobID, "failed to enqueue job: "+err.Error()); markErr != nil {
			h.logger.Error("Failed to mark unenqueued job as failed",
				slog.String("job_id", job.JobID),
				slog.String("error", markErr.Error()),
			)
		}

		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Failed to enqueue job",
		})
		return
	}

	h.logger.Info("Job created",
		slog.String("job_id", job.JobID),
		slog.String("job_type", job.JobType),
		slog.String("trace_id", req.TraceID),
	)

	c.JSON(http.StatusAccepted, dto.CreateJobResponse{
		JobID:   job.JobID,
		Status:  job.Status,
		TraceID: req.TraceID,
	})
}

// GetJob handles GET /api/v1/jobs/:job_id
// Returns the job's current status and, once terminal, its output or error
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		h.logger.Error("Invalid job_id format", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.store.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, jobToDetail(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs with optional filtering and cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := storage.JobFilter{
		AppID:    req.AppID,
		JobType:  req.JobType,
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	}

	jobs, err := h.store.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDetailResponse, len(jobs))
	for i, job := range jobs {
		jobResponse[i] = jobToDetail(&job)
	}

	var nextCursor string
	if hasMore {
		lastJob := jobs[len(jobs)-1]
		cursorObj := storage.JobCursor{
			CreatedAt: lastJob.CreatedAt,
			JobID:     lastJob.JobID,
		}
		nextCursor, err = EncodeJobCursor(&cursorObj)
		if err != nil {
			h.logger.Error("Failed to encode next cursor", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to encode next cursor",
			})
			return
		}
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

// DeleteJob handles DELETE /api/v1/jobs/:job_id
// Administrative removal of a terminal job record. The lifecycle engine
// never deletes jobs on its own.
func (h *JobHandler) DeleteJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		h.logger.Error("Invalid job_id format", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	err := h.store.DeleteJob(c.Request.Context(), jobID)
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job not found",
		})
	case errors.Is(err, domain.ErrJobNotTerminal):
		c.JSON(http.StatusConflict, gin.H{
			"error": "Job is still pending or running",
		})
	case err != nil:
		h.logger.Error("Failed to delete job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete job",
		})
	default:
		h.logger.Info("Job deleted", slog.String("job_id", jobID))
		c.Status(http.StatusNoContent)
	}
}

// jobToDetail maps a job row to its API representation
func jobToDetail(job *model.Job) dto.JobDetailResponse {
	detail := dto.JobDetailResponse{
		JobID:     job.JobID,
		JobType:   job.JobType,
		AppID:     job.AppID.String,
		Status:    job.Status,
		Error:     job.ErrorMessage.String,
		TraceID:   job.TraceID.String,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
		UpdatedAt: job.UpdatedAt.Format(time.RFC3339),
	}

	if job.Result.Valid && job.Result.String != "" {
		detail.Output = json.RawMessage(job.Result.String)
	}

	return detail
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
