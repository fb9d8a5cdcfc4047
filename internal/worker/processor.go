package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/trbui/queryjobs-be/internal/notify"
	"github.com/trbui/queryjobs-be/internal/worker/domain"
)

// processJob runs the full lifecycle for one job message: claim the row
// (PENDING -> RUNNING), execute the workflow, persist exactly one terminal
// transition, then attempt the callback. Returning nil acknowledges the
// message; errors before a successful claim may be requeued.
func (w *Worker) processJob(ctx context.Context, msg *domain.JobMessage) error {
	w.logger.Info("Processing job",
		slog.String("job_id", msg.JobID),
		slog.String("worker_id", w.workerID),
	)

	job, err := w.storage.ClaimJob(ctx, msg.JobID, w.workerID)
	if err != nil {
		if errors.Is(err, domain.ErrJobAlreadyClaimed) {
			w.logger.Warn("Job already claimed, skipping",
				slog.String("job_id", msg.JobID),
			)
			return fmt.Errorf("job already claimed: %w", err)
		}
		w.logger.Error("Failed to claim job",
			slog.String("job_id", msg.JobID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to claim job: %w", err)
	}

	jobTimeout := w.jobTimeout
	if job.TimeoutSeconds > 0 {
		jobTimeout = time.Duration(job.TimeoutSeconds) * time.Second
	}

	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	heartbeatDone := make(chan struct{})
	go w.sendJobHeartbeat(jobCtx, job.JobID, heartbeatDone)
	defer close(heartbeatDone)

	result, execErr := w.runWorkflow(jobCtx, job)

	// The terminal status must be durable before the callback is attempted,
	// so status and notification can never disagree
	w.finishJob(ctx, job, result, execErr)

	return nil
}

// runWorkflow executes the job's workflow, converting a panic inside one
// job into that job's failure instead of taking down the pool.
func (w *Worker) runWorkflow(ctx context.Context, job *domain.Job) (result []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Job workflow panicked",
				slog.String("job_id", job.JobID),
				slog.Any("panic", r),
			)
			result = nil
			err = fmt.Errorf("job workflow panicked: %v", r)
		}
	}()

	return w.executeJob(ctx, job)
}

// executeJob runs the workflow registered for the job's type
func (w *Worker) executeJob(ctx context.Context, job *domain.Job) ([]byte, error) {
	w.logger.Info("Executing job",
		slog.String("job_id", job.JobID),
		slog.String("job_type", job.JobType),
		slog.String("trace_id", job.TraceID),
	)

	switch job.JobType {
	case "chat":
		return w.executeChatJob(ctx, job)
	default:
		return nil, fmt.Errorf("unsupported job type %q", job.JobType)
	}
}

// finishJob persists the terminal transition and then notifies the callback
// URL, if any. Callback failures never affect the persisted outcome.
func (w *Worker) finishJob(ctx context.Context, job *domain.Job, result []byte, execErr error) {
	status := domain.JobStatusCompleted
	callbackStatus := "completed"
	errorMsg := ""

	if execErr != nil {
		status = domain.JobStatusFailed
		callbackStatus = "failed"
		errorMsg = execErr.Error()

		w.logger.Error("Job execution failed",
			slog.String("job_id", job.JobID),
			slog.String("job_type", job.JobType),
			slog.String("error", errorMsg),
		)
	}

	if err := w.storage.UpdateJobStatus(ctx, job.JobID, status, result, errorMsg); err != nil {
		w.logger.Error("Failed to update job terminal status",
			slog.String("job_id", job.JobID),
			slog.String("status", status),
			slog.String("error", err.Error()),
		)
		// Do not notify: the store is the source of truth and it was
		// never updated
		return
	}

	if execErr == nil {
		w.logger.Info("Job completed successfully",
			slog.String("job_id", job.JobID),
			slog.String("job_type", job.JobType),
		)
	}

	payload := notify.Payload{
		JobID:          job.JobID,
		Status:         callbackStatus,
		Error:          errorMsg,
		CallbackParams: callbackParams(job.CallbackParams),
	}
	if len(result) > 0 {
		payload.Output = json.RawMessage(result)
	}

	w.notifier.Notify(ctx, job.CallbackURL, payload)
}

// sendJobHeartbeat periodically updates the job's heartbeat timestamp while
// the workflow runs
func (w *Worker) sendJobHeartbeat(ctx context.Context, jobID string, done <-chan struct{}) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case <-ctx.Done():
			return

		case <-ticker.C:
			if err := w.storage.UpdateJobHeartbeat(ctx, jobID); err != nil {
				w.logger.Warn("Failed to update job heartbeat",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// callbackParams echoes the caller-supplied params back verbatim, defaulting
// to an empty object when none were supplied
func callbackParams(raw string) json.RawMessage {
	if raw == "" {
		return json.RawMessage("{}")
	}
	return json.RawMessage(raw)
}
