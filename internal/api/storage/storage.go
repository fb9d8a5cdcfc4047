package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trbui/queryjobs-be/internal/api/domain"
	"github.com/trbui/queryjobs-be/internal/api/model"
	"github.com/trbui/queryjobs-be/shared/postgresql"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

func (s *Storage) CreateJob(ctx context.Context, job *model.Job) error {
	query := `
		INSERT INTO jobs (
			job_id, job_type, app_id, payload, status,
			callback_url, callback_params, trace_id,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.JobID,
		job.JobType,
		job.AppID,
		job.Payload,
		job.Status,
		job.CallbackURL,
		job.CallbackParams,
		job.TraceID,
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*model.Job, error) {
	var job model.Job
	query := `
		SELECT
			job_id, job_type, app_id, payload, status,
			result, error_message, callback_url, callback_params, trace_id,
			created_at, updated_at
		FROM jobs
		WHERE job_id = $1
	`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// MarkJobFailed records a terminal failure for a job that never got to run,
// e.g. when enqueueing fails right after creation.
func (s *Storage) MarkJobFailed(ctx context.Context, jobID, errorMsg string) error {
	query := `
		UPDATE jobs
		SET status = $1,
			error_message = $2,
			completed_at = NOW(),
			updated_at = NOW()
		WHERE job_id = $3 AND status = $4
	`

	_, err := s.db.ExecContext(ctx, query, domain.JobStatusFailed, errorMsg, jobID, domain.JobStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}

	return nil
}

// DeleteJob removes a terminal job row. Deletion is an administrative action;
// the lifecycle engine itself never deletes jobs.
func (s *Storage) DeleteJob(ctx context.Context, jobID string) error {
	job, err := s.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}

	if !domain.IsTerminal(job.Status) {
		return domain.ErrJobNotTerminal
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrJobNotFound
	}

	return nil
}

type JobFilter struct {
	AppID    string
	JobType  string
	Status   string
	PageSize int
	Cursor   *JobCursor
}

type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `
        SELECT
            job_id, job_type, app_id, payload, status,
            result, error_message, callback_url, callback_params, trace_id,
            created_at, updated_at
        FROM jobs
        WHERE 1=1
    `
	args := []interface{}{}
	argIdx := 1

	if filter.AppID != "" {
		query += fmt.Sprintf(" AND app_id = $%d", argIdx)
		args = append(args, filter.AppID)
		argIdx++
	}

	if filter.JobType != "" {
		query += fmt.Sprintf(" AND job_type = $%d", argIdx)
		args = append(args, filter.JobType)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	// Order by created_at DESC, job_id DESC for consistent pagination
	query += " ORDER BY created_at DESC, job_id DESC"

	// Fetch one extra to determine if there are more results
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []model.Job
	err := s.db.SelectContext(ctx, &jobs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}
