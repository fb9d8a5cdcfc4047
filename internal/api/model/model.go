package model

import (
	"database/sql"
	"time"
)

// Job is one durable unit of asynchronous work
type Job struct {
	JobID          string         `db:"job_id"`
	JobType        string         `db:"job_type"`
	AppID          sql.NullString `db:"app_id"`
	Payload        string         `db:"payload"`
	Status         string         `db:"status"`
	Result         sql.NullString `db:"result"`
	ErrorMessage   sql.NullString `db:"error_message"`
	CallbackURL    sql.NullString `db:"callback_url"`
	CallbackParams sql.NullString `db:"callback_params"`
	TraceID        sql.NullString `db:"trace_id"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}
