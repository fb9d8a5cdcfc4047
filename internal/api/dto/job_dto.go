package dto

import "encoding/json"

// ChatMessage is one turn of conversation history
type ChatMessage struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// Target selects one backend tool call, as decided by the caller's
// scoping component
type Target struct {
	Backend string         `json:"backend" binding:"required"`
	Tool    string         `json:"tool" binding:"required"`
	Args    map[string]any `json:"args"`
}

// CreateJobRequest is the submission body for a new job. The whole body is
// captured verbatim as the job's input payload.
type CreateJobRequest struct {
	JobType        string          `json:"job_type"`
	Chats          []ChatMessage   `json:"chats" binding:"required,min=1,dive"`
	Targets        []Target        `json:"targets" binding:"required,min=1,dive"`
	TopK           int             `json:"top_k"`
	AppID          string          `json:"app_id"`
	CallbackURL    string          `json:"callback_url"`
	CallbackParams json.RawMessage `json:"callback_params"`
	TraceID        string          `json:"trace_id"`
}

// CreateJobResponse acknowledges an accepted job
type CreateJobResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	TraceID string `json:"trace_id,omitempty"`
}

// JobDetailResponse is the polling view of a job
type JobDetailResponse struct {
	JobID     string          `json:"job_id"`
	JobType   string          `json:"job_type"`
	AppID     string          `json:"app_id,omitempty"`
	Status    string          `json:"status"`
	Output    json.RawMessage `json:"output,omitempty"`
	Error     string          `json:"error,omitempty"`
	TraceID   string          `json:"trace_id,omitempty"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

// ListJobsRequest carries listing filters and the pagination cursor
type ListJobsRequest struct {
	AppID    string `form:"app_id"`
	JobType  string `form:"job_type"`
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

// ListJobsResponse is a page of jobs plus the cursor for the next page
type ListJobsResponse struct {
	Jobs       []JobDetailResponse `json:"jobs"`
	NextCursor string              `json:"next_cursor,omitempty"`
}
