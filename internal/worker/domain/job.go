package domain

// Job is the worker's view of a claimed job row
type Job struct {
	JobID          string
	JobType        string
	Payload        string // JSON string of the submitted input
	Status         string
	WorkerID       string
	CallbackURL    string
	CallbackParams string // JSON string, echoed back verbatim in the callback
	TraceID        string
	TimeoutSeconds int
}

// JobMessage represents a job message from RabbitMQ
type JobMessage struct {
	JobID       string `json:"job_id"`
	DeliveryTag uint64 `json:"-"`
}
