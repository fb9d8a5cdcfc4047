package domain

import (
	"errors"
)

const (
	JobStatusPending   = "PENDING"
	JobStatusRunning   = "RUNNING"
	JobStatusCompleted = "COMPLETED"
	JobStatusFailed    = "FAILED"
)

var (
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotTerminal is returned when deletion is attempted on a job
	// that is still pending or running
	ErrJobNotTerminal = errors.New("job is not in a terminal status")
)

// IsTerminal reports whether a status ends the job lifecycle
func IsTerminal(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}
