package queue

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// JobType names the work a job carries.
type JobType string

const (
	// JobRevealCheck verifies that a committed intent became revealable and
	// nudges execution.
	JobRevealCheck JobType = "reveal_check"
	// JobNotify delivers a webhook notification about a lifecycle change.
	JobNotify JobType = "notify"
)

// JobState tracks a job through the queue.
type JobState string

const (
	StateWaiting   JobState = "waiting"
	StateDelayed   JobState = "delayed"
	StateActive    JobState = "active"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
)

// Job is one unit of queued work. Reference ties the job to the domain
// object it serves (the intent hash) so pending work can be cancelled when
// the object reaches a terminal state.
type Job struct {
	ID          string          `json:"id"`
	Type        JobType         `json:"type"`
	Reference   string          `json:"reference,omitempty"`
	Payload     json.RawMessage `json:"payload"`
	State       JobState        `json:"state"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"maxAttempts"`
	RunAt       time.Time       `json:"runAt"`
	LastError   string          `json:"lastError,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// RetryableError marks a handler failure as transient. Jobs failing with any
// other error go straight to the failed state.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps an error so the queue retries the job with backoff.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether the queue should retry after this error.
func IsRetryable(err error) bool {
	var rerr *RetryableError
	return errors.As(err, &rerr)
}
