// Package queue runs background jobs with bounded concurrency and
// exponential retry backoff. It backs the reveal scheduler and webhook
// delivery.
package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	defaultWorkers     = 4
	defaultMaxAttempts = 3
	defaultBackoff     = 30 * time.Second
	dispatchInterval   = time.Second
)

// Handler processes one job. Returning an error wrapped with Retryable
// reschedules the job; any other error fails it permanently.
type Handler func(ctx context.Context, job *Job) error

// Options tunes a queue. Zero values fall back to defaults.
type Options struct {
	Workers     int
	MaxAttempts int
	Backoff     time.Duration
}

// Queue is an in-process job queue with a dispatcher and a worker pool.
type Queue struct {
	logger      *logrus.Logger
	workers     int
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time

	handlerMutex sync.RWMutex
	handlers     map[JobType]Handler

	mu   sync.Mutex
	jobs map[string]*Job

	work     chan *Job
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a queue. Call Register for each job type, then Start.
func New(logger *logrus.Logger, opts Options) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}

	return &Queue{
		logger:      logger,
		workers:     opts.Workers,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		now:         time.Now,
		handlers:    make(map[JobType]Handler),
		jobs:        make(map[string]*Job),
		work:        make(chan *Job),
		stopChan:    make(chan struct{}),
	}
}

// Register binds a handler to a job type. Enqueueing an unregistered type
// fails.
func (q *Queue) Register(jobType JobType, handler Handler) {
	q.handlerMutex.Lock()
	q.handlers[jobType] = handler
	q.handlerMutex.Unlock()
}

// JobOptions tunes a single job. Zero values inherit the queue defaults.
type JobOptions struct {
	// Delay postpones the first run. Zero makes the job eligible
	// immediately.
	Delay time.Duration
	// MaxAttempts overrides the queue-wide retry budget for this job.
	MaxAttempts int
}

// Enqueue schedules a job. The reference names the domain object the job
// serves and is the key Cancel matches on.
func (q *Queue) Enqueue(jobType JobType, reference string, payload interface{}, opts JobOptions) (*Job, error) {
	q.handlerMutex.RLock()
	_, registered := q.handlers[jobType]
	q.handlerMutex.RUnlock()
	if !registered {
		return nil, errors.Errorf("no handler registered for job type %s", jobType)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize job payload")
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = q.maxAttempts
	}

	now := q.now()
	state := StateWaiting
	if opts.Delay > 0 {
		state = StateDelayed
	}

	job := &Job{
		ID:          uuid.NewString(),
		Type:        jobType,
		Reference:   reference,
		Payload:     raw,
		State:       state,
		MaxAttempts: maxAttempts,
		RunAt:       now.Add(opts.Delay),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	q.mu.Lock()
	q.jobs[job.ID] = job
	q.mu.Unlock()

	q.logger.WithFields(logrus.Fields{
		"jobId":     job.ID,
		"jobType":   jobType,
		"reference": reference,
		"runAt":     job.RunAt,
	}).Debug("Job enqueued")

	return job, nil
}

// Cancel drops every waiting or delayed job carrying the given reference and
// returns how many were removed. Active jobs finish their current attempt.
func (q *Queue) Cancel(reference string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	cancelled := 0
	for id, job := range q.jobs {
		if job.Reference != reference {
			continue
		}
		if job.State != StateWaiting && job.State != StateDelayed {
			continue
		}
		delete(q.jobs, id)
		cancelled++
	}

	if cancelled > 0 {
		q.logger.WithFields(logrus.Fields{
			"reference": reference,
			"count":     cancelled,
		}).Info("Pending jobs cancelled")
	}
	return cancelled
}

// Start launches the dispatcher and workers. They run until Stop or context
// cancellation.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}

	q.wg.Add(1)
	go q.dispatch(ctx)
}

// Stop halts dispatching and waits for in-flight jobs to finish.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopChan)
	})
	q.wg.Wait()
}

// dispatch moves due jobs onto the work channel.
func (q *Queue) dispatch(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(dispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopChan:
			return
		case <-ticker.C:
			for _, job := range q.due() {
				select {
				case q.work <- job:
				case <-ctx.Done():
					return
				case <-q.stopChan:
					return
				}
			}
		}
	}
}

// due claims every waiting or delayed job whose time has come, marking them
// active under the lock so a job is never dispatched twice.
func (q *Queue) due() []*Job {
	now := q.now()

	q.mu.Lock()
	defer q.mu.Unlock()

	var claimed []*Job
	for _, job := range q.jobs {
		if job.State != StateWaiting && job.State != StateDelayed {
			continue
		}
		if job.RunAt.After(now) {
			continue
		}
		job.State = StateActive
		job.UpdatedAt = now
		claimed = append(claimed, job)
	}
	return claimed
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopChan:
			return
		case job := <-q.work:
			q.process(ctx, job)
		}
	}
}

func (q *Queue) process(ctx context.Context, job *Job) {
	q.handlerMutex.RLock()
	handler := q.handlers[job.Type]
	q.handlerMutex.RUnlock()

	err := handler(ctx, job)

	q.mu.Lock()
	defer q.mu.Unlock()

	job.Attempts++
	job.UpdatedAt = q.now()

	if err == nil {
		job.State = StateCompleted
		job.LastError = ""
		return
	}

	job.LastError = err.Error()

	if IsRetryable(err) && job.Attempts < job.MaxAttempts {
		// Exponential backoff: base * 2^(attempt-1).
		delay := q.backoff << (job.Attempts - 1)
		job.State = StateDelayed
		job.RunAt = q.now().Add(delay)

		q.logger.WithFields(logrus.Fields{
			"jobId":   job.ID,
			"jobType": job.Type,
			"attempt": job.Attempts,
			"retryIn": delay,
			"error":   err,
		}).Warn("Job failed, scheduling retry")
		return
	}

	job.State = StateFailed
	q.logger.WithFields(logrus.Fields{
		"jobId":    job.ID,
		"jobType":  job.Type,
		"attempts": job.Attempts,
		"error":    err,
	}).Error("Job failed permanently")
}

// Counts tallies jobs per state.
type Counts struct {
	Waiting   int `json:"waiting"`
	Delayed   int `json:"delayed"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

func (c *Counts) tally(state JobState) {
	switch state {
	case StateWaiting:
		c.Waiting++
	case StateDelayed:
		c.Delayed++
	case StateActive:
		c.Active++
	case StateCompleted:
		c.Completed++
	case StateFailed:
		c.Failed++
	}
}

// Stats reports queue depth overall and broken down by job type.
type Stats struct {
	Counts
	ByType map[JobType]Counts `json:"byType,omitempty"`
}

// Stats returns a snapshot of the queue.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := Stats{ByType: make(map[JobType]Counts)}
	for _, job := range q.jobs {
		stats.Counts.tally(job.State)
		counts := stats.ByType[job.Type]
		counts.tally(job.State)
		stats.ByType[job.Type] = counts
	}
	return stats
}

// Job returns a copy of a job by ID.
func (q *Queue) Job(id string) (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return nil, false
	}
	copied := *job
	return &copied, true
}

// Prune drops completed and failed jobs older than the given age and returns
// how many were removed.
func (q *Queue) Prune(olderThan time.Duration) int {
	cutoff := q.now().Add(-olderThan)

	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for id, job := range q.jobs {
		if job.State != StateCompleted && job.State != StateFailed {
			continue
		}
		if job.UpdatedAt.Before(cutoff) {
			delete(q.jobs, id)
			removed++
		}
	}
	return removed
}
