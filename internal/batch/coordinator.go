// internal/batch/coordinator.go - Batch coordination implementation
package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/valpere/wgs_correction/internal"
	"github.com/valpere/wgs_correction/internal/dataset"
	"github.com/valpere/wgs_correction/pkg/datum"
)

// Coordinator tracks submitted jobs and runs each one asynchronously
type Coordinator struct {
	jobs      map[string]*jobEntry
	processor Processor
	mutex     sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
}

type jobEntry struct {
	job    *Job
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCoordinator creates a coordinator running jobs with processor
func NewCoordinator(processor Processor) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		jobs:      make(map[string]*jobEntry),
		processor: processor,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SubmitJob validates a job and starts processing it
func (c *Coordinator) SubmitJob(job *Job) error {
	if job.ID == "" {
		return internal.NewError(internal.ErrorCodeValidation, "job ID is required", nil)
	}
	if err := ValidateJob(job); err != nil {
		return internal.NewError(internal.ErrorCodeValidation, "job validation failed", err)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, exists := c.jobs[job.ID]; exists {
		return internal.NewError(internal.ErrorCodeValidation, fmt.Sprintf("job %s already exists", job.ID), nil)
	}

	job.Progress = NewJobProgress()
	job.CreatedAt = time.Now()
	job.Status = JobStatusPending

	jobCtx, jobCancel := context.WithCancel(c.ctx)
	entry := &jobEntry{job: job, cancel: jobCancel, done: make(chan struct{})}
	c.jobs[job.ID] = entry

	go func() {
		defer close(entry.done)
		defer jobCancel()

		if err := c.processor.Process(jobCtx, job); err != nil {
			c.mutex.Lock()
			if jobCtx.Err() == context.Canceled && c.ctx.Err() == nil {
				job.Status = JobStatusCanceled
			} else {
				job.Status = JobStatusFailed
			}
			job.Error = err
			if job.CompletedAt == nil {
				now := time.Now()
				job.CompletedAt = &now
			}
			c.mutex.Unlock()
		}
	}()

	return nil
}

// Wait blocks until the job finishes or ctx is done and returns the job error
func (c *Coordinator) Wait(ctx context.Context, id string) error {
	entry, err := c.entry(id)
	if err != nil {
		return err
	}

	select {
	case <-entry.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return entry.job.Error
}

// GetJob retrieves a job by its ID
func (c *Coordinator) GetJob(id string) (*Job, error) {
	entry, err := c.entry(id)
	if err != nil {
		return nil, err
	}
	return entry.job, nil
}

// CancelJob cancels a running or pending job
func (c *Coordinator) CancelJob(id string) error {
	entry, err := c.entry(id)
	if err != nil {
		return err
	}

	if entry.finished() {
		return internal.NewError(internal.ErrorCodeValidation, fmt.Sprintf("job %s is already complete", id), nil)
	}

	entry.cancel()
	return nil
}

// ListJobs returns all jobs managed by the coordinator
func (c *Coordinator) ListJobs() []*Job {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	jobs := make([]*Job, 0, len(c.jobs))
	for _, entry := range c.jobs {
		jobs = append(jobs, entry.job)
	}
	return jobs
}

// CleanupJob removes a completed job
func (c *Coordinator) CleanupJob(id string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.jobs[id]
	if !exists {
		return internal.NewError(internal.ErrorCodeNotFound, fmt.Sprintf("job %s not found", id), nil)
	}
	if !entry.finished() {
		return internal.NewError(internal.ErrorCodeValidation, fmt.Sprintf("job %s is not complete", id), nil)
	}

	delete(c.jobs, id)
	return nil
}

// Shutdown cancels all running jobs and waits for them to stop
func (c *Coordinator) Shutdown() {
	c.cancel()

	c.mutex.RLock()
	entries := make([]*jobEntry, 0, len(c.jobs))
	for _, entry := range c.jobs {
		entries = append(entries, entry)
	}
	c.mutex.RUnlock()

	for _, entry := range entries {
		<-entry.done
	}
}

// GetJobStatistics returns the number of jobs per status
func (c *Coordinator) GetJobStatistics() map[string]int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	stats := map[string]int{"total_jobs": len(c.jobs)}
	for _, entry := range c.jobs {
		// the processor owns the status until the job finishes
		if entry.finished() {
			stats[entry.job.Status.String()]++
		} else {
			stats[JobStatusRunning.String()]++
		}
	}
	return stats
}

func (e *jobEntry) finished() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

func (c *Coordinator) entry(id string) (*jobEntry, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.jobs[id]
	if !exists {
		return nil, internal.NewError(internal.ErrorCodeNotFound, fmt.Sprintf("job %s not found", id), nil)
	}
	return entry, nil
}

// ValidateJob checks a job before it runs: every task needs a known kind,
// matching input and output formats, and an output no other task writes
func ValidateJob(job *Job) error {
	if job.Config == nil {
		return fmt.Errorf("job configuration is required")
	}
	if len(job.Tasks) == 0 {
		return fmt.Errorf("at least one task is required")
	}
	if job.Config.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if job.Config.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	outputs := make(map[string]string, len(job.Tasks))
	for i, task := range job.Tasks {
		if err := validateTask(task); err != nil {
			return fmt.Errorf("task %d (%s) is invalid: %w", i+1, task.Input, err)
		}

		key := filepath.Clean(task.Output)
		if other, exists := outputs[key]; exists {
			return fmt.Errorf("tasks for %s and %s write the same output %s", other, task.Input, task.Output)
		}
		outputs[key] = task.Input
	}
	return nil
}

// validateTask validates a single task
func validateTask(task *Task) error {
	if _, err := datum.ParseKind(task.Kind); err != nil {
		return err
	}

	in, err := dataset.DriverFor(task.Input)
	if err != nil {
		return err
	}
	out, err := dataset.DriverFor(task.Output)
	if err != nil {
		return err
	}
	if in != out {
		return fmt.Errorf("%w: %s input, %s output", dataset.ErrDriverMismatch, in, out)
	}

	if filepath.Clean(task.Input) == filepath.Clean(task.Output) {
		return fmt.Errorf("output must differ from input")
	}
	return nil
}
