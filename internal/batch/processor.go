// internal/batch/processor.go - Batch processing implementation
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/valpere/wgs_correction/internal"
	"github.com/valpere/wgs_correction/pkg/correction"
	"github.com/valpere/wgs_correction/pkg/datum"
)

// BatchProcessor runs every task of a job as an independent correction
// pipeline, a bounded number at a time
type BatchProcessor struct {
	reporter ProgressReporter
	logger   zerolog.Logger
	mutex    sync.Mutex
}

// NewBatchProcessor creates a new batch processor. reporter may be nil.
func NewBatchProcessor(reporter ProgressReporter, logger zerolog.Logger) *BatchProcessor {
	return &BatchProcessor{
		reporter: reporter,
		logger:   logger,
	}
}

// Process executes a complete batch job. Without FailOnError every task runs
// and all task errors are combined; with it, scheduling stops after the first
// failure and running tasks are canceled.
func (bp *BatchProcessor) Process(ctx context.Context, job *Job) error {
	if job.Config == nil {
		job.Config = NewJobConfig()
	}

	bp.mutex.Lock()
	job.Status = JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	job.Progress.StartTime = now
	job.Progress.TotalTasks = int64(len(job.Tasks))
	bp.mutex.Unlock()

	bp.report(func(r ProgressReporter) error { return r.ReportProgress(job) })

	if job.Config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Config.Timeout)
		defer cancel()
	}

	group, groupCtx := &errgroup.Group{}, ctx
	if job.Config.FailOnError {
		group, groupCtx = errgroup.WithContext(ctx)
	}
	if job.Config.Concurrency > 0 {
		group.SetLimit(job.Config.Concurrency)
	}

	var (
		errMutex sync.Mutex
		combined error
	)

	for _, task := range job.Tasks {
		if groupCtx.Err() != nil {
			break
		}

		task := task
		group.Go(func() error {
			err := bp.processTask(groupCtx, job, task)
			if err == nil {
				return nil
			}

			errMutex.Lock()
			combined = multierr.Append(combined, fmt.Errorf("%s: %w", task.Input, err))
			errMutex.Unlock()

			if job.Config.FailOnError {
				return err
			}
			return nil
		})
	}

	group.Wait()

	if err := ctx.Err(); err != nil && combined == nil {
		combined = internal.NewError(internal.ErrorCodeTimeout, "batch job did not finish", err)
	}

	if combined != nil {
		bp.completeJobWithError(job, combined)
		return combined
	}

	bp.completeJobSuccessfully(job)
	bp.report(func(r ProgressReporter) error { return r.ReportJobComplete(job) })
	return nil
}

// processTask runs one pipeline and records its outcome
func (bp *BatchProcessor) processTask(ctx context.Context, job *Job, task *Task) error {
	start := time.Now()
	logger := bp.logger.With().Str("job", job.ID).Str("task", task.ID).Logger()

	err := ctx.Err()
	if err == nil {
		var summary *correction.Summary
		summary, err = bp.runPipeline(ctx, job, task, logger)
		task.Summary = summary
	}
	task.Duration = time.Since(start)
	task.Error = err

	if err != nil {
		logger.Error().Err(err).Str("input", task.Input).Msg("Task failed")
	} else {
		logger.Info().
			Str("input", task.Input).
			Str("output", task.Output).
			Int("features", task.Summary.Written).
			Dur("duration", task.Duration).
			Msg("Task completed")
	}

	bp.updateJobProgress(job, task)
	bp.report(func(r ProgressReporter) error { return r.ReportTaskComplete(job, task) })
	return err
}

func (bp *BatchProcessor) runPipeline(ctx context.Context, job *Job, task *Task, logger zerolog.Logger) (*correction.Summary, error) {
	kind, err := datum.ParseKind(task.Kind)
	if err != nil {
		return nil, err
	}

	pipeline, err := correction.New(kind.Func(),
		correction.WithOptions(job.Config.Dataset),
		correction.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return pipeline.RunContext(ctx, task.Input, task.Output)
}

// updateJobProgress updates job progress after a task finished
func (bp *BatchProcessor) updateJobProgress(job *Job, task *Task) {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	job.Progress.ProcessedTasks++
	if task.Error != nil {
		job.Progress.FailedTasks++
	} else {
		job.Progress.SucceededTasks++
	}
	if task.Summary != nil {
		job.Progress.FeaturesWritten += int64(task.Summary.Written)
		job.Progress.SkippedNull += int64(task.Summary.SkippedNull)
	}
	job.Progress.UpdateThroughput()

	estimatedEnd := job.Progress.EstimateCompletion()
	job.Progress.EstimatedEnd = &estimatedEnd
}

// completeJobSuccessfully marks the job as completed
func (bp *BatchProcessor) completeJobSuccessfully(job *Job) {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	job.Status = JobStatusCompleted
	now := time.Now()
	job.CompletedAt = &now
}

// completeJobWithError marks the job as failed
func (bp *BatchProcessor) completeJobWithError(job *Job, err error) {
	bp.mutex.Lock()
	job.Status = JobStatusFailed
	job.Error = err
	now := time.Now()
	job.CompletedAt = &now
	bp.mutex.Unlock()

	bp.report(func(r ProgressReporter) error { return r.ReportJobFailed(job, err) })
}

// report serializes reporter calls; reporter errors are logged, not returned
func (bp *BatchProcessor) report(fn func(ProgressReporter) error) {
	if bp.reporter == nil {
		return
	}
	bp.mutex.Lock()
	defer bp.mutex.Unlock()
	if err := fn(bp.reporter); err != nil {
		bp.logger.Warn().Err(err).Msg("Progress reporter failed")
	}
}
