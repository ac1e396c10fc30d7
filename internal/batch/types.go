// internal/batch/types.go - Batch processing types
package batch

import (
	"context"
	"time"

	"github.com/valpere/wgs_correction/internal/dataset"
	"github.com/valpere/wgs_correction/pkg/correction"
)

// Job represents a batch correction job
type Job struct {
	ID          string       `json:"id"`
	Tasks       []*Task      `json:"tasks"`
	Config      *JobConfig   `json:"config"`
	Status      JobStatus    `json:"status"`
	Progress    *JobProgress `json:"progress"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Error       error        `json:"-"`
}

// JobConfig contains configuration for a batch correction job
type JobConfig struct {
	Concurrency int             `json:"concurrency"`
	Timeout     time.Duration   `json:"timeout"`
	FailOnError bool            `json:"fail_on_error"`
	Dataset     dataset.Options `json:"dataset"`
}

// JobStatus represents the current status of a batch job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// Task is one dataset correction: an independent pipeline run with its own
// output
type Task struct {
	ID     string `json:"id"`
	Input  string `json:"input"`
	Output string `json:"output"`
	Kind   string `json:"kind"`

	Summary  *correction.Summary `json:"summary,omitempty"`
	Error    error               `json:"-"`
	Duration time.Duration       `json:"duration"`
}

// JobProgress tracks the progress of a batch job
type JobProgress struct {
	TotalTasks      int64      `json:"total_tasks"`
	ProcessedTasks  int64      `json:"processed_tasks"`
	FailedTasks     int64      `json:"failed_tasks"`
	SucceededTasks  int64      `json:"succeeded_tasks"`
	FeaturesWritten int64      `json:"features_written"`
	SkippedNull     int64      `json:"skipped_null"`
	StartTime       time.Time  `json:"start_time"`
	EstimatedEnd    *time.Time `json:"estimated_end,omitempty"`
	Throughput      float64    `json:"throughput"`
}

// Processor executes batch jobs
type Processor interface {
	Process(ctx context.Context, job *Job) error
}

// ProgressReporter receives job progress notifications
type ProgressReporter interface {
	ReportProgress(job *Job) error
	ReportTaskComplete(job *Job, task *Task) error
	ReportJobComplete(job *Job) error
	ReportJobFailed(job *Job, err error) error
}

// NewJob creates a new batch job
func NewJob(id string, tasks []*Task, config *JobConfig) *Job {
	return &Job{
		ID:        id,
		Tasks:     tasks,
		Config:    config,
		Status:    JobStatusPending,
		Progress:  NewJobProgress(),
		CreatedAt: time.Now(),
	}
}

// NewJobConfig creates a new job configuration with default values
func NewJobConfig() *JobConfig {
	return &JobConfig{
		Concurrency: 4,
		Timeout:     30 * time.Minute,
		FailOnError: false,
		Dataset:     dataset.Options{Encoding: "UTF-8", Overwrite: true},
	}
}

// NewJobProgress creates a new job progress tracker
func NewJobProgress() *JobProgress {
	return &JobProgress{StartTime: time.Now()}
}

// IsComplete returns true if the job has finished (successfully or with error)
func (j *Job) IsComplete() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed || j.Status == JobStatusCanceled
}

// IsRunning returns true if the job is currently being processed
func (j *Job) IsRunning() bool {
	return j.Status == JobStatusRunning
}

// FailedTasks returns the tasks that ended with an error
func (j *Job) FailedTasks() []*Task {
	var failed []*Task
	for _, task := range j.Tasks {
		if task.Error != nil {
			failed = append(failed, task)
		}
	}
	return failed
}

// EstimateCompletion estimates when the job will complete based on current progress
func (p *JobProgress) EstimateCompletion() time.Time {
	if p.Throughput == 0 || p.ProcessedTasks == 0 {
		return time.Now().Add(time.Hour)
	}

	remaining := p.TotalTasks - p.ProcessedTasks
	if remaining <= 0 {
		return time.Now()
	}

	secondsRemaining := float64(remaining) / p.Throughput
	return time.Now().Add(time.Duration(secondsRemaining * float64(time.Second)))
}

// CalculateProgress calculates the completion percentage
func (p *JobProgress) CalculateProgress() float64 {
	if p.TotalTasks == 0 {
		return 0
	}
	return float64(p.ProcessedTasks) / float64(p.TotalTasks) * 100
}

// UpdateThroughput updates the task throughput based on elapsed time
func (p *JobProgress) UpdateThroughput() {
	elapsed := time.Since(p.StartTime)
	if elapsed.Seconds() > 0 && p.ProcessedTasks > 0 {
		p.Throughput = float64(p.ProcessedTasks) / elapsed.Seconds()
	}
}

// String returns a string representation of the job status
func (s JobStatus) String() string {
	return string(s)
}

// IsValid checks if the job status is valid
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusCanceled:
		return true
	default:
		return false
	}
}

// JobReport is the serializable outcome of a finished job
type JobReport struct {
	ID          string        `json:"id"`
	Status      JobStatus     `json:"status"`
	Error       string        `json:"error,omitempty"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Progress    *JobProgress  `json:"progress"`
	Tasks       []*TaskReport `json:"tasks"`
}

// TaskReport is the serializable outcome of one task
type TaskReport struct {
	ID       string              `json:"id"`
	Input    string              `json:"input"`
	Output   string              `json:"output"`
	Kind     string              `json:"kind"`
	Error    string              `json:"error,omitempty"`
	Duration time.Duration       `json:"duration"`
	Summary  *correction.Summary `json:"summary,omitempty"`
}

// Report builds a report of the job; call it once the job has finished
func (j *Job) Report() *JobReport {
	report := &JobReport{
		ID:          j.ID,
		Status:      j.Status,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		Progress:    j.Progress,
		Tasks:       make([]*TaskReport, 0, len(j.Tasks)),
	}
	if j.Error != nil {
		report.Error = j.Error.Error()
	}

	for _, task := range j.Tasks {
		tr := &TaskReport{
			ID:       task.ID,
			Input:    task.Input,
			Output:   task.Output,
			Kind:     task.Kind,
			Duration: task.Duration,
			Summary:  task.Summary,
		}
		if task.Error != nil {
			tr.Error = task.Error.Error()
		}
		report.Tasks = append(report.Tasks, tr)
	}
	return report
}
