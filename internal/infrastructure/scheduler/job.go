// Package scheduler runs pipeline passes on intervals and on demand, one at
// a time, and keeps a short history of the runs.
package scheduler

import (
	"time"

	"github.com/google/uuid"

	"github.com/ordersync/backend/internal/application/ordersync"
	"github.com/ordersync/backend/internal/domain/integration"
)

// JobStatus represents the status of a pass job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// IsTerminal returns true once the job has finished
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailed
}

// Trigger records what submitted a job
type Trigger string

const (
	TriggerInterval Trigger = "interval"
	TriggerManual   Trigger = "manual"
)

// Job is one requested run of a pipeline pass
type Job struct {
	ID          uuid.UUID
	Pass        integration.SyncPass
	Trigger     Trigger
	Status      JobStatus
	Error       string
	SubmittedAt time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Result      *ordersync.PassResult
}

// NewJob creates a pending job
func NewJob(pass integration.SyncPass, trigger Trigger) *Job {
	return &Job{
		ID:          uuid.New(),
		Pass:        pass,
		Trigger:     trigger,
		Status:      JobStatusPending,
		SubmittedAt: time.Now(),
	}
}

// Start marks the job as running
func (j *Job) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as successful
func (j *Job) Complete(result ordersync.PassResult) {
	now := time.Now()
	j.Status = JobStatusSuccess
	j.CompletedAt = &now
	j.Result = &result
}

// Fail marks the job as failed. A partial result is kept when the pass
// produced one.
func (j *Job) Fail(err error, result ordersync.PassResult) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err.Error()
	j.Result = &result
}

// Duration is the run time of a finished job
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}
