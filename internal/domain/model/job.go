package model

import "time"

type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusError   JobStatus = "error"
)

// Job tracks one user-submitted batch of documents through its lifecycle.
// Legal transitions: queued -> running -> done|error. Progress is a percent
// in [0,100], never decreasing within a job, and reaches 100 only on done.
type Job struct {
	ID                 string
	Status             JobStatus
	Progress           int
	DocumentsProcessed int
	TotalRecords       int
	Message            string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func NewJob(id string) *Job {
	now := time.Now()
	return &Job{
		ID:        id,
		Status:    JobStatusQueued,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Terminal reports whether the job reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusDone || j.Status == JobStatusError
}

// CanTransition validates the state machine.
func (j *Job) CanTransition(to JobStatus) bool {
	switch j.Status {
	case JobStatusQueued:
		return to == JobStatusRunning
	case JobStatusRunning:
		return to == JobStatusDone || to == JobStatusError
	default:
		return false
	}
}
