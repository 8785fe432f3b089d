package queue

import (
	"encoding/json"
	"time"
)

// Reason records what caused a refresh to be scheduled.
type Reason string

const (
	ReasonIngest   Reason = "ingest"
	ReasonPeriodic Reason = "periodic"
	ReasonManual   Reason = "manual"
)

// Job is one pending summary refresh. Jobs are keyed by task UUID, so
// enqueueing a task that is already pending collapses into the existing job
// instead of queueing duplicate work.
type Job struct {
	TaskUUID    string    `json:"task_uuid"`
	Reason      Reason    `json:"reason"`
	Retries     int       `json:"retries"`
	CreatedAt   time.Time `json:"created_at"`
	ScheduledAt time.Time `json:"scheduled_at"`
	LastError   string    `json:"last_error,omitempty"`
}

func NewJob(taskUUID string, reason Reason) *Job {
	now := time.Now().UTC()
	return &Job{
		TaskUUID:    taskUUID,
		Reason:      reason,
		CreatedAt:   now,
		ScheduledAt: now,
	}
}

func (j *Job) ToJSON() (string, error) {
	data, err := json.Marshal(j)
	return string(data), err
}

func JobFromJSON(data string) (*Job, error) {
	var job Job
	err := json.Unmarshal([]byte(data), &job)
	return &job, err
}
