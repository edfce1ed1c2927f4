package models

import (
	"time"

	"github.com/google/uuid"
)

// StageStatus is the outcome of one pipeline stage
type StageStatus string

const (
	StageSuccess StageStatus = "success"
	StageSkipped StageStatus = "skipped"
	StageFatal   StageStatus = "fatal"
)

// StageResult records what a stage produced or why it did not
type StageResult struct {
	Stage     string        `json:"stage"`
	Status    StageStatus   `json:"status"`
	Reason    string        `json:"reason,omitempty"`
	Artifacts []string      `json:"artifacts,omitempty"`
	Rows      int           `json:"rows"`
	Duration  time.Duration `json:"duration_ns"`
}

// RunReport aggregates every stage of one job run
type RunReport struct {
	RunID      uuid.UUID     `json:"run_id"`
	Job        string        `json:"job"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Stages     []StageResult `json:"stages"`
}

// NewRunReport starts a report for a job
func NewRunReport(job string) *RunReport {
	return &RunReport{
		RunID:     uuid.New(),
		Job:       job,
		StartedAt: time.Now().UTC(),
	}
}

// Add appends a stage result
func (r *RunReport) Add(result StageResult) {
	r.Stages = append(r.Stages, result)
}

// Finish stamps the end time
func (r *RunReport) Finish() {
	r.FinishedAt = time.Now().UTC()
}

// Fatal reports whether any stage aborted the job
func (r *RunReport) Fatal() bool {
	for _, s := range r.Stages {
		if s.Status == StageFatal {
			return true
		}
	}
	return false
}

// Count returns how many stages ended with the given status
func (r *RunReport) Count(status StageStatus) int {
	n := 0
	for _, s := range r.Stages {
		if s.Status == status {
			n++
		}
	}
	return n
}
