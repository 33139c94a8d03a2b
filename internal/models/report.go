package models

import (
	"time"

	"github.com/google/uuid"
)

// StageReport aggregates outcomes for one stage of a run.
type StageReport struct {
	Stage     string `json:"stage"`
	Attempted int    `json:"attempted"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

// Failure describes one record that a stage could not process.
type Failure struct {
	ID     string `json:"id"`
	Stage  string `json:"stage"`
	Detail string `json:"detail"`
}

// RunReport is the aggregate result of one pipeline invocation.
// It is populated while the run executes and must not be mutated afterwards.
type RunReport struct {
	RunID       string        `json:"run_id"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	DryRun      bool          `json:"dry_run"`
	Stages      []StageReport `json:"stages"`
	Failures    []Failure     `json:"failures"`
	Success     bool          `json:"success"`
}

// NewRunReport creates an empty report for a run starting now.
func NewRunReport(dryRun bool) *RunReport {
	return &RunReport{
		RunID:     uuid.New().String()[:8],
		StartedAt: time.Now().UTC(),
		DryRun:    dryRun,
	}
}

// Record folds one outcome into the named stage's counters, creating the
// stage entry on first use. Failure order follows outcome order.
func (r *RunReport) Record(stage string, o Outcome) {
	sr := r.stageReport(stage)
	sr.Attempted++
	switch o.Status {
	case StatusOK:
		sr.Succeeded++
	case StatusSkipped:
		sr.Skipped++
	case StatusFailed:
		sr.Failed++
		r.Failures = append(r.Failures, Failure{ID: o.ID, Stage: stage, Detail: o.Detail})
	}
}

// Finish seals the report. Success means no stage recorded a failure.
func (r *RunReport) Finish() {
	r.CompletedAt = time.Now().UTC()
	r.Success = len(r.Failures) == 0
}

// TotalAttempted sums attempted counts across stages.
func (r *RunReport) TotalAttempted() int {
	n := 0
	for _, s := range r.Stages {
		n += s.Attempted
	}
	return n
}

func (r *RunReport) stageReport(stage string) *StageReport {
	for i := range r.Stages {
		if r.Stages[i].Stage == stage {
			return &r.Stages[i]
		}
	}
	r.Stages = append(r.Stages, StageReport{Stage: stage})
	return &r.Stages[len(r.Stages)-1]
}
