package domain

import "time"

type RunOutcome string

const (
	OutcomeIdle      RunOutcome = "idle"
	OutcomeSubmitted RunOutcome = "submitted"
	OutcomePending   RunOutcome = "pending"
	OutcomeCompleted RunOutcome = "completed"
	OutcomeFailed    RunOutcome = "failed"
)

// RunStats holds statistics about a single pipeline invocation.
type RunStats struct {
	RunID     string
	Outcome   RunOutcome
	JobID     string
	JobStatus JobStatus
	Tasks     int
	Selected  int
	Reconcile ReconcileStats
	Published int
	Errors    int
	Duration  time.Duration
}

// ReconcileStats counts result lines applied from a completed batch.
type ReconcileStats struct {
	Lines     int
	Succeeded int
	Failed    int
}

// RunOptions are the user-facing knobs of one invocation.
type RunOptions struct {
	Count    int
	Template string
}

// StatusReport summarises persisted state without contacting any remote.
type StatusReport struct {
	Job       *BatchJob
	Tasks     int
	Pending   int
	Processed int
	Posts     int
	Archived  int
}
