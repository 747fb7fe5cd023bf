package domain

import "time"

type JobStatus string

const (
	JobSubmitted  JobStatus = "submitted"
	JobValidating JobStatus = "validating"
	JobInProgress JobStatus = "in_progress"
	JobFinalizing JobStatus = "finalizing"
	JobCancelling JobStatus = "cancelling"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobExpired    JobStatus = "expired"
	JobCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the runner will no longer change the job.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobExpired, JobCancelled:
		return true
	}
	return false
}

// Failed reports a terminal status that produced no output to reconcile.
func (s JobStatus) Failed() bool {
	return s.Terminal() && s != JobCompleted
}

// JobMetadata is the context needed to reconcile and label results later.
type JobMetadata struct {
	Platform     string `json:"platform"`
	Model        string `json:"model"`
	Template     string `json:"prompt"`
	TemplateName string `json:"template_name,omitempty"`
	SampleSeed   uint64 `json:"sample_seed"`
	RunID        string `json:"run_id,omitempty"`
}

type RequestCounts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// BatchJob is the persisted record of the single outstanding batch.
type BatchJob struct {
	ID            string        `json:"id"`
	Status        JobStatus     `json:"status"`
	InputFileRef  string        `json:"input_file_id"`
	OutputFileRef string        `json:"output_file_id,omitempty"`
	ErrorFileRef  string        `json:"error_file_id,omitempty"`
	RequestCounts RequestCounts `json:"request_counts"`
	Metadata      JobMetadata   `json:"metadata"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// GenerationRequest is one independent prompt in a batch, correlated by CustomID.
type GenerationRequest struct {
	CustomID string
	Model    string
	System   string
	Prompt   string
}

// JobSpec describes a batch job to create from an uploaded input file.
type JobSpec struct {
	InputFileRef     string
	Endpoint         string
	CompletionWindow string
	Metadata         map[string]string
}
