package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"post_drafter/internal/domain"
)

// TrackerConfig carries the runner parameters used when creating jobs.
type TrackerConfig struct {
	Endpoint         string
	CompletionWindow string
}

// Tracker owns the single-outstanding-job invariant. The persisted job
// document is the only record of whether a batch is outstanding.
type Tracker struct {
	docs   DocumentStore
	runner JobRunner
	cfg    TrackerConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewTracker(docs DocumentStore, runner JobRunner, cfg TrackerConfig, logger *slog.Logger) *Tracker {
	return &Tracker{
		docs:   docs,
		runner: runner,
		cfg:    cfg,
		logger: logger.With("component", "tracker"),
		now:    time.Now,
	}
}

// Current returns the persisted job, or nil when none is outstanding.
func (t *Tracker) Current(ctx context.Context) (*domain.BatchJob, error) {
	data, found, err := t.docs.Get(ctx, KeyJob)
	if err != nil {
		return nil, fmt.Errorf("read job: %w", err)
	}
	if !found {
		return nil, nil
	}

	var job domain.BatchJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("%w: decode job: %v", domain.ErrCorruptState, err)
	}
	if job.ID == "" {
		return nil, fmt.Errorf("%w: job record has no id", domain.ErrCorruptState)
	}
	return &job, nil
}

// Submit uploads the requests as one payload, creates the remote job and
// persists it. It refuses while another job record exists.
func (t *Tracker) Submit(ctx context.Context, requests []domain.GenerationRequest, meta domain.JobMetadata) (*domain.BatchJob, error) {
	current, err := t.Current(ctx)
	if err != nil {
		return nil, err
	}
	if current != nil {
		return nil, fmt.Errorf("%w: job %s is %s", domain.ErrJobOutstanding, current.ID, current.Status)
	}
	if len(requests) == 0 {
		return nil, fmt.Errorf("%w: no requests to submit", domain.ErrPrecondition)
	}

	payload, err := t.runner.EncodeRequests(requests)
	if err != nil {
		return nil, fmt.Errorf("encode requests: %w", err)
	}

	fileRef, err := t.runner.CreateFile(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("upload batch input: %w", err)
	}

	job, err := t.runner.CreateJob(ctx, domain.JobSpec{
		InputFileRef:     fileRef,
		Endpoint:         t.cfg.Endpoint,
		CompletionWindow: t.cfg.CompletionWindow,
		Metadata: map[string]string{
			"platform":    meta.Platform,
			"model":       meta.Model,
			"template":    meta.TemplateName,
			"run_id":      meta.RunID,
			"sample_seed": strconv.FormatUint(meta.SampleSeed, 10),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create batch job: %w", err)
	}

	now := t.now().UTC()
	job.Metadata = meta
	if job.InputFileRef == "" {
		job.InputFileRef = fileRef
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	if err := t.save(ctx, job); err != nil {
		return nil, err
	}

	t.logger.Info("submitted batch job",
		"job_id", job.ID,
		"status", job.Status,
		"requests", len(requests),
		"input_file", fileRef,
	)

	return job, nil
}

// Poll refreshes the job from the runner and persists it. The returned
// payload is non-nil only for a completed job.
func (t *Tracker) Poll(ctx context.Context) (*domain.BatchJob, []byte, error) {
	current, err := t.Current(ctx)
	if err != nil {
		return nil, nil, err
	}
	if current == nil {
		return nil, nil, domain.ErrNoJob
	}

	remote, err := t.runner.GetJob(ctx, current.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("get batch job %s: %w", current.ID, err)
	}

	job := *current
	job.Status = remote.Status
	job.OutputFileRef = remote.OutputFileRef
	job.ErrorFileRef = remote.ErrorFileRef
	job.RequestCounts = remote.RequestCounts
	job.UpdatedAt = t.now().UTC()

	if err := t.save(ctx, &job); err != nil {
		return nil, nil, err
	}

	t.logger.Info("polled batch job",
		"job_id", job.ID,
		"status", job.Status,
		"completed", job.RequestCounts.Completed,
		"failed", job.RequestCounts.Failed,
		"total", job.RequestCounts.Total,
	)

	if job.Status != domain.JobCompleted {
		return &job, nil, nil
	}

	payload, err := t.fetchOutput(ctx, &job)
	if err != nil {
		return nil, nil, err
	}
	return &job, payload, nil
}

// fetchOutput concatenates the output file with the error file, if any.
func (t *Tracker) fetchOutput(ctx context.Context, job *domain.BatchJob) ([]byte, error) {
	if job.OutputFileRef == "" && job.ErrorFileRef == "" {
		return nil, fmt.Errorf("batch job %s completed without output", job.ID)
	}

	var payload []byte
	for _, ref := range []string{job.OutputFileRef, job.ErrorFileRef} {
		if ref == "" {
			continue
		}
		content, err := t.runner.GetFileContent(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("download batch file %s: %w", ref, err)
		}
		payload = append(payload, content...)
		if len(payload) > 0 && payload[len(payload)-1] != '\n' {
			payload = append(payload, '\n')
		}
	}
	return payload, nil
}

// Clear archives the job record and removes it so a new job can be submitted.
func (t *Tracker) Clear(ctx context.Context) error {
	current, err := t.Current(ctx)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}

	history, err := t.History(ctx)
	if err != nil {
		return err
	}
	if n := len(history); n == 0 || history[n-1].ID != current.ID {
		history = append(history, *current)
	}

	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshal job history: %w", err)
	}
	if err := t.docs.Put(ctx, KeyJobHistory, data); err != nil {
		return fmt.Errorf("write job history: %w", err)
	}
	if err := t.docs.Delete(ctx, KeyJob); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}

	t.logger.Info("cleared batch job", "job_id", current.ID, "status", current.Status)
	return nil
}

// History returns archived jobs, oldest first.
func (t *Tracker) History(ctx context.Context) ([]domain.BatchJob, error) {
	data, found, err := t.docs.Get(ctx, KeyJobHistory)
	if err != nil {
		return nil, fmt.Errorf("read job history: %w", err)
	}
	if !found {
		return nil, nil
	}

	var history []domain.BatchJob
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("%w: decode job history: %v", domain.ErrCorruptState, err)
	}
	return history, nil
}

func (t *Tracker) save(ctx context.Context, job *domain.BatchJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := t.docs.Put(ctx, KeyJob, data); err != nil {
		return fmt.Errorf("write job: %w", err)
	}
	return nil
}
