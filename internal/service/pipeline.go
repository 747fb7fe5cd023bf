package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"post_drafter/internal/config"
	"post_drafter/internal/domain"
)

// Pipeline runs one invocation: it either advances the outstanding batch
// job or submits a new one, never both.
type Pipeline struct {
	tasks      *TaskStore
	posts      *PostStore
	selector   *Selector
	renderer   *Renderer
	tracker    *Tracker
	reconciler *Reconciler
	publisher  Publisher
	logger     *slog.Logger
	config     config.GenerationConfig

	newSeed  func() uint64
	newRunID func() string
}

func NewPipeline(
	source Source,
	docs DocumentStore,
	runner JobRunner,
	txManager TransactionManager,
	publisher Publisher,
	logger *slog.Logger,
	cfg config.GenerationConfig,
	trackerCfg TrackerConfig,
) *Pipeline {
	tasks := NewTaskStore(source, docs, logger)
	posts := NewPostStore(docs)

	return &Pipeline{
		tasks:      tasks,
		posts:      posts,
		selector:   NewSelector(tasks),
		renderer:   NewRenderer(cfg.CorpusCap),
		tracker:    NewTracker(docs, runner, trackerCfg, logger),
		reconciler: NewReconciler(tasks, posts, txManager, logger),
		publisher:  publisher,
		logger:     logger.With("source", source.ID()),
		config:     cfg,
		newSeed:    rand.Uint64,
		newRunID:   uuid.NewString,
	}
}

func (p *Pipeline) Run(ctx context.Context, opts domain.RunOptions) (*domain.RunStats, error) {
	startTime := time.Now()
	stats := &domain.RunStats{RunID: p.newRunID()}
	logger := p.logger.With("run_id", stats.RunID)

	logger.Info("starting run", "count", opts.Count, "template", opts.Template)

	if err := p.tasks.Load(ctx); err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	if err := p.tasks.Save(ctx); err != nil {
		return nil, fmt.Errorf("save tasks: %w", err)
	}
	stats.Tasks = len(p.tasks.Tasks())

	job, err := p.tracker.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("read job: %w", err)
	}

	if job != nil {
		err = p.advance(ctx, stats, logger)
	} else {
		err = p.submit(ctx, opts, stats, logger)
	}
	if err != nil {
		return stats, err
	}

	stats.Duration = time.Since(startTime)

	logger.Info("run completed",
		"outcome", stats.Outcome,
		"job_id", stats.JobID,
		"job_status", stats.JobStatus,
		"selected", stats.Selected,
		"succeeded", stats.Reconcile.Succeeded,
		"failed", stats.Reconcile.Failed,
		"published", stats.Published,
		"errors", stats.Errors,
		"duration", stats.Duration,
	)

	return stats, nil
}

func (p *Pipeline) advance(ctx context.Context, stats *domain.RunStats, logger *slog.Logger) error {
	job, payload, err := p.tracker.Poll(ctx)
	if err != nil {
		return fmt.Errorf("poll job: %w", err)
	}
	stats.JobID = job.ID
	stats.JobStatus = job.Status

	switch {
	case job.Status == domain.JobCompleted:
		return p.complete(ctx, job, payload, stats, logger)
	case job.Status.Failed():
		logger.Warn("batch job ended without output, clearing", "job_id", job.ID, "status", job.Status)
		if err := p.tracker.Clear(ctx); err != nil {
			return fmt.Errorf("clear job: %w", err)
		}
		stats.Outcome = domain.OutcomeFailed
	default:
		stats.Outcome = domain.OutcomePending
	}
	return nil
}

func (p *Pipeline) complete(ctx context.Context, job *domain.BatchJob, payload []byte, stats *domain.RunStats, logger *slog.Logger) error {
	if err := p.posts.Load(ctx); err != nil {
		return fmt.Errorf("load posts: %w", err)
	}

	reconciled, posts, err := p.reconciler.Reconcile(ctx, payload, job.Metadata)
	if err != nil {
		return fmt.Errorf("reconcile job %s: %w", job.ID, err)
	}
	stats.Reconcile = *reconciled

	if err := p.tracker.Clear(ctx); err != nil {
		return fmt.Errorf("clear job: %w", err)
	}
	stats.Outcome = domain.OutcomeCompleted

	if p.publisher == nil {
		return nil
	}
	for i := range posts {
		if err := p.publisher.Publish(ctx, &posts[i]); err != nil {
			logger.Warn("failed to publish post", "task_id", posts[i].ID, "error", err)
			stats.Errors++
			continue
		}
		stats.Published++
	}
	return nil
}

func (p *Pipeline) submit(ctx context.Context, opts domain.RunOptions, stats *domain.RunStats, logger *slog.Logger) error {
	stats.Outcome = domain.OutcomeIdle

	selected, err := p.selector.SelectNext(opts.Count)
	if err != nil {
		return err
	}
	stats.Selected = len(selected)
	if len(selected) == 0 {
		logger.Info("no tasks to submit", "count", opts.Count)
		return nil
	}

	tmpl, err := p.template(opts.Template)
	if err != nil {
		return err
	}

	seed := p.newSeed()
	requests := p.renderer.Render(selected, p.tasks.Overviews(), tmpl, p.config.Model, seed)

	job, err := p.tracker.Submit(ctx, requests, domain.JobMetadata{
		Platform:     tmpl.Platform,
		Model:        p.config.Model,
		Template:     tmpl.Prompt,
		TemplateName: tmpl.Name,
		SampleSeed:   seed,
		RunID:        stats.RunID,
	})
	if err != nil {
		return fmt.Errorf("submit batch: %w", err)
	}

	stats.Outcome = domain.OutcomeSubmitted
	stats.JobID = job.ID
	stats.JobStatus = job.Status
	return nil
}

func (p *Pipeline) template(name string) (domain.Template, error) {
	if name == "" {
		name = p.config.Template
	}
	tc, ok := p.config.Templates[name]
	if !ok {
		return domain.Template{}, fmt.Errorf("template %q: %w", name, domain.ErrNotFound)
	}
	return domain.Template{
		Name:     name,
		Platform: tc.Platform,
		System:   tc.System,
		Prompt:   tc.Prompt,
	}, nil
}
