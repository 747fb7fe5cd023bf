package service

import (
	"context"
	"fmt"
	"log/slog"

	"post_drafter/internal/domain"
)

// StatusReader reports persisted state without touching the source or the
// runner.
type StatusReader struct {
	tasks   *TaskStore
	posts   *PostStore
	tracker *Tracker
}

func NewStatusReader(docs DocumentStore, logger *slog.Logger) *StatusReader {
	return &StatusReader{
		tasks:   newPersistedTaskStore(docs, logger),
		posts:   NewPostStore(docs),
		tracker: NewTracker(docs, nil, TrackerConfig{}, logger),
	}
}

func (r *StatusReader) Status(ctx context.Context) (*domain.StatusReport, error) {
	if err := r.tasks.LoadPersisted(ctx); err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	if err := r.posts.Load(ctx); err != nil {
		return nil, fmt.Errorf("load posts: %w", err)
	}
	job, err := r.tracker.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("read job: %w", err)
	}
	history, err := r.tracker.History(ctx)
	if err != nil {
		return nil, fmt.Errorf("read job history: %w", err)
	}

	report := &domain.StatusReport{
		Job:      job,
		Posts:    r.posts.Len(),
		Archived: len(history),
	}
	for _, task := range r.tasks.Tasks() {
		report.Tasks++
		if task.ProcessedAt != nil {
			report.Processed++
		}
		if task.Pending() {
			report.Pending++
		}
	}
	return report, nil
}
