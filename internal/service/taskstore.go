package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"post_drafter/internal/domain"
)

// Document keys shared by the stores.
const (
	KeyTasks      = "tasks"
	KeyJob        = "job"
	KeyJobHistory = "job_history"
	KeyPosts      = "posts"
)

// TaskStore holds the flat, enriched task list merged from the source and
// the persisted document.
type TaskStore struct {
	source   Source
	docs     DocumentStore
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time

	tasks []domain.TaskRecord
	index map[string]int
}

func NewTaskStore(source Source, docs DocumentStore, logger *slog.Logger) *TaskStore {
	return &TaskStore{
		source:   source,
		docs:     docs,
		validate: validator.New(),
		logger:   logger.With("component", "task_store", "source", source.ID()),
		now:      time.Now,
		index:    make(map[string]int),
	}
}

// Load fetches the source, flattens and sorts it, and merges it into the
// persisted records. Set persisted fields win unless the import's updated
// time is strictly newer, in which case the source-owned fields (title,
// notes, due, status, completed, group, overview) are refreshed so that a
// task completed upstream stops being pending. processedAt is never taken
// from the import.
//
// Only the imported records are sorted. Persisted records the import no
// longer carries keep their persisted order and go after them.
func (s *TaskStore) Load(ctx context.Context) error {
	groups, err := s.source.FetchTasks(ctx)
	if err != nil {
		return fmt.Errorf("fetch tasks: %w", err)
	}

	imported := sortTasks(flattenGroups(groups))

	existing, err := s.readPersisted(ctx)
	if err != nil {
		return err
	}

	merged := mergeTasks(imported, existing)
	for i := range merged {
		if err := s.validate.Struct(&merged[i]); err != nil {
			return fmt.Errorf("%w: task %q: %v", domain.ErrCorruptState, merged[i].ID, err)
		}
	}

	s.setTasks(merged)

	s.logger.Info("loaded tasks",
		"imported", len(imported),
		"persisted", len(existing),
		"total", len(merged),
	)

	return nil
}

// newPersistedTaskStore returns a store that can only LoadPersisted; it has
// no source to fetch from.
func newPersistedTaskStore(docs DocumentStore, logger *slog.Logger) *TaskStore {
	return &TaskStore{
		docs:     docs,
		validate: validator.New(),
		logger:   logger.With("component", "task_store"),
		now:      time.Now,
		index:    make(map[string]int),
	}
}

// LoadPersisted reads only the persisted records, skipping the source.
func (s *TaskStore) LoadPersisted(ctx context.Context) error {
	existing, err := s.readPersisted(ctx)
	if err != nil {
		return err
	}
	s.setTasks(existing)
	return nil
}

func (s *TaskStore) readPersisted(ctx context.Context) ([]domain.TaskRecord, error) {
	data, found, err := s.docs.Get(ctx, KeyTasks)
	if err != nil {
		return nil, fmt.Errorf("read tasks: %w", err)
	}
	if !found {
		return nil, nil
	}

	var tasks []domain.TaskRecord
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("%w: decode tasks: %v", domain.ErrCorruptState, err)
	}
	return tasks, nil
}

// Save persists the full flat list.
func (s *TaskStore) Save(ctx context.Context) error {
	tasks := s.tasks
	if tasks == nil {
		tasks = []domain.TaskRecord{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("marshal tasks: %w", err)
	}
	if err := s.docs.Put(ctx, KeyTasks, data); err != nil {
		return fmt.Errorf("write tasks: %w", err)
	}
	return nil
}

// Tasks returns a copy of the records in store order.
func (s *TaskStore) Tasks() []domain.TaskRecord {
	out := make([]domain.TaskRecord, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Overviews returns every record's overview in store order.
func (s *TaskStore) Overviews() []string {
	out := make([]string, len(s.tasks))
	for i := range s.tasks {
		out[i] = s.tasks[i].Overview
	}
	return out
}

func (s *TaskStore) FindByID(id string) (*domain.TaskRecord, error) {
	i, ok := s.index[id]
	if !ok {
		return nil, fmt.Errorf("task %q: %w", id, domain.ErrNotFound)
	}
	task := s.tasks[i]
	return &task, nil
}

// MarkProcessed stamps processedAt on each task that does not have one yet
// and persists the list. Unknown ids abort before anything changes.
func (s *TaskStore) MarkProcessed(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := s.FindByID(id); err != nil {
			return err
		}
	}

	now := s.now().UTC()
	marked := 0
	for _, id := range ids {
		task := &s.tasks[s.index[id]]
		if task.ProcessedAt != nil {
			continue
		}
		processedAt := now
		task.ProcessedAt = &processedAt
		marked++
	}

	if err := s.Save(ctx); err != nil {
		return err
	}

	s.logger.Debug("marked tasks processed", "requested", len(ids), "marked", marked)
	return nil
}

func (s *TaskStore) setTasks(tasks []domain.TaskRecord) {
	s.tasks = tasks
	s.index = make(map[string]int, len(tasks))
	for i := range tasks {
		s.index[tasks[i].ID] = i
	}
}

func flattenGroups(groups []domain.TaskGroup) []domain.TaskRecord {
	var flat []domain.TaskRecord
	for _, group := range groups {
		for _, task := range group.Tasks {
			task.GroupName = group.Name
			task.Overview = domain.BuildOverview(group.Name, task.Title, task.Notes)
			task.ProcessedAt = nil
			flat = append(flat, task)
		}
	}
	return flat
}

// sortTasks orders by SortKey ascending; ties keep import order.
func sortTasks(tasks []domain.TaskRecord) []domain.TaskRecord {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].SortKey().Before(tasks[j].SortKey())
	})
	return tasks
}

// mergeTasks keeps imported order, then appends persisted records that the
// import no longer carries. Duplicate ids within the import collapse to the
// first occurrence.
func mergeTasks(imported, existing []domain.TaskRecord) []domain.TaskRecord {
	persisted := make(map[string]domain.TaskRecord, len(existing))
	for _, t := range existing {
		persisted[t.ID] = t
	}

	seen := make(map[string]bool, len(imported)+len(existing))
	merged := make([]domain.TaskRecord, 0, len(imported)+len(existing))

	for _, fresh := range imported {
		if seen[fresh.ID] {
			continue
		}
		seen[fresh.ID] = true

		old, ok := persisted[fresh.ID]
		if !ok {
			merged = append(merged, fresh)
			continue
		}
		merged = append(merged, mergeTask(old, fresh))
	}

	for _, old := range existing {
		if seen[old.ID] {
			continue
		}
		seen[old.ID] = true
		merged = append(merged, old)
	}

	return merged
}

func mergeTask(old, fresh domain.TaskRecord) domain.TaskRecord {
	out := old

	if fresh.Updated.After(old.Updated) {
		out.Title = fresh.Title
		out.Notes = fresh.Notes
		out.Due = fresh.Due
		out.Status = fresh.Status
		out.Completed = fresh.Completed
		out.Updated = fresh.Updated
		out.GroupName = fresh.GroupName
		out.Overview = fresh.Overview
	}

	if out.Title == "" {
		out.Title = fresh.Title
	}
	if out.Notes == nil {
		out.Notes = fresh.Notes
	}
	if out.Due == nil {
		out.Due = fresh.Due
	}
	if out.Created == nil {
		out.Created = fresh.Created
	}
	if out.Updated.IsZero() {
		out.Updated = fresh.Updated
	}
	if out.Completed == nil {
		out.Completed = fresh.Completed
	}
	if out.Status == "" {
		out.Status = fresh.Status
	}
	if out.GroupName == "" {
		out.GroupName = fresh.GroupName
	}
	if out.Overview == "" {
		out.Overview = fresh.Overview
	}

	return out
}
