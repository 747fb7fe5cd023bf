package gtasks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"post_drafter/internal/domain"
)

func (b Backup) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		tasks := c.Tasks
		if tasks == nil {
			tasks = []Task{}
		}
		body, err := json.Marshal(tasks)
		if err != nil {
			return nil, fmt.Errorf("marshal category %q: %w", c.Name, err)
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(body)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON walks the object token by token so categories keep the
// order they have in the file.
func (b *Backup) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("read backup: expected object, got %v", tok)
	}

	var out Backup
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read backup: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("read backup: expected category name, got %v", tok)
		}

		var tasks []Task
		if err := dec.Decode(&tasks); err != nil {
			return fmt.Errorf("read category %q: %w", name, err)
		}
		out = append(out, Category{Name: name, Tasks: tasks})
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("read backup: %w", err)
	}

	*b = out
	return nil
}

// toGroups converts a backup into task groups. Deleted tasks and tasks
// without an id or a parsable update time are dropped with a warning.
func toGroups(backup Backup, logger *slog.Logger) []domain.TaskGroup {
	groups := make([]domain.TaskGroup, 0, len(backup))

	for _, c := range backup {
		group := domain.TaskGroup{Name: c.Name}

		for _, t := range c.Tasks {
			if t.Deleted {
				logger.Debug("skipping deleted task", "task_id", t.ID, "category", c.Name)
				continue
			}
			if t.ID == "" {
				logger.Warn("skipping task without id", "category", c.Name, "title", t.Title)
				continue
			}

			updated, err := time.Parse(time.RFC3339, t.Updated)
			if err != nil {
				logger.Warn("failed to parse updated time",
					"task_id", t.ID,
					"updated", t.Updated,
				)
				continue
			}

			group.Tasks = append(group.Tasks, domain.TaskRecord{
				ID:        t.ID,
				Title:     t.Title,
				Notes:     t.Notes,
				Due:       parseOptional(t.Due, t.ID, "due", logger),
				Created:   parseOptional(&t.Created, t.ID, "created", logger),
				Updated:   updated.UTC(),
				Completed: parseOptional(t.Completed, t.ID, "completed", logger),
				Status:    parseStatus(t.Status),
			})
		}

		groups = append(groups, group)
	}

	return groups
}

func parseOptional(value *string, id, field string, logger *slog.Logger) *time.Time {
	if value == nil || *value == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC3339, *value)
	if err != nil {
		logger.Warn("failed to parse task time", "task_id", id, "field", field, "value", *value)
		return nil
	}
	ts = ts.UTC()
	return &ts
}

func parseStatus(status string) domain.TaskStatus {
	if strings.EqualFold(status, string(domain.TaskCompleted)) {
		return domain.TaskCompleted
	}
	return domain.TaskNeedsAction
}
