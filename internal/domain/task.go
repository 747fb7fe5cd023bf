package domain

import (
	"strings"
	"time"
)

type TaskStatus string

const (
	TaskNeedsAction TaskStatus = "needsAction"
	TaskCompleted   TaskStatus = "completed"
)

// TaskRecord is a flattened task enriched with processing metadata.
type TaskRecord struct {
	ID          string     `json:"id" validate:"required"`
	Title       string     `json:"title"`
	Notes       *string    `json:"notes,omitempty"`
	Due         *time.Time `json:"due,omitempty"`
	Created     *time.Time `json:"created,omitempty"`
	Updated     time.Time  `json:"updated"`
	Completed   *time.Time `json:"completed,omitempty"`
	Status      TaskStatus `json:"status" validate:"oneof=needsAction completed"`
	GroupName   string     `json:"groupName"`
	ProcessedAt *time.Time `json:"processedAt"`
	Overview    string     `json:"overview"`
}

// TaskGroup is one category of tasks as delivered by a task source.
type TaskGroup struct {
	Name  string
	Tasks []TaskRecord
}

// SortKey is the due date when present, else the creation time, else the last update.
func (t *TaskRecord) SortKey() time.Time {
	if t.Due != nil {
		return *t.Due
	}
	if t.Created != nil {
		return *t.Created
	}
	return t.Updated
}

func (t *TaskRecord) Pending() bool {
	return t.Status == TaskNeedsAction && t.ProcessedAt == nil
}

// BuildOverview renders "<group>: <title> - <notes>", dropping the notes part when empty.
func BuildOverview(group, title string, notes *string) string {
	overview := group + ": " + title
	if notes != nil && strings.TrimSpace(*notes) != "" {
		overview += " - " + *notes
	}
	return strings.TrimSpace(overview)
}
