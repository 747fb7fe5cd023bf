package service

import (
	"fmt"

	"post_drafter/internal/domain"
)

// TaskLister exposes tasks in the store's stable order.
type TaskLister interface {
	Tasks() []domain.TaskRecord
}

type Selector struct {
	tasks TaskLister
}

func NewSelector(tasks TaskLister) *Selector {
	return &Selector{tasks: tasks}
}

// SelectNext returns up to n pending tasks in store order. It never mutates the store.
func (s *Selector) SelectNext(n int) ([]domain.TaskRecord, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: select count must be non-negative, got %d", domain.ErrPrecondition, n)
	}
	if n == 0 {
		return []domain.TaskRecord{}, nil
	}

	tasks := s.tasks.Tasks()
	selected := make([]domain.TaskRecord, 0, min(n, len(tasks)))
	for _, task := range tasks {
		if !task.Pending() {
			continue
		}
		selected = append(selected, task)
		if len(selected) == n {
			break
		}
	}
	return selected, nil
}
