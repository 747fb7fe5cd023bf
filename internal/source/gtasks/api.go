package gtasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/tasks/v1"

	"post_drafter/internal/domain"
)

const (
	APISourceID = "gtasks-api"
	pageSize    = 100
)

// APISource lists every task list and its tasks from the Google Tasks API,
// including completed, hidden and deleted tasks.
type APISource struct {
	service *tasks.Service
	logger  *slog.Logger
}

// NewAPISource authorizes with an OAuth client file and a previously stored
// token. The interactive consent flow is not handled here.
func NewAPISource(ctx context.Context, credentialsPath, tokenPath string, logger *slog.Logger) (*APISource, error) {
	credentials, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.ConfigFromJSON(credentials, tasks.TasksReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	rawToken, err := os.ReadFile(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(rawToken, &token); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	service, err := tasks.NewService(ctx, option.WithTokenSource(config.TokenSource(ctx, &token)))
	if err != nil {
		return nil, fmt.Errorf("create tasks service: %w", err)
	}

	return NewAPISourceWithService(service, logger), nil
}

func NewAPISourceWithService(service *tasks.Service, logger *slog.Logger) *APISource {
	return &APISource{
		service: service,
		logger:  logger.With("source", APISourceID),
	}
}

func (s *APISource) ID() string {
	return APISourceID
}

func (s *APISource) FetchTasks(ctx context.Context) ([]domain.TaskGroup, error) {
	backup, err := s.Download(ctx)
	if err != nil {
		return nil, err
	}
	return toGroups(backup, s.logger), nil
}

// Download returns every task list in API order.
func (s *APISource) Download(ctx context.Context) (Backup, error) {
	var lists []*tasks.TaskList
	err := s.service.Tasklists.List().MaxResults(pageSize).Pages(ctx, func(page *tasks.TaskLists) error {
		lists = append(lists, page.Items...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list task lists: %v", domain.ErrTransient, err)
	}

	backup := make(Backup, 0, len(lists))
	for _, list := range lists {
		category := Category{Name: list.Title, Tasks: []Task{}}

		err := s.service.Tasks.List(list.Id).
			ShowCompleted(true).
			ShowDeleted(true).
			ShowHidden(true).
			MaxResults(pageSize).
			Pages(ctx, func(page *tasks.Tasks) error {
				for _, t := range page.Items {
					category.Tasks = append(category.Tasks, fromAPI(t))
				}
				return nil
			})
		if err != nil {
			return nil, fmt.Errorf("%w: list tasks of %q: %v", domain.ErrTransient, list.Title, err)
		}

		s.logger.Debug("downloaded task list", "list", list.Title, "tasks", len(category.Tasks))
		backup = append(backup, category)
	}

	return backup, nil
}

func fromAPI(t *tasks.Task) Task {
	task := Task{
		Kind:        t.Kind,
		ID:          t.Id,
		Etag:        t.Etag,
		Title:       t.Title,
		Updated:     t.Updated,
		SelfLink:    t.SelfLink,
		Position:    t.Position,
		Status:      t.Status,
		Completed:   t.Completed,
		Deleted:     t.Deleted,
		Hidden:      t.Hidden,
		WebViewLink: t.WebViewLink,
	}
	if t.Parent != "" {
		task.Parent = &t.Parent
	}
	if t.Notes != "" {
		task.Notes = &t.Notes
	}
	if t.Due != "" {
		task.Due = &t.Due
	}
	return task
}
