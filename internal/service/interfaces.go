package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"post_drafter/internal/domain"
)

// Source yields task groups in the provider's order.
type Source interface {
	ID() string
	FetchTasks(ctx context.Context) ([]domain.TaskGroup, error)
}

// DocumentStore persists whole documents by key. Put must be all-or-nothing.
type DocumentStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

type JobRunner interface {
	EncodeRequests(requests []domain.GenerationRequest) ([]byte, error)
	CreateFile(ctx context.Context, data []byte) (string, error)
	CreateJob(ctx context.Context, spec domain.JobSpec) (*domain.BatchJob, error)
	GetJob(ctx context.Context, id string) (*domain.BatchJob, error)
	GetFileContent(ctx context.Context, fileRef string) ([]byte, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, post *domain.PostRecord) error
	Close() error
}
