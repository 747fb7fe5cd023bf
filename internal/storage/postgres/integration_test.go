//go:build integration

package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.Require().NoError(Migrate(s.ctx, s.db, logger))
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM documents")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) TestMigrate_Idempotent() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.NoError(Migrate(s.ctx, s.db, logger))
}

func (s *PostgresIntegrationSuite) TestDocumentStore_GetMissing() {
	store := NewDocumentStore(s.db)

	data, found, err := store.Get(s.ctx, "tasks")
	s.NoError(err)
	s.False(found)
	s.Nil(data)
}

func (s *PostgresIntegrationSuite) TestDocumentStore_PutAndGet() {
	store := NewDocumentStore(s.db)

	s.NoError(store.Put(s.ctx, "job", []byte(`{"id":"batch_1","status":"submitted"}`)))

	data, found, err := store.Get(s.ctx, "job")
	s.NoError(err)
	s.True(found)
	s.JSONEq(`{"id":"batch_1","status":"submitted"}`, string(data))
}

func (s *PostgresIntegrationSuite) TestDocumentStore_PutReplaces() {
	store := NewDocumentStore(s.db)

	s.NoError(store.Put(s.ctx, "posts", []byte(`{"a":{"id":"a"}}`)))
	s.NoError(store.Put(s.ctx, "posts", []byte(`{"b":{"id":"b"}}`)))

	var count int
	err := s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM documents WHERE key = $1", "posts")
	s.NoError(err)
	s.Equal(1, count)

	data, _, err := store.Get(s.ctx, "posts")
	s.NoError(err)
	s.JSONEq(`{"b":{"id":"b"}}`, string(data))
}

func (s *PostgresIntegrationSuite) TestDocumentStore_Delete() {
	store := NewDocumentStore(s.db)

	s.NoError(store.Put(s.ctx, "job", []byte(`{}`)))
	s.NoError(store.Delete(s.ctx, "job"))
	s.NoError(store.Delete(s.ctx, "job"))

	_, found, err := store.Get(s.ctx, "job")
	s.NoError(err)
	s.False(found)
}

func (s *PostgresIntegrationSuite) TestTransaction_Commit() {
	tm := NewTransactionManager(s.db)
	store := NewDocumentStore(s.db)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		if err := store.Put(ctx, "posts", []byte(`{}`)); err != nil {
			return err
		}
		return store.Put(ctx, "tasks", []byte(`[]`))
	})
	s.NoError(err)

	var count int
	err = s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM documents")
	s.NoError(err)
	s.Equal(2, count)
}

func (s *PostgresIntegrationSuite) TestTransaction_Rollback() {
	tm := NewTransactionManager(s.db)
	store := NewDocumentStore(s.db)

	s.NoError(store.Put(s.ctx, "tasks", []byte(`[{"id":"A"}]`)))

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		if err := store.Put(ctx, "posts", []byte(`{"A":{"id":"A"}}`)); err != nil {
			return err
		}
		if err := store.Put(ctx, "tasks", []byte(`[]`)); err != nil {
			return err
		}
		return errors.New("boom")
	})
	s.Error(err)

	_, found, err := store.Get(s.ctx, "posts")
	s.NoError(err)
	s.False(found)

	data, _, err := store.Get(s.ctx, "tasks")
	s.NoError(err)
	s.JSONEq(`[{"id":"A"}]`, string(data))
}
