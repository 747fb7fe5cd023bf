package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// DocumentStore keeps each document as one JSONB row. A row upsert is
// atomic, and inside WithTransaction several documents commit together.
type DocumentStore struct {
	db *sqlx.DB
}

func NewDocumentStore(db *sqlx.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var body []byte
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &body,
		"SELECT body FROM documents WHERE key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}

func (s *DocumentStore) Put(ctx context.Context, key string, data []byte) error {
	query := `
		INSERT INTO documents (key, body, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
			body = EXCLUDED.body,
			updated_at = EXCLUDED.updated_at`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, key, string(data))
	return err
}

func (s *DocumentStore) Delete(ctx context.Context, key string) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, "DELETE FROM documents WHERE key = $1", key)
	return err
}
