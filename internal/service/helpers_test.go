package service

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"post_drafter/internal/domain"
	"post_drafter/internal/storage/file"
)

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newDocs(t *testing.T) *file.DocumentStore {
	t.Helper()
	docs, err := file.NewDocumentStore(t.TempDir())
	require.NoError(t, err)
	return docs
}

func at(hours int) time.Time {
	return baseTime.Add(time.Duration(hours) * time.Hour)
}

func newTask(id string, status domain.TaskStatus, updated time.Time) domain.TaskRecord {
	return domain.TaskRecord{
		ID:      id,
		Title:   "task " + id,
		Updated: updated,
		Status:  status,
	}
}
