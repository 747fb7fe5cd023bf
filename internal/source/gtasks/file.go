package gtasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"post_drafter/internal/domain"
	"post_drafter/internal/storage/file"
)

const FileSourceID = "gtasks-file"

// FileSource reads a Google Tasks backup file.
type FileSource struct {
	path   string
	logger *slog.Logger
}

func NewFileSource(path string, logger *slog.Logger) *FileSource {
	return &FileSource{
		path:   path,
		logger: logger.With("source", FileSourceID),
	}
}

func (s *FileSource) ID() string {
	return FileSourceID
}

func (s *FileSource) FetchTasks(_ context.Context) ([]domain.TaskGroup, error) {
	backup, err := ReadBackup(s.path)
	if err != nil {
		return nil, err
	}

	groups := toGroups(backup, s.logger)

	s.logger.Debug("read backup", "path", s.path, "categories", len(groups))
	return groups, nil
}

func ReadBackup(path string) (Backup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read backup file: %w", err)
	}

	var backup Backup
	if err := json.Unmarshal(data, &backup); err != nil {
		return nil, fmt.Errorf("decode backup file %s: %w", path, err)
	}
	return backup, nil
}

// WriteBackup replaces the backup file atomically.
func WriteBackup(path string, backup Backup) error {
	data, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	if err := file.WriteFile(path, data); err != nil {
		return fmt.Errorf("write backup file: %w", err)
	}
	return nil
}
