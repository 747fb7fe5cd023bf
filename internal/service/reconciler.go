package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"post_drafter/internal/domain"
)

// TaskMarker is the part of the task store the reconciler mutates.
type TaskMarker interface {
	FindByID(id string) (*domain.TaskRecord, error)
	MarkProcessed(ctx context.Context, ids []string) error
}

// ResultStore is the part of the results store the reconciler writes.
type ResultStore interface {
	Upsert(post domain.PostRecord)
	Save(ctx context.Context) error
}

type resultLine struct {
	CustomID string          `json:"custom_id"`
	Error    json.RawMessage `json:"error"`
	Response *struct {
		StatusCode int             `json:"status_code"`
		Body       json.RawMessage `json:"body"`
	} `json:"response"`
}

type completionBody struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

const maxResultLine = 16 << 20

type Reconciler struct {
	tasks     TaskMarker
	results   ResultStore
	txManager TransactionManager
	logger    *slog.Logger
}

func NewReconciler(tasks TaskMarker, results ResultStore, txManager TransactionManager, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		tasks:     tasks,
		results:   results,
		txManager: txManager,
		logger:    logger.With("component", "reconciler"),
	}
}

// Reconcile applies a completed batch payload. Error lines are skipped and
// counted; a malformed line or an unknown task id aborts before any write.
func (r *Reconciler) Reconcile(ctx context.Context, payload []byte, meta domain.JobMetadata) (*domain.ReconcileStats, []domain.PostRecord, error) {
	stats := &domain.ReconcileStats{}
	var posts []domain.PostRecord
	var ids []string

	scanner := bufio.NewScanner(bytes.NewReader(payload))
	scanner.Buffer(make([]byte, 0, 64*1024), maxResultLine)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		stats.Lines++

		var line resultLine
		if err := json.Unmarshal(raw, &line); err != nil {
			return nil, nil, fmt.Errorf("%w: line %d: %v", domain.ErrCorruptPayload, lineNo, err)
		}
		if line.CustomID == "" {
			return nil, nil, fmt.Errorf("%w: line %d: missing custom_id", domain.ErrCorruptPayload, lineNo)
		}

		task, err := r.tasks.FindByID(line.CustomID)
		if err != nil {
			return nil, nil, fmt.Errorf("reconcile line %d: %w", lineNo, err)
		}

		text, reason := generatedText(&line)
		if reason != "" {
			stats.Failed++
			r.logger.Warn("skipping failed result", "task_id", line.CustomID, "reason", reason)
			continue
		}

		posts = append(posts, domain.PostRecord{
			ID:       task.ID,
			Platform: meta.Platform,
			Model:    meta.Model,
			Prompt:   meta.Template,
			Overview: task.Overview,
			Post:     text,
		})
		ids = append(ids, task.ID)
		stats.Succeeded++
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrCorruptPayload, err)
	}

	if len(ids) == 0 {
		r.logger.Warn("no successful results in payload", "lines", stats.Lines, "failed", stats.Failed)
		return stats, nil, nil
	}

	err := r.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, post := range posts {
			r.results.Upsert(post)
		}
		if err := r.results.Save(txCtx); err != nil {
			return fmt.Errorf("save results: %w", err)
		}
		if err := r.tasks.MarkProcessed(txCtx, ids); err != nil {
			return fmt.Errorf("mark processed: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	r.logger.Info("reconciled batch results",
		"lines", stats.Lines,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
	)

	return stats, posts, nil
}

// generatedText returns the completion text, or a non-empty reason when
// the line is a per-request failure.
func generatedText(line *resultLine) (string, string) {
	if len(line.Error) > 0 && !bytes.Equal(line.Error, []byte("null")) {
		return "", string(line.Error)
	}
	if line.Response == nil {
		return "", "missing response"
	}
	if line.Response.StatusCode != 0 && (line.Response.StatusCode < 200 || line.Response.StatusCode > 299) {
		return "", fmt.Sprintf("status %d", line.Response.StatusCode)
	}

	var body completionBody
	if err := json.Unmarshal(line.Response.Body, &body); err != nil {
		return "", "undecodable response body"
	}
	if len(body.Choices) == 0 || body.Choices[0].Message.Content == "" {
		return "", "empty completion"
	}
	return body.Choices[0].Message.Content, ""
}
