package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"post_drafter/internal/domain"
)

const batchPurpose = "batch"

type Config struct {
	BaseURL  string
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

// Client runs generation batches against the OpenAI Files and Batches API.
// It does not retry; a failed call surfaces as domain.ErrTransient and the
// next invocation starts over from persisted state.
type Client struct {
	client   *resty.Client
	endpoint string
	logger   *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "PostDrafter/1.0")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &Client{
		client:   client,
		endpoint: cfg.Endpoint,
		logger:   logger.With("runner", "openai"),
	}
}

// EncodeRequests renders one JSON line per request.
func (c *Client) EncodeRequests(requests []domain.GenerationRequest) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for _, r := range requests {
		messages := make([]chatMessage, 0, 2)
		if r.System != "" {
			messages = append(messages, chatMessage{Role: "system", Content: r.System})
		}
		messages = append(messages, chatMessage{Role: "user", Content: r.Prompt})

		line := requestLine{
			CustomID: r.CustomID,
			Method:   http.MethodPost,
			URL:      c.endpoint,
			Body:     chatBody{Model: r.Model, Messages: messages},
		}
		if err := enc.Encode(line); err != nil {
			return nil, fmt.Errorf("encode request %s: %w", r.CustomID, err)
		}
	}

	return buf.Bytes(), nil
}

func (c *Client) CreateFile(ctx context.Context, data []byte) (string, error) {
	var file fileObject
	_, err := c.request(ctx, http.MethodPost, "/v1/files", func(req *resty.Request) {
		req.SetMultipartField("file", "batch_input.jsonl", "application/jsonl", bytes.NewReader(data)).
			SetMultipartFormData(map[string]string{"purpose": batchPurpose})
	}, &file)
	if err != nil {
		return "", err
	}
	if file.ID == "" {
		return "", fmt.Errorf("%w: upload returned no file id", domain.ErrTransient)
	}

	c.logger.Debug("uploaded batch input", "file_id", file.ID, "bytes", len(data))
	return file.ID, nil
}

func (c *Client) CreateJob(ctx context.Context, spec domain.JobSpec) (*domain.BatchJob, error) {
	var batch batchObject
	_, err := c.request(ctx, http.MethodPost, "/v1/batches", func(req *resty.Request) {
		req.SetBody(createBatchRequest{
			InputFileID:      spec.InputFileRef,
			Endpoint:         spec.Endpoint,
			CompletionWindow: spec.CompletionWindow,
			Metadata:         spec.Metadata,
		})
	}, &batch)
	if err != nil {
		return nil, err
	}
	return toJob(&batch), nil
}

func (c *Client) GetJob(ctx context.Context, id string) (*domain.BatchJob, error) {
	var batch batchObject
	_, err := c.request(ctx, http.MethodGet, "/v1/batches/{id}", func(req *resty.Request) {
		req.SetPathParam("id", id)
	}, &batch)
	if err != nil {
		return nil, err
	}
	return toJob(&batch), nil
}

func (c *Client) GetFileContent(ctx context.Context, ref string) ([]byte, error) {
	resp, err := c.request(ctx, http.MethodGet, "/v1/files/{id}/content", func(req *resty.Request) {
		req.SetPathParam("id", ref).SetHeader("Accept", "application/octet-stream")
	}, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

func (c *Client) request(ctx context.Context, method, path string, callback func(req *resty.Request), result any) (*resty.Response, error) {
	req := c.client.R().SetContext(ctx).SetError(&apiError{})
	if callback != nil {
		callback(req)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", domain.ErrTransient, method, path, err)
	}
	if resp.IsError() {
		msg := resp.Status()
		if e, ok := resp.Error().(*apiError); ok && e.Error.Message != "" {
			msg = e.Error.Message
		}
		return nil, fmt.Errorf("%w: %s %s: status %d: %s", domain.ErrTransient, method, path, resp.StatusCode(), msg)
	}

	return resp, nil
}

func toJob(b *batchObject) *domain.BatchJob {
	job := &domain.BatchJob{
		ID:            b.ID,
		Status:        domain.JobStatus(b.Status),
		InputFileRef:  b.InputFileID,
		OutputFileRef: b.OutputFileID,
		ErrorFileRef:  b.ErrorFileID,
		RequestCounts: domain.RequestCounts{
			Total:     b.RequestCounts.Total,
			Completed: b.RequestCounts.Completed,
			Failed:    b.RequestCounts.Failed,
		},
	}
	if job.Status == "" {
		job.Status = domain.JobSubmitted
	}
	if b.CreatedAt > 0 {
		job.CreatedAt = time.Unix(b.CreatedAt, 0).UTC()
	}
	return job
}
