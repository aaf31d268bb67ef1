package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shaiso/Plantit/internal/domain"
	"github.com/shaiso/Plantit/internal/telemetry"
)

// ErrMissingJobID — REST-репортеру не передан идентификатор задачи.
var ErrMissingJobID = errors.New("job id is required")

// HTTPError — супервизор ответил статусом ≥ 400.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status update rejected: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("status update rejected: HTTP %d: %s", e.StatusCode, e.Body)
}

// RESTConfig — параметры REST-репортера.
type RESTConfig struct {
	// BaseURL — корень API, например https://plantit.example.org/apis/v1/.
	BaseURL string
	JobID   string

	// Token уходит в заголовке "Authorization: <AuthScheme> <Token>".
	Token      string
	AuthScheme string

	HTTPClient *http.Client
}

// REST отправляет обновления PATCH-запросами на <base>/jobs/<job_id>/.
type REST struct {
	mu      sync.Mutex
	url     string
	auth    string
	client  *http.Client
	nowFunc func() time.Time
}

// NewREST создаёт REST-репортер.
func NewREST(cfg RESTConfig) (*REST, error) {
	if cfg.JobID == "" {
		return nil, ErrMissingJobID
	}
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid api url %q", cfg.BaseURL)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	r := &REST{
		url:     base.JoinPath("jobs", cfg.JobID).String() + "/",
		client:  client,
		nowFunc: time.Now,
	}
	if cfg.Token != "" {
		scheme := cfg.AuthScheme
		if scheme == "" {
			scheme = "Token"
		}
		r.auth = scheme + " " + cfg.Token
	}
	return r, nil
}

// URL возвращает адрес ресурса задачи.
func (r *REST) URL() string {
	return r.url
}

func (r *REST) UpdateStatus(ctx context.Context, state domain.StatusState, description string) error {
	payload, err := StatusPayload(state, description, r.nowFunc())
	if err != nil {
		return err
	}
	return r.UpdateJob(ctx, payload)
}

// UpdateJob отправляет props как тело PATCH.
func (r *REST) UpdateJob(ctx context.Context, props map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.patch(ctx, props)
	telemetry.ObserveStatusUpdate("rest", err)
	return err
}

func (r *REST) UpdateTask(ctx context.Context, taskID string, props map[string]any) error {
	return r.UpdateJob(ctx, TaskPayload(taskID, props))
}

func (r *REST) TaskComplete(ctx context.Context, taskID string) error {
	return r.UpdateTask(ctx, taskID, completeProps())
}

func (r *REST) patch(ctx context.Context, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, r.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.auth != "" {
		req.Header.Set("Authorization", r.auth)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("patch %s: %w", r.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
