package drawsim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/okian/blueprints/internal/domain/model"
)

// restClient talks to the blueprint REST endpoints.
type restClient struct {
	client *http.Client
	base   string
}

func newRESTClient(cfg *Config) *restClient {
	return &restClient{
		client: &http.Client{Timeout: cfg.Timeout},
		base:   cfg.BaseURL + cfg.APIPrefix + "/blueprints",
	}
}

func (c *restClient) itemURL(author, name string) string {
	return c.base + "/" + url.PathEscape(author) + "/" + url.PathEscape(name)
}

func (c *restClient) do(ctx context.Context, method, target string, body any, want int, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != want {
		return fmt.Errorf("%s %s: status %d: %s", method, target, resp.StatusCode, bytes.TrimSpace(data))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *restClient) create(ctx context.Context, author, name string) (model.Blueprint, error) {
	var bp model.Blueprint
	body := map[string]any{"author": author, "name": name, "points": []model.Point{}}
	err := c.do(ctx, http.MethodPost, c.base, body, http.StatusCreated, &bp)
	return bp, err
}

func (c *restClient) get(ctx context.Context, author, name string) (model.Blueprint, error) {
	var bp model.Blueprint
	err := c.do(ctx, http.MethodGet, c.itemURL(author, name), nil, http.StatusOK, &bp)
	return bp, err
}

func (c *restClient) remove(ctx context.Context, author, name string) error {
	return c.do(ctx, http.MethodDelete, c.itemURL(author, name), nil, http.StatusNoContent, nil)
}

// checkHealth waits briefly for /healthz to answer.
func checkHealth(ctx context.Context, cfg *Config) error {
	client := &http.Client{Timeout: cfg.Timeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"/healthz", nil)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
			err = fmt.Errorf("status %d", resp.StatusCode)
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	return fmt.Errorf("service not healthy: %w", lastErr)
}
