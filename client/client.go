// Package client talks to the API served by `codeintel watch`.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"codeintel/internal/api"
	"codeintel/internal/editor"
	"codeintel/internal/errors"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr errors.Error
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Type != "" {
			apiErr.Code = resp.StatusCode
			return &apiErr
		}
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// Editor operations
func (c *Client) ListEditors(ctx context.Context) ([]editor.Record, error) {
	var editors []editor.Record
	if err := c.get(ctx, "/api/editors", &editors); err != nil {
		return nil, err
	}
	return editors, nil
}

func (c *Client) GetEditor(ctx context.Context, id string) (*editor.Record, error) {
	var rec editor.Record
	if err := c.get(ctx, "/api/editors/"+url.PathEscape(id), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// View operations
func (c *Client) ListViews(ctx context.Context) ([]api.ViewSummary, error) {
	var views []api.ViewSummary
	if err := c.get(ctx, "/api/views", &views); err != nil {
		return nil, err
	}
	return views, nil
}

func (c *Client) Health(ctx context.Context) error {
	var out map[string]string
	return c.get(ctx, "/health", &out)
}
