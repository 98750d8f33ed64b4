// Package forestapi talks to the Forest Admin server.
package forestapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// StatusError is returned for any non-2xx answer from the Forest server.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("forest api %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

type Client struct {
	baseURL   string
	envSecret string
	http      *http.Client
}

// NewClient builds a client for the given Forest server URL. A nil
// httpClient falls back to one with a 10s timeout.
func NewClient(baseURL, envSecret string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		envSecret: envSecret,
		http:      httpClient,
	}
}

// Post sends body as JSON and returns the response status code.
// Only transport failures are reported as errors.
func (c *Client) Post(ctx context.Context, path string, body any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("encode body: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, nil, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// Get decodes the JSON answer of GET path?query into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: http.MethodGet, Path: path, Status: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Permissions is the rendering-scoped permission payload of /liana/v3/permissions.
type Permissions struct {
	Collections map[string]json.RawMessage `json:"collections"`
	Renderings  map[string]json.RawMessage `json:"renderings"`
	Stats       map[string][]any           `json:"stats"`
}

// FetchPermissions loads the permissions of one rendering.
func (c *Client) FetchPermissions(ctx context.Context, renderingID int64) (*Permissions, error) {
	var perms Permissions
	query := url.Values{"renderingId": []string{strconv.FormatInt(renderingID, 10)}}
	if err := c.Get(ctx, "/liana/v3/permissions", query, &perms); err != nil {
		return nil, err
	}
	return &perms, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("forest-secret-key", c.envSecret)
	return req, nil
}
