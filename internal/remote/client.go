// Package remote talks to the events API: one read (getAll) and two
// fire-and-forget writes (add, delete).
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/dashboardr/internal/event"
	"github.com/gyaneshwarpardhi/dashboardr/internal/metrics"
)

// API paths, relative to the base URL.
const (
	PathGetAll = "api/getAll"
	PathAdd    = "api/add"
	PathDelete = "api/delete"
)

// NetworkError is returned when a request could not be completed or the server
// answered with a non-success status.
type NetworkError struct {
	Endpoint   string
	StatusCode int    // 0 when the transport failed
	Status     string // status text, e.g. "Service Unavailable"
	Err        error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Endpoint, e.Status)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Client is safe for concurrent use. The base URL may be swapped at runtime.
type Client struct {
	base atomic.Pointer[string]
	http *http.Client
}

// NewHTTPClient builds the transport used for API calls. A zero timeout means
// requests are bounded only by their context.
func NewHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// New creates a Client for baseURL. A nil httpClient gets NewHTTPClient(0).
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}
	c := &Client{http: httpClient}
	c.SetBaseURL(baseURL)
	return c
}

// SetBaseURL points subsequent requests at a different server.
func (c *Client) SetBaseURL(baseURL string) {
	u := strings.TrimRight(baseURL, "/") + "/"
	c.base.Store(&u)
}

// BaseURL returns the current base URL with a trailing slash.
func (c *Client) BaseURL() string {
	return *c.base.Load()
}

// FetchAll reads the full event list.
func (c *Client) FetchAll(ctx context.Context) ([]event.Event, error) {
	resp, err := c.do(ctx, http.MethodGet, PathGetAll, nil)
	if err != nil {
		metrics.RemoteRequests.WithLabelValues(PathGetAll, metrics.Error).Inc()
		return nil, err
	}
	defer resp.Body.Close()

	var events []event.Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		metrics.RemoteRequests.WithLabelValues(PathGetAll, metrics.Error).Inc()
		return nil, &NetworkError{Endpoint: PathGetAll, StatusCode: resp.StatusCode, Status: statusText(resp), Err: fmt.Errorf("decode body: %w", err)}
	}
	metrics.RemoteRequests.WithLabelValues(PathGetAll, metrics.OK).Inc()
	return events, nil
}

// Add posts the JSON-encoded event.
func (c *Client) Add(ctx context.Context, ev event.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}
	return c.post(ctx, PathAdd, body)
}

type deleteRequest struct {
	ID string `json:"id"`
}

// Delete posts {"id": "<id>"}.
func (c *Client) Delete(ctx context.Context, id event.ID) error {
	body, err := json.Marshal(deleteRequest{ID: string(id)})
	if err != nil {
		return err
	}
	return c.post(ctx, PathDelete, body)
}

func (c *Client) post(ctx context.Context, path string, body []byte) error {
	resp, err := c.do(ctx, http.MethodPost, path, body)
	metrics.RemoteRequests.WithLabelValues(path, metrics.Result(err)).Inc()
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// do sends the request and turns transport failures and non-2xx statuses into
// a *NetworkError. On success the caller owns resp.Body.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL()+path, rd)
	if err != nil {
		return nil, &NetworkError{Endpoint: path, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Endpoint: path, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, &NetworkError{Endpoint: path, StatusCode: resp.StatusCode, Status: statusText(resp)}
	}
	return resp, nil
}

// statusText returns the reason phrase without the numeric code.
func statusText(resp *http.Response) string {
	if s := strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprint(resp.StatusCode))); s != "" {
		return s
	}
	return http.StatusText(resp.StatusCode)
}
