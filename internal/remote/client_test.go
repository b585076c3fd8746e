package remote_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/dashboardr/internal/event"
	"github.com/gyaneshwarpardhi/dashboardr/internal/remote"
)

type recorded struct {
	method, path, contentType, requestID string
	body                                 []byte
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []recorded
	status   int
	getAll   string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recorded{
		method:      r.Method,
		path:        r.URL.Path,
		contentType: r.Header.Get("Content-Type"),
		requestID:   r.Header.Get("X-Request-ID"),
		body:        body,
	})
	status := f.status
	f.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if r.URL.Path == "/api/getAll" {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, f.getAll)
	}
}

func (f *fakeAPI) last(t *testing.T) recorded {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func TestFetchAll(t *testing.T) {
	api := &fakeAPI{getAll: `[{"id":1,"title":"Conf","date":"2025-01-01","city":"NYC","note":"n"},{"id":"srv-2","title":"Other"}]`}
	srv := httptest.NewServer(api)
	defer srv.Close()

	got, err := remote.New(srv.URL, nil).FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []event.Event{
		{ID: "1", Title: "Conf", Date: "2025-01-01", City: "NYC", Note: "n"},
		{ID: "srv-2", Title: "Other"},
	}, got)

	req := api.last(t)
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, "/api/getAll", req.path)
	assert.NotEmpty(t, req.requestID)
}

func TestFetchAll_Errors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv := httptest.NewServer(&fakeAPI{status: http.StatusServiceUnavailable})
		defer srv.Close()

		_, err := remote.New(srv.URL, nil).FetchAll(context.Background())
		var ne *remote.NetworkError
		require.True(t, errors.As(err, &ne), "got %v", err)
		assert.Equal(t, http.StatusServiceUnavailable, ne.StatusCode)
		assert.Equal(t, "Service Unavailable", ne.Status)
		assert.Contains(t, ne.Error(), "Service Unavailable")
	})

	t.Run("transport", func(t *testing.T) {
		srv := httptest.NewServer(&fakeAPI{})
		url := srv.URL
		srv.Close()

		_, err := remote.New(url, nil).FetchAll(context.Background())
		var ne *remote.NetworkError
		require.True(t, errors.As(err, &ne), "got %v", err)
		assert.Zero(t, ne.StatusCode)
		assert.NotNil(t, ne.Unwrap())
	})

	t.Run("bad body", func(t *testing.T) {
		srv := httptest.NewServer(&fakeAPI{getAll: `{"not":"a list"}`})
		defer srv.Close()

		_, err := remote.New(srv.URL, nil).FetchAll(context.Background())
		var ne *remote.NetworkError
		require.True(t, errors.As(err, &ne), "got %v", err)
	})
}

func TestAdd(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	ev := event.Event{ID: "1735689600123", Title: "Meetup", Date: "2025-02-02", City: "Berlin", Note: "x"}
	require.NoError(t, remote.New(srv.URL+"/", nil).Add(context.Background(), ev))

	req := api.last(t)
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/api/add", req.path)
	assert.Equal(t, "application/json", req.contentType)
	assert.JSONEq(t, `{"id":1735689600123,"title":"Meetup","date":"2025-02-02","city":"Berlin","note":"x"}`, string(req.body))
}

func TestDelete(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	require.NoError(t, remote.New(srv.URL, nil).Delete(context.Background(), "42"))

	req := api.last(t)
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/api/delete", req.path)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(req.body, &body))
	assert.Equal(t, map[string]interface{}{"id": "42"}, body)
}

func TestPost_StatusIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(&fakeAPI{status: http.StatusInternalServerError})
	defer srv.Close()

	err := remote.New(srv.URL, nil).Delete(context.Background(), "42")
	var ne *remote.NetworkError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, "/api/delete", "/"+ne.Endpoint)
}

func TestSetBaseURL(t *testing.T) {
	c := remote.New("http://a.example", nil)
	assert.Equal(t, "http://a.example/", c.BaseURL())
	c.SetBaseURL("http://b.example/app/")
	assert.Equal(t, "http://b.example/app/", c.BaseURL())
}
