package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Response returned by fake backend endpoint
type Response struct {
	Status int
	Body   any
}

// Request as seen by fake backend
type Request struct {
	Method        string
	Path          string
	ContentType   string
	Authorization string
	RequestID     string
	Body          map[string]string
}

// Backend is an in-process stand in for the backend authority.
// Unconfigured endpoints answer 404 with '{"error": "not found"}'
type Backend struct {
	URL string

	mu        sync.Mutex
	responses map[string]Response
	requests  []Request
}

func StartBackend(t *testing.T) *Backend {
	t.Helper()

	b := &Backend{responses: make(map[string]Response)}
	srv := httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(srv.Close)

	b.URL = srv.URL
	return b
}

// On sets response for pattern like "POST /auth/forgot-password"
func (b *Backend) On(pattern string, status int, body any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responses[pattern] = Response{Status: status, Body: body}
}

// Requests returns received requests matching pattern, all if pattern is empty
func (b *Backend) Requests(pattern string) []Request {
	b.mu.Lock()
	defer b.mu.Unlock()

	var got []Request
	for _, r := range b.requests {
		if pattern == "" || r.Method+" "+r.Path == pattern {
			got = append(got, r)
		}
	}
	return got
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	req := Request{
		Method:        r.Method,
		Path:          r.URL.Path,
		ContentType:   r.Header.Get("Content-Type"),
		Authorization: r.Header.Get("Authorization"),
		RequestID:     r.Header.Get("X-Request-ID"),
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req.Body)
	}

	b.mu.Lock()
	b.requests = append(b.requests, req)
	resp, ok := b.responses[r.Method+" "+r.URL.Path]
	b.mu.Unlock()

	if !ok {
		resp = Response{Status: http.StatusNotFound, Body: map[string]string{"error": "not found"}}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	if resp.Body != nil {
		_ = json.NewEncoder(w).Encode(resp.Body)
	}
}
