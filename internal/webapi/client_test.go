//nolint:bodyclose // mock responses use io.NopCloser bodies
package webapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"testing/synctest"
	"time"
)

// mockTransport is a canned http.RoundTripper.
type mockTransport struct {
	responses []*http.Response
	errors    []error
	requests  []*http.Request
}

func (m *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	idx := len(m.requests)
	m.requests = append(m.requests, req)

	if idx < len(m.errors) && m.errors[idx] != nil {
		return nil, m.errors[idx]
	}
	if idx < len(m.responses) {
		return m.responses[idx], nil
	}
	return nil, errors.New("no more responses configured")
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestClient(interval time.Duration, mock *mockTransport) *Client {
	return New(interval, WithHTTPClient(&http.Client{Transport: mock}), WithUserAgent("test-agent/1.0"))
}

func TestGetJSON_Decodes(t *testing.T) {
	mock := &mockTransport{responses: []*http.Response{response(http.StatusOK, `{"title":"So What"}`)}}
	c := newTestClient(0, mock)

	var out struct {
		Title string `json:"title"`
	}
	if err := c.GetJSON(context.Background(), "http://example.com/x", &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Title != "So What" {
		t.Errorf("Title = %q, want %q", out.Title, "So What")
	}
	if ua := mock.requests[0].Header.Get("User-Agent"); ua != "test-agent/1.0" {
		t.Errorf("User-Agent = %q", ua)
	}
}

func TestGetJSON_NotFound(t *testing.T) {
	mock := &mockTransport{responses: []*http.Response{response(http.StatusNotFound, "missing")}}
	c := newTestClient(0, mock)

	err := c.GetJSON(context.Background(), "http://example.com/x", &struct{}{})
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(mock.requests) != 1 {
		t.Errorf("4xx must not be retried, got %d calls", len(mock.requests))
	}
}

func TestGetJSON_RetriesOn500(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		mock := &mockTransport{responses: []*http.Response{
			response(http.StatusInternalServerError, ""),
			response(http.StatusBadGateway, ""),
			response(http.StatusOK, `{}`),
		}}
		c := newTestClient(0, mock)

		start := time.Now()
		if err := c.GetJSON(context.Background(), "http://example.com/x", &struct{}{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(mock.requests) != 3 {
			t.Errorf("calls = %d, want 3", len(mock.requests))
		}
		if elapsed := time.Since(start); elapsed < 6*time.Second {
			t.Errorf("elapsed = %v, expected at least 6s of backoff", elapsed)
		}
	})
}

func TestGetJSON_ExhaustsRetries(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		mock := &mockTransport{errors: []error{
			errors.New("boom"), errors.New("boom"), errors.New("boom"), errors.New("boom"),
		}}
		c := newTestClient(0, mock)

		if err := c.GetJSON(context.Background(), "http://example.com/x", &struct{}{}); err == nil {
			t.Fatal("expected error after exhausting retries")
		}
		if len(mock.requests) != 4 {
			t.Errorf("calls = %d, want 4", len(mock.requests))
		}
	})
}

func TestWaitForRateLimit(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c := New(time.Second)
		ctx := context.Background()

		start := time.Now()
		for range 3 {
			if err := c.waitForRateLimit(ctx); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if elapsed := time.Since(start); elapsed < 2*time.Second {
			t.Errorf("3 requests took %v, expected at least 2s", elapsed)
		}
	})
}

func TestWaitForRateLimit_Canceled(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		c := New(time.Hour)
		if err := c.waitForRateLimit(context.Background()); err != nil {
			t.Fatalf("first wait: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := c.waitForRateLimit(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})
}
