package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func getBuilder(url string) RequestBuilder {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

func TestDoRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(Config{MaxRetries: 2, BaseBackoff: time.Millisecond}, zaptest.NewLogger(t))
	defer c.Close()

	resp, err := c.Do(context.Background(), getBuilder(srv.URL))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(Config{MaxRetries: 3, BaseBackoff: time.Millisecond}, zaptest.NewLogger(t))

	resp, err := c.Do(context.Background(), getBuilder(srv.URL))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	err = CheckStatus(resp)
	if !IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("expected 401 status error, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected single attempt, got %d", got)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(Config{MaxRetries: 1, BaseBackoff: time.Millisecond}, zaptest.NewLogger(t))

	_, err := c.Do(context.Background(), getBuilder(srv.URL))
	if err == nil {
		t.Fatalf("expected error after retries")
	}
}

func TestDoHonorsTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := New(Config{Timeout: 20 * time.Millisecond, MaxRetries: -1}, zaptest.NewLogger(t))

	_, err := c.Do(context.Background(), getBuilder(srv.URL))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	cases := map[string]time.Duration{
		"":       0,
		"3":      3 * time.Second,
		"0":      0,
		"-5":     0,
		"bogus":  0,
		"100000": maxRetryAfter,
	}
	for header, want := range cases {
		resp := &http.Response{Header: http.Header{}}
		if header != "" {
			resp.Header.Set("Retry-After", header)
		}
		if got := parseRetryAfter(resp); got != want {
			t.Errorf("Retry-After %q: got %s, want %s", header, got, want)
		}
	}
}

func TestComputeBackoffBounds(t *testing.T) {
	t.Parallel()

	for attempt := 0; attempt < 20; attempt++ {
		d := computeBackoff(100*time.Millisecond, attempt)
		if d < 0 || d > maxBackoff {
			t.Fatalf("attempt %d: backoff %s out of range", attempt, d)
		}
	}
}

func TestShouldRetryStatus(t *testing.T) {
	t.Parallel()

	retry := []int{408, 429, 500, 502, 503, 504}
	for _, s := range retry {
		if !shouldRetryStatus(s) {
			t.Errorf("expected retry for %d", s)
		}
	}
	for _, s := range []int{200, 201, 301, 400, 401, 404} {
		if shouldRetryStatus(s) {
			t.Errorf("unexpected retry for %d", s)
		}
	}
}
