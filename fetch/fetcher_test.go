package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetchSuccess(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/gzip")
		_, _ = w.Write([]byte("tarball-bytes"))
	}))
	defer server.Close()

	f := NewFetcher()
	art, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer art.Body.Close()

	body, err := io.ReadAll(art.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if string(body) != "tarball-bytes" {
		t.Errorf("unexpected body %q", body)
	}
	if art.ContentType != "application/gzip" {
		t.Errorf("unexpected content type %q", art.ContentType)
	}
	if gotUA != "crateview/1.0" {
		t.Errorf("User-Agent = %q, want crateview/1.0", gotUA)
	}
}

func TestFetchNotFoundIsTerminal(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(404)
	}))
	defer server.Close()

	f := NewFetcher(WithMaxRetries(3))
	_, err := f.Fetch(context.Background(), server.URL)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("404 was retried %d times", calls.Load())
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(503)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := NewFetcher(WithMaxRetries(3), WithBaseDelay(time.Millisecond))
	art, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch failed after retries: %v", err)
	}
	defer art.Body.Close()
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestFetchExhaustedRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer server.Close()

	f := NewFetcher(WithMaxRetries(1), WithBaseDelay(time.Millisecond))
	_, err := f.Fetch(context.Background(), server.URL)
	if !errors.Is(err, ErrUpstreamDown) {
		t.Errorf("expected ErrUpstreamDown, got %v", err)
	}
}

func TestFetchBodyCap(t *testing.T) {
	payload := make([]byte, 4096)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A write this large is streamed chunked unless the length is declared.
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	f := NewFetcher(WithMaxBodyBytes(1024))
	_, err := f.Fetch(context.Background(), server.URL)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge from Content-Length check, got %v", err)
	}
}

func TestFetchBodyCapDuringStream(t *testing.T) {
	payload := make([]byte, 4096)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Flush to stream chunked, without a Content-Length the pre-check
		// could reject.
		_, _ = w.Write(payload[:1])
		w.(http.Flusher).Flush()
		_, _ = w.Write(payload[1:])
	}))
	defer server.Close()

	f := NewFetcher(WithMaxBodyBytes(1024))
	art, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer art.Body.Close()

	_, err = io.ReadAll(art.Body)
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge mid-stream, got %v", err)
	}
}

func TestFetchContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	f := NewFetcher()
	_, err := f.Fetch(ctx, server.URL)
	if err == nil {
		t.Fatal("expected error from cancelled fetch")
	}
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer server.Close()

	f := NewFetcher(WithMaxRetries(0), WithBaseDelay(time.Millisecond))
	cbf := NewCircuitBreakerFetcher(f)

	for i := 0; i < 6; i++ {
		_, _ = cbf.Fetch(context.Background(), server.URL)
	}

	_, err := cbf.Fetch(context.Background(), server.URL)
	if !errors.Is(err, ErrUpstreamDown) {
		t.Fatalf("expected open breaker to fail fast, got %v", err)
	}

	states := cbf.BreakerState()
	if len(states) != 1 {
		t.Fatalf("expected one breaker, got %v", states)
	}
	for _, state := range states {
		if state != "open" {
			t.Errorf("breaker state = %q, want open", state)
		}
	}
}
