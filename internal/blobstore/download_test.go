package blobstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"clipforge/internal/faults"
)

func disableBackoff(t *testing.T) {
	t.Helper()
	original := sleepFunc
	sleepFunc = func(ctx context.Context, _ time.Duration) error {
		return ctx.Err()
	}
	t.Cleanup(func() {
		sleepFunc = original
	})
}

func TestDownloadWritesScratchFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("voice track bytes"))
	}))
	defer server.Close()

	store := newTestStore(t)
	path, err := store.Download(context.Background(), server.URL+"/clips/voice.mp3")
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "voice track bytes" {
		t.Fatalf("downloaded content = %q", data)
	}
}

func TestDownloadRejectsNonHTTPSource(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Download(context.Background(), "file:///etc/passwd")
	if faults.KindOf(err) != faults.KindInvalidSource {
		t.Fatalf("kind = %v, want InvalidSource", faults.KindOf(err))
	}
	if faults.IsRecoverable(err) {
		t.Fatal("invalid source must not be retried")
	}
}

func TestDownloadRetriesTransientFailures(t *testing.T) {
	disableBackoff(t)

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	store := newTestStore(t)
	if _, err := store.Download(context.Background(), server.URL+"/v.mp4"); err != nil {
		t.Fatalf("download should succeed on third attempt: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("server saw %d calls, want 3", calls.Load())
	}
}

func TestDownloadExhaustsRetryBudget(t *testing.T) {
	disableBackoff(t)

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store := newTestStore(t)
	_, err := store.Download(context.Background(), server.URL+"/v.mp4")
	if faults.KindOf(err) != faults.KindDownloadFailed {
		t.Fatalf("kind = %v, want DownloadFailed", faults.KindOf(err))
	}
	if calls.Load() != 3 {
		t.Fatalf("server saw %d calls, want initial attempt plus 2 retries", calls.Load())
	}
}

func TestDownloadAbortsOversizedBody(t *testing.T) {
	disableBackoff(t)

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write(make([]byte, 4096))
	}))
	defer server.Close()

	store := newTestStore(t)
	store.maxBytes = 1024

	_, err := store.Download(context.Background(), server.URL+"/huge.mp4")
	if faults.KindOf(err) != faults.KindDownloadSizeExceeded {
		t.Fatalf("kind = %v, want DownloadSizeExceeded", faults.KindOf(err))
	}
	entries, readErr := os.ReadDir(store.ScratchDir())
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(entries) != 0 {
		t.Fatalf("partial file left in scratch: %v", entries)
	}
}

func TestDownloadRejectsOversizedContentLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "99999999")
		w.Write(make([]byte, 16))
	}))
	defer server.Close()

	store := newTestStore(t)
	store.maxBytes = 1024

	_, err := store.Download(context.Background(), server.URL+"/huge.mp4")
	if faults.KindOf(err) != faults.KindDownloadSizeExceeded {
		t.Fatalf("kind = %v, want DownloadSizeExceeded", faults.KindOf(err))
	}
}

func TestDownloadTimesOut(t *testing.T) {
	disableBackoff(t)

	release := make(chan struct{})
	defer close(release)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	store := newTestStore(t)
	store.timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := store.Download(context.Background(), server.URL+"/slow.mp4")
	if faults.KindOf(err) != faults.KindDownloadTimeout {
		t.Fatalf("kind = %v, want DownloadTimeout", faults.KindOf(err))
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("timeout fault must not burn the retry budget")
	}
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return parsed
}

func TestDownloadPathAvoidsCollisions(t *testing.T) {
	store := newTestStore(t)

	u := mustParseURL(t, "https://cdn.example.com/clips/voice.mp3")
	first := store.downloadPath(u)
	second := store.downloadPath(u)
	if first == second {
		t.Fatal("concurrent downloads of the same URL would share a scratch file")
	}
	hashLen := 16
	if filepath.Base(first)[:hashLen] != filepath.Base(second)[:hashLen] {
		t.Fatalf("paths lost the shared URL hash prefix: %q vs %q", first, second)
	}
	if ext := ".mp3"; first[len(first)-len(ext):] != ext {
		t.Fatalf("download path %q lost source extension", first)
	}
}
