package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"clipforge/internal/faults"
	"clipforge/internal/logging"
)

// sleepFunc is swapped in tests to skip retry backoff.
var sleepFunc = sleepContext

// Download fetches a source URL into scratch space and returns the local
// path. Transient failures retry with exponential backoff up to the
// configured budget; size and deadline violations abort immediately.
func (s *Store) Download(ctx context.Context, sourceURL string) (string, error) {
	parsed, err := url.Parse(sourceURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", faults.InvalidSource(fmt.Sprintf("unsupported source URL %q", sourceURL))
	}

	destination := s.downloadPath(parsed)
	if err := os.MkdirAll(s.scratchDir, 0o755); err != nil {
		return "", fmt.Errorf("create scratch directory: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			logging.WithContext(ctx, s.logger).Info("retrying download",
				logging.String("url", sourceURL),
				logging.Int("attempt", attempt+1),
				logging.Duration("backoff", backoff))
			if err := sleepFunc(ctx, backoff); err != nil {
				return "", faults.DownloadTimeout("download canceled during backoff", err)
			}
		}

		err := s.fetchOnce(ctx, sourceURL, destination)
		if err == nil {
			return destination, nil
		}
		switch faults.KindOf(err) {
		case faults.KindDownloadTimeout, faults.KindDownloadSizeExceeded:
			// Re-fetching cannot shrink the file or stretch the deadline.
			return "", err
		}
		if !faults.IsRecoverable(err) {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

func (s *Store) fetchOnce(ctx context.Context, sourceURL, destination string) error {
	requestCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		requestCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return faults.DownloadFailed("build request", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || requestCtx.Err() != nil {
			return faults.DownloadTimeout(fmt.Sprintf("download of %s exceeded %s", sourceURL, s.timeout), err)
		}
		return faults.DownloadFailed(fmt.Sprintf("fetch %s", sourceURL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return faults.DownloadFailed(fmt.Sprintf("fetch %s: status %d", sourceURL, resp.StatusCode), nil).
			With("status", resp.Status)
	}
	if s.maxBytes > 0 && resp.ContentLength > s.maxBytes {
		return faults.DownloadSizeExceeded(sourceURL, s.maxBytes)
	}

	file, err := os.Create(destination)
	if err != nil {
		return faults.Classify(fmt.Errorf("create scratch file: %w", err))
	}

	written, copyErr := s.copyBounded(file, resp.Body)
	closeErr := file.Close()
	if copyErr != nil {
		os.Remove(destination)
		if s.maxBytes > 0 && written > s.maxBytes {
			return faults.DownloadSizeExceeded(sourceURL, s.maxBytes)
		}
		if errors.Is(copyErr, context.DeadlineExceeded) || requestCtx.Err() != nil {
			return faults.DownloadTimeout(fmt.Sprintf("download of %s exceeded %s", sourceURL, s.timeout), copyErr)
		}
		return faults.Classify(fmt.Errorf("stream %s: %w", sourceURL, copyErr))
	}
	if closeErr != nil {
		os.Remove(destination)
		return faults.Classify(fmt.Errorf("flush scratch file: %w", closeErr))
	}
	return nil
}

// copyBounded streams the body but aborts one byte past the size limit
// so a lying Content-Length header cannot fill the disk.
func (s *Store) copyBounded(dst io.Writer, src io.Reader) (int64, error) {
	if s.maxBytes <= 0 {
		return io.Copy(dst, src)
	}
	written, err := io.Copy(dst, io.LimitReader(src, s.maxBytes+1))
	if err != nil {
		return written, err
	}
	if written > s.maxBytes {
		return written, errors.New("size limit exceeded")
	}
	return written, nil
}

// downloadPath names the scratch file from a hash of the URL plus a
// timestamp: the hash keeps names debuggable, the timestamp keeps
// concurrent jobs fetching the same URL off each other's files. Retries
// within one Download call reuse the same destination.
func (s *Store) downloadPath(parsed *url.URL) string {
	sum := sha256.Sum256([]byte(parsed.String()))
	name := fmt.Sprintf("%s-%d", hex.EncodeToString(sum[:])[:16], time.Now().UnixNano())
	if ext := strings.ToLower(path.Ext(parsed.Path)); ext != "" && len(ext) <= 8 {
		name += ext
	}
	return filepath.Join(s.scratchDir, name)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
