package blobstore

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"clipforge/internal/config"
	"clipforge/internal/faults"
	"clipforge/internal/logging"
)

// Store manages scratch-space files for composition jobs.
type Store struct {
	scratchDir string
	maxBytes   int64
	timeout    time.Duration
	retries    int
	client     *http.Client
	logger     *slog.Logger
}

// New constructs a Store from the download and path configuration.
func New(cfg *config.Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{
		scratchDir: cfg.Paths.ScratchDir,
		maxBytes:   cfg.Download.MaxBytes,
		timeout:    time.Duration(cfg.Download.TimeoutSeconds) * time.Second,
		retries:    cfg.Download.Retries,
		client:     &http.Client{},
		logger:     logging.NewComponentLogger(logger, "blobstore"),
	}
}

// ScratchDir reports the directory scratch files are allocated under.
func (s *Store) ScratchDir() string {
	return s.scratchDir
}

// TempPath allocates a collision-free scratch path for a job artifact.
// The job ID keys cleanup; the random token keeps retries of the same
// job from clobbering each other's partial files.
func (s *Store) TempPath(jobID, name string) string {
	token := uuid.NewString()[:8]
	base := strings.TrimSpace(name)
	if base == "" {
		base = "artifact"
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(s.scratchDir, fmt.Sprintf("%s-%s-%s%s", jobID, stem, token, ext))
}

// Cleanup removes the given scratch files. Missing files are not an
// error; cleanup runs on every job exit path and must be idempotent.
func (s *Store) Cleanup(paths ...string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove scratch file",
				logging.String("path", path),
				logging.Error(err))
		}
	}
}

// CleanupJob removes every scratch file belonging to a job ID and
// reports how many were deleted.
func (s *Store) CleanupJob(jobID string) int {
	matches, err := filepath.Glob(filepath.Join(s.scratchDir, jobID+"-*"))
	if err != nil {
		return 0
	}
	removed := 0
	for _, path := range matches {
		if err := os.Remove(path); err == nil {
			removed++
		}
	}
	return removed
}

// CleanupOlderThan sweeps scratch files whose modification time is older
// than maxAge. It backstops the per-job cleanup against crashes.
func (s *Store) CleanupOlderThan(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.scratchDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read scratch directory: %w", err)
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.scratchDir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Warn("failed to sweep stale scratch file",
				logging.String("path", path),
				logging.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

// CheckFreeSpace fails with a disk-full fault when the scratch
// filesystem has less than requiredBytes available. The scratch
// directory is created on demand so the preflight works before the
// first download allocates anything.
func (s *Store) CheckFreeSpace(requiredBytes int64) error {
	if err := os.MkdirAll(s.scratchDir, 0o755); err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}
	var stat unix.Statfs_t
	if err := unix.Statfs(s.scratchDir, &stat); err != nil {
		return fmt.Errorf("statfs %s: %w", s.scratchDir, err)
	}
	available := int64(stat.Bavail) * int64(stat.Bsize)
	if available < requiredBytes {
		return faults.DiskFull(
			fmt.Sprintf("scratch filesystem has %d bytes free, need %d", available, requiredBytes), nil).
			With("scratch_dir", s.scratchDir)
	}
	return nil
}
