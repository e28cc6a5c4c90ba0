package testsupport

import (
	"path/filepath"
	"testing"

	"clipforge/internal/config"
)

// ConfigOption allows callers to customize the generated test
// configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per
// test. Downloads don't retry so failure paths stay fast; options
// override any field the test cares about.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.ScratchDir = filepath.Join(base, "scratch")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Storage.Backend = "local"
	cfg.Storage.LocalDir = filepath.Join(base, "published")
	cfg.Storage.BaseURL = "https://cdn.example.com/media"
	cfg.Thumbnail.PlaceholderURI = "https://cdn.example.com/media/placeholder.jpg"
	cfg.Download.MaxBytes = 1 << 20
	cfg.Download.Retries = 0

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithWorkers sets the batch worker pool size on the test config.
func WithWorkers(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Compose.Workers = n
	}
}

// WithMaxRetries sets the composition attempt budget on the test config.
func WithMaxRetries(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Compose.MaxRetries = n
	}
}

// WithDownloadRetries sets the per-download retry budget on the test
// config.
func WithDownloadRetries(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Download.Retries = n
	}
}
