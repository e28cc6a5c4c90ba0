package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	ScratchDir string `toml:"scratch_dir"`
	LogDir     string `toml:"log_dir"`
}

// Output contains the target encode parameters for composed videos.
type Output struct {
	Width              int    `toml:"width"`
	Height             int    `toml:"height"`
	FPS                int    `toml:"fps"`
	VideoBitrate       string `toml:"video_bitrate"`
	AudioBitrate       string `toml:"audio_bitrate"`
	Preset             string `toml:"preset"`
	CRF                int    `toml:"crf"`
	MaxDurationSeconds int    `toml:"max_duration_seconds"`
}

// Compose contains orchestrator scheduling and retry settings.
type Compose struct {
	Workers                  int     `toml:"workers"`
	MaxRetries               int     `toml:"max_retries"`
	DurationToleranceSeconds float64 `toml:"duration_tolerance_seconds"`
	StallTimeoutSeconds      int     `toml:"stall_timeout_seconds"`
	RetentionSeconds         int     `toml:"retention_seconds"`
}

// Download contains source fetch limits.
type Download struct {
	MaxBytes       int64 `toml:"max_bytes"`
	TimeoutSeconds int   `toml:"timeout_seconds"`
	Retries        int   `toml:"retries"`
}

// Storage contains durable-storage settings. Backend selects "local"
// (CDN-backed directory) or "s3".
type Storage struct {
	Backend         string `toml:"backend"`
	LocalDir        string `toml:"local_dir"`
	BaseURL         string `toml:"base_url"`
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	PublicURL       string `toml:"public_url"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// Thumbnail contains still-image derivation settings.
type Thumbnail struct {
	Width            int    `toml:"width"`
	Height           int    `toml:"height"`
	OverlayText      bool   `toml:"overlay_text"`
	PlaceholderURI   string `toml:"placeholder_uri"`
	TimestampSeconds int    `toml:"timestamp_seconds"`
}

// Logging contains log output settings.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for clipforge.
//
// Sections by subsystem:
//   - Paths: scratch and log directories
//   - Output: encode target (frame, rates, duration cap)
//   - Compose: worker pool, retries, tolerance, tracker retention
//   - Download: source fetch limits and retry budget
//   - Storage: durable storage backend (local dir or S3)
//   - Thumbnail: still derivation and placeholder fallback
//   - Logging: format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Output    Output    `toml:"output"`
	Compose   Compose   `toml:"compose"`
	Download  Download  `toml:"download"`
	Storage   Storage   `toml:"storage"`
	Thumbnail Thumbnail `toml:"thumbnail"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/clipforge/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("clipforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories composition jobs require.
// The local storage directory is created best-effort so batches can be
// prepared while CDN-backed storage is temporarily offline.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ScratchDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Storage.Backend == "local" && strings.TrimSpace(c.Storage.LocalDir) != "" {
		_ = os.MkdirAll(c.Storage.LocalDir, 0o755)
	}
	return nil
}

// FFmpegBinary returns the encoder executable name.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the prober executable name.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
