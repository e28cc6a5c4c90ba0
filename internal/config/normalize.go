package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeOutput()
	c.normalizeCompose()
	c.normalizeDownload()
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeThumbnail()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		c.Paths.ScratchDir = defaultScratchDir
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeOutput() {
	if c.Output.Width <= 0 {
		c.Output.Width = defaultOutputWidth
	}
	if c.Output.Height <= 0 {
		c.Output.Height = defaultOutputHeight
	}
	if c.Output.FPS <= 0 {
		c.Output.FPS = defaultOutputFPS
	}
	if strings.TrimSpace(c.Output.VideoBitrate) == "" {
		c.Output.VideoBitrate = defaultVideoBitrate
	}
	if strings.TrimSpace(c.Output.AudioBitrate) == "" {
		c.Output.AudioBitrate = defaultAudioBitrate
	}
	if strings.TrimSpace(c.Output.Preset) == "" {
		c.Output.Preset = defaultPreset
	}
	if c.Output.CRF <= 0 {
		c.Output.CRF = defaultCRF
	}
	if c.Output.MaxDurationSeconds <= 0 {
		c.Output.MaxDurationSeconds = defaultMaxDuration
	}
}

func (c *Config) normalizeCompose() {
	if c.Compose.Workers <= 0 {
		c.Compose.Workers = defaultWorkers
	}
	if c.Compose.MaxRetries <= 0 {
		c.Compose.MaxRetries = defaultMaxRetries
	}
	if c.Compose.DurationToleranceSeconds <= 0 {
		c.Compose.DurationToleranceSeconds = defaultDurationTolerance
	}
	if c.Compose.StallTimeoutSeconds <= 0 {
		c.Compose.StallTimeoutSeconds = defaultStallTimeout
	}
	if c.Compose.RetentionSeconds <= 0 {
		c.Compose.RetentionSeconds = defaultRetentionSeconds
	}
}

func (c *Config) normalizeDownload() {
	if c.Download.MaxBytes <= 0 {
		c.Download.MaxBytes = defaultDownloadMaxBytes
	}
	if c.Download.TimeoutSeconds <= 0 {
		c.Download.TimeoutSeconds = defaultDownloadTimeout
	}
	if c.Download.Retries <= 0 {
		c.Download.Retries = defaultDownloadRetries
	}
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultStorageBackend
	}
	var err error
	if strings.TrimSpace(c.Storage.LocalDir) == "" {
		c.Storage.LocalDir = defaultStorageDir
	}
	if c.Storage.LocalDir, err = expandPath(c.Storage.LocalDir); err != nil {
		return fmt.Errorf("storage.local_dir: %w", err)
	}
	c.Storage.BaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.BaseURL), "/")
	if c.Storage.BaseURL == "" {
		c.Storage.BaseURL = defaultStorageBaseURL
	}
	c.Storage.Endpoint = strings.TrimSpace(c.Storage.Endpoint)
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	c.Storage.Region = strings.TrimSpace(c.Storage.Region)
	if c.Storage.Region == "" {
		c.Storage.Region = "auto"
	}
	c.Storage.AccessKeyID = strings.TrimSpace(c.Storage.AccessKeyID)
	if c.Storage.AccessKeyID == "" {
		if value, ok := os.LookupEnv("CLIPFORGE_STORAGE_ACCESS_KEY_ID"); ok {
			c.Storage.AccessKeyID = strings.TrimSpace(value)
		}
	}
	c.Storage.SecretAccessKey = strings.TrimSpace(c.Storage.SecretAccessKey)
	if c.Storage.SecretAccessKey == "" {
		if value, ok := os.LookupEnv("CLIPFORGE_STORAGE_SECRET_ACCESS_KEY"); ok {
			c.Storage.SecretAccessKey = strings.TrimSpace(value)
		}
	}
	c.Storage.PublicURL = strings.TrimRight(strings.TrimSpace(c.Storage.PublicURL), "/")
	if c.Storage.TimeoutSeconds <= 0 {
		c.Storage.TimeoutSeconds = defaultStorageTimeout
	}
	return nil
}

func (c *Config) normalizeThumbnail() {
	if c.Thumbnail.Width <= 0 {
		c.Thumbnail.Width = defaultThumbnailWidth
	}
	if c.Thumbnail.Height <= 0 {
		c.Thumbnail.Height = defaultThumbnailHeight
	}
	c.Thumbnail.PlaceholderURI = strings.TrimSpace(c.Thumbnail.PlaceholderURI)
	if c.Thumbnail.TimestampSeconds == 0 {
		c.Thumbnail.TimestampSeconds = defaultThumbnailTimestamp
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
