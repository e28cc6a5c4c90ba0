package config

const (
	defaultScratchDir         = "~/.local/share/clipforge/scratch"
	defaultLogDir             = "~/.local/share/clipforge/logs"
	defaultStorageDir         = "~/.local/share/clipforge/published"
	defaultOutputWidth        = 1080
	defaultOutputHeight       = 1920
	defaultOutputFPS          = 30
	defaultVideoBitrate       = "7000k"
	defaultAudioBitrate       = "160k"
	defaultPreset             = "fast"
	defaultCRF                = 20
	defaultMaxDuration        = 60
	defaultWorkers            = 5
	defaultMaxRetries         = 3
	defaultDurationTolerance  = 0.5
	defaultStallTimeout       = 30
	defaultRetentionSeconds   = 60
	defaultDownloadMaxBytes   = 500 << 20
	defaultDownloadTimeout    = 120
	defaultDownloadRetries    = 3
	defaultStorageBackend     = "local"
	defaultStorageBaseURL     = "http://localhost/media"
	defaultStorageTimeout     = 120
	defaultThumbnailWidth     = 1024
	defaultThumbnailHeight    = 1024
	defaultThumbnailTimestamp = -1
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ScratchDir: defaultScratchDir,
			LogDir:     defaultLogDir,
		},
		Output: Output{
			Width:              defaultOutputWidth,
			Height:             defaultOutputHeight,
			FPS:                defaultOutputFPS,
			VideoBitrate:       defaultVideoBitrate,
			AudioBitrate:       defaultAudioBitrate,
			Preset:             defaultPreset,
			CRF:                defaultCRF,
			MaxDurationSeconds: defaultMaxDuration,
		},
		Compose: Compose{
			Workers:                  defaultWorkers,
			MaxRetries:               defaultMaxRetries,
			DurationToleranceSeconds: defaultDurationTolerance,
			StallTimeoutSeconds:      defaultStallTimeout,
			RetentionSeconds:         defaultRetentionSeconds,
		},
		Download: Download{
			MaxBytes:       defaultDownloadMaxBytes,
			TimeoutSeconds: defaultDownloadTimeout,
			Retries:        defaultDownloadRetries,
		},
		Storage: Storage{
			Backend:        defaultStorageBackend,
			LocalDir:       defaultStorageDir,
			BaseURL:        defaultStorageBaseURL,
			Region:         "auto",
			TimeoutSeconds: defaultStorageTimeout,
		},
		Thumbnail: Thumbnail{
			Width:            defaultThumbnailWidth,
			Height:           defaultThumbnailHeight,
			OverlayText:      true,
			TimestampSeconds: defaultThumbnailTimestamp,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
