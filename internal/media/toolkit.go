package media

import "context"

// ProbeResult reports stream metadata for a media file.
type ProbeResult struct {
	DurationSeconds float64
	Width           int
	Height          int
	FPS             float64
	BitrateBPS      int64
	Codec           string
	HasAudio        bool
	HasVideo        bool
}

// MuxOptions controls the merged encode.
type MuxOptions struct {
	Width              int
	Height             int
	FPS                int
	VideoBitrate       string
	AudioBitrate       string
	Preset             string
	CRF                int
	MaxDurationSeconds int
	// ExpectedDurationSeconds scales native encoder progress into a
	// 0-100 percentage. Zero falls back to MaxDurationSeconds.
	ExpectedDurationSeconds float64
}

// DefaultMuxOptions returns the standard short-form encode target.
func DefaultMuxOptions() MuxOptions {
	return MuxOptions{
		Width:              1080,
		Height:             1920,
		FPS:                30,
		VideoBitrate:       "7000k",
		AudioBitrate:       "160k",
		Preset:             "fast",
		CRF:                20,
		MaxDurationSeconds: 60,
	}
}

// TextPosition places overlay text vertically on the frame.
type TextPosition string

const (
	PositionCenter TextPosition = "center"
	PositionTop    TextPosition = "top"
	PositionBottom TextPosition = "bottom"
)

// TextOverlayOptions controls drawtext rendering.
type TextOverlayOptions struct {
	Text      string
	FontSize  int
	FontColor string
	Position  TextPosition
	BoxColor  string
}

// CanvasOptions controls solid-canvas rendering for text-only thumbnails.
type CanvasOptions struct {
	Width           int
	Height          int
	BackgroundColor string
}

// Toolkit is the capability surface over the external encoder/prober.
type Toolkit interface {
	Probe(ctx context.Context, path string) (ProbeResult, error)
	Mux(ctx context.Context, audioPath, videoPath, outputPath string, opts MuxOptions, onProgress func(percent float64)) error
	ExtractFrame(ctx context.Context, videoPath, outputPath string, atSeconds float64) error
	Scale(ctx context.Context, inputPath, outputPath string, width, height int) error
	OverlayText(ctx context.Context, inputPath, outputPath string, opts TextOverlayOptions) error
	TrimAudio(ctx context.Context, path string, durationSeconds float64) (string, error)
	PadAudio(ctx context.Context, path string, targetDurationSeconds float64) (string, error)
	RenderTextCanvas(ctx context.Context, outputPath string, opts CanvasOptions) error
}
