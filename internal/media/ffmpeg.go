package media

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// Option configures the FFmpeg toolkit.
type Option func(*FFmpeg)

// WithFFmpegBinary overrides the encoder binary name.
func WithFFmpegBinary(binary string) Option {
	return func(f *FFmpeg) {
		if binary != "" {
			f.ffmpeg = binary
		}
	}
}

// WithFFprobeBinary overrides the prober binary name.
func WithFFprobeBinary(binary string) Option {
	return func(f *FFmpeg) {
		if binary != "" {
			f.ffprobe = binary
		}
	}
}

// FFmpeg implements Toolkit by shelling out to ffmpeg/ffprobe.
type FFmpeg struct {
	ffmpeg  string
	ffprobe string
}

// NewFFmpeg constructs a toolkit using default binary names.
func NewFFmpeg(opts ...Option) *FFmpeg {
	f := &FFmpeg{ffmpeg: "ffmpeg", ffprobe: "ffprobe"}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

var _ Toolkit = (*FFmpeg)(nil)

// Probe reports stream metadata. It fails when the prober exits non-zero
// or reports no decodable streams at all; audio-only files probe cleanly
// with HasVideo false.
func (f *FFmpeg) Probe(ctx context.Context, path string) (ProbeResult, error) {
	if path == "" {
		return ProbeResult{}, errors.New("probe path required")
	}
	args := []string{"-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", path}
	cmd := commandContext(ctx, f.ffprobe, args...)
	output, err := cmd.Output()
	if err != nil {
		return ProbeResult{}, fmt.Errorf("probe %s: %w", filepath.Base(path), err)
	}
	return parseProbeOutput(output)
}

// Mux merges an audio and a video stream into the target frame, caps the
// output duration, and forwards native encoder progress as 0-100.
func (f *FFmpeg) Mux(ctx context.Context, audioPath, videoPath, outputPath string, opts MuxOptions, onProgress func(float64)) error {
	if audioPath == "" || videoPath == "" || outputPath == "" {
		return errors.New("mux requires audio, video, and output paths")
	}
	args := buildMuxArgs(audioPath, videoPath, outputPath, opts)
	return f.runWithProgress(ctx, args, progressTotal(opts), onProgress)
}

// ExtractFrame writes a single frame. A negative atSeconds selects half
// the probed duration, falling back to 30s when probing fails.
func (f *FFmpeg) ExtractFrame(ctx context.Context, videoPath, outputPath string, atSeconds float64) error {
	if atSeconds < 0 {
		atSeconds = 30
		if probed, err := f.Probe(ctx, videoPath); err == nil && probed.DurationSeconds > 0 {
			atSeconds = probed.DurationSeconds / 2
		}
	}
	args := []string{
		"-y", "-ss", formatSeconds(atSeconds),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		outputPath,
	}
	return f.run(ctx, args)
}

// Scale resizes preserving aspect ratio via scale-then-pad.
func (f *FFmpeg) Scale(ctx context.Context, inputPath, outputPath string, width, height int) error {
	args := []string{
		"-y", "-i", inputPath,
		"-vf", scalePadFilter(width, height),
		outputPath,
	}
	return f.run(ctx, args)
}

// OverlayText renders drawtext over the input.
func (f *FFmpeg) OverlayText(ctx context.Context, inputPath, outputPath string, opts TextOverlayOptions) error {
	if strings.TrimSpace(opts.Text) == "" {
		return errors.New("overlay text required")
	}
	args := []string{
		"-y", "-i", inputPath,
		"-vf", drawTextFilter(opts),
		outputPath,
	}
	return f.run(ctx, args)
}

// TrimAudio cuts the audio to durationSeconds and returns the new path.
// A failed trim leaves no output file behind.
func (f *FFmpeg) TrimAudio(ctx context.Context, path string, durationSeconds float64) (string, error) {
	if durationSeconds <= 0 {
		return "", fmt.Errorf("trim duration must be positive, got %v", durationSeconds)
	}
	outputPath := derivedAudioPath(path, "trimmed")
	args := []string{
		"-y", "-i", path,
		"-t", formatSeconds(durationSeconds),
		outputPath,
	}
	if err := f.run(ctx, args); err != nil {
		os.Remove(outputPath)
		return "", err
	}
	return outputPath, nil
}

// PadAudio appends silence until the audio reaches targetDurationSeconds
// and returns the new path. A failed pad leaves no output file behind.
func (f *FFmpeg) PadAudio(ctx context.Context, path string, targetDurationSeconds float64) (string, error) {
	if targetDurationSeconds <= 0 {
		return "", fmt.Errorf("pad target must be positive, got %v", targetDurationSeconds)
	}
	outputPath := derivedAudioPath(path, "padded")
	args := []string{
		"-y", "-i", path,
		"-af", "apad",
		"-t", formatSeconds(targetDurationSeconds),
		outputPath,
	}
	if err := f.run(ctx, args); err != nil {
		os.Remove(outputPath)
		return "", err
	}
	return outputPath, nil
}

// RenderTextCanvas writes a solid-color still for text-only thumbnails.
func (f *FFmpeg) RenderTextCanvas(ctx context.Context, outputPath string, opts CanvasOptions) error {
	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = 1024
	}
	if height <= 0 {
		height = 1024
	}
	background := strings.TrimSpace(opts.BackgroundColor)
	if background == "" {
		background = "black"
	}
	args := []string{
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=%s:s=%dx%d", background, width, height),
		"-frames:v", "1",
		outputPath,
	}
	return f.run(ctx, args)
}

func (f *FFmpeg) run(ctx context.Context, args []string) error {
	cmd := commandContext(ctx, f.ffmpeg, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return wrapEncoderError(err, stderr.String())
	}
	return nil
}

func (f *FFmpeg) runWithProgress(ctx context.Context, args []string, totalSeconds float64, onProgress func(float64)) error {
	cmd := commandContext(ctx, f.ffmpeg, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start encoder: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		percent, ok := parseProgressLine(scanner.Text(), totalSeconds)
		if ok && onProgress != nil {
			onProgress(percent)
		}
	}
	if err := scanner.Err(); err != nil {
		_ = cmd.Wait()
		return fmt.Errorf("read encoder progress: %w", err)
	}
	if err := cmd.Wait(); err != nil {
		return wrapEncoderError(err, stderr.String())
	}
	return nil
}

// wrapEncoderError folds trailing stderr into the returned error so the
// taxonomy classifier can inspect the encoder's own message.
func wrapEncoderError(err error, stderr string) error {
	detail := strings.TrimSpace(stderr)
	if detail == "" {
		return err
	}
	lines := strings.Split(detail, "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return fmt.Errorf("%w: %s", err, strings.TrimSpace(strings.Join(lines, " | ")))
}

func buildMuxArgs(audioPath, videoPath, outputPath string, opts MuxOptions) []string {
	filter := scalePadFilter(opts.Width, opts.Height) + ",setsar=1"
	if opts.FPS > 0 {
		filter += fmt.Sprintf(",fps=%d", opts.FPS)
	}
	args := []string{
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-vf", filter,
		"-af", "loudnorm",
		"-c:v", "libx264",
		"-preset", opts.Preset,
		"-crf", strconv.Itoa(opts.CRF),
		"-b:v", opts.VideoBitrate,
		"-c:a", "aac",
		"-b:a", opts.AudioBitrate,
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
	}
	if opts.MaxDurationSeconds > 0 {
		args = append(args, "-t", strconv.Itoa(opts.MaxDurationSeconds))
	}
	args = append(args,
		"-progress", "pipe:1",
		"-nostats",
		"-loglevel", "error",
		outputPath,
	)
	return args
}

func progressTotal(opts MuxOptions) float64 {
	total := opts.ExpectedDurationSeconds
	if opts.MaxDurationSeconds > 0 && (total <= 0 || total > float64(opts.MaxDurationSeconds)) {
		total = float64(opts.MaxDurationSeconds)
	}
	return total
}

// parseProgressLine interprets one key=value line from the encoder's
// progress stream. Returns the completion percentage and whether the
// line carried progress information.
func parseProgressLine(line string, totalSeconds float64) (float64, bool) {
	line = strings.TrimSpace(line)
	key, value, found := strings.Cut(line, "=")
	if !found {
		return 0, false
	}
	switch key {
	case "out_time_us", "out_time_ms":
		micros, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || totalSeconds <= 0 {
			return 0, false
		}
		percent := float64(micros) / 1e6 / totalSeconds * 100
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}
		return percent, true
	case "progress":
		if strings.TrimSpace(value) == "end" {
			return 100, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func scalePadFilter(width, height int) string {
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		width, height, width, height,
	)
}

func drawTextFilter(opts TextOverlayOptions) string {
	fontSize := opts.FontSize
	if fontSize <= 0 {
		fontSize = 48
	}
	fontColor := strings.TrimSpace(opts.FontColor)
	if fontColor == "" {
		fontColor = "white"
	}

	var y string
	switch opts.Position {
	case PositionTop:
		y = "h/10"
	case PositionBottom:
		y = "h-text_h-h/10"
	default:
		y = "(h-text_h)/2"
	}

	filter := fmt.Sprintf(
		"drawtext=text='%s':fontsize=%d:fontcolor=%s:x=(w-text_w)/2:y=%s",
		escapeDrawText(opts.Text), fontSize, fontColor, y,
	)
	if box := strings.TrimSpace(opts.BoxColor); box != "" {
		filter += fmt.Sprintf(":box=1:boxcolor=%s:boxborderw=12", box)
	}
	return filter
}

// escapeDrawText neutralizes characters the filter syntax treats as
// control characters. Newlines become spaces; other control bytes drop.
func escapeDrawText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch r {
		case '\n', '\r', '\t':
			b.WriteByte(' ')
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\\\'`)
		case ':':
			b.WriteString(`\:`)
		case '%':
			b.WriteString(`\%`)
		case ',':
			b.WriteString(`\,`)
		case '[', ']', ';', '=':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			if r < 0x20 {
				continue
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

func derivedAudioPath(path, suffix string) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	if ext == "" {
		ext = ".m4a"
	}
	return stem + "-" + suffix + ext
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}
