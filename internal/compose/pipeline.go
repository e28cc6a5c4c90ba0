package compose

import (
	"context"
	"fmt"
	"math"

	"clipforge/internal/blobstore"
	"clipforge/internal/faults"
	"clipforge/internal/logging"
	"clipforge/internal/media"
	"clipforge/internal/progress"
)

// runPipeline drives one job through the stage sequence and returns the
// published video and thumbnail URIs. Every scratch file the run
// creates is reclaimed before return, on success and failure alike.
func (c *Composer) runPipeline(ctx context.Context, jobID string, req ComposeRequest) (string, string, error) {
	ctx = logging.WithJobID(ctx, jobID)
	log := logging.WithContext(ctx, c.logger)
	c.tracker.StartTracking(jobID)

	var scratch []string
	defer func() {
		c.store.Cleanup(scratch...)
		c.store.CleanupJob(jobID)
	}()

	if err := c.store.CheckFreeSpace(2 * c.cfg.Download.MaxBytes); err != nil {
		return "", "", err
	}

	// Downloading: voice then visuals, each half the stage.
	voicePath, err := c.store.Download(ctx, req.VoiceURI)
	if voicePath != "" {
		scratch = append(scratch, voicePath)
	}
	if err != nil {
		return "", "", err
	}
	if err := c.store.Validate(voicePath, blobstore.SourceAudio); err != nil {
		return "", "", err
	}
	c.tracker.OnProgress(jobID, progress.StageDownloading, 50, "voice downloaded")

	visualsPath, err := c.store.Download(ctx, req.VisualsURI)
	if visualsPath != "" {
		scratch = append(scratch, visualsPath)
	}
	if err != nil {
		return "", "", err
	}
	if err := c.store.Validate(visualsPath, blobstore.SourceVideo); err != nil {
		return "", "", err
	}
	c.tracker.OnProgress(jobID, progress.StageDownloading, 100, "visuals downloaded")

	// Merging: probe both sources and normalize the audio duration.
	voiceProbe, err := c.toolkit.Probe(ctx, voicePath)
	if err != nil {
		return "", "", faults.CorruptedFile("voice source failed probing", err)
	}
	visualsProbe, err := c.toolkit.Probe(ctx, visualsPath)
	if err != nil {
		return "", "", faults.CorruptedFile("visuals source failed probing", err)
	}
	if !visualsProbe.HasVideo {
		return "", "", faults.InvalidSource("visuals source carries no video stream")
	}
	c.tracker.OnProgress(jobID, progress.StageMerging, 25, "sources probed")

	audioPath, normalized, err := c.normalizeAudio(
		logging.WithStage(ctx, string(progress.StageMerging)), voicePath, voiceProbe, visualsProbe)
	if normalized {
		scratch = append(scratch, audioPath)
	}
	if err != nil {
		return "", "", err
	}
	c.tracker.OnProgress(jobID, progress.StageMerging, 100, "audio normalized")

	// Encoding: mux with native encoder progress forwarded.
	outputPath := c.store.TempPath(jobID, "final.mp4")
	scratch = append(scratch, outputPath)
	muxOpts := c.muxOptions(visualsProbe)
	err = c.toolkit.Mux(ctx, audioPath, visualsPath, outputPath, muxOpts, func(percent float64) {
		c.tracker.OnProgress(jobID, progress.StageEncoding, percent, "")
	})
	if err != nil {
		return "", "", faults.Classify(err)
	}
	c.tracker.OnProgress(jobID, progress.StageEncoding, 100, "encode finished")

	if err := c.validateOutput(ctx, outputPath); err != nil {
		return "", "", err
	}

	// Uploading: publish the encoded video.
	c.tracker.OnProgress(jobID, progress.StageUploading, 0, "publishing")
	videoURI, err := c.uploader.Upload(ctx, outputPath, jobID+".mp4")
	if err != nil {
		return "", "", err
	}
	c.tracker.OnProgress(jobID, progress.StageUploading, 100, "published")

	// Thumbnail derivation never fails the job; the generator falls
	// back to the placeholder URI and reports the fault for logging.
	thumbnailURI, thumbErr := c.thumbs.FromVideo(ctx, jobID, outputPath, req.Product.Title)
	if thumbErr != nil {
		log.Warn("thumbnail fell back to placeholder", logging.Error(thumbErr))
	}

	log.Info("composition published",
		logging.String("video_uri", videoURI),
		logging.String("thumbnail_uri", thumbnailURI))
	return videoURI, thumbnailURI, nil
}

// normalizeAudio enforces the sync rule: output audio and video must
// end within the configured tolerance of each other. Longer audio is
// trimmed to the video length, shorter audio padded with silence, and
// deltas inside the tolerance pass the original file through untouched.
func (c *Composer) normalizeAudio(ctx context.Context, voicePath string, voice, visuals media.ProbeResult) (string, bool, error) {
	delta := voice.DurationSeconds - visuals.DurationSeconds
	tolerance := c.cfg.Compose.DurationToleranceSeconds
	if math.Abs(delta) < tolerance {
		return voicePath, false, nil
	}

	log := logging.WithContext(ctx, c.logger)
	if delta > 0 {
		log.Info("trimming audio to video length",
			logging.Float64("audio_seconds", voice.DurationSeconds),
			logging.Float64("video_seconds", visuals.DurationSeconds))
		trimmed, err := c.toolkit.TrimAudio(ctx, voicePath, visuals.DurationSeconds)
		if err != nil {
			return "", false, faults.AudioSyncFailed(
				fmt.Sprintf("trim audio by %.2fs", delta), err)
		}
		return trimmed, true, nil
	}

	log.Info("padding audio with silence",
		logging.Float64("audio_seconds", voice.DurationSeconds),
		logging.Float64("video_seconds", visuals.DurationSeconds))
	padded, err := c.toolkit.PadAudio(ctx, voicePath, visuals.DurationSeconds)
	if err != nil {
		return "", false, faults.AudioSyncFailed(
			fmt.Sprintf("pad audio by %.2fs", -delta), err)
	}
	return padded, true, nil
}

func (c *Composer) muxOptions(visuals media.ProbeResult) media.MuxOptions {
	opts := media.MuxOptions{
		Width:              c.cfg.Output.Width,
		Height:             c.cfg.Output.Height,
		FPS:                c.cfg.Output.FPS,
		VideoBitrate:       c.cfg.Output.VideoBitrate,
		AudioBitrate:       c.cfg.Output.AudioBitrate,
		Preset:             c.cfg.Output.Preset,
		CRF:                c.cfg.Output.CRF,
		MaxDurationSeconds: c.cfg.Output.MaxDurationSeconds,
	}
	opts.ExpectedDurationSeconds = visuals.DurationSeconds
	if opts.MaxDurationSeconds > 0 && opts.ExpectedDurationSeconds > float64(opts.MaxDurationSeconds) {
		opts.ExpectedDurationSeconds = float64(opts.MaxDurationSeconds)
	}
	return opts
}

// validateOutput rejects encodes that technically succeeded but
// produced an unusable file.
func (c *Composer) validateOutput(ctx context.Context, outputPath string) error {
	probed, err := c.toolkit.Probe(ctx, outputPath)
	if err != nil {
		return faults.CompositionFailed(fmt.Sprintf("probe encoded output: %v", err))
	}
	if probed.DurationSeconds <= 0 {
		return faults.CompositionFailed("encoded output has zero duration")
	}
	if !probed.HasAudio {
		return faults.CompositionFailed("encoded output has no audio stream")
	}
	return nil
}
