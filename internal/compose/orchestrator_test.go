package compose

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"clipforge/internal/blobstore"
	"clipforge/internal/config"
	"clipforge/internal/faults"
	"clipforge/internal/media"
	"clipforge/internal/progress"
	"clipforge/internal/testsupport"
	"clipforge/internal/thumbnail"
)

// fakeToolkit simulates the encoder. Source kinds are told apart by
// extension since downloads carry the URL's extension.
type fakeToolkit struct {
	mu sync.Mutex

	audioDuration  float64
	videoDuration  float64
	outputDuration float64
	outputHasAudio bool

	muxErr   error
	probeErr error

	muxDelay      time.Duration
	muxCalls      int
	muxAudioPaths []string
	trimTargets   []float64
	padTargets    []float64

	concurrent    int
	maxConcurrent int
}

func newFakeToolkit() *fakeToolkit {
	return &fakeToolkit{
		audioDuration:  60,
		videoDuration:  60,
		outputDuration: 60,
		outputHasAudio: true,
	}
}

func (f *fakeToolkit) Probe(ctx context.Context, path string) (media.ProbeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.probeErr != nil {
		return media.ProbeResult{}, f.probeErr
	}
	if strings.Contains(filepath.Base(path), "final") {
		return media.ProbeResult{
			DurationSeconds: f.outputDuration,
			HasVideo:        true,
			HasAudio:        f.outputHasAudio,
		}, nil
	}
	switch filepath.Ext(path) {
	case ".mp3", ".wav", ".m4a":
		return media.ProbeResult{DurationSeconds: f.audioDuration, HasAudio: true}, nil
	default:
		return media.ProbeResult{DurationSeconds: f.videoDuration, HasVideo: true, Width: 1080, Height: 1920}, nil
	}
}

func (f *fakeToolkit) Mux(ctx context.Context, audioPath, videoPath, outputPath string, opts media.MuxOptions, onProgress func(float64)) error {
	f.mu.Lock()
	f.muxCalls++
	f.muxAudioPaths = append(f.muxAudioPaths, audioPath)
	f.concurrent++
	if f.concurrent > f.maxConcurrent {
		f.maxConcurrent = f.concurrent
	}
	delay := f.muxDelay
	muxErr := f.muxErr
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	f.concurrent--
	f.mu.Unlock()

	if muxErr != nil {
		return muxErr
	}
	if onProgress != nil {
		onProgress(50)
		onProgress(100)
	}
	return os.WriteFile(outputPath, []byte("encoded"), 0o644)
}

func (f *fakeToolkit) ExtractFrame(ctx context.Context, videoPath, outputPath string, atSeconds float64) error {
	return os.WriteFile(outputPath, []byte("frame"), 0o644)
}

func (f *fakeToolkit) Scale(ctx context.Context, inputPath, outputPath string, width, height int) error {
	return os.WriteFile(outputPath, []byte("scaled"), 0o644)
}

func (f *fakeToolkit) OverlayText(ctx context.Context, inputPath, outputPath string, opts media.TextOverlayOptions) error {
	return os.WriteFile(outputPath, []byte("titled"), 0o644)
}

func (f *fakeToolkit) TrimAudio(ctx context.Context, path string, durationSeconds float64) (string, error) {
	f.mu.Lock()
	f.trimTargets = append(f.trimTargets, durationSeconds)
	f.mu.Unlock()
	out := path + ".trimmed.mp3"
	return out, os.WriteFile(out, []byte("trimmed"), 0o644)
}

func (f *fakeToolkit) PadAudio(ctx context.Context, path string, targetDurationSeconds float64) (string, error) {
	f.mu.Lock()
	f.padTargets = append(f.padTargets, targetDurationSeconds)
	f.mu.Unlock()
	out := path + ".padded.mp3"
	return out, os.WriteFile(out, []byte("padded"), 0o644)
}

func (f *fakeToolkit) RenderTextCanvas(ctx context.Context, outputPath string, opts media.CanvasOptions) error {
	return os.WriteFile(outputPath, []byte("canvas"), 0o644)
}

// flakyUploader fails its first failures calls with a recoverable
// upload fault, then delegates.
type flakyUploader struct {
	mu       sync.Mutex
	failures int
	calls    int
	inner    blobstore.Uploader
}

func (u *flakyUploader) Upload(ctx context.Context, localPath, objectName string) (string, error) {
	u.mu.Lock()
	u.calls++
	shouldFail := u.calls <= u.failures
	u.mu.Unlock()
	if shouldFail {
		return "", faults.UploadFailed("simulated transport failure", nil)
	}
	return u.inner.Upload(ctx, localPath, objectName)
}

type testHarness struct {
	cfg      *config.Config
	toolkit  *fakeToolkit
	store    *blobstore.Store
	composer *Composer
	server   *httptest.Server
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *testHarness {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/voice.mp3", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("voice bytes"))
	})
	mux.HandleFunc("/visuals.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("visuals bytes"))
	})
	mux.HandleFunc("/empty.mp4", func(w http.ResponseWriter, r *http.Request) {})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t, opts...)

	toolkit := newFakeToolkit()
	store := blobstore.New(cfg, nil)
	uploader := blobstore.NewLocalUploader(cfg.Storage.LocalDir, cfg.Storage.BaseURL)
	tracker := progress.NewTracker(cfg, nil)
	thumbs := thumbnail.NewGenerator(cfg, toolkit, store, uploader, nil)

	composer := New(cfg, toolkit, store, uploader, tracker, thumbs, nil)
	composer.sleepFunc = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	return &testHarness{cfg: cfg, toolkit: toolkit, store: store, composer: composer, server: server}
}

func (h *testHarness) request() ComposeRequest {
	return ComposeRequest{
		VoiceURI:   h.server.URL + "/voice.mp3",
		VisualsURI: h.server.URL + "/visuals.mp4",
		Script:     "introducing the widget",
		Product:    ProductContext{ID: "widget-1", Title: "super widget"},
	}
}

func (h *testHarness) assertScratchEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(h.cfg.Paths.ScratchDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("scratch files leaked: %v", names)
	}
}

func TestComposeSuccess(t *testing.T) {
	h := newHarness(t)

	result := h.composer.Compose(context.Background(), h.request())
	if !result.Success {
		t.Fatalf("compose failed: %v", result.Err)
	}
	if !strings.HasPrefix(result.JobID, "widget-1-") {
		t.Fatalf("job ID = %q", result.JobID)
	}
	if !strings.HasSuffix(result.VideoURI, result.JobID+".mp4") {
		t.Fatalf("video URI = %q", result.VideoURI)
	}
	if !strings.HasSuffix(result.ThumbnailURI, result.JobID+"-thumbnail.jpg") {
		t.Fatalf("thumbnail URI = %q", result.ThumbnailURI)
	}

	status, ok := h.composer.Tracker().Status(result.JobID)
	if !ok || status.Stage != progress.StageCompleted || status.OverallPercent != 100 {
		t.Fatalf("terminal status = %+v", status)
	}
	h.assertScratchEmpty(t)

	published := filepath.Join(h.cfg.Storage.LocalDir, result.JobID+".mp4")
	if _, err := os.Stat(published); err != nil {
		t.Fatalf("published video missing: %v", err)
	}
}

func TestComposeSkipsNormalizationWithinTolerance(t *testing.T) {
	h := newHarness(t)
	h.toolkit.audioDuration = 60.3
	h.toolkit.videoDuration = 60

	result := h.composer.Compose(context.Background(), h.request())
	if !result.Success {
		t.Fatalf("compose failed: %v", result.Err)
	}
	if len(h.toolkit.trimTargets) != 0 || len(h.toolkit.padTargets) != 0 {
		t.Fatal("normalization ran inside the tolerance window")
	}
	if audio := h.toolkit.muxAudioPaths[0]; strings.Contains(audio, "trimmed") || strings.Contains(audio, "padded") {
		t.Fatalf("mux received a normalized file: %q", audio)
	}
}

func TestComposeTrimsLongAudio(t *testing.T) {
	h := newHarness(t)
	h.toolkit.audioDuration = 75
	h.toolkit.videoDuration = 60

	result := h.composer.Compose(context.Background(), h.request())
	if !result.Success {
		t.Fatalf("compose failed: %v", result.Err)
	}
	if len(h.toolkit.trimTargets) != 1 || h.toolkit.trimTargets[0] != 60 {
		t.Fatalf("trim targets = %v", h.toolkit.trimTargets)
	}
	if !strings.Contains(h.toolkit.muxAudioPaths[0], "trimmed") {
		t.Fatalf("mux used %q, want trimmed audio", h.toolkit.muxAudioPaths[0])
	}
	h.assertScratchEmpty(t)
}

func TestComposePadsShortAudio(t *testing.T) {
	h := newHarness(t)
	h.toolkit.audioDuration = 45
	h.toolkit.videoDuration = 60

	result := h.composer.Compose(context.Background(), h.request())
	if !result.Success {
		t.Fatalf("compose failed: %v", result.Err)
	}
	if len(h.toolkit.padTargets) != 1 || h.toolkit.padTargets[0] != 60 {
		t.Fatalf("pad targets = %v", h.toolkit.padTargets)
	}
	h.assertScratchEmpty(t)
}

func TestComposeRejectsInvalidOutput(t *testing.T) {
	h := newHarness(t)
	h.toolkit.outputHasAudio = false

	result := h.composer.Compose(context.Background(), h.request())
	if result.Success {
		t.Fatal("silent output accepted")
	}
	if faults.KindOf(result.Err) != faults.KindCompositionFailed {
		t.Fatalf("kind = %v, want CompositionFailed", faults.KindOf(result.Err))
	}
	h.assertScratchEmpty(t)
}

func TestComposeZeroByteVisualsIsInvalidSource(t *testing.T) {
	h := newHarness(t)
	req := h.request()
	req.VisualsURI = h.server.URL + "/empty.mp4"

	result := h.composer.ComposeWithRetry(context.Background(), req)
	if result.Success {
		t.Fatal("empty visuals accepted")
	}
	if faults.KindOf(result.Err) != faults.KindInvalidSource {
		t.Fatalf("kind = %v, want InvalidSource", faults.KindOf(result.Err))
	}
	if result.Attempts != 1 {
		t.Fatalf("attempts = %d, non-recoverable faults must not retry", result.Attempts)
	}
	h.assertScratchEmpty(t)
}

func TestComposeEncodingFailureCleansScratch(t *testing.T) {
	h := newHarness(t)
	h.toolkit.muxErr = errors.New("encoder exploded")

	result := h.composer.ComposeWithRetry(context.Background(), h.request())
	if result.Success {
		t.Fatal("failed encode reported success")
	}
	if faults.KindOf(result.Err) != faults.KindEncodingFailed {
		t.Fatalf("kind = %v, want EncodingFailed", faults.KindOf(result.Err))
	}
	if result.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", result.Attempts)
	}
	h.assertScratchEmpty(t)

	status, _ := h.composer.Tracker().Status(result.JobID)
	if status.Stage != progress.StageFailed {
		t.Fatalf("terminal stage = %v", status.Stage)
	}
}

func TestComposeClassifiesDiskFull(t *testing.T) {
	h := newHarness(t)
	h.toolkit.muxErr = errors.New("av_write_frame: no space left on device")

	result := h.composer.Compose(context.Background(), h.request())
	if faults.KindOf(result.Err) != faults.KindDiskFull {
		t.Fatalf("kind = %v, want DiskFull", faults.KindOf(result.Err))
	}
}

func TestComposeWithRetryRecoversFromUploadFailures(t *testing.T) {
	h := newHarness(t)
	good := blobstore.NewLocalUploader(h.cfg.Storage.LocalDir, h.cfg.Storage.BaseURL)
	h.composer.uploader = &flakyUploader{failures: 2, inner: good}

	result := h.composer.ComposeWithRetry(context.Background(), h.request())
	if !result.Success {
		t.Fatalf("compose failed: %v", result.Err)
	}
	if result.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", result.Attempts)
	}
	if h.toolkit.muxCalls != 3 {
		t.Fatalf("mux calls = %d, each retry must re-run the full pipeline", h.toolkit.muxCalls)
	}
	h.assertScratchEmpty(t)
}

func TestComposeWithRetryExhaustsBudget(t *testing.T) {
	h := newHarness(t, testsupport.WithMaxRetries(2))
	good := blobstore.NewLocalUploader(h.cfg.Storage.LocalDir, h.cfg.Storage.BaseURL)
	h.composer.uploader = &flakyUploader{failures: 10, inner: good}

	result := h.composer.ComposeWithRetry(context.Background(), h.request())
	if result.Success {
		t.Fatal("exhausted retries reported success")
	}
	if result.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", result.Attempts)
	}
	if faults.KindOf(result.Err) != faults.KindUploadFailed {
		t.Fatalf("kind = %v", faults.KindOf(result.Err))
	}
}

func TestComposeRequestValidation(t *testing.T) {
	h := newHarness(t)

	result := h.composer.Compose(context.Background(), ComposeRequest{VisualsURI: "https://x/y.mp4"})
	if faults.KindOf(result.Err) != faults.KindInvalidSource {
		t.Fatalf("kind = %v, want InvalidSource", faults.KindOf(result.Err))
	}
}

func TestComposeBatchBoundsConcurrency(t *testing.T) {
	h := newHarness(t, testsupport.WithWorkers(3))
	h.toolkit.muxDelay = 30 * time.Millisecond

	requests := make([]ComposeRequest, 8)
	for i := range requests {
		req := h.request()
		req.Product.ID = fmt.Sprintf("item-%d", i)
		requests[i] = req
	}

	results := h.composer.ComposeBatch(context.Background(), requests)
	if len(results) != 8 {
		t.Fatalf("results length = %d", len(results))
	}
	for i, result := range results {
		if !result.Success {
			t.Fatalf("request %d failed: %v", i, result.Err)
		}
		if !strings.HasPrefix(result.JobID, fmt.Sprintf("item-%d-", i)) {
			t.Fatalf("result %d out of input order: job %q", i, result.JobID)
		}
		if result.ElapsedMillis < 0 {
			t.Fatalf("result %d has negative elapsed time", i)
		}
	}
	if h.toolkit.maxConcurrent > 3 {
		t.Fatalf("max concurrent encodes = %d, pool size is 3", h.toolkit.maxConcurrent)
	}
	h.assertScratchEmpty(t)
}

func TestComposeBatchIsolatesFailures(t *testing.T) {
	h := newHarness(t, testsupport.WithWorkers(2))

	requests := []ComposeRequest{h.request(), h.request(), h.request()}
	requests[1].VisualsURI = h.server.URL + "/empty.mp4"

	results := h.composer.ComposeBatch(context.Background(), requests)
	if !results[0].Success || !results[2].Success {
		t.Fatalf("sibling jobs affected: %v / %v", results[0].Err, results[2].Err)
	}
	if results[1].Success {
		t.Fatal("invalid request succeeded")
	}
	h.assertScratchEmpty(t)
}

func TestComposeBatchEmptyInput(t *testing.T) {
	h := newHarness(t)
	if results := h.composer.ComposeBatch(context.Background(), nil); len(results) != 0 {
		t.Fatalf("results = %v", results)
	}
}

func TestComposeEmitsProgressEvents(t *testing.T) {
	h := newHarness(t)
	req := h.request()
	req.JobID = NewJobID(req.Product)
	events, cancel := h.composer.Tracker().Subscribe(req.JobID)
	defer cancel()

	result := h.composer.Compose(context.Background(), req)
	if !result.Success {
		t.Fatalf("compose failed: %v", result.Err)
	}
	if result.JobID != req.JobID {
		t.Fatalf("job ID = %q, want pre-allocated %q", result.JobID, req.JobID)
	}

	seen := map[progress.Stage]bool{}
	deadline := time.After(time.Second)
	for {
		select {
		case evt, open := <-events:
			if !open {
				if !seen[progress.StageCompleted] {
					t.Fatalf("channel closed before terminal event, saw %v", seen)
				}
				for _, stage := range []progress.Stage{
					progress.StageDownloading,
					progress.StageMerging,
					progress.StageEncoding,
					progress.StageUploading,
				} {
					if !seen[stage] {
						t.Fatalf("no event for stage %s", stage)
					}
				}
				return
			}
			if evt.JobID != req.JobID {
				t.Fatalf("received another job's event: %+v", evt)
			}
			seen[evt.Stage] = true
		case <-deadline:
			t.Fatalf("subscription never closed, saw %v", seen)
		}
	}
}
