package faults

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestRecoverableFlags(t *testing.T) {
	cases := []struct {
		err         *Error
		recoverable bool
	}{
		{DownloadFailed("fetch failed", nil), true},
		{DownloadTimeout("deadline", nil), true},
		{DownloadSizeExceeded("http://example.com/a.mp4", 10), true},
		{InvalidSource("zero byte file"), false},
		{InvalidFormat("unknown extension"), false},
		{CorruptedFile("undecodable", nil), false},
		{CompositionFailed("output has no audio"), true},
		{AudioSyncFailed("trim failed", nil), true},
		{EncodingFailed("exit status 1", nil), false},
		{Timeout("deadline", nil), true},
		{DiskFull("no space", nil), true},
		{MemoryExceeded("oom", nil), true},
		{UploadFailed("connection reset", nil), true},
		{UploadTimeout("deadline", nil), true},
		{ThumbnailFailed("frame extraction", nil), true},
	}
	for _, tc := range cases {
		if got := IsRecoverable(tc.err); got != tc.recoverable {
			t.Errorf("%s: recoverable = %v, want %v", tc.err.Kind, got, tc.recoverable)
		}
	}
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := DownloadFailed("fetch voice source", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be visible via errors.Is")
	}

	wrapped := fmt.Errorf("stage failed: %w", err)
	if KindOf(wrapped) != KindDownloadFailed {
		t.Fatalf("KindOf(wrapped) = %q, want %q", KindOf(wrapped), KindDownloadFailed)
	}
	if !IsRecoverable(wrapped) {
		t.Fatal("expected wrapped fault to remain recoverable")
	}
}

func TestWithContext(t *testing.T) {
	err := InvalidSource("zero byte file").With("path", "/tmp/x.mp4").With("kind", "video")
	if err.Context["path"] != "/tmp/x.mp4" || err.Context["kind"] != "video" {
		t.Fatalf("unexpected context: %v", err.Context)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"disk full", errors.New("av_interleaved_write_frame(): No space left on device"), KindDiskFull},
		{"oom", errors.New("cannot allocate memory"), KindMemoryExceeded},
		{"timeout text", errors.New("operation timed out"), KindTimeout},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"corrupt", errors.New("Invalid data found when processing input"), KindCorruptedFile},
		{"missing input", errors.New("/tmp/in.mp4: No such file or directory"), KindEncodingFailed},
		{"generic", errors.New("exit status 1"), KindEncodingFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			if got.Kind != tc.want {
				t.Fatalf("Classify(%v) = %q, want %q", tc.err, got.Kind, tc.want)
			}
		})
	}
}

func TestClassifyPassthrough(t *testing.T) {
	original := UploadFailed("put object", errors.New("503"))
	got := Classify(fmt.Errorf("uploading: %w", original))
	if got.Kind != KindUploadFailed {
		t.Fatalf("expected classified error to pass through, got %q", got.Kind)
	}
}

func TestDetails(t *testing.T) {
	kind, msg := Details(CompositionFailed("output has no audio"))
	if kind != KindCompositionFailed || msg != "output has no audio" {
		t.Fatalf("Details = %q %q", kind, msg)
	}
	kind, msg = Details(errors.New("plain"))
	if kind != "" || msg != "plain" {
		t.Fatalf("Details(plain) = %q %q", kind, msg)
	}
}
