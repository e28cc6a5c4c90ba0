package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestConsoleHandlerOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "console", Output: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger = NewComponentLogger(logger, "blobstore")
	logger.Info("download complete", String("url", "http://example.com/a.mp4"), Int("attempts", 2))

	line := buf.String()
	if !strings.Contains(line, "INFO blobstore: download complete") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "url=http://example.com/a.mp4") || !strings.Contains(line, "attempts=2") {
		t.Fatalf("missing attrs: %q", line)
	}
}

func TestConsoleHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: "console", Output: &buf})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("suppressed")
	logger.Warn("kept")
	if strings.Contains(buf.String(), "suppressed") {
		t.Fatal("info line should be suppressed at warn level")
	}
	if !strings.Contains(buf.String(), "kept") {
		t.Fatal("warn line missing")
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hello")
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Fatalf("unexpected json output: %q", buf.String())
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAnnotations(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "console", Output: &buf})
	if err != nil {
		t.Fatal(err)
	}

	ctx := WithStage(WithJobID(context.Background(), "job-1"), "encoding")
	WithContext(ctx, logger).Info("progress")

	line := buf.String()
	if !strings.Contains(line, "job_id=job-1") || !strings.Contains(line, "stage=encoding") {
		t.Fatalf("context attrs missing: %q", line)
	}
}
