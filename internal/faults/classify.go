package faults

import (
	"context"
	"errors"
	"os/exec"
	"strings"
)

// Classify maps a low-level error onto a taxonomy kind by inspecting its
// text. Errors already carrying a classification pass through untouched.
// The fallback for unrecognized encoder failures is EncodingFailed.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var fault *Error
	if errors.As(err, &fault) {
		return fault
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout("operation deadline exceeded", err)
	}
	if errors.Is(err, exec.ErrNotFound) {
		return EncodingFailed("encoder binary not found", err)
	}

	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "no space left"), strings.Contains(text, "disk full"):
		return DiskFull("no space left on device", err)
	case strings.Contains(text, "cannot allocate memory"), strings.Contains(text, "out of memory"):
		return MemoryExceeded("encoder ran out of memory", err)
	case strings.Contains(text, "timed out"), strings.Contains(text, "timeout"):
		return Timeout("operation timed out", err)
	case strings.Contains(text, "invalid data found"), strings.Contains(text, "moov atom not found"):
		return CorruptedFile("source could not be decoded", err)
	case strings.Contains(text, "not found"), strings.Contains(text, "no such file"):
		return EncodingFailed("encoder input missing", err)
	default:
		return EncodingFailed("encoder failure", err)
	}
}
