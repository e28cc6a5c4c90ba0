package faults

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies one composition failure classification.
type Kind string

const (
	KindDownloadFailed       Kind = "download_failed"
	KindDownloadTimeout      Kind = "download_timeout"
	KindDownloadSizeExceeded Kind = "download_size_exceeded"
	KindInvalidSource        Kind = "invalid_source"
	KindInvalidFormat        Kind = "invalid_format"
	KindCorruptedFile        Kind = "corrupted_file"
	KindCompositionFailed    Kind = "composition_failed"
	KindAudioSyncFailed      Kind = "audio_sync_failed"
	KindEncodingFailed       Kind = "encoding_failed"
	KindTimeout              Kind = "timeout"
	KindDiskFull             Kind = "disk_full"
	KindMemoryExceeded       Kind = "memory_exceeded"
	KindUploadFailed         Kind = "upload_failed"
	KindUploadTimeout        Kind = "upload_timeout"
	KindThumbnailFailed      Kind = "thumbnail_failed"
)

// recoverableKinds marks the kinds eligible for automatic retry.
var recoverableKinds = map[Kind]bool{
	KindDownloadFailed:       true,
	KindDownloadTimeout:      true,
	KindDownloadSizeExceeded: true,
	KindInvalidSource:        false,
	KindInvalidFormat:        false,
	KindCorruptedFile:        false,
	KindCompositionFailed:    true,
	KindAudioSyncFailed:      true,
	KindEncodingFailed:       false,
	KindTimeout:              true,
	KindDiskFull:             true,
	KindMemoryExceeded:       true,
	KindUploadFailed:         true,
	KindUploadTimeout:        true,
	KindThumbnailFailed:      true,
}

// AllKinds returns the closed set of known kinds.
func AllKinds() []Kind {
	kinds := make([]Kind, 0, len(recoverableKinds))
	for kind := range recoverableKinds {
		kinds = append(kinds, kind)
	}
	return kinds
}

// Error is the single tagged error type carried across the pipeline.
// Construct instances via the factory functions; Context holds free-form
// diagnostic key/values merged in via With.
type Error struct {
	Kind        Kind
	Message     string
	Context     map[string]string
	Recoverable bool
	cause       error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap exposes the wrapped cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// With attaches a diagnostic key/value and returns the same error.
func (e *Error) With(key, value string) *Error {
	if e == nil {
		return nil
	}
	if e.Context == nil {
		e.Context = make(map[string]string, 2)
	}
	e.Context[key] = value
	return e
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:        kind,
		Message:     strings.TrimSpace(message),
		Recoverable: recoverableKinds[kind],
		cause:       cause,
	}
}

// IsRecoverable reports whether err carries a retry-eligible classification.
// Unclassified errors are treated as non-recoverable.
func IsRecoverable(err error) bool {
	var fault *Error
	if errors.As(err, &fault) {
		return fault.Recoverable
	}
	return false
}

// KindOf returns the taxonomy kind carried by err, or "" when unclassified.
func KindOf(err error) Kind {
	var fault *Error
	if errors.As(err, &fault) {
		return fault.Kind
	}
	return ""
}

// Details reports the classified kind and user-facing message for err,
// falling back to the raw error text for unclassified errors.
func Details(err error) (Kind, string) {
	if err == nil {
		return "", ""
	}
	var fault *Error
	if errors.As(err, &fault) {
		msg := strings.TrimSpace(fault.Message)
		if msg == "" {
			msg = string(fault.Kind)
		}
		return fault.Kind, msg
	}
	return "", strings.TrimSpace(err.Error())
}
