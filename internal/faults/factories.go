package faults

import "fmt"

// DownloadFailed marks a transient source fetch failure.
func DownloadFailed(message string, cause error) *Error {
	return newError(KindDownloadFailed, message, cause)
}

// DownloadTimeout marks a source fetch that exceeded its deadline.
func DownloadTimeout(message string, cause error) *Error {
	return newError(KindDownloadTimeout, message, cause)
}

// DownloadSizeExceeded marks a fetch aborted for exceeding the byte limit.
func DownloadSizeExceeded(url string, limit int64) *Error {
	return newError(KindDownloadSizeExceeded, fmt.Sprintf("download exceeds %d byte limit", limit), nil).
		With("url", url)
}

// InvalidSource marks a source file that fails validation.
func InvalidSource(message string) *Error {
	return newError(KindInvalidSource, message, nil)
}

// InvalidFormat marks a file whose container or extension is not accepted.
func InvalidFormat(message string) *Error {
	return newError(KindInvalidFormat, message, nil)
}

// CorruptedFile marks a source the prober could not decode.
func CorruptedFile(message string, cause error) *Error {
	return newError(KindCorruptedFile, message, cause)
}

// CompositionFailed marks an encode whose output failed validation.
func CompositionFailed(message string) *Error {
	return newError(KindCompositionFailed, message, nil)
}

// AudioSyncFailed marks a failed audio duration normalization.
func AudioSyncFailed(message string, cause error) *Error {
	return newError(KindAudioSyncFailed, message, cause)
}

// EncodingFailed marks an encoder process error.
func EncodingFailed(message string, cause error) *Error {
	return newError(KindEncodingFailed, message, cause)
}

// Timeout marks an operation that ran out of wall-clock budget.
func Timeout(message string, cause error) *Error {
	return newError(KindTimeout, message, cause)
}

// DiskFull marks scratch or output storage exhaustion.
func DiskFull(message string, cause error) *Error {
	return newError(KindDiskFull, message, cause)
}

// MemoryExceeded marks encoder memory exhaustion.
func MemoryExceeded(message string, cause error) *Error {
	return newError(KindMemoryExceeded, message, cause)
}

// UploadFailed marks a durable-storage write failure.
func UploadFailed(message string, cause error) *Error {
	return newError(KindUploadFailed, message, cause)
}

// UploadTimeout marks a durable-storage write that exceeded its deadline.
func UploadTimeout(message string, cause error) *Error {
	return newError(KindUploadTimeout, message, cause)
}

// ThumbnailFailed marks a thumbnail derivation failure. Callers fall back
// to the placeholder URI instead of failing the job.
func ThumbnailFailed(message string, cause error) *Error {
	return newError(KindThumbnailFailed, message, cause)
}
