package blobstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"clipforge/internal/faults"
)

// SourceKind selects the extension allowlist a source must satisfy.
type SourceKind string

const (
	SourceVideo SourceKind = "video"
	SourceAudio SourceKind = "audio"
	SourceImage SourceKind = "image"
)

var allowedExtensions = map[SourceKind]map[string]bool{
	SourceVideo: {".mp4": true, ".mov": true, ".webm": true, ".mkv": true, ".avi": true},
	SourceAudio: {".mp3": true, ".wav": true, ".m4a": true, ".aac": true, ".ogg": true, ".flac": true},
	SourceImage: {".jpg": true, ".jpeg": true, ".png": true, ".webp": true},
}

// Validate checks a downloaded source before it enters the pipeline:
// the file must exist, be non-empty, sit under the size limit, and
// carry an extension the kind accepts. Stream-level decodability is the
// prober's job, not this one.
func (s *Store) Validate(path string, kind SourceKind) error {
	allowed, ok := allowedExtensions[kind]
	if !ok {
		return fmt.Errorf("unknown source kind %q", kind)
	}

	info, err := os.Stat(path)
	if err != nil {
		return faults.InvalidSource(fmt.Sprintf("source file %s is not readable: %v", filepath.Base(path), err))
	}
	if info.Size() == 0 {
		return faults.InvalidSource(fmt.Sprintf("source file %s is empty", filepath.Base(path)))
	}
	if s.maxBytes > 0 && info.Size() > s.maxBytes {
		return faults.InvalidSource(
			fmt.Sprintf("source file %s is %d bytes, limit is %d", filepath.Base(path), info.Size(), s.maxBytes))
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !allowed[ext] {
		return faults.InvalidFormat(fmt.Sprintf("extension %q is not an accepted %s format", ext, kind))
	}
	return nil
}
