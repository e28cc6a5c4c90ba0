package blobstore

import (
	"path/filepath"
	"testing"

	"clipforge/internal/faults"
	"clipforge/internal/testsupport"
)

func writeScratchFile(t *testing.T, store *Store, name string, size int) string {
	t.Helper()
	path := filepath.Join(store.ScratchDir(), name)
	testsupport.WriteMediaFile(t, path, int64(size))
	return path
}

func TestValidateAcceptsKnownFormats(t *testing.T) {
	store := newTestStore(t)

	cases := []struct {
		name string
		kind SourceKind
	}{
		{"voice.mp3", SourceAudio},
		{"voice.WAV", SourceAudio},
		{"visuals.mp4", SourceVideo},
		{"visuals.webm", SourceVideo},
		{"still.png", SourceImage},
	}
	for _, tc := range cases {
		path := writeScratchFile(t, store, tc.name, 128)
		if err := store.Validate(path, tc.kind); err != nil {
			t.Errorf("Validate(%s, %s) = %v", tc.name, tc.kind, err)
		}
	}
}

func TestValidateRejectsEmptyFile(t *testing.T) {
	store := newTestStore(t)
	path := writeScratchFile(t, store, "empty.mp4", 0)

	err := store.Validate(path, SourceVideo)
	if faults.KindOf(err) != faults.KindInvalidSource {
		t.Fatalf("kind = %v, want InvalidSource", faults.KindOf(err))
	}
}

func TestValidateRejectsOversizedFile(t *testing.T) {
	store := newTestStore(t)
	store.maxBytes = 64
	path := writeScratchFile(t, store, "big.mp4", 128)

	err := store.Validate(path, SourceVideo)
	if faults.KindOf(err) != faults.KindInvalidSource {
		t.Fatalf("kind = %v, want InvalidSource", faults.KindOf(err))
	}
}

func TestValidateRejectsUnknownExtension(t *testing.T) {
	store := newTestStore(t)
	path := writeScratchFile(t, store, "weird.xyz", 128)

	err := store.Validate(path, SourceVideo)
	if faults.KindOf(err) != faults.KindInvalidFormat {
		t.Fatalf("kind = %v, want InvalidFormat", faults.KindOf(err))
	}
	if faults.IsRecoverable(err) {
		t.Fatal("format faults must not be retried")
	}
}

func TestValidateRejectsCrossKindExtension(t *testing.T) {
	store := newTestStore(t)
	path := writeScratchFile(t, store, "voice.mp3", 128)

	if err := store.Validate(path, SourceVideo); faults.KindOf(err) != faults.KindInvalidFormat {
		t.Fatalf("audio file accepted as video: %v", err)
	}
}

func TestValidateRejectsMissingFile(t *testing.T) {
	store := newTestStore(t)

	err := store.Validate(filepath.Join(store.ScratchDir(), "gone.mp4"), SourceVideo)
	if faults.KindOf(err) != faults.KindInvalidSource {
		t.Fatalf("kind = %v, want InvalidSource", faults.KindOf(err))
	}
}
