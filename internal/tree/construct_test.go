package tree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/uocradio/libguard/internal/audio"
	"github.com/uocradio/libguard/internal/errs"
)

// binaryStub is content that neither looks like text nor matches any of the
// http.DetectContentType signatures, so it sniffs as application/octet-stream
// regardless of the extension it's written under.
var binaryStub = []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}

// jpegStub carries a real JPEG/JFIF header so the content sniff agrees with
// the .jpg extension guess.
var jpegStub = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

func TestConstructEmptyDirectoryRemovedByDefault(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "empty")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	d, err := Construct(dir, nil, Options{}, audio.NewStubAnalyzer(), nil)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if d.Kind != KindEmpty {
		t.Fatalf("expected KindEmpty, got %s", d.Kind)
	}
	if _, statErr := os.Stat(dir); !os.IsNotExist(statErr) {
		t.Error("empty directory should have been removed")
	}
}

func TestConstructEmptyDirectoryKeptInDryRun(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "empty")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	_, err := Construct(dir, nil, Options{DryRun: true}, audio.NewStubAnalyzer(), nil)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if _, statErr := os.Stat(dir); statErr != nil {
		t.Errorf("dry-run must not remove the empty directory: %v", statErr)
	}
}

func TestConstructMarkerFileIgnoresDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ignore"), nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "01 Track.mp3"), binaryStub, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	d, err := Construct(dir, nil, Options{}, audio.NewStubAnalyzer(), nil)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if d.Kind != KindIgnored {
		t.Fatalf("expected KindIgnored, got %s", d.Kind)
	}
	if kinds := d.Errors.Kinds(); len(kinds) != 1 || kinds[0] != errs.Ignore {
		t.Errorf("expected Ignore in error bag, got %v", kinds)
	}
}

func TestConstructArtworkOnlyDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "cover.jpg"), jpegStub, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	d, err := Construct(dir, nil, Options{}, audio.NewStubAnalyzer(), nil)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if d.Kind != KindArtwork {
		t.Fatalf("expected KindArtwork, got %s", d.Kind)
	}
	if !d.PartOfSet() {
		t.Error("an Artwork directory must be marked PART_OF_SET")
	}
}

func TestConstructSubdirsOnlyIsIntermediate(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "Disc 1"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	d, err := Construct(dir, nil, Options{}, audio.NewStubAnalyzer(), nil)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if d.Kind != KindIntermediate {
		t.Fatalf("expected KindIntermediate, got %s", d.Kind)
	}
}

func TestConstructMixedAuxiliaryWithSubdirsIsDirtyIntermediate(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "Sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cover.jpg"), jpegStub, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	d, err := Construct(dir, nil, Options{}, audio.NewStubAnalyzer(), nil)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if d.Kind != KindDirtyIntermediate {
		t.Fatalf("expected KindDirtyIntermediate, got %s", d.Kind)
	}
}

func TestConstructAudioConstructionFailureIsFailed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "01 Track.mp3")
	if err := os.WriteFile(path, binaryStub, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	analyzer := audio.NewStubAnalyzer()
	analyzer.Errors[path] = &audio.AnalyzerError{Class: audio.FailureOther}

	d, err := Construct(dir, nil, Options{}, analyzer, nil)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if d.Kind != KindFailed {
		t.Fatalf("expected KindFailed, got %s", d.Kind)
	}
	if d.Errors.Worst() != errs.InvalidFormat {
		t.Errorf("expected InvalidFormat, got %s", d.Errors.Worst())
	}
}
