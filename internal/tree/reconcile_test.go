package tree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/uocradio/libguard/internal/audio"
	"github.com/uocradio/libguard/internal/errs"
)

func f64(v float64) *float64 { return &v }

func audioFile(t *testing.T, dir, name string, info *audio.TrackInfo) *audio.File {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("stub"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return &audio.File{Path: path, Codec: audio.CodecFLAC, State: errs.OK, Info: info, QValid: true}
}

func TestReconcileHappyAlbum(t *testing.T) {
	dir := t.TempDir()
	d := newDirectory(dir, nil, Options{})
	d.Flags |= HasAudio
	d.AudioFiles = []*audio.File{
		audioFile(t, dir, "01 A.flac", &audio.TrackInfo{TrackNumber: 1, NumTracks: 3, NumDiscs: 1, DiscNumber: 1, AlbumID: "X", ReleaseGroupID: "G"}),
		audioFile(t, dir, "02 B.flac", &audio.TrackInfo{TrackNumber: 2, NumTracks: 3, NumDiscs: 1, DiscNumber: 1, AlbumID: "X", ReleaseGroupID: "G"}),
		audioFile(t, dir, "03 C.flac", &audio.TrackInfo{TrackNumber: 3, NumTracks: 3, NumDiscs: 1, DiscNumber: 1, AlbumID: "X", ReleaseGroupID: "G"}),
	}

	reconcileAudio(d, nil)

	if d.Kind != KindAudioAlbum {
		t.Fatalf("expected KindAudioAlbum, got %s", d.Kind)
	}
	if !d.Errors.Empty() {
		t.Fatalf("expected no errors, got %v", d.Errors.Kinds())
	}
	if !d.Flags.Has(NeedsRgain) {
		t.Error("expected NEEDS_RGAIN since no album_gain/peak tags present")
	}
}

func TestReconcileMultiDiscMarksPartOfSet(t *testing.T) {
	dir := t.TempDir()
	d := newDirectory(dir, nil, Options{})
	d.AudioFiles = []*audio.File{
		audioFile(t, dir, "01 A.flac", &audio.TrackInfo{TrackNumber: 1, NumTracks: 1, NumDiscs: 2, DiscNumber: 1, AlbumID: "X", ReleaseGroupID: "G"}),
	}

	reconcileAudio(d, nil)

	if d.Kind != KindAudioDisc {
		t.Fatalf("expected KindAudioDisc, got %s", d.Kind)
	}
	if !d.PartOfSet() {
		t.Error("expected PART_OF_SET for num_discs > 1")
	}
}

func TestReconcileTrackNumberGapIsInconsistent(t *testing.T) {
	dir := t.TempDir()
	d := newDirectory(dir, nil, Options{})
	d.AudioFiles = []*audio.File{
		audioFile(t, dir, "01 A.flac", &audio.TrackInfo{TrackNumber: 1, NumTracks: 2, NumDiscs: 1, DiscNumber: 1, AlbumID: "X"}),
		audioFile(t, dir, "03 C.flac", &audio.TrackInfo{TrackNumber: 3, NumTracks: 2, NumDiscs: 1, DiscNumber: 1, AlbumID: "X"}),
	}

	reconcileAudio(d, nil)

	if d.Kind != KindFailed {
		t.Fatalf("expected KindFailed, got %s", d.Kind)
	}
	if d.Errors.Worst() != errs.Inconsistent {
		t.Errorf("expected Inconsistent, got %s", d.Errors.Worst())
	}
}

func TestReconcileDuplicateTrackNumberSetsCheckDuplicates(t *testing.T) {
	dir := t.TempDir()
	d := newDirectory(dir, nil, Options{})
	d.AudioFiles = []*audio.File{
		audioFile(t, dir, "01 A.flac", &audio.TrackInfo{TrackNumber: 1, NumTracks: 1, NumDiscs: 1, DiscNumber: 1, AlbumID: "X"}),
		audioFile(t, dir, "01 A.mp3", &audio.TrackInfo{TrackNumber: 1, NumTracks: 1, NumDiscs: 1, DiscNumber: 1, AlbumID: "X"}),
	}

	reconcileAudio(d, nil)

	if d.Kind != KindAudioAlbum {
		t.Fatalf("expected KindAudioAlbum, got %s (errors=%v)", d.Kind, d.Errors.Kinds())
	}
	if !d.Flags.Has(CheckDuplicates) {
		t.Error("expected CHECK_DUPLICATES for a repeated track number")
	}
}

func TestReconcileMissingAlbumIDIsMissingTags(t *testing.T) {
	dir := t.TempDir()
	d := newDirectory(dir, nil, Options{})
	d.AudioFiles = []*audio.File{
		audioFile(t, dir, "01 A.flac", &audio.TrackInfo{TrackNumber: 1, NumTracks: 1, NumDiscs: 1, DiscNumber: 1}),
	}

	reconcileAudio(d, nil)

	if d.Errors.Worst() != errs.MissingTags {
		t.Errorf("expected MissingTags, got %s", d.Errors.Worst())
	}
}

func TestReconcileFilenamePrefixMismatchIsInconsistent(t *testing.T) {
	dir := t.TempDir()
	d := newDirectory(dir, nil, Options{})
	d.AudioFiles = []*audio.File{
		audioFile(t, dir, "02 Wrong Prefix.flac", &audio.TrackInfo{TrackNumber: 1, NumTracks: 1, NumDiscs: 1, DiscNumber: 1, AlbumID: "X"}),
	}

	reconcileAudio(d, nil)

	if d.Errors.Worst() != errs.Inconsistent {
		t.Errorf("expected Inconsistent, got %s", d.Errors.Worst())
	}
}

func TestReconcileStandaloneSkipsChecks(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, standaloneBasename)
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	d := newDirectory(dir, nil, Options{})
	d.AudioFiles = []*audio.File{
		audioFile(t, dir, "weird-name.flac", &audio.TrackInfo{}),
	}

	reconcileAudio(d, nil)

	if d.Kind != KindAudioStandalone {
		t.Fatalf("expected KindAudioStandalone, got %s", d.Kind)
	}
	if !d.Flags.Has(Standalone) {
		t.Error("expected STANDALONE flag")
	}
}
