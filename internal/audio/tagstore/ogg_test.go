package tagstore

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// buildSyntheticOggFile writes a minimal 3-packet Ogg stream (identification
// header, a Vorbis comment header with the given fields, and one trailing
// "audio" packet) using the package's own page writer, so the test exercises
// the same pagination code the production Save path uses.
func buildSyntheticOggFile(t *testing.T, path string, fields map[string]string) {
	t.Helper()

	idPacket := append([]byte{1}, []byte("vorbis-id-header-stub")...)

	h := &oggHandle{comment: map[string][]string{}, order: nil}
	for k, v := range fields {
		h.Set(k, v)
	}
	commentPacket := h.buildCommentPacket()

	audioPacket := bytes.Repeat([]byte{0xAB}, 10)

	var out bytes.Buffer
	writeOggPage(&out, 42, 0, 0, 2, paginatePacket(idPacket), idPacket)
	writeOggPage(&out, 42, 1, 0, 0, paginatePacket(commentPacket), commentPacket)
	writeOggPage(&out, 42, 2, 4096, 4, paginatePacket(audioPacket), audioPacket)

	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		t.Fatalf("write synthetic ogg: %v", err)
	}
}

func TestOggVorbisReadFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "track.ogg")
	buildSyntheticOggFile(t, path, map[string]string{
		"TRACKNUMBER": "5",
		"ALBUM":       "Test Album",
	})

	h, err := openOggVorbis(path)
	if err != nil {
		t.Fatalf("openOggVorbis: %v", err)
	}
	if v, ok := h.Get("TRACKNUMBER"); !ok || v != "5" {
		t.Errorf("Get(TRACKNUMBER) = %q, %v; want 5, true", v, ok)
	}
	if v, ok := h.Get("tracknumber"); !ok || v != "5" {
		t.Errorf("Get is case-insensitive: got %q, %v", v, ok)
	}
}

func TestOggVorbisWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "track.ogg")
	buildSyntheticOggFile(t, path, map[string]string{"TRACKNUMBER": "1"})

	h, err := openOggVorbis(path)
	if err != nil {
		t.Fatalf("openOggVorbis: %v", err)
	}
	h.Set("REPLAYGAIN_TRACK_GAIN", FormatGain(-4.2))
	h.Remove("TRACKNUMBER")
	if err := h.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	h2, err := openOggVorbis(path)
	if err != nil {
		t.Fatalf("reopen after save: %v", err)
	}
	if v, ok := h2.Get("REPLAYGAIN_TRACK_GAIN"); !ok || v != "-4.20 dB" {
		t.Errorf("Get(REPLAYGAIN_TRACK_GAIN) = %q, %v; want -4.20 dB, true", v, ok)
	}
	if _, ok := h2.Get("TRACKNUMBER"); ok {
		t.Errorf("TRACKNUMBER should have been removed")
	}
}
