package audio

import (
	"math"
	"testing"
)

func f64(v float64) *float64 { return &v }

func TestQualityNullWhenUnverified(t *testing.T) {
	info := &TrackInfo{SampleRate: 44100, BitRate: 320000, BitDepth: 16}
	if _, ok := Quality(info, CodecMP3, false); ok {
		t.Fatalf("Quality should be null (ok=false) when verification failed")
	}
}

func TestQualityHigherForBetterFormat(t *testing.T) {
	lossy := &TrackInfo{SampleRate: 44100, BitRate: 320000, BitDepth: 16, TrackLRA: f64(10), TrackPeak: f64(0.8)}
	lossless := &TrackInfo{SampleRate: 44100, BitRate: 1000000, BitDepth: 16, TrackLRA: f64(10), TrackPeak: f64(0.8)}

	qLossy, ok := Quality(lossy, CodecMP3, true)
	if !ok {
		t.Fatal("expected verified quality")
	}
	qLossless, ok := Quality(lossless, CodecFLAC, true)
	if !ok {
		t.Fatal("expected verified quality")
	}
	if qLossless <= qLossy {
		t.Errorf("FLAC quality %v should exceed MP3 quality %v", qLossless, qLossy)
	}
}

func TestNormalizeProducesFiniteValues(t *testing.T) {
	qs := []float64{-0.3, 0.1, 0.4}
	norm := Normalize(qs)
	if len(norm) != len(qs) {
		t.Fatalf("expected %d normalized values, got %d", len(qs), len(norm))
	}
	for i, v := range norm {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("normalized value %d is not finite: %v", i, v)
		}
	}
}

func TestCompareDurationEqualWithinTolerance(t *testing.T) {
	self := &TrackInfo{DurationSecs: 100.0}
	other := &TrackInfo{DurationSecs: 101.5}
	score, ok := CompareDuration(self, other, nil)
	if !ok || score != 0 {
		t.Errorf("CompareDuration = %v, %v; want 0, true", score, ok)
	}
}

func TestCompareDurationZeroSideLoses(t *testing.T) {
	self := &TrackInfo{DurationSecs: 0}
	other := &TrackInfo{DurationSecs: 180}
	score, ok := CompareDuration(self, other, nil)
	if !ok || score >= 0 {
		t.Errorf("CompareDuration = %v, %v; want negative score favoring other", score, ok)
	}
}

func TestCompareDurationFarApartNoCatalogIsInconsistent(t *testing.T) {
	self := &TrackInfo{DurationSecs: 100}
	other := &TrackInfo{DurationSecs: 200}
	_, ok := CompareDuration(self, other, nil)
	if ok {
		t.Errorf("CompareDuration should be null (INCONSISTENT) beyond the close tolerance with no catalog")
	}
}

type stubCatalog struct {
	duration float64
	ok       bool
}

func (s stubCatalog) Lookup(albumID string, trackNumber int) (float64, bool) {
	return s.duration, s.ok
}

func TestCompareDurationConsultsCatalogBeyondCloseTolerance(t *testing.T) {
	self := &TrackInfo{AlbumID: "a1", TrackNumber: 3, DurationSecs: 100}
	other := &TrackInfo{AlbumID: "a1", TrackNumber: 3, DurationSecs: 112}
	score, ok := CompareDuration(self, other, stubCatalog{duration: 99, ok: true})
	if !ok {
		t.Fatal("expected a comparable score with a catalog hit")
	}
	if score <= 0 {
		t.Errorf("self (closer to canonical) should win with a positive score, got %v", score)
	}
}

func TestStandaloneTracksNeverEqual(t *testing.T) {
	a := &TrackInfo{}
	b := &TrackInfo{}
	a.NewStandaloneIdentity()
	b.NewStandaloneIdentity()
	if a.Equals(b) {
		t.Error("two distinct standalone tracks must never compare equal")
	}
	if !a.Equals(a) {
		t.Error("a standalone track must equal itself")
	}
}

func TestLessNotComparableAcrossDifferentIdentity(t *testing.T) {
	a := &TrackInfo{TrackNumber: 1, AlbumID: "x"}
	b := &TrackInfo{TrackNumber: 2, AlbumID: "x"}
	_, comparable := Less(a, b, 0.5, 0.5, nil)
	if comparable {
		t.Error("tracks with different identity tuples should not be comparable")
	}
}
