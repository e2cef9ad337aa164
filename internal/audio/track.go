package audio

import (
	"math"

	"github.com/google/uuid"
)

// referenceLoudnessLUFS is the EBU R128 reference level the album-loudness
// re-integration formula targets (confirmed against the original Python
// implementation's LgConsts.RGAIN_REF_LVL passed to GStreamer's rganalysis
// element).
const referenceLoudnessLUFS = -18.0

// Quality metric reference constants.
const (
	qualitySR0  = 48000.0
	qualityBD0  = 24.0
	qualityBR0  = 705600.0
	qualityLRA0 = 10.0
)

// TrackProbe is produced by the external AudioAnalyzer collaborator. LibraryGuard never decodes audio itself; this is the data
// contract a production analyzer (ffprobe/ffmpeg, GStreamer, or any other
// decoder) must fill in.
type TrackProbe struct {
	FormatName        string
	SampleRate        int
	BitRate           int
	BitDepth          int
	DurationSecs      float64
	DurationDiff      float64
	TotalFrames       int64
	RG2Gain           *float64 // track_gain, nil if not (re-)computed this run
	SamplePeak        *float64
	EBUR128LRA        *float64
	EBUR128ILoud      *float64
	RelativeThreshold *float64
}

// AnalyzerFailureClass is how the AudioAnalyzer reports what went wrong
//: CODEC failures retain a partial probe and degrade to
// CORRUPTED; EBU128 failures keep the track usable but lose loudness data;
// anything else aborts the file.
type AnalyzerFailureClass int

const (
	FailureNone AnalyzerFailureClass = iota
	FailureCodec
	FailureEBU128
	FailureOther
)

// AnalyzerError is the error type AudioAnalyzer.Analyze returns on failure.
type AnalyzerError struct {
	Class   AnalyzerFailureClass
	Partial *TrackProbe // non-nil if a partial probe could still be recovered
	Err     error
}

func (e *AnalyzerError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "analyzer failure"
}

func (e *AnalyzerError) Unwrap() error { return e.Err }

// Analyzer is the external AudioAnalyzer collaborator:
// Analyze(path, decode, ebur128, lra) returns either a TrackProbe or an
// AnalyzerError tagged CODEC/EBU128/etc, optionally partial. LibraryGuard
// ships no production implementation of this interface; callers provide
// one (ffprobe/ffmpeg subprocess, a GStreamer binding, or a test stub).
type Analyzer interface {
	Analyze(path string, decode, ebur128, lra bool) (*TrackProbe, *AnalyzerError)
}

// TrackInfo is owned by AudioFile and frozen after construction.
type TrackInfo struct {
	// identity
	TrackNumber     int
	NumTracks       int
	DiscNumber      int
	NumDiscs        int
	AlbumID         string
	ReleaseGroupID  string
	standaloneKey   string // set only for standalone tracks; see Identity()

	// loudness
	TrackGain  *float64
	TrackPeak  *float64
	TrackLRA   *float64
	TrackILoud *float64
	TrackRThres *float64
	AlbumGain  *float64
	AlbumPeak  *float64

	// stream
	SampleRate   int
	BitRate      int
	BitDepth     int
	DurationSecs float64
	DurationDiff float64
	TotalFrames  int64
}

// IsStandalone reports whether this TrackInfo describes a standalone track:
// no album_id, no release_group_id, no track/disc counts.
func (t *TrackInfo) IsStandalone() bool {
	return t.AlbumID == "" && t.ReleaseGroupID == "" &&
		t.NumTracks == 0 && t.NumDiscs == 0
}

// NewStandaloneIdentity assigns a freshly generated unique key so standalone
// tracks never collide under identity equality.
func (t *TrackInfo) NewStandaloneIdentity() {
	t.standaloneKey = uuid.NewString()
}

// identityTuple is what Equals compares for ordinary album tracks.
type identityTuple struct {
	trackNumber, numTracks, discNumber, numDiscs int
	albumID, releaseGroupID                      string
}

// Equals implements its TrackInfo equality: "Equality of two
// TrackInfos is defined over the identity tuple; for standalone tracks...
// identity is a freshly generated unique key combined with stream
// characteristics, so standalone tracks never collide."
func (t *TrackInfo) Equals(other *TrackInfo) bool {
	if t.IsStandalone() || other.IsStandalone() {
		if t.standaloneKey == "" || other.standaloneKey == "" {
			return false
		}
		return t.standaloneKey == other.standaloneKey &&
			t.SampleRate == other.SampleRate &&
			t.BitRate == other.BitRate &&
			t.BitDepth == other.BitDepth &&
			t.DurationSecs == other.DurationSecs
	}
	a := identityTuple{t.TrackNumber, t.NumTracks, t.DiscNumber, t.NumDiscs, t.AlbumID, t.ReleaseGroupID}
	b := identityTuple{other.TrackNumber, other.NumTracks, other.DiscNumber, other.NumDiscs, other.AlbumID, other.ReleaseGroupID}
	return a == b
}

func clamp(lo, hi, v float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Quality computes Q for an AudioFile whose verification
// succeeded; codec supplies the format_weight. Returns (Q, true), or
// (0, false) if verification failed ("Q = null" forces the file to lose any
// comparison).
func Quality(t *TrackInfo, codec Codec, verified bool) (float64, bool) {
	if !verified {
		return 0, false
	}
	params, _ := codec.Params()

	sr := math.Log2(float64(t.SampleRate) / qualitySR0)
	bd := math.Log2(float64(t.BitDepth) / qualityBD0)
	br := math.Log2(float64(t.BitRate) / qualityBR0)

	var dr float64
	if t.TrackLRA == nil {
		dr = 0.5
	} else {
		lra := *t.TrackLRA
		dr = clamp(0.2, 1.0, math.Exp(-0.5*math.Pow(lra/qualityLRA0-1, 2)/0.5))
	}

	pk := 1.0
	if t.TrackPeak != nil && *t.TrackPeak > 0.95 {
		pk = 1.0 - (*t.TrackPeak-0.95)*2
		if t.TrackLRA != nil && *t.TrackLRA < 6.0 {
			pk -= (6.0 - *t.TrackLRA) / 60
		}
	}

	q := 0.25*sr + 0.25*bd + 0.15*br + 0.15*dr + 0.10*pk + 1.1*params.FormatWeight
	return q, true
}

// Normalize implements "Q is later normalized at directory level:
// Q' = Q / (Q + scale) where scale = mean(Q) + stdev(Q) over a duplicate
// group".
func Normalize(qs []float64) []float64 {
	n := float64(len(qs))
	if n == 0 {
		return nil
	}
	var sum float64
	for _, q := range qs {
		sum += q
	}
	mean := sum / n
	var variance float64
	for _, q := range qs {
		d := q - mean
		variance += d * d
	}
	stdev := math.Sqrt(variance / n)
	scale := mean + stdev

	out := make([]float64, len(qs))
	for i, q := range qs {
		if q+scale == 0 {
			out[i] = 0
			continue
		}
		out[i] = q / (q + scale)
	}
	return out
}

// durationEqualTolerance and durationCloseTolerance are the (2s, 5s) pair
// kept as unexplained calibration constants rather than re-derived.
const (
	durationEqualTolerance = 2.0
	durationCloseTolerance = 5.0
)

// ReleaseCatalog is the optional external collaborator used to arbitrate
// duration disagreements beyond the simple tolerances: modeled as a
// swappable interface so tests can inject a deterministic stub instead of
// a real network lookup.
type ReleaseCatalog interface {
	// Lookup returns the canonical duration for (albumID, trackNumber), or
	// (0, false) if unknown/unavailable/timed out.
	Lookup(albumID string, trackNumber int) (durationSecs float64, ok bool)
}

// CompareDuration implements compare_duration. Positive favors self,
// negative favors other, by the same convention as the Q term in Less.
// Returns a score (as a float64 since a ±0.5 fallback is possible
// alongside integer-valued outcomes), or (0, false) for "null" (caller
// must raise INCONSISTENT).
func CompareDuration(self, other *TrackInfo, catalog ReleaseCatalog) (float64, bool) {
	if self.DurationSecs == 0 && other.DurationSecs != 0 {
		return -1, true // other wins
	}
	if other.DurationSecs == 0 && self.DurationSecs != 0 {
		return 1, true // self wins
	}
	if self.DurationSecs == 0 && other.DurationSecs == 0 {
		return 0, true
	}

	delta := self.DurationSecs - other.DurationSecs
	if math.Abs(delta) <= durationEqualTolerance {
		return 0, true
	}

	if catalog != nil {
		canonical, ok := catalog.Lookup(self.AlbumID, self.TrackNumber)
		if ok {
			selfDiff := math.Abs(self.DurationSecs - canonical)
			otherDiff := math.Abs(other.DurationSecs - canonical)
			if math.Abs(selfDiff-otherDiff) >= 2.0 {
				if selfDiff < otherDiff {
					return 1, true
				}
				return -1, true
			}
			return 0, true
		}
	}

	if math.Abs(delta) <= durationCloseTolerance {
		// ±0.5 to the longer track.
		if delta > 0 {
			return 0.5, true
		}
		return -0.5, true
	}

	return 0, false
}

// Less implements the AudioFile ordering: "final =
// 0.6*(Q'_self - Q'_other) + 0.4*duration_score; ordering is by final".
// qSelf/qOther must already be the normalized Q' values. Returns
// (isLess, comparable): comparable is false iff identities differ or the
// duration score was null (caller must raise INCONSISTENT).
func Less(self, other *TrackInfo, qSelfNorm, qOtherNorm float64, catalog ReleaseCatalog) (bool, bool) {
	if !self.Equals(other) {
		return false, false
	}
	durationScore, ok := CompareDuration(self, other, catalog)
	if !ok {
		return false, false
	}
	final := 0.6*(qSelfNorm-qOtherNorm) + 0.4*durationScore
	return final < 0, true
}
