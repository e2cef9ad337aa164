package audio

// StubAnalyzer is a deterministic, in-memory Analyzer for tests: the
// AudioAnalyzer boundary is modeled as a swappable interface so tests can
// inject canned probe results rather than shell out to a real decoder.
// Production callers wire a real analyzer (ffprobe/ffmpeg, GStreamer, or
// similar); LibraryGuard ships none.
type StubAnalyzer struct {
	Probes map[string]*TrackProbe
	Errors map[string]*AnalyzerError
}

// NewStubAnalyzer returns an analyzer with no registered responses.
func NewStubAnalyzer() *StubAnalyzer {
	return &StubAnalyzer{
		Probes: make(map[string]*TrackProbe),
		Errors: make(map[string]*AnalyzerError),
	}
}

// Analyze returns whatever was registered for path via Probes/Errors. An
// unregistered path is treated as an INVALID_FORMAT failure with no
// partial data, the same as any other unrecognized analyzer response.
func (s *StubAnalyzer) Analyze(path string, decode, ebur128, lra bool) (*TrackProbe, *AnalyzerError) {
	if err, ok := s.Errors[path]; ok {
		return nil, err
	}
	if probe, ok := s.Probes[path]; ok {
		return probe, nil
	}
	return nil, &AnalyzerError{Class: FailureOther}
}

// ErrNoAnalyzerConfigured is the error every UnconfiguredAnalyzer call
// returns. Callers that key off *AnalyzerError.Err can detect it directly
// instead of matching on a formatted string.
var ErrNoAnalyzerConfigured = errNoAnalyzer{}

type errNoAnalyzer struct{}

func (errNoAnalyzer) Error() string {
	return "no AudioAnalyzer configured: wire a real decoder (ffprobe/ffmpeg, GStreamer, or similar) before running an audit"
}

// UnconfiguredAnalyzer is what a caller wires in place of a real Analyzer
// when none has been set up. Unlike StubAnalyzer it recognizes no file at
// all: every call fails with the same explicit ErrNoAnalyzerConfigured
// error under FailureOther, which Construct records as INVALID_FORMAT, so
// every file reports INVALID_FORMAT.
type UnconfiguredAnalyzer struct{}

// NewUnconfiguredAnalyzer returns the explicitly-unconfigured analyzer.
func NewUnconfiguredAnalyzer() *UnconfiguredAnalyzer {
	return &UnconfiguredAnalyzer{}
}

func (UnconfiguredAnalyzer) Analyze(path string, decode, ebur128, lra bool) (*TrackProbe, *AnalyzerError) {
	return nil, &AnalyzerError{Class: FailureOther, Err: ErrNoAnalyzerConfigured}
}
