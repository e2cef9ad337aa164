// Package audio implements the AudioFile record: construction from an
// AudioAnalyzer probe and a TagStore, tag synchronization, the quality
// metric used for duplicate resolution, and duration reconciliation.
package audio

import "strings"

// Codec is the closed enum of supported audio codecs.
type Codec int

const (
	CodecUnknown Codec = iota
	CodecMP3
	CodecVorbis
	CodecFLAC
	CodecWavPack
)

// CodecParams holds the per-codec quality-gate constants.
type CodecParams struct {
	Extension    string
	MinBitrate   int // bits per second; 0 means "no minimum"
	FormatWeight float64
	TagDialect   string
}

var codecTable = map[Codec]CodecParams{
	CodecMP3:    {Extension: ".mp3", MinBitrate: 128000, FormatWeight: 0.55, TagDialect: "id3v2"},
	CodecVorbis: {Extension: ".ogg", MinBitrate: 112000, FormatWeight: 0.70, TagDialect: "vorbis"},
	CodecFLAC:   {Extension: ".flac", MinBitrate: 0, FormatWeight: 1.00, TagDialect: "vorbis"},
	CodecWavPack: {Extension: ".wv", MinBitrate: 0, FormatWeight: 0.95, TagDialect: "apev2"},
}

// Params returns the codec's table entry. The zero value is returned (with
// ok=false) for CodecUnknown.
func (c Codec) Params() (CodecParams, bool) {
	p, ok := codecTable[c]
	return p, ok
}

func (c Codec) String() string {
	switch c {
	case CodecMP3:
		return "MP3"
	case CodecVorbis:
		return "Vorbis"
	case CodecFLAC:
		return "FLAC"
	case CodecWavPack:
		return "WavPack"
	default:
		return "Unknown"
	}
}

// CodecFromFormatName maps an AudioAnalyzer-reported format_name to a Codec.
func CodecFromFormatName(formatName string) Codec {
	switch strings.ToLower(formatName) {
	case "mp3", "mpeg", "mpeg audio", "mpeg-1 audio layer iii", "mp3 (mpeg audio layer 3)":
		return CodecMP3
	case "vorbis", "ogg", "ogg vorbis", "oggvorbis":
		return CodecVorbis
	case "flac":
		return CodecFLAC
	case "wavpack", "wv":
		return CodecWavPack
	default:
		return CodecUnknown
	}
}

// CodecFromExtension is used when the analyzer's format name is ambiguous
// and a fallback to the file extension is needed; a mismatch between the
// two is warn-only.
func CodecFromExtension(ext string) Codec {
	switch strings.ToLower(ext) {
	case ".mp3":
		return CodecMP3
	case ".ogg", ".oga":
		return CodecVorbis
	case ".flac":
		return CodecFLAC
	case ".wv":
		return CodecWavPack
	default:
		return CodecUnknown
	}
}

// GlobalMinSampleRate and GlobalMinBitDepth are the codec-independent audio
// minima.
const (
	GlobalMinSampleRate = 44100
	GlobalMinBitDepth   = 16
)
