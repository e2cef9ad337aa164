// Package tagstore implements the TagStore external collaborator —
// open(path, codec) returns a TagHandle with get(key)/set(key,
// value)/remove(key)/save() — for three tag dialects: ID3v2 user frames
// (MP3), Vorbis comments (FLAC, and best-effort for Ogg), and APEv2
// (WavPack).
//
// The tag container parser is treated as an external collaborator; this
// package is the one production adapter LibraryGuard ships, backed by
// github.com/bogem/id3v2/v2 and the github.com/go-flac family for two of
// the dialects, plus an in-repo APEv2 reader for the third (see
// DESIGN.md).
package tagstore

import "fmt"

// Handle is an open tag container for a single file. Callers must call
// Save to persist any Set/Remove calls; AudioFile.Finalize does this
// explicitly rather than relying on Close to flush.
type Handle interface {
	// Get returns the raw string value for key, or ("", false) if absent.
	Get(key string) (string, bool)
	// Set assigns key to value, creating the frame/comment/item if absent.
	Set(key, value string)
	// Remove deletes key if present; a no-op otherwise.
	Remove(key string)
	// Save writes all pending changes back to the file atomically.
	Save() error
	// Close releases any resources held by the handle without saving.
	Close() error
}

// KeySet names the identity and replay-gain keys for one tag dialect: the
// actual tag key varies by codec, so callers look it up through a
// per-codec constants table instead of hardcoding one dialect's spelling.
type KeySet struct {
	Track              string // "n/N" combined field, or empty if split
	TrackNumber        string // split track-number field
	TrackTotal         string // split total-tracks field
	Disc               string // "d/D" combined field, or empty if split
	DiscNumber         string
	DiscTotal          string
	AlbumID            string
	ReleaseGroupID     string
	ReplayGainTrackGain string
	ReplayGainTrackPeak string
	ReplayGainTrackRange string
	ReplayGainAlbumGain string
	ReplayGainAlbumPeak string
	ReferenceLoudness   string // legacy key removed on write
}

// Keys returns the key set for the given dialect name ("id3v2", "vorbis",
// "apev2").
func Keys(dialect string) KeySet {
	switch dialect {
	case "id3v2":
		return KeySet{
			Track: "TRCK", Disc: "TPOS",
			AlbumID:        "TXXX:MusicBrainz Album Id",
			ReleaseGroupID: "TXXX:MusicBrainz Release Group Id",
			ReplayGainTrackGain:  "TXXX:REPLAYGAIN_TRACK_GAIN",
			ReplayGainTrackPeak:  "TXXX:REPLAYGAIN_TRACK_PEAK",
			ReplayGainTrackRange: "TXXX:REPLAYGAIN_TRACK_RANGE",
			ReplayGainAlbumGain:  "TXXX:REPLAYGAIN_ALBUM_GAIN",
			ReplayGainAlbumPeak:  "TXXX:REPLAYGAIN_ALBUM_PEAK",
			ReferenceLoudness:    "TXXX:REPLAYGAIN_REFERENCE_LOUDNESS",
		}
	case "vorbis":
		return KeySet{
			TrackNumber: "TRACKNUMBER", TrackTotal: "TOTALTRACKS",
			DiscNumber: "DISCNUMBER", DiscTotal: "TOTALDISCS",
			AlbumID:        "MUSICBRAINZ_ALBUMID",
			ReleaseGroupID: "MUSICBRAINZ_RELEASEGROUPID",
			ReplayGainTrackGain:  "REPLAYGAIN_TRACK_GAIN",
			ReplayGainTrackPeak:  "REPLAYGAIN_TRACK_PEAK",
			ReplayGainTrackRange: "REPLAYGAIN_TRACK_RANGE",
			ReplayGainAlbumGain:  "REPLAYGAIN_ALBUM_GAIN",
			ReplayGainAlbumPeak:  "REPLAYGAIN_ALBUM_PEAK",
			ReferenceLoudness:    "REPLAYGAIN_REFERENCE_LOUDNESS",
		}
	case "apev2":
		return KeySet{
			Track: "Track", Disc: "Disc",
			AlbumID:        "MusicBrainz Album Id",
			ReleaseGroupID: "MusicBrainz Release Group Id",
			ReplayGainTrackGain:  "REPLAYGAIN_TRACK_GAIN",
			ReplayGainTrackPeak:  "REPLAYGAIN_TRACK_PEAK",
			ReplayGainTrackRange: "REPLAYGAIN_TRACK_RANGE",
			ReplayGainAlbumGain:  "REPLAYGAIN_ALBUM_GAIN",
			ReplayGainAlbumPeak:  "REPLAYGAIN_ALBUM_PEAK",
			ReferenceLoudness:    "REPLAYGAIN_REFERENCE_LOUDNESS",
		}
	default:
		return KeySet{}
	}
}

// FormatGain renders a gain or LRA value in the on-disk replay-gain
// convention: "%.2f dB".
func FormatGain(db float64) string {
	return fmt.Sprintf("%.2f dB", db)
}

// FormatPeak renders a peak value in the on-disk replay-gain convention:
// "%.6f".
func FormatPeak(peak float64) string {
	return fmt.Sprintf("%.6f", peak)
}

// Open dispatches to the concrete implementation for the given container
// format ("mp3", "flac", "ogg", "wv"). Both "flac" and "ogg" speak the
// "vorbis" key dialect (see Keys) but need different container-level
// read/write code, hence dispatch is by container, not by dialect.
func Open(path, container string) (Handle, error) {
	switch container {
	case "mp3":
		return openID3(path)
	case "flac":
		return openFLACVorbis(path)
	case "ogg":
		return openOggVorbis(path)
	case "wv":
		return openAPEv2(path)
	default:
		return nil, fmt.Errorf("tagstore: unsupported container %q", container)
	}
}
