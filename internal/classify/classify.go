// Package classify implements the classification oracle: given a
// filesystem entry it decides the file's FormatCategory from its extension
// and a content sniff, following a fixed table of agreement/disagreement
// rules between the two signals.
package classify

import (
	"errors"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Category is the semantic classification of a file.
type Category int

const (
	Unsupported Category = iota
	Audio
	Video
	Artwork
	Text
	Marker
)

func (c Category) String() string {
	switch c {
	case Audio:
		return "audio"
	case Video:
		return "video"
	case Artwork:
		return "artwork"
	case Text:
		return "text"
	case Marker:
		return "marker"
	default:
		return "unsupported"
	}
}

// ErrUnsupported is returned (as a warning, not a fatal condition at the
// caller) when neither the extension guess nor the content sniff can be
// reconciled into a known category.
var ErrUnsupported = errors.New("classify: unsupported file")

var markerBasenames = map[string]bool{
	"lock":   true,
	"locked": true,
	"ignore": true,
}

// sniffBudget is how many leading bytes are read for the content sniff;
// http.DetectContentType never needs more than 512.
const sniffBudget = 512

// Classify applies the oracle rules to the file at path.
func Classify(path string) (Category, []string, error) {
	var warnings []string

	base := filepath.Base(path)
	if markerBasenames[base] {
		return Marker, nil, nil
	}

	extMIME := extensionGuess(path)
	sniffMIME, err := contentSniff(path)
	if err != nil {
		return Unsupported, nil, err
	}

	if extMIME == "" {
		if strings.EqualFold(filepath.Ext(path), ".accurip") {
			return Text, nil, nil
		}
		return Unsupported, nil, ErrUnsupported
	}

	extMajor, extMinor := splitMIME(extMIME)
	sniffMajor, sniffMinor := splitMIME(sniffMIME)

	if extMajor == sniffMajor {
		if cat, ok := categoryFor(extMajor, extMIME); ok {
			return cat, nil, nil
		}
	}

	// Disagreement policies, all non-fatal.
	if extMajor == sniffMajor && stripXPrefix(extMinor) == stripXPrefix(sniffMinor) {
		if cat, ok := categoryFor(extMajor, extMIME); ok {
			return cat, nil, nil
		}
	}
	if (extMajor == "text" && sniffMIME == "inode/x-empty") ||
		(sniffMIME == "text/plain" && extMIME == "inode/x-empty") {
		return Text, nil, nil
	}
	if extMIME == "text/plain" || sniffMIME == "text/plain" {
		warnings = append(warnings, "mime mismatch accepted as text: ext="+extMIME+" sniff="+sniffMIME)
		return Text, warnings, nil
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".mp3" {
		if sniffMIME == "application/octet-stream" {
			return Audio, nil, nil
		}
		warnings = append(warnings, "mp3 mime mismatch accepted: sniff="+sniffMIME)
		return Audio, warnings, nil
	}

	return Unsupported, nil, ErrUnsupported
}

func extensionGuess(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return ""
	}
	if m := mime.TypeByExtension(ext); m != "" {
		mediatype, _, err := mimeParse(m)
		if err == nil {
			return mediatype
		}
		return m
	}
	if guess, ok := extraExtensions[ext]; ok {
		return guess
	}
	return ""
}

// extraExtensions fills gaps in the stdlib mime package's built-in table for
// formats common in music libraries that os-level mime.types files often
// omit (FLAC, Ogg Vorbis, WavPack, APE tags-only sidecar files).
var extraExtensions = map[string]string{
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".wv":   "audio/x-wavpack",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".cue":  "text/plain",
	".log":  "text/plain",
	".nfo":  "text/plain",
	".m3u":  "text/plain",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".pdf":  "application/pdf",
}

func mimeParse(v string) (string, map[string]string, error) {
	return mime.ParseMediaType(v)
}

func contentSniff(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if info.Size() == 0 {
		return "inode/x-empty", nil
	}

	buf := make([]byte, sniffBudget)
	n, err := f.Read(buf)
	if n == 0 && err != nil {
		return "", err
	}
	buf = buf[:n]

	if mediatype, ok := audioSignature(buf); ok {
		return mediatype, nil
	}

	full := http.DetectContentType(buf)
	mediatype, _, perr := mime.ParseMediaType(full)
	if perr != nil {
		return full, nil
	}
	return mediatype, nil
}

// audioSignature recognizes the magic bytes of the music codecs this tool
// validates. http.DetectContentType's built-in table has no entries for
// FLAC, Ogg, or WavPack, and classifies a bare MP3 frame as
// application/octet-stream, so those formats would otherwise always
// disagree with their extension guess and fall through to Unsupported.
func audioSignature(buf []byte) (string, bool) {
	switch {
	case hasPrefix(buf, "fLaC"):
		return "audio/flac", true
	case hasPrefix(buf, "OggS"):
		return "audio/ogg", true
	case hasPrefix(buf, "wvpk"):
		return "audio/x-wavpack", true
	case hasPrefix(buf, "ID3"):
		return "audio/mpeg", true
	case isMP3FrameSync(buf):
		return "audio/mpeg", true
	}
	return "", false
}

func hasPrefix(buf []byte, magic string) bool {
	return len(buf) >= len(magic) && string(buf[:len(magic)]) == magic
}

// isMP3FrameSync reports whether buf opens with an MPEG audio frame header
// (11 set sync bits followed by a valid layer field), for MP3 files with no
// leading ID3v2 tag.
func isMP3FrameSync(buf []byte) bool {
	if len(buf) < 2 {
		return false
	}
	return buf[0] == 0xFF && buf[1]&0xE0 == 0xE0 && buf[1]&0x06 != 0x00
}

func splitMIME(m string) (major, minor string) {
	parts := strings.SplitN(m, "/", 2)
	if len(parts) != 2 {
		return m, ""
	}
	return parts[0], parts[1]
}

func stripXPrefix(minor string) string {
	return strings.TrimPrefix(minor, "x-")
}

// categoryFor maps a major type to a Category, with "application" narrowed
// to application/pdf only.
func categoryFor(major, fullMIME string) (Category, bool) {
	switch major {
	case "audio":
		return Audio, true
	case "image":
		return Artwork, true
	case "application":
		if fullMIME == "application/pdf" {
			return Artwork, true
		}
		return Unsupported, false
	case "text":
		return Text, true
	case "video":
		return Video, true
	default:
		return Unsupported, false
	}
}
