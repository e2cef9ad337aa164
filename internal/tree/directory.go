// Package tree implements the Directory record and the withdraw
// (quarantine) protocol: per-kind consistency checks, rearrangement of
// auxiliary content, duplicate-track resolution, album-loudness
// re-integration, and the decision to quarantine a failed subtree.
package tree

import (
	"github.com/uocradio/libguard/internal/audio"
	"github.com/uocradio/libguard/internal/errs"
)

// Options carries the run-mode flags (dry-run, forced re-check) as a small
// struct threaded down through construction rather than hand-rolling bit
// tests against a global.
type Options struct {
	DryRun     bool
	ForceCheck bool
}

// Flags is the per-child signal bitmask construction folds into a kind
// decision.
type Flags uint32

const (
	HasAudio Flags = 1 << iota
	HasArtwork
	HasVideo
	HasText
	HasMarker
	HasSubdirs
	PartOfSet
	Standalone
	CheckDuplicates
	NeedsRgain
	PartialRelease
	Withdrawn
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Kind is the tagged variant replacing the source's runtime class
// reassignment: a Directory is constructed once into
// exactly one of these states; the only later change is processing moving
// an audio directory to KindFailed.
type Kind int

const (
	KindEmpty Kind = iota
	KindIgnored
	KindFailed
	KindIntermediate
	KindDirtyIntermediate
	KindDirtyLeaf
	KindArtwork
	KindVideo
	KindInfo
	KindAudioAlbum
	KindAudioDisc
	KindAudioStandalone
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "Empty"
	case KindIgnored:
		return "Ignored"
	case KindFailed:
		return "Failed"
	case KindIntermediate:
		return "Intermediate"
	case KindDirtyIntermediate:
		return "DirtyIntermediate"
	case KindDirtyLeaf:
		return "DirtyLeaf"
	case KindArtwork:
		return "Artwork"
	case KindVideo:
		return "Video"
	case KindInfo:
		return "Info"
	case KindAudioAlbum:
		return "AudioAlbum"
	case KindAudioDisc:
		return "AudioDisc"
	case KindAudioStandalone:
		return "AudioStandalone"
	default:
		return "Unknown"
	}
}

// IsAudio reports whether k is one of the three audio-bearing kinds.
func (k Kind) IsAudio() bool {
	return k == KindAudioAlbum || k == KindAudioDisc || k == KindAudioStandalone
}

// Directory is the Directory record. Parent is a non-owning
// back-reference set by the scheduler when it encounters this directory's
// parent during the bottom-up walk ("child keeps a non-owning back
// pointer"); Go's garbage collector handles the resulting cycle without the
// weak-pointer machinery a manually-memory-managed language would need.
type Directory struct {
	Path   string
	Parent *Directory
	Opts   Options
	Kind   Kind
	Flags  Flags
	Errors *errs.Bag

	AudioFiles   []*audio.File
	ArtworkFiles []string
	VideoFiles   []string
	TextFiles    []string

	// Identity fields gathered during audio reconciliation, needed by
	// Register.
	AlbumID        string
	ReleaseGroupID string

	// Children is populated by the scheduler once this directory is
	// recognized as a parent; Directory
	// itself never recurses into subdirectories during Construct.
	Children []*Directory

	// NewPath is set to the quarantine destination once WITHDRAWN.
	NewPath string
}

func newDirectory(path string, parent *Directory, opts Options) *Directory {
	return &Directory{
		Path:   path,
		Parent: parent,
		Opts:   opts,
		Errors: errs.NewBag(),
	}
}

// PartOfSet reports whether this directory escalates withdrawal to its
// parent ("escalates its withdrawal to its parent exactly one
// level up, never further").
func (d *Directory) PartOfSet() bool { return d.Flags.Has(PartOfSet) }
