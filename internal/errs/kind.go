// Package errs defines LibraryGuard's ordered error taxonomy and the
// "worst wins" selection rule used to pick a single representative error for
// a directory that accumulated many.
package errs

import "sync"

// Kind is an outcome of classifying or validating a file or directory.
// The zero value is InvalidFormat, the worst kind; OK is declared last, so a
// success state has to be set explicitly.
//
// Ordering matters: Worst and WorstOf below walk this list front-to-back and
// the first kind present in a set wins, so declaration order IS severity
// order, worst first.
type Kind int

const (
	InvalidFormat Kind = iota
	InvalidTags
	MissingTags
	Inconsistent
	Corrupted
	InvalidSampleRate
	InvalidBitRate
	InvalidBitDepth
	RgainFailed
	Empty
	Ignore
	AccessDenied
	DBError
	Terminate
	Unknown
	OK
)

var ordered = []Kind{
	InvalidFormat, InvalidTags, MissingTags, Inconsistent, Corrupted,
	InvalidSampleRate, InvalidBitRate, InvalidBitDepth, RgainFailed,
	Empty, Ignore, AccessDenied, DBError, Terminate, Unknown, OK,
}

var names = map[Kind]string{
	InvalidFormat:     "Invalid format",
	InvalidTags:       "Invalid tags",
	MissingTags:       "Missing tags",
	Inconsistent:      "Inconsistent",
	Corrupted:         "Corrupted",
	InvalidSampleRate: "Invalid sample rate",
	InvalidBitRate:    "Invalid bit rate",
	InvalidBitDepth:   "Invalid bit depth",
	RgainFailed:       "Rgain failed",
	Empty:             "Empty",
	Ignore:            "Ignore",
	AccessDenied:      "Access denied",
	DBError:           "DB error",
	Terminate:         "Terminate",
	Unknown:           "Unknown",
	OK:                "OK",
}

// String returns the human name used for quarantine subfolder names
// ("<junkyard>/<ErrorKind string>/...") and log messages.
func (k Kind) String() string {
	if name, ok := names[k]; ok {
		return name
	}
	return "Unknown"
}

// Ordinal returns the process exit code associated with this kind: 0 on OK,
// nonzero on any failure, equal to the ErrorKind's ordinal. OK is 0;
// every other kind is its 1-based position in the severity ordering
// declared above, so "nonzero on failure" holds regardless of where a kind
// falls in that ordering (declaration order alone, as int(k), would give
// InvalidFormat — the worst kind — ordinal 0, the same as success).
func (k Kind) Ordinal() int {
	if k == OK {
		return 0
	}
	for i, candidate := range ordered {
		if candidate == k {
			return i + 1
		}
	}
	return len(ordered)
}

// pickWorstSubset is the subset pick_worst restricts itself to: only
// these kinds are ever returned for a non-empty set, with Unknown as the
// fallback and OK for an empty set. The wider Kind enum (Empty, Ignore,
// AccessDenied, DBError, Terminate) is used by the scheduler directly and
// never arises inside a per-file error bag that reaches pick_worst.
var pickWorstSubset = []Kind{
	InvalidFormat, InvalidTags, MissingTags, Inconsistent, Corrupted,
	InvalidSampleRate, InvalidBitRate,
}

// PickWorst returns, in order, the first of InvalidFormat, InvalidTags,
// MissingTags, Inconsistent, Corrupted, InvalidSampleRate, InvalidBitRate
// present in set; else Unknown on a non-empty set with no match; else OK.
//
// PickWorst is idempotent (PickWorst({x}) == x for any x in the subset) and
// monotone: adding a worse kind to the set never makes the result less
// severe, because it always returns the earliest-declared member present.
func PickWorst(set map[Kind]struct{}) Kind {
	if len(set) == 0 {
		return OK
	}
	for _, k := range pickWorstSubset {
		if _, ok := set[k]; ok {
			return k
		}
	}
	return Unknown
}

// Worst returns whichever of a, b sorts earlier in severity order (a itself
// if they're equal). Used by directory construction to fold per-file errors
// into a running worst-so-far without building an intermediate set.
func Worst(a, b Kind) Kind {
	ia, ib := -1, -1
	for i, k := range ordered {
		if k == a {
			ia = i
		}
		if k == b {
			ib = i
		}
	}
	if ia == -1 {
		return b
	}
	if ib == -1 {
		return a
	}
	if ia <= ib {
		return a
	}
	return b
}

// Bag accumulates Kinds encountered while constructing a directory or file
// tree and answers PickWorst over what it has seen.
//
// A PART_OF_SET directory reports into its parent's bag from the sibling
// worker pool, so Bag serializes its own mutation rather than leaving that
// race to callers.
type Bag struct {
	mu  sync.Mutex
	set map[Kind]struct{}
}

// NewBag returns an empty error bag.
func NewBag() *Bag {
	return &Bag{set: make(map[Kind]struct{})}
}

// Add records k in the bag. OK is never recorded: it carries no information
// for pick_worst and keeping it out lets Empty() mean "no errors seen".
func (b *Bag) Add(k Kind) {
	if k == OK {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.set[k] = struct{}{}
}

// Empty reports whether no (non-OK) kind has been recorded.
func (b *Bag) Empty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.set) == 0
}

// Worst returns PickWorst over everything recorded so far.
func (b *Bag) Worst() Kind {
	b.mu.Lock()
	defer b.mu.Unlock()
	return PickWorst(b.set)
}

// Kinds returns the recorded kinds in arbitrary order, for logging.
func (b *Bag) Kinds() []Kind {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Kind, 0, len(b.set))
	for k := range b.set {
		out = append(out, k)
	}
	return out
}
