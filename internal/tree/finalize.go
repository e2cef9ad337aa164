package tree

import (
	"github.com/uocradio/libguard/internal/util"
	"github.com/uocradio/libguard/internal/vcache"
)

// Discard releases every owned AudioFile's tag handle without persisting
// any pending edits, for a directory about to be withdrawn rather than
// finalized in place ("children are released with the
// worst error propagated so their __exit__ skips mutation").
func Discard(d *Directory) {
	for _, f := range d.AudioFiles {
		f.Release()
	}
}

// Finalize implements its Finalization: every owned AudioFile is
// released (persisting tags and/or deleting, per audio.File.Finalize), and
// an Audio directory that finished with no errors and wasn't withdrawn has
// its group-write bit cleared, mirroring the per-file verification-cache
// contract at directory granularity.
func Finalize(d *Directory) {
	for _, f := range d.AudioFiles {
		if err := f.Finalize(d.Opts.DryRun); err != nil {
			util.WarnLog("%s: finalize failed: %v", f.Path, err)
		}
	}

	if d.Kind.IsAudio() && d.Errors.Empty() && !d.Flags.Has(Withdrawn) && !d.Opts.DryRun {
		vcache.MarkDirectoryVerified(d.Path)
	}
}
