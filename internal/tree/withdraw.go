package tree

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/uocradio/libguard/internal/util"
)

// Eligible reports whether d has accumulated any error and is therefore a
// candidate for withdrawal ("A directory with a non-empty error
// bag is eligible").
func (d *Directory) Eligible() bool {
	return !d.Errors.Empty()
}

// Withdraw implements the quarantine protocol. Because the
// scheduler's bottom-up walk finalizes every child strictly before its
// parent, a PART_OF_SET directory is always visited while its parent
// is still pending: step 1 therefore always resolves to "append and
// return", never to "wait for the parent" in this walk order, and the
// parent ends up carrying the whole set's worst error into its own
// withdrawal when it is processed afterward.
func Withdraw(d *Directory, junkyard string) {
	if d.PartOfSet() && d.Parent != nil {
		d.Parent.Errors.Add(d.Errors.Worst())
		return
	}

	worst := d.Errors.Worst()
	base := filepath.Base(d.Path)
	dest := uniqueDest(filepath.Join(junkyard, worst.String()), base)

	if d.Opts.DryRun {
		util.InfoLog("dry-run: would withdraw %s -> %s", d.Path, dest)
		return
	}

	if same, err := util.IsSameFilesystem(d.Path, junkyard); err == nil && !same {
		util.WarnLog("withdraw %s: junkyard %s is on a different filesystem; per-child rename will fail with EXDEV", d.Path, junkyard)
	}

	if err := util.RetryableMkdirAll(dest, 0o755, util.DefaultRetryConfig()); err != nil {
		util.WarnLog("withdraw %s: failed to create %s: %v", d.Path, dest, err)
		return
	}

	entries, err := os.ReadDir(d.Path)
	if err != nil {
		util.WarnLog("withdraw %s: failed to list children: %v", d.Path, err)
		return
	}
	for _, e := range entries {
		oldPath := filepath.Join(d.Path, e.Name())
		newPath := filepath.Join(dest, e.Name())
		if err := util.RetryableRename(oldPath, newPath, util.DefaultRetryConfig()); err != nil {
			util.WarnLog("withdraw %s: failed to move %s: %v", d.Path, oldPath, err)
		}
	}

	if dir, err := os.Open(dest); err == nil {
		dir.Sync()
		dir.Close()
	}

	if remaining, err := os.ReadDir(d.Path); err == nil && len(remaining) == 0 {
		if err := os.Remove(d.Path); err != nil {
			util.WarnLog("withdraw %s: failed to remove emptied source: %v", d.Path, err)
		}
	}

	d.NewPath = dest
	d.Flags |= Withdrawn
}

// uniqueDest appends " (i)" for the smallest i >= 1 until the candidate
// path is free.
func uniqueDest(parent, base string) string {
	candidate := filepath.Join(parent, base)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate
	}
	for i := 1; ; i++ {
		candidate = filepath.Join(parent, fmt.Sprintf("%s (%d)", base, i))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
