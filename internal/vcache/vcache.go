// Package vcache implements the verification cache: a per-file
// extended attribute recording the mtime at which a file was last
// successfully verified, so unchanged files can skip a costly re-probe on
// subsequent runs.
package vcache

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/xattr"
	"github.com/uocradio/libguard/internal/util"
)

// AttrName is the extended attribute key LibraryGuard reads and writes
// (bit-exact "user.lguard_verification_ts").
const AttrName = "user.lguard_verification_ts"

// groupWriteBit is cleared from a file's mode on successful verification, so
// a later accidental edit by another member of the owning group is visible
// as a permission failure rather than silently invalidating the cache.
const groupWriteBit = 0o020

// NeedsCheck reports whether path must be (re-)probed: the attribute is
// missing, non-numeric, different from the file's current mtime, or
// forceCheck is set.
func NeedsCheck(path string, forceCheck bool) (bool, error) {
	if forceCheck {
		return true, nil
	}

	info, err := os.Lstat(path)
	if err != nil {
		return false, err
	}
	currentMtime := info.ModTime().Unix()

	raw, err := xattr.Get(path, AttrName)
	if err != nil {
		// Missing attribute (or unsupported filesystem) means "never
		// verified" rather than a hard failure.
		return true, nil
	}

	stamped, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return true, nil
	}

	return stamped != currentMtime, nil
}

// MarkVerified fsyncs the file, reads its current mtime, writes the
// verification stamp, and drops the group-write bit. Failures here are
// warnings, never fatal.
func MarkVerified(path string) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		// Files opened read-only by the caller (or already withdrawn)
		// can't be synced for write; fall back to a stat-only stamp.
		markVerifiedNoSync(path)
		return
	}
	defer f.Close()

	if err := f.Sync(); err != nil {
		util.WarnLog("vcache: sync(%s) failed: %v", path, err)
	}

	markVerifiedNoSync(path)
}

func markVerifiedNoSync(path string) {
	info, err := os.Lstat(path)
	if err != nil {
		util.WarnLog("vcache: stat(%s) failed: %v", path, err)
		return
	}

	mtime := info.ModTime().Unix()
	value := strconv.FormatInt(mtime, 10)
	if err := xattr.Set(path, AttrName, []byte(value)); err != nil {
		util.WarnLog("vcache: set xattr on %s failed: %v", path, err)
		return
	}

	mode := info.Mode().Perm()
	newMode := mode &^ groupWriteBit
	if newMode != mode {
		if err := os.Chmod(path, newMode); err != nil {
			util.WarnLog("vcache: chmod(%s) failed: %v", path, err)
		}
	}
}

// MarkDirectoryVerified removes the group-write bit from a directory on
// successful finalization of an Audio directory.
func MarkDirectoryVerified(path string) {
	info, err := os.Lstat(path)
	if err != nil {
		util.WarnLog("vcache: stat dir(%s) failed: %v", path, err)
		return
	}
	mode := info.Mode().Perm()
	newMode := mode &^ groupWriteBit
	if newMode != mode {
		if err := os.Chmod(path, newMode); err != nil {
			util.WarnLog("vcache: chmod dir(%s) failed: %v", path, err)
		}
	}
}

// ReadStampedMtime returns the mtime currently stamped on path; the
// package's round-trip test uses it to check the stamp.
func ReadStampedMtime(path string) (time.Time, bool) {
	raw, err := xattr.Get(path, AttrName)
	if err != nil {
		return time.Time{}, false
	}
	sec, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(sec, 0), true
}
