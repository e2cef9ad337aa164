package vcache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/xattr"
)

func skipIfNoXattrSupport(t *testing.T, dir string) {
	t.Helper()
	probe := filepath.Join(dir, ".xattr-probe")
	if err := os.WriteFile(probe, []byte("x"), 0o644); err != nil {
		t.Fatalf("write probe: %v", err)
	}
	if err := xattr.Set(probe, "user.lguard_probe", []byte("1")); err != nil {
		t.Skipf("filesystem does not support extended attributes: %v", err)
	}
}

func TestNeedsCheckUnverifiedFile(t *testing.T) {
	dir := t.TempDir()
	skipIfNoXattrSupport(t, dir)

	path := filepath.Join(dir, "track.flac")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	needs, err := NeedsCheck(path, false)
	if err != nil {
		t.Fatalf("NeedsCheck: %v", err)
	}
	if !needs {
		t.Errorf("unverified file should need check")
	}
}

func TestMarkVerifiedThenNeedsCheckIsFalse(t *testing.T) {
	dir := t.TempDir()
	skipIfNoXattrSupport(t, dir)

	path := filepath.Join(dir, "track.flac")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	MarkVerified(path)

	needs, err := NeedsCheck(path, false)
	if err != nil {
		t.Fatalf("NeedsCheck: %v", err)
	}
	if needs {
		t.Errorf("freshly verified file should not need check")
	}
}

func TestForceCheckAlwaysNeeds(t *testing.T) {
	dir := t.TempDir()
	skipIfNoXattrSupport(t, dir)

	path := filepath.Join(dir, "track.flac")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	MarkVerified(path)

	needs, err := NeedsCheck(path, true)
	if err != nil {
		t.Fatalf("NeedsCheck: %v", err)
	}
	if !needs {
		t.Errorf("FORCE_CHECK should always require re-verification")
	}
}

func TestMarkVerifiedStampMatchesMtime(t *testing.T) {
	dir := t.TempDir()
	skipIfNoXattrSupport(t, dir)

	path := filepath.Join(dir, "track.flac")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	MarkVerified(path)

	stamped, ok := ReadStampedMtime(path)
	if !ok {
		t.Fatalf("expected a stamped mtime")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if stamped.Unix() != info.ModTime().Unix() {
		t.Errorf("stamped mtime %v != file mtime %v", stamped, info.ModTime())
	}
}
