package cleanup

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func touch(t *testing.T, dir, name string, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSweep(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	old := touch(t, dir, "old.mp4", now.Add(-48*time.Hour))
	fresh := touch(t, dir, "fresh.mp4", now.Add(-time.Hour))
	boundary := touch(t, dir, "boundary.mp4", now.Add(-24*time.Hour))

	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0755); err != nil {
		t.Fatal(err)
	}

	removed, err := Sweep(dir, 24*time.Hour, now)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Errorf("removed %d, want 2", removed)
	}

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("expired file survived")
	}
	if _, err := os.Stat(boundary); !os.IsNotExist(err) {
		t.Error("file exactly at the cutoff should be removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh file was removed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "subdir")); err != nil {
		t.Errorf("directories must be left alone: %v", err)
	}
}

func TestSweepEmptyDir(t *testing.T) {
	removed, err := Sweep(t.TempDir(), time.Hour, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Errorf("removed %d from empty dir", removed)
	}
}

func TestSweepMissingDir(t *testing.T) {
	if _, err := Sweep(filepath.Join(t.TempDir(), "nope"), time.Hour, time.Now()); err == nil {
		t.Fatal("want error for missing directory")
	}
}
