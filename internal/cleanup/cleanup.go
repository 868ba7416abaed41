// Package cleanup deletes rendered outputs past their retention window so
// the outputs volume does not grow without bound.
package cleanup

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Sweep deletes regular files in dir whose modification time is older than
// retention relative to now. Returns the number of files removed. In-flight
// temp and trimmed files age along with finished outputs, so the retention
// window must exceed any plausible render time.
func Sweep(dir string, retention time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	cutoff := now.Add(-retention)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			log.Printf("[Cleanup] Failed to remove %s: %v", path, err)
			continue
		}
		removed++
	}
	return removed, nil
}

// Run sweeps immediately and then on every interval tick until the context
// is canceled.
func Run(ctx context.Context, dir string, retention, interval time.Duration) error {
	sweep := func() {
		n, err := Sweep(dir, retention, time.Now())
		if err != nil {
			log.Printf("[Cleanup] Sweep of %s failed: %v", dir, err)
			return
		}
		if n > 0 {
			log.Printf("[Cleanup] Removed %d expired output(s)", n)
		}
	}

	sweep()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			sweep()
		}
	}
}
