// Package sweep enforces the retention policy against committed recordings.
//
// The sweeper runs independently of the recording process. It only ever acts
// on video/sidecar pairs, and a sidecar is only ever committed after its
// video is closed and flushed, so no locking against live writers is needed.
// A video with no sidecar is never touched regardless of age.
package sweep

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"camdvr/metrics"
	"camdvr/storage"
)

const hoursPerDay = 24

// Report summarizes one sweep.
type Report struct {
	Deleted      int
	DeletedBytes int64
	Kept         int
	Skipped      int
	DryRun       bool

	// Planned lists the video paths that were (or in a dry run, would be)
	// deleted.
	Planned []string
}

// Clean walks the recording tree under root and deletes every expired,
// unprotected continuous recording (video + sidecar as a unit), then removes
// now-empty directories bottom-up. With dryRun set, no filesystem mutation
// happens at all; the report carries what a real run would have done.
func Clean(root string, maxAgeDays int, dryRun bool) (*Report, error) {
	return clean(root, maxAgeDays, dryRun, time.Now())
}

func clean(root string, maxAgeDays int, dryRun bool, now time.Time) (*Report, error) {
	r := &Report{DryRun: dryRun}

	log.Infof("Sweeping %v (max age %d days, dry run %v)", root, maxAgeDays, dryRun)
	if _, err := os.Stat(root); err != nil {
		return nil, err
	}

	var sidecars []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warnf("Walk error at %v: %v", path, err)
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(path, storage.ExtMeta) {
			sidecars = append(sidecars, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, path := range sidecars {
		m, err := storage.ReadSidecar(path)
		if err != nil {
			// A bad sidecar never aborts the sweep, and its video stays put.
			log.Warnf("Skipping malformed sidecar %v: %v", path, err)
			r.Skipped++
			continue
		}

		ageDays := now.Sub(m.End()).Hours() / hoursPerDay
		if m.Retain || ageDays <= float64(maxAgeDays) {
			r.Kept++
			continue
		}

		video := storage.VideoFor(path)
		var size int64
		if fi, err := os.Stat(video); err == nil {
			size = fi.Size()
		}

		if dryRun {
			log.Infof("Would delete %v (type=%v age=%.1fd size=%d)", video, m.Type, ageDays, size)
		} else {
			if err := os.Remove(video); err != nil && !os.IsNotExist(err) {
				log.Errorf("Failed to delete %v: %v", video, err)
				r.Kept++
				continue
			}
			if err := os.Remove(path); err != nil {
				log.Errorf("Failed to delete sidecar %v: %v", path, err)
			}
			log.Infof("Deleted %v (age %.1fd)", video, ageDays)
			metrics.SweepDeleted.Inc()
			metrics.SweepDeletedBytes.Add(float64(size))
		}
		r.Deleted++
		r.DeletedBytes += size
		r.Planned = append(r.Planned, video)
	}

	if !dryRun {
		removeEmptyDirs(root)
	}

	log.Infof("Sweep complete: deleted=%d (%d bytes) kept=%d skipped=%d",
		r.Deleted, r.DeletedBytes, r.Kept, r.Skipped)
	return r, nil
}

// removeEmptyDirs removes empty directories under root, deepest first. The
// root itself is kept.
func removeEmptyDirs(root string) {
	var dirs []string
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err == nil && d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(dir); err == nil {
			log.Debugf("Removed empty directory %v", dir)
		}
	}
}
