package storage

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// MarkRetained rewrites the sidecar of every committed continuous recording
// for the camera whose interval overlaps [from, to), setting retain=true so
// the retention sweeper keeps it. Returns the number of sidecars rewritten.
//
// Only the hour directories the interval touches are scanned. One extra hour
// of slack at the front covers recordings that start in the previous hour
// and run into the interval; configuration caps segment duration at one
// hour, so no overlapping segment can start earlier than that.
func (s *Store) MarkRetained(camera string, from, to time.Time) (int, error) {
	marked := 0
	var firstErr error

	for h := from.Add(-time.Hour).Truncate(time.Hour); h.Before(to); h = h.Add(time.Hour) {
		dir := filepath.Join(s.Root, camera, h.Format(DateLayout), h.Format(HourLayout))
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ExtMeta) {
				continue
			}
			path := filepath.Join(dir, e.Name())
			m, err := ReadSidecar(path)
			if err != nil {
				log.WithField("camera", camera).Warnf("Skipping unreadable sidecar %v: %v", path, err)
				continue
			}
			if m.Type != TypeContinuous || m.Retain || !m.Overlaps(from, to) {
				continue
			}
			m.Retain = true
			if err := writeSidecar(path, m); err != nil {
				log.WithField("camera", camera).Errorf("Failed to rewrite sidecar %v: %v", path, err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			marked++
		}
	}

	if marked > 0 {
		s.notify()
	}
	return marked, firstErr
}
