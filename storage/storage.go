// Package storage owns the on-disk recording tree and its sidecar metadata.
//
// Layout: root/{camera_id}/{YYYY-MM-DD}/{HH}/{kind}_{HH-MM-SS}.mp4 with a
// sidecar .json next to each video. The sidecar is committed (temp + rename)
// only after the video file is closed, so its presence marks the pair as a
// complete unit. The retention sweeper relies on that ordering and never
// needs any cross-process locking.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	ExtVideo = ".mp4"
	ExtMeta  = ".json"
	ExtTemp  = ".temp"

	// Artifact kinds, used both as filename prefixes and metadata types.
	KindSegment  = "segment"
	KindPreEvent = "pre_event"

	TypeContinuous = "continuous"
	TypePreEvent   = "pre_event"

	DateLayout = "2006-01-02"
	HourLayout = "15"
	TimeLayout = "15-04-05"
)

// Meta is the persisted sidecar record. Times are epoch seconds.
type Meta struct {
	CameraID  string  `json:"camera_id"`
	Type      string  `json:"type"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Duration  float64 `json:"duration"`
	File      string  `json:"file"`
	Retain    bool    `json:"retain"`
}

func (m Meta) Start() time.Time { return timeFromEpoch(m.StartTime) }
func (m Meta) End() time.Time   { return timeFromEpoch(m.EndTime) }

// Overlaps reports whether the recording's [start, end) interval intersects
// [from, to).
func (m Meta) Overlaps(from, to time.Time) bool {
	return m.Start().Before(to) && m.End().After(from)
}

func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func timeFromEpoch(s float64) time.Time {
	return time.Unix(0, int64(s*float64(time.Second)))
}

// Listener receives a callback whenever a sidecar is committed or rewritten.
type Listener interface {
	StorageUpdated()
}

type Store struct {
	Root string

	l         sync.Mutex
	listeners []Listener
}

func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, err
	}
	return &Store{Root: root}, nil
}

func (s *Store) AddListener(l Listener) {
	s.l.Lock()
	defer s.l.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Store) notify() {
	s.l.Lock()
	ls := append([]Listener(nil), s.listeners...)
	s.l.Unlock()
	for _, l := range ls {
		l.StorageUpdated()
	}
}

// VideoPath creates the date/hour directory for the given start time and
// returns the full video file path for an artifact of the given kind.
func (s *Store) VideoPath(camera, kind string, start time.Time) (string, error) {
	dir := filepath.Join(s.Root, camera, start.Format(DateLayout), start.Format(HourLayout))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%s%s", kind, start.Format(TimeLayout), ExtVideo)
	return filepath.Join(dir, name), nil
}

// SidecarPath returns the metadata path paired with a video path.
func SidecarPath(videoPath string) string {
	return strings.TrimSuffix(videoPath, ExtVideo) + ExtMeta
}

// VideoFor returns the video path paired with a sidecar path.
func VideoFor(sidecarPath string) string {
	return strings.TrimSuffix(sidecarPath, ExtMeta) + ExtVideo
}

// CommitSidecar durably writes the sidecar for a closed video file. The
// write goes to a temp file first and is renamed into place so the sweeper
// can never observe a partial sidecar.
func (s *Store) CommitSidecar(videoPath string, m Meta) error {
	path := SidecarPath(videoPath)
	if err := writeSidecar(path, m); err != nil {
		return err
	}
	s.notify()
	return nil
}

func writeSidecar(path string, m Meta) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ExtTemp
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadSidecar parses a sidecar file.
func ReadSidecar(path string) (Meta, error) {
	var m Meta
	b, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("parse %v: %v", path, err)
	}
	return m, nil
}
