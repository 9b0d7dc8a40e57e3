package config

import (
	"fmt"
	"time"
)

type Camera struct {
	ID  string `json:"id"`
	URL string `json:"rtsp_url"`
	// FPS is the encode frame rate for this camera's recordings.
	FPS int `json:"fps"`
}

type Recording struct {
	BaseDir string `json:"base_dir"`
	// All durations are in seconds.
	SegmentDuration   int `json:"segment_duration"`
	PreEventBuffer    int `json:"pre_event_buffer"`
	PostEventDuration int `json:"post_event_duration"`
}

type Retention struct {
	MaxAgeDays int `json:"max_age_days"`
}

type Server struct {
	Port int `json:"port"`
}

type NATS struct {
	URL string `json:"url"`
	// Subject is the subscription pattern for incoming events,
	// e.g. "cameras.events.>".
	Subject string `json:"subject"`
}

type Push struct {
	// DatabaseDSN is a MySQL DSN for the subscription store. Empty disables
	// web push notifications.
	DatabaseDSN string `json:"database_dsn"`

	// Contact is the subscriber address reported to push services.
	Contact string `json:"contact"`

	NotificationHoursStart int `json:"notification_hours_start"`
	NotificationHoursEnd   int `json:"notification_hours_end"`
}

type Config struct {
	Cameras   []Camera  `json:"cameras"`
	Recording Recording `json:"recording"`
	Retention Retention `json:"retention"`
	Server    Server    `json:"server"`
	NATS      NATS      `json:"nats"`
	Push      Push      `json:"push"`
}

func (r Recording) SegmentDur() time.Duration {
	return time.Duration(r.SegmentDuration) * time.Second
}

func (r Recording) Lookback() time.Duration {
	return time.Duration(r.PreEventBuffer) * time.Second
}

func (r Recording) PostEventDur() time.Duration {
	return time.Duration(r.PostEventDuration) * time.Second
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8555
	}
	if c.Recording.SegmentDuration == 0 {
		c.Recording.SegmentDuration = 60
	}
	if c.Recording.PreEventBuffer == 0 {
		c.Recording.PreEventBuffer = 60
	}
	if c.Recording.PostEventDuration == 0 {
		c.Recording.PostEventDuration = 60
	}
	if c.Retention.MaxAgeDays == 0 {
		c.Retention.MaxAgeDays = 7
	}
	for i := range c.Cameras {
		if c.Cameras[i].FPS == 0 {
			c.Cameras[i].FPS = 15
		}
	}
}

func (c *Config) validate() error {
	if c.Recording.BaseDir == "" {
		return fmt.Errorf("recording.base_dir is required")
	}
	// The retention rewrite scans one hour of slack before a protected
	// interval, so segments longer than an hour could be missed by it.
	if c.Recording.SegmentDuration < 0 || c.Recording.SegmentDuration > 3600 {
		return fmt.Errorf("recording.segment_duration must be between 1 and 3600 seconds, got %d", c.Recording.SegmentDuration)
	}
	seen := make(map[string]bool)
	for _, cam := range c.Cameras {
		if cam.ID == "" {
			return fmt.Errorf("camera with empty id")
		}
		if seen[cam.ID] {
			return fmt.Errorf("duplicate camera id %q", cam.ID)
		}
		seen[cam.ID] = true
	}
	return nil
}
