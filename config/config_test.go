package config

import "testing"

func validConfig() *Config {
	return &Config{
		Cameras:   []Camera{{ID: "gate", URL: "rtsp://example/stream"}},
		Recording: Recording{BaseDir: "/data/recordings"},
	}
}

func TestDefaults(t *testing.T) {
	c := validConfig()
	c.applyDefaults()
	if err := c.validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if c.Server.Port != 8555 {
		t.Errorf("default port %d", c.Server.Port)
	}
	if c.Recording.SegmentDuration != 60 || c.Recording.PreEventBuffer != 60 || c.Recording.PostEventDuration != 60 {
		t.Errorf("default durations %+v", c.Recording)
	}
	if c.Retention.MaxAgeDays != 7 {
		t.Errorf("default retention %d", c.Retention.MaxAgeDays)
	}
	if c.Cameras[0].FPS != 15 {
		t.Errorf("default fps %d", c.Cameras[0].FPS)
	}
}

func TestValidateBoundsSegmentDuration(t *testing.T) {
	// Segments longer than an hour would escape the retention rewrite's
	// one-hour scan slack.
	c := validConfig()
	c.Recording.SegmentDuration = 7200
	c.applyDefaults()
	if err := c.validate(); err == nil {
		t.Error("segment_duration above one hour must be rejected")
	}

	c = validConfig()
	c.Recording.SegmentDuration = -5
	c.applyDefaults()
	if err := c.validate(); err == nil {
		t.Error("negative segment_duration must be rejected")
	}

	c = validConfig()
	c.Recording.SegmentDuration = 3600
	c.applyDefaults()
	if err := c.validate(); err != nil {
		t.Errorf("one-hour segments are allowed: %v", err)
	}
}

func TestValidateCameras(t *testing.T) {
	c := validConfig()
	c.Cameras = append(c.Cameras, Camera{ID: "gate", URL: "rtsp://example/other"})
	c.applyDefaults()
	if err := c.validate(); err == nil {
		t.Error("duplicate camera id must be rejected")
	}

	c = validConfig()
	c.Cameras[0].ID = ""
	c.applyDefaults()
	if err := c.validate(); err == nil {
		t.Error("empty camera id must be rejected")
	}

	c = validConfig()
	c.Recording.BaseDir = ""
	c.applyDefaults()
	if err := c.validate(); err == nil {
		t.Error("missing base_dir must be rejected")
	}
}
