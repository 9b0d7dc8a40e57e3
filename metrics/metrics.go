// Package metrics exposes prometheus collectors for the recording engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camdvr_frames_read_total",
		Help: "Frames read from camera sources.",
	}, []string{"camera"})

	FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camdvr_frames_dropped_total",
		Help: "Frames dropped due to sink failures.",
	}, []string{"camera"})

	SegmentsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camdvr_segments_closed_total",
		Help: "Continuous segments finalized.",
	}, []string{"camera"})

	EventsTriggered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camdvr_events_triggered_total",
		Help: "External event triggers received, including coalesced ones.",
	}, []string{"camera"})

	PreEventExports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camdvr_pre_event_exports_total",
		Help: "Pre-event artifacts written.",
	}, []string{"camera"})

	Reconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camdvr_source_reconnects_total",
		Help: "Camera source reconnect attempts.",
	}, []string{"camera"})

	Connected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "camdvr_source_connected",
		Help: "Whether the camera source is currently streaming (0 or 1).",
	}, []string{"camera"})

	SweepDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "camdvr_sweep_deleted_total",
		Help: "Recordings deleted by the retention sweeper.",
	})

	SweepDeletedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "camdvr_sweep_deleted_bytes_total",
		Help: "Bytes reclaimed by the retention sweeper.",
	})
)
