package serve

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"camdvr/video"
)

// Event is the ingress wire format for externally detected events.
type Event struct {
	CameraID  string                 `json:"camera_id"`
	EventType string                 `json:"event_type"`
	AlarmType string                 `json:"alarm_type,omitempty"`
	Timestamp float64                `json:"timestamp,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// EventServer accepts POSTed motion/alarm events and routes them to the
// camera's supervisor. Rapid repeated posts for the same camera coalesce
// into a single event window, so callers may retry freely.
type EventServer struct {
	Manager *video.Manager
}

func (s *EventServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}
	var ev Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if ev.CameraID == "" {
		http.Error(w, "camera_id is required", http.StatusBadRequest)
		return
	}

	log.WithFields(log.Fields{
		"camera": ev.CameraID,
		"event":  ev.EventType,
	}).Info("External event received")

	// The protection window is anchored at receipt time; the payload
	// timestamp is informational only.
	if err := s.Manager.TriggerEvent(ev.CameraID, time.Now()); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Add("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ok")
}
