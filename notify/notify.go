// Package notify fans out event notifications to registered listeners.
package notify

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"camdvr/config"
)

// Notification is sent to all Listeners when an event window opens on a
// camera. Window extensions do not re-notify.
type Notification struct {
	CameraID   string `json:"camera_id"`
	TimeString string `json:"time_string"`
	Timestamp  int64  `json:"timestamp"`
}

type Listener interface {
	Notify(n *Notification) error
}

type Notifier struct {
	l         sync.Mutex
	listeners []Listener
}

func (n *Notifier) AddListener(l Listener) {
	n.l.Lock()
	defer n.l.Unlock()
	n.listeners = append(n.listeners, l)
}

// EventTriggered is wired to the event window's open hook. Quiet hours come
// from live configuration, so a config reload takes effect immediately.
func (n *Notifier) EventTriggered(camera string, t time.Time) {
	if c := config.Get(); c != nil {
		p := c.Push
		if p.NotificationHoursEnd > 0 &&
			(t.Hour() < p.NotificationHoursStart || t.Hour() >= p.NotificationHoursEnd) {
			log.WithField("camera", camera).Info("Would send notification, but currently in quiet hours")
			return
		}
	}

	notification := &Notification{
		CameraID:   camera,
		TimeString: t.Format("3:04 PM"),
		Timestamp:  t.Unix(),
	}

	n.l.Lock()
	ls := append([]Listener(nil), n.listeners...)
	n.l.Unlock()

	for _, l := range ls {
		go func(l Listener) {
			if err := l.Notify(notification); err != nil {
				log.Errorf("Failed to send notification: %v", err)
			}
		}(l)
	}
}
