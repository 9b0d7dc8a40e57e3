// Package ingress delivers externally detected events to camera supervisors
// from transports other than the built-in HTTP API.
package ingress

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"camdvr/serve"
	"camdvr/video"
)

type NATSOptions struct {
	URL string
	// Subject is the subscription pattern, e.g. "cameras.events.>".
	Subject string
}

// NATS subscribes to a subject and forwards event payloads (same wire format
// as the HTTP ingress) to the manager.
type NATS struct {
	conn *nats.Conn
	sub  *nats.Subscription
}

func NewNATS(opts NATSOptions, manager *video.Manager) (*NATS, error) {
	conn, err := nats.Connect(opts.URL,
		nats.Name("camdvr"),
		nats.Timeout(5*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}
	log.WithField("url", opts.URL).Info("NATS connection established")

	sub, err := conn.Subscribe(opts.Subject, func(msg *nats.Msg) {
		var ev serve.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			log.Warnf("Discarding malformed event on %v: %v", msg.Subject, err)
			return
		}
		if ev.CameraID == "" {
			log.Warnf("Discarding event without camera_id on %v", msg.Subject)
			return
		}
		log.WithFields(log.Fields{
			"camera": ev.CameraID,
			"event":  ev.EventType,
		}).Info("NATS event received")
		if err := manager.TriggerEvent(ev.CameraID, time.Now()); err != nil {
			log.Warnf("Dropping NATS event: %v", err)
		}
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &NATS{conn: conn, sub: sub}, nil
}

// Close drains the subscription so in-flight events are still delivered.
func (n *NATS) Close() {
	if err := n.conn.Drain(); err != nil {
		log.Warnf("Failed to drain NATS connection, closing immediately: %v", err)
		n.conn.Close()
	}
}
