package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"camdvr/serve"
)

var (
	triggerServer    string
	triggerCamera    string
	triggerEvent     string
	triggerAlarmType string
	triggerInterval  time.Duration
)

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Post a synthetic motion or alarm event to a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTrigger()
	},
}

func init() {
	triggerCmd.Flags().StringVar(&triggerServer, "server", "http://localhost:8555", "Camera server URL")
	triggerCmd.Flags().StringVar(&triggerCamera, "camera", "", "Camera ID to trigger event for")
	triggerCmd.Flags().StringVar(&triggerEvent, "event", "motion", "Event type (motion or alarm)")
	triggerCmd.Flags().StringVar(&triggerAlarmType, "alarm-type", "general", "Alarm type if event is alarm")
	triggerCmd.Flags().DurationVar(&triggerInterval, "interval", 0, "Interval between repeated events (0 = single event)")
	triggerCmd.MarkFlagRequired("camera")
}

func postEvent() error {
	ev := serve.Event{
		CameraID:  triggerCamera,
		EventType: triggerEvent,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		Metadata:  map[string]interface{}{"source": "camdvr-trigger"},
	}
	if triggerEvent == "alarm" {
		ev.AlarmType = triggerAlarmType
	}
	body, err := json.Marshal(&ev)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/events/%s", strings.TrimRight(triggerServer, "/"), triggerEvent)
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %v", resp.Status)
	}
	log.Infof("%v event triggered for camera %v", triggerEvent, triggerCamera)
	return nil
}

func runTrigger() error {
	if triggerEvent != "motion" && triggerEvent != "alarm" {
		return fmt.Errorf("unknown event type %q", triggerEvent)
	}

	if triggerInterval == 0 {
		return postEvent()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Infof("Triggering %v events for camera %v every %v", triggerEvent, triggerCamera, triggerInterval)
	ticker := time.NewTicker(triggerInterval)
	defer ticker.Stop()
	for {
		if err := postEvent(); err != nil {
			log.Errorf("Failed to trigger event: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
