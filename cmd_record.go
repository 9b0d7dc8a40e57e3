package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"camdvr/config"
	"camdvr/ingress"
	"camdvr/notify"
	"camdvr/serve"
	"camdvr/storage"
	"camdvr/util"
	"camdvr/video"
	"camdvr/video/sink"
	"camdvr/video/source"
)

const shutdownGrace = 15 * time.Second

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Run the recording server for all configured cameras",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRecord()
	},
}

func runRecord() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := config.Load(ctx, configPath); err != nil {
		return err
	}
	cfg := config.Get()

	if p, err := util.LocateFFmpeg(); err != nil {
		return fmt.Errorf("ffmpeg is required for saving video files: %v", err)
	} else {
		log.Infof("Located ffmpeg binary, %v", p)
	}

	store, err := storage.NewStore(cfg.Recording.BaseDir)
	if err != nil {
		return fmt.Errorf("failed to create storage root: %v", err)
	}

	pool := video.NewPool(4, 64)
	manager := video.NewManager(store, sink.FFmpegProducer{}, pool)

	notifier := &notify.Notifier{}
	updater := serve.NewStatusUpdater()
	store.AddListener(updater)
	notifier.AddListener(updater)

	mux := http.NewServeMux()

	if cfg.Push.DatabaseDSN != "" {
		wp, err := notify.NewWebPush(cfg.Push.DatabaseDSN, cfg.Push.Contact)
		if err != nil {
			log.Errorf("Web push disabled, subscription store unavailable: %v", err)
		} else {
			notifier.AddListener(wp)
			wp.RegisterHandlers(mux)
		}
	}

	for _, cam := range cfg.Cameras {
		sup, err := manager.Add(video.SupervisorOptions{
			Camera:          cam.ID,
			FPS:             cam.FPS,
			SegmentDuration: cfg.Recording.SegmentDur(),
			Lookback:        cfg.Recording.Lookback(),
			PostEvent:       cfg.Recording.PostEventDur(),
		}, source.NewCapture(cam.URL))
		if err != nil {
			return err
		}
		sup.Window().OnOpen = notifier.EventTriggered
	}

	manager.Start(ctx)

	if cfg.NATS.URL != "" {
		n, err := ingress.NewNATS(ingress.NATSOptions{
			URL:     cfg.NATS.URL,
			Subject: cfg.NATS.Subject,
		}, manager)
		if err != nil {
			log.Errorf("NATS ingress disabled: %v", err)
		} else {
			defer n.Close()
		}
	}

	ev := &serve.EventServer{Manager: manager}
	mux.Handle("/api/events/motion", ev)
	mux.Handle("/api/events/alarm", ev)
	mux.Handle("/api/status", &serve.StatusServer{Manager: manager})
	mux.Handle("/api/statusws", updater)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: handlers.RecoveryHandler()(handlers.LoggingHandler(log.StandardLogger().Writer(), mux)),
	}
	go func() {
		log.Infof("Hosting event ingress on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("HTTP server failed: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownGrace)
	defer done()
	srv.Shutdown(shutdownCtx)

	manager.Stop()
	return nil
}
