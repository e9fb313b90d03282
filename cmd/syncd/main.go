package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	brokermqtt "github.com/your-org/videosync/internal/broker/mqtt"
	"github.com/your-org/videosync/internal/dedup"
	"github.com/your-org/videosync/internal/destination"
	"github.com/your-org/videosync/internal/router"
	"github.com/your-org/videosync/internal/source"
	"github.com/your-org/videosync/internal/state"
	"github.com/your-org/videosync/internal/syncer"
	"github.com/your-org/videosync/internal/uploader"
	"github.com/your-org/videosync/pkg/config"
	"github.com/your-org/videosync/pkg/kafka"
	"github.com/your-org/videosync/pkg/logger"
	"github.com/your-org/videosync/pkg/tracing"
)

const probeTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logr, err := logger.New(cfg.App.LogLevel, cfg.App.Environment)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	traceShutdown, err := tracing.Init(ctx, tracing.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
		Attributes:  parseResourceAttributes(cfg.Tracing.ResourceAttr),
		ServiceName: cfg.App.Name,
	})
	if err != nil {
		logr.Fatal("init tracing", zap.Error(err))
	}
	defer traceShutdown(context.Background()) //nolint:errcheck

	if len(cfg.Destinations.Specs) == 0 {
		logr.Fatal("no destinations configured; set DEST_SPECS")
	}
	destinations, err := destination.Build(cfg.Destinations.Specs, destination.Options{
		LocalOverwrite: cfg.Destinations.LocalOverwrite,
		S3: destination.S3Options{
			Endpoint:  cfg.Destinations.S3Endpoint,
			Region:    cfg.Destinations.S3Region,
			AccessKey: cfg.Destinations.S3AccessKey,
			SecretKey: cfg.Destinations.S3SecretKey,
			UseSSL:    cfg.Destinations.S3UseSSL,
		},
		Logger: logr,
	})
	if err != nil {
		logr.Fatal("build destinations", zap.Error(err))
	}

	src, err := source.NewClient(source.Config{
		BaseURL: cfg.API.BaseURL,
		Proxy:   cfg.API.Proxy,
		Timeout: cfg.API.Timeout,
	}, logr)
	if err != nil {
		logr.Fatal("init controller api client", zap.Error(err))
	}

	runStartupProbes(ctx, logr, src, destinations)

	tracker := state.NewTracker(logr)
	guard := dedup.NewGuard()
	orchestrator := uploader.New(guard, uploader.RetryPolicy{
		InitialInterval: cfg.Upload.RetryInitialInterval,
		MaxInterval:     cfg.Upload.RetryMaxInterval,
		MaxAttempts:     cfg.Upload.RetryMaxAttempts,
	}, logr, nil)
	rtr := router.New(tracker, src, destinations, logr)

	var producer *kafka.Producer
	var outcomes syncer.OutcomeSink
	if len(cfg.Kafka.Brokers) > 0 {
		producer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.OutcomeTopic,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			MaxAttempts:  cfg.Kafka.Retries,
		})
		outcomes = syncer.NewKafkaOutcomes(producer)
	}

	engine := syncer.New(syncer.Params{
		Tracker:      tracker,
		Router:       rtr,
		Orchestrator: orchestrator,
		Outcomes:     outcomes,
		Logger:       logr,
	})

	adapter := brokermqtt.New(brokermqtt.Config{
		BrokerURL:   cfg.MQTT.BrokerURL,
		ClientID:    cfg.MQTT.ClientID,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		KeepAlive:   cfg.MQTT.KeepAlive,
	}, engine, logr)
	adapter.Start()

	handler := syncer.NewStatusHandler(tracker, guard, engine, logr)
	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		logr.Info("shutdown signal received, draining")

		adapter.Close()

		graceCtx, cancel := context.WithTimeout(context.Background(), cfg.Upload.ShutdownGrace)
		defer cancel()
		if err := engine.Close(graceCtx); err != nil {
			logr.Error("engine drain failed", zap.Error(err))
		}

		shutdownCtx, cancelHTTP := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelHTTP()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logr.Error("http server shutdown failed", zap.Error(err))
		}

		if producer != nil {
			if err := producer.Close(); err != nil {
				logr.Error("kafka producer close failed", zap.Error(err))
			}
		}
		for _, d := range destinations {
			if err := d.Close(); err != nil {
				logr.Error("destination close failed", zap.String("destination", d.ID()), zap.Error(err))
			}
		}
	}()

	logr.Info("sync service starting",
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("broker", cfg.MQTT.BrokerURL),
		zap.Int("destinations", len(destinations)),
	)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Fatal("http server failed", zap.Error(err))
	}
}

// runStartupProbes checks the controller API and every destination once.
// Failures are logged and nothing more: the service keeps going and the
// retry machinery deals with whatever is down when events arrive.
func runStartupProbes(ctx context.Context, logr *zap.Logger, src *source.Client, destinations []destination.Destination) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := src.Probe(probeCtx); err != nil {
		logr.Warn("controller api probe failed; the api may be down or the address wrong, uploads will retry when events arrive", zap.Error(err))
	} else {
		logr.Info("controller api probe succeeded")
	}

	for _, d := range destinations {
		if err := d.Probe(probeCtx); err != nil {
			logr.Warn("destination probe failed",
				zap.String("destination", d.ID()), zap.Error(err))
			continue
		}
		logr.Info("destination probe succeeded", zap.String("destination", d.ID()))
	}
}

func parseResourceAttributes(raw string) map[string]string {
	attrs := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" || !strings.Contains(pair, "=") {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		attrs[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return attrs
}
