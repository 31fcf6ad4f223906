package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	kafkaadapter "github.com/couchcryptid/knmi-forecast/internal/adapter/kafka"
	"github.com/couchcryptid/knmi-forecast/internal/adapter/knmi"
	"github.com/couchcryptid/knmi-forecast/internal/config"
	"github.com/couchcryptid/knmi-forecast/internal/model"
	"github.com/couchcryptid/knmi-forecast/internal/observability"
	"github.com/couchcryptid/knmi-forecast/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics are pushed whether or not the run succeeds.
	if cfg.PushgatewayURL != "" {
		defer func() {
			pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metrics.Push(pushCtx, cfg.PushgatewayURL, cfg.Station); err != nil {
				logger.Warn("metrics push failed", "error", err)
			}
		}()
	}

	device, fellBack, err := model.ResolveDevice(cfg.ModelDevice, cfg.ModelDeviceFallback)
	if err != nil {
		logger.Error("forecast failed", "error", err)
		return 1
	}
	if fellBack {
		logger.Warn("accelerator unavailable, running on cpu", "requested", cfg.ModelDevice)
	}

	lstm, err := model.Load(cfg.ModelPath, model.Options{
		HiddenSize: cfg.ModelHiddenSize,
		Layers:     cfg.ModelLayers,
		Device:     device,
	})
	if err != nil {
		logger.Error("forecast failed", "error", err)
		return 1
	}
	logger.Info("model loaded",
		"path", cfg.ModelPath,
		"device", lstm.Device(),
		"input_size", lstm.InputSize(),
		"hidden_size", lstm.HiddenSize(),
		"layers", lstm.Layers(),
	)

	client := knmi.NewClient(cfg.KNMIBaseURL, cfg.Station, cfg.EndDate, logger)
	start, end := client.DateRange()
	logger.Info("fetching observations",
		"station", cfg.Station,
		"start", start.Format(time.DateOnly),
		"end", end.Format(time.DateOnly),
	)

	var publisher pipeline.Publisher
	if cfg.KafkaEnabled() {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		publisher = writer
		logger.Info("forecast sink enabled", "topic", cfg.KafkaForecastTopic)
	}

	transformer := pipeline.NewTransformer(cfg.FeedHeaderLines, logger)
	p := pipeline.New(client, transformer, lstm, publisher, logger, metrics)

	forecast, err := p.Run(ctx)
	if err != nil {
		logger.Error("forecast failed", "error", err)
		return 1
	}
	if err := pipeline.Report(os.Stdout, forecast); err != nil {
		logger.Error("write forecast", "error", err)
		return 1
	}
	return 0
}
