package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/knmi-forecast/internal/config"
	"github.com/couchcryptid/knmi-forecast/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the Writer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes forecasts to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured forecast topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaForecastTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes the forecast and writes it as a single message keyed by
// station.
func (w *Writer) Publish(ctx context.Context, forecast domain.Forecast) error {
	msg, err := serializeToMessage(forecast)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish forecast: %w", err)
	}
	w.logger.Debug("forecast published", "station", forecast.Station)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Forecast into a Kafka message.
func serializeToMessage(forecast domain.Forecast) (kafkago.Message, error) {
	data, err := json.Marshal(forecast)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize forecast: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(forecast.Station),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "station", Value: []byte(forecast.Station)},
			{Key: "issued_at", Value: []byte(forecast.IssuedAt.Format(time.RFC3339))},
		},
	}, nil
}
