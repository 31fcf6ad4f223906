package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/couchcryptid/knmi-forecast/internal/domain"
	"github.com/couchcryptid/knmi-forecast/internal/observability"
)

// Fetcher downloads the raw feed text for one station.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
	Station() string
}

// Predictor maps a feature window to one output per slot.
type Predictor interface {
	Predict(w domain.Window) ([]float64, error)
}

// Publisher hands a finished forecast to a downstream sink.
type Publisher interface {
	Publish(ctx context.Context, forecast domain.Forecast) error
}

// Pipeline runs fetch, transform, predict and publish once per Run.
type Pipeline struct {
	fetcher     Fetcher
	transformer *Transformer
	predictor   Predictor
	publisher   Publisher
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// New creates a Pipeline with the given stages and observability. A nil
// publisher disables the forecast sink.
func New(f Fetcher, t *Transformer, pr Predictor, pub Publisher, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		fetcher:     f,
		transformer: t,
		predictor:   pr,
		publisher:   pub,
		logger:      logger,
		metrics:     metrics,
	}
}

// Run produces one forecast. Any stage error aborts the run; the error keeps
// its domain sentinel and is counted by kind.
func (p *Pipeline) Run(ctx context.Context) (domain.Forecast, error) {
	station := p.fetcher.Station()
	p.logger.Info("forecast run started", "station", station)

	forecast, err := p.run(ctx, station)
	if err != nil {
		kind := domain.ErrorKind(err)
		p.metrics.RunErrors.WithLabelValues(kind).Inc()
		p.logger.Error("forecast run failed", "station", station, "kind", kind, "error", err)
		return domain.Forecast{}, err
	}

	p.metrics.ForecastCelsius.Set(forecast.MeanTemperature)
	p.metrics.LastSuccess.Set(float64(forecast.IssuedAt.Unix()))
	p.logger.Info("forecast ready",
		"station", station,
		"target_date", forecast.TargetDate.Format(time.DateOnly),
		"mean_temperature", forecast.MeanTemperature,
	)
	return forecast, nil
}

func (p *Pipeline) run(ctx context.Context, station string) (domain.Forecast, error) {
	var text string
	err := p.timed("fetch", func() (err error) {
		text, err = p.fetcher.Fetch(ctx)
		return err
	})
	if err != nil {
		return domain.Forecast{}, err
	}

	var table domain.ObservationTable
	if err := p.timed("parse", func() (err error) {
		table, err = p.transformer.Parse(text)
		return err
	}); err != nil {
		return domain.Forecast{}, err
	}
	if table.Station == "" {
		table.Station = station
	}
	p.metrics.RowsFetched.Set(float64(table.Len()))

	var encoded domain.Encoded
	if err := p.timed("encode", func() (err error) {
		encoded, err = p.transformer.Encode(table)
		return err
	}); err != nil {
		return domain.Forecast{}, err
	}
	rows, dim := encoded.Features.Dims()
	p.metrics.RowsDropped.Set(float64(encoded.Dropped))
	p.metrics.FeatureDim.Set(float64(dim))
	p.logger.Debug("features encoded", "rows", rows, "dropped", encoded.Dropped, "feature_dim", dim)

	var window domain.Window
	if err := p.timed("window", func() (err error) {
		window, err = p.transformer.Window(encoded.Features)
		return err
	}); err != nil {
		return domain.Forecast{}, err
	}

	var outputs []float64
	if err := p.timed("predict", func() (err error) {
		outputs, err = p.predictor.Predict(window)
		return err
	}); err != nil {
		return domain.Forecast{}, err
	}
	if len(outputs) == 0 {
		return domain.Forecast{}, fmt.Errorf("%w: model returned no outputs", domain.ErrShapeMismatch)
	}

	forecast := domain.NewForecast(table.Station, encoded.Features, outputs[len(outputs)-1])

	if p.publisher != nil {
		if err := p.timed("publish", func() error {
			return p.publisher.Publish(ctx, forecast)
		}); err != nil {
			return domain.Forecast{}, err
		}
	}
	return forecast, nil
}

// timed runs fn and records its duration under the stage label.
func (p *Pipeline) timed(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	p.metrics.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	p.logger.Debug("stage finished", "stage", stage, "duration", elapsed)
	if err != nil {
		return fmt.Errorf("%s: %w", stage, err)
	}
	return nil
}

// Report writes the rounded forecast followed by a newline.
func Report(w io.Writer, forecast domain.Forecast) error {
	_, err := fmt.Fprintln(w, forecast.String())
	return err
}
