package pipeline

import (
	"log/slog"

	"github.com/couchcryptid/knmi-forecast/internal/adapter/knmi"
	"github.com/couchcryptid/knmi-forecast/internal/domain"
)

// Transformer turns raw feed text into the model's input window. Each step
// is a pure function of its input so the pipeline can time them separately.
type Transformer struct {
	headerLines  int
	windowLength int
	logger       *slog.Logger
}

// NewTransformer creates a Transformer that skips headerLines lines of feed
// preamble and builds windows of domain.WindowLength days.
func NewTransformer(headerLines int, logger *slog.Logger) *Transformer {
	return &Transformer{
		headerLines:  headerLines,
		windowLength: domain.WindowLength,
		logger:       logger,
	}
}

// Parse reads the observation table out of the feed text.
func (t *Transformer) Parse(text string) (domain.ObservationTable, error) {
	table, err := knmi.ParseFeed(text, t.headerLines)
	if err != nil {
		return domain.ObservationTable{}, err
	}
	t.logger.Debug("feed parsed", "station", table.Station, "rows", table.Len())
	return table, nil
}

// Encode cleans, one-hot encodes and standardizes the table.
func (t *Transformer) Encode(table domain.ObservationTable) (domain.Encoded, error) {
	encoded, err := domain.Encode(table)
	if err != nil {
		return domain.Encoded{}, err
	}
	if encoded.Dropped > 0 {
		t.logger.Warn("dropped incomplete rows", "station", table.Station, "dropped", encoded.Dropped)
	}
	return encoded, nil
}

// Window builds the sliding-window tensor from the encoded features.
func (t *Transformer) Window(features domain.FeatureMatrix) (domain.Window, error) {
	return domain.BuildWindow(features, t.windowLength)
}
