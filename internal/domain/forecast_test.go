package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestRoundForecast(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
		text string
	}{
		{"rounds down", 7.04, 7.0, "7.0"},
		{"half rounds away from zero", 7.05, 7.1, "7.1"},
		{"float32 model output", float64(float32(7.05)), 7.1, "7.1"},
		{"negative half", -7.05, -7.1, "-7.1"},
		{"negative rounds toward zero", -7.04, -7.0, "-7.0"},
		{"integer", 12, 12, "12.0"},
		{"upper half", 0.96, 1.0, "1.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundForecast(tt.in)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.Equal(t, tt.text, Forecast{MeanTemperature: got}.String())
		})
	}
}

func TestNewForecast(t *testing.T) {
	issued := time.Date(2023, time.December, 1, 6, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(issued))
	t.Cleanup(func() { SetClock(nil) })

	fm := FeatureMatrix{
		Columns:  []string{"UG", "month_11"},
		Data:     mat.NewDense(20, 2, nil),
		LastDate: time.Date(2023, time.November, 30, 0, 0, 0, 0, time.UTC),
	}

	f := NewForecast("279", fm, 6.349)

	assert.Equal(t, "279", f.Station)
	assert.Equal(t, time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC), f.TargetDate)
	assert.Equal(t, 6.349, f.Raw)
	assert.InDelta(t, 6.3, f.MeanTemperature, 1e-12)
	assert.Equal(t, 2, f.FeatureDim)
	assert.Equal(t, 20, f.Rows)
	assert.Equal(t, issued, f.IssuedAt)
	assert.Equal(t, "6.3", f.String())
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: timeout", ErrNetwork), "network"},
		{fmt.Errorf("%w: bad row", ErrParse), "parse"},
		{fmt.Errorf("wrapped: %w", fmt.Errorf("%w: D", ErrShapeMismatch)), "shape"},
		{fmt.Errorf("%w: missing", ErrModelLoad), "model_load"},
		{errors.New("boom"), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err), tt.err.Error())
	}
}
