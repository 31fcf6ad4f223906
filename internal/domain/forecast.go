package domain

import (
	"math"
	"strconv"
	"time"
)

// Forecast is the next-day mean temperature prediction for one station.
type Forecast struct {
	Station         string    `json:"station"`
	TargetDate      time.Time `json:"target_date"`
	Raw             float64   `json:"raw"`
	MeanTemperature float64   `json:"mean_temperature"`
	FeatureDim      int       `json:"feature_dim"`
	Rows            int       `json:"rows"`
	IssuedAt        time.Time `json:"issued_at"`
}

// NewForecast builds a Forecast from the final model output. The target date
// is the day after the last encoded observation.
func NewForecast(station string, features FeatureMatrix, raw float64) Forecast {
	rows, dim := features.Dims()
	var target time.Time
	if !features.LastDate.IsZero() {
		target = features.LastDate.AddDate(0, 0, 1)
	}
	return Forecast{
		Station:         station,
		TargetDate:      target,
		Raw:             raw,
		MeanTemperature: RoundForecast(raw),
		FeatureDim:      dim,
		Rows:            rows,
		IssuedAt:        clock.Now().UTC(),
	}
}

// RoundForecast rounds v to one decimal place, halves away from zero:
// 7.04 -> 7.0, 7.05 -> 7.1, -7.05 -> -7.1.
func RoundForecast(v float64) float64 {
	return math.Round(v*10) / 10
}

// String formats the rounded temperature with exactly one decimal.
func (f Forecast) String() string {
	return strconv.FormatFloat(f.MeanTemperature, 'f', 1, 64)
}
