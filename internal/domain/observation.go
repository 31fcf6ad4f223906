package domain

import "time"

// FeedDateFormat is the layout of the YYYYMMDD column.
const FeedDateFormat = "20060102"

// TableRows is how many of the most recent feed rows are retained.
const TableRows = 365

// FeatureColumns lists the retained numeric feed columns in model order.
var FeatureColumns = []string{"UG", "PX", "PN", "RH", "Q", "FG", "DR", "TG"}

// NullFloat is a feed value that may be missing.
type NullFloat struct {
	Value float64
	Valid bool
}

// Float returns a valid NullFloat holding v.
func Float(v float64) NullFloat {
	return NullFloat{Value: v, Valid: true}
}

// RawObservation is one feed row restricted to the retained columns, before
// cleaning. Date is still the raw YYYYMMDD text.
type RawObservation struct {
	Date                  string
	Humidity              NullFloat // UG
	MaxPressure           NullFloat // PX
	MinPressure           NullFloat // PN
	Precipitation         NullFloat // RH
	Radiation             NullFloat // Q
	WindSpeed             NullFloat // FG
	PrecipitationDuration NullFloat // DR
	MeanTemperature       NullFloat // TG
}

// complete reports whether every retained value is present.
func (r RawObservation) complete() bool {
	if r.Date == "" {
		return false
	}
	for _, v := range r.values() {
		if !v.Valid {
			return false
		}
	}
	return true
}

func (r RawObservation) values() []NullFloat {
	return []NullFloat{
		r.Humidity,
		r.MaxPressure,
		r.MinPressure,
		r.Precipitation,
		r.Radiation,
		r.WindSpeed,
		r.PrecipitationDuration,
		r.MeanTemperature,
	}
}

// ObservationTable is the parsed feed for one station.
type ObservationTable struct {
	Station string
	Rows    []RawObservation
}

// Len returns the number of rows.
func (t ObservationTable) Len() int {
	return len(t.Rows)
}

// Observation is a cleaned, complete feed row with its calendar month.
type Observation struct {
	Date                  time.Time
	Month                 time.Month
	Humidity              float64
	MaxPressure           float64
	MinPressure           float64
	Precipitation         float64
	Radiation             float64
	WindSpeed             float64
	PrecipitationDuration float64
	MeanTemperature       float64
}

// Features returns the numeric values in FeatureColumns order.
func (o Observation) Features() []float64 {
	return []float64{
		o.Humidity,
		o.MaxPressure,
		o.MinPressure,
		o.Precipitation,
		o.Radiation,
		o.WindSpeed,
		o.PrecipitationDuration,
		o.MeanTemperature,
	}
}
