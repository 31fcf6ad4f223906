package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// zeroScaleTolerance treats a standard deviation this small as zero variance.
const zeroScaleTolerance = 10 * 2.220446049250313e-16

// FeatureMatrix is the numeric model input before windowing. Rows are days in
// ascending order, columns are named by Columns.
type FeatureMatrix struct {
	Columns  []string
	Data     *mat.Dense
	LastDate time.Time
}

// Dims returns the row count and the feature dimension D.
func (m FeatureMatrix) Dims() (rows, dim int) {
	if m.Data == nil {
		return 0, len(m.Columns)
	}
	return m.Data.Dims()
}

// Column returns a copy of the named column, or nil if it does not exist.
func (m FeatureMatrix) Column(name string) []float64 {
	for j, c := range m.Columns {
		if c == name {
			return mat.Col(nil, j, m.Data)
		}
	}
	return nil
}

// MonthColumns returns the one-hot column names present in the matrix.
func (m FeatureMatrix) MonthColumns() []string {
	var out []string
	for _, c := range m.Columns {
		if strings.HasPrefix(c, "month_") {
			out = append(out, c)
		}
	}
	return out
}

// Scaler holds the per-column statistics a Standardize call fitted.
type Scaler struct {
	Means  []float64
	Scales []float64
}

// Encoded is the result of running every encoder stage over a table.
type Encoded struct {
	Features FeatureMatrix
	Scaler   Scaler
	Dropped  int
}

// Encode runs DropIncomplete, RescaleTemperature, DeriveMonth, OneHotMonths
// and Standardize in that order.
func Encode(table ObservationTable) (Encoded, error) {
	complete, dropped := DropIncomplete(table)
	observations, err := DeriveMonth(RescaleTemperature(complete))
	if err != nil {
		return Encoded{}, err
	}
	features, err := OneHotMonths(observations)
	if err != nil {
		return Encoded{}, err
	}
	scaled, scaler := Standardize(features)
	return Encoded{Features: scaled, Scaler: scaler, Dropped: dropped}, nil
}

// DropIncomplete returns a copy of the table without rows that miss any
// retained value, and the number of rows removed.
func DropIncomplete(table ObservationTable) (ObservationTable, int) {
	rows := make([]RawObservation, 0, len(table.Rows))
	for _, r := range table.Rows {
		if r.complete() {
			rows = append(rows, r)
		}
	}
	return ObservationTable{Station: table.Station, Rows: rows}, len(table.Rows) - len(rows)
}

// RescaleTemperature converts TG from tenths of a degree to degrees Celsius.
func RescaleTemperature(table ObservationTable) ObservationTable {
	rows := make([]RawObservation, len(table.Rows))
	for i, r := range table.Rows {
		if r.MeanTemperature.Valid {
			r.MeanTemperature.Value /= 10
		}
		rows[i] = r
	}
	return ObservationTable{Station: table.Station, Rows: rows}
}

// DeriveMonth parses each row's date and attaches its calendar month. Rows
// must already be complete.
func DeriveMonth(table ObservationTable) ([]Observation, error) {
	out := make([]Observation, 0, len(table.Rows))
	for i, r := range table.Rows {
		date, err := time.Parse(FeedDateFormat, r.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d date %q: %v", ErrParse, i, r.Date, err)
		}
		out = append(out, Observation{
			Date:                  date,
			Month:                 date.Month(),
			Humidity:              r.Humidity.Value,
			MaxPressure:           r.MaxPressure.Value,
			MinPressure:           r.MinPressure.Value,
			Precipitation:         r.Precipitation.Value,
			Radiation:             r.Radiation.Value,
			WindSpeed:             r.WindSpeed.Value,
			PrecipitationDuration: r.PrecipitationDuration.Value,
			MeanTemperature:       r.MeanTemperature.Value,
		})
	}
	return out, nil
}

// OneHotMonths builds the feature matrix: the numeric columns followed by one
// indicator column per month observed in the rows. Months that do not occur
// get no column. The date is dropped.
func OneHotMonths(observations []Observation) (FeatureMatrix, error) {
	if len(observations) == 0 {
		return FeatureMatrix{}, fmt.Errorf("%w: no complete observations to encode", ErrShapeMismatch)
	}

	seen := make(map[time.Month]bool)
	for _, o := range observations {
		seen[o.Month] = true
	}
	months := make([]int, 0, len(seen))
	for m := range seen {
		months = append(months, int(m))
	}
	sort.Ints(months)

	columns := make([]string, 0, len(FeatureColumns)+len(months))
	columns = append(columns, FeatureColumns...)
	monthIndex := make(map[time.Month]int, len(months))
	for i, m := range months {
		monthIndex[time.Month(m)] = len(FeatureColumns) + i
		columns = append(columns, fmt.Sprintf("month_%d", m))
	}

	data := mat.NewDense(len(observations), len(columns), nil)
	for i, o := range observations {
		for j, v := range o.Features() {
			data.Set(i, j, v)
		}
		data.Set(i, monthIndex[o.Month], 1)
	}

	return FeatureMatrix{
		Columns:  columns,
		Data:     data,
		LastDate: observations[len(observations)-1].Date,
	}, nil
}

// Standardize fits the mean and population standard deviation of every
// column on m itself and returns the transformed copy. A column whose
// standard deviation is zero keeps a scale of 1.
func Standardize(m FeatureMatrix) (FeatureMatrix, Scaler) {
	rows, cols := m.Dims()
	scaler := Scaler{
		Means:  make([]float64, cols),
		Scales: make([]float64, cols),
	}
	out := mat.NewDense(rows, cols, nil)
	col := make([]float64, rows)

	for j := 0; j < cols; j++ {
		mat.Col(col, j, m.Data)
		mean, std := stat.PopMeanStdDev(col, nil)
		if std < zeroScaleTolerance || math.IsNaN(std) {
			std = 1
		}
		scaler.Means[j] = mean
		scaler.Scales[j] = std
		for i, v := range col {
			out.Set(i, j, (v-mean)/std)
		}
	}

	return FeatureMatrix{
		Columns:  append([]string(nil), m.Columns...),
		Data:     out,
		LastDate: m.LastDate,
	}, scaler
}
