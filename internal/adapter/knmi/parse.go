package knmi

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/couchcryptid/knmi-forecast/internal/domain"
	"github.com/gocarina/gocsv"
)

// DefaultHeaderLines is the size of the metadata block that precedes the
// column header in a KNMI daily feed.
const DefaultHeaderLines = 46

// record is one feed row as it appears in the CSV, restricted to the columns
// the forecast uses.
type record struct {
	Station               string `csv:"STN"`
	Date                  string `csv:"YYYYMMDD"`
	Humidity              string `csv:"UG"`
	MaxPressure           string `csv:"PX"`
	MinPressure           string `csv:"PN"`
	Precipitation         string `csv:"RH"`
	Radiation             string `csv:"Q"`
	WindSpeed             string `csv:"FG"`
	PrecipitationDuration string `csv:"DR"`
	MeanTemperature       string `csv:"TG"`
}

// requiredColumns must all appear in the feed header.
var requiredColumns = append([]string{"YYYYMMDD"}, domain.FeatureColumns...)

// ParseFeed turns raw feed text into an ObservationTable holding at most the
// last domain.TableRows rows. Every space is removed, the first headerLines
// lines are skipped and the leading "#" of the column header is stripped.
// Empty cells become missing values.
func ParseFeed(text string, headerLines int) (domain.ObservationTable, error) {
	body, header, err := stripHeader(text, headerLines)
	if err != nil {
		return domain.ObservationTable{}, err
	}
	if err := checkColumns(header); err != nil {
		return domain.ObservationTable{}, err
	}

	reader := csv.NewReader(strings.NewReader(body))
	reader.FieldsPerRecord = -1

	var records []record
	if err := gocsv.UnmarshalCSV(reader, &records); err != nil {
		return domain.ObservationTable{}, fmt.Errorf("%w: read feed csv: %v", domain.ErrParse, err)
	}

	if len(records) > domain.TableRows {
		records = records[len(records)-domain.TableRows:]
	}

	table := domain.ObservationTable{Rows: make([]domain.RawObservation, 0, len(records))}
	for i, rec := range records {
		obs, err := rec.toRaw()
		if err != nil {
			return domain.ObservationTable{}, fmt.Errorf("%w: row %d: %v", domain.ErrParse, i, err)
		}
		if table.Station == "" && rec.Date != "" {
			table.Station = rec.Station
		}
		table.Rows = append(table.Rows, obs)
	}
	return table, nil
}

// stripHeader removes spaces and the metadata block and returns the CSV text
// that starts at the column header, along with the header fields.
func stripHeader(text string, headerLines int) (string, []string, error) {
	if headerLines < 0 {
		return "", nil, fmt.Errorf("%w: negative header line count %d", domain.ErrParse, headerLines)
	}

	lines := strings.Split(strings.ReplaceAll(text, " ", ""), "\n")
	if len(lines) <= headerLines {
		return "", nil, fmt.Errorf("%w: feed has %d lines, expected more than %d header lines",
			domain.ErrParse, len(lines), headerLines)
	}
	lines = lines[headerLines:]
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], "\r")
	}
	lines[0] = strings.TrimPrefix(lines[0], "#")
	if lines[0] == "" {
		return "", nil, fmt.Errorf("%w: empty column header after %d lines", domain.ErrParse, headerLines)
	}

	return strings.Join(lines, "\n"), strings.Split(lines[0], ","), nil
}

func checkColumns(header []string) error {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	var missing []string
	for _, c := range requiredColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: feed header lacks columns %s", domain.ErrParse, strings.Join(missing, ","))
	}
	return nil
}

func (r record) toRaw() (domain.RawObservation, error) {
	var (
		out  = domain.RawObservation{Date: r.Date}
		err  error
		cols = []struct {
			name string
			raw  string
			dst  *domain.NullFloat
		}{
			{"UG", r.Humidity, &out.Humidity},
			{"PX", r.MaxPressure, &out.MaxPressure},
			{"PN", r.MinPressure, &out.MinPressure},
			{"RH", r.Precipitation, &out.Precipitation},
			{"Q", r.Radiation, &out.Radiation},
			{"FG", r.WindSpeed, &out.WindSpeed},
			{"DR", r.PrecipitationDuration, &out.PrecipitationDuration},
			{"TG", r.MeanTemperature, &out.MeanTemperature},
		}
	)
	for _, c := range cols {
		if *c.dst, err = parseValue(c.raw); err != nil {
			return domain.RawObservation{}, fmt.Errorf("column %s: %w", c.name, err)
		}
	}
	return out, nil
}

// parseValue reads one numeric cell. An empty cell is a missing value.
func parseValue(s string) (domain.NullFloat, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.NullFloat{}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return domain.NullFloat{}, err
	}
	return domain.Float(v), nil
}
