// Command genmock writes a synthetic KNMI daily feed and a matching random
// weight file, so the forecast binary and cmd/validate can run offline. The
// feature dimension of the weights is taken from encoding the generated feed
// with the domain package, so the pair always fits together.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -feed-out data/mock/knmi_279.txt \
//	  -weights-out data/mock/model.pt \
//	  -end 20231130 -hidden 32
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/knmi-forecast/internal/adapter/knmi"
	"github.com/couchcryptid/knmi-forecast/internal/domain"
	"github.com/couchcryptid/knmi-forecast/internal/model"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	feedOut := flag.String("feed-out", "", "output path for the synthetic feed")
	weightsOut := flag.String("weights-out", "", "output path for the PyTorch state dict")
	station := flag.String("station", "279", "station number written into the feed")
	end := flag.String("end", "20231130", "last observation date, YYYYMMDD")
	hidden := flag.Int("hidden", 32, "LSTM hidden size")
	layers := flag.Int("layers", model.DefaultLayers, "LSTM layer count")
	missing := flag.Int("missing", 3, "number of rows with a blank value")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	if *feedOut == "" || *weightsOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -feed-out, -weights-out")
	}
	if *hidden <= 0 || *layers <= 0 {
		return fmt.Errorf("-hidden and -layers must be positive")
	}

	endDate, err := time.Parse(domain.FeedDateFormat, *end)
	if err != nil {
		return fmt.Errorf("parse -end: %w", err)
	}

	// The client derives the one-year range from "today"; pin today to -end.
	domain.SetClock(clockwork.NewFakeClockAt(endDate.Add(6 * time.Hour)))
	defer domain.SetClock(nil)
	start, last := knmi.NewClient(knmi.DefaultBaseURL, *station, time.Time{}, slog.Default()).DateRange()

	rng := rand.New(rand.NewSource(*seed))
	rows := synthesize(rng, start, last, *missing)
	log.Printf("feed: %d days %s..%s, %d with gaps", len(rows), start.Format(time.DateOnly), last.Format(time.DateOnly), *missing)

	var feed bytes.Buffer
	if err := knmi.WriteFeed(&feed, *station, rows, knmi.DefaultHeaderLines); err != nil {
		return fmt.Errorf("render feed: %w", err)
	}

	table, err := knmi.ParseFeed(feed.String(), knmi.DefaultHeaderLines)
	if err != nil {
		return fmt.Errorf("reparse feed: %w", err)
	}
	encoded, err := domain.Encode(table)
	if err != nil {
		return fmt.Errorf("encode feed: %w", err)
	}
	_, dim := encoded.Features.Dims()
	log.Printf("encoded: feature_dim=%d months=%v dropped=%d", dim, encoded.Features.MonthColumns(), encoded.Dropped)

	var weights bytes.Buffer
	if err := model.WriteStateDict(&weights, randomWeights(rng, dim, *hidden, *layers)); err != nil {
		return fmt.Errorf("render weights: %w", err)
	}

	if err := writeFile(*feedOut, feed.Bytes()); err != nil {
		return fmt.Errorf("writing feed: %w", err)
	}
	log.Printf("wrote feed: %s", *feedOut)

	if err := writeFile(*weightsOut, weights.Bytes()); err != nil {
		return fmt.Errorf("writing weights: %w", err)
	}
	log.Printf("wrote weights: %s (input=%d hidden=%d layers=%d)", *weightsOut, dim, *hidden, *layers)
	return nil
}

// synthesize produces one row per day from start to end inclusive with a
// seasonal temperature cycle. Values are in the feed's native units.
func synthesize(rng *rand.Rand, start, end time.Time, missing int) []knmi.FeedRow {
	var rows []knmi.FeedRow //nolint:prealloc // length depends on the calendar
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		season := math.Sin(2 * math.Pi * float64(d.YearDay()-110) / 365)
		maxP := 10150 + 80*rng.NormFloat64()
		rain := math.Max(-1, math.Round(30*rng.ExpFloat64()-20))

		rows = append(rows, knmi.FeedRow{
			Date:                  d.Format(domain.FeedDateFormat),
			Humidity:              value(math.Round(82 - 10*season + 6*rng.NormFloat64())),
			MaxPressure:           value(math.Round(maxP)),
			MinPressure:           value(math.Round(maxP - 20 - 40*rng.Float64())),
			Precipitation:         value(rain),
			Radiation:             value(math.Round(math.Max(20, 1000+800*season+200*rng.NormFloat64()))),
			WindSpeed:             value(math.Round(math.Max(5, 45+12*rng.NormFloat64()))),
			PrecipitationDuration: value(math.Max(0, math.Round(rain/4))),
			MeanTemperature:       value(math.Round(105 + 70*season + 25*rng.NormFloat64())),
		})
	}

	for i := 0; i < missing && len(rows) > 0; i++ {
		rows[rng.Intn(len(rows))].Radiation = nil
	}
	return rows
}

// randomWeights returns a state dict with small uniform values so the
// network output stays within a plausible temperature range.
func randomWeights(rng *rand.Rand, input, hidden, layers int) map[string]model.Tensor {
	scale := 1 / math.Sqrt(float64(hidden))
	uniform := func(shape ...int) model.Tensor {
		t := model.Tensor{Shape: shape}
		t.Data = make([]float64, t.Len())
		for i := range t.Data {
			t.Data[i] = (2*rng.Float64() - 1) * scale
		}
		return t
	}

	tensors := map[string]model.Tensor{}
	in := input
	for k := 0; k < layers; k++ {
		tensors[fmt.Sprintf("rnn.weight_ih_l%d", k)] = uniform(4*hidden, in)
		tensors[fmt.Sprintf("rnn.weight_hh_l%d", k)] = uniform(4*hidden, hidden)
		tensors[fmt.Sprintf("rnn.bias_ih_l%d", k)] = uniform(4 * hidden)
		tensors[fmt.Sprintf("rnn.bias_hh_l%d", k)] = uniform(4 * hidden)
		in = hidden
	}
	tensors["fc.weight"] = uniform(1, hidden)
	tensors["fc.bias"] = model.Tensor{Shape: []int{1}, Data: []float64{10}}
	return tensors
}

func value(v float64) *float64 { return &v }

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
