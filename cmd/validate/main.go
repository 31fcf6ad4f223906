// Command validate runs offline integrity checks on a saved KNMI feed and a
// weight file: the feed parses, the encoded features have the expected
// layout and statistics, the window is well formed and the weights accept it.
// It prints the forecast the pair would produce.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -feed data/mock/knmi_279.txt \
//	  -weights data/mock/model.pt \
//	  -hidden 32
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/knmi-forecast/internal/adapter/knmi"
	"github.com/couchcryptid/knmi-forecast/internal/domain"
	"github.com/couchcryptid/knmi-forecast/internal/model"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	feedPath := flag.String("feed", "", "path to a saved KNMI daily feed")
	weightsPath := flag.String("weights", "", "path to the PyTorch state dict (torch.save)")
	headerLines := flag.Int("header-lines", knmi.DefaultHeaderLines, "metadata lines before the column header")
	hidden := flag.Int("hidden", model.DefaultHiddenSize, "LSTM hidden size")
	layers := flag.Int("layers", model.DefaultLayers, "LSTM layer count")
	flag.Parse()

	if *feedPath == "" || *weightsPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(*feedPath, *weightsPath, *headerLines, model.Options{HiddenSize: *hidden, Layers: *layers}))
}

func run(feedPath, weightsPath string, headerLines int, opts model.Options) int {
	fmt.Println("=== Forecast Input Validation ===")
	fmt.Println()

	data, err := os.ReadFile(feedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read feed: %v\n", err)
		return 1
	}

	table, feedPhase := validateFeed(string(data), headerLines)
	phases := []*phase{feedPhase}

	var (
		encoded domain.Encoded
		window  domain.Window
		outputs []float64
	)
	if feedPhase.passed() {
		var p *phase
		encoded, p = validateEncoding(table)
		phases = append(phases, p)
	}
	if len(phases) == 2 && phases[1].passed() {
		var p *phase
		window, p = validateWindow(encoded.Features)
		phases = append(phases, p)
	}
	if len(phases) == 3 && phases[2].passed() {
		var p *phase
		outputs, p = validateModel(weightsPath, opts, window)
		phases = append(phases, p)
	}

	fmt.Println()
	allPassed := len(phases) == 4
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	rows, dim := encoded.Features.Dims()
	fmt.Printf("Rows: %d in table, %d dropped, %d encoded, feature_dim %d\n", table.Len(), encoded.Dropped, rows, dim)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if !allPassed {
		fmt.Println("\nValidation FAILED.")
		return 1
	}

	forecast := domain.NewForecast(table.Station, encoded.Features, outputs[len(outputs)-1])
	fmt.Printf("\nForecast for %s: %s\n", forecast.TargetDate.Format(time.DateOnly), forecast)
	fmt.Println("\nAll validations passed.")
	return 0
}

// ── Phase 1: Feed ──
// The feed parses and holds consecutive daily rows for one station.

func validateFeed(text string, headerLines int) (domain.ObservationTable, *phase) {
	p := &phase{name: "Phase 1: Feed (parse, dates)"}

	table, err := knmi.ParseFeed(text, headerLines)
	if err != nil {
		p.errorf("%v", err)
		return table, p
	}
	if table.Len() == 0 {
		p.errorf("feed has no data rows")
		return table, p
	}
	if table.Len() > domain.TableRows {
		p.errorf("table has %d rows, parser should keep %d", table.Len(), domain.TableRows)
	}
	if table.Station == "" {
		p.errorf("no station number in any row")
	}

	var prev time.Time
	for i, r := range table.Rows {
		d, err := time.Parse(domain.FeedDateFormat, r.Date)
		if err != nil {
			p.errorf("row %d: date %q: %v", i, r.Date, err)
			continue
		}
		if !prev.IsZero() {
			switch gap := d.Sub(prev); {
			case gap <= 0:
				p.errorf("row %d: date %s not after %s", i, r.Date, prev.Format(domain.FeedDateFormat))
			case gap > 24*time.Hour:
				fmt.Printf("  Note: %d day gap before %s\n", int(gap.Hours()/24)-1, r.Date)
			}
		}
		prev = d
	}
	return table, p
}

// ── Phase 2: Encoding ──
// Columns are the numeric features then ascending months, and every column
// is either standardized or a constant zero.

func validateEncoding(table domain.ObservationTable) (domain.Encoded, *phase) {
	p := &phase{name: "Phase 2: Encoding (layout, scaling)"}

	encoded, err := domain.Encode(table)
	if err != nil {
		p.errorf("%v", err)
		return encoded, p
	}

	cols := encoded.Features.Columns
	if len(cols) < len(domain.FeatureColumns)+1 {
		p.errorf("only %d columns, want the %d numeric ones and at least one month", len(cols), len(domain.FeatureColumns))
		return encoded, p
	}
	for i, c := range domain.FeatureColumns {
		if cols[i] != c {
			p.errorf("column %d is %q, want %q", i, cols[i], c)
		}
	}
	months := encoded.Features.MonthColumns()
	if len(months)+len(domain.FeatureColumns) != len(cols) {
		p.errorf("unexpected columns %v", cols)
	}
	if len(months) != 12 {
		fmt.Printf("  Note: %d month columns; weights trained on a full year expect 12\n", len(months))
	}

	rows, _ := encoded.Features.Dims()
	for j, name := range cols {
		col := mat.Col(nil, j, encoded.Features.Data)
		mean, std := stat.PopMeanStdDev(col, nil)
		switch {
		case math.IsNaN(mean) || math.IsNaN(std):
			p.errorf("%s: NaN after scaling", name)
		case math.Abs(mean) > 1e-9:
			p.errorf("%s: mean %g after scaling", name, mean)
		case std < 1e-9:
			if rows > 1 {
				fmt.Printf("  Note: %s is constant\n", name)
			}
		case math.Abs(std-1) > 1e-9:
			p.errorf("%s: std %g after scaling", name, std)
		}
	}
	return encoded, p
}

// ── Phase 3: Window ──
// The final slot holds the last days of features; all other slots are zero.

func validateWindow(features domain.FeatureMatrix) (domain.Window, *phase) {
	p := &phase{name: "Phase 3: Window (shape, padding)"}

	w, err := domain.BuildWindow(features, domain.WindowLength)
	if err != nil {
		p.errorf("%v", err)
		return w, p
	}

	rows, dim := features.Dims()
	if w.Slots != rows-domain.WindowLength || w.Length != domain.WindowLength || w.Dim != dim {
		p.errorf("shape (%d, %d, %d), want (%d, %d, %d)", w.Slots, w.Length, w.Dim, rows-domain.WindowLength, domain.WindowLength, dim)
	}
	for s := 0; s < w.Slots-1; s++ {
		for _, v := range w.Slot(s) {
			if v != 0 {
				p.errorf("slot %d is not zero padding", s)
				break
			}
		}
	}
	for step := 0; step < w.Length; step++ {
		row := rows - w.Length + step
		for j := 0; j < dim; j++ {
			if got, want := w.At(w.Slots-1, step, j), float32(features.Data.At(row, j)); got != want {
				p.errorf("final slot step %d feature %d: %g, want %g", step, j, got, want)
			}
		}
	}
	return w, p
}

// ── Phase 4: Model ──
// The weight file loads, matches the feature dimension and gives finite output.

func validateModel(path string, opts model.Options, w domain.Window) ([]float64, *phase) {
	p := &phase{name: "Phase 4: Model (weights, inference)"}

	lstm, err := model.Load(path, opts)
	if err != nil {
		if model.IsMissingTensor(err) {
			p.errorf("weight file is not an LSTM state dict of this layout: %v", err)
		} else {
			p.errorf("%v", err)
		}
		return nil, p
	}
	if lstm.InputSize() != w.Dim {
		p.errorf("weights expect %d features, feed encodes %d", lstm.InputSize(), w.Dim)
		return nil, p
	}

	outputs, err := lstm.Predict(w)
	if err != nil {
		p.errorf("%v", err)
		return nil, p
	}
	if len(outputs) != w.Slots {
		p.errorf("%d outputs for %d slots", len(outputs), w.Slots)
	}
	for i, v := range outputs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			p.errorf("output %d is %g", i, v)
		}
	}
	return outputs, p
}
