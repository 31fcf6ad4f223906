package pipeline_test

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/knmi-forecast/internal/adapter/knmi"
	"github.com/couchcryptid/knmi-forecast/internal/model"
	"github.com/couchcryptid/knmi-forecast/internal/observability"
	"github.com/couchcryptid/knmi-forecast/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeWeights saves a state dict for a layers-deep LSTM over input features.
// With zero weights the network outputs exactly fc.bias.
func writeWeights(t *testing.T, dir string, input, hidden, layers int, rng *rand.Rand, fcBias float64) string {
	t.Helper()
	fill := func(shape ...int) model.Tensor {
		tensor := model.Tensor{Shape: shape}
		tensor.Data = make([]float64, tensor.Len())
		if rng != nil {
			for i := range tensor.Data {
				tensor.Data[i] = rng.Float64()*0.2 - 0.1
			}
		}
		return tensor
	}

	tensors := map[string]model.Tensor{}
	in := input
	for k := 0; k < layers; k++ {
		tensors[fmt.Sprintf("rnn.weight_ih_l%d", k)] = fill(4*hidden, in)
		tensors[fmt.Sprintf("rnn.weight_hh_l%d", k)] = fill(4*hidden, hidden)
		tensors[fmt.Sprintf("rnn.bias_ih_l%d", k)] = fill(4 * hidden)
		tensors[fmt.Sprintf("rnn.bias_hh_l%d", k)] = fill(4 * hidden)
		in = hidden
	}
	tensors["fc.weight"] = fill(1, hidden)
	tensors["fc.bias"] = model.Tensor{Shape: []int{1}, Data: []float64{fcBias}}

	var buf bytes.Buffer
	require.NoError(t, model.WriteStateDict(&buf, tensors))
	path := filepath.Join(dir, "model.pt")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

// feedServer serves the feed text the way the KNMI endpoint does.
func feedServer(t *testing.T, text string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "279", r.URL.Query().Get("stns"))
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(text))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPipeline_EndToEnd_ZeroWeights(t *testing.T) {
	fixedClock(t)
	start := time.Date(2022, time.November, 30, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, time.November, 30, 0, 0, 0, 0, time.UTC)

	// 366 days of feed, truncated to the last 365 rows: every month present.
	srv := feedServer(t, feedText(t, start, 366))
	weights := writeWeights(t, t.TempDir(), 8+12, 4, 2, nil, 0.25)

	lstm, err := model.Load(weights, model.Options{HiddenSize: 4, Layers: 2, Device: model.CPU})
	require.NoError(t, err)
	assert.Equal(t, 20, lstm.InputSize())

	logger := discardLogger()
	client := knmi.NewClient(srv.URL, "279", end, logger)
	p := pipeline.New(client, pipeline.NewTransformer(knmi.DefaultHeaderLines, logger), lstm, nil, logger, observability.NewMetricsForTesting())

	forecast, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 365, forecast.Rows)
	assert.Equal(t, 20, forecast.FeatureDim)
	assert.Equal(t, time.Date(2023, time.December, 1, 0, 0, 0, 0, time.UTC), forecast.TargetDate)
	assert.InDelta(t, 0.25, forecast.Raw, 1e-9)

	var out bytes.Buffer
	require.NoError(t, pipeline.Report(&out, forecast))
	assert.Equal(t, "0.3\n", out.String())
}

func TestPipeline_EndToEnd_MatchesDirectPrediction(t *testing.T) {
	fixedClock(t)
	start := time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)
	text := feedText(t, start, 60)

	rng := rand.New(rand.NewSource(7))
	// March and April only.
	weights := writeWeights(t, t.TempDir(), 8+2, 5, 2, rng, 0.1)
	lstm, err := model.Load(weights, model.Options{HiddenSize: 5, Layers: 2})
	require.NoError(t, err)

	logger := discardLogger()
	transformer := pipeline.NewTransformer(knmi.DefaultHeaderLines, logger)
	client := knmi.NewClient(feedServer(t, text).URL, "279", time.Date(2023, time.April, 30, 0, 0, 0, 0, time.UTC), logger)
	p := pipeline.New(client, transformer, lstm, nil, logger, observability.NewMetricsForTesting())

	forecast, err := p.Run(context.Background())
	require.NoError(t, err)

	table, err := transformer.Parse(text)
	require.NoError(t, err)
	encoded, err := transformer.Encode(table)
	require.NoError(t, err)
	window, err := transformer.Window(encoded.Features)
	require.NoError(t, err)
	outputs, err := lstm.Predict(window)
	require.NoError(t, err)

	assert.Len(t, outputs, 60-15)
	assert.InDelta(t, outputs[len(outputs)-1], forecast.Raw, 1e-12)
	// Padding slots share one output.
	assert.InDelta(t, outputs[0], outputs[1], 1e-12)
}

func TestPipeline_EndToEnd_FeatureDimMismatch(t *testing.T) {
	fixedClock(t)
	start := time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)

	// Weights trained on all twelve months, feed covers two.
	weights := writeWeights(t, t.TempDir(), 20, 3, 2, nil, 0)
	lstm, err := model.Load(weights, model.Options{HiddenSize: 3, Layers: 2})
	require.NoError(t, err)

	logger := discardLogger()
	client := knmi.NewClient(feedServer(t, feedText(t, start, 60)).URL, "279", time.Time{}, logger)
	p := pipeline.New(client, pipeline.NewTransformer(knmi.DefaultHeaderLines, logger), lstm, nil, logger, observability.NewMetricsForTesting())

	_, err = p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "predict")
	assert.Contains(t, err.Error(), "model expects 20")
}
