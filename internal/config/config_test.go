package config

import (
	"testing"
	"time"

	"github.com/couchcryptid/knmi-forecast/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://www.daggegevens.knmi.nl/klimatologie/daggegevens", cfg.KNMIBaseURL)
	assert.Equal(t, "279", cfg.Station)
	assert.True(t, cfg.EndDate.IsZero())
	assert.Equal(t, 46, cfg.FeedHeaderLines)
	assert.Equal(t, "model.pt", cfg.ModelPath)
	assert.Equal(t, "cpu", cfg.ModelDevice)
	assert.True(t, cfg.ModelDeviceFallback)
	assert.Equal(t, 500, cfg.ModelHiddenSize)
	assert.Equal(t, 2, cfg.ModelLayers)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.KafkaEnabled())
	assert.Equal(t, "temperature-forecasts", cfg.KafkaForecastTopic)
	assert.Empty(t, cfg.PushgatewayURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("KNMI_BASE_URL", "http://localhost:9000/daggegevens")
	t.Setenv("KNMI_STATION", "260")
	t.Setenv("KNMI_END_DATE", "20231130")
	t.Setenv("FEED_HEADER_LINES", "0")
	t.Setenv("MODEL_PATH", "/models/lstm.pt")
	t.Setenv("MODEL_DEVICE", "mps")
	t.Setenv("MODEL_DEVICE_FALLBACK", "false")
	t.Setenv("MODEL_HIDDEN_SIZE", "64")
	t.Setenv("MODEL_LAYERS", "1")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_FORECAST_TOPIC", "custom-forecasts")
	t.Setenv("PUSHGATEWAY_URL", "http://pushgateway:9091")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000/daggegevens", cfg.KNMIBaseURL)
	assert.Equal(t, "260", cfg.Station)
	assert.Equal(t, time.Date(2023, time.November, 30, 0, 0, 0, 0, time.UTC), cfg.EndDate)
	assert.Equal(t, 0, cfg.FeedHeaderLines)
	assert.Equal(t, "/models/lstm.pt", cfg.ModelPath)
	assert.Equal(t, "mps", cfg.ModelDevice)
	assert.False(t, cfg.ModelDeviceFallback)
	assert.Equal(t, 64, cfg.ModelHiddenSize)
	assert.Equal(t, 1, cfg.ModelLayers)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, "custom-forecasts", cfg.KafkaForecastTopic)
	assert.Equal(t, "http://pushgateway:9091", cfg.PushgatewayURL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_EndDateUsesFeedLayout(t *testing.T) {
	want := time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)
	t.Setenv("KNMI_END_DATE", want.Format(domain.FeedDateFormat))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, want, cfg.EndDate)
}

func TestLoad_InvalidEndDate(t *testing.T) {
	for _, v := range []string{"2023-11-30", "30112023", "20231131", "2023113"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("KNMI_END_DATE", v)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "KNMI_END_DATE")
		})
	}
}

func TestLoad_InvalidHeaderLines(t *testing.T) {
	t.Setenv("FEED_HEADER_LINES", "-3")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FEED_HEADER_LINES")
}

func TestLoad_InvalidHiddenSize(t *testing.T) {
	t.Setenv("MODEL_HIDDEN_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MODEL_HIDDEN_SIZE")
}

func TestLoad_InvalidLayers(t *testing.T) {
	t.Setenv("MODEL_LAYERS", "two")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MODEL_LAYERS")
}

func TestLoad_InvalidDeviceFallback(t *testing.T) {
	t.Setenv("MODEL_DEVICE_FALLBACK", "maybe")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MODEL_DEVICE_FALLBACK")
}
