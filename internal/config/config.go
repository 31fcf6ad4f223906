package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/knmi-forecast/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all forecast settings, populated from environment variables.
type Config struct {
	KNMIBaseURL     string
	Station         string
	EndDate         time.Time // zero means today
	FeedHeaderLines int

	ModelPath           string
	ModelDevice         string
	ModelDeviceFallback bool
	ModelHiddenSize     int
	ModelLayers         int

	// Forecast sink, disabled when no brokers are configured.
	KafkaBrokers       []string
	KafkaForecastTopic string

	PushgatewayURL string
	LogLevel       string
	LogFormat      string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	var endDate time.Time
	if s := os.Getenv("KNMI_END_DATE"); s != "" {
		d, err := time.Parse(domain.FeedDateFormat, s)
		if err != nil {
			return nil, errors.New("invalid KNMI_END_DATE, want YYYYMMDD")
		}
		endDate = d
	}

	headerLines, err := parseNonNegativeInt("FEED_HEADER_LINES", 46)
	if err != nil {
		return nil, err
	}
	hiddenSize, err := parsePositiveInt("MODEL_HIDDEN_SIZE", 500)
	if err != nil {
		return nil, err
	}
	layers, err := parsePositiveInt("MODEL_LAYERS", 2)
	if err != nil {
		return nil, err
	}

	fallback := true
	if v := os.Getenv("MODEL_DEVICE_FALLBACK"); v != "" {
		fallback, err = strconv.ParseBool(v)
		if err != nil {
			return nil, errors.New("invalid MODEL_DEVICE_FALLBACK")
		}
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		KNMIBaseURL:     sharedcfg.EnvOrDefault("KNMI_BASE_URL", "https://www.daggegevens.knmi.nl/klimatologie/daggegevens"),
		Station:         sharedcfg.EnvOrDefault("KNMI_STATION", "279"),
		EndDate:         endDate,
		FeedHeaderLines: headerLines,

		ModelPath:           sharedcfg.EnvOrDefault("MODEL_PATH", "model.pt"),
		ModelDevice:         sharedcfg.EnvOrDefault("MODEL_DEVICE", "cpu"),
		ModelDeviceFallback: fallback,
		ModelHiddenSize:     hiddenSize,
		ModelLayers:         layers,

		KafkaBrokers:       brokers,
		KafkaForecastTopic: sharedcfg.EnvOrDefault("KAFKA_FORECAST_TOPIC", "temperature-forecasts"),

		PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),
		LogLevel:       sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:      sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
	}

	if cfg.Station == "" {
		return nil, errors.New("KNMI_STATION is required")
	}
	if cfg.ModelPath == "" {
		return nil, errors.New("MODEL_PATH is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaForecastTopic == "" {
		return nil, errors.New("KAFKA_FORECAST_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// KafkaEnabled reports whether forecasts are published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parsePositiveInt(key string, def int) (int, error) {
	n, err := parseNonNegativeInt(key, def)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return n, nil
}

func parseNonNegativeInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
