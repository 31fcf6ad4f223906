package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus/push"
)

// PushJob is the Pushgateway job name for forecast runs.
const PushJob = "temperature_forecast"

// Push replaces the metrics for this job and station on the Pushgateway at url.
func (m *Metrics) Push(ctx context.Context, url, station string) error {
	err := push.New(url, PushJob).
		Gatherer(m.registry).
		Grouping("station", station).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
