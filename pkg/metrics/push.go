package metrics

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus/push"
)

// Push sends every collector to a Pushgateway under job. Batch runs end
// before a scraper would see them, so this is how their numbers survive.
func (m *Metrics) Push(ctx context.Context, url, job string, grouping map[string]string) error {
	if url == "" {
		return nil
	}
	pusher := push.New(url, job).Gatherer(m.Registry)
	for name, value := range grouping {
		pusher = pusher.Grouping(name, value)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	slog.Info("metrics pushed", "url", url, "job", job)
	return nil
}
