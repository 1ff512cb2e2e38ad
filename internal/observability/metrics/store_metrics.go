package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// EventCounter reports the number of stored events.
type EventCounter interface {
	Count(ctx context.Context) (int64, error)
}

const storeCountTimeout = 2 * time.Second

func registerStoreMetrics(counter EventCounter, logger *zap.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "store_events",
			Help: "Events currently stored",
		},
		func() float64 {
			return queryCount(counter, logger)
		},
	))
}

func queryCount(counter EventCounter, logger *zap.Logger) float64 {
	if counter == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeCountTimeout)
	defer cancel()

	count, err := counter.Count(ctx)
	if err != nil {
		if logger != nil {
			logger.Warn("metrics store count failed", zap.Error(err))
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
