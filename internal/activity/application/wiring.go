package application

import (
	"context"

	"go.uber.org/zap"

	"factory-monitor/internal/activity/application/events"
	"factory-monitor/internal/eventing"
	"factory-monitor/internal/observability/metrics"
)

// WireIngestObservers subscribes the ingest counters and debug log to EventIngested.
func WireIngestObservers(bus eventing.Bus, logger *zap.Logger) {
	if bus == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	eventing.Subscribe(bus, func(_ context.Context, evt events.EventIngested) error {
		metrics.IncEventIngested(evt.EventType)
		logger.Debug("event ingested",
			zap.String("event_id", evt.EventID),
			zap.String("worker_id", evt.WorkerID),
			zap.String("workstation_id", evt.WorkstationID),
			zap.String("event_type", evt.EventType),
			zap.Time("timestamp", evt.Timestamp),
		)
		return nil
	})
}
