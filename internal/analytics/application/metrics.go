package application

import (
	"time"

	activity "factory-monitor/internal/activity/domain"
	"factory-monitor/internal/analytics/domain/reconstruction"
)

// WorkerMetrics summarizes one worker over a window. Times are minutes.
type WorkerMetrics struct {
	WorkerID              string  `json:"worker_id"`
	Name                  string  `json:"name,omitempty"`
	TotalActiveTime       float64 `json:"total_active_time"`
	TotalIdleTime         float64 `json:"total_idle_time"`
	UtilizationPercentage float64 `json:"utilization_percentage"`
	TotalUnitsProduced    int64   `json:"total_units_produced"`
	UnitsPerHour          float64 `json:"units_per_hour"`
}

// WorkstationMetrics summarizes one workstation over a window. Times are minutes.
type WorkstationMetrics struct {
	StationID             string  `json:"station_id"`
	Name                  string  `json:"name,omitempty"`
	OccupancyTime         float64 `json:"occupancy_time"`
	UtilizationPercentage float64 `json:"utilization_percentage"`
	TotalUnitsProduced    int64   `json:"total_units_produced"`
	ThroughputRate        float64 `json:"throughput_rate"`
}

// FactoryMetrics aggregates every known worker.
type FactoryMetrics struct {
	TotalProductiveTime   float64 `json:"total_productive_time"`
	TotalProductionCount  int64   `json:"total_production_count"`
	AverageProductionRate float64 `json:"average_production_rate"`
	AverageUtilization    float64 `json:"average_utilization"`
	WorkerCount           int     `json:"worker_count"`
	ActiveWorkers         int     `json:"active_workers"`
}

// Report bundles all levels computed against the same end instant.
type Report struct {
	GeneratedAt  time.Time
	Start        time.Time
	End          time.Time
	Factory      FactoryMetrics
	Workers      []WorkerMetrics
	Workstations []WorkstationMetrics
}

func newWorkerMetrics(workerID, name string, res reconstruction.Result) WorkerMetrics {
	return WorkerMetrics{
		WorkerID:              workerID,
		Name:                  name,
		TotalActiveTime:       reconstruction.Round2(res.ActiveMinutes),
		TotalIdleTime:         reconstruction.Round2(res.IdleMinutes),
		UtilizationPercentage: reconstruction.Round2(res.Utilization()),
		TotalUnitsProduced:    res.UnitsProduced,
		UnitsPerHour:          reconstruction.Round2(res.UnitsPerHour()),
	}
}

// newWorkstationMetrics measures utilization against the window from its explicit start,
// or the first event, to end.
func newWorkstationMetrics(stationID, name string, res reconstruction.Result, window activity.Window, end time.Time) WorkstationMetrics {
	m := WorkstationMetrics{StationID: stationID, Name: name}
	if res.Empty() {
		return m
	}
	start := res.FirstEventAt
	if window.HasStart() {
		start = window.Start
	}
	m.OccupancyTime = reconstruction.Round2(res.OccupiedMinutes)
	m.UtilizationPercentage = reconstruction.Round2(reconstruction.Occupancy(res.OccupiedMinutes, reconstruction.WindowMinutes(start, end)))
	m.TotalUnitsProduced = res.UnitsProduced
	m.ThroughputRate = reconstruction.Round2(res.ThroughputRate())
	return m
}
