package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"factory-monitor/internal/analytics/application"
)

func sampleReport() application.Report {
	end := time.Date(2026, 1, 15, 16, 0, 0, 0, time.UTC)
	return application.Report{
		GeneratedAt: end,
		Start:       end.Add(-8 * time.Hour),
		End:         end,
		Factory: application.FactoryMetrics{
			TotalProductiveTime:   612.5,
			TotalProductionCount:  42,
			AverageProductionRate: 5.25,
			AverageUtilization:    71.3,
			WorkerCount:           2,
			ActiveWorkers:         2,
		},
		Workers: []application.WorkerMetrics{
			{WorkerID: "W1", Name: "John Smith", TotalActiveTime: 300, TotalIdleTime: 120, UtilizationPercentage: 71.43, TotalUnitsProduced: 20, UnitsPerHour: 4},
			{WorkerID: "W2", Name: "Sarah Johnson", TotalActiveTime: 312.5, TotalIdleTime: 125, UtilizationPercentage: 71.43, TotalUnitsProduced: 22, UnitsPerHour: 4.22},
		},
		Workstations: []application.WorkstationMetrics{
			{StationID: "S1", Name: "Assembly Line 1", OccupancyTime: 420, UtilizationPercentage: 87.5, TotalUnitsProduced: 42, ThroughputRate: 6},
		},
	}
}

func TestBuildPDF(t *testing.T) {
	data, err := BuildPDF(sampleReport())
	if err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("expected pdf header")
	}
}

func TestBuildXLSX(t *testing.T) {
	data, err := BuildXLSX(sampleReport())
	if err != nil {
		t.Fatalf("build xlsx: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()

	name, err := f.GetCellValue(workersSheet, "B3")
	if err != nil {
		t.Fatalf("read cell: %v", err)
	}
	if name != "Sarah Johnson" {
		t.Fatalf("expected Sarah Johnson, got %q", name)
	}
	total, err := f.GetCellValue(summarySheet, "B6")
	if err != nil {
		t.Fatalf("read cell: %v", err)
	}
	if total != "42" {
		t.Fatalf("expected production count 42, got %q", total)
	}
	station, _ := f.GetCellValue(stationsSheet, "A2")
	if station != "S1" {
		t.Fatalf("expected S1, got %q", station)
	}
}
