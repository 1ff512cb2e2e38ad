package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"factory-monitor/internal/analytics/application"
)

const (
	summarySheet  = "Factory"
	workersSheet  = "Workers"
	stationsSheet = "Workstations"
)

// BuildPDF renders a one-page metrics report.
func BuildPDF(r application.Report) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Factory Productivity Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Window: %s - %s", formatStart(r.Start), r.End.UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", r.GeneratedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	f := r.Factory
	pdf.Cell(0, 6, fmt.Sprintf("Total productive time (min): %.2f", f.TotalProductiveTime))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total production count: %d", f.TotalProductionCount))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Average production rate (units/h): %.2f", f.AverageProductionRate))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Average utilization (%%): %.2f", f.AverageUtilization))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Active workers: %d of %d", f.ActiveWorkers, f.WorkerCount))
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(25, 6, "Worker", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Name", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Active (min)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Idle (min)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Util. %", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Units", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, w := range r.Workers {
		pdf.CellFormat(25, 6, w.WorkerID, "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, w.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", w.TotalActiveTime), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", w.TotalIdleTime), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%.2f", w.UtilizationPercentage), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", w.TotalUnitsProduced), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(25, 6, "Station", "1", 0, "C", false, 0, "")
	pdf.CellFormat(55, 6, "Name", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Occupied (min)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Util. %", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Units/h", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, s := range r.Workstations {
		pdf.CellFormat(25, 6, s.StationID, "1", 0, "C", false, 0, "")
		pdf.CellFormat(55, 6, s.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", s.OccupancyTime), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%.2f", s.UtilizationPercentage), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", s.ThroughputRate), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildXLSX renders the report as a workbook with one sheet per level.
func BuildXLSX(r application.Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(workersSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(stationsSheet); err != nil {
		return nil, err
	}

	summary := [][2]any{
		{"Factory Productivity Report", nil},
		{"Window start", formatStart(r.Start)},
		{"Window end", r.End.UTC().Format(time.RFC3339)},
		{"Generated", r.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Total productive time (min)", r.Factory.TotalProductiveTime},
		{"Total production count", r.Factory.TotalProductionCount},
		{"Average production rate (units/h)", r.Factory.AverageProductionRate},
		{"Average utilization (%)", r.Factory.AverageUtilization},
		{"Workers", r.Factory.WorkerCount},
		{"Active workers", r.Factory.ActiveWorkers},
	}
	for i, row := range summary {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+1), row[0])
		if row[1] != nil {
			_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+1), row[1])
		}
	}

	_ = f.SetSheetRow(workersSheet, "A1", &[]any{"Worker", "Name", "Active (min)", "Idle (min)", "Utilization (%)", "Units", "Units/h"})
	for i, w := range r.Workers {
		_ = f.SetSheetRow(workersSheet, fmt.Sprintf("A%d", i+2), &[]any{
			w.WorkerID, w.Name, w.TotalActiveTime, w.TotalIdleTime, w.UtilizationPercentage, w.TotalUnitsProduced, w.UnitsPerHour,
		})
	}

	_ = f.SetSheetRow(stationsSheet, "A1", &[]any{"Station", "Name", "Occupied (min)", "Utilization (%)", "Units", "Throughput (units/h)"})
	for i, s := range r.Workstations {
		_ = f.SetSheetRow(stationsSheet, fmt.Sprintf("A%d", i+2), &[]any{
			s.StationID, s.Name, s.OccupancyTime, s.UtilizationPercentage, s.TotalUnitsProduced, s.ThroughputRate,
		})
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatStart(start time.Time) string {
	if start.IsZero() {
		return "first event"
	}
	return start.UTC().Format(time.RFC3339)
}
