package analyticshttp

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	activity "factory-monitor/internal/activity/domain"
	"factory-monitor/internal/analytics/application"
	"factory-monitor/internal/analytics/interfaces/report"
	"factory-monitor/internal/api/httpx"
	"factory-monitor/internal/observability/metrics"
)

// MetricsQuery is the metrics use case.
type MetricsQuery interface {
	WorkerMetrics(ctx context.Context, workerID string, window activity.Window) (application.WorkerMetrics, error)
	WorkstationMetrics(ctx context.Context, stationID string, window activity.Window) (application.WorkstationMetrics, error)
	FactoryMetrics(ctx context.Context, window activity.Window) (application.FactoryMetrics, error)
	AllWorkers(ctx context.Context, window activity.Window) ([]application.WorkerMetrics, error)
	AllWorkstations(ctx context.Context, window activity.Window) ([]application.WorkstationMetrics, error)
	Report(ctx context.Context, window activity.Window) (application.Report, error)
}

// Handlers serves the metrics endpoints.
type Handlers struct {
	query MetricsQuery
	resp  *httpx.Responder
}

// NewHandlers constructs Handlers.
func NewHandlers(query MetricsQuery, resp *httpx.Responder) *Handlers {
	return &Handlers{query: query, resp: resp}
}

// Register mounts the routes on r. The exact /metrics path is left to the caller.
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/metrics/worker/{worker_id}", h.Worker).Methods(http.MethodGet)
	r.HandleFunc("/metrics/workstation/{station_id}", h.Workstation).Methods(http.MethodGet)
	r.HandleFunc("/metrics/factory", h.Factory).Methods(http.MethodGet)
	r.HandleFunc("/metrics/workers", h.Workers).Methods(http.MethodGet)
	r.HandleFunc("/metrics/workstations", h.Workstations).Methods(http.MethodGet)
	r.HandleFunc("/metrics/report.xlsx", h.ReportXLSX).Methods(http.MethodGet)
	r.HandleFunc("/metrics/report.pdf", h.ReportPDF).Methods(http.MethodGet)
}

// Worker handles GET /metrics/worker/{worker_id}.
func (h *Handlers) Worker(w http.ResponseWriter, r *http.Request) {
	workerID := strings.TrimSpace(mux.Vars(r)["worker_id"])
	h.serve(w, r, "worker", "Failed to calculate worker metrics", func(ctx context.Context, window activity.Window) (any, error) {
		return h.query.WorkerMetrics(ctx, workerID, window)
	})
}

// Workstation handles GET /metrics/workstation/{station_id}.
func (h *Handlers) Workstation(w http.ResponseWriter, r *http.Request) {
	stationID := strings.TrimSpace(mux.Vars(r)["station_id"])
	h.serve(w, r, "workstation", "Failed to calculate workstation metrics", func(ctx context.Context, window activity.Window) (any, error) {
		return h.query.WorkstationMetrics(ctx, stationID, window)
	})
}

// Factory handles GET /metrics/factory.
func (h *Handlers) Factory(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "factory", "Failed to calculate factory metrics", func(ctx context.Context, window activity.Window) (any, error) {
		return h.query.FactoryMetrics(ctx, window)
	})
}

// Workers handles GET /metrics/workers.
func (h *Handlers) Workers(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "workers", "Failed to calculate workers metrics", func(ctx context.Context, window activity.Window) (any, error) {
		return h.query.AllWorkers(ctx, window)
	})
}

// Workstations handles GET /metrics/workstations.
func (h *Handlers) Workstations(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "workstations", "Failed to calculate workstations metrics", func(ctx context.Context, window activity.Window) (any, error) {
		return h.query.AllWorkstations(ctx, window)
	})
}

// ReportXLSX handles GET /metrics/report.xlsx.
func (h *Handlers) ReportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", report.BuildXLSX)
}

// ReportPDF handles GET /metrics/report.pdf.
func (h *Handlers) ReportPDF(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "pdf", "application/pdf", report.BuildPDF)
}

func (h *Handlers) serve(w http.ResponseWriter, r *http.Request, level, summary string, fn func(context.Context, activity.Window) (any, error)) {
	start := time.Now()
	result := metrics.ResultError
	defer func() {
		metrics.ObserveQuery(level, result, time.Since(start))
	}()

	window, err := httpx.ParseWindow(r)
	if err != nil {
		h.resp.Error(w, r, summary, err)
		return
	}
	payload, err := fn(r.Context(), window)
	if err != nil {
		h.resp.Error(w, r, summary, err)
		return
	}
	result = metrics.ResultSuccess
	h.resp.JSON(w, http.StatusOK, payload)
}

func (h *Handlers) export(w http.ResponseWriter, r *http.Request, format, contentType string, build func(application.Report) ([]byte, error)) {
	start := time.Now()
	result := metrics.ResultError
	defer func() {
		metrics.ObserveReportExport(format, result, time.Since(start))
	}()

	window, err := httpx.ParseWindow(r)
	if err != nil {
		h.resp.Error(w, r, "Failed to export report", err)
		return
	}
	rep, err := h.query.Report(r.Context(), window)
	if err != nil {
		h.resp.Error(w, r, "Failed to export report", err)
		return
	}
	data, err := build(rep)
	if err != nil {
		h.resp.Error(w, r, "Failed to export report", err)
		return
	}

	result = metrics.ResultSuccess
	filename := "factory-report-" + rep.End.UTC().Format("20060102T150405Z") + "." + format
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
