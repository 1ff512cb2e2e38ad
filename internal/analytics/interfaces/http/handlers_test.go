package analyticshttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	activity "factory-monitor/internal/activity/domain"
	"factory-monitor/internal/analytics/application"
	"factory-monitor/internal/api/httpx"
)

type stubQuery struct {
	window activity.Window
	id     string
	err    error
}

func (s *stubQuery) WorkerMetrics(_ context.Context, workerID string, window activity.Window) (application.WorkerMetrics, error) {
	s.id, s.window = workerID, window
	return application.WorkerMetrics{WorkerID: workerID, TotalActiveTime: 20, TotalIdleTime: 10, UtilizationPercentage: 66.67}, s.err
}

func (s *stubQuery) WorkstationMetrics(_ context.Context, stationID string, window activity.Window) (application.WorkstationMetrics, error) {
	s.id, s.window = stationID, window
	return application.WorkstationMetrics{StationID: stationID}, s.err
}

func (s *stubQuery) FactoryMetrics(_ context.Context, window activity.Window) (application.FactoryMetrics, error) {
	s.window = window
	return application.FactoryMetrics{WorkerCount: 6}, s.err
}

func (s *stubQuery) AllWorkers(_ context.Context, window activity.Window) ([]application.WorkerMetrics, error) {
	s.window = window
	return []application.WorkerMetrics{{WorkerID: "W1", Name: "John Smith"}}, s.err
}

func (s *stubQuery) AllWorkstations(_ context.Context, window activity.Window) ([]application.WorkstationMetrics, error) {
	s.window = window
	return []application.WorkstationMetrics{}, s.err
}

func (s *stubQuery) Report(_ context.Context, window activity.Window) (application.Report, error) {
	s.window = window
	return application.Report{End: time.Date(2026, 1, 15, 16, 0, 0, 0, time.UTC)}, s.err
}

func newRouter(q MetricsQuery) *mux.Router {
	r := mux.NewRouter()
	NewHandlers(q, httpx.NewResponder(nil, true)).Register(r)
	return r
}

func TestWorkerMetricsHandler(t *testing.T) {
	q := &stubQuery{}
	req := httptest.NewRequest(http.MethodGet, "/metrics/worker/W1?start_date=2026-01-15T08:00:00Z&end_date=2026-01-15T16:00:00Z", nil)
	rec := httptest.NewRecorder()

	newRouter(q).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if q.id != "W1" {
		t.Fatalf("expected worker W1, got %q", q.id)
	}
	if !q.window.Start.Equal(time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)) || !q.window.End.Equal(time.Date(2026, 1, 15, 16, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window: %+v", q.window)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["utilization_percentage"] != 66.67 || body["worker_id"] != "W1" {
		t.Fatalf("unexpected body: %v", body)
	}
	if _, ok := body["name"]; ok {
		t.Fatalf("expected name to be omitted")
	}
}

func TestMetricsHandler_InvalidDate(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/metrics/factory?start_date=yesterday", nil)
	rec := httptest.NewRecorder()

	newRouter(&stubQuery{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body httpx.ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Errors) != 1 || body.Errors[0].Field != "start_date" {
		t.Fatalf("expected start_date field error, got %+v", body)
	}
}

func TestMetricsHandler_InvertedWindow(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/metrics/workers?start_date=2026-01-15T16:00:00Z&end_date=2026-01-15T08:00:00Z", nil)
	rec := httptest.NewRecorder()

	newRouter(&stubQuery{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMetricsHandler_StoreUnavailable(t *testing.T) {
	q := &stubQuery{err: fmt.Errorf("%w: dial tcp", activity.ErrStoreUnavailable)}
	req := httptest.NewRequest(http.MethodGet, "/metrics/workstation/S1", nil)
	rec := httptest.NewRecorder()

	newRouter(q).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	var body httpx.ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Details == "" {
		t.Fatalf("expected details outside production")
	}
}

func TestMetricsHandler_ListsAreArrays(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/metrics/workstations", nil)
	rec := httptest.NewRecorder()

	newRouter(&stubQuery{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != "[]\n" {
		t.Fatalf("expected empty array, got %q", got)
	}
}

func TestReportExportHandlers(t *testing.T) {
	for path, contentType := range map[string]string{
		"/metrics/report.pdf":  "application/pdf",
		"/metrics/report.xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		newRouter(&stubQuery{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", path, rec.Code, rec.Body.String())
		}
		if rec.Header().Get("Content-Type") != contentType {
			t.Fatalf("%s: unexpected content type %q", path, rec.Header().Get("Content-Type"))
		}
		if rec.Body.Len() == 0 {
			t.Fatalf("%s: expected body", path)
		}
	}
}
