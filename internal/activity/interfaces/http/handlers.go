package activityhttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"factory-monitor/internal/activity/application"
	activity "factory-monitor/internal/activity/domain"
	"factory-monitor/internal/api/httpx"
	"factory-monitor/internal/observability/metrics"
)

const (
	maxEventBodyBytes = 1 << 20
	maxBatchBodyBytes = 16 << 20
)

// Ingester is the ingest use case.
type Ingester interface {
	Ingest(ctx context.Context, input application.EventInput) (application.IngestResult, error)
	IngestBatch(ctx context.Context, items []json.RawMessage) application.BatchResult
}

// EventReader lists stored events.
type EventReader interface {
	Query(ctx context.Context, query activity.EventQuery) ([]activity.Event, error)
}

type ingestResponse struct {
	Message   string         `json:"message"`
	Event     activity.Event `json:"event"`
	Duplicate bool           `json:"duplicate"`
}

// IngestHandler handles POST /events/ingest.
type IngestHandler struct {
	service Ingester
	resp    *httpx.Responder
}

// NewIngestHandler constructs an IngestHandler.
func NewIngestHandler(service Ingester, resp *httpx.Responder) *IngestHandler {
	return &IngestHandler{service: service, resp: resp}
}

// ServeHTTP handles POST /events/ingest.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.IngestResultError
	defer func() {
		metrics.ObserveIngest(result, time.Since(start))
	}()

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.service == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBodyBytes))
	if err != nil {
		result = metrics.IngestResultInvalid
		h.resp.BadRequest(w, "request body too large or unreadable")
		return
	}
	input, err := application.DecodeEventInput(body)
	if err != nil {
		result = metrics.IngestResultInvalid
		h.resp.Error(w, r, "Failed to ingest event", err)
		return
	}

	res, err := h.service.Ingest(r.Context(), input)
	if err != nil {
		switch h.resp.Error(w, r, "Failed to ingest event", err) {
		case http.StatusBadRequest:
			result = metrics.IngestResultInvalid
		case http.StatusServiceUnavailable:
			result = metrics.IngestResultUnavailable
		}
		return
	}

	if res.Duplicate {
		result = metrics.IngestResultDuplicate
		h.resp.JSON(w, http.StatusOK, ingestResponse{
			Message:   "Duplicate event detected, skipped",
			Event:     res.Event,
			Duplicate: true,
		})
		return
	}
	result = metrics.IngestResultStored
	h.resp.JSON(w, http.StatusCreated, ingestResponse{
		Message: "Event ingested successfully",
		Event:   res.Event,
	})
}

type batchRequest struct {
	Events []json.RawMessage `json:"events"`
}

// BatchIngestHandler handles POST /events/ingest/batch.
type BatchIngestHandler struct {
	service Ingester
	resp    *httpx.Responder
}

// NewBatchIngestHandler constructs a BatchIngestHandler.
func NewBatchIngestHandler(service Ingester, resp *httpx.Responder) *BatchIngestHandler {
	return &BatchIngestHandler{service: service, resp: resp}
}

// ServeHTTP handles POST /events/ingest/batch.
func (h *BatchIngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.service == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	var req batchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchBodyBytes))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.resp.BadRequest(w, "invalid json body: "+err.Error())
		return
	}

	result := h.service.IngestBatch(r.Context(), req.Events)
	metrics.AddBatchItems(result.Success, result.Duplicates, result.Errors)
	h.resp.JSON(w, http.StatusOK, result)
}

// ListEventsHandler handles GET /events.
type ListEventsHandler struct {
	reader       EventReader
	resp         *httpx.Responder
	defaultLimit int
	maxLimit     int
	timeout      time.Duration
}

// ListOption configures the list handler.
type ListOption func(*ListEventsHandler)

// WithLimits sets the default and maximum page size.
func WithLimits(defaultLimit, maxLimit int) ListOption {
	return func(h *ListEventsHandler) {
		if defaultLimit > 0 {
			h.defaultLimit = defaultLimit
		}
		if maxLimit > 0 {
			h.maxLimit = maxLimit
		}
	}
}

// WithTimeout bounds the store query.
func WithTimeout(timeout time.Duration) ListOption {
	return func(h *ListEventsHandler) {
		h.timeout = timeout
	}
}

// NewListEventsHandler constructs a ListEventsHandler.
func NewListEventsHandler(reader EventReader, resp *httpx.Responder, opts ...ListOption) *ListEventsHandler {
	h := &ListEventsHandler{
		reader:       reader,
		resp:         resp,
		defaultLimit: 100,
		maxLimit:     1000,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP handles GET /events.
func (h *ListEventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.reader == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	query, err := h.parseQuery(r)
	if err != nil {
		h.resp.Error(w, r, "Failed to fetch events", err)
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	events, err := h.reader.Query(ctx, query)
	if err != nil {
		h.resp.Error(w, r, "Failed to fetch events", err)
		return
	}
	h.resp.JSON(w, http.StatusOK, events)
}

func (h *ListEventsHandler) parseQuery(r *http.Request) (activity.EventQuery, error) {
	window, err := httpx.ParseWindow(r)
	if err != nil {
		return activity.EventQuery{}, err
	}
	values := r.URL.Query()
	query := activity.EventQuery{
		WorkerID:      values.Get("worker_id"),
		WorkstationID: values.Get("workstation_id"),
		Window:        window,
		Order:         activity.SortDescending,
		Limit:         h.defaultLimit,
	}

	verr := &activity.ValidationError{}
	if value := values.Get("event_type"); value != "" {
		eventType := activity.EventType(value)
		if !eventType.IsValid() {
			verr.Add("event_type", "Invalid event_type", value)
		}
		query.Type = eventType
	}
	if value := values.Get("limit"); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil || limit <= 0 {
			verr.Add("limit", "limit must be a positive integer", value)
		} else {
			query.Limit = min(limit, h.maxLimit)
		}
	}
	if err := verr.OrNil(); err != nil {
		return activity.EventQuery{}, err
	}
	return query, nil
}
