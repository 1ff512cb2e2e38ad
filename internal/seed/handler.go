package seed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	activity "factory-monitor/internal/activity/domain"
	"factory-monitor/internal/api/httpx"
)

// Seeder is the demo data use case.
type Seeder interface {
	Init(ctx context.Context) (InitResult, error)
	AddEvents(ctx context.Context, hours, workersCount int) (AddResult, error)
}

type addEventsRequest struct {
	Hours        *int `json:"hours"`
	WorkersCount *int `json:"workers_count"`
}

// Handler serves the /seed endpoints.
type Handler struct {
	seeder Seeder
	resp   *httpx.Responder
}

// NewHandler constructs a Handler.
func NewHandler(seeder Seeder, resp *httpx.Responder) *Handler {
	return &Handler{seeder: seeder, resp: resp}
}

// Register mounts POST /seed/init and POST /seed/add-events on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/seed/init", h.Init).Methods(http.MethodPost)
	r.HandleFunc("/seed/add-events", h.AddEvents).Methods(http.MethodPost)
}

// Init handles POST /seed/init.
func (h *Handler) Init(w http.ResponseWriter, r *http.Request) {
	result, err := h.seeder.Init(r.Context())
	if err != nil {
		h.resp.Error(w, r, "Failed to seed database", err)
		return
	}
	h.resp.JSON(w, http.StatusOK, result)
}

// AddEvents handles POST /seed/add-events. The body is optional.
func (h *Handler) AddEvents(w http.ResponseWriter, r *http.Request) {
	var req addEventsRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.resp.BadRequest(w, "request body must be a JSON object")
		return
	}
	hours, workers := DefaultExtendHours, len(DefaultWorkers)
	if req.Hours != nil {
		hours = *req.Hours
	}
	if req.WorkersCount != nil {
		workers = *req.WorkersCount
	}

	result, err := h.seeder.AddEvents(r.Context(), hours, workers)
	switch {
	case errors.Is(err, ErrNotSeeded):
		h.resp.BadRequest(w, "Please seed initial data first")
		return
	case errors.Is(err, ErrInvalidRequest):
		verr := &activity.ValidationError{}
		verr.Add("body", err.Error(), nil)
		h.resp.Error(w, r, "Failed to add events", verr)
		return
	case err != nil:
		h.resp.Error(w, r, "Failed to add events", err)
		return
	}
	h.resp.JSON(w, http.StatusOK, result)
}
