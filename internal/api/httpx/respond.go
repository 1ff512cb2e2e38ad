package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	activity "factory-monitor/internal/activity/domain"
)

// RetryAfterSeconds is advertised when the store is unavailable.
const RetryAfterSeconds = 5

// ErrorBody is the JSON shape of every failure response.
type ErrorBody struct {
	Error   string                `json:"error"`
	Message string                `json:"message"`
	Errors  []activity.FieldError `json:"errors,omitempty"`
	Details string                `json:"details,omitempty"`
}

// Responder writes JSON responses and maps errors to status codes.
type Responder struct {
	logger        *zap.Logger
	exposeDetails bool
}

// NewResponder constructs a Responder. Error details are only sent when exposeDetails is set.
func NewResponder(logger *zap.Logger, exposeDetails bool) *Responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Responder{logger: logger, exposeDetails: exposeDetails}
}

// JSON writes v with the given status.
func (r *Responder) JSON(w http.ResponseWriter, status int, v any) {
	WriteJSON(w, status, v)
}

// Error writes the response for err. summary is the client facing error title.
// It returns the status written.
func (r *Responder) Error(w http.ResponseWriter, req *http.Request, summary string, err error) int {
	var verr *activity.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteJSON(w, http.StatusBadRequest, ErrorBody{
			Error:   "Validation failed",
			Message: verr.Error(),
			Errors:  verr.Fields,
		})
		return http.StatusBadRequest
	case errors.Is(err, activity.ErrInvalidWindow):
		WriteJSON(w, http.StatusBadRequest, ErrorBody{
			Error:   "Invalid time range",
			Message: err.Error(),
		})
		return http.StatusBadRequest
	case errors.Is(err, activity.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		r.logger.Warn("store unavailable",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Error(err),
		)
		w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds))
		WriteJSON(w, http.StatusServiceUnavailable, r.body("Database not available", "the event store is unavailable, retry later", err))
		return http.StatusServiceUnavailable
	default:
		r.logger.Error(summary,
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Error(err),
		)
		WriteJSON(w, http.StatusInternalServerError, r.body(summary, "internal error", err))
		return http.StatusInternalServerError
	}
}

// BadRequest writes a 400 without field errors.
func (r *Responder) BadRequest(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusBadRequest, ErrorBody{Error: "Bad request", Message: message})
}

func (r *Responder) body(summary, message string, err error) ErrorBody {
	body := ErrorBody{Error: summary, Message: message}
	if r.exposeDetails && err != nil {
		body.Details = err.Error()
	}
	return body
}

// WriteJSON encodes v as the response body.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ParseWindow reads optional start_date and end_date query parameters.
func ParseWindow(r *http.Request) (activity.Window, error) {
	var window activity.Window
	verr := &activity.ValidationError{}
	if value := r.URL.Query().Get("start_date"); value != "" {
		start, err := activity.ParseTimestamp(value)
		if err != nil {
			verr.Add("start_date", "start_date must be ISO-8601", value)
		}
		window.Start = start
	}
	if value := r.URL.Query().Get("end_date"); value != "" {
		end, err := activity.ParseTimestamp(value)
		if err != nil {
			verr.Add("end_date", "end_date must be ISO-8601", value)
		}
		window.End = end
	}
	if err := verr.OrNil(); err != nil {
		return activity.Window{}, err
	}
	if err := window.Validate(); err != nil {
		return activity.Window{}, err
	}
	return window, nil
}

// ResultLabel maps a status code to a metrics result label.
func ResultLabel(status int) string {
	if status >= 400 {
		return "error"
	}
	return "success"
}
