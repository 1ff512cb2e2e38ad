package apihttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"factory-monitor/internal/api/httpx"
)

const healthTimeout = 2 * time.Second

// Registrar mounts a group of routes.
type Registrar interface {
	Register(r *mux.Router)
}

// Pinger reports store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Routes are the handlers served by the router. Seed is optional.
type Routes struct {
	Ingest      http.Handler
	IngestBatch http.Handler
	Events      http.Handler
	Metrics     Registrar
	Seed        Registrar
}

// Router builds the HTTP handler tree.
type Router struct {
	routes Routes
	store  Pinger
	driver string
	logger *zap.Logger
}

// NewRouter constructs a Router.
func NewRouter(routes Routes, store Pinger, driver string, logger *zap.Logger) (*Router, error) {
	if routes.Ingest == nil || routes.IngestBatch == nil || routes.Events == nil {
		return nil, errors.New("apihttp: nil event handler")
	}
	if routes.Metrics == nil {
		return nil, errors.New("apihttp: nil metrics routes")
	}
	if store == nil {
		return nil, errors.New("apihttp: nil store")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{routes: routes, store: store, driver: driver, logger: logger}, nil
}

// Handler returns the routed handler wrapped with CORS, panic recovery and access logging.
func (rt *Router) Handler() http.Handler {
	r := mux.NewRouter()
	r.Handle("/health", http.HandlerFunc(rt.health)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.Handle("/events/ingest", rt.routes.Ingest).Methods(http.MethodPost)
	r.Handle("/events/ingest/batch", rt.routes.IngestBatch).Methods(http.MethodPost)
	r.Handle("/events", rt.routes.Events).Methods(http.MethodGet)
	rt.routes.Metrics.Register(r)
	if rt.routes.Seed != nil {
		rt.routes.Seed.Register(r)
	}

	var h http.Handler = r
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(zapRecoveryLogger{rt.logger}),
		handlers.PrintRecoveryStack(false),
	)(h)
	h = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Accept"}),
	)(h)
	return loggingMiddleware(h, rt.logger)
}

type databaseHealth struct {
	Status string `json:"status"`
	Driver string `json:"driver"`
	Error  string `json:"error,omitempty"`
}

type healthResponse struct {
	Status   string         `json:"status"`
	Message  string         `json:"message"`
	Time     time.Time      `json:"timestamp"`
	Database databaseHealth `json:"database"`
}

// health always answers 200 so liveness does not depend on the store.
func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	db := databaseHealth{Status: "connected", Driver: rt.driver}
	if err := rt.store.Ping(ctx); err != nil {
		db.Status = "disconnected"
		db.Error = err.Error()
		rt.logger.Warn("health check: store unreachable", zap.Error(err))
	}
	httpx.WriteJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Message:  "Factory monitoring API is running",
		Time:     time.Now().UTC(),
		Database: db,
	})
}

func loggingMiddleware(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", resp.status),
			zap.Duration("latency", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

type zapRecoveryLogger struct {
	logger *zap.Logger
}

func (l zapRecoveryLogger) Println(v ...interface{}) {
	l.logger.Error("handler panic", zap.Any("panic", v))
}
