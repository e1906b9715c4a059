package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"userManagement/internal/db"
	"userManagement/internal/metrics"
)

// Handler serves the operational HTTP endpoints.
type Handler struct {
	DB       *sql.DB
	Migrator *db.Migrator
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// Router mounts GET /healthz and GET /metrics.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.HandleHealth)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.Metrics.Registry, promhttp.HandlerOpts{}))
	}
	return r
}

type healthResponse struct {
	Status        string `json:"status"`
	SchemaVersion int    `json:"schema_version"`
	Latest        int    `json:"latest_schema_version"`
	Error         string `json:"error,omitempty"`
}

// HandleHealth reports whether the store answers and is at the latest
// schema version.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Latest: h.Migrator.Latest()}
	code := http.StatusOK
	v, err := h.check(ctx)
	resp.SchemaVersion = v
	switch {
	case err != nil:
		resp.Status, resp.Error = "unavailable", err.Error()
		code = http.StatusServiceUnavailable
	case v != resp.Latest:
		resp.Status = "migration_pending"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) check(ctx context.Context) (int, error) {
	if h.DB == nil {
		return 0, errors.New("database not configured")
	}
	if err := h.DB.PingContext(ctx); err != nil {
		return 0, err
	}
	return h.Migrator.Version(ctx, h.DB)
}

// Start serves h on addr and returns a shutdown function.
func Start(addr string, h *Handler) (func(context.Context) error, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{Handler: h.Router(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) && h.Logger != nil {
			h.Logger.Error("http server stopped", zap.Error(err))
		}
	}()
	if h.Logger != nil {
		h.Logger.Info("http listening", zap.String("addr", lis.Addr().String()))
	}
	return srv.Shutdown, nil
}
