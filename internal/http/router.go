package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tendant/simple-idm-mongo/internal/http/middleware"
	"github.com/tendant/simple-idm-mongo/internal/httputil"
	"github.com/tendant/simple-idm-mongo/internal/metrics"
	"github.com/tendant/simple-idm-mongo/pkg/repository"
)

const healthTimeout = 2 * time.Second

// Pinger checks database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterConfig holds configuration for the ops router.
type RouterConfig struct {
	Logger    *slog.Logger
	DB        Pinger
	Gatherer  prometheus.Gatherer
	Models    *repository.Models
	RateLimit int // requests per minute per IP, 0 disables
}

// NewRouter creates the ops router: health, metrics and schema introspection.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.OpsHeaders)
	r.Use(middleware.PerMinute(cfg.RateLimit, cfg.Logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := cfg.DB.Ping(ctx); err != nil {
			cfg.Logger.Warn("health check failed", "error", err)
			httputil.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(cfg.Gatherer))
	}

	if cfg.Models != nil {
		r.Get("/schema/models", func(w http.ResponseWriter, r *http.Request) {
			httputil.JSON(w, http.StatusOK, modelsResponse(cfg.Models))
		})
	}

	return r
}

type modelEntry struct {
	Collection       string   `json:"collection"`
	Type             string   `json:"type"`
	KeyKind          string   `json:"key_kind"`
	IdentifierFields []string `json:"identifier_fields"`
}

func modelsResponse(models *repository.Models) []modelEntry {
	list := models.List()
	out := make([]modelEntry, 0, len(list))
	for _, m := range list {
		out = append(out, modelEntry{
			Collection:       m.Collection,
			Type:             m.Type.String(),
			KeyKind:          m.KeyKind,
			IdentifierFields: m.IdentifierFields,
		})
	}
	return out
}
