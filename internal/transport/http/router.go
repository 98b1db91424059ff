// Package httptransport assembles the HTTP surface: public verification and
// health endpoints, the Prometheus scrape target, and the authenticated
// registry API.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	applicationhandler "landregistry/internal/application/handler"
	certificatehandler "landregistry/internal/certificate/handler"
	parcelhandler "landregistry/internal/parcel/handler"
	"landregistry/internal/platform/middleware"
	"landregistry/internal/stats"
	"landregistry/internal/transport/http/shared"
	"landregistry/pkg/audit"
	id "landregistry/pkg/domain"
)

// AuditLog is the read side of the audit trail.
type AuditLog interface {
	ListByActor(ctx context.Context, actorID id.UserID) ([]audit.Event, error)
	ListRecent(ctx context.Context, limit int) ([]audit.Event, error)
}

// Deps collects everything the router mounts.
type Deps struct {
	Logger       *slog.Logger
	JWTValidator *middleware.JWTValidator
	Parcels      parcelhandler.Service
	Applications applicationhandler.Service
	Certificates certificatehandler.Service
	Stats        *stats.Service
	Audit        AuditLog
	Health       func(ctx context.Context) error
}

// NewRouter builds the full route tree. Authentication applies only to the
// registry API; verification and health stay public.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", handleHealth(deps.Health))
	r.Handle("/metrics", promhttp.Handler())

	certificates := certificatehandler.New(deps.Certificates, deps.Logger)

	r.Group(func(public chi.Router) {
		public.Use(middleware.ContentTypeJSON)
		certificates.RegisterPublic(public)
	})

	r.Group(func(api chi.Router) {
		api.Use(middleware.ContentTypeJSON)
		api.Use(middleware.RequireAuth(deps.JWTValidator, deps.Logger))

		parcelhandler.New(deps.Parcels, deps.Logger).Register(api)
		applicationhandler.New(deps.Applications, deps.Logger).Register(api)
		certificates.Register(api)

		api.Get("/stats/overview", handleOverview(deps.Stats, deps.Logger))
		api.Get("/audit/recent", handleAuditRecent(deps.Audit, deps.Logger))
		api.Get("/audit/actor/{id}", handleAuditByActor(deps.Audit, deps.Logger))
	})

	return r
}

func handleHealth(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				shared.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleOverview(svc *stats.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		overview, err := svc.Overview(r.Context())
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to build stats overview", "error", err.Error())
			shared.WriteError(w, err)
			return
		}
		shared.WriteJSON(w, http.StatusOK, overview)
	}
}

const defaultAuditLimit = 50

func handleAuditRecent(log AuditLog, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultAuditLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
				limit = parsed
			}
		}
		events, err := log.ListRecent(r.Context(), limit)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to list audit events", "error", err.Error())
			shared.WriteError(w, err)
			return
		}
		shared.WriteJSON(w, http.StatusOK, events)
	}
}

func handleAuditByActor(log AuditLog, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := id.ParseUserID(chi.URLParam(r, "id"))
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		events, err := log.ListByActor(r.Context(), actorID)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to list audit events", "error", err.Error())
			shared.WriteError(w, err)
			return
		}
		shared.WriteJSON(w, http.StatusOK, events)
	}
}
