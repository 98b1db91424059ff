package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"landregistry/internal/application/models"
	"landregistry/internal/application/service"
	"landregistry/internal/transport/http/shared"
	id "landregistry/pkg/domain"
	dErrors "landregistry/pkg/domain-errors"
	"landregistry/pkg/requestcontext"
)

// Service defines the workflow operations the transport layer needs.
type Service interface {
	Submit(ctx context.Context, input service.SubmitInput) (*models.Application, error)
	Transition(ctx context.Context, appID id.ApplicationID, newStatus models.ApplicationStatus, actor id.UserID, notes string) (*models.Application, error)
	Cancel(ctx context.Context, appID id.ApplicationID, actor id.UserID) (*models.Application, error)
	Get(ctx context.Context, appID id.ApplicationID) (*models.Application, error)
	ListByApplicant(ctx context.Context, applicant id.UserID) ([]*models.Application, error)
	Stats(ctx context.Context) (*service.Stats, error)
}

// Handler handles application workflow endpoints. The acting user always
// comes from the authenticated context, never from the request body.
type Handler struct {
	apps   Service
	logger *slog.Logger
}

func New(apps Service, logger *slog.Logger) *Handler {
	return &Handler{apps: apps, logger: logger}
}

// Register mounts the application routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/applications", h.handleSubmit)
	r.Get("/applications", h.handleList)
	r.Get("/applications/stats", h.handleStats)
	r.Get("/applications/{id}", h.handleGet)
	r.Post("/applications/{id}/transition", h.handleTransition)
	r.Post("/applications/{id}/cancel", h.handleCancel)
}

type submitRequest struct {
	ParcelID string `json:"parcel_id"`
	Type     string `json:"type"`
	Priority int    `json:"priority"`
	Notes    string `json:"notes"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	parcelID, err := id.ParseParcelID(req.ParcelID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	app, err := h.apps.Submit(ctx, service.SubmitInput{
		ApplicantID: requestcontext.ActorID(ctx),
		ParcelID:    parcelID,
		Type:        models.ApplicationType(req.Type),
		Priority:    req.Priority,
		Notes:       req.Notes,
	})
	if err != nil {
		h.logError(ctx, "failed to submit application", err)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, app)
}

type transitionRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	appID, err := id.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	app, err := h.apps.Transition(ctx, appID, models.ApplicationStatus(req.Status),
		requestcontext.ActorID(ctx), req.Notes)
	if err != nil {
		h.logError(ctx, "failed to transition application", err)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, app)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	appID, err := id.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	app, err := h.apps.Cancel(ctx, appID, requestcontext.ActorID(ctx))
	if err != nil {
		h.logError(ctx, "failed to cancel application", err)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, app)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	appID, err := id.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	app, err := h.apps.Get(r.Context(), appID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, app)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	apps, err := h.apps.ListByApplicant(ctx, requestcontext.ActorID(ctx))
	if err != nil {
		h.logError(ctx, "failed to list applications", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, apps)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.apps.Stats(r.Context())
	if err != nil {
		h.logError(r.Context(), "failed to compute application stats", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	h.logger.ErrorContext(ctx, msg,
		"error", err.Error(),
		"request_id", requestcontext.RequestID(ctx),
	)
}
