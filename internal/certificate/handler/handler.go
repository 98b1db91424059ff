package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"landregistry/internal/certificate/models"
	"landregistry/internal/certificate/service"
	"landregistry/internal/transport/http/shared"
	id "landregistry/pkg/domain"
	dErrors "landregistry/pkg/domain-errors"
	"landregistry/pkg/requestcontext"
)

// Service defines the certificate operations the transport layer needs.
type Service interface {
	Get(ctx context.Context, certID id.CertificateID) (*models.Certificate, error)
	Revoke(ctx context.Context, certID id.CertificateID, revoker id.UserID, reason string) (*models.Certificate, error)
	Verify(ctx context.Context, certificateNumber, suppliedHash string) (service.VerificationResult, error)
	Stats(ctx context.Context) (*service.Stats, error)
}

// Handler handles certificate endpoints.
type Handler struct {
	certs  Service
	logger *slog.Logger
}

func New(certs Service, logger *slog.Logger) *Handler {
	return &Handler{certs: certs, logger: logger}
}

// Register mounts the authenticated certificate routes. Verification is
// public and registered separately via RegisterPublic.
func (h *Handler) Register(r chi.Router) {
	r.Get("/certificates/stats", h.handleStats)
	r.Get("/certificates/{id}", h.handleGet)
	r.Post("/certificates/{id}/revoke", h.handleRevoke)
}

// RegisterPublic mounts the unauthenticated verification route.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/verify/{number}", h.handleVerify)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	certID, err := id.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	cert, err := h.certs.Get(r.Context(), certID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, cert)
}

type revokeRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	certID, err := id.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	cert, err := h.certs.Revoke(ctx, certID, requestcontext.ActorID(ctx), req.Reason)
	if err != nil {
		h.logError(ctx, "failed to revoke certificate", err)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, cert)
}

// handleVerify answers untrusted callers. Invalid outcomes are 200 responses
// with valid=false; only infrastructure failures produce error statuses.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.certs.Verify(ctx, chi.URLParam(r, "number"), r.URL.Query().Get("hash"))
	if err != nil {
		h.logError(ctx, "verification lookup failed", err)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.certs.Stats(r.Context())
	if err != nil {
		h.logError(r.Context(), "failed to compute certificate stats", err)
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
