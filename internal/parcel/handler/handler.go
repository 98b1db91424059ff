package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"landregistry/internal/parcel/models"
	"landregistry/internal/parcel/service"
	"landregistry/internal/transport/http/shared"
	id "landregistry/pkg/domain"
	dErrors "landregistry/pkg/domain-errors"
	"landregistry/pkg/requestcontext"
)

// Service defines the parcel operations the transport layer needs.
type Service interface {
	Create(ctx context.Context, input service.CreateInput) (*models.Parcel, error)
	Get(ctx context.Context, parcelID id.ParcelID) (*models.Parcel, error)
	GetByNumber(ctx context.Context, number string) (*models.Parcel, error)
	Stats(ctx context.Context) (*service.Stats, error)
}

// Handler handles parcel endpoints.
type Handler struct {
	parcels Service
	logger  *slog.Logger
}

func New(parcels Service, logger *slog.Logger) *Handler {
	return &Handler{parcels: parcels, logger: logger}
}

// Register mounts the parcel routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/parcels", h.handleCreate)
	r.Get("/parcels/stats", h.handleStats)
	r.Get("/parcels/number/{number}", h.handleGetByNumber)
	r.Get("/parcels/{id}", h.handleGet)
}

type createRequest struct {
	ParcelNumber string  `json:"parcel_number"`
	Location     string  `json:"location"`
	AreaHectares float64 `json:"area_hectares"`
	LandType     string  `json:"land_type"`
	MarketValue  *int64  `json:"market_value,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	parcel, err := h.parcels.Create(ctx, service.CreateInput{
		ParcelNumber: req.ParcelNumber,
		Location:     req.Location,
		AreaHectares: req.AreaHectares,
		LandType:     models.LandType(req.LandType),
		MarketValue:  req.MarketValue,
	})
	if err != nil {
		h.logError(ctx, "failed to create parcel", err)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, parcel)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	parcelID, err := id.ParseParcelID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	parcel, err := h.parcels.Get(r.Context(), parcelID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, parcel)
}

func (h *Handler) handleGetByNumber(w http.ResponseWriter, r *http.Request) {
	parcel, err := h.parcels.GetByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, parcel)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.parcels.Stats(r.Context())
	if err != nil {
		h.logError(r.Context(), "failed to compute parcel stats", err)
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
