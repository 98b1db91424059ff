package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"landregistry/internal/parcel/models"
	"landregistry/internal/platform/metrics"
	"landregistry/pkg/audit"
	id "landregistry/pkg/domain"
	dErrors "landregistry/pkg/domain-errors"
	"landregistry/pkg/platform/sentinel"
	"landregistry/pkg/requestcontext"
)

// Store is the persistence surface the registry needs.
type Store interface {
	Create(ctx context.Context, parcel *models.Parcel) error
	FindByID(ctx context.Context, parcelID id.ParcelID) (*models.Parcel, error)
	FindByNumber(ctx context.Context, number string) (*models.Parcel, error)
	Update(ctx context.Context, parcel *models.Parcel) error
	CountByStatus(ctx context.Context) (map[models.ParcelStatus]int, error)
}

// StoreTx provides the transactional boundary for parcel mutations.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// Service owns parcel records. Parcel status moves to registered only through
// the application workflow; this service never exposes that mutation.
type Service struct {
	parcels  Store
	recorder *audit.Recorder
	tx       StoreTx
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(parcels Store, recorder *audit.Recorder, tx StoreTx, opts ...Option) *Service {
	s := &Service{
		parcels:  parcels,
		recorder: recorder,
		tx:       tx,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput carries the operator-supplied parcel attributes.
type CreateInput struct {
	ParcelNumber string
	Location     string
	AreaHectares float64
	LandType     models.LandType
	MarketValue  *int64
}

// Create registers a new parcel in the available status and records a
// PARCEL_CREATED audit event in the same transaction.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Parcel, error) {
	input.ParcelNumber = strings.TrimSpace(input.ParcelNumber)

	var parcel *models.Parcel
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := models.NewParcel(id.NewParcelID(), input.ParcelNumber, input.Location,
			input.AreaHectares, input.LandType, input.MarketValue, requestcontext.Now(txCtx))
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
				return dErrors.New(dErrors.CodeValidation, err.Error())
			}
			return err
		}

		if err := s.parcels.Create(txCtx, p); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "parcel number must be unique")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create parcel")
		}

		if err := s.recorder.Record(txCtx, requestcontext.ActorID(txCtx), audit.ActionParcelCreated,
			"parcel "+p.ParcelNumber+" created",
			map[string]string{"parcel_id": p.ID.String(), "land_type": string(p.LandType)},
		); err != nil {
			return err
		}
		parcel = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementParcelsCreated()
	}
	return parcel, nil
}

// Get fetches a parcel by ID.
func (s *Service) Get(ctx context.Context, parcelID id.ParcelID) (*models.Parcel, error) {
	if parcelID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "parcel ID is required")
	}
	parcel, err := s.parcels.FindByID(ctx, parcelID)
	if err != nil {
		return nil, wrapParcelErr(err)
	}
	return parcel, nil
}

// GetByNumber fetches a parcel by its public parcel number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*models.Parcel, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "parcel number is required")
	}
	parcel, err := s.parcels.FindByNumber(ctx, number)
	if err != nil {
		return nil, wrapParcelErr(err)
	}
	return parcel, nil
}

// Stats reports parcel counts by status.
type Stats struct {
	Total       int                         `json:"total"`
	ByStatus    map[models.ParcelStatus]int `json:"by_status"`
	Registered  int                         `json:"registered"`
	Available   int                         `json:"available"`
	Disputed    int                         `json:"disputed"`
	UnderReview int                         `json:"under_review"`
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.parcels.CountByStatus(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count parcels")
	}
	stats := &Stats{ByStatus: counts}
	for status, count := range counts {
		stats.Total += count
		switch status {
		case models.ParcelStatusRegistered:
			stats.Registered = count
		case models.ParcelStatusAvailable:
			stats.Available = count
		case models.ParcelStatusDisputed:
			stats.Disputed = count
		case models.ParcelStatusUnderReview:
			stats.UnderReview = count
		}
	}
	return stats, nil
}

func wrapParcelErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "parcel not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load parcel")
}
