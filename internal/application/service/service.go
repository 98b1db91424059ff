package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"landregistry/internal/application/fee"
	"landregistry/internal/application/models"
	certmodels "landregistry/internal/certificate/models"
	parcelmodels "landregistry/internal/parcel/models"
	"landregistry/internal/platform/metrics"
	"landregistry/pkg/audit"
	id "landregistry/pkg/domain"
	dErrors "landregistry/pkg/domain-errors"
	"landregistry/pkg/platform/sentinel"
	"landregistry/pkg/requestcontext"
)

// Store is the application persistence surface the workflow needs.
type Store interface {
	Create(ctx context.Context, app *models.Application) error
	FindByID(ctx context.Context, appID id.ApplicationID) (*models.Application, error)
	FindByIDForUpdate(ctx context.Context, appID id.ApplicationID) (*models.Application, error)
	Update(ctx context.Context, app *models.Application) error
	CountOpenByApplicantAndParcel(ctx context.Context, applicant id.UserID, parcel id.ParcelID) (int, error)
	CountApprovedByParcel(ctx context.Context, parcel id.ParcelID) (int, error)
	ListByApplicant(ctx context.Context, applicant id.UserID) ([]*models.Application, error)
	CountByStatus(ctx context.Context) (map[models.ApplicationStatus]int, error)
}

// ParcelStore is the slice of the parcel registry the workflow touches.
type ParcelStore interface {
	FindByID(ctx context.Context, parcelID id.ParcelID) (*parcelmodels.Parcel, error)
	FindByIDForUpdate(ctx context.Context, parcelID id.ParcelID) (*parcelmodels.Parcel, error)
	Update(ctx context.Context, parcel *parcelmodels.Parcel) error
}

// CertificateIssuer creates the certificate inside the approval transaction.
type CertificateIssuer interface {
	Issue(ctx context.Context, app *models.Application, issuer id.UserID) (*certmodels.Certificate, error)
}

// StoreTx provides the transactional boundary for the multi-entity writes
// the workflow performs.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// Service owns the application state machine. Every mutation runs inside one
// unit of work: application write, parcel status change, certificate creation
// and audit entry commit together or not at all.
type Service struct {
	apps     Store
	parcels  ParcelStore
	issuer   CertificateIssuer
	recorder *audit.Recorder
	tx       StoreTx
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(apps Store, parcels ParcelStore, issuer CertificateIssuer, recorder *audit.Recorder, tx StoreTx, opts ...Option) *Service {
	s := &Service{
		apps:     apps,
		parcels:  parcels,
		issuer:   issuer,
		recorder: recorder,
		tx:       tx,
		logger:   slog.Default(),
		tracer:   otel.Tracer("landregistry/application"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitInput carries a new ownership claim.
type SubmitInput struct {
	ApplicantID id.UserID
	ParcelID    id.ParcelID
	Type        models.ApplicationType
	Priority    int
	Notes       string
}

// Submit files a new application in the pending status. The fee is computed
// from the parcel's attributes at this moment and never changes afterwards.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*models.Application, error) {
	ctx, span := s.tracer.Start(ctx, "application.Submit")
	defer span.End()

	if input.ApplicantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "applicant ID is required")
	}
	if input.ParcelID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "parcel ID is required")
	}
	if input.Priority == 0 {
		input.Priority = 1
	}

	var app *models.Application
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		parcel, err := s.parcels.FindByID(txCtx, input.ParcelID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "parcel not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load parcel")
		}

		open, err := s.apps.CountOpenByApplicantAndParcel(txCtx, input.ApplicantID, input.ParcelID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check open applications")
		}
		if open > 0 {
			return dErrors.New(dErrors.CodeConflict, "applicant already holds an open application for this parcel")
		}

		amount, err := fee.Compute(parcel.AreaHectares, parcel.LandType, input.Type, input.Priority)
		if err != nil {
			return err
		}

		a, err := models.NewApplication(id.NewApplicationID(), input.ApplicantID, input.ParcelID,
			input.Type, amount, input.Priority, input.Notes, requestcontext.Now(txCtx))
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
				return dErrors.New(dErrors.CodeValidation, err.Error())
			}
			return err
		}

		if err := s.apps.Create(txCtx, a); err != nil {
			// The partial unique index catches the race the count check above
			// cannot see.
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "applicant already holds an open application for this parcel")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create application")
		}

		if err := s.recorder.Record(txCtx, input.ApplicantID, audit.ActionApplicationCreated,
			"application submitted for parcel "+parcel.ParcelNumber,
			map[string]string{
				"application_id": a.ID.String(),
				"parcel_id":      a.ParcelID.String(),
				"type":           string(a.Type),
			},
		); err != nil {
			return err
		}
		app = a
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.String("application.id", app.ID.String()))
	if s.metrics != nil {
		s.metrics.IncrementApplicationsSubmitted()
	}
	return app, nil
}

// Transition moves an application to newStatus, enforcing the state machine
// guards. Approval additionally locks the parcel row, re-checks the
// one-approved-per-parcel invariant inside the same transaction, issues the
// certificate, and marks the parcel registered.
func (s *Service) Transition(ctx context.Context, appID id.ApplicationID, newStatus models.ApplicationStatus, actor id.UserID, notes string) (*models.Application, error) {
	ctx, span := s.tracer.Start(ctx, "application.Transition",
		trace.WithAttributes(attribute.String("application.target_status", string(newStatus))))
	defer span.End()

	if appID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "application ID is required")
	}
	if newStatus.RequiresReviewer() && actor.IsNil() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "a reviewer is required to mark an application %s", newStatus)
	}

	var app *models.Application
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		a, err := s.apps.FindByIDForUpdate(txCtx, appID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "application not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load application")
		}

		if err := a.CanTransitionTo(newStatus); err != nil {
			return err
		}

		previous := a.Status
		now := requestcontext.Now(txCtx)

		var parcel *parcelmodels.Parcel
		if newStatus == models.StatusApproved {
			// Lock the parcel row for the rest of the transaction, then
			// re-check the approved count under that lock. A concurrent
			// approval of another application on the same parcel blocks here
			// and observes this one's committed write.
			parcel, err = s.parcels.FindByIDForUpdate(txCtx, a.ParcelID)
			if err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					return dErrors.New(dErrors.CodeNotFound, "parcel not found")
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock parcel")
			}
			approved, err := s.apps.CountApprovedByParcel(txCtx, a.ParcelID)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count approved applications")
			}
			if approved > 0 {
				return dErrors.New(dErrors.CodeConflict, "parcel already has an approved application")
			}
		}

		a.ApplyTransition(newStatus, actor, notes, now)

		if err := s.apps.Update(txCtx, a); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "parcel already has an approved application")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update application")
		}

		if newStatus == models.StatusApproved {
			if _, err := s.issuer.Issue(txCtx, a, actor); err != nil {
				return err
			}
			parcel.ApplyRegistration(now)
			if err := s.parcels.Update(txCtx, parcel); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark parcel registered")
			}
		}

		if err := s.recorder.Record(txCtx, actor, audit.ActionApplicationStatusChanged,
			"application moved from "+string(previous)+" to "+string(newStatus),
			map[string]string{
				"application_id": a.ID.String(),
				"from":           string(previous),
				"to":             string(newStatus),
			},
		); err != nil {
			return err
		}
		app = a
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementApplicationTransition(string(newStatus))
	}
	return app, nil
}

// Cancel withdraws an application. Permitted only while it is still open.
func (s *Service) Cancel(ctx context.Context, appID id.ApplicationID, actor id.UserID) (*models.Application, error) {
	return s.Transition(ctx, appID, models.StatusCancelled, actor, "")
}

// Get fetches an application by ID.
func (s *Service) Get(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	if appID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "application ID is required")
	}
	app, err := s.apps.FindByID(ctx, appID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "application not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load application")
	}
	return app, nil
}

// ListByApplicant returns the applicant's applications, newest first.
func (s *Service) ListByApplicant(ctx context.Context, applicant id.UserID) ([]*models.Application, error) {
	if applicant.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "applicant ID is required")
	}
	apps, err := s.apps.ListByApplicant(ctx, applicant)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list applications")
	}
	return apps, nil
}

// Stats reports application counts by status.
type Stats struct {
	Total    int                              `json:"total"`
	ByStatus map[models.ApplicationStatus]int `json:"by_status"`
	Open     int                              `json:"open"`
	Approved int                              `json:"approved"`
	Rejected int                              `json:"rejected"`
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.apps.CountByStatus(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count applications")
	}
	stats := &Stats{ByStatus: counts}
	for status, count := range counts {
		stats.Total += count
		switch status {
		case models.StatusPending, models.StatusUnderReview:
			stats.Open += count
		case models.StatusApproved:
			stats.Approved = count
		case models.StatusRejected:
			stats.Rejected = count
		}
	}
	return stats, nil
}
