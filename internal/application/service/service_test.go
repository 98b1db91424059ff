package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"landregistry/internal/application/models"
	appStore "landregistry/internal/application/store"
	certmodels "landregistry/internal/certificate/models"
	certservice "landregistry/internal/certificate/service"
	certStore "landregistry/internal/certificate/store"
	parcelmodels "landregistry/internal/parcel/models"
	parcelStore "landregistry/internal/parcel/store"
	"landregistry/pkg/audit"
	auditMemory "landregistry/pkg/audit/store/memory"
	id "landregistry/pkg/domain"
	dErrors "landregistry/pkg/domain-errors"
	"landregistry/pkg/platform/tx"
	"landregistry/pkg/requestcontext"
)

type WorkflowSuite struct {
	suite.Suite
	apps     *appStore.InMemoryStore
	parcels  *parcelStore.InMemoryStore
	certs    *certStore.InMemoryStore
	events   *auditMemory.InMemoryStore
	service  *Service
	now      time.Time
	reviewer id.UserID
}

func TestWorkflowSuite(t *testing.T) {
	suite.Run(t, new(WorkflowSuite))
}

func (s *WorkflowSuite) SetupTest() {
	s.apps = appStore.NewInMemory()
	s.parcels = parcelStore.NewInMemory()
	s.certs = certStore.NewInMemory()
	s.events = auditMemory.NewInMemoryStore()
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.reviewer = id.NewUserID()

	coordinator := tx.NewInMemoryCoordinator()
	recorder := audit.NewRecorder(s.events)
	issuer := certservice.New(s.certs, recorder, coordinator)
	s.service = New(s.apps, s.parcels, issuer, recorder, coordinator)
}

func (s *WorkflowSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *WorkflowSuite) ctxAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *WorkflowSuite) newParcel(number string, landType parcelmodels.LandType, area float64) *parcelmodels.Parcel {
	s.T().Helper()
	parcel, err := parcelmodels.NewParcel(id.NewParcelID(), number, "", area, landType, nil, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.parcels.Create(context.Background(), parcel))
	return parcel
}

func (s *WorkflowSuite) submit(parcel *parcelmodels.Parcel, applicant id.UserID) *models.Application {
	s.T().Helper()
	app, err := s.service.Submit(s.ctx(), SubmitInput{
		ApplicantID: applicant,
		ParcelID:    parcel.ID,
		Type:        models.TypeRegistration,
		Priority:    1,
	})
	s.Require().NoError(err)
	return app
}

func (s *WorkflowSuite) TestSubmit() {
	parcel := s.newParcel("WF-001", parcelmodels.LandTypeResidential, 2.5)
	applicant := id.NewUserID()

	s.Run("files a pending application with the fee fixed", func() {
		app := s.submit(parcel, applicant)
		s.Equal(models.StatusPending, app.Status)
		// 50000 + 2.5*1000*1.0 = 52500 for residential registration, priority 1.
		s.Equal(int64(52500), app.FeeAmount)
		s.Equal(30, app.EstimatedDays)

		events, err := s.events.ListByAction(context.Background(), audit.ActionApplicationCreated)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(applicant, events[0].ActorID)
		s.Equal(app.ID.String(), events[0].Metadata["application_id"])
	})

	s.Run("rejects a second open application for the same pair", func() {
		_, err := s.service.Submit(s.ctx(), SubmitInput{
			ApplicantID: applicant,
			ParcelID:    parcel.ID,
			Type:        models.TypeTransfer,
			Priority:    2,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("allows a different applicant on the same parcel", func() {
		other := s.submit(parcel, id.NewUserID())
		s.Equal(models.StatusPending, other.Status)
	})

	s.Run("rejects unknown parcels", func() {
		_, err := s.service.Submit(s.ctx(), SubmitInput{
			ApplicantID: id.NewUserID(),
			ParcelID:    id.NewParcelID(),
			Type:        models.TypeRegistration,
			Priority:    1,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("rejects invalid priority", func() {
		_, err := s.service.Submit(s.ctx(), SubmitInput{
			ApplicantID: id.NewUserID(),
			ParcelID:    parcel.ID,
			Type:        models.TypeRegistration,
			Priority:    9,
		})
		s.Error(err)
	})
}

func (s *WorkflowSuite) TestApproval() {
	parcel := s.newParcel("WF-100", parcelmodels.LandTypeCommercial, 1.0)
	app := s.submit(parcel, id.NewUserID())

	decidedAt := s.now.Add(3 * 24 * time.Hour)
	approved, err := s.service.Transition(s.ctxAt(decidedAt), app.ID, models.StatusApproved, s.reviewer, "verified")
	s.Require().NoError(err)

	s.Run("records the reviewer and actual days", func() {
		s.Equal(models.StatusApproved, approved.Status)
		s.Require().NotNil(approved.ReviewedBy)
		s.Equal(s.reviewer, *approved.ReviewedBy)
		s.Require().NotNil(approved.ActualDays)
		s.Equal(3, *approved.ActualDays)
	})

	s.Run("issues exactly one certificate", func() {
		cert, err := s.certs.FindByApplication(context.Background(), app.ID)
		s.Require().NoError(err)
		s.Equal(certmodels.CertificateStatusActive, cert.Status)
		s.Equal(parcel.ID, cert.ParcelID)
		s.Equal(s.reviewer, cert.IssuedBy)
		s.NotEmpty(cert.IntegrityHash)
	})

	s.Run("marks the parcel registered", func() {
		stored, err := s.parcels.FindByID(context.Background(), parcel.ID)
		s.Require().NoError(err)
		s.True(stored.IsRegistered())
	})

	s.Run("records issuance and status-change audit events", func() {
		issued, err := s.events.ListByAction(context.Background(), audit.ActionCertificateIssued)
		s.Require().NoError(err)
		s.Len(issued, 1)

		changed, err := s.events.ListByAction(context.Background(), audit.ActionApplicationStatusChanged)
		s.Require().NoError(err)
		s.Require().Len(changed, 1)
		s.Equal("pending", changed[0].Metadata["from"])
		s.Equal("approved", changed[0].Metadata["to"])
	})

	s.Run("rejects approving a second application for the same parcel", func() {
		second := s.submit(parcel, id.NewUserID())
		_, err := s.service.Transition(s.ctx(), second.ID, models.StatusApproved, s.reviewer, "")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		// The losing application is untouched.
		stored, err := s.service.Get(s.ctx(), second.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, stored.Status)
	})
}

func (s *WorkflowSuite) TestRejection() {
	parcel := s.newParcel("WF-200", parcelmodels.LandTypeAgricultural, 5.0)
	app := s.submit(parcel, id.NewUserID())

	rejected, err := s.service.Transition(s.ctx(), app.ID, models.StatusRejected, s.reviewer, "boundary dispute")
	s.Require().NoError(err)

	s.Equal(models.StatusRejected, rejected.Status)
	s.Require().NotNil(rejected.ReviewedBy)
	s.Contains(rejected.Notes, "boundary dispute")

	s.Run("no certificate is issued", func() {
		_, err := s.certs.FindByApplication(context.Background(), app.ID)
		s.Error(err)
	})

	s.Run("parcel stays available", func() {
		stored, err := s.parcels.FindByID(context.Background(), parcel.ID)
		s.Require().NoError(err)
		s.Equal(parcelmodels.ParcelStatusAvailable, stored.Status)
	})

	s.Run("frees the uniqueness slot for a new application", func() {
		again := s.submit(parcel, rejected.ApplicantID)
		s.Equal(models.StatusPending, again.Status)
	})
}

func (s *WorkflowSuite) TestTransitionGuards() {
	parcel := s.newParcel("WF-300", parcelmodels.LandTypeIndustrial, 2.0)
	app := s.submit(parcel, id.NewUserID())

	s.Run("approval requires a reviewer", func() {
		_, err := s.service.Transition(s.ctx(), app.ID, models.StatusApproved, id.UserID{}, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown status is invalid input", func() {
		_, err := s.service.Transition(s.ctx(), app.ID, models.ApplicationStatus("archived"), s.reviewer, "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown application is not found", func() {
		_, err := s.service.Transition(s.ctx(), id.NewApplicationID(), models.StatusUnderReview, s.reviewer, "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("terminal applications accept no further transitions", func() {
		cancelled, err := s.service.Cancel(s.ctx(), app.ID, app.ApplicantID)
		s.Require().NoError(err)
		s.Equal(models.StatusCancelled, cancelled.Status)

		_, err = s.service.Transition(s.ctx(), app.ID, models.StatusApproved, s.reviewer, "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func (s *WorkflowSuite) TestReviewPath() {
	parcel := s.newParcel("WF-400", parcelmodels.LandTypeResidential, 1.0)
	app := s.submit(parcel, id.NewUserID())

	reviewed, err := s.service.Transition(s.ctx(), app.ID, models.StatusUnderReview, s.reviewer, "assigned")
	s.Require().NoError(err)
	s.Equal(models.StatusUnderReview, reviewed.Status)
	s.Nil(reviewed.ReviewedBy, "review assignment is not a decision")

	approved, err := s.service.Transition(s.ctx(), app.ID, models.StatusApproved, s.reviewer, "")
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, approved.Status)
}

func (s *WorkflowSuite) TestCancel() {
	parcel := s.newParcel("WF-500", parcelmodels.LandTypeResidential, 1.0)
	applicant := id.NewUserID()
	app := s.submit(parcel, applicant)

	cancelled, err := s.service.Cancel(s.ctx(), app.ID, applicant)
	s.Require().NoError(err)
	s.Equal(models.StatusCancelled, cancelled.Status)
	s.Nil(cancelled.ReviewedBy)
	s.Require().NotNil(cancelled.ActualDays)

	s.Run("slot is freed after cancellation", func() {
		again := s.submit(parcel, applicant)
		s.Equal(models.StatusPending, again.Status)
	})
}

func (s *WorkflowSuite) TestListAndStats() {
	parcelA := s.newParcel("WF-600", parcelmodels.LandTypeResidential, 1.0)
	parcelB := s.newParcel("WF-601", parcelmodels.LandTypeResidential, 1.0)
	applicant := id.NewUserID()

	appA := s.submit(parcelA, applicant)
	s.submit(parcelB, applicant)

	_, err := s.service.Transition(s.ctx(), appA.ID, models.StatusApproved, s.reviewer, "")
	s.Require().NoError(err)

	s.Run("lists the applicant's applications", func() {
		apps, err := s.service.ListByApplicant(s.ctx(), applicant)
		s.Require().NoError(err)
		s.Len(apps, 2)
	})

	s.Run("stats count by status", func() {
		stats, err := s.service.Stats(s.ctx())
		s.Require().NoError(err)
		s.Equal(2, stats.Total)
		s.Equal(1, stats.Open)
		s.Equal(1, stats.Approved)
	})
}
