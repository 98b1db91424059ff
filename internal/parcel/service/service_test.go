package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"landregistry/internal/parcel/models"
	parcelStore "landregistry/internal/parcel/store"
	"landregistry/pkg/audit"
	auditMemory "landregistry/pkg/audit/store/memory"
	id "landregistry/pkg/domain"
	dErrors "landregistry/pkg/domain-errors"
	"landregistry/pkg/platform/tx"
	"landregistry/pkg/requestcontext"
)

type ParcelServiceSuite struct {
	suite.Suite
	store   *parcelStore.InMemoryStore
	events  *auditMemory.InMemoryStore
	service *Service
	now     time.Time
}

func TestParcelServiceSuite(t *testing.T) {
	suite.Run(t, new(ParcelServiceSuite))
}

func (s *ParcelServiceSuite) SetupTest() {
	s.store = parcelStore.NewInMemory()
	s.events = auditMemory.NewInMemoryStore()
	s.service = New(s.store, audit.NewRecorder(s.events), tx.NewInMemoryCoordinator())
	s.now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
}

func (s *ParcelServiceSuite) ctx() context.Context {
	ctx := requestcontext.WithTime(context.Background(), s.now)
	return requestcontext.WithActorID(ctx, id.NewUserID())
}

func (s *ParcelServiceSuite) TestCreate() {
	s.Run("creates an available parcel and records the audit event", func() {
		parcel, err := s.service.Create(s.ctx(), CreateInput{
			ParcelNumber: "  KA-01-0042 ",
			Location:     "Sector 7",
			AreaHectares: 2.5,
			LandType:     models.LandTypeResidential,
		})
		s.Require().NoError(err)
		s.Equal("KA-01-0042", parcel.ParcelNumber, "number is trimmed")
		s.Equal(models.ParcelStatusAvailable, parcel.Status)
		s.Equal(s.now, parcel.CreatedAt)

		events, err := s.events.ListByAction(context.Background(), audit.ActionParcelCreated)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(parcel.ID.String(), events[0].Metadata["parcel_id"])
	})

	s.Run("rejects duplicate parcel numbers", func() {
		_, err := s.service.Create(s.ctx(), CreateInput{
			ParcelNumber: "KA-01-0042",
			AreaHectares: 1.0,
			LandType:     models.LandTypeCommercial,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("translates construction failures to validation errors", func() {
		_, err := s.service.Create(s.ctx(), CreateInput{
			ParcelNumber: "KA-01-0099",
			AreaHectares: -1,
			LandType:     models.LandTypeResidential,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		// A failed create must leave no audit trace.
		events, listErr := s.events.ListAll(context.Background())
		s.Require().NoError(listErr)
		s.Len(events, 1, "only the earlier successful create is recorded")
	})
}

func (s *ParcelServiceSuite) TestGet() {
	created, err := s.service.Create(s.ctx(), CreateInput{
		ParcelNumber: "KA-02-0001",
		AreaHectares: 4.0,
		LandType:     models.LandTypeAgricultural,
	})
	s.Require().NoError(err)

	s.Run("by ID", func() {
		parcel, err := s.service.Get(s.ctx(), created.ID)
		s.Require().NoError(err)
		s.Equal(created.ID, parcel.ID)
	})

	s.Run("by number", func() {
		parcel, err := s.service.GetByNumber(s.ctx(), "KA-02-0001")
		s.Require().NoError(err)
		s.Equal(created.ID, parcel.ID)
	})

	s.Run("unknown ID returns not found", func() {
		_, err := s.service.Get(s.ctx(), id.NewParcelID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("nil ID returns validation error", func() {
		_, err := s.service.Get(s.ctx(), id.ParcelID{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("blank number returns validation error", func() {
		_, err := s.service.GetByNumber(s.ctx(), "   ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ParcelServiceSuite) TestStats() {
	for _, number := range []string{"ST-001", "ST-002", "ST-003"} {
		_, err := s.service.Create(s.ctx(), CreateInput{
			ParcelNumber: number,
			AreaHectares: 1.0,
			LandType:     models.LandTypeResidential,
		})
		s.Require().NoError(err)
	}

	stats, err := s.service.Stats(s.ctx())
	s.Require().NoError(err)
	s.Equal(3, stats.Total)
	s.Equal(3, stats.Available)
	s.Equal(0, stats.Registered)
}
