// Package stats aggregates read-only counts across parcels, applications and
// certificates for dashboards. No invariants beyond correctness of counts.
package stats

import (
	"context"

	"golang.org/x/sync/errgroup"

	applicationservice "landregistry/internal/application/service"
	certificateservice "landregistry/internal/certificate/service"
	parcelservice "landregistry/internal/parcel/service"
)

type ParcelStats interface {
	Stats(ctx context.Context) (*parcelservice.Stats, error)
}

type ApplicationStats interface {
	Stats(ctx context.Context) (*applicationservice.Stats, error)
}

type CertificateStats interface {
	Stats(ctx context.Context) (*certificateservice.Stats, error)
}

// Service fans the three per-entity stat queries out concurrently.
type Service struct {
	parcels      ParcelStats
	applications ApplicationStats
	certificates CertificateStats
}

func New(parcels ParcelStats, applications ApplicationStats, certificates CertificateStats) *Service {
	return &Service{parcels: parcels, applications: applications, certificates: certificates}
}

// Overview is the combined dashboard payload.
type Overview struct {
	Parcels      *parcelservice.Stats      `json:"parcels"`
	Applications *applicationservice.Stats `json:"applications"`
	Certificates *certificateservice.Stats `json:"certificates"`
}

func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	var overview Overview
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		stats, err := s.parcels.Stats(groupCtx)
		if err != nil {
			return err
		}
		overview.Parcels = stats
		return nil
	})
	group.Go(func() error {
		stats, err := s.applications.Stats(groupCtx)
		if err != nil {
			return err
		}
		overview.Applications = stats
		return nil
	})
	group.Go(func() error {
		stats, err := s.certificates.Stats(groupCtx)
		if err != nil {
			return err
		}
		overview.Certificates = stats
		return nil
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return &overview, nil
}
