package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"landregistry/internal/application/models"
	id "landregistry/pkg/domain"
	"landregistry/pkg/platform/sentinel"
)

// InMemoryStore keeps applications in a map. It enforces the same uniqueness
// rules the postgres partial indexes do, so service tests exercise identical
// failure paths.
type InMemoryStore struct {
	mu   sync.RWMutex
	byID map[id.ApplicationID]*models.Application
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{byID: make(map[id.ApplicationID]*models.Application)}
}

func (s *InMemoryStore) Create(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.ApplicantID == app.ApplicantID && existing.ParcelID == app.ParcelID && existing.Open() {
			return fmt.Errorf("open application for applicant %s on parcel %s: %w",
				app.ApplicantID, app.ParcelID, sentinel.ErrConflict)
		}
	}
	copied := *app
	s.byID[app.ID] = &copied
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, appID id.ApplicationID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.byID[appID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *app
	return &copied, nil
}

// FindByIDForUpdate behaves like FindByID; the in-memory coordinator's lock
// provides the exclusion a row lock gives in postgres.
func (s *InMemoryStore) FindByIDForUpdate(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	return s.FindByID(ctx, appID)
}

func (s *InMemoryStore) Update(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[app.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if app.Status == models.StatusApproved {
		for _, existing := range s.byID {
			if existing.ID != app.ID && existing.ParcelID == app.ParcelID && existing.Status == models.StatusApproved {
				return fmt.Errorf("approved application already exists for parcel %s: %w",
					app.ParcelID, sentinel.ErrConflict)
			}
		}
	}
	copied := *app
	s.byID[app.ID] = &copied
	return nil
}

func (s *InMemoryStore) CountOpenByApplicantAndParcel(_ context.Context, applicant id.UserID, parcel id.ParcelID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, app := range s.byID {
		if app.ApplicantID == applicant && app.ParcelID == parcel && app.Open() {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) CountApprovedByParcel(_ context.Context, parcel id.ParcelID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, app := range s.byID {
		if app.ParcelID == parcel && app.Status == models.StatusApproved {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) ListByApplicant(_ context.Context, applicant id.UserID) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var apps []*models.Application
	for _, app := range s.byID {
		if app.ApplicantID == applicant {
			copied := *app
			apps = append(apps, &copied)
		}
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].CreatedAt.After(apps[j].CreatedAt) })
	return apps, nil
}

func (s *InMemoryStore) CountByStatus(_ context.Context) (map[models.ApplicationStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[models.ApplicationStatus]int)
	for _, app := range s.byID {
		counts[app.Status]++
	}
	return counts, nil
}
