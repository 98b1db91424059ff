package store

import (
	"context"
	"fmt"
	"sync"

	"landregistry/internal/parcel/models"
	id "landregistry/pkg/domain"
	"landregistry/pkg/platform/sentinel"
)

// InMemoryStore keeps parcels in maps. Used by service unit tests and local
// development. Cross-entity atomicity comes from the in-memory coordinator's
// coarse lock, not from this store.
type InMemoryStore struct {
	mu       sync.RWMutex
	byID     map[id.ParcelID]*models.Parcel
	byNumber map[string]id.ParcelID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:     make(map[id.ParcelID]*models.Parcel),
		byNumber: make(map[string]id.ParcelID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, parcel *models.Parcel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byNumber[parcel.ParcelNumber]; exists {
		return fmt.Errorf("parcel number %s: %w", parcel.ParcelNumber, sentinel.ErrConflict)
	}
	copied := *parcel
	s.byID[parcel.ID] = &copied
	s.byNumber[parcel.ParcelNumber] = parcel.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, parcelID id.ParcelID) (*models.Parcel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	parcel, ok := s.byID[parcelID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *parcel
	return &copied, nil
}

func (s *InMemoryStore) FindByNumber(_ context.Context, number string) (*models.Parcel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	parcelID, ok := s.byNumber[number]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *s.byID[parcelID]
	return &copied, nil
}

// FindByIDForUpdate behaves like FindByID; exclusion is provided by the
// in-memory coordinator holding its lock for the whole unit of work.
func (s *InMemoryStore) FindByIDForUpdate(ctx context.Context, parcelID id.ParcelID) (*models.Parcel, error) {
	return s.FindByID(ctx, parcelID)
}

func (s *InMemoryStore) Update(_ context.Context, parcel *models.Parcel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[parcel.ID]; !ok {
		return sentinel.ErrNotFound
	}
	copied := *parcel
	s.byID[parcel.ID] = &copied
	return nil
}

func (s *InMemoryStore) CountByStatus(_ context.Context) (map[models.ParcelStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[models.ParcelStatus]int)
	for _, parcel := range s.byID {
		counts[parcel.Status]++
	}
	return counts, nil
}
