package store

import (
	"context"
	"fmt"
	"sync"

	"landregistry/internal/certificate/models"
	id "landregistry/pkg/domain"
	"landregistry/pkg/platform/sentinel"
)

// InMemoryStore keeps certificates in maps, enforcing the same uniqueness
// rules as the postgres constraints.
type InMemoryStore struct {
	mu            sync.RWMutex
	byID          map[id.CertificateID]*models.Certificate
	byNumber      map[string]id.CertificateID
	byApplication map[id.ApplicationID]id.CertificateID
	byCode        map[string]id.CertificateID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:          make(map[id.CertificateID]*models.Certificate),
		byNumber:      make(map[string]id.CertificateID),
		byApplication: make(map[id.ApplicationID]id.CertificateID),
		byCode:        make(map[string]id.CertificateID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, cert *models.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byApplication[cert.ApplicationID]; exists {
		return fmt.Errorf("certificate for application %s: %w", cert.ApplicationID, sentinel.ErrConflict)
	}
	if _, exists := s.byNumber[cert.CertificateNumber]; exists {
		return fmt.Errorf("certificate number %s: %w", cert.CertificateNumber, sentinel.ErrConflict)
	}
	if _, exists := s.byCode[cert.VerificationCode]; exists {
		return fmt.Errorf("verification code: %w", sentinel.ErrConflict)
	}
	copied := *cert
	s.byID[cert.ID] = &copied
	s.byNumber[cert.CertificateNumber] = cert.ID
	s.byApplication[cert.ApplicationID] = cert.ID
	s.byCode[cert.VerificationCode] = cert.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, certID id.CertificateID) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cert, ok := s.byID[certID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *cert
	return &copied, nil
}

// FindByIDForUpdate behaves like FindByID; the in-memory coordinator's lock
// provides exclusion.
func (s *InMemoryStore) FindByIDForUpdate(ctx context.Context, certID id.CertificateID) (*models.Certificate, error) {
	return s.FindByID(ctx, certID)
}

func (s *InMemoryStore) FindByNumber(_ context.Context, number string) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	certID, ok := s.byNumber[number]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *s.byID[certID]
	return &copied, nil
}

func (s *InMemoryStore) FindByApplication(_ context.Context, appID id.ApplicationID) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	certID, ok := s.byApplication[appID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *s.byID[certID]
	return &copied, nil
}

func (s *InMemoryStore) Update(_ context.Context, cert *models.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[cert.ID]; !ok {
		return sentinel.ErrNotFound
	}
	copied := *cert
	s.byID[cert.ID] = &copied
	return nil
}

func (s *InMemoryStore) CountByStatus(_ context.Context) (map[models.CertificateStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[models.CertificateStatus]int)
	for _, cert := range s.byID {
		counts[cert.Status]++
	}
	return counts, nil
}
