package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	appmodels "landregistry/internal/application/models"
	"landregistry/internal/certificate/models"
	certStore "landregistry/internal/certificate/store"
	"landregistry/pkg/audit"
	auditMemory "landregistry/pkg/audit/store/memory"
	id "landregistry/pkg/domain"
	dErrors "landregistry/pkg/domain-errors"
	"landregistry/pkg/platform/tx"
	"landregistry/pkg/requestcontext"
)

// fakeCache records cache traffic so tests can assert on hits and
// invalidations without Redis.
type fakeCache struct {
	mu            sync.Mutex
	entries       map[string]CachedVerification
	invalidations []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]CachedVerification)}
}

func (c *fakeCache) Get(_ context.Context, number string) (*CachedVerification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[number]
	if !ok {
		return nil, false
	}
	return &entry, true
}

func (c *fakeCache) Set(_ context.Context, number string, entry CachedVerification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[number] = entry
}

func (c *fakeCache) Invalidate(_ context.Context, number string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, number)
	c.invalidations = append(c.invalidations, number)
}

// countingStore wraps the memory store to count FindByNumber reads, so tests
// can prove cache hits skip the store.
type countingStore struct {
	*certStore.InMemoryStore
	mu    sync.Mutex
	reads int
}

func (c *countingStore) FindByNumber(ctx context.Context, number string) (*models.Certificate, error) {
	c.mu.Lock()
	c.reads++
	c.mu.Unlock()
	return c.InMemoryStore.FindByNumber(ctx, number)
}

func (c *countingStore) findByNumberReads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

type CertificateServiceSuite struct {
	suite.Suite
	store   *certStore.InMemoryStore
	events  *auditMemory.InMemoryStore
	cache   *fakeCache
	service *Service
	now     time.Time
	issuer  id.UserID
}

func TestCertificateServiceSuite(t *testing.T) {
	suite.Run(t, new(CertificateServiceSuite))
}

func (s *CertificateServiceSuite) SetupTest() {
	s.store = certStore.NewInMemory()
	s.events = auditMemory.NewInMemoryStore()
	s.cache = newFakeCache()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.issuer = id.NewUserID()
	s.service = New(s.store, audit.NewRecorder(s.events), tx.NewInMemoryCoordinator(),
		WithVerificationCache(s.cache))
}

func (s *CertificateServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *CertificateServiceSuite) approvedApplication() *appmodels.Application {
	s.T().Helper()
	app, err := appmodels.NewApplication(id.NewApplicationID(), id.NewUserID(), id.NewParcelID(),
		appmodels.TypeRegistration, 52500, 1, "", s.now.Add(-48*time.Hour))
	s.Require().NoError(err)
	app.ApplyTransition(appmodels.StatusApproved, s.issuer, "", s.now)
	return app
}

func (s *CertificateServiceSuite) TestIssue() {
	s.Run("issues an active certificate with a verifiable hash", func() {
		app := s.approvedApplication()
		cert, err := s.service.Issue(s.ctx(), app, s.issuer)
		s.Require().NoError(err)

		s.Equal(app.ParcelID, cert.ParcelID)
		s.Equal(app.ID, cert.ApplicationID)
		s.NotEqual(cert.CertificateNumber, cert.VerificationCode)
		s.Equal(integrityHash(cert.CanonicalContent()), cert.IntegrityHash)

		events, err := s.events.ListByAction(context.Background(), audit.ActionCertificateIssued)
		s.Require().NoError(err)
		s.Len(events, 1)
	})

	s.Run("rejects non-approved applications", func() {
		app, err := appmodels.NewApplication(id.NewApplicationID(), id.NewUserID(), id.NewParcelID(),
			appmodels.TypeRegistration, 100, 1, "", s.now)
		s.Require().NoError(err)

		_, err = s.service.Issue(s.ctx(), app, s.issuer)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("rejects a second certificate for the same application", func() {
		app := s.approvedApplication()
		_, err := s.service.Issue(s.ctx(), app, s.issuer)
		s.Require().NoError(err)

		_, err = s.service.Issue(s.ctx(), app, s.issuer)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("rejects a nil issuer", func() {
		_, err := s.service.Issue(s.ctx(), s.approvedApplication(), id.UserID{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *CertificateServiceSuite) TestRevoke() {
	app := s.approvedApplication()
	cert, err := s.service.Issue(s.ctx(), app, s.issuer)
	s.Require().NoError(err)
	revoker := id.NewUserID()

	s.Run("requires a reason", func() {
		_, err := s.service.Revoke(s.ctx(), cert.ID, revoker, "  ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("revokes and invalidates the cached verification", func() {
		revoked, err := s.service.Revoke(s.ctx(), cert.ID, revoker, "fraudulent survey")
		s.Require().NoError(err)

		s.Require().NotNil(revoked.RevokedBy)
		s.Equal(revoker, *revoked.RevokedBy)
		s.Equal("fraudulent survey", revoked.RevocationReason)
		s.Contains(s.cache.invalidations, cert.CertificateNumber)

		events, err := s.events.ListByAction(context.Background(), audit.ActionCertificateRevoked)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal("fraudulent survey", events[0].Metadata["reason"])
	})

	s.Run("second revocation fails and records no extra audit event", func() {
		_, err := s.service.Revoke(s.ctx(), cert.ID, revoker, "again")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		events, listErr := s.events.ListByAction(context.Background(), audit.ActionCertificateRevoked)
		s.Require().NoError(listErr)
		s.Len(events, 1)
	})

	s.Run("unknown certificate is not found", func() {
		_, err := s.service.Revoke(s.ctx(), id.NewCertificateID(), revoker, "reason")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *CertificateServiceSuite) TestVerify() {
	app := s.approvedApplication()
	cert, err := s.service.Issue(s.ctx(), app, s.issuer)
	s.Require().NoError(err)

	s.Run("valid certificate with matching hash", func() {
		result, err := s.service.Verify(s.ctx(), cert.CertificateNumber, cert.IntegrityHash)
		s.Require().NoError(err)
		s.True(result.Valid)
		s.Empty(result.Reason)
	})

	s.Run("hash mismatch is a value, not an error", func() {
		result, err := s.service.Verify(s.ctx(), cert.CertificateNumber, "tampered")
		s.Require().NoError(err)
		s.False(result.Valid)
		s.Equal(ReasonHashMismatch, result.Reason)
	})

	s.Run("unknown number reports not_found", func() {
		result, err := s.service.Verify(s.ctx(), "LRC-00000000-DEAD-000000000", cert.IntegrityHash)
		s.Require().NoError(err)
		s.False(result.Valid)
		s.Equal(ReasonNotFound, result.Reason)
	})

	s.Run("cached state still checks the hash per request", func() {
		// The previous valid lookup populated the cache; a bad hash must
		// still fail.
		result, err := s.service.Verify(s.ctx(), cert.CertificateNumber, "tampered")
		s.Require().NoError(err)
		s.False(result.Valid)
	})

	s.Run("valid cache hits answer without a store read", func() {
		store := &countingStore{InMemoryStore: certStore.NewInMemory()}
		svc := New(store, audit.NewRecorder(auditMemory.NewInMemoryStore()), tx.NewInMemoryCoordinator(),
			WithVerificationCache(newFakeCache()))

		issued, err := svc.Issue(s.ctx(), s.approvedApplication(), s.issuer)
		s.Require().NoError(err)

		// First lookup warms the cache with the stored hash.
		result, err := svc.Verify(s.ctx(), issued.CertificateNumber, issued.IntegrityHash)
		s.Require().NoError(err)
		s.True(result.Valid)
		s.Equal(1, store.findByNumberReads())

		result, err = svc.Verify(s.ctx(), issued.CertificateNumber, issued.IntegrityHash)
		s.Require().NoError(err)
		s.True(result.Valid)

		result, err = svc.Verify(s.ctx(), issued.CertificateNumber, "tampered")
		s.Require().NoError(err)
		s.Equal(ReasonHashMismatch, result.Reason)
		s.Equal(1, store.findByNumberReads(), "cache hits must not reach the store")
	})

	s.Run("revoked certificate reports not_active", func() {
		_, err := s.service.Revoke(s.ctx(), cert.ID, id.NewUserID(), "court order")
		s.Require().NoError(err)

		result, err := s.service.Verify(s.ctx(), cert.CertificateNumber, cert.IntegrityHash)
		s.Require().NoError(err)
		s.False(result.Valid)
		s.Equal(ReasonNotActive, result.Reason)
	})
}

func (s *CertificateServiceSuite) TestGetAndStats() {
	cert, err := s.service.Issue(s.ctx(), s.approvedApplication(), s.issuer)
	s.Require().NoError(err)

	got, err := s.service.Get(s.ctx(), cert.ID)
	s.Require().NoError(err)
	s.Equal(cert.ID, got.ID)

	_, err = s.service.Get(s.ctx(), id.NewCertificateID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	stats, err := s.service.Stats(s.ctx())
	s.Require().NoError(err)
	s.Equal(1, stats.Total)
	s.Equal(1, stats.Active)
}
