package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"

	appmodels "landregistry/internal/application/models"
	"landregistry/internal/certificate/models"
	"landregistry/internal/platform/metrics"
	"landregistry/pkg/audit"
	id "landregistry/pkg/domain"
	dErrors "landregistry/pkg/domain-errors"
	"landregistry/pkg/platform/sentinel"
	"landregistry/pkg/requestcontext"
)

// Store is the persistence surface the issuer needs.
type Store interface {
	Create(ctx context.Context, cert *models.Certificate) error
	FindByID(ctx context.Context, certID id.CertificateID) (*models.Certificate, error)
	FindByIDForUpdate(ctx context.Context, certID id.CertificateID) (*models.Certificate, error)
	FindByNumber(ctx context.Context, number string) (*models.Certificate, error)
	FindByApplication(ctx context.Context, appID id.ApplicationID) (*models.Certificate, error)
	Update(ctx context.Context, cert *models.Certificate) error
	CountByStatus(ctx context.Context) (map[models.CertificateStatus]int, error)
}

// StoreTx provides the transactional boundary for certificate mutations that
// run outside the approval transaction (revocation).
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// VerificationCache caches certificate verification state. Optional; a nil
// cache disables caching.
type VerificationCache interface {
	Get(ctx context.Context, certificateNumber string) (*CachedVerification, bool)
	Set(ctx context.Context, certificateNumber string, entry CachedVerification)
	Invalidate(ctx context.Context, certificateNumber string)
}

// Service issues, revokes and verifies ownership certificates.
type Service struct {
	certs    Store
	recorder *audit.Recorder
	tx       StoreTx
	logger   *slog.Logger
	metrics  *metrics.Metrics
	cache    VerificationCache
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithVerificationCache(cache VerificationCache) Option {
	return func(s *Service) { s.cache = cache }
}

func New(certs Store, recorder *audit.Recorder, tx StoreTx, opts ...Option) *Service {
	s := &Service{
		certs:    certs,
		recorder: recorder,
		tx:       tx,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue creates the certificate for an approved application. It joins the
// caller's transaction: the workflow invokes it inside the approval unit of
// work, so the certificate commits or rolls back with the approval itself.
func (s *Service) Issue(ctx context.Context, app *appmodels.Application, issuer id.UserID) (*models.Certificate, error) {
	if app.Status != appmodels.StatusApproved {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition, "cannot issue certificate for %s application", app.Status)
	}
	if issuer.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "issuer is required")
	}

	if _, err := s.certs.FindByApplication(ctx, app.ID); err == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "certificate already exists for this application")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing certificate")
	}

	now := requestcontext.Now(ctx)
	code, err := verificationCode()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate verification code")
	}

	cert, err := models.NewCertificate(id.NewCertificateID(), certificateNumber(now, app.ParcelID),
		app.ParcelID, app.ID, issuer, code, now, nil)
	if err != nil {
		return nil, err
	}
	cert.IntegrityHash = integrityHash(cert.CanonicalContent())

	if err := s.certs.Create(ctx, cert); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "certificate already exists for this application")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create certificate")
	}

	if err := s.recorder.Record(ctx, issuer, audit.ActionCertificateIssued,
		"certificate "+cert.CertificateNumber+" issued",
		map[string]string{
			"certificate_id": cert.ID.String(),
			"parcel_id":      cert.ParcelID.String(),
			"application_id": cert.ApplicationID.String(),
		},
	); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementCertificatesIssued()
	}
	return cert, nil
}

// Revoke marks a certificate revoked with a mandatory reason. The owning
// parcel stays registered; freeing it requires a separate re-adjudication
// workflow. Revoking an already-revoked certificate fails and records no
// audit event.
func (s *Service) Revoke(ctx context.Context, certID id.CertificateID, revoker id.UserID, reason string) (*models.Certificate, error) {
	if certID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "certificate ID is required")
	}
	if revoker.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "revoker is required")
	}

	var cert *models.Certificate
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		c, err := s.certs.FindByIDForUpdate(txCtx, certID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "certificate not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load certificate")
		}

		if err := c.CanRevoke(reason); err != nil {
			return err
		}
		c.ApplyRevocation(revoker, reason, requestcontext.Now(txCtx))

		if err := s.certs.Update(txCtx, c); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke certificate")
		}

		if err := s.recorder.Record(txCtx, revoker, audit.ActionCertificateRevoked,
			"certificate "+c.CertificateNumber+" revoked",
			map[string]string{
				"certificate_id": c.ID.String(),
				"reason":         c.RevocationReason,
			},
		); err != nil {
			return err
		}
		cert = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, cert.CertificateNumber)
	}
	if s.metrics != nil {
		s.metrics.IncrementCertificatesRevoked()
	}
	return cert, nil
}

// Verification outcome reasons returned to public callers.
const (
	ReasonNotFound     = "not_found"
	ReasonNotActive    = "not_active"
	ReasonHashMismatch = "hash_mismatch"
)

// VerificationResult is the structured answer for the public verification
// endpoint. Failures are values, not errors: the caller is untrusted and a
// missing certificate is a normal answer.
type VerificationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// CachedVerification is the cache payload for one certificate number: the
// outcome for inactive or unknown certificates, plus the stored integrity
// hash for active ones so a hit answers without a store read. Revocation
// invalidates the entry; the cache TTL bounds staleness otherwise.
type CachedVerification struct {
	Valid         bool   `json:"valid"`
	Reason        string `json:"reason,omitempty"`
	IntegrityHash string `json:"integrity_hash,omitempty"`
}

// Verify checks a certificate number against a supplied integrity hash. It
// is read-only and never fails for unknown numbers.
func (s *Service) Verify(ctx context.Context, certificateNumber, suppliedHash string) (VerificationResult, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, certificateNumber); ok {
			return s.verifyCached(*cached, suppliedHash), nil
		}
	}

	cert, err := s.certs.FindByNumber(ctx, certificateNumber)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.cacheEntry(ctx, certificateNumber, CachedVerification{Reason: ReasonNotFound})
			s.countVerification(ReasonNotFound)
			return VerificationResult{Valid: false, Reason: ReasonNotFound}, nil
		}
		return VerificationResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load certificate")
	}

	if !cert.Active(requestcontext.Now(ctx)) {
		s.cacheEntry(ctx, certificateNumber, CachedVerification{Reason: ReasonNotActive})
		s.countVerification(ReasonNotActive)
		return VerificationResult{Valid: false, Reason: ReasonNotActive}, nil
	}

	// The certificate state is cacheable regardless of the supplied hash.
	s.cacheEntry(ctx, certificateNumber, CachedVerification{Valid: true, IntegrityHash: cert.IntegrityHash})

	if subtle.ConstantTimeCompare([]byte(cert.IntegrityHash), []byte(suppliedHash)) != 1 {
		s.countVerification(ReasonHashMismatch)
		return VerificationResult{Valid: false, Reason: ReasonHashMismatch}, nil
	}

	s.countVerification("valid")
	return VerificationResult{Valid: true}, nil
}

// verifyCached answers from the cached certificate state. The hash comparison
// runs against the cached stored hash, so a hit never touches the store.
func (s *Service) verifyCached(cached CachedVerification, suppliedHash string) VerificationResult {
	if !cached.Valid {
		s.countVerification(cached.Reason)
		return VerificationResult{Valid: false, Reason: cached.Reason}
	}
	if subtle.ConstantTimeCompare([]byte(cached.IntegrityHash), []byte(suppliedHash)) != 1 {
		s.countVerification(ReasonHashMismatch)
		return VerificationResult{Valid: false, Reason: ReasonHashMismatch}
	}
	s.countVerification("valid")
	return VerificationResult{Valid: true}
}

// Get fetches a certificate by ID.
func (s *Service) Get(ctx context.Context, certID id.CertificateID) (*models.Certificate, error) {
	if certID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "certificate ID is required")
	}
	cert, err := s.certs.FindByID(ctx, certID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load certificate")
	}
	return cert, nil
}

// Stats reports certificate counts by status.
type Stats struct {
	Total    int                              `json:"total"`
	ByStatus map[models.CertificateStatus]int `json:"by_status"`
	Active   int                              `json:"active"`
	Revoked  int                              `json:"revoked"`
	Expired  int                              `json:"expired"`
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.certs.CountByStatus(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count certificates")
	}
	stats := &Stats{ByStatus: counts}
	for status, count := range counts {
		stats.Total += count
		switch status {
		case models.CertificateStatusActive:
			stats.Active = count
		case models.CertificateStatusRevoked:
			stats.Revoked = count
		case models.CertificateStatusExpired:
			stats.Expired = count
		}
	}
	return stats, nil
}

func (s *Service) cacheEntry(ctx context.Context, certificateNumber string, entry CachedVerification) {
	if s.cache != nil {
		s.cache.Set(ctx, certificateNumber, entry)
	}
}

func (s *Service) countVerification(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementVerification(outcome)
	}
}
