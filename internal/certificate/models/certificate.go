package models

import (
	"fmt"
	"strings"
	"time"

	id "landregistry/pkg/domain"
	dErrors "landregistry/pkg/domain-errors"
)

// CertificateStatus tracks a certificate's validity.
type CertificateStatus string

const (
	CertificateStatusActive  CertificateStatus = "active"
	CertificateStatusRevoked CertificateStatus = "revoked"
	CertificateStatusExpired CertificateStatus = "expired"
)

func (s CertificateStatus) Valid() bool {
	switch s {
	case CertificateStatusActive, CertificateStatusRevoked, CertificateStatusExpired:
		return true
	}
	return false
}

// Certificate is the durable proof of registered ownership, created only as a
// side effect of an application reaching approved.
//
// Invariants:
//   - exactly one certificate per application
//   - CertificateNumber and VerificationCode are unique and distinct
//   - RevokedBy/RevokedAt are set if and only if status is revoked
//   - ExpiresAt, when present, is strictly after IssuedAt
//   - certificates are never deleted
type Certificate struct {
	ID                id.CertificateID  `json:"id"`
	CertificateNumber string            `json:"certificate_number"`
	ParcelID          id.ParcelID       `json:"parcel_id"`
	ApplicationID     id.ApplicationID  `json:"application_id"`
	IssuedBy          id.UserID         `json:"issued_by"`
	IssuedAt          time.Time         `json:"issued_at"`
	ExpiresAt         *time.Time        `json:"expires_at,omitempty"`
	Status            CertificateStatus `json:"status"`
	IntegrityHash     string            `json:"integrity_hash"`
	VerificationCode  string            `json:"verification_code"`
	RevokedBy         *id.UserID        `json:"revoked_by,omitempty"`
	RevokedAt         *time.Time        `json:"revoked_at,omitempty"`
	RevocationReason  string            `json:"revocation_reason,omitempty"`
}

// NewCertificate constructs an active certificate. The integrity hash is
// computed by the issuer over CanonicalContent after construction.
func NewCertificate(certID id.CertificateID, number string, parcel id.ParcelID, application id.ApplicationID, issuer id.UserID, verificationCode string, issuedAt time.Time, expiresAt *time.Time) (*Certificate, error) {
	if number == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "certificate number cannot be empty")
	}
	if verificationCode == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "verification code cannot be empty")
	}
	if verificationCode == number {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "verification code must differ from the certificate number")
	}
	if issuer.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "issuer is required")
	}
	if expiresAt != nil && !expiresAt.After(issuedAt) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "expiry must be after issuance")
	}
	return &Certificate{
		ID:                certID,
		CertificateNumber: number,
		ParcelID:          parcel,
		ApplicationID:     application,
		IssuedBy:          issuer,
		IssuedAt:          issuedAt,
		ExpiresAt:         expiresAt,
		Status:            CertificateStatusActive,
		VerificationCode:  verificationCode,
	}, nil
}

// CanonicalContent is the exact byte string the integrity hash covers. Any
// change to the covered fields invalidates the hash.
func (c *Certificate) CanonicalContent() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s",
		c.CertificateNumber,
		c.ParcelID,
		c.ApplicationID,
		c.IssuedBy,
		c.IssuedAt.UTC().Format("2006-01-02"),
	)
}

// CanRevoke checks whether the certificate may be revoked with the given
// reason. Use with ApplyRevocation inside the coordinator's transaction.
func (c *Certificate) CanRevoke(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return dErrors.New(dErrors.CodeValidation, "revocation reason is required")
	}
	if c.Status == CertificateStatusRevoked {
		return dErrors.New(dErrors.CodeConflict, "certificate is already revoked")
	}
	return nil
}

// ApplyRevocation marks the certificate revoked. Call CanRevoke first. The
// owning parcel's registered status is deliberately untouched; freeing a
// parcel requires a separate re-adjudication workflow.
func (c *Certificate) ApplyRevocation(revoker id.UserID, reason string, now time.Time) {
	revokedAt := now
	rev := revoker
	c.Status = CertificateStatusRevoked
	c.RevokedBy = &rev
	c.RevokedAt = &revokedAt
	c.RevocationReason = strings.TrimSpace(reason)
}

// Active reports whether the certificate currently vouches for ownership.
func (c *Certificate) Active(now time.Time) bool {
	if c.Status != CertificateStatusActive {
		return false
	}
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return false
	}
	return true
}
