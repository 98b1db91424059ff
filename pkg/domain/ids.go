// Package domain defines typed identifiers for the core entities. Wrapping
// uuid.UUID in distinct types prevents a parcel ID from being passed where an
// application ID is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "landregistry/pkg/domain-errors"
)

type (
	// ParcelID identifies a registrable unit of land.
	ParcelID uuid.UUID
	// ApplicationID identifies a claim against a parcel.
	ApplicationID uuid.UUID
	// CertificateID identifies an issued ownership certificate.
	CertificateID uuid.UUID
	// UserID identifies an external actor (applicant, reviewer, registrar).
	UserID uuid.UUID
)

func (id ParcelID) String() string      { return uuid.UUID(id).String() }
func (id ApplicationID) String() string { return uuid.UUID(id).String() }
func (id CertificateID) String() string { return uuid.UUID(id).String() }
func (id UserID) String() string        { return uuid.UUID(id).String() }

func (id ParcelID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ApplicationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id CertificateID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }

// The ID types marshal as canonical UUID strings in JSON payloads.

func (id ParcelID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id ApplicationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id CertificateID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id UserID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }

func (id *ParcelID) UnmarshalText(text []byte) error {
	parsed, err := ParseParcelID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ApplicationID) UnmarshalText(text []byte) error {
	parsed, err := ParseApplicationID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *CertificateID) UnmarshalText(text []byte) error {
	parsed, err := ParseCertificateID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *UserID) UnmarshalText(text []byte) error {
	parsed, err := ParseUserID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// NewParcelID returns a fresh random parcel ID.
func NewParcelID() ParcelID { return ParcelID(uuid.New()) }

// NewApplicationID returns a fresh random application ID.
func NewApplicationID() ApplicationID { return ApplicationID(uuid.New()) }

// NewCertificateID returns a fresh random certificate ID.
func NewCertificateID() CertificateID { return CertificateID(uuid.New()) }

// NewUserID returns a fresh random user ID.
func NewUserID() UserID { return UserID(uuid.New()) }

// parseUUID enforces the parsing invariant shared by every ID type: the input
// must be a valid, non-nil UUID.
func parseUUID(kind, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" ID must not be empty")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" ID is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" ID must not be the nil UUID")
	}
	return parsed, nil
}

// ParseParcelID parses a parcel ID from its string form.
func ParseParcelID(raw string) (ParcelID, error) {
	parsed, err := parseUUID("parcel", raw)
	if err != nil {
		return ParcelID{}, err
	}
	return ParcelID(parsed), nil
}

// ParseApplicationID parses an application ID from its string form.
func ParseApplicationID(raw string) (ApplicationID, error) {
	parsed, err := parseUUID("application", raw)
	if err != nil {
		return ApplicationID{}, err
	}
	return ApplicationID(parsed), nil
}

// ParseCertificateID parses a certificate ID from its string form.
func ParseCertificateID(raw string) (CertificateID, error) {
	parsed, err := parseUUID("certificate", raw)
	if err != nil {
		return CertificateID{}, err
	}
	return CertificateID(parsed), nil
}

// ParseUserID parses a user ID from its string form.
func ParseUserID(raw string) (UserID, error) {
	parsed, err := parseUUID("user", raw)
	if err != nil {
		return UserID{}, err
	}
	return UserID(parsed), nil
}
