package models

import (
	"time"

	id "landregistry/pkg/domain"
	dErrors "landregistry/pkg/domain-errors"
)

// LandType is the closed vocabulary of parcel categories. It drives the fee
// multiplier, so unknown values are rejected at construction.
type LandType string

const (
	LandTypeResidential  LandType = "residential"
	LandTypeCommercial   LandType = "commercial"
	LandTypeAgricultural LandType = "agricultural"
	LandTypeIndustrial   LandType = "industrial"
)

func (t LandType) Valid() bool {
	switch t {
	case LandTypeResidential, LandTypeCommercial, LandTypeAgricultural, LandTypeIndustrial:
		return true
	}
	return false
}

// ParcelStatus tracks whether a parcel can accept new ownership claims.
type ParcelStatus string

const (
	ParcelStatusAvailable   ParcelStatus = "available"
	ParcelStatusRegistered  ParcelStatus = "registered"
	ParcelStatusDisputed    ParcelStatus = "disputed"
	ParcelStatusUnderReview ParcelStatus = "under_review"
)

func (s ParcelStatus) Valid() bool {
	switch s {
	case ParcelStatusAvailable, ParcelStatusRegistered, ParcelStatusDisputed, ParcelStatusUnderReview:
		return true
	}
	return false
}

// Parcel is a registrable unit of land.
//
// Invariants:
//   - ParcelNumber is unique and immutable
//   - AreaHectares is strictly positive
//   - Status is registered if and only if an approved application exists,
//     and at most one approved application may exist per parcel
//   - Parcels are never physically deleted (certificates reference them)
//
// Status moves to registered only through the application workflow's approval
// path. Dispute handling is an external process; revoking a certificate does
// not free the parcel, that requires a separate re-adjudication step.
type Parcel struct {
	ID           id.ParcelID  `json:"id"`
	ParcelNumber string       `json:"parcel_number"`
	Location     string       `json:"location"`
	AreaHectares float64      `json:"area_hectares"`
	LandType     LandType     `json:"land_type"`
	Status       ParcelStatus `json:"status"`
	MarketValue  *int64       `json:"market_value,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// NewParcel constructs a parcel in the available status, enforcing the
// construction invariants.
func NewParcel(parcelID id.ParcelID, number, location string, area float64, landType LandType, marketValue *int64, now time.Time) (*Parcel, error) {
	if number == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "parcel number cannot be empty")
	}
	if area <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "parcel area must be positive")
	}
	if !landType.Valid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown land type %q", landType)
	}
	if marketValue != nil && *marketValue < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "market value cannot be negative")
	}
	return &Parcel{
		ID:           parcelID,
		ParcelNumber: number,
		Location:     location,
		AreaHectares: area,
		LandType:     landType,
		Status:       ParcelStatusAvailable,
		MarketValue:  marketValue,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (p *Parcel) IsRegistered() bool {
	return p.Status == ParcelStatusRegistered
}

// CanRegister checks whether the parcel may move to registered. Use with
// ApplyRegistration inside the approval transaction.
func (p *Parcel) CanRegister() error {
	if p.Status == ParcelStatusRegistered {
		return dErrors.New(dErrors.CodeInvariantViolation, "parcel is already registered")
	}
	return nil
}

// ApplyRegistration marks the parcel registered. Call CanRegister first.
func (p *Parcel) ApplyRegistration(now time.Time) {
	p.Status = ParcelStatusRegistered
	p.UpdatedAt = now
}
