package models

import (
	"strings"
	"time"

	id "landregistry/pkg/domain"
	dErrors "landregistry/pkg/domain-errors"
)

// secondsPerDay converts elapsed time to whole processing days, truncating
// fractional days toward zero.
const secondsPerDay = 86400

// Application is one claim against exactly one parcel by exactly one
// applicant.
//
// Invariants:
//   - FeeAmount is computed at submission and immutable afterwards
//   - ReviewedBy/ReviewedAt are both nil while status is pending or
//     under_review, and both set once status is approved or rejected
//   - approved, rejected and cancelled are terminal
//   - at most one open (pending/under_review) application per
//     (applicant, parcel) pair
type Application struct {
	ID            id.ApplicationID  `json:"id"`
	ApplicantID   id.UserID         `json:"applicant_id"`
	ParcelID      id.ParcelID       `json:"parcel_id"`
	Type          ApplicationType   `json:"application_type"`
	Status        ApplicationStatus `json:"status"`
	FeeAmount     int64             `json:"fee_amount"`
	PaymentStatus PaymentStatus     `json:"payment_status"`
	Priority      int               `json:"priority"`
	Notes         string            `json:"notes,omitempty"`
	ReviewedBy    *id.UserID        `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time        `json:"reviewed_at,omitempty"`
	EstimatedDays int               `json:"estimated_days"`
	ActualDays    *int              `json:"actual_days,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// NewApplication constructs a pending application with its fee fixed.
func NewApplication(appID id.ApplicationID, applicant id.UserID, parcel id.ParcelID, appType ApplicationType, fee int64, priority int, notes string, now time.Time) (*Application, error) {
	if applicant.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "applicant is required")
	}
	if parcel.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "parcel is required")
	}
	if !appType.Valid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown application type %q", appType)
	}
	if priority < 1 || priority > 5 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "priority must be between 1 and 5")
	}
	if fee < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "fee cannot be negative")
	}
	return &Application{
		ID:            appID,
		ApplicantID:   applicant,
		ParcelID:      parcel,
		Type:          appType,
		Status:        StatusPending,
		FeeAmount:     fee,
		PaymentStatus: PaymentPending,
		Priority:      priority,
		Notes:         notes,
		EstimatedDays: appType.EstimatedProcessingDays(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Open reports whether the application still occupies the (applicant, parcel)
// uniqueness slot.
func (a *Application) Open() bool {
	return a.Status == StatusPending || a.Status == StatusUnderReview
}

// CanTransitionTo checks the workflow guard for a move to target. Use with
// ApplyTransition inside the coordinator's transaction.
func (a *Application) CanTransitionTo(target ApplicationStatus) error {
	if !target.Valid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown application status %q", target)
	}
	if a.Status.Terminal() {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "application is already %s", a.Status)
	}
	if !a.Status.CanTransitionTo(target) {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot move application from %s to %s", a.Status, target)
	}
	return nil
}

// ApplyTransition moves the application to target. Call CanTransitionTo
// first. Reviewer identity is recorded for approved/rejected only; the actual
// processing day count is fixed when entering any terminal state.
func (a *Application) ApplyTransition(target ApplicationStatus, reviewer id.UserID, notes string, now time.Time) {
	a.Status = target
	if target.RequiresReviewer() {
		rev := reviewer
		reviewedAt := now
		a.ReviewedBy = &rev
		a.ReviewedAt = &reviewedAt
	}
	if notes != "" {
		a.appendNotes(notes)
	}
	if target.Terminal() {
		days := int(now.Sub(a.CreatedAt).Seconds()) / secondsPerDay
		a.ActualDays = &days
	}
	a.UpdatedAt = now
}

func (a *Application) appendNotes(notes string) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return
	}
	if a.Notes == "" {
		a.Notes = notes
		return
	}
	a.Notes = a.Notes + "\n" + notes
}

// ApplyPaymentStatus records a settlement update from the payment
// integration. The fee amount itself never changes.
func (a *Application) ApplyPaymentStatus(status PaymentStatus, now time.Time) error {
	if !status.Valid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown payment status %q", status)
	}
	a.PaymentStatus = status
	a.UpdatedAt = now
	return nil
}
