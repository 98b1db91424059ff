package models

// ApplicationStatus is the application's position in the review workflow.
type ApplicationStatus string

const (
	StatusPending     ApplicationStatus = "pending"
	StatusUnderReview ApplicationStatus = "under_review"
	StatusApproved    ApplicationStatus = "approved"
	StatusRejected    ApplicationStatus = "rejected"
	StatusCancelled   ApplicationStatus = "cancelled"
)

// allowedTransitions encodes the workflow state machine. The review step is
// optional: pending may go straight to approved or rejected.
var allowedTransitions = map[ApplicationStatus][]ApplicationStatus{
	StatusPending:     {StatusUnderReview, StatusApproved, StatusRejected, StatusCancelled},
	StatusUnderReview: {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:    {},
	StatusRejected:    {},
	StatusCancelled:   {},
}

func (s ApplicationStatus) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// Terminal reports whether no further transition is permitted from s.
func (s ApplicationStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

// CanTransitionTo reports whether target is reachable from s in one step.
func (s ApplicationStatus) CanTransitionTo(target ApplicationStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// RequiresReviewer reports whether entering s needs an identified reviewer.
func (s ApplicationStatus) RequiresReviewer() bool {
	return s == StatusApproved || s == StatusRejected
}

// PaymentStatus tracks the fee settlement state. It never gates workflow
// transitions in this core; it travels with the application for the payment
// integration to act on.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// ApplicationType is the closed vocabulary of claim kinds.
type ApplicationType string

const (
	TypeRegistration ApplicationType = "registration"
	TypeTransfer     ApplicationType = "transfer"
	TypeSubdivision  ApplicationType = "subdivision"
	TypeMutation     ApplicationType = "mutation"
)

func (t ApplicationType) Valid() bool {
	switch t {
	case TypeRegistration, TypeTransfer, TypeSubdivision, TypeMutation:
		return true
	}
	return false
}

// estimatedDays is the published processing estimate per application type.
var estimatedDays = map[ApplicationType]int{
	TypeRegistration: 30,
	TypeTransfer:     21,
	TypeSubdivision:  45,
	TypeMutation:     14,
}

// EstimatedProcessingDays returns the published estimate for t.
func (t ApplicationType) EstimatedProcessingDays() int {
	return estimatedDays[t]
}
