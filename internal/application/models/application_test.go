package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "landregistry/pkg/domain"
	dErrors "landregistry/pkg/domain-errors"
)

func newPendingApplication(t *testing.T, createdAt time.Time) *Application {
	t.Helper()
	app, err := NewApplication(id.NewApplicationID(), id.NewUserID(), id.NewParcelID(),
		TypeRegistration, 52500, 1, "", createdAt)
	require.NoError(t, err)
	return app
}

func TestNewApplication(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("starts pending with fee and estimate fixed", func(t *testing.T) {
		app := newPendingApplication(t, now)
		assert.Equal(t, StatusPending, app.Status)
		assert.Equal(t, PaymentPending, app.PaymentStatus)
		assert.Equal(t, int64(52500), app.FeeAmount)
		assert.Equal(t, 30, app.EstimatedDays)
		assert.Nil(t, app.ReviewedBy)
		assert.Nil(t, app.ActualDays)
	})

	t.Run("rejects invalid inputs", func(t *testing.T) {
		_, err := NewApplication(id.NewApplicationID(), id.UserID{}, id.NewParcelID(), TypeTransfer, 100, 1, "", now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		_, err = NewApplication(id.NewApplicationID(), id.NewUserID(), id.ParcelID{}, TypeTransfer, 100, 1, "", now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		_, err = NewApplication(id.NewApplicationID(), id.NewUserID(), id.NewParcelID(), ApplicationType("demolition"), 100, 1, "", now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		_, err = NewApplication(id.NewApplicationID(), id.NewUserID(), id.NewParcelID(), TypeTransfer, 100, 6, "", now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		_, err = NewApplication(id.NewApplicationID(), id.NewUserID(), id.NewParcelID(), TypeTransfer, -1, 1, "", now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from    ApplicationStatus
		to      ApplicationStatus
		allowed bool
	}{
		{StatusPending, StatusUnderReview, true},
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusCancelled, true},
		{StatusUnderReview, StatusApproved, true},
		{StatusUnderReview, StatusRejected, true},
		{StatusUnderReview, StatusCancelled, true},
		{StatusUnderReview, StatusPending, false},
		{StatusApproved, StatusRejected, false},
		{StatusApproved, StatusCancelled, false},
		{StatusRejected, StatusApproved, false},
		{StatusCancelled, StatusUnderReview, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestCanTransitionTo(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("rejects unknown target status", func(t *testing.T) {
		app := newPendingApplication(t, now)
		err := app.CanTransitionTo(ApplicationStatus("archived"))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects any move out of a terminal status", func(t *testing.T) {
		app := newPendingApplication(t, now)
		app.ApplyTransition(StatusCancelled, id.UserID{}, "", now)

		err := app.CanTransitionTo(StatusApproved)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	t.Run("rejects unreachable target", func(t *testing.T) {
		app := newPendingApplication(t, now)
		app.ApplyTransition(StatusUnderReview, id.UserID{}, "", now)

		err := app.CanTransitionTo(StatusPending)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func TestApplyTransition(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("approval records the reviewer", func(t *testing.T) {
		app := newPendingApplication(t, createdAt)
		reviewer := id.NewUserID()
		reviewedAt := createdAt.Add(48 * time.Hour)

		app.ApplyTransition(StatusApproved, reviewer, "all documents verified", reviewedAt)

		assert.Equal(t, StatusApproved, app.Status)
		require.NotNil(t, app.ReviewedBy)
		assert.Equal(t, reviewer, *app.ReviewedBy)
		require.NotNil(t, app.ReviewedAt)
		assert.Equal(t, reviewedAt, *app.ReviewedAt)
		assert.Equal(t, "all documents verified", app.Notes)
	})

	t.Run("cancellation records no reviewer", func(t *testing.T) {
		app := newPendingApplication(t, createdAt)
		app.ApplyTransition(StatusCancelled, id.UserID{}, "", createdAt.Add(time.Hour))

		assert.Nil(t, app.ReviewedBy)
		assert.Nil(t, app.ReviewedAt)
	})

	t.Run("actual days truncate partial days", func(t *testing.T) {
		app := newPendingApplication(t, createdAt)
		// 10 days and 5 hours elapsed counts as 10 days.
		app.ApplyTransition(StatusRejected, id.NewUserID(), "", createdAt.Add(10*24*time.Hour+5*time.Hour))

		require.NotNil(t, app.ActualDays)
		assert.Equal(t, 10, *app.ActualDays)
	})

	t.Run("same-day decision counts zero days", func(t *testing.T) {
		app := newPendingApplication(t, createdAt)
		app.ApplyTransition(StatusApproved, id.NewUserID(), "", createdAt.Add(6*time.Hour))

		require.NotNil(t, app.ActualDays)
		assert.Equal(t, 0, *app.ActualDays)
	})

	t.Run("notes accumulate across transitions", func(t *testing.T) {
		app := newPendingApplication(t, createdAt)
		app.Notes = "submitted with survey map"
		app.ApplyTransition(StatusUnderReview, id.UserID{}, "assigned to surveyor", createdAt.Add(time.Hour))

		assert.Equal(t, "submitted with survey map\nassigned to surveyor", app.Notes)
	})
}

func TestEstimatedProcessingDays(t *testing.T) {
	assert.Equal(t, 30, TypeRegistration.EstimatedProcessingDays())
	assert.Equal(t, 21, TypeTransfer.EstimatedProcessingDays())
	assert.Equal(t, 45, TypeSubdivision.EstimatedProcessingDays())
	assert.Equal(t, 14, TypeMutation.EstimatedProcessingDays())
}

func TestApplyPaymentStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	app := newPendingApplication(t, now)

	require.NoError(t, app.ApplyPaymentStatus(PaymentPaid, now.Add(time.Hour)))
	assert.Equal(t, PaymentPaid, app.PaymentStatus)
	assert.Equal(t, int64(52500), app.FeeAmount, "fee never changes")

	err := app.ApplyPaymentStatus(PaymentStatus("disputed"), now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
