package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"landregistry/internal/application/models"
	id "landregistry/pkg/domain"
	"landregistry/pkg/platform/sentinel"
	txcontext "landregistry/pkg/platform/tx"
)

// PostgresStore persists applications. Two partial unique indexes back the
// workflow invariants at commit time:
//   - applications_one_open_per_pair: at most one pending/under_review
//     application per (applicant, parcel)
//   - applications_one_approved_per_parcel: at most one approved application
//     per parcel
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) conn(ctx context.Context) dbConn {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const applicationColumns = `id, applicant_id, parcel_id, application_type, status, fee_amount,
	payment_status, priority, notes, reviewed_by, reviewed_at, estimated_days, actual_days,
	created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, app *models.Application) error {
	query := `
		INSERT INTO applications (` + applicationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := s.conn(ctx).ExecContext(ctx, query,
		uuid.UUID(app.ID),
		uuid.UUID(app.ApplicantID),
		uuid.UUID(app.ParcelID),
		string(app.Type),
		string(app.Status),
		app.FeeAmount,
		string(app.PaymentStatus),
		app.Priority,
		app.Notes,
		nullableUUID((*uuid.UUID)(app.ReviewedBy)),
		app.ReviewedAt,
		app.EstimatedDays,
		app.ActualDays,
		app.CreatedAt,
		app.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("open application for applicant %s on parcel %s: %w",
				app.ApplicantID, app.ParcelID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`
	return s.scanOne(s.conn(ctx).QueryRowContext(ctx, query, uuid.UUID(appID)))
}

// FindByIDForUpdate loads the application under a row lock so concurrent
// transitions on the same application serialize.
func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	if _, ok := txcontext.From(ctx); !ok {
		return nil, fmt.Errorf("FindByIDForUpdate requires a transaction: %w", sentinel.ErrInvalidState)
	}
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1 FOR UPDATE`
	return s.scanOne(s.conn(ctx).QueryRowContext(ctx, query, uuid.UUID(appID)))
}

func (s *PostgresStore) Update(ctx context.Context, app *models.Application) error {
	query := `
		UPDATE applications
		SET status = $2, payment_status = $3, notes = $4, reviewed_by = $5,
			reviewed_at = $6, actual_days = $7, updated_at = $8
		WHERE id = $1
	`
	result, err := s.conn(ctx).ExecContext(ctx, query,
		uuid.UUID(app.ID),
		string(app.Status),
		string(app.PaymentStatus),
		app.Notes,
		nullableUUID((*uuid.UUID)(app.ReviewedBy)),
		app.ReviewedAt,
		app.ActualDays,
		app.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("approved application already exists for parcel %s: %w",
				app.ParcelID, sentinel.ErrConflict)
		}
		return fmt.Errorf("update application: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// CountOpenByApplicantAndParcel returns how many pending/under_review
// applications the applicant holds on the parcel.
func (s *PostgresStore) CountOpenByApplicantAndParcel(ctx context.Context, applicant id.UserID, parcel id.ParcelID) (int, error) {
	query := `
		SELECT COUNT(*) FROM applications
		WHERE applicant_id = $1 AND parcel_id = $2 AND status IN ('pending', 'under_review')
	`
	var count int
	err := s.conn(ctx).QueryRowContext(ctx, query, uuid.UUID(applicant), uuid.UUID(parcel)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count open applications: %w", err)
	}
	return count, nil
}

// CountApprovedByParcel returns how many approved applications exist for the
// parcel. Only meaningful inside the approval transaction, after the parcel
// row lock has been taken.
func (s *PostgresStore) CountApprovedByParcel(ctx context.Context, parcel id.ParcelID) (int, error) {
	query := `SELECT COUNT(*) FROM applications WHERE parcel_id = $1 AND status = 'approved'`
	var count int
	err := s.conn(ctx).QueryRowContext(ctx, query, uuid.UUID(parcel)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count approved applications: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ListByApplicant(ctx context.Context, applicant id.UserID) ([]*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE applicant_id = $1 ORDER BY created_at DESC`
	rows, err := s.conn(ctx).QueryContext(ctx, query, uuid.UUID(applicant))
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var apps []*models.Application
	for rows.Next() {
		app, err := s.scanRow(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[models.ApplicationStatus]int, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT status, COUNT(*) FROM applications GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count applications: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.ApplicationStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan application count: %w", err)
		}
		counts[models.ApplicationStatus(status)] = count
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanOne(row *sql.Row) (*models.Application, error) {
	app, err := s.scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return app, err
}

func (s *PostgresStore) scanRow(row rowScanner) (*models.Application, error) {
	var (
		app         models.Application
		appID       uuid.UUID
		applicantID uuid.UUID
		parcelID    uuid.UUID
		appType     string
		status      string
		payment     string
		reviewedBy  *uuid.UUID
	)
	err := row.Scan(
		&appID,
		&applicantID,
		&parcelID,
		&appType,
		&status,
		&app.FeeAmount,
		&payment,
		&app.Priority,
		&app.Notes,
		&reviewedBy,
		&app.ReviewedAt,
		&app.EstimatedDays,
		&app.ActualDays,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan application: %w", err)
	}
	app.ID = id.ApplicationID(appID)
	app.ApplicantID = id.UserID(applicantID)
	app.ParcelID = id.ParcelID(parcelID)
	app.Type = models.ApplicationType(appType)
	app.Status = models.ApplicationStatus(status)
	app.PaymentStatus = models.PaymentStatus(payment)
	if reviewedBy != nil {
		rev := id.UserID(*reviewedBy)
		app.ReviewedBy = &rev
	}
	return &app, nil
}

func nullableUUID(u *uuid.UUID) any {
	if u == nil {
		return nil
	}
	return *u
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
