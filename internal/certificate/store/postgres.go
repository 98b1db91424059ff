package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"landregistry/internal/certificate/models"
	id "landregistry/pkg/domain"
	"landregistry/pkg/platform/sentinel"
	txcontext "landregistry/pkg/platform/tx"
)

// PostgresStore persists certificates. Unique constraints on
// certificate_number, verification_code and application_id back the 1:1 and
// uniqueness invariants at commit time.
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

const certificateColumns = `id, certificate_number, parcel_id, application_id, issued_by, issued_at,
	expires_at, status, integrity_hash, verification_code, revoked_by, revoked_at, revocation_reason`

func (s *PostgresStore) Create(ctx context.Context, cert *models.Certificate) error {
	query := `
		INSERT INTO certificates (` + certificateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	var reason *string
	if cert.RevocationReason != "" {
		reason = &cert.RevocationReason
	}
	_, err := s.conn(ctx).ExecContext(ctx, query,
		uuid.UUID(cert.ID),
		cert.CertificateNumber,
		uuid.UUID(cert.ParcelID),
		uuid.UUID(cert.ApplicationID),
		uuid.UUID(cert.IssuedBy),
		cert.IssuedAt,
		cert.ExpiresAt,
		string(cert.Status),
		cert.IntegrityHash,
		cert.VerificationCode,
		nullableUUID((*uuid.UUID)(cert.RevokedBy)),
		cert.RevokedAt,
		reason,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("certificate for application %s: %w", cert.ApplicationID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, certID id.CertificateID) (*models.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE id = $1`
	return s.scanOne(s.conn(ctx).QueryRowContext(ctx, query, uuid.UUID(certID)))
}

// FindByIDForUpdate loads the certificate under a row lock so concurrent
// revocations serialize.
func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, certID id.CertificateID) (*models.Certificate, error) {
	if _, ok := txcontext.From(ctx); !ok {
		return nil, fmt.Errorf("FindByIDForUpdate requires a transaction: %w", sentinel.ErrInvalidState)
	}
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE id = $1 FOR UPDATE`
	return s.scanOne(s.conn(ctx).QueryRowContext(ctx, query, uuid.UUID(certID)))
}

func (s *PostgresStore) FindByNumber(ctx context.Context, number string) (*models.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE certificate_number = $1`
	return s.scanOne(s.conn(ctx).QueryRowContext(ctx, query, number))
}

func (s *PostgresStore) FindByApplication(ctx context.Context, appID id.ApplicationID) (*models.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE application_id = $1`
	return s.scanOne(s.conn(ctx).QueryRowContext(ctx, query, uuid.UUID(appID)))
}

func (s *PostgresStore) Update(ctx context.Context, cert *models.Certificate) error {
	query := `
		UPDATE certificates
		SET status = $2, revoked_by = $3, revoked_at = $4, revocation_reason = $5
		WHERE id = $1
	`
	var reason *string
	if cert.RevocationReason != "" {
		reason = &cert.RevocationReason
	}
	result, err := s.conn(ctx).ExecContext(ctx, query,
		uuid.UUID(cert.ID),
		string(cert.Status),
		nullableUUID((*uuid.UUID)(cert.RevokedBy)),
		cert.RevokedAt,
		reason,
	)
	if err != nil {
		return fmt.Errorf("update certificate: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update certificate: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[models.CertificateStatus]int, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT status, COUNT(*) FROM certificates GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count certificates: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.CertificateStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan certificate count: %w", err)
		}
		counts[models.CertificateStatus(status)] = count
	}
	return counts, rows.Err()
}

func (s *PostgresStore) scanOne(row *sql.Row) (*models.Certificate, error) {
	var (
		cert      models.Certificate
		certID    uuid.UUID
		parcelID  uuid.UUID
		appID     uuid.UUID
		issuedBy  uuid.UUID
		status    string
		revokedBy *uuid.UUID
		reason    *string
	)
	err := row.Scan(
		&certID,
		&cert.CertificateNumber,
		&parcelID,
		&appID,
		&issuedBy,
		&cert.IssuedAt,
		&cert.ExpiresAt,
		&status,
		&cert.IntegrityHash,
		&cert.VerificationCode,
		&revokedBy,
		&cert.RevokedAt,
		&reason,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan certificate: %w", err)
	}
	cert.ID = id.CertificateID(certID)
	cert.ParcelID = id.ParcelID(parcelID)
	cert.ApplicationID = id.ApplicationID(appID)
	cert.IssuedBy = id.UserID(issuedBy)
	cert.Status = models.CertificateStatus(status)
	if revokedBy != nil {
		rev := id.UserID(*revokedBy)
		cert.RevokedBy = &rev
	}
	if reason != nil {
		cert.RevocationReason = *reason
	}
	return &cert, nil
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
