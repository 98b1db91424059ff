package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"landregistry/internal/parcel/models"
	id "landregistry/pkg/domain"
	"landregistry/pkg/platform/sentinel"
	txcontext "landregistry/pkg/platform/tx"
)

// PostgresStore persists parcels. All statements join the caller's
// transaction when one is carried in the context.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// dbConn is the subset of *sql.DB and *sql.Tx the store needs.
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

const parcelColumns = `id, parcel_number, location, area_hectares, land_type, status, market_value, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, parcel *models.Parcel) error {
	query := `
		INSERT INTO parcels (` + parcelColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.conn(ctx).ExecContext(ctx, query,
		uuid.UUID(parcel.ID),
		parcel.ParcelNumber,
		parcel.Location,
		parcel.AreaHectares,
		string(parcel.LandType),
		string(parcel.Status),
		parcel.MarketValue,
		parcel.CreatedAt,
		parcel.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("parcel number %s: %w", parcel.ParcelNumber, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert parcel: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, parcelID id.ParcelID) (*models.Parcel, error) {
	query := `SELECT ` + parcelColumns + ` FROM parcels WHERE id = $1`
	return s.scanOne(s.conn(ctx).QueryRowContext(ctx, query, uuid.UUID(parcelID)))
}

func (s *PostgresStore) FindByNumber(ctx context.Context, number string) (*models.Parcel, error) {
	query := `SELECT ` + parcelColumns + ` FROM parcels WHERE parcel_number = $1`
	return s.scanOne(s.conn(ctx).QueryRowContext(ctx, query, number))
}

// FindByIDForUpdate loads the parcel and takes a row-level lock for the
// duration of the enclosing transaction. This is the chosen strategy for the
// one-approved-application-per-parcel race: the approval path locks the
// parcel row before re-checking the approved count.
func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, parcelID id.ParcelID) (*models.Parcel, error) {
	if _, ok := txcontext.From(ctx); !ok {
		return nil, fmt.Errorf("FindByIDForUpdate requires a transaction: %w", sentinel.ErrInvalidState)
	}
	query := `SELECT ` + parcelColumns + ` FROM parcels WHERE id = $1 FOR UPDATE`
	return s.scanOne(s.conn(ctx).QueryRowContext(ctx, query, uuid.UUID(parcelID)))
}

func (s *PostgresStore) Update(ctx context.Context, parcel *models.Parcel) error {
	query := `
		UPDATE parcels
		SET status = $2, market_value = $3, updated_at = $4
		WHERE id = $1
	`
	result, err := s.conn(ctx).ExecContext(ctx, query,
		uuid.UUID(parcel.ID),
		string(parcel.Status),
		parcel.MarketValue,
		parcel.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update parcel: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update parcel: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[models.ParcelStatus]int, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT status, COUNT(*) FROM parcels GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count parcels: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.ParcelStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan parcel count: %w", err)
		}
		counts[models.ParcelStatus(status)] = count
	}
	return counts, rows.Err()
}

func (s *PostgresStore) scanOne(row *sql.Row) (*models.Parcel, error) {
	var (
		parcel   models.Parcel
		parcelID uuid.UUID
		landType string
		status   string
	)
	err := row.Scan(
		&parcelID,
		&parcel.ParcelNumber,
		&parcel.Location,
		&parcel.AreaHectares,
		&landType,
		&status,
		&parcel.MarketValue,
		&parcel.CreatedAt,
		&parcel.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan parcel: %w", err)
	}
	parcel.ID = id.ParcelID(parcelID)
	parcel.LandType = models.LandType(landType)
	parcel.Status = models.ParcelStatus(status)
	return &parcel, nil
}

// isUniqueViolation reports whether err is a postgres unique_violation
// (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
