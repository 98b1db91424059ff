package tx

import (
	"context"
	"database/sql"
	"time"

	dErrors "landregistry/pkg/domain-errors"
)

const defaultTimeout = 5 * time.Second

// PostgresCoordinator runs units of work inside one SQL transaction. It
// stashes the transaction in the context, so every store called within the
// unit of work joins it: parcel, application, certificate and audit writes
// commit or roll back together.
type PostgresCoordinator struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgresCoordinator(db *sql.DB, timeout time.Duration) *PostgresCoordinator {
	return &PostgresCoordinator{db: db, timeout: timeout}
}

func (c *PostgresCoordinator) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := c.timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sqlTx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to begin transaction")
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		if ctx.Err() != nil {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: deadline exceeded")
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit transaction")
	}
	return nil
}
