package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

// pgUniqueViolation is the PostgreSQL error code for a unique-constraint
// violation.
const pgUniqueViolation = "23505"

// withSavepoint runs fn inside a savepoint so a failed speculative insert
// can be rolled back without aborting the outer transaction. This is the
// recovery mechanism for get-or-create races: a concurrent writer winning
// the insert surfaces as a unique violation, the savepoint is rolled back,
// and the caller re-reads the row the winner created.
func withSavepoint(ctx context.Context, tx *sqlx.Tx, name string, fn func() error) error {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return NewStoreError("failed to create savepoint "+name, err)
	}

	if err := fn(); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return NewStoreError("failed to roll back savepoint "+name, rbErr)
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return NewStoreError("failed to release savepoint "+name, err)
	}
	return nil
}

// isUniqueViolation reports whether err is a unique-constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
