package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/moolen/strato/internal/logging"
	"github.com/moolen/strato/internal/models"
)

// ResourceStore manages resource rows keyed by (kind, uuid, project).
type ResourceStore struct {
	logger *logging.Logger
}

const resourceLockQuery = `
SELECT uuid, type, project, updated_at
FROM resource
WHERE type = $1 AND uuid = $2 AND project = $3
FOR UPDATE`

const resourceInsertQuery = `
INSERT INTO resource (uuid, type, project, updated_at)
VALUES ($1, $2, $3, $4)`

const resourceTouchQuery = `
UPDATE resource SET updated_at = $1 WHERE uuid = $2`

type resourceRow struct {
	UUID      string    `db:"uuid"`
	Kind      string    `db:"type"`
	Project   string    `db:"project"`
	UpdatedAt time.Time `db:"updated_at"`
}

// GetOrCreate returns the resource for (kind, uuid, project), creating it
// with updated_at = generated when absent. The row is read with a row-level
// write lock so concurrent ingestion for the same resource serializes; the
// lock is held until the surrounding transaction commits.
//
// A concurrent insert losing the unique-constraint race is recovered locally:
// the speculative insert's savepoint is rolled back and the winner's row is
// re-read under lock.
func (rs *ResourceStore) GetOrCreate(ctx context.Context, tx *sqlx.Tx, kind models.ResourceKind, uuid, project string, generated time.Time) (*models.Resource, error) {
	row, found, err := rs.lock(ctx, tx, kind, uuid, project)
	if err != nil {
		return nil, err
	}

	if !found {
		insertErr := withSavepoint(ctx, tx, "resource_insert", func() error {
			_, err := tx.ExecContext(ctx, resourceInsertQuery, uuid, string(kind), project, generated)
			return err
		})
		switch {
		case insertErr == nil:
			row = resourceRow{UUID: uuid, Kind: string(kind), Project: project, UpdatedAt: generated}
		case isUniqueViolation(insertErr):
			rs.logger.Debug("Lost insert race for resource %s, re-reading", uuid)
			row, found, err = rs.lock(ctx, tx, kind, uuid, project)
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, NewStoreError("resource vanished after insert conflict", nil)
			}
		default:
			return nil, insertErr
		}
	}

	periods, err := loadPeriods(ctx, tx, row.UUID)
	if err != nil {
		return nil, err
	}

	return &models.Resource{
		UUID:      row.UUID,
		Kind:      models.ResourceKind(row.Kind),
		Project:   row.Project,
		UpdatedAt: row.UpdatedAt,
		Periods:   periods,
	}, nil
}

// UpdateWatermark advances the resource's event-time watermark. Committed
// before period mutation so racing stale events are rejected everywhere.
func (rs *ResourceStore) UpdateWatermark(ctx context.Context, tx *sqlx.Tx, uuid string, t time.Time) error {
	if _, err := tx.ExecContext(ctx, resourceTouchQuery, t, uuid); err != nil {
		return NewStoreError("failed to update resource watermark", err)
	}
	return nil
}

func (rs *ResourceStore) lock(ctx context.Context, tx *sqlx.Tx, kind models.ResourceKind, uuid, project string) (resourceRow, bool, error) {
	var row resourceRow
	err := tx.GetContext(ctx, &row, resourceLockQuery, string(kind), uuid, project)
	if errors.Is(err, sql.ErrNoRows) {
		return resourceRow{}, false, nil
	}
	if err != nil {
		return resourceRow{}, false, NewStoreError("failed to lock resource row", err)
	}
	return row, true, nil
}
