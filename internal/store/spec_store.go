package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/moolen/strato/internal/logging"
	"github.com/moolen/strato/internal/models"
)

// SpecStore manages immutable spec rows, deduplicated by their full
// attribute tuple. Every variant has a subtable carrying a uniqueness
// constraint over its attribute columns.
type SpecStore struct {
	logger *logging.Logger
}

const specInstanceSelectQuery = `
SELECT s.id
FROM spec s
JOIN spec_instance si ON si.id = s.id
WHERE si.instance_type = $1 AND si.state = $2`

const specVolumeSelectQuery = `
SELECT s.id
FROM spec s
JOIN spec_volume sv ON sv.id = s.id
WHERE sv.volume_type = $1 AND sv.volume_size = $2 AND sv.state = $3`

const specInsertQuery = `
INSERT INTO spec (type) VALUES ($1) RETURNING id`

const specInstanceInsertQuery = `
INSERT INTO spec_instance (id, instance_type, state) VALUES ($1, $2, $3)`

const specVolumeInsertQuery = `
INSERT INTO spec_volume (id, volume_type, volume_size, state) VALUES ($1, $2, $3, $4)`

// GetOrCreate resolves the spec row for the given attribute tuple, inserting
// it when absent. Two calls with equal tuples always return the same row id.
//
// A lost insert race rolls back to the savepoint and re-reads; the re-read
// must yield exactly one row, anything else indicates a corrupt index and
// becomes a StoreError.
func (ss *SpecStore) GetOrCreate(ctx context.Context, tx *sqlx.Tx, spec models.Spec) (int64, error) {
	ids, err := ss.find(ctx, tx, spec)
	if err != nil {
		return 0, err
	}
	if len(ids) == 1 {
		return ids[0], nil
	}
	if len(ids) > 1 {
		return 0, NewStoreError(fmt.Sprintf("found %d spec rows for one attribute tuple", len(ids)), nil)
	}

	var newID int64
	insertErr := withSavepoint(ctx, tx, "spec_insert", func() error {
		return ss.insert(ctx, tx, spec, &newID)
	})
	if insertErr == nil {
		return newID, nil
	}
	if !isUniqueViolation(insertErr) {
		return 0, insertErr
	}

	ss.logger.Debug("Lost insert race for %s spec, re-reading", spec.Kind())
	ids, err = ss.find(ctx, tx, spec)
	if err != nil {
		return 0, err
	}
	if len(ids) != 1 {
		return 0, NewStoreError(fmt.Sprintf("spec re-read after conflict returned %d rows", len(ids)), nil)
	}
	return ids[0], nil
}

func (ss *SpecStore) find(ctx context.Context, tx *sqlx.Tx, spec models.Spec) ([]int64, error) {
	var (
		ids []int64
		err error
	)
	switch s := spec.(type) {
	case models.InstanceSpec:
		err = tx.SelectContext(ctx, &ids, specInstanceSelectQuery, s.InstanceType, s.State)
	case models.VolumeSpec:
		err = tx.SelectContext(ctx, &ids, specVolumeSelectQuery, s.VolumeType, s.VolumeSize, s.State)
	default:
		return nil, NewStoreError(fmt.Sprintf("unknown spec variant %T", spec), nil)
	}
	if err != nil {
		return nil, NewStoreError("failed to query spec", err)
	}
	return ids, nil
}

func (ss *SpecStore) insert(ctx context.Context, tx *sqlx.Tx, spec models.Spec, id *int64) error {
	if err := tx.GetContext(ctx, id, specInsertQuery, string(spec.Kind())); err != nil {
		return err
	}
	switch s := spec.(type) {
	case models.InstanceSpec:
		_, err := tx.ExecContext(ctx, specInstanceInsertQuery, *id, s.InstanceType, s.State)
		return err
	case models.VolumeSpec:
		_, err := tx.ExecContext(ctx, specVolumeInsertQuery, *id, s.VolumeType, s.VolumeSize, s.State)
		return err
	default:
		return NewStoreError(fmt.Sprintf("unknown spec variant %T", spec), nil)
	}
}
