package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/moolen/strato/internal/logging"
	"github.com/moolen/strato/internal/models"
)

// PeriodStore manages period rows. Period endpoints persist as milliseconds
// since epoch.
type PeriodStore struct {
	logger *logging.Logger
}

const periodInsertQuery = `
INSERT INTO period (resource_uuid, started_at, ended_at, spec_id)
VALUES ($1, $2, NULL, $3)
RETURNING id`

const periodCloseQuery = `
UPDATE period SET ended_at = $1 WHERE id = $2`

const periodSelectQuery = `
SELECT p.id, p.started_at, p.ended_at, p.spec_id,
       s.type AS spec_type,
       si.instance_type, si.state AS instance_state,
       sv.volume_type, sv.volume_size, sv.state AS volume_state
FROM period p
JOIN spec s ON s.id = p.spec_id
LEFT JOIN spec_instance si ON si.id = s.id
LEFT JOIN spec_volume sv ON sv.id = s.id
WHERE p.resource_uuid = $1
ORDER BY p.started_at ASC`

// Insert opens a new period for the resource under the given spec.
func (ps *PeriodStore) Insert(ctx context.Context, tx *sqlx.Tx, resourceUUID string, startedAt time.Time, specID int64) (int64, error) {
	var id int64
	err := tx.GetContext(ctx, &id, periodInsertQuery, resourceUUID, models.EpochMillis(startedAt), specID)
	if err != nil {
		return 0, NewStoreError("failed to insert period", err)
	}
	return id, nil
}

// Close sets the period's end, closing it.
func (ps *PeriodStore) Close(ctx context.Context, tx *sqlx.Tx, periodID int64, endedAt time.Time) error {
	if _, err := tx.ExecContext(ctx, periodCloseQuery, models.EpochMillis(endedAt), periodID); err != nil {
		return NewStoreError("failed to close period", err)
	}
	return nil
}

type periodRow struct {
	ID            int64          `db:"id"`
	StartedAt     int64          `db:"started_at"`
	EndedAt       sql.NullInt64  `db:"ended_at"`
	SpecID        int64          `db:"spec_id"`
	SpecType      string         `db:"spec_type"`
	InstanceType  sql.NullString `db:"instance_type"`
	InstanceState sql.NullString `db:"instance_state"`
	VolumeType    sql.NullString `db:"volume_type"`
	VolumeSize    sql.NullInt64  `db:"volume_size"`
	VolumeState   sql.NullString `db:"volume_state"`
}

// loadPeriods reads all periods of a resource with their spec attributes,
// sorted by start ascending. Works against either a transaction or the
// plain handle.
func loadPeriods(ctx context.Context, q sqlx.QueryerContext, resourceUUID string) ([]models.Period, error) {
	var rows []periodRow
	if err := sqlx.SelectContext(ctx, q, &rows, periodSelectQuery, resourceUUID); err != nil {
		return nil, NewStoreError("failed to load periods", err)
	}

	periods := make([]models.Period, 0, len(rows))
	for _, row := range rows {
		period := models.Period{
			ID:        row.ID,
			SpecID:    row.SpecID,
			StartedAt: models.FromEpochMillis(row.StartedAt),
		}
		if row.EndedAt.Valid {
			endedAt := models.FromEpochMillis(row.EndedAt.Int64)
			period.EndedAt = &endedAt
		}
		switch models.ResourceKind(row.SpecType) {
		case models.KindInstance:
			period.Spec = models.InstanceSpec{
				InstanceType: row.InstanceType.String,
				State:        row.InstanceState.String,
			}
		case models.KindVolume:
			period.Spec = models.VolumeSpec{
				VolumeType: row.VolumeType.String,
				VolumeSize: row.VolumeSize.Int64,
				State:      row.VolumeState.String,
			}
		default:
			return nil, NewStoreError("unknown spec variant "+row.SpecType, nil)
		}
		periods = append(periods, period)
	}
	return periods, nil
}
