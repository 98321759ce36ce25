package store

import (
	"context"
	"time"

	"github.com/moolen/strato/internal/models"
)

const resourceRangeQuery = `
SELECT DISTINCT r.uuid, r.type, r.project, r.updated_at
FROM resource r
JOIN period p ON p.resource_uuid = r.uuid
WHERE p.started_at <= $1
  AND (p.ended_at IS NULL OR p.ended_at >= $2)`

const resourceRangeProjectFilter = `
  AND r.project = $3`

// GetAllByTimeRange returns resources having at least one period that
// intersects [start, end], with project as an optional filter. Each
// resource's periods are clamped to the window and periods left with no
// positive duration are dropped.
//
// The returned values are detached: clamping happens on plain structs and
// never writes back.
func (s *Store) GetAllByTimeRange(ctx context.Context, start, end time.Time, project string) ([]models.Resource, error) {
	query := resourceRangeQuery
	args := []interface{}{models.EpochMillis(end), models.EpochMillis(start)}
	if project != "" {
		query += resourceRangeProjectFilter
		args = append(args, project)
	}

	var rows []resourceRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, NewStoreError("failed to query resources by time range", err)
	}

	resources := make([]models.Resource, 0, len(rows))
	for _, row := range rows {
		periods, err := loadPeriods(ctx, s.db, row.UUID)
		if err != nil {
			return nil, err
		}
		resources = append(resources, models.Resource{
			UUID:      row.UUID,
			Kind:      models.ResourceKind(row.Kind),
			Project:   row.Project,
			UpdatedAt: row.UpdatedAt,
			Periods:   clampPeriods(periods, start, end),
		})
	}
	return resources, nil
}

// clampPeriods intersects each period with [start, end] and drops periods
// whose clamped duration is not positive. Input is already sorted by
// started_at ascending.
func clampPeriods(periods []models.Period, start, end time.Time) []models.Period {
	clamped := make([]models.Period, 0, len(periods))
	for _, p := range periods {
		if p.StartedAt.Before(start) {
			p.StartedAt = start
		}
		if p.EndedAt == nil || p.EndedAt.After(end) {
			endedAt := end
			p.EndedAt = &endedAt
		}
		if !p.EndedAt.After(p.StartedAt) {
			continue
		}
		clamped = append(clamped, p)
	}
	return clamped
}
