package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/strato/internal/models"
)

func TestClampPeriodsIntersectsWindow(t *testing.T) {
	t0 := time.Date(2020, 6, 7, 0, 0, 0, 0, time.UTC)
	windowStart := t0.Add(30 * time.Minute)
	windowEnd := t0.Add(90 * time.Minute)
	ended := t0.Add(2 * time.Hour)

	clamped := clampPeriods([]models.Period{
		{StartedAt: t0, EndedAt: &ended},
	}, windowStart, windowEnd)

	require.Len(t, clamped, 1)
	assert.True(t, clamped[0].StartedAt.Equal(windowStart))
	assert.True(t, clamped[0].EndedAt.Equal(windowEnd))
	assert.Equal(t, float64(3600), clamped[0].Seconds())
}

func TestClampPeriodsFillsOpenEnd(t *testing.T) {
	t0 := time.Date(2020, 6, 7, 0, 0, 0, 0, time.UTC)
	windowEnd := t0.Add(time.Hour)

	clamped := clampPeriods([]models.Period{
		{StartedAt: t0},
	}, t0, windowEnd)

	require.Len(t, clamped, 1)
	require.NotNil(t, clamped[0].EndedAt)
	assert.True(t, clamped[0].EndedAt.Equal(windowEnd))
}

func TestClampPeriodsDropsNonPositive(t *testing.T) {
	t0 := time.Date(2020, 6, 7, 0, 0, 0, 0, time.UTC)
	windowStart := t0.Add(2 * time.Hour)
	windowEnd := t0.Add(3 * time.Hour)
	endedBefore := t0.Add(time.Hour)
	endedAtBoundary := windowStart

	clamped := clampPeriods([]models.Period{
		{StartedAt: t0, EndedAt: &endedBefore},
		{StartedAt: t0, EndedAt: &endedAtBoundary},
	}, windowStart, windowEnd)

	assert.Empty(t, clamped)
}

func TestClampPeriodsKeepsOrdering(t *testing.T) {
	t0 := time.Date(2020, 6, 7, 0, 0, 0, 0, time.UTC)
	e1 := t0.Add(time.Hour)
	e2 := t0.Add(2 * time.Hour)

	clamped := clampPeriods([]models.Period{
		{StartedAt: t0, EndedAt: &e1},
		{StartedAt: e1, EndedAt: &e2},
	}, t0, e2)

	require.Len(t, clamped, 2)
	assert.True(t, clamped[0].StartedAt.Before(clamped[1].StartedAt))
}

func TestGetAllByTimeRange(t *testing.T) {
	s, mock := newMockStore(t)

	t0 := time.Date(2020, 6, 7, 0, 0, 0, 0, time.UTC)
	windowStart := t0.Add(30 * time.Minute)
	windowEnd := t0.Add(90 * time.Minute)

	mock.ExpectQuery("SELECT DISTINCT").
		WithArgs(windowEnd.UnixMilli(), windowStart.UnixMilli()).
		WillReturnRows(sqlmock.NewRows([]string{"uuid", "type", "project", "updated_at"}).
			AddRow("fake-uuid", string(models.KindInstance), "fake-project", t0))
	mock.ExpectQuery("FROM period").
		WithArgs("fake-uuid").
		WillReturnRows(emptyPeriodRows().
			AddRow(int64(1), t0.UnixMilli(), t0.Add(2*time.Hour).UnixMilli(), int64(3),
				string(models.KindInstance), "v1-standard-1", "ACTIVE", nil, nil, nil))

	resources, err := s.GetAllByTimeRange(context.Background(), windowStart, windowEnd, "")
	require.NoError(t, err)
	require.Len(t, resources, 1)
	require.Len(t, resources[0].Periods, 1)
	assert.True(t, resources[0].Periods[0].StartedAt.Equal(windowStart))
	assert.True(t, resources[0].Periods[0].EndedAt.Equal(windowEnd))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAllByTimeRangeProjectFilter(t *testing.T) {
	s, mock := newMockStore(t)

	start := time.Date(2020, 6, 7, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	mock.ExpectQuery("SELECT DISTINCT").
		WithArgs(end.UnixMilli(), start.UnixMilli(), "fake-project").
		WillReturnRows(sqlmock.NewRows([]string{"uuid", "type", "project", "updated_at"}))

	resources, err := s.GetAllByTimeRange(context.Background(), start, end, "fake-project")
	require.NoError(t, err)
	assert.Empty(t, resources)
	assert.NoError(t, mock.ExpectationsWereMet())
}
