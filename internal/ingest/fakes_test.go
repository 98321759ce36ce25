package ingest

import (
	"context"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/moolen/strato/internal/models"
)

// fakeStore is an in-memory stand-in for the store package, implementing
// TxRunner, ResourceStore, SpecStore and PeriodStore.
type fakeStore struct {
	resources    map[string]*models.Resource
	specs        []models.Spec
	periods      []*fakePeriod
	nextPeriodID int64
}

type fakePeriod struct {
	id           int64
	resourceUUID string
	specID       int64
	startedAt    time.Time
	endedAt      *time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{resources: make(map[string]*models.Resource)}
}

func (f *fakeStore) RunInTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

func (f *fakeStore) GetOrCreate(ctx context.Context, tx *sqlx.Tx, kind models.ResourceKind, uuid, project string, generated time.Time) (*models.Resource, error) {
	res, ok := f.resources[uuid]
	if !ok {
		res = &models.Resource{UUID: uuid, Kind: kind, Project: project, UpdatedAt: generated}
		f.resources[uuid] = res
	}
	// detached copy, like a database read
	return &models.Resource{
		UUID:      res.UUID,
		Kind:      res.Kind,
		Project:   res.Project,
		UpdatedAt: res.UpdatedAt,
		Periods:   f.loadPeriods(uuid),
	}, nil
}

func (f *fakeStore) UpdateWatermark(ctx context.Context, tx *sqlx.Tx, uuid string, t time.Time) error {
	f.resources[uuid].UpdatedAt = t
	return nil
}

func (f *fakeStore) loadPeriods(uuid string) []models.Period {
	var periods []models.Period
	for _, p := range f.periods {
		if p.resourceUUID != uuid {
			continue
		}
		periods = append(periods, models.Period{
			ID:        p.id,
			SpecID:    p.specID,
			Spec:      f.specs[p.specID-1],
			StartedAt: p.startedAt,
			EndedAt:   p.endedAt,
		})
	}
	sort.Slice(periods, func(i, j int) bool {
		return periods[i].StartedAt.Before(periods[j].StartedAt)
	})
	return periods
}

// fakeSpecStore deduplicates specs by attribute equality, ids are 1-based.
type fakeSpecStore struct {
	store *fakeStore
}

func (f *fakeSpecStore) GetOrCreate(ctx context.Context, tx *sqlx.Tx, spec models.Spec) (int64, error) {
	for i, s := range f.store.specs {
		if s.Equal(spec) {
			return int64(i + 1), nil
		}
	}
	f.store.specs = append(f.store.specs, spec)
	return int64(len(f.store.specs)), nil
}

type fakePeriodStore struct {
	store *fakeStore
}

func (f *fakePeriodStore) Insert(ctx context.Context, tx *sqlx.Tx, resourceUUID string, startedAt time.Time, specID int64) (int64, error) {
	f.store.nextPeriodID++
	f.store.periods = append(f.store.periods, &fakePeriod{
		id:           f.store.nextPeriodID,
		resourceUUID: resourceUUID,
		specID:       specID,
		startedAt:    startedAt,
	})
	return f.store.nextPeriodID, nil
}

func (f *fakePeriodStore) Close(ctx context.Context, tx *sqlx.Tx, periodID int64, endedAt time.Time) error {
	for _, p := range f.store.periods {
		if p.id == periodID {
			t := endedAt
			p.endedAt = &t
			return nil
		}
	}
	return nil
}
