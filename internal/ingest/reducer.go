package ingest

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/moolen/strato/internal/logging"
	"github.com/moolen/strato/internal/models"
)

// SpecStore resolves spec attribute tuples to their row ids.
type SpecStore interface {
	GetOrCreate(ctx context.Context, tx *sqlx.Tx, spec models.Spec) (int64, error)
}

// PeriodStore mutates the period timeline of a resource.
type PeriodStore interface {
	Insert(ctx context.Context, tx *sqlx.Tx, resourceUUID string, startedAt time.Time, specID int64) (int64, error)
	Close(ctx context.Context, tx *sqlx.Tx, periodID int64, endedAt time.Time) error
}

// Reducer folds a single event into a resource's period timeline. It runs
// inside the caller's transaction, with the resource row already locked.
type Reducer struct {
	specs   SpecStore
	periods PeriodStore
	logger  *logging.Logger
}

// NewReducer creates a reducer over the given stores.
func NewReducer(specs SpecStore, periods PeriodStore) *Reducer {
	return &Reducer{
		specs:   specs,
		periods: periods,
		logger:  logging.GetLogger("ingest.reducer"),
	}
}

// Apply mutates the resource's timeline for one event:
//
//   - events matching the kind's ignore predicate are skipped
//   - a resource without periods bootstraps its first period from the
//     event's creation timestamp
//   - a deleted_at trait closes the open period at that timestamp
//   - a changed spec closes the open period at event time and opens a new
//     one at the same instant, keeping the timeline contiguous
//   - otherwise the event is a no-op
//
// An event hitting a resource whose timeline is already closed is rejected
// as stale: after deletion only newer-than-watermark events arrive, and
// none of them may reopen the timeline.
func (r *Reducer) Apply(ctx context.Context, tx *sqlx.Tx, res *models.Resource, ev *models.Event, handler *models.KindHandler) error {
	if handler.IsEventIgnored(ev) {
		return &models.IgnoredEventError{Reason: ev.EventType + " carries no usable lifecycle change"}
	}

	spec, err := handler.NewSpec(ev.Traits)
	if err != nil {
		return err
	}
	specID, err := r.specs.GetOrCreate(ctx, tx, spec)
	if err != nil {
		return err
	}

	var current *models.Period
	if len(res.Periods) == 0 {
		startedAt, ok := bootstrapStart(ev)
		if !ok {
			return &models.IgnoredEventError{Reason: ev.EventType + " carries no creation timestamp"}
		}
		id, err := r.periods.Insert(ctx, tx, res.UUID, startedAt, specID)
		if err != nil {
			return err
		}
		r.logger.DebugWithFields("Opened first period",
			logging.Field("resource", res.UUID),
			logging.Field("started_at", startedAt),
		)
		current = &models.Period{ID: id, SpecID: specID, Spec: spec, StartedAt: startedAt}
	} else {
		current, err = res.OpenPeriod()
		if err != nil {
			return err
		}
		if current == nil {
			return &models.EventTooOldError{UUID: res.UUID, Generated: ev.Generated, Watermark: res.UpdatedAt}
		}
	}

	if deletedAt, ok := ev.Traits.Time(models.TraitDeletedAt); ok {
		r.logger.DebugWithFields("Closing period on deletion",
			logging.Field("resource", res.UUID),
			logging.Field("ended_at", deletedAt),
		)
		return r.periods.Close(ctx, tx, current.ID, deletedAt)
	}

	if current.SpecID != specID {
		if err := r.periods.Close(ctx, tx, current.ID, ev.Generated); err != nil {
			return err
		}
		if _, err := r.periods.Insert(ctx, tx, res.UUID, ev.Generated, specID); err != nil {
			return err
		}
		r.logger.DebugWithFields("Split period on spec change",
			logging.Field("resource", res.UUID),
			logging.Field("at", ev.Generated),
		)
	}
	return nil
}

// bootstrapStart picks the first period's start: created_at when present,
// launched_at otherwise.
func bootstrapStart(ev *models.Event) (time.Time, bool) {
	if t, ok := ev.Traits.Time(models.TraitCreatedAt); ok {
		return t, true
	}
	return ev.Traits.Time(models.TraitLaunchedAt)
}
