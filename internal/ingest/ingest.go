// Package ingest turns raw event batches into period timeline mutations. It
// normalizes and classifies each event, guards the per-resource event-time
// watermark and delegates the timeline change to the reducer.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/moolen/strato/internal/logging"
	"github.com/moolen/strato/internal/models"
)

// TxRunner executes a function inside one database transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

// ResourceStore resolves resource identities under a row-level lock.
type ResourceStore interface {
	GetOrCreate(ctx context.Context, tx *sqlx.Tx, kind models.ResourceKind, uuid, project string, generated time.Time) (*models.Resource, error)
	UpdateWatermark(ctx context.Context, tx *sqlx.Tx, uuid string, t time.Time) error
}

// Ingestor processes event batches. Each event runs two transactions: the
// first advances the watermark, the second mutates the timeline. The
// watermark commit happens first so a crash between the two can only lose a
// period mutation, never admit a stale event later.
type Ingestor struct {
	tx        TxRunner
	resources ResourceStore
	reducer   *Reducer
	metrics   *Metrics
	logger    *logging.Logger
}

// New creates an ingestor over the given stores, registering its metrics
// with reg.
func New(tx TxRunner, resources ResourceStore, specs SpecStore, periods PeriodStore, reg prometheus.Registerer) *Ingestor {
	return &Ingestor{
		tx:        tx,
		resources: resources,
		reducer:   NewReducer(specs, periods),
		metrics:   NewMetrics(reg),
		logger:    logging.GetLogger("ingest"),
	}
}

// ProcessBatch applies the batch in order and stops at the first event that
// does not apply cleanly. Events before the failing one stay applied; events
// after it are skipped and the caller is expected to resubmit them.
func (i *Ingestor) ProcessBatch(ctx context.Context, wireEvents []models.WireEvent) error {
	// batch id correlates the log lines of one submission
	logger := i.logger.WithField("batch", uuid.NewString())
	for idx := range wireEvents {
		if err := i.processOne(ctx, &wireEvents[idx]); err != nil {
			if skipped := len(wireEvents) - idx - 1; skipped > 0 {
				logger.WarnWithFields("Stopping batch",
					logging.Field("applied", idx),
					logging.Field("skipped", skipped),
					logging.Field("reason", err.Error()),
				)
			}
			i.metrics.BatchesTotal.WithLabelValues("stopped").Inc()
			return err
		}
	}
	logger.DebugWithFields("Batch applied", logging.Field("events", len(wireEvents)))
	i.metrics.BatchesTotal.WithLabelValues("applied").Inc()
	return nil
}

func (i *Ingestor) processOne(ctx context.Context, w *models.WireEvent) error {
	err := i.applyOne(ctx, w)
	i.metrics.EventsTotal.WithLabelValues(outcomeLabel(err)).Inc()
	return err
}

func (i *Ingestor) applyOne(ctx context.Context, w *models.WireEvent) error {
	start := time.Now()
	defer func() {
		i.metrics.ApplyDuration.Observe(time.Since(start).Seconds())
	}()

	ev, err := models.NormalizeEvent(w)
	if err != nil {
		return err
	}

	decision, handler := models.Classify(ev.EventType)
	switch decision {
	case models.DecisionIgnored:
		return &models.IgnoredEventError{Reason: "event type " + ev.EventType + " is not tracked"}
	case models.DecisionUnsupported:
		return &models.UnsupportedEventTypeError{EventType: ev.EventType}
	}

	if err := ev.Validate(); err != nil {
		return err
	}

	// Phase 1: resolve the resource under lock, reject stale events and
	// commit the advanced watermark before touching any period.
	err = i.tx.RunInTx(ctx, func(tx *sqlx.Tx) error {
		res, err := i.resources.GetOrCreate(ctx, tx, handler.Kind, ev.ResourceID(), ev.ProjectID(), ev.Generated)
		if err != nil {
			return err
		}
		if res.UpdatedAt.After(ev.Generated) {
			return &models.EventTooOldError{UUID: res.UUID, Generated: ev.Generated, Watermark: res.UpdatedAt}
		}
		return i.resources.UpdateWatermark(ctx, tx, res.UUID, ev.Generated)
	})
	if err != nil {
		return err
	}

	// Phase 2: re-lock and fold the event into the timeline.
	return i.tx.RunInTx(ctx, func(tx *sqlx.Tx) error {
		res, err := i.resources.GetOrCreate(ctx, tx, handler.Kind, ev.ResourceID(), ev.ProjectID(), ev.Generated)
		if err != nil {
			return err
		}
		return i.reducer.Apply(ctx, tx, res, ev, handler)
	})
}
