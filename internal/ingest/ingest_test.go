package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/strato/internal/models"
)

func newTestIngestor(t *testing.T) (*Ingestor, *fakeStore) {
	t.Helper()
	fs := newFakeStore()
	ing := New(fs, fs, &fakeSpecStore{store: fs}, &fakePeriodStore{store: fs}, prometheus.NewRegistry())
	return ing, fs
}

func strTrait(name, value string) models.WireTrait {
	return models.WireTrait{Name: name, Type: models.TraitTypeString, Value: value}
}

func dtTrait(name, value string) models.WireTrait {
	return models.WireTrait{Name: name, Type: models.TraitTypeDatetime, Value: value}
}

func intTrait(name string, value float64) models.WireTrait {
	return models.WireTrait{Name: name, Type: models.TraitTypeInt, Value: value}
}

func instanceEvent(eventType, generated, instanceType, state string, extra ...models.WireTrait) models.WireEvent {
	traits := []models.WireTrait{
		strTrait(models.TraitResourceID, "fake-uuid"),
		strTrait(models.TraitProjectID, "fake-project"),
		dtTrait(models.TraitCreatedAt, "2020-06-07T01:42:52"),
		strTrait(models.TraitInstanceType, instanceType),
		strTrait(models.TraitState, state),
	}
	traits = append(traits, extra...)
	return models.WireEvent{Generated: generated, EventType: eventType, Traits: traits}
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := models.ParseEventTime(value)
	require.NoError(t, err)
	return ts
}

func TestIngestBootstrapsFirstPeriod(t *testing.T) {
	ing, fs := newTestIngestor(t)

	ev := instanceEvent("compute.instance.create.end", "2020-06-07T01:42:54", "v1-standard-1", "ACTIVE")
	require.NoError(t, ing.ProcessBatch(context.Background(), []models.WireEvent{ev}))

	res := fs.resources["fake-uuid"]
	require.NotNil(t, res)
	assert.Equal(t, models.KindInstance, res.Kind)
	assert.True(t, res.UpdatedAt.Equal(mustTime(t, "2020-06-07T01:42:54")))

	periods := fs.loadPeriods("fake-uuid")
	require.Len(t, periods, 1)
	assert.True(t, periods[0].StartedAt.Equal(mustTime(t, "2020-06-07T01:42:52")))
	assert.True(t, periods[0].IsOpen())
	assert.Equal(t, models.InstanceSpec{InstanceType: "v1-standard-1", State: "ACTIVE"}, periods[0].Spec)
}

func TestIngestSameSpecIsNoOp(t *testing.T) {
	ing, fs := newTestIngestor(t)

	batch := []models.WireEvent{
		instanceEvent("compute.instance.create.end", "2020-06-07T01:42:54", "v1-standard-1", "ACTIVE"),
		instanceEvent("compute.instance.exists", "2020-06-07T02:00:00", "v1-standard-1", "ACTIVE"),
	}
	require.NoError(t, ing.ProcessBatch(context.Background(), batch))

	periods := fs.loadPeriods("fake-uuid")
	require.Len(t, periods, 1)
	assert.True(t, periods[0].IsOpen())
	assert.True(t, fs.resources["fake-uuid"].UpdatedAt.Equal(mustTime(t, "2020-06-07T02:00:00")))
}

// A spec change closes the open period at event time and opens the next one
// at the same instant.
func TestIngestSplitsOnSpecChange(t *testing.T) {
	ing, fs := newTestIngestor(t)

	batch := []models.WireEvent{
		instanceEvent("compute.instance.create.end", "2020-06-07T01:42:54", "v1-standard-1", "ACTIVE"),
		instanceEvent("compute.instance.resize.end", "2020-06-07T03:00:00", "v1-standard-2", "ACTIVE"),
	}
	require.NoError(t, ing.ProcessBatch(context.Background(), batch))

	periods := fs.loadPeriods("fake-uuid")
	require.Len(t, periods, 2)
	splitAt := mustTime(t, "2020-06-07T03:00:00")
	require.NotNil(t, periods[0].EndedAt)
	assert.True(t, periods[0].EndedAt.Equal(splitAt))
	assert.True(t, periods[1].StartedAt.Equal(splitAt))
	assert.True(t, periods[1].IsOpen())
	assert.Equal(t, models.InstanceSpec{InstanceType: "v1-standard-2", State: "ACTIVE"}, periods[1].Spec)
}

func TestIngestDeletionClosesPeriod(t *testing.T) {
	ing, fs := newTestIngestor(t)

	batch := []models.WireEvent{
		instanceEvent("compute.instance.create.end", "2020-06-07T01:42:54", "v1-standard-1", "ACTIVE"),
		instanceEvent("compute.instance.delete.end", "2020-06-07T05:00:01", "v1-standard-1", "deleted",
			dtTrait(models.TraitDeletedAt, "2020-06-07T05:00:00")),
	}
	require.NoError(t, ing.ProcessBatch(context.Background(), batch))

	periods := fs.loadPeriods("fake-uuid")
	require.Len(t, periods, 1)
	require.NotNil(t, periods[0].EndedAt)
	assert.True(t, periods[0].EndedAt.Equal(mustTime(t, "2020-06-07T05:00:00")))
}

// The deletion announcement without deleted_at is skipped; the event carrying
// the authoritative timestamp follows.
func TestIngestDeleteAnnouncementIgnored(t *testing.T) {
	ing, fs := newTestIngestor(t)

	create := instanceEvent("compute.instance.create.end", "2020-06-07T01:42:54", "v1-standard-1", "ACTIVE")
	require.NoError(t, ing.ProcessBatch(context.Background(), []models.WireEvent{create}))

	announce := instanceEvent("compute.instance.delete.start", "2020-06-07T05:00:00", "v1-standard-1", "deleted")
	err := ing.ProcessBatch(context.Background(), []models.WireEvent{announce})
	require.Error(t, err)
	assert.True(t, models.IsIgnoredEvent(err))

	periods := fs.loadPeriods("fake-uuid")
	require.Len(t, periods, 1)
	assert.True(t, periods[0].IsOpen())
	// the announcement still advanced the watermark
	assert.True(t, fs.resources["fake-uuid"].UpdatedAt.Equal(mustTime(t, "2020-06-07T05:00:00")))
}

func TestIngestRejectsStaleEvent(t *testing.T) {
	ing, fs := newTestIngestor(t)

	fresh := instanceEvent("compute.instance.create.end", "2020-06-07T02:00:00", "v1-standard-1", "ACTIVE")
	require.NoError(t, ing.ProcessBatch(context.Background(), []models.WireEvent{fresh}))

	stale := instanceEvent("compute.instance.exists", "2020-06-07T01:00:00", "v1-standard-2", "ACTIVE")
	err := ing.ProcessBatch(context.Background(), []models.WireEvent{stale})
	require.Error(t, err)
	assert.True(t, models.IsEventTooOld(err))

	// no split happened
	require.Len(t, fs.loadPeriods("fake-uuid"), 1)
	assert.True(t, fs.resources["fake-uuid"].UpdatedAt.Equal(mustTime(t, "2020-06-07T02:00:00")))
}

// After deletion the timeline is closed; any later event is rejected rather
// than reopening it.
func TestIngestRejectsEventAfterDeletion(t *testing.T) {
	ing, _ := newTestIngestor(t)

	batch := []models.WireEvent{
		instanceEvent("compute.instance.create.end", "2020-06-07T01:42:54", "v1-standard-1", "ACTIVE"),
		instanceEvent("compute.instance.delete.end", "2020-06-07T05:00:01", "v1-standard-1", "deleted",
			dtTrait(models.TraitDeletedAt, "2020-06-07T05:00:00")),
	}
	require.NoError(t, ing.ProcessBatch(context.Background(), batch))

	late := instanceEvent("compute.instance.exists", "2020-06-07T06:00:00", "v1-standard-1", "ACTIVE")
	err := ing.ProcessBatch(context.Background(), []models.WireEvent{late})
	require.Error(t, err)
	assert.True(t, models.IsEventTooOld(err))
}

func TestIngestUnsupportedEventType(t *testing.T) {
	ing, _ := newTestIngestor(t)

	ev := instanceEvent("identity.user.created", "2020-06-07T01:42:54", "v1-standard-1", "ACTIVE")
	err := ing.ProcessBatch(context.Background(), []models.WireEvent{ev})
	require.Error(t, err)
	assert.True(t, models.IsUnsupportedEventType(err))
}

func TestIngestIgnoredEventType(t *testing.T) {
	ing, fs := newTestIngestor(t)

	ev := models.WireEvent{
		Generated: "2020-06-07T01:42:54",
		EventType: "volume.usage",
		Traits: []models.WireTrait{
			strTrait(models.TraitResourceID, "fake-uuid"),
			strTrait(models.TraitProjectID, "fake-project"),
		},
	}
	err := ing.ProcessBatch(context.Background(), []models.WireEvent{ev})
	require.Error(t, err)
	assert.True(t, models.IsIgnoredEvent(err))
	assert.Empty(t, fs.resources)
}

func TestIngestMissingResourceID(t *testing.T) {
	ing, _ := newTestIngestor(t)

	ev := models.WireEvent{
		Generated: "2020-06-07T01:42:54",
		EventType: "compute.instance.exists",
		Traits: []models.WireTrait{
			strTrait(models.TraitProjectID, "fake-project"),
		},
	}
	err := ing.ProcessBatch(context.Background(), []models.WireEvent{ev})
	require.Error(t, err)
	assert.True(t, models.IsValidationError(err))
}

func TestIngestRejectsOverlongResourceID(t *testing.T) {
	ing, fs := newTestIngestor(t)

	ev := models.WireEvent{
		Generated: "2020-06-07T01:42:54",
		EventType: "compute.instance.exists",
		Traits: []models.WireTrait{
			strTrait(models.TraitResourceID, strings.Repeat("a", 37)),
			strTrait(models.TraitProjectID, "fake-project"),
			dtTrait(models.TraitCreatedAt, "2020-06-07T01:42:52"),
			strTrait(models.TraitInstanceType, "v1-standard-1"),
			strTrait(models.TraitState, "ACTIVE"),
		},
	}
	err := ing.ProcessBatch(context.Background(), []models.WireEvent{ev})
	require.Error(t, err)
	assert.True(t, models.IsValidationError(err))
	assert.Empty(t, fs.resources)
}

func TestIngestBadGeneratedTimestamp(t *testing.T) {
	ing, _ := newTestIngestor(t)

	ev := instanceEvent("compute.instance.exists", "not-a-timestamp", "v1-standard-1", "ACTIVE")
	err := ing.ProcessBatch(context.Background(), []models.WireEvent{ev})
	require.Error(t, err)
	assert.True(t, models.IsValidationError(err))
}

// The batch stops at the first event that does not apply; later events are
// not processed.
func TestIngestBatchStopsAtFirstFailure(t *testing.T) {
	ing, fs := newTestIngestor(t)

	batch := []models.WireEvent{
		instanceEvent("compute.instance.create.end", "2020-06-07T01:42:54", "v1-standard-1", "ACTIVE"),
		instanceEvent("compute.instance.delete.start", "2020-06-07T02:00:00", "v1-standard-1", "deleted"),
		instanceEvent("compute.instance.resize.end", "2020-06-07T03:00:00", "v1-standard-2", "ACTIVE"),
	}
	err := ing.ProcessBatch(context.Background(), batch)
	require.Error(t, err)
	assert.True(t, models.IsIgnoredEvent(err))

	// first event applied, third never ran
	periods := fs.loadPeriods("fake-uuid")
	require.Len(t, periods, 1)
	assert.True(t, periods[0].IsOpen())
	assert.Equal(t, models.InstanceSpec{InstanceType: "v1-standard-1", State: "ACTIVE"}, periods[0].Spec)
}

func volumeEvent(eventType, generated, volumeType, state string, size float64, extra ...models.WireTrait) models.WireEvent {
	traits := []models.WireTrait{
		strTrait(models.TraitResourceID, "fake-volume"),
		strTrait(models.TraitProjectID, "fake-project"),
		strTrait(models.TraitVolumeType, volumeType),
		intTrait(models.TraitVolumeSize, size),
		strTrait(models.TraitState, state),
	}
	traits = append(traits, extra...)
	return models.WireEvent{Generated: generated, EventType: eventType, Traits: traits}
}

func TestIngestVolumeTransientStateIgnored(t *testing.T) {
	ing, fs := newTestIngestor(t)

	ev := volumeEvent("volume.create.start", "2020-06-07T01:42:54", "ssd", "creating", 40,
		dtTrait(models.TraitCreatedAt, "2020-06-07T01:42:52"))
	err := ing.ProcessBatch(context.Background(), []models.WireEvent{ev})
	require.Error(t, err)
	assert.True(t, models.IsIgnoredEvent(err))
	assert.Empty(t, fs.loadPeriods("fake-volume"))
}

func TestIngestVolumeBootstrap(t *testing.T) {
	ing, fs := newTestIngestor(t)

	ev := volumeEvent("volume.create.end", "2020-06-07T01:42:54", "ssd", "available", 40,
		dtTrait(models.TraitCreatedAt, "2020-06-07T01:42:52"))
	require.NoError(t, ing.ProcessBatch(context.Background(), []models.WireEvent{ev}))

	periods := fs.loadPeriods("fake-volume")
	require.Len(t, periods, 1)
	assert.Equal(t, models.VolumeSpec{VolumeType: "ssd", VolumeSize: 40, State: "available"}, periods[0].Spec)
}

func TestIngestVolumeWithoutCreationTimestampIgnored(t *testing.T) {
	ing, fs := newTestIngestor(t)

	ev := volumeEvent("volume.update.end", "2020-06-07T01:42:54", "ssd", "available", 40)
	err := ing.ProcessBatch(context.Background(), []models.WireEvent{ev})
	require.Error(t, err)
	assert.True(t, models.IsIgnoredEvent(err))
	assert.Empty(t, fs.loadPeriods("fake-volume"))
}

func TestIngestBootstrapFromLaunchedAt(t *testing.T) {
	ing, fs := newTestIngestor(t)

	ev := models.WireEvent{
		Generated: "2020-06-07T01:42:54",
		EventType: "compute.instance.exists",
		Traits: []models.WireTrait{
			strTrait(models.TraitResourceID, "fake-uuid"),
			strTrait(models.TraitProjectID, "fake-project"),
			dtTrait(models.TraitLaunchedAt, "2020-06-07T01:42:53"),
			strTrait(models.TraitInstanceType, "v1-standard-1"),
			strTrait(models.TraitState, "ACTIVE"),
		},
	}
	require.NoError(t, ing.ProcessBatch(context.Background(), []models.WireEvent{ev}))

	periods := fs.loadPeriods("fake-uuid")
	require.Len(t, periods, 1)
	assert.True(t, periods[0].StartedAt.Equal(mustTime(t, "2020-06-07T01:42:53")))
}

// Spec rows deduplicate: returning to a previously seen spec reuses its id.
func TestIngestSpecDeduplication(t *testing.T) {
	ing, fs := newTestIngestor(t)

	batch := []models.WireEvent{
		instanceEvent("compute.instance.create.end", "2020-06-07T01:00:00", "v1-standard-1", "ACTIVE"),
		instanceEvent("compute.instance.resize.end", "2020-06-07T02:00:00", "v1-standard-2", "ACTIVE"),
		instanceEvent("compute.instance.resize.end", "2020-06-07T03:00:00", "v1-standard-1", "ACTIVE"),
	}
	require.NoError(t, ing.ProcessBatch(context.Background(), batch))

	require.Len(t, fs.specs, 2)
	periods := fs.loadPeriods("fake-uuid")
	require.Len(t, periods, 3)
	assert.Equal(t, periods[0].SpecID, periods[2].SpecID)
}

func TestReducerMultipleOpenPeriods(t *testing.T) {
	fs := newFakeStore()
	reducer := NewReducer(&fakeSpecStore{store: fs}, &fakePeriodStore{store: fs})

	specs := &fakeSpecStore{store: fs}
	specID, err := specs.GetOrCreate(context.Background(), nil, models.InstanceSpec{InstanceType: "v1-standard-1", State: "ACTIVE"})
	require.NoError(t, err)

	periodStore := &fakePeriodStore{store: fs}
	t0 := mustTime(t, "2020-06-07T01:00:00")
	_, err = periodStore.Insert(context.Background(), nil, "fake-uuid", t0, specID)
	require.NoError(t, err)
	_, err = periodStore.Insert(context.Background(), nil, "fake-uuid", t0.Add(time.Hour), specID)
	require.NoError(t, err)

	res := &models.Resource{
		UUID:      "fake-uuid",
		Kind:      models.KindInstance,
		Project:   "fake-project",
		UpdatedAt: t0,
		Periods:   fs.loadPeriods("fake-uuid"),
	}
	ev, err := models.NormalizeEvent(&models.WireEvent{
		Generated: "2020-06-07T03:00:00",
		EventType: "compute.instance.exists",
		Traits: []models.WireTrait{
			strTrait(models.TraitResourceID, "fake-uuid"),
			strTrait(models.TraitProjectID, "fake-project"),
			dtTrait(models.TraitCreatedAt, "2020-06-07T01:00:00"),
			strTrait(models.TraitInstanceType, "v1-standard-1"),
			strTrait(models.TraitState, "ACTIVE"),
		},
	})
	require.NoError(t, err)

	_, handler := models.Classify(ev.EventType)
	err = reducer.Apply(context.Background(), nil, res, ev, handler)
	require.Error(t, err)
	assert.True(t, models.IsMultipleOpenPeriods(err))
}
