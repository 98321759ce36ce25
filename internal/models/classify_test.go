package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		eventType string
		decision  Decision
		kind      ResourceKind
	}{
		{"compute.instance.exists", DecisionHandled, KindInstance},
		{"compute.instance.delete.end", DecisionHandled, KindInstance},
		{"volume.exists", DecisionHandled, KindVolume},
		{"volume.delete.start", DecisionHandled, KindVolume},
		{"volume.delete.end", DecisionHandled, KindVolume},
		{"volume.usage", DecisionIgnored, ""},
		{"aggregate.create.start", DecisionIgnored, ""},
		{"compute_task.build_instances", DecisionIgnored, ""},
		{"compute.metrics.update", DecisionIgnored, ""},
		{"flavor.create", DecisionIgnored, ""},
		{"keypair.create.start", DecisionIgnored, ""},
		{"libvirt.connect.error", DecisionIgnored, ""},
		{"metrics.update", DecisionIgnored, ""},
		{"scheduler.select_destinations.start", DecisionIgnored, ""},
		{"server_group.create", DecisionIgnored, ""},
		{"service.update", DecisionIgnored, ""},
		{"image.upload", DecisionUnsupported, ""},
		{"network.create.end", DecisionUnsupported, ""},
		{"", DecisionUnsupported, ""},
	}

	for _, tc := range cases {
		decision, handler := Classify(tc.eventType)
		assert.Equal(t, tc.decision, decision, tc.eventType)
		if tc.decision == DecisionHandled {
			require.NotNil(t, handler, tc.eventType)
			assert.Equal(t, tc.kind, handler.Kind, tc.eventType)
		} else {
			assert.Nil(t, handler, tc.eventType)
		}
	}
}

// The specific compute.instance. prefix must be tried before the general
// compute. ignore entry.
func TestClassifyOrdering(t *testing.T) {
	decision, handler := Classify("compute.instance.update")
	assert.Equal(t, DecisionHandled, decision)
	require.NotNil(t, handler)

	decision, _ = Classify("compute.task.something")
	assert.Equal(t, DecisionIgnored, decision)
}

func TestInstanceEventIgnored(t *testing.T) {
	ev := fakeNormalizedEvent()
	assert.False(t, isInstanceEventIgnored(ev))

	// deletion announcement without the authoritative timestamp
	ev = fakeNormalizedEvent()
	ev.Traits[TraitState] = "deleted"
	assert.True(t, isInstanceEventIgnored(ev))

	// deletion with deleted_at is handled
	ev.Traits[TraitDeletedAt] = time.Date(2020, 6, 7, 2, 42, 52, 0, time.UTC)
	assert.False(t, isInstanceEventIgnored(ev))

	// no way to bootstrap a period
	ev = fakeNormalizedEvent()
	delete(ev.Traits, TraitCreatedAt)
	assert.True(t, isInstanceEventIgnored(ev))

	// launched_at is an acceptable fallback
	ev.Traits[TraitLaunchedAt] = time.Date(2020, 6, 7, 1, 42, 53, 0, time.UTC)
	assert.False(t, isInstanceEventIgnored(ev))
}

func TestVolumeEventIgnored(t *testing.T) {
	ev := &Event{EventType: "volume.exists", Traits: Traits{TraitState: "available"}}
	assert.False(t, isVolumeEventIgnored(ev))

	for _, state := range []string{"creating", "deleting"} {
		ev.Traits[TraitState] = state
		assert.True(t, isVolumeEventIgnored(ev), state)
	}
}
