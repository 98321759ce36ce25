package models

// Test fixtures mirroring the notification payloads emitted by the upstream
// platform.

func fakeWireEvent() *WireEvent {
	return &WireEvent{
		Generated: "2020-06-07T01:42:54.736337",
		EventType: "compute.instance.exists",
		Traits: []WireTrait{
			{Name: "service", Type: TraitTypeString, Value: "compute.devstack"},
			{Name: "request_id", Type: TraitTypeString, Value: "req-cc707e71-8ea7-4646-afb6-65a8d1023c1a"},
			{Name: "created_at", Type: TraitTypeDatetime, Value: "2020-06-07T01:42:52"},
			{Name: "resource_id", Type: TraitTypeString, Value: "fake-uuid"},
			{Name: "project_id", Type: TraitTypeString, Value: "fake-project"},
			{Name: "instance_type", Type: TraitTypeString, Value: "v1-standard-1"},
			{Name: "state", Type: TraitTypeString, Value: "ACTIVE"},
		},
	}
}

func fakeNormalizedEvent() *Event {
	ev, err := NormalizeEvent(fakeWireEvent())
	if err != nil {
		panic(err)
	}
	return ev
}
