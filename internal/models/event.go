package models

import (
	"encoding/json"
	"time"
)

// Trait type codes from the upstream notification convention.
// Unknown codes pass their value through unchanged.
const (
	TraitTypeString   = 1
	TraitTypeInt      = 2
	TraitTypeDatetime = 4
)

// Well-known trait names referenced by the reduction rules.
const (
	TraitResourceID   = "resource_id"
	TraitProjectID    = "project_id"
	TraitCreatedAt    = "created_at"
	TraitLaunchedAt   = "launched_at"
	TraitDeletedAt    = "deleted_at"
	TraitState        = "state"
	TraitInstanceType = "instance_type"
	TraitVolumeType   = "volume_type"
	TraitVolumeSize   = "volume_size"
)

// WireTrait is a single trait as it arrives on the wire: a
// [name, type_code, value] triple.
type WireTrait struct {
	Name  string
	Type  int
	Value interface{}
}

// UnmarshalJSON decodes the positional triple form.
func (t *WireTrait) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return NewValidationError("trait must be a JSON array: %v", err)
	}
	if len(parts) != 3 {
		return NewValidationError("trait must be a [name, type, value] triple, got %d elements", len(parts))
	}
	if err := json.Unmarshal(parts[0], &t.Name); err != nil {
		return NewValidationError("trait name must be a string: %v", err)
	}
	if err := json.Unmarshal(parts[1], &t.Type); err != nil {
		return NewValidationError("trait type must be an integer: %v", err)
	}
	if err := json.Unmarshal(parts[2], &t.Value); err != nil {
		return NewValidationError("trait value is not valid JSON: %v", err)
	}
	return nil
}

// MarshalJSON re-encodes the triple form, used by tests and the audit log.
func (t WireTrait) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{t.Name, t.Type, t.Value})
}

// WireEvent is the ingress representation of a single lifecycle event,
// before normalization.
type WireEvent struct {
	Generated string      `json:"generated"`
	EventType string      `json:"event_type"`
	Traits    []WireTrait `json:"traits"`
}

// Traits is the normalized, typed view of an event's traits.
type Traits map[string]interface{}

// Has reports whether a trait is present.
func (t Traits) Has(name string) bool {
	_, ok := t[name]
	return ok
}

// String returns the named trait as a string, or "" when absent or not a string.
func (t Traits) String(name string) string {
	s, _ := t[name].(string)
	return s
}

// Int returns the named trait as an int64, or 0 when absent or not an integer.
func (t Traits) Int(name string) int64 {
	n, _ := t[name].(int64)
	return n
}

// Time returns the named trait as a timestamp. The second return value
// reports whether the trait is present and is a timestamp.
func (t Traits) Time(name string) (time.Time, bool) {
	ts, ok := t[name].(time.Time)
	return ts, ok
}

// Event is a normalized lifecycle event: generated parsed to a timestamp,
// traits converted to a keyed, typed map. Events are transient and never
// persisted.
type Event struct {
	Generated time.Time
	EventType string
	Traits    Traits
}

// ResourceID is the uuid of the resource this event refers to.
func (e *Event) ResourceID() string {
	return e.Traits.String(TraitResourceID)
}

// ProjectID is the tenant that owns the resource this event refers to.
func (e *Event) ProjectID() string {
	return e.Traits.String(TraitProjectID)
}

// Validate checks that the event carries the traits every handled event
// needs. Resource ids are opaque identifiers sized for the uuid column,
// their format is not constrained further.
func (e *Event) Validate() error {
	if e.ResourceID() == "" {
		return NewValidationError("event %s is missing the resource_id trait", e.EventType)
	}
	if len(e.ResourceID()) > 36 {
		return NewValidationError("resource_id must be 36 characters or less")
	}
	if e.ProjectID() == "" {
		return NewValidationError("event %s is missing the project_id trait", e.EventType)
	}
	if len(e.ProjectID()) > 32 {
		return NewValidationError("project_id must be 32 characters or less")
	}
	return nil
}
