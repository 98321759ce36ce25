package models

import (
	"time"
)

// ResourceKind discriminates resource variants and selects the spec variant
// and ignore predicate used during reduction.
type ResourceKind string

const (
	// KindInstance is a compute instance
	KindInstance ResourceKind = "OS::Nova::Server"
	// KindVolume is a block storage volume
	KindVolume ResourceKind = "OS::Cinder::Volume"
)

// Resource is the persistent identity of a cloud object tracked across its
// lifetime. It owns an ordered, possibly-empty sequence of periods.
//
// UpdatedAt is the event-time watermark: the timestamp of the newest event
// ever applied to this resource. It is monotonically non-decreasing.
type Resource struct {
	UUID      string
	Kind      ResourceKind
	Project   string
	UpdatedAt time.Time
	Periods   []Period
}

// OpenPeriod returns the unique period with a null ended_at, or nil when the
// resource is closed. More than one open period is a data corruption and
// yields MultipleOpenPeriodsError.
func (r *Resource) OpenPeriod() (*Period, error) {
	var open *Period
	for i := range r.Periods {
		if r.Periods[i].EndedAt == nil {
			if open != nil {
				return nil, &MultipleOpenPeriodsError{UUID: r.UUID}
			}
			open = &r.Periods[i]
		}
	}
	return open, nil
}

// Period is a half-open interval [StartedAt, EndedAt) during which the
// resource existed under one spec. EndedAt nil means the period is open.
type Period struct {
	ID        int64
	SpecID    int64
	Spec      Spec
	StartedAt time.Time
	EndedAt   *time.Time
}

// IsOpen reports whether the period has no end yet.
func (p *Period) IsOpen() bool {
	return p.EndedAt == nil
}

// Seconds is the period duration in seconds. Open periods are measured
// against the current time.
func (p *Period) Seconds() float64 {
	endedAt := time.Now()
	if p.EndedAt != nil {
		endedAt = *p.EndedAt
	}
	return endedAt.Sub(p.StartedAt).Seconds()
}

// EpochMillis converts a timestamp to the persisted representation:
// milliseconds since epoch, signed 64-bit. Sub-millisecond precision is
// truncated; intentional.
func EpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromEpochMillis converts the persisted representation back to a UTC timestamp.
func FromEpochMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
