package models

import "time"

// ResourceView is the serialized form of a resource returned by the usage API.
type ResourceView struct {
	UUID      string       `json:"uuid"`
	Type      string       `json:"type"`
	Project   string       `json:"project"`
	UpdatedAt time.Time    `json:"updated_at"`
	Periods   []PeriodView `json:"periods"`
}

// PeriodView is the serialized form of one period. EndedAt is null for an
// open period.
type PeriodView struct {
	StartedAt time.Time              `json:"started_at"`
	EndedAt   *time.Time             `json:"ended_at"`
	Seconds   float64                `json:"seconds"`
	Spec      map[string]interface{} `json:"spec"`
}

// NewResourceView builds the serializable view of a resource and its periods.
func NewResourceView(r *Resource) ResourceView {
	periods := make([]PeriodView, 0, len(r.Periods))
	for i := range r.Periods {
		periods = append(periods, NewPeriodView(&r.Periods[i]))
	}
	return ResourceView{
		UUID:      r.UUID,
		Type:      string(r.Kind),
		Project:   r.Project,
		UpdatedAt: r.UpdatedAt,
		Periods:   periods,
	}
}

// NewPeriodView builds the serializable view of one period.
func NewPeriodView(p *Period) PeriodView {
	var spec map[string]interface{}
	if p.Spec != nil {
		spec = p.Spec.Attributes()
	}
	return PeriodView{
		StartedAt: p.StartedAt,
		EndedAt:   p.EndedAt,
		Seconds:   p.Seconds(),
		Spec:      spec,
	}
}
