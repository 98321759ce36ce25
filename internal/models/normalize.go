package models

import (
	"strconv"
	"time"
)

// eventTimeLayouts are the ISO-8601 shapes emitted by the upstream platform.
// Timestamps without a zone are taken as UTC.
var eventTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseEventTime parses an ISO-8601 timestamp string from an event payload.
func ParseEventTime(value string) (time.Time, error) {
	for _, layout := range eventTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, NewValidationError("unparseable timestamp: %q", value)
}

// NormalizeEvent converts a wire event into its typed form: generated is
// parsed to a timestamp and the trait triples become a keyed map with values
// converted per their type code. Pure function, no side effects.
func NormalizeEvent(we *WireEvent) (*Event, error) {
	generated, err := ParseEventTime(we.Generated)
	if err != nil {
		return nil, NewValidationError("invalid generated timestamp: %v", err)
	}

	traits := make(Traits, len(we.Traits))
	for _, wt := range we.Traits {
		value, err := convertTraitValue(wt.Type, wt.Value)
		if err != nil {
			return nil, NewValidationError("trait %q: %v", wt.Name, err)
		}
		traits[wt.Name] = value
	}

	return &Event{
		Generated: generated,
		EventType: we.EventType,
		Traits:    traits,
	}, nil
}

// convertTraitValue applies the upstream type-code conventions.
// Unknown codes pass the value through unchanged.
func convertTraitValue(code int, value interface{}) (interface{}, error) {
	switch code {
	case TraitTypeString:
		if s, ok := value.(string); ok {
			return s, nil
		}
		return nil, NewValidationError("expected string, got %T", value)
	case TraitTypeInt:
		switch v := value.(type) {
		case float64:
			// encoding/json decodes all numbers as float64
			return int64(v), nil
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, NewValidationError("expected integer, got %q", v)
			}
			return n, nil
		default:
			return nil, NewValidationError("expected integer, got %T", value)
		}
	case TraitTypeDatetime:
		s, ok := value.(string)
		if !ok {
			return nil, NewValidationError("expected timestamp string, got %T", value)
		}
		return ParseEventTime(s)
	default:
		return value, nil
	}
}
