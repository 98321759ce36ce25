package api

import (
	"strconv"
	"time"

	dps "github.com/markusmobius/go-dateparser"

	"github.com/moolen/strato/internal/models"
)

// ParseTimeParam parses a query time parameter, supporting ISO-8601
// timestamps, Unix timestamps in seconds and human-readable dates.
// fieldName is used for error messages (e.g., "start", "end").
func ParseTimeParam(value, fieldName string) (time.Time, error) {
	if value == "" {
		return time.Time{}, models.NewValidationError("%s parameter is required", fieldName)
	}

	if t, err := models.ParseEventTime(value); err == nil {
		return t, nil
	}

	if unix, err := strconv.ParseInt(value, 10, 64); err == nil {
		if unix < 0 {
			return time.Time{}, models.NewValidationError("%s must be non-negative", fieldName)
		}
		return time.Unix(unix, 0).UTC(), nil
	}

	parser := dps.Parser{}
	cfg := &dps.Configuration{
		PreferredDateSource: dps.CurrentPeriod,
	}
	parsed, err := parser.Parse(cfg, value)
	if err != nil {
		return time.Time{}, models.NewValidationError("%s must be a timestamp or human-readable date: %v", fieldName, err)
	}
	if parsed.IsZero() {
		return time.Time{}, models.NewValidationError("%s could not be parsed as a date: %s", fieldName, value)
	}
	return parsed.Time.UTC(), nil
}
