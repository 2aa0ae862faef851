package utils

import (
	"errors"
	"strings"
	"time"
)

var ErrInvalidDate = errors.New("invalid date")

// rideDateLayouts are tried in order. The second is what HTML
// datetime-local inputs submit.
var rideDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseRideDate accepts RFC 3339, datetime-local or a bare date. Values
// without a zone are read as UTC.
func ParseRideDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, ErrInvalidDate
	}

	for _, layout := range rideDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, ErrInvalidDate
}
