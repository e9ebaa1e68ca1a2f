package services

import (
	"errors"
	"strings"
	"time"
)

var errEmptyDate = errors.New("empty date")

// layouts accepted from the oracle, most specific first
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseNaiveTime parses an ISO-8601 timestamp. A trailing Z is UTC; values
// with an offset are converted to UTC. The result is always in time.UTC and
// is stored without a zone.
func ParseNaiveTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errEmptyDate
	}
	var firstErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
