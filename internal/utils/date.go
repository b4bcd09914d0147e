package utils

import (
	"fmt"
	"strings"
	"time"
)

// CiviDateTimeLayout is the format the API stores and returns for datetime fields
const CiviDateTimeLayout = "2006-01-02 15:04:05"

// CiviDateLayout is the format of date-only fields
const CiviDateLayout = "2006-01-02"

var inputDateLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	CiviDateTimeLayout,
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	CiviDateLayout,
	"2006/01/02",
	"20060102",
}

// NormalizeDateTime converts caller supplied dates into "YYYY-MM-DD HH:MM:SS".
// "now" and "today" are accepted relative to the supplied clock.
func NormalizeDateTime(s string, now time.Time) (string, error) {
	t, err := parseDate(s, now)
	if err != nil {
		return "", err
	}
	return t.Format(CiviDateTimeLayout), nil
}

// NormalizeDate converts caller supplied dates into "YYYY-MM-DD"
func NormalizeDate(s string, now time.Time) (string, error) {
	t, err := parseDate(s, now)
	if err != nil {
		return "", err
	}
	return t.Format(CiviDateLayout), nil
}

func parseDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return time.Time{}, fmt.Errorf("empty date")
	case "now":
		return now, nil
	case "today":
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), nil
	}

	for _, layout := range inputDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q (use YYYY-MM-DD or YYYY-MM-DD HH:MM:SS)", s)
}
