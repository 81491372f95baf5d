package ingest

import (
	"regexp"
	"strings"
	"time"
)

var (
	isoDatePrefixRegex = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})`)
	ordinalRegex       = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)
	weekdayRegex       = regexp.MustCompile(`(?i)^(mon|tue|wed|thu|fri|sat|sun)[a-z]*,?\s+`)
)

// Australian funders write day-first numeric dates, so 02/01/2006 wins over
// the US layout.
var deadlineLayouts = []string{
	"2 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"02/01/2006",
	"2/1/2006",
	"2006/01/02",
	"2 January 2006 3:04 PM",
	"2 January 2006 3PM",
}

// ParseDeadline parses a deadline as written by funders or by the extractor.
// Date-only values are normalised to the end of that day in UTC.
func ParseDeadline(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	if t, ok := ParseISODatePrefix(s); ok {
		return t, true
	}

	s = cleanDateString(s)
	for _, layout := range deadlineLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if strings.Contains(layout, "3") {
			return t.UTC(), true
		}
		return toEndOfDay(t), true
	}
	return time.Time{}, false
}

// ParseISODatePrefix accepts strings that start with a well-formed YYYY-MM-DD.
func ParseISODatePrefix(s string) (time.Time, bool) {
	m := isoDatePrefixRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", m[1])
	if err != nil {
		return time.Time{}, false
	}
	return toEndOfDay(t), true
}

// toEndOfDay sets the time to 23:59:59.999999999 UTC
func toEndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999999, time.UTC)
}

// cleanDateString removes common prefixes and cleans up date strings
func cleanDateString(s string) string {
	prefixes := []string{
		"closing date:", "closes:", "deadline:", "due date:", "due:", "submit by", "applications close",
	}
	sLower := strings.ToLower(s)
	for _, p := range prefixes {
		if idx := strings.Index(sLower, p); idx != -1 {
			s = s[idx+len(p):]
			sLower = sLower[idx+len(p):]
		}
	}
	s = strings.TrimSpace(s)
	s = weekdayRegex.ReplaceAllString(s, "")
	s = ordinalRegex.ReplaceAllString(s, "$1")
	return normalizeSpace(s)
}
