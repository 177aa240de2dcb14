package work

import (
	"strings"
	"time"
)

// dateLayouts are tried in order when parsing source-supplied dates.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02",
	"2006-01",
}

// ParseDate parses the date formats seen across candidate sources. Returns
// nil when the value is empty or unrecognized; parsed times are always
// timezone-aware (UTC when the input carries no zone).
func ParseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
