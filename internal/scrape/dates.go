package scrape

import (
	"strings"
	"time"
)

// Date formats observed on detail pages, tried in order. The weekday prefix
// is present on some pages and absent on others.
var detailDateLayouts = []string{
	"Monday, 2 Jan 2006, 15:04",
	"2 Jan 2006, 15:04",
	"01/02/2006",
}

// Date formats observed on review pages, tried in order.
var reviewDateLayouts = []string{
	"2006-01-02 15:04:05",
	"01/02/2006 15:04:05",
}

// parseDate tries each layout in order and returns the first success.
// A value that matches no layout yields ok=false, never an error.
func parseDate(layouts []string, value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
