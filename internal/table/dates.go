package table

import (
	"strconv"
	"strings"
	"time"
)

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime understands ISO-8601 and the DD-MM-YYYY HH:MM:SS form some
// upstream endpoints emit. Zone-less values are taken as UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return parseDayFirst(s)
}

// ParseDate returns epoch milliseconds, or 0 when s is not a date.
func ParseDate(s string) int64 {
	t, ok := ParseTime(s)
	if !ok {
		return 0
	}
	return t.UnixMilli()
}

// FormatDate renders dates as DD.MM.YYYY HH:MM; unparsable input is
// returned unchanged.
func FormatDate(s string) string {
	t, ok := ParseTime(s)
	if !ok {
		return s
	}
	return t.Format("02.01.2006 15:04")
}

// parseDayFirst splits "DD-MM-YYYY[ HH:MM[:SS]]" by hand.
func parseDayFirst(s string) (time.Time, bool) {
	datePart, timePart, _ := strings.Cut(s, " ")
	d := strings.Split(datePart, "-")
	if len(d) != 3 || len(d[2]) != 4 {
		return time.Time{}, false
	}
	day, err1 := strconv.Atoi(d[0])
	month, err2 := strconv.Atoi(d[1])
	year, err3 := strconv.Atoi(d[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}

	var clock [3]int
	if timePart = strings.TrimSpace(timePart); timePart != "" {
		parts := strings.Split(timePart, ":")
		if len(parts) > 3 {
			return time.Time{}, false
		}
		for i, p := range parts {
			v, err := strconv.Atoi(p)
			if err != nil {
				return time.Time{}, false
			}
			clock[i] = v
		}
	}
	return time.Date(year, time.Month(month), day, clock[0], clock[1], clock[2], 0, time.UTC), true
}
