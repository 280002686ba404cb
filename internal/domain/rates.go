package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// ValidRate is the never-zero guard: finite and strictly positive.
func ValidRate(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// ParseRate converts a loosely typed value (JSON number, numeric string) into a float.
// Anything non-numeric becomes NaN so that ValidRate rejects it downstream.
func ParseRate(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f
		}
	}
	return math.NaN()
}

// ParseDate parses YYYY-MM-DD as a UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
}

func FormatDate(t time.Time) string { return t.UTC().Format(DateLayout) }

// UTCDay normalizes t to midnight UTC of its UTC calendar day.
func UTCDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DateRange lists every YYYY-MM-DD from start to end inclusive. Iteration compares
// date strings, so it is unaffected by DST transitions.
func DateRange(start, end string) ([]string, error) {
	s, err := ParseDate(start)
	if err != nil {
		return nil, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return nil, err
	}
	last := FormatDate(e)
	var out []string
	for d := s; FormatDate(d) <= last; d = d.AddDate(0, 0, 1) {
		out = append(out, FormatDate(d))
	}
	return out, nil
}
