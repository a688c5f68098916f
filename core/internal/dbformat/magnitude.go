package dbformat

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	secondsPerDay   = 86400
	secondsPerYear  = 365.25 * secondsPerDay
	secondsPerMonth = 30 * secondsPerDay
)

var dateTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02T15Z07:00",
	"2006-01-02T15",
	"20060102T150405.999999999Z0700",
	"20060102T150405.999999999",
	"2006-01-02",
	"20060102",
	"2006-01",
	"2006",
}

var timeLayouts = []string{
	"15:04:05.999999999Z07:00",
	"15:04:05.999999999",
	"15:04Z07:00",
	"15:04",
	"15",
	"150405.999999999Z0700",
	"150405.999999999",
}

var durationRe = regexp.MustCompile(
	`^(-)?P(?:(\d+(?:[.,]\d+)?)Y)?(?:(\d+(?:[.,]\d+)?)M)?(?:(\d+(?:[.,]\d+)?)W)?(?:(\d+(?:[.,]\d+)?)D)?` +
		`(?:T(?:(\d+(?:[.,]\d+)?)H)?(?:(\d+(?:[.,]\d+)?)M)?(?:(\d+(?:[.,]\d+)?)S)?)?$`)

// magnitude derives the comparable numeric value of a DV_ORDERED object given
// in RM form. ok is false for types without a magnitude or when the value is
// incomplete.
func magnitude(rmType string, obj map[string]interface{}) (float64, bool, error) {
	switch rmType {
	case "DV_QUANTITY", "DV_COUNT":
		return number(obj["magnitude"])

	case "DV_ORDINAL", "DV_SCALE":
		return number(obj["value"])

	case "DV_PROPORTION":
		n, ok, err := number(obj["numerator"])
		if !ok || err != nil {
			return 0, ok, err
		}
		d, ok, err := number(obj["denominator"])
		if !ok || err != nil || d == 0 {
			return 0, false, err
		}
		return n / d, true, nil

	case "DV_DATE_TIME", "DV_DATE":
		s, ok := obj["value"].(string)
		if !ok {
			return 0, false, nil
		}
		t, err := ParseDateTime(s)
		if err != nil {
			return 0, false, err
		}
		return epoch(t), true, nil

	case "DV_TIME":
		s, ok := obj["value"].(string)
		if !ok {
			return 0, false, nil
		}
		v, err := ParseTime(s)
		if err != nil {
			return 0, false, err
		}
		return v, true, nil

	case "DV_DURATION":
		s, ok := obj["value"].(string)
		if !ok {
			return 0, false, nil
		}
		v, err := ParseDuration(s)
		if err != nil {
			return 0, false, err
		}
		return v, true, nil
	}
	return 0, false, nil
}

func number(v interface{}) (float64, bool, error) {
	switch n := v.(type) {
	case nil:
		return 0, false, nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false, fmt.Errorf("dbformat: invalid number %s", n)
		}
		return f, true, nil
	case float64:
		return n, true, nil
	case int:
		return float64(n), true, nil
	case int64:
		return float64(n), true, nil
	}
	return 0, false, fmt.Errorf("dbformat: expected number, got %T", v)
}

func epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// ParseDateTime parses an ISO 8601 date or date-time, partial values
// included. Values without a zone are taken as UTC.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.Replace(s, ",", ".", 1)
	for _, l := range dateTimeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("dbformat: invalid date/time %q", s)
}

// ParseTime returns the seconds since midnight UTC of an ISO 8601 time.
func ParseTime(s string) (float64, error) {
	s = strings.Replace(s, ",", ".", 1)
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			t = t.UTC()
			secs := float64(t.Hour()*3600+t.Minute()*60+t.Second()) + float64(t.Nanosecond())/1e9
			return secs, nil
		}
	}
	return 0, fmt.Errorf("dbformat: invalid time %q", s)
}

// ParseDuration returns the length of an ISO 8601 duration in seconds, using
// the same year and month lengths as postgres interval epochs.
func ParseDuration(s string) (float64, error) {
	m := durationRe.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "-P" || strings.HasSuffix(s, "T") {
		return 0, fmt.Errorf("dbformat: invalid duration %q", s)
	}

	units := []float64{secondsPerYear, secondsPerMonth, 7 * secondsPerDay, secondsPerDay, 3600, 60, 1}
	var total float64
	for i, u := range units {
		part := m[i+2]
		if part == "" {
			continue
		}
		f, err := strconv.ParseFloat(strings.Replace(part, ",", ".", 1), 64)
		if err != nil {
			return 0, fmt.Errorf("dbformat: invalid duration %q", s)
		}
		total += f * u
	}
	if m[1] == "-" {
		total = -total
	}
	return total, nil
}

// OperandMagnitude converts a literal compared with a DV_ORDERED value of
// rmType into the derived magnitude stored under MagnitudeKey.
func OperandMagnitude(rmType string, v interface{}) (float64, bool) {
	if s, ok := v.(string); ok {
		var f float64
		var err error
		switch rmType {
		case "DV_DATE_TIME", "DV_DATE":
			var t time.Time
			t, err = ParseDateTime(s)
			f = epoch(t)
		case "DV_TIME":
			f, err = ParseTime(s)
		case "DV_DURATION":
			f, err = ParseDuration(s)
		default:
			return 0, false
		}
		return f, err == nil
	}

	switch rmType {
	case "DV_QUANTITY", "DV_COUNT", "DV_ORDINAL", "DV_SCALE", "DV_PROPORTION":
		f, ok, err := number(v)
		return f, ok && err == nil
	}
	return 0, false
}
