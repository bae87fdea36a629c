// Package cellformat encodes, validates and renders cell values according to
// the column format configured on the backend.
//
// Stored encodings:
//
//	text       verbatim
//	date       ISO date, 2006-01-02
//	timerange  RFC3339 start and end joined by '|'
package cellformat

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type Format string

const (
	Text      Format = "text"
	Date      Format = "date"
	TimeRange Format = "timerange"
)

const (
	dateLayout     = "2006-01-02"
	rangeSep       = "|"
	displayDate    = "Mon 2 Jan 2006"
	displayRange   = "Mon 2 Jan 15:04"
	displayTime    = "15:04"
	displayInstant = "Mon 2 Jan 2006 15:04"
)

var ErrInvalidValue = errors.New("invalid cell value")

var (
	dottedDateRe = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{2}|\d{4})$`)
	rangeInputRe = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{2}|\d{4})\s+(\d{1,2}):(\d{2})\s*-\s*(\d{1,2}):(\d{2})$`)
)

// ParseFormat maps a backend format tag to a Format. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", Text:
		return Text, nil
	case Date:
		return Date, nil
	case TimeRange:
		return TimeRange, nil
	default:
		return "", fmt.Errorf("unknown column format %q", s)
	}
}

func (f Format) String() string {
	if f == "" {
		return string(Text)
	}
	return string(f)
}

// Range is a decoded timerange value. Start equals End for single instants.
type Range struct {
	Start time.Time
	End   time.Time
}

func (r Range) String() string {
	return r.Start.UTC().Format(time.RFC3339) + rangeSep + r.End.UTC().Format(time.RFC3339)
}

// Normalize converts user input into the stored encoding for the format.
// Empty input stays empty (clears the cell) for every format.
func Normalize(f Format, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", nil
	}
	switch f {
	case Date:
		d, err := parseDate(input)
		if err != nil {
			return "", err
		}
		return d.Format(dateLayout), nil
	case TimeRange:
		r, err := parseRangeInput(input)
		if err != nil {
			return "", err
		}
		return r.String(), nil
	default:
		return input, nil
	}
}

func parseDate(input string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, input); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, input); err == nil {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	m := dottedDateRe.FindStringSubmatch(input)
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a date (use YYYY-MM-DD or D.M.YYYY)", ErrInvalidValue, input)
	}
	return buildDate(m[1], m[2], m[3])
}

func buildDate(dayStr, monthStr, yearStr string) (time.Time, error) {
	day, _ := strconv.Atoi(dayStr)
	month, _ := strconv.Atoi(monthStr)
	if len(yearStr) == 2 {
		yearStr = "20" + yearStr
	}
	year, _ := strconv.Atoi(yearStr)
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("%w: day or month out of range", ErrInvalidValue)
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return time.Time{}, fmt.Errorf("%w: %d.%d.%d does not exist", ErrInvalidValue, day, month, year)
	}
	return t, nil
}

func parseRangeInput(input string) (Range, error) {
	if strings.Contains(input, rangeSep) {
		return ParseRange(input)
	}
	if m := rangeInputRe.FindStringSubmatch(input); m != nil {
		d, err := buildDate(m[1], m[2], m[3])
		if err != nil {
			return Range{}, err
		}
		start, err := atClock(d, m[4], m[5])
		if err != nil {
			return Range{}, err
		}
		end, err := atClock(d, m[6], m[7])
		if err != nil {
			return Range{}, err
		}
		if end.Before(start) {
			return Range{}, fmt.Errorf("%w: range ends before it starts", ErrInvalidValue)
		}
		return Range{Start: start, End: end}, nil
	}
	if t, err := time.Parse(time.RFC3339, input); err == nil {
		return Range{Start: t, End: t}, nil
	}
	return Range{}, fmt.Errorf("%w: %q is not a time range (use D.M.YYYY HH:MM-HH:MM)", ErrInvalidValue, input)
}

func atClock(d time.Time, hourStr, minStr string) (time.Time, error) {
	hour, _ := strconv.Atoi(hourStr)
	minute, _ := strconv.Atoi(minStr)
	if hour > 23 || minute > 59 {
		return time.Time{}, fmt.Errorf("%w: %s:%s is not a valid time", ErrInvalidValue, hourStr, minStr)
	}
	return d.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute), nil
}

// ParseRange decodes a stored timerange value.
func ParseRange(value string) (Range, error) {
	parts := strings.SplitN(value, rangeSep, 2)
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(parts[0]))
	if err != nil {
		return Range{}, fmt.Errorf("%w: bad range start: %v", ErrInvalidValue, err)
	}
	if len(parts) == 1 {
		return Range{Start: start, End: start}, nil
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(parts[1]))
	if err != nil {
		return Range{}, fmt.Errorf("%w: bad range end: %v", ErrInvalidValue, err)
	}
	if end.Before(start) {
		return Range{}, fmt.Errorf("%w: range ends before it starts", ErrInvalidValue)
	}
	return Range{Start: start, End: end}, nil
}

// Display renders a stored value for humans. Values that fail to decode are
// returned unchanged.
func Display(f Format, value string) string {
	if value == "" {
		return ""
	}
	switch f {
	case Date:
		t, err := time.Parse(dateLayout, value)
		if err != nil {
			return value
		}
		return t.Format(displayDate)
	case TimeRange:
		r, err := ParseRange(value)
		if err != nil {
			return value
		}
		start, end := r.Start.UTC(), r.End.UTC()
		if start.Equal(end) {
			return start.Format(displayInstant)
		}
		if sameDay(start, end) {
			return start.Format(displayRange) + "-" + end.Format(displayTime)
		}
		return start.Format(displayRange) + " - " + end.Format(displayRange)
	default:
		return value
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
