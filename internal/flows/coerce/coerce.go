// Package coerce turns loosely typed chat input into the canonical values the
// business APIs expect.
package coerce

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	ErrAmount = errors.New("invalid amount")
	ErrDate   = errors.New("invalid date")
	ErrTime   = errors.New("invalid time")
)

// ISODate is the layout dates are sent to the API in.
const ISODate = "2006-01-02"

var dateLayouts = []string{
	ISODate,
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02.01.2006",
	"02/01/06",
	time.RFC3339,
}

// Amount accepts numbers and Brazilian or plain formatted strings such as
// "150,50", "R$ 1.234,56" or "150.50".
func Amount(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		parsed, err := parseAmount(n)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%w: %v", ErrAmount, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v", ErrAmount, v)
	}
	return f, nil
}

func parseAmount(s string) (float64, error) {
	clean := strings.TrimSpace(s)
	clean = strings.TrimPrefix(strings.TrimPrefix(clean, "R$"), "r$")
	clean = strings.ReplaceAll(clean, " ", "")

	switch {
	case strings.Contains(clean, ","):
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.Replace(clean, ",", ".", 1)
	case strings.Count(clean, ".") > 1:
		clean = strings.ReplaceAll(clean, ".", "")
	case strings.Count(clean, ".") == 1 && len(clean)-strings.Index(clean, ".")-1 == 3:
		// "1.500" is fifteen hundred
		clean = strings.ReplaceAll(clean, ".", "")
	}

	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrAmount, s)
	}
	return f, nil
}

// Date returns s as an ISO date. Day-first layouts are accepted.
func Date(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(ISODate), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrDate, s)
}

// Clock returns s as HH:MM. Accepts "9:30", "09:30:00", "9h" and "9h30".
func Clock(s string) (string, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	raw = strings.TrimSuffix(raw, "min")
	raw = strings.Replace(raw, "h", ":", 1)

	parts := strings.Split(raw, ":")
	if len(parts) < 1 || len(parts) > 3 {
		return "", fmt.Errorf("%w: %q", ErrTime, s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrTime, s)
	}
	minute := 0
	if len(parts) > 1 && parts[1] != "" {
		if minute, err = strconv.Atoi(parts[1]); err != nil {
			return "", fmt.Errorf("%w: %q", ErrTime, s)
		}
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return "", fmt.Errorf("%w: %q", ErrTime, s)
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

// Text trims s and reports whether anything is left.
func Text(s string) (string, bool) {
	s = strings.Join(strings.Fields(s), " ")
	return s, s != ""
}

// IsISODate reports whether v is a date already in ISODate form.
func IsISODate(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	_, err := time.Parse(ISODate, s)
	return err == nil
}

// IsClock reports whether v is a time already in HH:MM form.
func IsClock(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	_, err := time.Parse("15:04", s)
	return err == nil
}

// DisplayDate renders an ISO date day first. Anything else is returned as is.
func DisplayDate(iso string) string {
	if !IsISODate(iso) {
		return iso
	}
	return iso[8:10] + "/" + iso[5:7] + "/" + iso[0:4]
}

// Nullable maps an empty string to nil so a cleared field is sent as JSON null.
func Nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
