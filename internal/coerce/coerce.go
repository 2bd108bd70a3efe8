// Package coerce parses loosely-typed JSON values from heterogeneous
// scrapers. Every function returns a tri-state Value instead of an error:
// missing data is silent (Absent), corrupted data is loud (Invalid). That
// asymmetry lets producers omit fields freely while malformed payloads still
// surface per item.
//
// Callers are expected to decode request bodies with json.Decoder.UseNumber
// so numeric literals arrive as json.Number and keep their exact digits.
package coerce

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status classifies a coercion outcome.
type Status int

const (
	// Absent means the field was not provided (null, empty string, or a
	// type that cannot carry the value).
	Absent Status = iota
	// OK means the value parsed.
	OK
	// Invalid means a non-empty value failed to parse; the item must be
	// rejected, not silently dropped.
	Invalid
)

// Value is the tri-state result of a coercion.
type Value[T any] struct {
	Status Status
	Val    T
	Reason string
}

// Ptr returns the parsed value as a pointer, or nil unless Status is OK.
func (v Value[T]) Ptr() *T {
	if v.Status != OK {
		return nil
	}
	val := v.Val
	return &val
}

func absent[T any]() Value[T] {
	return Value[T]{Status: Absent}
}

func ok[T any](val T) Value[T] {
	return Value[T]{Status: OK, Val: val}
}

func invalid[T any](reason string) Value[T] {
	return Value[T]{Status: Invalid, Reason: reason}
}

// Str coerces to a trimmed string. Numbers are stringified; booleans and
// other types never coerce (a common JSON foot-gun); empty results are
// Absent. Str never returns Invalid.
func Str(value any) Value[string] {
	switch v := value.(type) {
	case nil:
		return absent[string]()
	case bool:
		return absent[string]()
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return ok(s)
		}
		return absent[string]()
	case float64:
		return ok(strconv.FormatFloat(v, 'f', -1, 64))
	case interface{ String() string }:
		// json.Number keeps the literal digits.
		return ok(v.String())
	default:
		return absent[string]()
	}
}

// Int coerces to int64. Decimal strings are truncated toward zero; comma
// separators are stripped.
func Int(value any) Value[int64] {
	switch v := value.(type) {
	case nil:
		return absent[int64]()
	case bool:
		return invalid[int64]("booleans are not integers")
	case float64:
		return ok(int64(v))
	case int:
		return ok(int64(v))
	case int64:
		return ok(v)
	case string:
		return parseIntString(v)
	case interface{ String() string }:
		return parseIntString(v.String())
	default:
		return invalid[int64]("expected an integer")
	}
}

func parseIntString(s string) Value[int64] {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return absent[int64]()
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ok(n)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return invalid[int64]("invalid integer value")
	}
	return ok(d.IntPart())
}

// Decimal coerces to an exact decimal. Comma separators are stripped.
func Decimal(value any) Value[decimal.Decimal] {
	switch v := value.(type) {
	case nil:
		return absent[decimal.Decimal]()
	case bool:
		return invalid[decimal.Decimal]("booleans are not numbers")
	case float64:
		return ok(decimal.NewFromFloat(v))
	case string:
		return parseDecimalString(v)
	case interface{ String() string }:
		return parseDecimalString(v.String())
	default:
		return invalid[decimal.Decimal]("expected a number")
	}
}

func parseDecimalString(s string) Value[decimal.Decimal] {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return absent[decimal.Decimal]()
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return invalid[decimal.Decimal]("invalid decimal value")
	}
	return ok(d)
}

// Date coerces an ISO-8601 calendar date (YYYY-MM-DD), tolerating "/" as the
// separator.
func Date(value any) Value[time.Time] {
	if value == nil {
		return absent[time.Time]()
	}
	s, isStr := value.(string)
	if !isStr {
		return invalid[time.Time]("expected YYYY-MM-DD")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return absent[time.Time]()
	}
	s = strings.ReplaceAll(s, "/", "-")
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return invalid[time.Time]("expected YYYY-MM-DD")
	}
	return ok(t)
}

var dateTimeLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// DateTime coerces an ISO-8601 datetime. A trailing literal "Z" is treated
// as "+00:00"; timestamps without an offset are taken as UTC.
func DateTime(value any) Value[time.Time] {
	if value == nil {
		return absent[time.Time]()
	}
	s, isStr := value.(string)
	if !isStr {
		return invalid[time.Time]("expected ISO datetime")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return absent[time.Time]()
	}
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ok(t)
		}
	}
	return invalid[time.Time]("expected ISO datetime")
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases a name and collapses every non-alphanumeric run into a
// single dash.
func Slugify(value string) string {
	s := strings.ToLower(strings.TrimSpace(value))
	s = slugRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
