// Package forms normalizes free-form filing labels into a small closed
// taxonomy. The same functions run at ingestion time and at query time;
// filters and stored data must agree on the taxonomy or lookups silently
// miss rows.
package forms

import (
	"regexp"
	"strconv"
	"strings"
)

// PrefixOrder is the canonical taxonomy, in matching priority order.
var PrefixOrder = []string{
	"FORM 3",
	"FORM 4",
	"SCHEDULE 13D",
	"FORM 13F",
	"FORM 8-K",
	"FORM 10-K",
	"CONGRESS",
}

// Labels maps canonical prefixes to display labels.
var Labels = map[string]string{
	"FORM 3":       "Form 3",
	"FORM 4":       "Form 4",
	"SCHEDULE 13D": "Schedule 13D",
	"FORM 13F":     "Form 13F",
	"FORM 8-K":     "Form 8-K",
	"FORM 10-K":    "Form 10-K",
	"CONGRESS":     "Congress",
}

var (
	reAmend = regexp.MustCompile(`\b(?:amend(?:ment)?|a)\b`)
	re13D   = regexp.MustCompile(`\b13\s*d\b`)
	re13F   = regexp.MustCompile(`\b13\s*f\b`)
	re8K    = regexp.MustCompile(`\b8\s*-?\s*k\b`)
	re10K   = regexp.MustCompile(`\b10\s*-?\s*k\b`)
	re3     = regexp.MustCompile(`\b3\b`)
	re4     = regexp.MustCompile(`\b4\b`)
)

// Normalize maps a raw form/type value to a canonical taxonomy label.
// Unmatched non-empty strings pass through (upper-cased when they carry a
// "form "/"schedule " prefix) so unanticipated labels survive verbatim.
// Booleans and non-string-like values yield "".
func Normalize(value any) string {
	raw, ok := stringify(value)
	if !ok {
		return ""
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	t := strings.Join(strings.Fields(strings.ToLower(raw)), " ")
	t = strings.ReplaceAll(t, "–", "-")
	t = strings.ReplaceAll(t, "—", "-")

	if strings.Contains(t, "congress") {
		return "CONGRESS"
	}

	amendment := ""
	if reAmend.MatchString(t) || strings.Contains(t, "/a") || strings.Contains(t, "-a") {
		amendment = "/A"
	}

	switch {
	case re13D.MatchString(t):
		return "SCHEDULE 13D" + amendment
	case re13F.MatchString(t):
		return "FORM 13F" + amendment
	case re8K.MatchString(t):
		return "FORM 8-K" + amendment
	case re10K.MatchString(t):
		return "FORM 10-K" + amendment
	case re3.MatchString(t):
		return "FORM 3" + amendment
	case re4.MatchString(t):
		return "FORM 4" + amendment
	}

	if strings.HasPrefix(t, "form ") || strings.HasPrefix(t, "schedule ") {
		return strings.ToUpper(raw)
	}
	return raw
}

// Prefix resolves a stored form string to its canonical taxonomy prefix, or
// "" when it belongs to none. Legacy unhyphenated variants ("FORM 8K",
// "FORM 13D") still resolve.
func Prefix(form string) string {
	text := strings.ToUpper(strings.TrimSpace(form))
	if text == "" {
		return ""
	}
	for _, prefix := range PrefixOrder {
		if strings.HasPrefix(text, prefix) {
			return prefix
		}
	}
	switch {
	case strings.HasPrefix(text, "FORM 8K"):
		return "FORM 8-K"
	case strings.HasPrefix(text, "FORM 10K"):
		return "FORM 10-K"
	case strings.HasPrefix(text, "FORM 13D"):
		return "SCHEDULE 13D"
	case strings.HasPrefix(text, "FORM 13F"):
		return "FORM 13F"
	case strings.HasPrefix(text, "FORM 3"):
		return "FORM 3"
	case strings.HasPrefix(text, "FORM 4"):
		return "FORM 4"
	case strings.HasPrefix(text, "SCHEDULE 13D"):
		return "SCHEDULE 13D"
	case strings.HasPrefix(text, "CONGRESS"):
		return "CONGRESS"
	}
	return ""
}

func stringify(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case bool:
		return "", false
	case string:
		return v, true
	case float64:
		return strconv.FormatInt(int64(v), 10), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	default:
		// json.Number and friends.
		if s, ok := value.(interface{ String() string }); ok {
			return s.String(), true
		}
		return "", false
	}
}
