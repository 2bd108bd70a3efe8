package forms

import "strings"

// SourceOrder lists canonical scraper source slugs, one per taxonomy member.
var SourceOrder = []string{
	"form3",
	"form4",
	"schedule13d",
	"form13f",
	"form8k",
	"form10k",
	"congress",
}

// SourceLabels maps source slugs to display labels.
var SourceLabels = map[string]string{
	"form3":       "Form 3",
	"form4":       "Form 4",
	"schedule13d": "Schedule 13D",
	"form13f":     "Form 13F",
	"form8k":      "Form 8-K",
	"form10k":     "Form 10-K",
	"congress":    "Congress",
}

// sourcePrefixes maps source slugs to the canonical form prefix they select.
var sourcePrefixes = map[string]string{
	"form3":       "FORM 3",
	"form4":       "FORM 4",
	"schedule13d": "SCHEDULE 13D",
	"form13f":     "FORM 13F",
	"form8k":      "FORM 8-K",
	"form10k":     "FORM 10-K",
	"congress":    "CONGRESS",
}

var sourceAliases = map[string]string{
	"congress":     "congress",
	"insider":      "form4",
	"form3":        "form3",
	"form 3":       "form3",
	"3":            "form3",
	"form4":        "form4",
	"form 4":       "form4",
	"schedule13d":  "schedule13d",
	"schedule 13d": "schedule13d",
	"13d":          "schedule13d",
	"form13f":      "form13f",
	"form 13f":     "form13f",
	"13f":          "form13f",
	"form8k":       "form8k",
	"form 8-k":     "form8k",
	"8k":           "form8k",
	"8-k":          "form8k",
	"form10k":      "form10k",
	"form 10-k":    "form10k",
	"10k":          "form10k",
	"10-k":         "form10k",
}

// NormalizeSource maps a free-form source value to a canonical source slug,
// or "" when it matches none.
func NormalizeSource(value any) string {
	raw, ok := stringify(value)
	if !ok {
		return ""
	}
	candidate := strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(raw))), " ")
	if candidate == "" {
		return ""
	}
	mapped, ok := sourceAliases[candidate]
	if !ok {
		mapped = candidate
	}
	if _, ok := SourceLabels[mapped]; ok {
		return mapped
	}
	return ""
}

// SourcePrefix returns the canonical form prefix selected by a source slug.
func SourcePrefix(source string) string {
	return sourcePrefixes[source]
}

// InferSource derives a source slug from a form label. Congress is excluded
// from the direct alias path: a raw form string is an SEC label, never a
// congressional feed marker.
func InferSource(value any) string {
	raw, ok := stringify(value)
	if !ok {
		return ""
	}
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}

	if direct := NormalizeSource(text); direct != "" && direct != "congress" {
		return direct
	}

	t := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	t = strings.ReplaceAll(t, "–", "-")
	t = strings.ReplaceAll(t, "—", "-")

	switch {
	case re13D.MatchString(t):
		return "schedule13d"
	case re13F.MatchString(t):
		return "form13f"
	case re8K.MatchString(t):
		return "form8k"
	case re10K.MatchString(t):
		return "form10k"
	case re3.MatchString(t):
		return "form3"
	case re4.MatchString(t):
		return "form4"
	}
	return ""
}
