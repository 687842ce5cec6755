package writing

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MentionMarker switches a general session into agent mode when typed.
const MentionMarker = "@"

// HasMention reports whether input addresses an agent. Input is NFKC
// normalized first so the full-width ＠ produced by CJK input methods counts.
func HasMention(input string) bool {
	return strings.Contains(norm.NFKC.String(input), MentionMarker)
}

// InitialValues returns the form values to show for fields: the saved value
// when present, else the field default, else "".
func InitialValues(fields []Field, saved map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := saved[f.Key]; ok && v != nil {
			out[f.Key] = v
			continue
		}
		if f.Default != nil {
			out[f.Key] = f.Default
			continue
		}
		out[f.Key] = ""
	}
	return out
}

// DefaultValues ignores saved values and returns the form reset state.
func DefaultValues(fields []Field) map[string]any {
	return InitialValues(fields, nil)
}

// MissingRequired returns the fields whose value is absent or blank. Every
// field of an agent form is required.
func MissingRequired(fields []Field, values map[string]any) []Field {
	var missing []Field
	for _, f := range fields {
		v, ok := values[f.Key]
		if !ok || v == nil {
			missing = append(missing, f)
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// Labels joins the labels of fields for display.
func Labels(fields []Field) string {
	labels := make([]string, len(fields))
	for i, f := range fields {
		labels[i] = f.Label
	}
	return strings.Join(labels, ", ")
}
