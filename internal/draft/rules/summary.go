package rules

import "strings"

// NotInformed is rendered for fields without a value.
const NotInformed = "(não informado)"

// Section is one labelled line of a draft summary. Value must be free of side
// effects and cope with a partially filled draft; "" means not informed.
type Section[D any] struct {
	Label string
	Value func(D) string
}

// BuildSummary renders one "- label: value" line per section, preceded by
// title when it is not empty.
func BuildSummary[D any](title string, d D, sections []Section[D]) string {
	lines := make([]string, 0, len(sections)+1)
	if title != "" {
		lines = append(lines, title)
	}
	for _, s := range sections {
		v := ""
		if s.Value != nil {
			v = s.Value(d)
		}
		if v == "" {
			v = NotInformed
		}
		lines = append(lines, "- "+s.Label+": "+v)
	}
	return strings.Join(lines, "\n")
}
