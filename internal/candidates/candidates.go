package candidates

import (
	"strings"
)

// List is the ordered set of entrants for one draw. Duplicates are kept:
// a name entered twice is two entries.
type List []string

func isLineBreak(r rune) bool {
	return r == '\n' || r == '\r'
}

// Normalize turns raw multi-line input into a List: one entry per line,
// trimmed, blank lines dropped, order preserved. Never returns nil.
func Normalize(raw string) List {
	out := List{}
	for _, line := range strings.FieldsFunc(raw, isLineBreak) {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		out = append(out, name)
	}
	return out
}

// Count is len(Normalize(raw)) without building the list.
func Count(raw string) int {
	n := 0
	for len(raw) > 0 {
		i := strings.IndexFunc(raw, isLineBreak)
		line := raw
		if i >= 0 {
			line = raw[:i]
			raw = raw[i+1:]
		} else {
			raw = ""
		}
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

// Contains reports whether name is one of the entries.
func (l List) Contains(name string) bool {
	for _, c := range l {
		if c == name {
			return true
		}
	}
	return false
}
