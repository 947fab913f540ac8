package tasks

import (
	"regexp"
	"strings"
)

var (
	bulletPattern   = regexp.MustCompile(`^(\s*)([-*])(\s*)\[([ xX])\](\s*)(.+)$`)
	numberedPattern = regexp.MustCompile(`^(\s*)(\d+\.)(\s*)\[([ xX])\](\s*)(.+)$`)
	completedMarker = regexp.MustCompile(`(\s*)<!--\s*completed:\s*(\d{4}-\d{2}-\d{2})\s*-->\s*$`)
)

// DateLayout is the format of the completion marker date.
const DateLayout = "2006-01-02"

// Checkbox is the decomposed form of a checkbox line. Lines round-trip
// byte-for-byte through ParseCheckboxLine and RenderCheckboxLine as long as
// only Completed and CompletedOn are changed.
type Checkbox struct {
	Indent      string
	Marker      string // "-", "*" or "N."
	Completed   bool
	Description string // visible text without the completion marker
	CompletedOn string // YYYY-MM-DD, empty when the line carries no marker

	parsed    bool
	gap       string // between Marker and "["
	mark      byte
	sep       string // between "]" and Description
	markerRaw string // original marker text including its leading space
	markerOn  string // CompletedOn at parse time
}

// ParseCheckboxLine decomposes a single line without its line terminator.
// Lines that are not checkboxes return false.
func ParseCheckboxLine(line string) (Checkbox, bool) {
	m := bulletPattern.FindStringSubmatch(line)
	if m == nil {
		m = numberedPattern.FindStringSubmatch(line)
	}
	if m == nil {
		return Checkbox{}, false
	}

	cb := Checkbox{
		Indent:    m[1],
		Marker:    m[2],
		gap:       m[3],
		mark:      m[4][0],
		Completed: m[4] != " ",
		sep:       m[5],
		parsed:    true,
	}

	text := m[6]
	if loc := completedMarker.FindStringSubmatchIndex(text); loc != nil {
		cb.markerRaw = text[loc[0]:]
		cb.CompletedOn = text[loc[4]:loc[5]]
		cb.markerOn = cb.CompletedOn
		text = text[:loc[0]]
	}
	cb.Description = text
	return cb, true
}

// RenderCheckboxLine is the inverse of ParseCheckboxLine.
func RenderCheckboxLine(cb Checkbox) string {
	gap, sep := " ", " "
	if cb.parsed {
		gap, sep = cb.gap, cb.sep
	}

	mark := byte(' ')
	if cb.Completed {
		mark = 'x'
		if cb.parsed && cb.mark != ' ' {
			mark = cb.mark
		}
	}

	var b strings.Builder
	b.WriteString(cb.Indent)
	b.WriteString(cb.Marker)
	b.WriteString(gap)
	b.WriteByte('[')
	b.WriteByte(mark)
	b.WriteByte(']')
	b.WriteString(sep)
	b.WriteString(cb.Description)

	switch {
	case cb.CompletedOn == "":
	case cb.parsed && cb.markerRaw != "" && cb.CompletedOn == cb.markerOn:
		b.WriteString(cb.markerRaw)
	default:
		b.WriteString(" <!-- completed: ")
		b.WriteString(cb.CompletedOn)
		b.WriteString(" -->")
	}
	return b.String()
}

// SetCompleted rewrites the checkbox state of line. A non-empty stamp is
// written as the completion marker when completing; unchecking always drops
// the marker. The second result is false when line is not a checkbox.
func SetCompleted(line string, completed bool, stamp string) (string, bool) {
	cb, ok := ParseCheckboxLine(line)
	if !ok {
		return line, false
	}
	if cb.Completed == completed {
		return line, true
	}

	cb.Completed = completed
	if completed {
		if stamp != "" {
			cb.CompletedOn = stamp
		}
	} else {
		cb.CompletedOn = ""
	}
	return RenderCheckboxLine(cb), true
}
