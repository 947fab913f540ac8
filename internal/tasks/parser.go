package tasks

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/gosimple/slug"
)

const (
	// idPrefixLen is how many sanitized description characters feed the ID.
	idPrefixLen   = 20
	agentTodosDir = "agent-todos"
)

var (
	phaseHeading   = regexp.MustCompile(`(?i)^##\s+Phase\s+(\d+)\b`)
	sectionHeading = regexp.MustCompile(`^##\s`)
	phaseFileName  = regexp.MustCompile(`(?i)^phase-(\d+)`)
)

// ParseTasks extracts checkbox tasks from content in source order.
// filePath is used for identity and for phase/agent inference only.
func ParseTasks(filePath, content string) []Task {
	return ParseTasksAt(filePath, content, time.Now())
}

// ParseTasksAt is ParseTasks with an explicit observation time.
func ParseTasksAt(filePath, content string, at time.Time) []Task {
	filePhase := PhaseFromPath(filePath)
	agent := AgentFromPath(filePath)
	phase := filePhase

	var out []Task
	for i, line := range SplitLines(content) {
		line = strings.TrimSuffix(line, "\r")

		if n, ok := PhaseHeading(line); ok {
			phase = n
			continue
		}
		if IsSectionHeading(line) {
			phase = filePhase
			continue
		}

		cb, ok := ParseCheckboxLine(line)
		if !ok {
			continue
		}
		desc := strings.TrimSpace(cb.Description)
		out = append(out, Task{
			ID:          TaskID(filePath, i, desc),
			Description: desc,
			IsCompleted: cb.Completed,
			SourceFile:  filePath,
			LineNumber:  i + 1,
			Phase:       phase,
			Agent:       agent,
			CompletedOn: cb.CompletedOn,
			Timestamp:   at,
		})
	}
	return out
}

// PhaseHeading returns N for a "## Phase N" heading line.
func PhaseHeading(line string) (int, bool) {
	m := phaseHeading.FindStringSubmatch(strings.TrimSuffix(line, "\r"))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsSectionHeading reports whether line opens a second-level section, which
// also ends any phase section above it.
func IsSectionHeading(line string) bool {
	return sectionHeading.MatchString(line)
}

// SplitLines splits on "\n" only so that "\r" stays with its line and a
// rejoin with "\n" restores the original bytes.
func SplitLines(content string) []string {
	return strings.Split(content, "\n")
}

// TaskID derives the identity of the task at lineIndex (0-based).
func TaskID(filePath string, lineIndex int, description string) string {
	file := slug.Make(filepath.ToSlash(filePath))
	prefix := sanitizeDescription(description)
	if len(prefix) > idPrefixLen {
		prefix = prefix[:idPrefixLen]
	}

	sum := sha1.Sum([]byte(fmt.Sprintf("%s\x00%d\x00%s", file, lineIndex, prefix)))
	return fmt.Sprintf("%s-%d-%s", shortSlug(file), lineIndex, hex.EncodeToString(sum[:])[:10])
}

// sanitizeDescription lowercases and keeps letters and digits.
func sanitizeDescription(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// shortSlug keeps IDs readable when callers pass deep paths.
func shortSlug(s string) string {
	const max = 32
	if len(s) <= max {
		return s
	}
	return strings.Trim(s[len(s)-max:], "-")
}

// PhaseFromPath reads the phase number from a phase-N*.md file name.
func PhaseFromPath(filePath string) int {
	m := phaseFileName.FindStringSubmatch(filepath.Base(filePath))
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// AgentFromPath returns the agent owning an agent-todos file, either the
// directory below agent-todos/ or the file name when it sits directly in it.
func AgentFromPath(filePath string) string {
	parts := strings.Split(filepath.ToSlash(filePath), "/")
	for i, p := range parts {
		if p != agentTodosDir || i+1 >= len(parts) {
			continue
		}
		if i+2 == len(parts) {
			return strings.TrimSuffix(parts[i+1], path.Ext(parts[i+1]))
		}
		return parts[i+1]
	}
	return ""
}
