// Package diff renders unified-style text diffs between two revisions
// of a file.
package diff

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Unified returns a line diff of old and new with ---/+++ headers and
// one prefixed line per input line: ' ' unchanged, '-' removed,
// '+' added.
func Unified(path string, old, new []byte) string {
	var b strings.Builder
	b.WriteString("--- a/" + path + "\n")
	b.WriteString("+++ b/" + path + "\n")

	if len(old) == 0 && len(new) == 0 {
		return b.String()
	}

	dmp := diffmatchpatch.New()
	oldChars, newChars, lineArray := dmp.DiffLinesToChars(string(old), string(new))
	diffs := dmp.DiffMain(oldChars, newChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		default:
			prefix = " "
		}
		for _, line := range splitKeepingLastEmpty(d.Text) {
			b.WriteString(prefix)
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// splitKeepingLastEmpty breaks a diff fragment into lines without their
// endings. A fragment that does not end in a newline still yields its
// final partial line.
func splitKeepingLastEmpty(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, strings.TrimSuffix(line, "\r"))
	}
	return out
}
