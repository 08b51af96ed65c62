// internal/merge/lines.go
package merge

import "bytes"

// SplitLines breaks content into lines, each keeping its own line
// ending. The final line is included even when it has no ending.
func SplitLines(content []byte) [][]byte {
	if len(content) == 0 {
		return nil
	}
	lines := bytes.SplitAfter(content, []byte("\n"))
	if len(lines) > 0 && len(lines[len(lines)-1]) == 0 {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// JoinLines is the inverse of SplitLines.
func JoinLines(lines [][]byte) []byte {
	var size int
	for _, line := range lines {
		size += len(line)
	}
	out := make([]byte, 0, size)
	for _, line := range lines {
		out = append(out, line...)
	}
	return out
}

// LineEnding reports the ending style of a set of lines, judged from
// the first line: "\r\n" when it ends that way, "\n" otherwise.
func LineEnding(lines [][]byte) string {
	if len(lines) > 0 && bytes.HasSuffix(lines[0], []byte("\r\n")) {
		return "\r\n"
	}
	return "\n"
}

// Normalize rewrites content so every line break uses ending. Lone \r,
// \n and \r\n breaks are all recognized. A missing final ending stays
// missing.
func Normalize(content []byte, ending string) []byte {
	if len(content) == 0 {
		return content
	}
	var (
		out  = make([]byte, 0, len(content)+len(content)/16)
		line []byte
	)
	flush := func(terminated bool) {
		out = append(out, line...)
		if terminated {
			out = append(out, ending...)
		}
		line = line[:0]
	}
	for i := 0; i < len(content); i++ {
		switch content[i] {
		case '\n':
			flush(true)
		case '\r':
			if i+1 < len(content) && content[i+1] == '\n' {
				i++
			}
			flush(true)
		default:
			line = append(line, content[i])
		}
	}
	if len(line) > 0 {
		flush(false)
	}
	return out
}
