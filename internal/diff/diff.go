package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

type Line struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	OldLine int    `json:"old_line,omitempty"`
	NewLine int    `json:"new_line,omitempty"`
}

type Hunk struct {
	OldStart int    `json:"old_start"`
	OldCount int    `json:"old_count"`
	NewStart int    `json:"new_start"`
	NewCount int    `json:"new_count"`
	Lines    []Line `json:"lines"`
}

const (
	LineContext = "context"
	LineAdded   = "added"
	LineRemoved = "removed"
)

const (
	DefaultContext = 3
	MaxDiffLines   = 5000
)

// Lines returns the full line-level diff between before and after.
func Lines(before, after string) []Line {
	enc := newLineEncoder()
	a, b := enc.encode(before), enc.encode(after)
	diffs := diffmatchpatch.New().DiffMainRunes(a, b, false)

	var lines []Line
	oldLine := 1
	newLine := 1
	for _, d := range diffs {
		for _, r := range d.Text {
			line := enc.decode(r)
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				lines = append(lines, Line{Type: LineContext, Text: line, OldLine: oldLine, NewLine: newLine})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				lines = append(lines, Line{Type: LineRemoved, Text: line, OldLine: oldLine})
				oldLine++
			case diffmatchpatch.DiffInsert:
				lines = append(lines, Line{Type: LineAdded, Text: line, NewLine: newLine})
				newLine++
			}
		}
	}
	return lines
}

// lineEncoder maps each distinct line to one rune so the character diff
// works on whole lines. go-diff's own line mode joins indices with commas and
// then diffs the digits, which misaligns any file with more than ten lines.
type lineEncoder struct {
	index map[string]rune
	lines []string
}

func newLineEncoder() *lineEncoder {
	return &lineEncoder{index: make(map[string]rune)}
}

func (e *lineEncoder) encode(text string) []rune {
	if text == "" {
		return nil
	}
	parts := strings.SplitAfter(text, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	out := make([]rune, 0, len(parts))
	for _, part := range parts {
		r, ok := e.index[part]
		if !ok {
			r = lineRune(len(e.lines))
			e.index[part] = r
			e.lines = append(e.lines, part)
		}
		out = append(out, r)
	}
	return out
}

func (e *lineEncoder) decode(r rune) string {
	idx := lineIndex(r)
	if idx < 0 || idx >= len(e.lines) {
		return ""
	}
	return strings.TrimSuffix(e.lines[idx], "\n")
}

const (
	surrogateLow  = 0xD800
	surrogateSpan = 0x800
)

// lineRune skips NUL and the UTF-16 surrogate range, which do not survive a
// string round trip.
func lineRune(idx int) rune {
	r := rune(idx) + 1
	if r >= surrogateLow {
		r += surrogateSpan
	}
	return r
}

func lineIndex(r rune) int {
	if r >= surrogateLow+surrogateSpan {
		r -= surrogateSpan
	}
	return int(r) - 1
}

// Hunks groups changed lines with up to context unchanged lines on each side.
func Hunks(before, after string, context int) []Hunk {
	if context < 0 {
		context = DefaultContext
	}
	lines := Lines(before, after)
	oldAt := make([]int, len(lines))
	newAt := make([]int, len(lines))
	oldPos, newPos := 1, 1
	for i, line := range lines {
		oldAt[i], newAt[i] = oldPos, newPos
		if line.Type != LineAdded {
			oldPos++
		}
		if line.Type != LineRemoved {
			newPos++
		}
	}

	var hunks []Hunk
	i := 0
	for i < len(lines) {
		if lines[i].Type == LineContext {
			i++
			continue
		}
		start := max(0, i-context)
		end := i
		// Extend while the next change is within two context windows.
		for end < len(lines) {
			if lines[end].Type != LineContext {
				end++
				continue
			}
			next := end
			for next < len(lines) && lines[next].Type == LineContext {
				next++
			}
			if next < len(lines) && next-end <= 2*context {
				end = next
				continue
			}
			end = min(len(lines), end+context)
			break
		}
		hunks = append(hunks, buildHunk(lines[start:end], oldAt[start], newAt[start]))
		i = end
	}
	return hunks
}

// Unified renders a unified diff with a/ and b/ headers. It returns an empty
// string when the inputs are identical.
func Unified(path, before, after string, context int) string {
	hunks := Hunks(before, after, context)
	if len(hunks) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n", path, path)
	for _, h := range hunks {
		fmt.Fprintf(&b, "@@ -%s +%s @@\n", span(h.OldStart, h.OldCount), span(h.NewStart, h.NewCount))
		for _, line := range h.Lines {
			switch line.Type {
			case LineAdded:
				b.WriteByte('+')
			case LineRemoved:
				b.WriteByte('-')
			default:
				b.WriteByte(' ')
			}
			b.WriteString(line.Text)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// UnifiedWithLimit skips rendering for inputs too large to diff interactively.
func UnifiedWithLimit(path, before, after string, maxLines int) (string, bool) {
	if maxLines <= 0 {
		maxLines = MaxDiffLines
	}
	if lineCount(before)+lineCount(after) > maxLines {
		return "", true
	}
	return Unified(path, before, after, DefaultContext), false
}

func buildHunk(lines []Line, oldStart, newStart int) Hunk {
	h := Hunk{OldStart: oldStart, NewStart: newStart, Lines: append([]Line(nil), lines...)}
	for _, line := range lines {
		if line.Type != LineAdded {
			h.OldCount++
		}
		if line.Type != LineRemoved {
			h.NewCount++
		}
	}
	if h.OldCount == 0 {
		h.OldStart--
	}
	if h.NewCount == 0 {
		h.NewStart--
	}
	return h
}

func span(start, count int) string {
	if count == 1 {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}

func lineCount(value string) int {
	if value == "" {
		return 0
	}
	return strings.Count(value, "\n") + 1
}
