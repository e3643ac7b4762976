// Package diff computes line-level edit scripts between two text blobs.
// It is a total, deterministic function over all string inputs: no errors,
// no side effects, and identical inputs always yield identical results.
package diff

import "strings"

// Op tags a segment as added, removed, or unchanged.
type Op string

const (
	// OpUnchanged marks lines present in both inputs.
	OpUnchanged Op = "unchanged"
	// OpRemoved marks lines present only in the old input.
	OpRemoved Op = "removed"
	// OpAdded marks lines present only in the new input.
	OpAdded Op = "added"
)

// Segment is a contiguous run of lines sharing one op. Lines keep their
// trailing newline so concatenating segments reconstructs the inputs exactly.
type Segment struct {
	Op    Op       `json:"op"`
	Lines []string `json:"lines"`
}

// Result is an ordered edit script. Every line of both inputs appears in
// exactly one segment: unchanged lines once, removed lines from the old
// text, added lines from the new text.
type Result struct {
	Segments []Segment `json:"segments"`
}

// Compute produces the minimal line-level edit script from oldText to
// newText using a longest-common-subsequence alignment.
func Compute(oldText, newText string) Result {
	oldLines := SplitLines(oldText)
	newLines := SplitLines(newText)

	m, n := len(oldLines), len(newLines)

	// lcs[i][j] holds the LCS length of oldLines[i:] and newLines[j:].
	lcs := make([][]int, m+1)
	for i := range lcs {
		lcs[i] = make([]int, n+1)
	}
	for i := m - 1; i >= 0; i-- {
		for j := n - 1; j >= 0; j-- {
			if oldLines[i] == newLines[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var b builder
	i, j := 0, 0
	for i < m && j < n {
		switch {
		case oldLines[i] == newLines[j]:
			b.append(OpUnchanged, oldLines[i])
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			b.append(OpRemoved, oldLines[i])
			i++
		default:
			b.append(OpAdded, newLines[j])
			j++
		}
	}
	for ; i < m; i++ {
		b.append(OpRemoved, oldLines[i])
	}
	for ; j < n; j++ {
		b.append(OpAdded, newLines[j])
	}

	return Result{Segments: b.segments}
}

// SplitLines splits text into lines, each keeping its trailing newline.
// The empty string yields no lines; a trailing newline does not produce a
// phantom empty line.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Identical reports whether the result contains no added or removed segments.
func (r Result) Identical() bool {
	for _, s := range r.Segments {
		if s.Op != OpUnchanged {
			return false
		}
	}
	return true
}

// Stats returns the number of added and removed lines in the result.
func (r Result) Stats() (added, removed int) {
	for _, s := range r.Segments {
		switch s.Op {
		case OpAdded:
			added += len(s.Lines)
		case OpRemoved:
			removed += len(s.Lines)
		}
	}
	return added, removed
}

// Reconstruct rebuilds both input texts from the edit script. The old text
// is the concatenation of unchanged and removed lines; the new text is the
// concatenation of unchanged and added lines.
func (r Result) Reconstruct() (oldText, newText string) {
	var oldB, newB strings.Builder
	for _, s := range r.Segments {
		for _, line := range s.Lines {
			switch s.Op {
			case OpUnchanged:
				oldB.WriteString(line)
				newB.WriteString(line)
			case OpRemoved:
				oldB.WriteString(line)
			case OpAdded:
				newB.WriteString(line)
			}
		}
	}
	return oldB.String(), newB.String()
}

// builder accumulates lines into segments, merging consecutive lines that
// share an op.
type builder struct {
	segments []Segment
}

func (b *builder) append(op Op, line string) {
	if n := len(b.segments); n > 0 && b.segments[n-1].Op == op {
		b.segments[n-1].Lines = append(b.segments[n-1].Lines, line)
		return
	}
	b.segments = append(b.segments, Segment{Op: op, Lines: []string{line}})
}
