// Package anchors computes the line ranges cited for each packed file.
//
// An anchor is a 1-indexed inclusive (start, end) pair. Anchors depend only
// on a file's lines and the requested window, so they stay stable across
// runs for unchanged content.
package anchors

import (
	"fmt"
	"regexp"
	"strings"
)

// Anchor labels.
const (
	LabelFull   = "full"
	LabelHead   = "head"
	LabelMiddle = "middle"
	LabelTail   = "tail"
)

// Anchor is a cited line range.
type Anchor struct {
	Start int
	End   int
	Label string
}

// Len returns the number of lines covered.
func (a Anchor) Len() int {
	return a.End - a.Start + 1
}

// String renders the citation marker used in packs.
func (a Anchor) String() string {
	return fmt.Sprintf("(lines %d–%d)", a.Start, a.End)
}

// Window is a head/middle/tail allowance in lines.
type Window struct {
	Head int
	Mid  int
	Tail int
}

// Sum returns H+M+T.
func (w Window) Sum() int {
	return w.Head + w.Mid + w.Tail
}

// Scale returns w scaled by num/den, never below floor.
func (w Window) Scale(num, den int, floor Window) Window {
	scale := func(v, min int) int {
		v = v * num / den
		if v < min {
			return min
		}
		return v
	}
	return Window{
		Head: scale(w.Head, floor.Head),
		Mid:  scale(w.Mid, floor.Mid),
		Tail: scale(w.Tail, floor.Tail),
	}
}

// MiddleFunc picks the first line of a middle window of the given size.
// The result must lie in [lo, hi-size+1].
type MiddleFunc func(lines []string, size, lo, hi int) int

// Full returns the single anchor covering a file of lineCount lines, or nil
// for an empty file.
func Full(lineCount int) []Anchor {
	if lineCount <= 0 {
		return nil
	}
	return []Anchor{{Start: 1, End: lineCount, Label: LabelFull}}
}

// Build returns head, middle and tail anchors for lines. When the file is
// not longer than H+M+T it degrades to a single full anchor.
func Build(lines []string, w Window, middle MiddleFunc) []Anchor {
	total := len(lines)
	if total == 0 {
		return nil
	}
	if w.Head < 1 || w.Mid < 1 || w.Tail < 1 || w.Sum() >= total {
		return Full(total)
	}
	if middle == nil {
		middle = Center
	}

	// Middle must sit strictly between head and tail.
	lo, hi := w.Head+1, total-w.Tail
	start := clamp(middle(lines, w.Mid, lo, hi), lo, hi-w.Mid+1)

	return []Anchor{
		{Start: 1, End: w.Head, Label: LabelHead},
		{Start: start, End: start + w.Mid - 1, Label: LabelMiddle},
		{Start: total - w.Tail + 1, End: total, Label: LabelTail},
	}
}

// IsFull reports whether anchors cover every line of the file.
func IsFull(anchors []Anchor, lineCount int) bool {
	covered := 0
	for _, a := range anchors {
		covered += a.Len()
	}
	return covered >= lineCount
}

// Gaps returns the ranges of lines not covered by anchors, in order.
func Gaps(anchors []Anchor, lineCount int) []Anchor {
	var gaps []Anchor
	next := 1
	for _, a := range anchors {
		if a.Start > next {
			gaps = append(gaps, Anchor{Start: next, End: a.Start - 1})
		}
		next = a.End + 1
	}
	if next <= lineCount {
		gaps = append(gaps, Anchor{Start: next, End: lineCount})
	}
	return gaps
}

// Validate checks that every anchor lies within the file and that anchors
// are ordered and disjoint.
func Validate(anchors []Anchor, lineCount int) error {
	prevEnd := 0
	for _, a := range anchors {
		if a.Start < 1 || a.Start > a.End || a.End > lineCount {
			return fmt.Errorf("anchor %s out of range for %d lines", a, lineCount)
		}
		if a.Start <= prevEnd {
			return fmt.Errorf("anchor %s overlaps previous anchor ending at %d", a, prevEnd)
		}
		prevEnd = a.End
	}
	return nil
}

// Center places the window around the middle of the file.
func Center(lines []string, size, lo, hi int) int {
	return (len(lines)-size)/2 + 1
}

var definitionRe = regexp.MustCompile(`^(\s*)(?:export\s+(?:default\s+)?)?(?:pub(?:\([\w:]+\))?\s+)?(?:async\s+)?(?:def|class|func|function|fn|interface|struct|impl|module)\b`)

// LargestDefinition places the window at the start of the largest
// definition block (function, class, ...), falling back to Center when the
// file has no recognizable definitions.
func LargestDefinition(lines []string, size, lo, hi int) int {
	type block struct{ start, end, indent int }
	var blocks []block

	for i, line := range lines {
		m := definitionRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		indent := len(m[1])
		// Close every open block at the same or deeper indentation.
		for j := range blocks {
			if blocks[j].end == 0 && blocks[j].indent >= indent {
				blocks[j].end = i
			}
		}
		blocks = append(blocks, block{start: i + 1, indent: indent})
	}
	if len(blocks) == 0 {
		return Center(lines, size, lo, hi)
	}

	best := -1
	bestLen := 0
	for i, b := range blocks {
		end := b.end
		if end == 0 {
			end = lastNonBlank(lines)
		}
		if n := end - b.start + 1; n > bestLen {
			best, bestLen = i, n
		}
	}
	return blocks[best].start
}

func lastNonBlank(lines []string) int {
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return i + 1
		}
	}
	return len(lines)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
