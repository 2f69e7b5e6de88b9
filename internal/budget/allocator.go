package budget

import (
	"sort"

	"github.com/Benny93/contexter-go/internal/anchors"
)

// Retention is the per-file outcome of allocation.
type Retention string

const (
	Full      Retention = "full"
	Truncated Retention = "truncated"
	Omitted   Retention = "omitted"
)

// Rank orders retentions: full > truncated > omitted.
func (r Retention) Rank() int {
	switch r {
	case Full:
		return 2
	case Truncated:
		return 1
	default:
		return 0
	}
}

// Level is one rung of a file's retention ladder.
type Level struct {
	Anchors   []anchors.Anchor
	Retention Retention

	// Cost is the weight of the file's rendered section at this level.
	Cost int
}

// Plan is the ladder of levels a file can be granted, cheapest first. The
// last level is always full retention.
type Plan struct {
	Path   string
	Levels []Level
}

// Decision is the allocator's choice for one file.
type Decision struct {
	Path      string
	Retention Retention
	Anchors   []anchors.Anchor

	// Level is the index into the plan's ladder, or -1 when omitted.
	Level int
	Cost  int
}

// Allocation is the result of Allocate, with decisions in input order.
type Allocation struct {
	Decisions []Decision
	Budget    int
	Used      int
}

// Truncated reports whether any file is not fully retained.
func (a Allocation) Truncated() bool {
	for _, d := range a.Decisions {
		if d.Retention != Full {
			return true
		}
	}
	return false
}

// Paths returns the files with the given retention, in input order.
func (a Allocation) Paths(r Retention) []string {
	var out []string
	for _, d := range a.Decisions {
		if d.Retention == r {
			out = append(out, d.Path)
		}
	}
	return out
}

// Count returns how many files have the given retention.
func (a Allocation) Count(r Retention) int {
	n := 0
	for _, d := range a.Decisions {
		if d.Retention == r {
			n++
		}
	}
	return n
}

// NormalizeLevels drops truncated rungs that cost as much as a later rung,
// so costs strictly increase along the ladder and full stays last.
func NormalizeLevels(levels []Level) []Level {
	if len(levels) == 0 {
		return nil
	}
	kept := []Level{levels[len(levels)-1]}
	for i := len(levels) - 2; i >= 0; i-- {
		if levels[i].Cost < kept[0].Cost {
			kept = append([]Level{levels[i]}, kept...)
		}
	}
	return kept
}

type step struct {
	file  int
	level int
}

// Allocate grants retention levels within budget.
//
// Files are upgraded along one fixed chain: first every file, in priority
// order, receives its cheapest level; then each file, in priority order,
// climbs the rest of its ladder up to full. The longest prefix of the chain
// that fits the budget is applied. Priority order is given by order, a
// permutation of plan indexes.
//
// Because the chain does not depend on the budget, lowering the budget can
// only shorten the applied prefix, so no file's retention ever improves
// when the ceiling shrinks.
func Allocate(plans []Plan, order []int, budget int) Allocation {
	alloc := Allocation{
		Decisions: make([]Decision, len(plans)),
		Budget:    budget,
	}
	for i, p := range plans {
		alloc.Decisions[i] = Decision{Path: p.Path, Retention: Omitted, Level: -1}
	}

	var chain []step
	for _, i := range order {
		if len(plans[i].Levels) > 0 {
			chain = append(chain, step{file: i, level: 0})
		}
	}
	for _, i := range order {
		for l := 1; l < len(plans[i].Levels); l++ {
			chain = append(chain, step{file: i, level: l})
		}
	}

	used := 0
	for _, s := range chain {
		d := &alloc.Decisions[s.file]
		lvl := plans[s.file].Levels[s.level]
		delta := lvl.Cost - d.Cost
		if used+delta > budget {
			break
		}
		used += delta
		d.Level = s.level
		d.Retention = lvl.Retention
		d.Anchors = lvl.Anchors
		d.Cost = lvl.Cost
	}

	alloc.Used = used
	return alloc
}

// Order returns the priority order of files. With centrality weighting,
// files with more dependency edges come first; ties keep path order.
// Without it, the order is the input (path) order.
func Order(paths []string, degree map[string]int) []int {
	order := make([]int, len(paths))
	for i := range order {
		order[i] = i
	}
	if degree == nil {
		return order
	}
	sort.SliceStable(order, func(a, b int) bool {
		da, db := degree[paths[order[a]]], degree[paths[order[b]]]
		if da != db {
			return da > db
		}
		return paths[order[a]] < paths[order[b]]
	})
	return order
}
