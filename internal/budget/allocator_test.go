package budget

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/contexter-go/internal/anchors"
)

// ladder builds a plan whose truncated rungs cost the given amounts and
// whose final full rung costs full.
func ladder(path string, full int, truncated ...int) Plan {
	p := Plan{Path: path}
	for _, c := range truncated {
		p.Levels = append(p.Levels, Level{
			Retention: Truncated,
			Cost:      c,
			Anchors:   []anchors.Anchor{{Start: 1, End: 1, Label: anchors.LabelHead}},
		})
	}
	p.Levels = append(p.Levels, Level{Retention: Full, Cost: full, Anchors: anchors.Full(10)})
	return p
}

func identity(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

func TestAllocate_EverythingFits(t *testing.T) {
	t.Parallel()

	plans := []Plan{ladder("a", 50, 10, 20), ladder("b", 30, 10), ladder("c", 5)}

	alloc := Allocate(plans, identity(3), 1000)

	for _, d := range alloc.Decisions {
		assert.Equal(t, Full, d.Retention, d.Path)
	}
	assert.False(t, alloc.Truncated())
	assert.Equal(t, 85, alloc.Used)
}

func TestAllocate_BelowSmallestFile(t *testing.T) {
	t.Parallel()

	plans := []Plan{ladder("a", 50, 10), ladder("b", 30, 12), ladder("c", 9)}

	alloc := Allocate(plans, identity(3), 8)

	assert.True(t, alloc.Truncated())
	assert.Equal(t, []string{"a", "b", "c"}, alloc.Paths(Omitted))
	assert.Equal(t, 0, alloc.Used)
}

func TestAllocate_BelowFullWeightStillTruncates(t *testing.T) {
	t.Parallel()

	plans := []Plan{ladder("a", 50, 10), ladder("b", 30, 12)}

	// Below both full weights, but each minimal window fits.
	alloc := Allocate(plans, identity(2), 25)

	assert.Equal(t, []string{"a", "b"}, alloc.Paths(Truncated))
	assert.Empty(t, alloc.Paths(Omitted))
	assert.Equal(t, 22, alloc.Used)
}

func TestAllocate_Shape(t *testing.T) {
	t.Parallel()

	plans := []Plan{
		ladder("a", 100, 10, 40),
		ladder("b", 100, 10, 40),
		ladder("c", 100, 10, 40),
		ladder("d", 100, 10, 40),
	}

	// Minimal for all (40), then a to full (+90 = 130), then b to 40 (+30 = 160).
	alloc := Allocate(plans, identity(4), 175)

	got := make([]int, len(alloc.Decisions))
	for i, d := range alloc.Decisions {
		got[i] = d.Level
	}
	assert.Equal(t, []int{2, 1, 0, 0}, got)
	assert.Equal(t, 160, alloc.Used)
	assert.Equal(t, []string{"a"}, alloc.Paths(Full))
	assert.Equal(t, 3, alloc.Count(Truncated))
}

func TestAllocate_StopsAtFirstUnaffordableStep(t *testing.T) {
	t.Parallel()

	// b's minimal level is too expensive; c must not jump ahead of it.
	plans := []Plan{ladder("a", 5), ladder("b", 500, 100), ladder("c", 5)}

	alloc := Allocate(plans, identity(3), 50)

	assert.Equal(t, Full, alloc.Decisions[0].Retention)
	assert.Equal(t, Omitted, alloc.Decisions[1].Retention)
	assert.Equal(t, Omitted, alloc.Decisions[2].Retention)
}

func TestAllocate_RespectsOrder(t *testing.T) {
	t.Parallel()

	plans := []Plan{ladder("a", 10), ladder("b", 10)}

	alloc := Allocate(plans, []int{1, 0}, 10)

	assert.Equal(t, Omitted, alloc.Decisions[0].Retention)
	assert.Equal(t, Full, alloc.Decisions[1].Retention)
}

func TestAllocate_Deterministic(t *testing.T) {
	t.Parallel()

	plans := []Plan{ladder("a", 70, 10, 30), ladder("b", 90, 20, 50), ladder("c", 40, 15)}

	first := Allocate(plans, identity(3), 120)
	second := Allocate(plans, identity(3), 120)
	assert.Equal(t, first, second)
}

func TestAllocate_MonotonicInBudget(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		var plans []Plan
		for i := 0; i < 8; i++ {
			cost := 1 + rng.Intn(20)
			var levels []int
			for l := 0; l < rng.Intn(4); l++ {
				levels = append(levels, cost)
				cost += 1 + rng.Intn(30)
			}
			plans = append(plans, ladder(string(rune('a'+i)), cost, levels...))
		}

		prev := Allocate(plans, identity(len(plans)), 0)
		for b := 1; b < 800; b += 7 {
			cur := Allocate(plans, identity(len(plans)), b)
			require.LessOrEqual(t, cur.Used, b)
			for i := range plans {
				require.GreaterOrEqual(t, cur.Decisions[i].Level, prev.Decisions[i].Level,
					"trial %d budget %d file %d", trial, b, i)
				require.GreaterOrEqual(t, cur.Decisions[i].Retention.Rank(), prev.Decisions[i].Retention.Rank())
			}
			prev = cur
		}
	}
}

func TestNormalizeLevels(t *testing.T) {
	t.Parallel()

	levels := []Level{
		{Retention: Truncated, Cost: 10},
		{Retention: Truncated, Cost: 40},
		{Retention: Truncated, Cost: 35},
		{Retention: Full, Cost: 30},
	}

	got := NormalizeLevels(levels)

	require.Len(t, got, 2)
	assert.Equal(t, 10, got[0].Cost)
	assert.Equal(t, Full, got[1].Retention)
	assert.Nil(t, NormalizeLevels(nil))
}

func TestOrder(t *testing.T) {
	t.Parallel()

	paths := []string{"a.go", "b.go", "c.go", "d.go"}

	assert.Equal(t, []int{0, 1, 2, 3}, Order(paths, nil))

	degree := map[string]int{"c.go": 5, "b.go": 2, "d.go": 2}
	assert.Equal(t, []int{2, 1, 3, 0}, Order(paths, degree))
}

func TestRetention_Rank(t *testing.T) {
	t.Parallel()

	assert.Greater(t, Full.Rank(), Truncated.Rank())
	assert.Greater(t, Truncated.Rank(), Omitted.Rank())
}
