package anchors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numbered(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i+1)
	}
	return lines
}

func TestFull(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Full(0))
	assert.Equal(t, []Anchor{{Start: 1, End: 7, Label: LabelFull}}, Full(7))
}

func TestBuild_DegradesToFull(t *testing.T) {
	t.Parallel()

	t.Run("SumEqualsLineCount", func(t *testing.T) {
		t.Parallel()
		got := Build(numbered(10), Window{Head: 4, Mid: 2, Tail: 4}, Center)
		assert.Equal(t, Full(10), got)
	})

	t.Run("ShorterThanWindow", func(t *testing.T) {
		t.Parallel()
		got := Build(numbered(5), Window{Head: 60, Mid: 40, Tail: 30}, Center)
		assert.Equal(t, Full(5), got)
	})

	t.Run("Empty", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, Build(nil, Window{Head: 1, Mid: 1, Tail: 1}, Center))
	})
}

func TestBuild_HeadMidTail(t *testing.T) {
	t.Parallel()

	got := Build(numbered(100), Window{Head: 10, Mid: 20, Tail: 10}, Center)

	require.Len(t, got, 3)
	assert.Equal(t, Anchor{Start: 1, End: 10, Label: LabelHead}, got[0])
	assert.Equal(t, Anchor{Start: 41, End: 60, Label: LabelMiddle}, got[1])
	assert.Equal(t, Anchor{Start: 91, End: 100, Label: LabelTail}, got[2])
	assert.NoError(t, Validate(got, 100))
	assert.False(t, IsFull(got, 100))
}

func TestBuild_SmallestTruncation(t *testing.T) {
	t.Parallel()

	got := Build(numbered(11), Window{Head: 4, Mid: 2, Tail: 4}, Center)

	require.Len(t, got, 3)
	assert.NoError(t, Validate(got, 11))
	assert.Equal(t, []Anchor{{Start: 7, End: 7}}, Gaps(got, 11))
}

func TestBuild_ValidForManySizes(t *testing.T) {
	t.Parallel()

	windows := []Window{{1, 1, 1}, {3, 2, 3}, {4, 2, 4}, {15, 10, 7}, {60, 40, 30}}
	for n := 1; n <= 200; n++ {
		lines := numbered(n)
		for _, w := range windows {
			for _, mid := range []MiddleFunc{Center, LargestDefinition} {
				got := Build(lines, w, mid)
				require.NoError(t, Validate(got, n), "n=%d window=%+v", n, w)
				if w.Sum() >= n {
					assert.Equal(t, Full(n), got)
				} else {
					assert.Len(t, got, 3)
				}
			}
		}
	}
}

func TestBuild_Stable(t *testing.T) {
	t.Parallel()

	lines := numbered(300)
	w := Window{Head: 30, Mid: 20, Tail: 15}
	assert.Equal(t, Build(lines, w, Center), Build(lines, w, Center))
}

func TestLargestDefinition(t *testing.T) {
	t.Parallel()

	var lines []string
	lines = append(lines, "import os", "")
	lines = append(lines, "def small():", "    return 1", "")
	lines = append(lines, "def big():")
	for i := 0; i < 30; i++ {
		lines = append(lines, fmt.Sprintf("    x = %d", i))
	}
	lines = append(lines, "")
	lines = append(lines, "def tail():", "    pass")
	for i := 0; i < 10; i++ {
		lines = append(lines, "# filler")
	}

	start := LargestDefinition(lines, 5, 3, len(lines)-3)
	assert.Equal(t, 6, start)

	got := Build(lines, Window{Head: 2, Mid: 5, Tail: 2}, LargestDefinition)
	require.Len(t, got, 3)
	assert.Equal(t, 6, got[1].Start)
}

func TestLargestDefinition_FallsBackToCenter(t *testing.T) {
	t.Parallel()

	lines := numbered(50)
	assert.Equal(t, Center(lines, 10, 5, 45), LargestDefinition(lines, 10, 5, 45))
}

func TestWindow_Scale(t *testing.T) {
	t.Parallel()

	base := Window{Head: 60, Mid: 40, Tail: 30}
	floor := Window{Head: 3, Mid: 2, Tail: 3}

	assert.Equal(t, Window{Head: 15, Mid: 10, Tail: 7}, base.Scale(1, 4, floor))
	assert.Equal(t, Window{Head: 30, Mid: 20, Tail: 15}, base.Scale(1, 2, floor))
	assert.Equal(t, Window{Head: 3, Mid: 2, Tail: 3}, base.Scale(1, 100, floor))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Validate(nil, 0))
	assert.Error(t, Validate([]Anchor{{Start: 0, End: 3}}, 10))
	assert.Error(t, Validate([]Anchor{{Start: 5, End: 11}}, 10))
	assert.Error(t, Validate([]Anchor{{Start: 4, End: 3}}, 10))
	assert.Error(t, Validate([]Anchor{{Start: 1, End: 5}, {Start: 5, End: 6}}, 10))
}

func TestAnchor_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "(lines 3–9)", Anchor{Start: 3, End: 9}.String())
}

func TestGaps(t *testing.T) {
	t.Parallel()

	got := Gaps([]Anchor{{Start: 1, End: 3}, {Start: 6, End: 7}}, 10)
	assert.Equal(t, []Anchor{{Start: 4, End: 5}, {Start: 8, End: 10}}, got)
	assert.Empty(t, Gaps(Full(4), 4))
}
