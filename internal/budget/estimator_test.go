package budget

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCharEstimator(t *testing.T) {
	t.Parallel()

	e := NewCharEstimator(4)

	assert.Equal(t, "chars/4", e.Name())
	assert.Equal(t, 0, e.Estimate(""))
	assert.Equal(t, 1, e.Estimate("a"))
	assert.Equal(t, 1, e.Estimate("abcd"))
	assert.Equal(t, 2, e.Estimate("abcde"))
	assert.Equal(t, 25, e.EstimateBytes(100))
}

func TestCharEstimator_Monotonic(t *testing.T) {
	t.Parallel()

	e := NewCharEstimator(3)
	prev := 0
	for n := 0; n < 1000; n++ {
		w := e.Estimate(strings.Repeat("x", n))
		assert.GreaterOrEqual(t, w, prev)
		prev = w
	}
}

func TestNewCharEstimator_Default(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "chars/4", NewCharEstimator(0).Name())
	assert.Equal(t, 2, CharEstimator{}.EstimateBytes(5))
}
