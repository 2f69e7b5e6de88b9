// Package budget estimates token weights and decides, under a global
// ceiling, how much of each file survives into a pack.
package budget

import "fmt"

// Estimator assigns text a weight in budget units. Implementations must be
// monotonic in length and deterministic.
type Estimator interface {
	// Name identifies the estimator in pack front-matter.
	Name() string

	// Estimate returns the weight of text.
	Estimate(text string) int

	// EstimateBytes returns the weight of n bytes of text.
	EstimateBytes(n int) int
}

// CharEstimator approximates tokens as bytes divided by a fixed constant.
type CharEstimator struct {
	CharsPerToken int
}

// DefaultCharsPerToken is the divisor used when none is configured.
const DefaultCharsPerToken = 4

// NewCharEstimator returns a CharEstimator, falling back to the default
// divisor for non-positive values.
func NewCharEstimator(charsPerToken int) CharEstimator {
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	return CharEstimator{CharsPerToken: charsPerToken}
}

// Name implements Estimator.
func (e CharEstimator) Name() string {
	return fmt.Sprintf("chars/%d", e.divisor())
}

// Estimate implements Estimator.
func (e CharEstimator) Estimate(text string) int {
	return e.EstimateBytes(len(text))
}

// EstimateBytes implements Estimator. Empty text weighs nothing; anything
// else weighs at least one unit.
func (e CharEstimator) EstimateBytes(n int) int {
	if n <= 0 {
		return 0
	}
	d := e.divisor()
	return (n + d - 1) / d
}

func (e CharEstimator) divisor() int {
	if e.CharsPerToken <= 0 {
		return DefaultCharsPerToken
	}
	return e.CharsPerToken
}
