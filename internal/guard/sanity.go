package guard

import (
	"fmt"

	"github.com/Benny93/contexter-go/internal/graph"
)

// Dependency sanity modes.
const (
	SanityWarn   = "warn"
	SanityStrict = "strict"
	SanityOff    = "off"
)

// Sanity is the outcome of the dependency sanity check.
type Sanity struct {
	Warnings []string
	Fatal    bool
}

// CheckSanity turns unresolved import edges into warnings. In strict mode
// any unresolved import is fatal; in off mode nothing is reported.
func CheckSanity(mode string, unresolved []graph.Edge) Sanity {
	var s Sanity
	if mode == SanityOff {
		return s
	}
	for _, e := range unresolved {
		s.Warnings = append(s.Warnings, fmt.Sprintf("unresolved import: %s -> %s", e.Source, e.Target))
	}
	s.Fatal = mode == SanityStrict && len(unresolved) > 0
	return s
}
