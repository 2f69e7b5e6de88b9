package budget

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Benny93/contexter-go/internal/graph"
)

func TestTruncateEdges(t *testing.T) {
	t.Parallel()

	var edges []graph.Edge
	for i := 0; i < 10; i++ {
		edges = append(edges, graph.Edge{Source: fmt.Sprintf("f%d", i), Target: "x", Kind: graph.KindImport})
	}
	// Heading costs 2, each edge 3.
	cost := func(es []graph.Edge) int { return 2 + 3*len(es) }

	t.Run("Fits", func(t *testing.T) {
		t.Parallel()
		kept, dropped := TruncateEdges(edges, 100, cost)
		assert.Len(t, kept, 10)
		assert.Equal(t, 0, dropped)
	})

	t.Run("Prefix", func(t *testing.T) {
		t.Parallel()
		kept, dropped := TruncateEdges(edges, 15, cost)
		assert.Equal(t, edges[:4], kept)
		assert.Equal(t, 6, dropped)
	})

	t.Run("NothingFits", func(t *testing.T) {
		t.Parallel()
		kept, dropped := TruncateEdges(edges, 1, cost)
		assert.Empty(t, kept)
		assert.Equal(t, 10, dropped)
	})
}
