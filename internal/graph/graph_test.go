package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDependencyGraph(t *testing.T) {
	t.Parallel()

	g := NewDependencyGraph()

	assert.NotNil(t, g)
	assert.Equal(t, 0, g.EdgeCount())
	assert.Empty(t, g.Edges())
}

func TestDependencyGraph_AddEdge(t *testing.T) {
	t.Parallel()

	t.Run("CollapsesDuplicates", func(t *testing.T) {
		t.Parallel()
		g := NewDependencyGraph()

		g.AddEdge(Edge{Source: "a.py", Target: "b.py", Kind: KindImport, Resolved: true, Line: 7})
		g.AddEdge(Edge{Source: "a.py", Target: "b.py", Kind: KindImport, Resolved: true, Line: 3})

		require.Equal(t, 1, g.EdgeCount())
		assert.Equal(t, 3, g.Edges()[0].Line)
	})

	t.Run("SameEndpointsDifferentKind", func(t *testing.T) {
		t.Parallel()
		g := NewDependencyGraph()

		g.AddEdge(Edge{Source: "a.py", Target: "x", Kind: KindImport})
		g.AddEdge(Edge{Source: "a.py", Target: "x", Kind: KindHTTP})

		assert.Equal(t, 2, g.EdgeCount())
	})

	t.Run("ResolvedIsSticky", func(t *testing.T) {
		t.Parallel()
		g := NewDependencyGraph()

		g.AddEdge(Edge{Source: "a.go", Target: "pkg", Kind: KindImport})
		g.AddEdge(Edge{Source: "a.go", Target: "pkg", Kind: KindImport, Resolved: true})

		assert.True(t, g.Edges()[0].Resolved)
		assert.Empty(t, g.Unresolved())
	})
}

func TestDependencyGraph_EdgesSorted(t *testing.T) {
	t.Parallel()

	g := FromEdges([]Edge{
		{Source: "b.py", Target: "a.py", Kind: KindImport},
		{Source: "a.py", Target: "z", Kind: KindQueue},
		{Source: "a.py", Target: "c.py", Kind: KindImport},
		{Source: "a.py", Target: "c.py", Kind: KindDB},
	})

	var lines []string
	for _, e := range g.Edges() {
		lines = append(lines, FormatEdge(e))
	}

	assert.Equal(t, []string{
		"a.py -> c.py (db)",
		"a.py -> c.py (import)",
		"a.py -> z (queue)",
		"b.py -> a.py (import)",
	}, lines)
}

func TestDependencyGraph_Adjacency(t *testing.T) {
	t.Parallel()

	g := FromEdges([]Edge{
		{Source: "a.py", Target: "b.py", Kind: KindImport, Resolved: true},
		{Source: "c.py", Target: "b.py", Kind: KindImport, Resolved: true},
		{Source: "b.py", Target: "db:postgres://db/app", Kind: KindDB},
	})

	assert.Len(t, g.Incoming("b.py"), 2)
	assert.Len(t, g.Outgoing("b.py"), 1)

	degree := g.Degree()
	assert.Equal(t, 3, degree["b.py"])
	assert.Equal(t, 1, degree["a.py"])
	assert.Equal(t, 1, degree["db:postgres://db/app"])
}

func TestDependencyGraph_Unresolved(t *testing.T) {
	t.Parallel()

	g := FromEdges([]Edge{
		{Source: "a.py", Target: "requests", Kind: KindImport},
		{Source: "a.py", Target: "b.py", Kind: KindImport, Resolved: true},
		{Source: "a.py", Target: "https://api.example.com/v1", Kind: KindHTTP},
	})

	unresolved := g.Unresolved()
	require.Len(t, unresolved, 1)
	assert.Equal(t, "requests", unresolved[0].Target)
}
