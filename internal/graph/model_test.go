package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	t.Parallel()

	for _, k := range AllKinds {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	got, err := ParseKind(" DB ")
	require.NoError(t, err)
	assert.Equal(t, KindDB, got)

	_, err = ParseKind("rpc")
	assert.Error(t, err)
}

func TestEdgeKind_Priority(t *testing.T) {
	t.Parallel()

	assert.Greater(t, KindDB.Priority(), KindQueue.Priority())
	assert.Greater(t, KindQueue.Priority(), KindHTTP.Priority())
	assert.Greater(t, KindHTTP.Priority(), KindImport.Priority())
	assert.False(t, KindImport.External())
	assert.True(t, KindHTTP.External())
}

func TestParseEdge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		want Edge
		ok   bool
	}{
		{"WithMarker", "- a.py -> b.py (import)", Edge{Source: "a.py", Target: "b.py", Kind: KindImport}, true},
		{"WithoutMarker", "src/x.go -> db:postgres://h/app (db)", Edge{Source: "src/x.go", Target: "db:postgres://h/app", Kind: KindDB}, true},
		{"URLTarget", "- a.js -> https://api.example.com/v1/users (http)", Edge{Source: "a.js", Target: "https://api.example.com/v1/users", Kind: KindHTTP}, true},
		{"UnknownKind", "- a -> b (calls)", Edge{}, false},
		{"Heading", "## DEPENDENCY GRAPH", Edge{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseEdge(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatEdge_RoundTrip(t *testing.T) {
	t.Parallel()

	e := Edge{Source: "api:a.py", Target: "queue:orders", Kind: KindQueue}
	parsed, ok := ParseEdge("- " + FormatEdge(e))
	require.True(t, ok)
	assert.Equal(t, e, parsed)
}
