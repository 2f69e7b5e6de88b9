package hub

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/contexter-go/internal/budget"
	"github.com/Benny93/contexter-go/internal/config"
	"github.com/Benny93/contexter-go/internal/graph"
	"github.com/Benny93/contexter-go/internal/pack"
	"github.com/Benny93/contexter-go/internal/storage"
)

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func writePack(t *testing.T, dir, commit string, edges []graph.Edge) {
	t.Helper()
	p := &pack.Pack{
		FrontMatter: pack.FrontMatter{
			Version:    pack.FormatVersion,
			Generated:  "2026-10-18T09:00:00Z",
			Encoder:    "chars/4",
			TokenLimit: 1000,
			Branch:     "main",
			Commit:     commit,
			Limiter:    pack.LimiterNone,
		},
		Edges: edges,
	}
	full := filepath.Join(dir, "contexter", "pack", "CONTEXTPACK.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(pack.Render(p)), 0o644))
}

// workspace lays out sibling repos: hub (the root), api and web.
func workspace(t *testing.T) (string, *config.Config) {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "hub")
	require.NoError(t, os.MkdirAll(root, 0o755))

	writePack(t, filepath.Join(base, "api"), "aaa111", []graph.Edge{
		{Source: "main.go", Target: "internal/store", Kind: graph.KindImport},
		{Source: "internal/store", Target: "db:postgres://db/app", Kind: graph.KindDB},
		{Source: "main.go", Target: "net/http", Kind: graph.KindImport},
	})
	writePack(t, filepath.Join(base, "web"), "bbb222", []graph.Edge{
		{Source: "src/api.ts", Target: "https://api.example.com/v1", Kind: graph.KindHTTP},
	})

	cfg := config.Default()
	cfg.Links.Repos = []config.RepoLink{
		{Name: "web", PackURI: "../web/contexter/pack/CONTEXTPACK.md"},
		{Name: "api", PackURI: "../api/contexter/pack/CONTEXTPACK.md"},
		{Name: "billing", PackURI: "../billing/contexter/pack/CONTEXTPACK.md"},
	}
	return root, cfg
}

func TestQualify(t *testing.T) {
	t.Parallel()

	e := Qualify("api", graph.Edge{Source: "main.go", Target: "db:postgres://db/app", Kind: graph.KindDB})
	assert.Equal(t, "api:main.go -> api:db:postgres://db/app (db)", e.String())
}

func TestMerge(t *testing.T) {
	t.Parallel()

	root, cfg := workspace(t)
	h := Merge(root, cfg.Links.Repos, 0, budget.NewCharEstimator(4), fixedNow)

	var lines []string
	for _, e := range h.Edges {
		lines = append(lines, e.String())
	}
	assert.Equal(t, []string{
		"api:internal/store -> api:db:postgres://db/app (db)",
		"api:main.go -> api:internal/store (import)",
		"api:main.go -> api:net/http (import)",
		"web:src/api.ts -> web:https://api.example.com/v1 (http)",
	}, lines)

	assert.True(t, h.Edges[1].Resolved)
	assert.False(t, h.Edges[2].Resolved)

	require.Len(t, h.FrontMatter.Sources, 2)
	assert.Equal(t, "web", h.FrontMatter.Sources[0].Name)
	assert.Equal(t, "bbb222", h.FrontMatter.Sources[0].Commit)
	assert.Equal(t, 3, h.FrontMatter.Sources[1].Edges)

	require.Len(t, h.Broken, 1)
	assert.Equal(t, "billing", h.Broken[0].Name)
	assert.Equal(t, "pack not found", h.Broken[0].Reason)
	assert.False(t, h.FrontMatter.Truncated)
}

func TestMerge_MalformedPack(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "bad.md"), []byte("no front-matter\n"), 0o644))

	h := Merge(root, []config.RepoLink{{Name: "bad", PackURI: "bad.md"}}, 0, budget.NewCharEstimator(4), fixedNow)
	require.Len(t, h.Broken, 1)
	assert.Contains(t, h.Broken[0].Reason, "front-matter")
	assert.Empty(t, h.Edges)
}

func TestMerge_TokenLimit(t *testing.T) {
	t.Parallel()

	root, cfg := workspace(t)
	est := budget.NewCharEstimator(4)
	full := Merge(root, cfg.Links.Repos, 0, est, fixedNow)
	limit := est.Estimate(pack.RenderEdges(full.Edges[:2]))

	h := Merge(root, cfg.Links.Repos, limit, est, fixedNow)
	assert.Len(t, h.Edges, 2)
	assert.Equal(t, 2, h.Dropped)
	assert.Equal(t, 4, h.Total)
	assert.True(t, h.FrontMatter.Truncated)
	assert.Contains(t, Render(h), "dependency graph truncated: 2 of 4 edges dropped")
}

func TestRender(t *testing.T) {
	t.Parallel()

	root, cfg := workspace(t)
	h := Merge(root, cfg.Links.Repos, 0, budget.NewCharEstimator(4), fixedNow)
	doc := Render(h)

	assert.Contains(t, doc, "2026-10-19T12:00:00Z")
	assert.Contains(t, doc, "\n"+TitleHeading+"\n")
	assert.Contains(t, doc, "- BROKEN LINK: billing (../billing/contexter/pack/CONTEXTPACK.md): pack not found\n")

	parsed := pack.ParseGraph(doc)
	assert.Len(t, parsed, 4)
	assert.Equal(t, "web:src/api.ts", parsed[3].Source)
}

func TestBuild(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	root, cfg := workspace(t)
	store := storage.NewMemoryBackend()

	h, err := Build(ctx, root, cfg, store, fixedNow)
	require.NoError(t, err)
	assert.Len(t, h.Edges, 4)

	data, err := os.ReadFile(filepath.Join(root, "contexter", "hub", "graph.md"))
	require.NoError(t, err)
	assert.Equal(t, Render(h), string(data))

	assert.Equal(t, 4, store.EdgeCount())
	hops, err := store.Traverse(ctx, "api:main.go", 2, storage.DirectionOut)
	require.NoError(t, err)
	require.Len(t, hops, 3)
	assert.Equal(t, "api:db:postgres://db/app", hops[2].Node)
}

func TestBuild_BadgerStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	root, cfg := workspace(t)
	store, err := OpenStore(root, cfg, false)
	require.NoError(t, err)

	_, err = Build(ctx, root, cfg, store, fixedNow)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	ro, err := OpenStore(root, cfg, true)
	require.NoError(t, err)
	defer ro.Close()

	in, err := ro.Incoming(ctx, "web:https://api.example.com/v1")
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, graph.KindHTTP, in[0].Kind)
}
