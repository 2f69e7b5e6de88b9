// Package hub merges the dependency graphs of linked repositories into one
// cross-repository graph.
package hub

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Benny93/contexter-go/internal/budget"
	"github.com/Benny93/contexter-go/internal/config"
	"github.com/Benny93/contexter-go/internal/graph"
	"github.com/Benny93/contexter-go/internal/pack"
)

// FormatVersion is the hub document format version.
const FormatVersion = 1

// Source is a linked pack that was merged.
type Source struct {
	Name      string `yaml:"name"`
	PackURI   string `yaml:"pack_uri"`
	Branch    string `yaml:"branch"`
	Commit    string `yaml:"commit"`
	Generated string `yaml:"generated"`
	Edges     int    `yaml:"edges"`
}

// BrokenLink is a linked pack that could not be merged.
type BrokenLink struct {
	Name    string
	PackURI string
	Reason  string
}

// FrontMatter is the metadata block of the hub document.
type FrontMatter struct {
	Version    int      `yaml:"version"`
	Generated  string   `yaml:"generated"`
	TokenLimit int      `yaml:"token_limit"`
	Truncated  bool     `yaml:"truncated"`
	Sources    []Source `yaml:"sources"`
}

// Hub is the merged graph of every linked pack.
type Hub struct {
	FrontMatter FrontMatter
	Edges       []graph.Edge
	Dropped     int
	Total       int
	Broken      []BrokenLink
}

// Qualify prefixes both endpoints of e with the repository name.
func Qualify(repo string, e graph.Edge) graph.Edge {
	e.Source = repo + ":" + e.Source
	e.Target = repo + ":" + e.Target
	return e
}

// Merge reads the linked packs, relative to root, and unions their graphs.
// Unreadable or malformed packs become broken links. With a positive
// tokenLimit, the graph is cut to fit it.
func Merge(root string, links []config.RepoLink, tokenLimit int, est budget.Estimator, now time.Time) *Hub {
	h := &Hub{
		FrontMatter: FrontMatter{
			Version:    FormatVersion,
			Generated:  now.UTC().Format(time.RFC3339),
			TokenLimit: tokenLimit,
		},
	}

	dg := graph.NewDependencyGraph()
	for _, link := range links {
		p := link.PackURI
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, filepath.FromSlash(p))
		}
		data, err := os.ReadFile(p)
		if err != nil {
			h.Broken = append(h.Broken, BrokenLink{Name: link.Name, PackURI: link.PackURI, Reason: reason(err)})
			continue
		}
		doc, err := pack.Parse(data)
		if err != nil {
			h.Broken = append(h.Broken, BrokenLink{Name: link.Name, PackURI: link.PackURI, Reason: err.Error()})
			continue
		}

		for _, e := range markResolved(doc.Edges) {
			dg.AddEdge(Qualify(link.Name, e))
		}
		h.FrontMatter.Sources = append(h.FrontMatter.Sources, Source{
			Name:      link.Name,
			PackURI:   link.PackURI,
			Branch:    doc.FrontMatter.Branch,
			Commit:    doc.FrontMatter.Commit,
			Generated: doc.FrontMatter.Generated,
			Edges:     len(doc.Edges),
		})
	}

	edges := dg.Edges()
	h.Total = len(edges)
	h.Edges = edges
	if tokenLimit > 0 {
		cost := func(es []graph.Edge) int { return est.Estimate(pack.RenderEdges(es)) }
		h.Edges, h.Dropped = budget.TruncateEdges(edges, tokenLimit, cost)
	}
	h.FrontMatter.Truncated = h.Dropped > 0

	sort.SliceStable(h.Broken, func(i, j int) bool { return h.Broken[i].Name < h.Broken[j].Name })
	return h
}

// Graph returns the merged edges as a dependency graph.
func (h *Hub) Graph() *graph.DependencyGraph {
	return graph.FromEdges(h.Edges)
}

// markResolved flags import edges whose target is itself a source in the
// same pack. Rendered graphs do not carry resolution.
func markResolved(edges []graph.Edge) []graph.Edge {
	sources := make(map[string]bool, len(edges))
	for _, e := range edges {
		sources[e.Source] = true
	}
	out := make([]graph.Edge, len(edges))
	for i, e := range edges {
		e.Resolved = e.Kind == graph.KindImport && sources[e.Target]
		out[i] = e
	}
	return out
}

func reason(err error) string {
	if os.IsNotExist(err) {
		return "pack not found"
	}
	return fmt.Sprintf("unreadable: %v", err)
}
