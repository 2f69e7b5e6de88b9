package parsers

import (
	"strings"

	"github.com/Benny93/contexter-go/internal/graph"
)

// Extractor turns the content of one file into classified edges.
type Extractor struct {
	resolver      *Resolver
	kinds         map[graph.EdgeKind]bool
	ignoreTargets []string
}

// NewExtractor creates an extractor. kinds selects the enabled construct
// classes; ignoreTargets drops edges by target name.
func NewExtractor(resolver *Resolver, kinds map[graph.EdgeKind]bool, ignoreTargets []string) *Extractor {
	if resolver == nil {
		resolver = NewResolver(nil, nil, "", false)
	}
	return &Extractor{resolver: resolver, kinds: kinds, ignoreTargets: ignoreTargets}
}

// Extract returns the edges found in source. A file whose imports cannot
// be parsed yields an error wrapping ErrUnparseable and no edges.
func (x *Extractor) Extract(source, lang string, content []byte) ([]graph.Edge, error) {
	var candidates []Construct

	if x.kinds[graph.KindImport] {
		if p := ForLanguage(lang); p != nil {
			imports, err := p.ParseImports(source, content)
			if err != nil {
				return nil, err
			}
			for i := range imports {
				imp := imports[i]
				candidates = append(candidates, Construct{
					Kind:        graph.KindImport,
					Target:      imp.ModulePath,
					Line:        imp.StartLine,
					StartCol:    imp.StartCol,
					EndCol:      imp.EndCol,
					Specificity: specLiteral,
					Import:      &imp,
				})
			}
		}
	}

	if scansConstructs(lang) {
		for i, line := range strings.Split(string(content), "\n") {
			candidates = append(candidates, scanLine(strings.TrimSuffix(line, "\r"), i+1, x.kinds)...)
		}
	}

	var edges []graph.Edge
	for _, c := range resolveOverlaps(candidates) {
		edge := graph.Edge{Source: source, Target: c.Target, Kind: c.Kind, Line: c.Line}
		if c.Kind == graph.KindImport {
			if MatchTarget(x.ignoreTargets, c.Import.ModulePath) {
				continue
			}
			if target, ok := x.resolver.Resolve(source, lang, *c.Import); ok {
				edge.Target = target
				edge.Resolved = true
			}
		}
		if edge.Target == source || edge.Target == "" {
			continue
		}
		if MatchTarget(x.ignoreTargets, edge.Target) {
			continue
		}
		edges = append(edges, edge)
	}

	edges = oneKindPerTarget(edges)
	graph.SortEdges(edges)
	return edges, nil
}

// oneKindPerTarget keeps, for each target, only the edges of the highest
// priority kind seen for it anywhere in the file.
func oneKindPerTarget(edges []graph.Edge) []graph.Edge {
	best := make(map[string]graph.EdgeKind, len(edges))
	for _, e := range edges {
		if k, ok := best[e.Target]; !ok || e.Kind.Priority() > k.Priority() {
			best[e.Target] = e.Kind
		}
	}
	out := edges[:0]
	for _, e := range edges {
		if best[e.Target] == e.Kind {
			out = append(out, e)
		}
	}
	return out
}
