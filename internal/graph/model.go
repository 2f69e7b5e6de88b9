// Package graph provides the dependency graph data model for contexter.
//
// It defines the closed set of edge kinds a pack may contain and the edge
// type that links a source file to another file or to an external
// pseudo-node (a URL, a database, a queue topic, or an unresolved module).
package graph

import (
	"fmt"
	"regexp"
	"strings"
)

// EdgeKind classifies a dependency edge.
type EdgeKind string

const (
	KindImport EdgeKind = "import"
	KindHTTP   EdgeKind = "http"
	KindDB     EdgeKind = "db"
	KindQueue  EdgeKind = "queue"
)

// AllKinds lists every edge kind in legend order.
var AllKinds = []EdgeKind{KindImport, KindHTTP, KindDB, KindQueue}

// ParseKind converts a string into an EdgeKind.
func ParseKind(s string) (EdgeKind, error) {
	k := EdgeKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown edge kind %q", s)
	}
	return k, nil
}

// Valid reports whether k is one of the known kinds.
func (k EdgeKind) Valid() bool {
	switch k {
	case KindImport, KindHTTP, KindDB, KindQueue:
		return true
	}
	return false
}

// Priority ranks kinds from most specific to most generic. When several
// construct classes claim the same span of a line, the higher priority wins.
func (k EdgeKind) Priority() int {
	switch k {
	case KindDB:
		return 3
	case KindQueue:
		return 2
	case KindHTTP:
		return 1
	default:
		return 0
	}
}

// External reports whether targets of this kind are always pseudo-nodes.
func (k EdgeKind) External() bool {
	return k != KindImport
}

// Edge is a single dependency relationship.
type Edge struct {
	// Source is the repo-relative path of the file the edge was found in.
	Source string

	// Target is a repo-relative path for resolved imports, otherwise the
	// raw external name.
	Target string

	// Kind is the construct class that produced the edge.
	Kind EdgeKind

	// Resolved is true when Target names a file or directory in the repo.
	// Always false for external kinds.
	Resolved bool

	// Line is the first line (1-indexed) where the edge was seen. Zero
	// when the edge was parsed back from a rendered graph.
	Line int
}

// Key returns the identity of the edge. Two edges with the same key are
// the same edge no matter where they were found.
func (e Edge) Key() string {
	return e.Source + "\x00" + e.Target + "\x00" + string(e.Kind)
}

// String renders the edge in graph-line form without the list marker.
func (e Edge) String() string {
	return FormatEdge(e)
}

// FormatEdge renders an edge as "source -> target (kind)".
func FormatEdge(e Edge) string {
	return fmt.Sprintf("%s -> %s (%s)", e.Source, e.Target, e.Kind)
}

var edgeLineRe = regexp.MustCompile(`^(?:-\s+)?(.+?) -> (.+) \((import|http|db|queue)\)\s*$`)

// ParseEdge parses a rendered graph line. The leading "- " list marker is
// optional. It returns false when the line is not an edge line.
func ParseEdge(line string) (Edge, bool) {
	m := edgeLineRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return Edge{}, false
	}
	return Edge{Source: m[1], Target: m[2], Kind: EdgeKind(m[3])}, true
}
