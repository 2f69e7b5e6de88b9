// Package pack holds the pack document model and renders it to text.
//
// Rendering is a pure function of the model: the same Pack always renders
// to the same bytes. Scanning and classification happen elsewhere.
package pack

import (
	"time"

	"github.com/Benny93/contexter-go/internal/anchors"
	"github.com/Benny93/contexter-go/internal/budget"
	"github.com/Benny93/contexter-go/internal/graph"
)

// FormatVersion is written to the front-matter of every pack.
const FormatVersion = 1

// Freshness values reported in metrics.
const (
	FreshnessFresh     = "fresh"
	FreshnessStale     = "stale"
	FreshnessUnchecked = "unchecked"
)

// SourceFile is one scanned file. It is immutable once scanned.
type SourceFile struct {
	Path     string
	Language string
	Size     int64
	Lines    int
	ModTime  time.Time
}

// Section is the emitted part of one retained file. Snippets holds the
// redacted text of each anchor, in anchor order.
type Section struct {
	File      SourceFile
	Retention budget.Retention
	Anchors   []anchors.Anchor
	Snippets  []string
}

// Link names another repository's pack.
type Link struct {
	Name    string `yaml:"name"`
	PackURI string `yaml:"pack_uri"`
}

// FrontMatter is the YAML header of a pack.
type FrontMatter struct {
	Version    int    `yaml:"version"`
	Generated  string `yaml:"generated"`
	Encoder    string `yaml:"encoder"`
	TokenLimit int    `yaml:"token_limit"`
	Branch     string `yaml:"branch"`
	Commit     string `yaml:"commit"`
	Truncated  bool   `yaml:"truncated"`
	Limiter    string `yaml:"limiter"`
	Links      []Link `yaml:"links,omitempty"`
}

// GeneratedTime parses the generated timestamp.
func (f FrontMatter) GeneratedTime() (time.Time, error) {
	return time.Parse(time.RFC3339, f.Generated)
}

// Metrics are the scalar facts reported at the end of a pack.
type Metrics struct {
	FilesScanned int
	FilesPacked  int
	Full         int
	Truncated    int
	Omitted      int

	// Tokens is the estimated weight of the document: the scaffolding
	// reservation plus the graph and retained file sections.
	Tokens int

	Edges        int
	EdgesDropped int
	Unresolved   int
	Duration     time.Duration
	Freshness    string

	OmittedFiles   []string
	TruncatedFiles []string
}

// Pack is the complete, renderable result of one run.
type Pack struct {
	FrontMatter FrontMatter

	// Policy summarizes the allocation settings in one line.
	Policy string

	Edges   []graph.Edge
	Files   []Section
	Metrics Metrics
	Notes   []string
}
