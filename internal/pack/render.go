package pack

import (
	"fmt"
	"math"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Benny93/contexter-go/internal/anchors"
	"github.com/Benny93/contexter-go/internal/graph"
)

// Section headings, in document order.
const (
	TitleHeading   = "# CONTEXTPACK"
	SummaryHeading = "## SUMMARY"
	GraphHeading   = "## DEPENDENCY GRAPH"
	FilesHeading   = "## FILES"
	MetricsHeading = "## METRICS"
	NotesHeading   = "## NOTES"
)

const (
	frontMatterDelim = "---"
	graphLegend      = "Legend: (import|http|db|queue)"
	noEdges          = "(no edges)"
)

// usageNotes close every pack.
var usageNotes = []string{
	"cite code as `path (lines start–end)` using the anchors above",
	"graph lines read `source -> target (kind)`; non-file targets are external",
	"omitted files are listed in METRICS and can be opened directly",
}

// Render returns the full pack document.
func Render(p *Pack) string {
	var b strings.Builder
	writeHead(&b, p)
	b.WriteString(RenderEdges(p.Edges))
	b.WriteString("\n" + FilesHeading + "\n")
	for _, s := range p.Files {
		b.WriteString(RenderSection(s))
	}
	writeTail(&b, p)
	return b.String()
}

// RenderEdges renders the lines of the graph section.
func RenderEdges(edges []graph.Edge) string {
	if len(edges) == 0 {
		return noEdges + "\n"
	}
	var b strings.Builder
	for _, e := range edges {
		b.WriteString("- " + graph.FormatEdge(e) + "\n")
	}
	return b.String()
}

// RenderSection renders one file's FILES entry.
func RenderSection(s Section) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n### FILE path=%s lang=%s retention=%s\n", s.File.Path, s.File.Language, s.Retention)

	b.WriteString("#### ANCHORS\n")
	for _, a := range s.Anchors {
		fmt.Fprintf(&b, "- %s %s\n", a, a.Label)
	}

	gaps := anchors.Gaps(s.Anchors, s.File.Lines)
	g := 0
	for i, a := range s.Anchors {
		for g < len(gaps) && gaps[g].End < a.Start {
			writeElision(&b, gaps[g])
			g++
		}
		snippet := ""
		if i < len(s.Snippets) {
			snippet = s.Snippets[i]
		}
		fmt.Fprintf(&b, "#### CODE %s\n", a)
		writeFenced(&b, s.File.Language, snippet)
	}
	for ; g < len(gaps); g++ {
		writeElision(&b, gaps[g])
	}
	return b.String()
}

// ScaffoldBound renders everything except graph lines and file sections,
// with every value at its widest: each file listed as truncated, numbers
// at their maximum width and the graph truncation note present. The result
// does not depend on the token ceiling, so it can be reserved before
// allocation.
func ScaffoldBound(p *Pack, files []string) string {
	const wide = math.MaxInt64
	w := *p
	w.Edges = nil
	w.Files = nil
	w.FrontMatter.TokenLimit = wide
	w.FrontMatter.Truncated = false
	w.FrontMatter.Limiter = LimiterTruncated
	w.Metrics = Metrics{
		FilesScanned:   wide,
		FilesPacked:    wide,
		Full:           wide,
		Truncated:      wide,
		Omitted:        wide,
		Tokens:         wide,
		Edges:          wide,
		EdgesDropped:   wide,
		Unresolved:     wide,
		Duration:       time.Duration(math.MaxInt64),
		Freshness:      FreshnessUnchecked,
		TruncatedFiles: files,
	}
	w.Notes = append(append([]string(nil), p.Notes...), GraphTruncatedNote(wide, wide))

	var b strings.Builder
	writeHead(&b, &w)
	b.WriteString("\n" + FilesHeading + "\n")
	writeTail(&b, &w)
	return b.String()
}

// Limiter values for the front-matter.
const (
	LimiterNone      = "none"
	LimiterTruncated = "truncated"
)

// GraphTruncatedNote is the note recorded when graph lines were dropped.
func GraphTruncatedNote(dropped, total int) string {
	return fmt.Sprintf("dependency graph truncated: %d of %d edges dropped", dropped, total)
}

func writeHead(b *strings.Builder, p *Pack) {
	fm, err := yaml.Marshal(p.FrontMatter)
	if err != nil {
		// FrontMatter holds only strings, ints and bools.
		panic(fmt.Sprintf("pack: encoding front-matter: %v", err))
	}
	b.WriteString(frontMatterDelim + "\n")
	b.Write(fm)
	b.WriteString(frontMatterDelim + "\n\n")

	b.WriteString(TitleHeading + "\n\n")
	b.WriteString(SummaryHeading + "\n")
	fmt.Fprintf(b, "- files scanned: %d\n", p.Metrics.FilesScanned)
	fmt.Fprintf(b, "- files packed: %d\n", p.Metrics.FilesPacked)
	fmt.Fprintf(b, "- estimated tokens: %d\n", p.Metrics.Tokens)
	fmt.Fprintf(b, "- truncated: %t\n", p.FrontMatter.Truncated)
	if p.Policy != "" {
		fmt.Fprintf(b, "- policy: %s\n", p.Policy)
	}

	b.WriteString("\n" + GraphHeading + "\n")
	b.WriteString(graphLegend + "\n")
}

func writeTail(b *strings.Builder, p *Pack) {
	m := p.Metrics
	b.WriteString("\n" + MetricsHeading + "\n")
	fmt.Fprintf(b, "- files scanned: %d\n", m.FilesScanned)
	fmt.Fprintf(b, "- files packed: %d (full %d, truncated %d, omitted %d)\n", m.FilesPacked, m.Full, m.Truncated, m.Omitted)
	fmt.Fprintf(b, "- estimated tokens: %d of %d\n", m.Tokens, p.FrontMatter.TokenLimit)
	fmt.Fprintf(b, "- edges: %d (dropped %d)\n", m.Edges, m.EdgesDropped)
	fmt.Fprintf(b, "- unresolved imports: %d\n", m.Unresolved)
	fmt.Fprintf(b, "- duration: %s\n", m.Duration.Round(time.Millisecond))
	fmt.Fprintf(b, "- freshness: %s\n", m.Freshness)
	writeList(b, "truncated files", m.TruncatedFiles)
	writeList(b, "omitted files", m.OmittedFiles)

	b.WriteString("\n" + NotesHeading + "\n")
	for _, n := range p.Notes {
		b.WriteString("- " + n + "\n")
	}
	for _, n := range usageNotes {
		b.WriteString("- usage: " + n + "\n")
	}
}

func writeList(b *strings.Builder, name string, items []string) {
	if len(items) == 0 {
		fmt.Fprintf(b, "- %s: none\n", name)
		return
	}
	fmt.Fprintf(b, "- %s:\n", name)
	for _, it := range items {
		b.WriteString("  - " + it + "\n")
	}
}

func writeElision(b *strings.Builder, gap anchors.Anchor) {
	fmt.Fprintf(b, "… lines %d–%d elided …\n", gap.Start, gap.End)
}

// writeFenced writes text in a code fence longer than any backtick run
// inside it.
func writeFenced(b *strings.Builder, lang, text string) {
	fence := strings.Repeat("`", max(3, longestRun(text, '`')+1))
	if lang == "unknown" {
		lang = ""
	}
	b.WriteString(fence + lang + "\n")
	b.WriteString(text)
	if !strings.HasSuffix(text, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(fence + "\n")
}

func longestRun(s string, c byte) int {
	longest, run := 0, 0
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	return longest
}
