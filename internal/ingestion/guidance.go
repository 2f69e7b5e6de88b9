package ingestion

import (
	"fmt"
	"strings"
)

// Markers delimiting the block contexter maintains in the guidance file.
const (
	GuidanceStart = "<!-- contexter:start -->"
	GuidanceEnd   = "<!-- contexter:end -->"
)

const guidanceHeader = "# PLAN\n"

// GuidanceSummary is what the managed block reports.
type GuidanceSummary struct {
	PackPath   string
	Generated  string
	Scanned    int
	Packed     int
	Full       int
	Truncated  int
	Omitted    int
	Edges      int
	Unresolved int
	Freshness  string
	Warnings   int
	Questions  []string
}

// Block renders the managed block, markers included.
func (s GuidanceSummary) Block() string {
	var b strings.Builder
	b.WriteString(GuidanceStart + "\n")
	b.WriteString("## PROGRESS\n")
	fmt.Fprintf(&b, "- pack: %s (generated %s)\n", s.PackPath, s.Generated)
	fmt.Fprintf(&b, "- files: %d packed of %d scanned (full %d, truncated %d, omitted %d)\n", s.Packed, s.Scanned, s.Full, s.Truncated, s.Omitted)
	fmt.Fprintf(&b, "- edges: %d, unresolved imports: %d\n", s.Edges, s.Unresolved)
	fmt.Fprintf(&b, "- freshness: %s, warnings: %d\n", s.Freshness, s.Warnings)
	if len(s.Questions) > 0 {
		b.WriteString("\n## QUESTIONS\n")
		for _, q := range s.Questions {
			b.WriteString("- " + q + "\n")
		}
	}
	b.WriteString(GuidanceEnd + "\n")
	return b.String()
}

// MergeGuidance replaces the managed block in existing, or appends one.
// Text outside the markers is kept byte for byte.
func MergeGuidance(existing, block string) string {
	if existing == "" {
		return guidanceHeader + "\n" + block
	}

	start := strings.Index(existing, GuidanceStart)
	if start >= 0 {
		if rel := strings.Index(existing[start:], GuidanceEnd); rel >= 0 {
			end := start + rel + len(GuidanceEnd)
			if end < len(existing) && existing[end] == '\n' {
				end++
			}
			return existing[:start] + block + existing[end:]
		}
	}

	sep := "\n"
	if !strings.HasSuffix(existing, "\n") {
		sep = "\n\n"
	}
	return existing + sep + block
}
