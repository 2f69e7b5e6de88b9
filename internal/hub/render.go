package hub

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Benny93/contexter-go/internal/pack"
)

// Section headings of the hub document.
const (
	TitleHeading  = "# HUB GRAPH"
	BrokenHeading = "## BROKEN LINKS"
)

// Render renders the hub document. Its graph section uses the pack graph
// format, so pack.ParseGraph reads it back.
func Render(h *Hub) string {
	var b strings.Builder

	fm, err := yaml.Marshal(h.FrontMatter)
	if err != nil {
		panic(fmt.Sprintf("hub: encoding front-matter: %v", err))
	}
	b.WriteString("---\n")
	b.Write(fm)
	b.WriteString("---\n\n")

	b.WriteString(TitleHeading + "\n\n")
	b.WriteString(pack.GraphHeading + "\n")
	b.WriteString(pack.RenderEdges(h.Edges))

	b.WriteString("\n" + BrokenHeading + "\n")
	if len(h.Broken) == 0 {
		b.WriteString("- none\n")
	}
	for _, bl := range h.Broken {
		fmt.Fprintf(&b, "- BROKEN LINK: %s (%s): %s\n", bl.Name, bl.PackURI, bl.Reason)
	}

	b.WriteString("\n" + pack.NotesHeading + "\n")
	fmt.Fprintf(&b, "- sources merged: %d, broken links: %d\n", len(h.FrontMatter.Sources), len(h.Broken))
	fmt.Fprintf(&b, "- edges: %d\n", len(h.Edges))
	if h.Dropped > 0 {
		b.WriteString("- " + pack.GraphTruncatedNote(h.Dropped, h.Total) + "\n")
	}
	return b.String()
}
