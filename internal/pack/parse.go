package pack

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Benny93/contexter-go/internal/graph"
)

// ErrNoFrontMatter is returned for documents that do not start with a
// YAML front-matter block.
var ErrNoFrontMatter = errors.New("pack has no front-matter")

// Document is the machine-readable part of a rendered pack.
type Document struct {
	FrontMatter FrontMatter
	Edges       []graph.Edge
}

// Parse reads the front-matter and the dependency graph of a rendered pack.
func Parse(data []byte) (*Document, error) {
	fm, body, err := splitFrontMatter(string(data))
	if err != nil {
		return nil, err
	}

	doc := &Document{}
	if err := yaml.Unmarshal([]byte(fm), &doc.FrontMatter); err != nil {
		return nil, fmt.Errorf("decoding front-matter: %w", err)
	}
	doc.Edges = ParseGraph(body)
	return doc, nil
}

// ParseGraph returns the edges listed in the first DEPENDENCY GRAPH
// section of text, in document order.
func ParseGraph(text string) []graph.Edge {
	var edges []graph.Edge
	inGraph := false

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "#") {
			if inGraph {
				break
			}
			inGraph = strings.TrimSpace(line) == GraphHeading
			continue
		}
		if !inGraph {
			continue
		}
		if e, ok := graph.ParseEdge(line); ok {
			edges = append(edges, e)
		}
	}
	return edges
}

func splitFrontMatter(doc string) (string, string, error) {
	doc = strings.TrimPrefix(doc, "\ufeff")
	if !strings.HasPrefix(doc, frontMatterDelim+"\n") {
		return "", "", ErrNoFrontMatter
	}
	rest := doc[len(frontMatterDelim)+1:]
	end := strings.Index(rest, "\n"+frontMatterDelim+"\n")
	if end < 0 {
		return "", "", ErrNoFrontMatter
	}
	return rest[:end+1], rest[end+len(frontMatterDelim)+2:], nil
}
