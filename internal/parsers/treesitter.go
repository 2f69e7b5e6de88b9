package parsers

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

//go:embed queries/*.scm
var queryFS embed.FS

// treeSitterLanguage holds a grammar and its compiled import query.
type treeSitterLanguage struct {
	name      string
	lang      *sitter.Language
	queryOnce sync.Once
	query     *sitter.Query
	queryErr  error
}

// importQuery returns the compiled query (safe to share across goroutines).
func (l *treeSitterLanguage) importQuery() (*sitter.Query, error) {
	l.queryOnce.Do(func() {
		data, err := queryFS.ReadFile(fmt.Sprintf("queries/%s.scm", l.name))
		if err != nil {
			l.queryErr = fmt.Errorf("reading query file: %w", err)
			return
		}
		q, err := sitter.NewQuery(data, l.lang)
		if err != nil {
			l.queryErr = fmt.Errorf("compiling query: %w", err)
			return
		}
		l.query = q
	})
	return l.query, l.queryErr
}

// parseImports runs the import query over content. Each call uses its own
// parser and cursor; tree-sitter parsers are not goroutine safe.
func (l *treeSitterLanguage) parseImports(content []byte, relative func(string) bool) ([]ImportStatement, error) {
	if len(content) == 0 {
		return nil, nil
	}

	query, err := l.importQuery()
	if err != nil {
		return nil, err
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(l.lang)

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnparseable, l.name, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%w: %s syntax error", ErrUnparseable, l.name)
	}

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, root)

	var imports []ImportStatement
	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		match = qc.FilterPredicates(match, content)

		for _, c := range match.Captures {
			if query.CaptureNameForId(c.Index) != "module" {
				continue
			}

			raw := c.Node.Content(content)
			module := strings.Trim(raw, "'\"`")
			if module == "" {
				continue
			}

			start := c.Node.StartPoint()
			end := c.Node.EndPoint()
			endCol := int(start.Column) + len(raw)
			if end.Row == start.Row {
				endCol = int(end.Column)
			}

			imports = append(imports, ImportStatement{
				ModulePath: module,
				IsRelative: relative(module),
				StartLine:  int(start.Row) + 1,
				StartCol:   int(start.Column),
				EndCol:     endCol,
			})
		}
	}

	return imports, nil
}
