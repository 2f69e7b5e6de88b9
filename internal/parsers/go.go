package parsers

import (
	"fmt"
	"go/parser"
	"go/token"
	"strconv"
	"strings"
)

// GoParser parses Go imports using the standard library's go/parser.
type GoParser struct{}

// NewGoParser creates a new Go parser.
func NewGoParser() *GoParser {
	return &GoParser{}
}

// Language returns the language this parser handles.
func (p *GoParser) Language() string {
	return "go"
}

// ParseImports parses the import block of a Go file.
func (p *GoParser) ParseImports(filePath string, content []byte) ([]ImportStatement, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filePath, content, parser.ImportsOnly)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing Go imports: %v", ErrUnparseable, err)
	}

	imports := make([]ImportStatement, 0, len(file.Imports))
	for _, imp := range file.Imports {
		if imp.Path == nil {
			continue
		}
		modulePath, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}

		pos := fset.Position(imp.Path.Pos())
		imports = append(imports, ImportStatement{
			ModulePath: modulePath,
			IsRelative: isDotRelative(modulePath),
			StartLine:  pos.Line,
			StartCol:   pos.Column - 1,
			EndCol:     pos.Column - 1 + len(imp.Path.Value),
		})
	}

	return imports, nil
}

func isDotRelative(p string) bool {
	return p == "." || p == ".." || strings.HasPrefix(p, "./") || strings.HasPrefix(p, "../")
}
