package parsers

import (
	"strings"

	"github.com/smacker/go-tree-sitter/python"
)

var pythonLanguage = &treeSitterLanguage{name: "python", lang: python.GetLanguage()}

// PythonParser finds Python imports with tree-sitter.
type PythonParser struct{}

// NewPythonParser creates a new Python parser.
func NewPythonParser() *PythonParser {
	return &PythonParser{}
}

// Language returns the language this parser handles.
func (p *PythonParser) Language() string {
	return "python"
}

// ParseImports returns `import x`, `import x as y` and `from x import y`
// module references. Relative imports keep their leading dots.
func (p *PythonParser) ParseImports(filePath string, content []byte) ([]ImportStatement, error) {
	return pythonLanguage.parseImports(content, func(module string) bool {
		return strings.HasPrefix(module, ".")
	})
}
