package parsers

import (
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

var scriptLanguages = map[string]*treeSitterLanguage{
	"javascript": {name: "javascript", lang: javascript.GetLanguage()},
	"typescript": {name: "typescript", lang: typescript.GetLanguage()},
	"tsx":        {name: "tsx", lang: tsx.GetLanguage()},
}

// TypeScriptParser finds ES module imports, re-exports and require() calls
// in JavaScript, TypeScript and TSX files.
type TypeScriptParser struct {
	lang *treeSitterLanguage
}

// NewTypeScriptParser creates a parser for one of "javascript",
// "typescript" or "tsx". Unknown names fall back to JavaScript.
func NewTypeScriptParser(lang string) *TypeScriptParser {
	l, ok := scriptLanguages[lang]
	if !ok {
		l = scriptLanguages["javascript"]
	}
	return &TypeScriptParser{lang: l}
}

// Language returns the language this parser handles.
func (p *TypeScriptParser) Language() string {
	return p.lang.name
}

// ParseImports returns the module specifiers of the file.
func (p *TypeScriptParser) ParseImports(filePath string, content []byte) ([]ImportStatement, error) {
	return p.lang.parseImports(content, isDotRelative)
}
