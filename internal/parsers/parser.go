// Package parsers detects dependency-indicating constructs in source files
// and turns them into classified dependency edges.
package parsers

import (
	"errors"
	"path"
	"strings"
)

// ErrUnparseable is returned when a file's syntax cannot be parsed well
// enough to find its imports. Callers skip edge extraction for the file.
var ErrUnparseable = errors.New("unparseable syntax")

// LanguageUnknown is the hint for files with no recognized extension.
const LanguageUnknown = "unknown"

// ImportStatement represents an import found in a file.
type ImportStatement struct {
	// ModulePath is the imported module or file reference, as written.
	ModulePath string

	// IsRelative indicates a reference relative to the importing file.
	IsRelative bool

	// StartLine is the 1-based line of the module reference.
	StartLine int

	// StartCol and EndCol are the byte columns [start, end) of the module
	// reference on its line.
	StartCol int
	EndCol   int
}

// Parser defines the interface for language-specific import parsers.
type Parser interface {
	// ParseImports returns the imports of a file. A syntax error is
	// reported as an error wrapping ErrUnparseable.
	ParseImports(filePath string, content []byte) ([]ImportStatement, error)

	// Language returns the language this parser handles.
	Language() string
}

// extensionLanguages maps lower-case extensions (without the dot) to
// language hints.
var extensionLanguages = map[string]string{
	"py": "python", "pyi": "python",
	"js": "javascript", "jsx": "javascript", "mjs": "javascript", "cjs": "javascript",
	"ts": "typescript", "mts": "typescript", "cts": "typescript",
	"tsx": "tsx",
	"go": "go",
	"c": "c", "h": "c",
	"cc": "cpp", "cpp": "cpp", "cxx": "cpp", "hpp": "cpp", "hxx": "cpp", "hh": "cpp",
	"cu": "cuda", "cuh": "cuda",
	"java": "java", "kt": "kotlin", "kts": "kotlin", "scala": "scala",
	"rb": "ruby", "rs": "rust", "php": "php",
	"sh": "shell", "bash": "shell", "zsh": "shell",
	"cs": "csharp", "swift": "swift", "sql": "sql",
	"yaml": "yaml", "yml": "yaml", "toml": "toml", "json": "json",
	"ini": "ini", "cfg": "ini", "conf": "ini", "env": "env",
	"properties": "properties", "xml": "xml",
	"md": "markdown", "markdown": "markdown", "rst": "rst", "txt": "text",
	"html": "html", "htm": "html", "css": "css", "scss": "scss",
}

var fileNameLanguages = map[string]string{
	"Dockerfile": "dockerfile",
	"Makefile":   "make",
}

// Documentation and markup formats carry prose, not dependencies.
var proseLanguages = map[string]bool{
	"markdown": true, "rst": true, "text": true, "html": true,
	"css": true, "scss": true, "sql": true, LanguageUnknown: true,
}

// LanguageFor returns the language hint for a repo-relative path.
// overrides maps extensions (without the dot) to languages and wins over
// the built-in table.
func LanguageFor(filePath string, overrides map[string]string) string {
	base := path.Base(filePath)
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(base), "."))

	if lang, ok := overrides[ext]; ok && ext != "" {
		return lang
	}
	if lang, ok := fileNameLanguages[base]; ok {
		return lang
	}
	if lang, ok := extensionLanguages[ext]; ok {
		return lang
	}
	return LanguageUnknown
}

// ForLanguage returns the import parser for a language, or nil when the
// language has no import syntax the engine understands.
func ForLanguage(lang string) Parser {
	switch lang {
	case "go":
		return NewGoParser()
	case "python":
		return NewPythonParser()
	case "javascript", "typescript", "tsx":
		return NewTypeScriptParser(lang)
	}
	if p, ok := regexParsers[lang]; ok {
		return p
	}
	return nil
}

// scansConstructs reports whether http/db/queue matchers apply to a language.
func scansConstructs(lang string) bool {
	return !proseLanguages[lang]
}
