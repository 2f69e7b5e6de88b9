package parsers

import (
	"regexp"
	"strings"
)

// importRule matches one import form. Group 1 is the module reference.
type importRule struct {
	re       *regexp.Regexp
	relative bool
}

// RegexParser finds imports with line-oriented regular expressions. It is
// used for languages whose import syntax is a single-line statement.
type RegexParser struct {
	lang  string
	rules []importRule
}

// Language returns the language this parser handles.
func (p *RegexParser) Language() string {
	return p.lang
}

// ParseImports scans content line by line.
func (p *RegexParser) ParseImports(filePath string, content []byte) ([]ImportStatement, error) {
	var imports []ImportStatement
	for i, line := range strings.Split(string(content), "\n") {
		for _, rule := range p.rules {
			m := rule.re.FindStringSubmatchIndex(line)
			if m == nil || m[2] < 0 {
				continue
			}
			module := strings.TrimSuffix(line[m[2]:m[3]], ".")
			imports = append(imports, ImportStatement{
				ModulePath: module,
				IsRelative: rule.relative || isDotRelative(module),
				StartLine:  i + 1,
				StartCol:   m[2],
				EndCol:     m[3],
			})
			break
		}
	}
	return imports, nil
}

func newRegexParser(lang string, rules ...importRule) *RegexParser {
	return &RegexParser{lang: lang, rules: rules}
}

func rule(expr string, relative bool) importRule {
	return importRule{re: regexp.MustCompile(expr), relative: relative}
}

var (
	cIncludeRules = []importRule{
		rule(`^\s*#\s*include\s*"([^"]+)"`, true),
		rule(`^\s*#\s*include\s*<([^>]+)>`, false),
	}
	jvmImportRules = []importRule{
		rule(`^\s*import\s+(?:static\s+)?([A-Za-z_][\w.]*)`, false),
	}
)

var regexParsers = map[string]*RegexParser{
	"c":      newRegexParser("c", cIncludeRules...),
	"cpp":    newRegexParser("cpp", cIncludeRules...),
	"cuda":   newRegexParser("cuda", cIncludeRules...),
	"java":   newRegexParser("java", jvmImportRules...),
	"kotlin": newRegexParser("kotlin", jvmImportRules...),
	"scala":  newRegexParser("scala", jvmImportRules...),
	"ruby": newRegexParser("ruby",
		rule(`^\s*require_relative\s*\(?\s*['"]([^'"]+)['"]`, true),
		rule(`^\s*require\s*\(?\s*['"]([^'"]+)['"]`, false),
	),
	"rust": newRegexParser("rust",
		rule(`^\s*(?:pub(?:\([\w:]+\))?\s+)?mod\s+(\w+)\s*;`, true),
		rule(`^\s*(?:pub(?:\([\w:]+\))?\s+)?use\s+(\w+(?:::\w+)*)`, false),
	),
	"php": newRegexParser("php",
		rule(`^\s*(?:require|include)(?:_once)?\s*\(?\s*['"]([^'"]+)['"]`, true),
		rule(`^\s*use\s+([\w\\]+)`, false),
	),
	"shell": newRegexParser("shell",
		rule(`^\s*(?:source|\.)\s+["']?([^\s"';]+)`, true),
	),
}
