package parsers

import (
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Alias maps an import prefix onto a repository directory.
type Alias struct {
	Prefix string
	Dir    string
}

// Resolver maps import references onto the set of included files.
//
// Paths use forward slashes. Matching is case-sensitive unless the resolver
// was built with foldCase.
type Resolver struct {
	files    map[string]string
	dirs     map[string]string
	aliases  []Alias
	goModule string
	foldCase bool
}

// NewResolver indexes files (repo-relative paths) for lookups. goModule is
// the module path declared in the root go.mod, or "".
func NewResolver(files []string, aliases []Alias, goModule string, foldCase bool) *Resolver {
	r := &Resolver{
		files:    make(map[string]string, len(files)),
		dirs:     make(map[string]string),
		goModule: goModule,
		foldCase: foldCase,
	}

	for _, f := range files {
		f = path.Clean(strings.ReplaceAll(f, "\\", "/"))
		r.files[r.key(f)] = f
		for d := path.Dir(f); ; d = path.Dir(d) {
			if _, seen := r.dirs[r.key(d)]; seen {
				break
			}
			r.dirs[r.key(d)] = d
			if d == "." {
				break
			}
		}
	}

	r.aliases = append([]Alias(nil), aliases...)
	sort.SliceStable(r.aliases, func(i, j int) bool {
		return len(r.aliases[i].Prefix) > len(r.aliases[j].Prefix)
	})
	return r
}

func (r *Resolver) key(p string) string {
	if r.foldCase {
		return strings.ToLower(p)
	}
	return p
}

// Resolve returns the repo path an import refers to.
func (r *Resolver) Resolve(source, lang string, imp ImportStatement) (string, bool) {
	for _, base := range r.bases(source, lang, imp) {
		if target, ok := r.lookup(base, lang); ok {
			return target, true
		}
	}
	return "", false
}

// bases lists the repo paths, without extension, an import may name.
func (r *Resolver) bases(source, lang string, imp ImportStatement) []string {
	raw := strings.ReplaceAll(imp.ModulePath, "\\", "/")
	dir := path.Dir(source)
	dotted := func(rest string) string { return strings.ReplaceAll(rest, ".", "/") }
	same := func(rest string) string { return rest }

	var bases []string
	switch lang {
	case "python":
		if strings.HasPrefix(raw, ".") {
			trimmed := strings.TrimLeft(raw, ".")
			base := dir
			for i := 1; i < len(raw)-len(trimmed); i++ {
				base = path.Dir(base)
			}
			return []string{path.Join(base, dotted(trimmed))}
		}
		bases = append(bases, r.aliased(raw, dotted)...)
		bases = append(bases, dotted(raw))

	case "go":
		if imp.IsRelative {
			bases = append(bases, path.Join(dir, raw))
		}
		bases = append(bases, r.aliased(raw, same)...)
		if r.goModule != "" {
			if raw == r.goModule {
				bases = append(bases, ".")
			} else if rest, ok := strings.CutPrefix(raw, r.goModule+"/"); ok {
				bases = append(bases, rest)
			}
		}

	case "java", "kotlin", "scala":
		bases = append(bases, r.aliased(raw, dotted)...)
		rel := dotted(raw)
		bases = append(bases, rel)
		for _, root := range []string{"src/main/java", "src/main/kotlin", "src/main/scala", "src"} {
			bases = append(bases, path.Join(root, rel))
		}

	case "rust":
		if imp.IsRelative {
			stem := strings.TrimSuffix(path.Base(source), ".rs")
			if stem != "mod" && stem != "lib" && stem != "main" {
				bases = append(bases, path.Join(dir, stem, raw))
			}
			return append(bases, path.Join(dir, raw))
		}
		segs := strings.Split(raw, "::")
		var root string
		switch segs[0] {
		case "crate":
			root = "src"
		case "self":
			root = dir
		case "super":
			root = path.Dir(dir)
		default:
			return r.aliased(raw, func(rest string) string { return strings.ReplaceAll(rest, "::", "/") })
		}
		// The last segments may name items inside a module file.
		for k := len(segs); k > 1; k-- {
			bases = append(bases, path.Join(append([]string{root}, segs[1:k]...)...))
		}

	default:
		if imp.IsRelative {
			bases = append(bases, path.Join(dir, raw))
		}
		bases = append(bases, r.aliased(raw, same)...)
		bases = append(bases, raw)
		if lang == "ruby" {
			bases = append(bases, path.Join("lib", raw))
		}
	}
	return bases
}

// aliased applies the longest matching alias.
func (r *Resolver) aliased(raw string, rest func(string) string) []string {
	for _, a := range r.aliases {
		prefix := a.Prefix
		candidate := raw
		if r.foldCase {
			prefix, candidate = strings.ToLower(prefix), strings.ToLower(raw)
		}
		if strings.HasPrefix(candidate, prefix) {
			return []string{path.Join(a.Dir, rest(raw[len(a.Prefix):]))}
		}
	}
	return nil
}

var (
	languageExtensions = map[string][]string{
		"python":     {".py", ".pyi"},
		"javascript": {".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx"},
		"typescript": {".ts", ".tsx", ".d.ts", ".js", ".jsx", ".mjs", ".cjs"},
		"tsx":        {".tsx", ".ts", ".d.ts", ".js", ".jsx"},
		"c":          {".h", ".c"},
		"cpp":        {".h", ".hpp", ".hh", ".hxx", ".cpp", ".cc", ".cxx"},
		"cuda":       {".cuh", ".cu", ".h", ".hpp"},
		"java":       {".java"},
		"kotlin":     {".kt"},
		"scala":      {".scala"},
		"ruby":       {".rb"},
		"rust":       {".rs"},
		"php":        {".php"},
		"shell":      {".sh"},
	}
	languageIndexFiles = map[string][]string{
		"python":     {"__init__.py"},
		"javascript": {"index.js", "index.jsx", "index.ts", "index.tsx"},
		"typescript": {"index.ts", "index.tsx", "index.js"},
		"tsx":        {"index.tsx", "index.ts", "index.js"},
		"rust":       {"mod.rs"},
	}
	// Languages whose imports name packages (directories) rather than files.
	packageLanguages = map[string]bool{"go": true, "java": true, "kotlin": true, "scala": true}
)

func (r *Resolver) lookup(base, lang string) (string, bool) {
	base = path.Clean(base)
	if base == ".." || strings.HasPrefix(base, "../") || strings.HasPrefix(base, "/") {
		return "", false
	}

	if lang != "go" {
		candidates := []string{base}
		for _, ext := range languageExtensions[lang] {
			candidates = append(candidates, base+ext)
		}
		for _, index := range languageIndexFiles[lang] {
			candidates = append(candidates, path.Join(base, index))
		}
		for _, c := range candidates {
			if f, ok := r.files[r.key(c)]; ok {
				return f, true
			}
		}
	}

	if packageLanguages[lang] {
		if d, ok := r.dirs[r.key(base)]; ok {
			return d, true
		}
	}
	return "", false
}

// MatchTarget reports whether target is named by one of the patterns. A
// pattern is an exact name or a doublestar glob, so "github.com/**" covers
// every module below github.com.
func MatchTarget(patterns []string, target string) bool {
	for _, p := range patterns {
		if p == target {
			return true
		}
		if matched, err := doublestar.Match(p, target); err == nil && matched {
			return true
		}
	}
	return false
}
