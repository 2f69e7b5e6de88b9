// Package ingestion scans a repository and turns it into a pack.
package ingestion

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/Benny93/contexter-go/internal/config"
	"github.com/Benny93/contexter-go/internal/parsers"
)

// IgnoreFileName holds extra gitignore-style patterns for contexter only.
const IgnoreFileName = ".contexterignore"

// sniffBytes is how much of a file is checked for NUL bytes.
const sniffBytes = 4096

// Candidate is a file eligible for packing.
type Candidate struct {
	// RelPath is the path relative to the repo root, with forward slashes.
	RelPath string

	// Path is the absolute file path.
	Path string

	Language string
	Size     int64
	ModTime  time.Time
}

// Scan is the result of walking a repository.
type Scan struct {
	Files []Candidate

	// Notes are recoverable issues, e.g. unreadable or oversized files.
	Notes []string

	Filter *Filter
}

// binaryExtensions are skipped without reading.
var binaryExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".ico": {}, ".webp": {}, ".tiff": {}, ".psd": {},
	".zip": {}, ".tar": {}, ".gz": {}, ".tgz": {}, ".bz2": {}, ".xz": {}, ".7z": {}, ".rar": {}, ".zst": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".otf": {}, ".eot": {},
	".mp3": {}, ".mp4": {}, ".wav": {}, ".ogg": {}, ".mov": {}, ".avi": {}, ".webm": {}, ".flac": {},
	".exe": {}, ".dll": {}, ".so": {}, ".dylib": {}, ".a": {}, ".o": {}, ".obj": {}, ".class": {}, ".jar": {},
	".pyc": {}, ".pyo": {}, ".wasm": {}, ".bin": {}, ".dat": {}, ".db": {}, ".sqlite": {}, ".sqlite3": {},
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
}

// Filter decides which paths are eligible. It is shared by the walker and
// the watch driver.
type Filter struct {
	heavy    map[string]struct{}
	output   string
	reserved map[string]struct{}

	gitPatterns []gitignore.Pattern
	git         gitignore.Matcher
	custom      *ignore.GitIgnore
}

// NewFilter builds the filter for root: configured heavy dirs, the output
// directory, the guidance and config files, the root .gitignore, the
// configured ignore globs and .contexterignore.
func NewFilter(root string, cfg *config.Config) *Filter {
	f := &Filter{
		heavy:  make(map[string]struct{}, len(cfg.HeavyDirs)),
		output: cfg.Output.Dir,
		reserved: map[string]struct{}{
			cfg.Output.GuidanceFile: {},
			config.FileName:         {},
		},
	}
	for _, d := range cfg.HeavyDirs {
		f.heavy[d] = struct{}{}
	}

	f.addGitignore(root, "")
	f.custom = ignore.CompileIgnoreLines(append(append([]string(nil), cfg.Ignore...), readLines(filepath.Join(root, IgnoreFileName))...)...)
	return f
}

// addGitignore loads dir/.gitignore (dir is repo-relative) with its
// patterns scoped to dir.
func (f *Filter) addGitignore(root, dir string) {
	lines := readLines(filepath.Join(root, filepath.FromSlash(dir), ".gitignore"))
	if len(lines) == 0 {
		if f.git == nil {
			f.git = gitignore.NewMatcher(f.gitPatterns)
		}
		return
	}
	var domain []string
	if dir != "" {
		domain = strings.Split(dir, "/")
	}
	for _, line := range lines {
		f.gitPatterns = append(f.gitPatterns, gitignore.ParsePattern(line, domain))
	}
	f.git = gitignore.NewMatcher(f.gitPatterns)
}

// Excluded reports whether a repo-relative path is out of the pack.
func (f *Filter) Excluded(rel string, isDir bool) bool {
	rel = path.Clean(filepath.ToSlash(rel))
	if rel == "." {
		return false
	}
	parts := strings.Split(rel, "/")
	for i, p := range parts {
		if strings.HasPrefix(p, ".") {
			return true
		}
		if _, ok := f.heavy[p]; ok && (isDir || i < len(parts)-1) {
			return true
		}
	}
	if f.output != "" && (rel == f.output || strings.HasPrefix(rel, f.output+"/")) {
		return true
	}
	if _, ok := f.reserved[rel]; ok && !isDir {
		return true
	}
	if f.git != nil && f.git.Match(parts, isDir) {
		return true
	}
	if isDir {
		return f.custom.MatchesPath(rel + "/")
	}
	return f.custom.MatchesPath(rel)
}

// WalkRepo returns the candidate files under root in path order.
func WalkRepo(root string, cfg *config.Config) (*Scan, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("reading root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", root)
	}

	scan := &Scan{Filter: NewFilter(root, cfg)}

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if err != nil {
			if p == root {
				return err
			}
			scan.Notes = append(scan.Notes, fmt.Sprintf("unreadable: %s: %v", rel, err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if p == root {
				return nil
			}
			if scan.Filter.Excluded(rel, true) {
				return filepath.SkipDir
			}
			scan.Filter.addGitignore(root, rel)
			return nil
		}

		// Symlinks are never followed.
		if d.Type()&fs.ModeSymlink != 0 || !d.Type().IsRegular() {
			return nil
		}
		if scan.Filter.Excluded(rel, false) {
			return nil
		}
		if _, ok := binaryExtensions[strings.ToLower(path.Ext(rel))]; ok {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			scan.Notes = append(scan.Notes, fmt.Sprintf("unreadable: %s: %v", rel, err))
			return nil
		}
		if cfg.MaxFileBytes > 0 && fi.Size() > cfg.MaxFileBytes {
			scan.Notes = append(scan.Notes, fmt.Sprintf("skipped: %s: %d bytes exceeds max_file_bytes %d", rel, fi.Size(), cfg.MaxFileBytes))
			return nil
		}

		binary, err := looksBinary(p)
		if err != nil {
			scan.Notes = append(scan.Notes, fmt.Sprintf("unreadable: %s: %v", rel, err))
			return nil
		}
		if binary {
			return nil
		}

		scan.Files = append(scan.Files, Candidate{
			RelPath:  rel,
			Path:     p,
			Language: parsers.LanguageFor(rel, cfg.Languages),
			Size:     fi.Size(),
			ModTime:  fi.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	// WalkDir visits entries in lexical order per directory, which is not
	// the same as sorting full slash-separated paths.
	sort.Slice(scan.Files, func(i, j int) bool {
		return scan.Files[i].RelPath < scan.Files[j].RelPath
	})
	return scan, nil
}

// looksBinary reports whether the first bytes of a file contain a NUL.
func looksBinary(p string) (bool, error) {
	f, err := os.Open(p)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, sniffBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return false, err
	}
	return bytes.IndexByte(buf[:n], 0) >= 0, nil
}

// readLines returns the pattern lines of an ignore file, or nil when it
// does not exist.
func readLines(p string) []string {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
