// Package guard checks that a run wrote only where it is allowed to, and
// whether the pack it produced is newer than the sources it describes.
package guard

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

type fileState struct {
	size  int64
	mtime time.Time
	mode  fs.FileMode
}

// Guard tracks the writes of one run.
//
// Snapshot must be called before the run writes anything and Check after
// the last write. The filesystem is inspected post hoc; no lock is held
// in between.
type Guard struct {
	root  string
	allow []string

	mu     sync.Mutex
	before map[string]fileState
	writes map[string]struct{}
}

// Result lists what the run touched.
type Result struct {
	// Writes are the paths the run reported writing.
	Writes []string

	// Changed are paths whose size, mtime or mode differ from the
	// snapshot, including created and removed files.
	Changed []string

	// Violations are the writes and changes outside the allow-list.
	Violations []string
}

// Violated reports whether anything was written outside the allow-list.
func (r Result) Violated() bool {
	return len(r.Violations) > 0
}

// New creates a guard for root. Entries of allow ending in "/" allow a
// whole directory; others allow one file. Paths are repo-relative.
func New(root string, allow []string) *Guard {
	cleaned := make([]string, 0, len(allow))
	for _, a := range allow {
		a = filepath.ToSlash(a)
		if strings.HasSuffix(a, "/") {
			cleaned = append(cleaned, path.Clean(a)+"/")
		} else {
			cleaned = append(cleaned, path.Clean(a))
		}
	}
	return &Guard{
		root:   root,
		allow:  cleaned,
		writes: make(map[string]struct{}),
	}
}

// IsAllowed reports whether rel may be written.
func (g *Guard) IsAllowed(rel string) bool {
	rel = path.Clean(filepath.ToSlash(rel))
	for _, a := range g.allow {
		if dir, ok := strings.CutSuffix(a, "/"); ok {
			if rel == dir || strings.HasPrefix(rel, a) {
				return true
			}
			continue
		}
		if rel == a {
			return true
		}
	}
	return false
}

// Snapshot records the state of every file under the root except .git.
func (g *Guard) Snapshot() error {
	state, err := g.scan()
	if err != nil {
		return fmt.Errorf("guard snapshot: %w", err)
	}
	g.mu.Lock()
	g.before = state
	g.mu.Unlock()
	return nil
}

// RecordWrite notes that the run wrote rel. Safe for concurrent use.
func (g *Guard) RecordWrite(rel string) {
	g.mu.Lock()
	g.writes[path.Clean(filepath.ToSlash(rel))] = struct{}{}
	g.mu.Unlock()
}

// Check compares the recorded writes and the current tree against the
// allow-list.
func (g *Guard) Check() (Result, error) {
	after, err := g.scan()
	if err != nil {
		return Result{}, fmt.Errorf("guard check: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var res Result
	for w := range g.writes {
		res.Writes = append(res.Writes, w)
	}
	if g.before != nil {
		res.Changed = diff(g.before, after)
	}

	bad := make(map[string]struct{})
	for _, p := range res.Writes {
		if !g.IsAllowed(p) {
			bad[p] = struct{}{}
		}
	}
	for _, p := range res.Changed {
		if !g.IsAllowed(p) {
			bad[p] = struct{}{}
		}
	}
	for p := range bad {
		res.Violations = append(res.Violations, p)
	}

	sort.Strings(res.Writes)
	sort.Strings(res.Violations)
	return res, nil
}

func (g *Guard) scan() (map[string]fileState, error) {
	state := make(map[string]fileState)
	err := filepath.WalkDir(g.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Entries that vanish or cannot be read mid-walk are not ours.
			if p == g.root {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" && p != g.root {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(g.root, p)
		if err != nil {
			return nil
		}
		state[filepath.ToSlash(rel)] = fileState{size: info.Size(), mtime: info.ModTime(), mode: info.Mode()}
		return nil
	})
	return state, err
}

func diff(before, after map[string]fileState) []string {
	var changed []string
	for p, b := range before {
		a, ok := after[p]
		if !ok || a.size != b.size || a.mode != b.mode || !a.mtime.Equal(b.mtime) {
			changed = append(changed, p)
		}
	}
	for p := range after {
		if _, ok := before[p]; !ok {
			changed = append(changed, p)
		}
	}
	sort.Strings(changed)
	return changed
}
