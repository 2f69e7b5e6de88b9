package guard

import (
	"os"
	"path/filepath"
	"time"
)

// Freshness compares a pack's generation time with its sources.
type Freshness struct {
	Generated  time.Time
	Latest     time.Time
	LatestPath string
	Stale      bool
}

// CheckFreshness reports the pack stale when any of mtimes (repo-relative
// path to modification time) is after generated.
func CheckFreshness(generated time.Time, mtimes map[string]time.Time) Freshness {
	f := Freshness{Generated: generated}
	for p, t := range mtimes {
		if t.After(f.Latest) || (t.Equal(f.Latest) && p < f.LatestPath) {
			f.Latest = t
			f.LatestPath = p
		}
	}
	f.Stale = f.Latest.After(generated)
	return f
}

// Stat returns the current modification times of paths under root.
// Paths that no longer exist are left out.
func Stat(root string, paths []string) map[string]time.Time {
	mtimes := make(map[string]time.Time, len(paths))
	for _, p := range paths {
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(p)))
		if err != nil {
			continue
		}
		mtimes[p] = info.ModTime()
	}
	return mtimes
}
