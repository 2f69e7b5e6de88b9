package ingestion

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Benny93/contexter-go/internal/config"
	"github.com/Benny93/contexter-go/internal/logging"
)

// DefaultDebounce is the quiet period used when watch.debounce is unset.
const DefaultDebounce = 2 * time.Second

// WatchRepo runs the pipeline once, then again after every quiet period
// that follows a relevant change. It blocks until ctx is cancelled. onRun
// receives the outcome of every run.
func WatchRepo(ctx context.Context, opts Options, onRun func(*Result, error)) error {
	logger := logging.GetLogger("watcher")

	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
		opts.Config = cfg
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}
	opts.Root = root

	debounce := cfg.Watch.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	filter, err := watchFilter(root, cfg)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := addTree(watcher, root, root, filter); err != nil {
		return fmt.Errorf("setting up watcher: %w", err)
	}

	run := func() {
		res, err := Run(ctx, opts)
		if onRun != nil {
			onRun(res, err)
		}
	}
	run()

	pending := make(map[string]bool)
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	logger.Info().Str("root", root).Dur("debounce", debounce).Msg("Watching for changes")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			rel, ok := relevantChange(root, filter, event)
			if !ok {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addTree(watcher, root, event.Name, filter); err != nil {
						logger.Warn().Err(err).Str("dir", rel).Msg("Cannot watch directory")
					}
				}
			}
			pending[rel] = true
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("Watch error")

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			logger.Info().Int("changed", len(pending)).Msg("Re-running pipeline")
			pending = make(map[string]bool)
			run()

			// Ignore files may have changed with the batch.
			if f, err := watchFilter(root, cfg); err == nil {
				filter = f
			}
		}
	}
}

// watchFilter builds the inclusion filter with nested .gitignore files
// loaded.
func watchFilter(root string, cfg *config.Config) (*Filter, error) {
	scan, err := WalkRepo(root, cfg)
	if err != nil {
		return nil, err
	}
	return scan.Filter, nil
}

// relevantChange returns the repo-relative path of an event that can change
// the pack.
func relevantChange(root string, filter *Filter, event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return "", false
	}
	rel, err := filepath.Rel(root, event.Name)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)

	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}
	if filter.Excluded(rel, isDir) {
		return "", false
	}
	return rel, true
}

// addTree watches dir and every non-excluded directory below it.
func addTree(w *fsnotify.Watcher, root, dir string, filter *Filter) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Directories can vanish between the event and the walk.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		if rel != "." && filter.Excluded(filepath.ToSlash(rel), true) {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}
