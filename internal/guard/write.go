package guard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotAllowed is returned by WriteFile for paths outside the allow-list.
var ErrNotAllowed = errors.New("write outside the allow-list")

// WriteFile replaces root/rel with data through a temp file in tmpDir and a
// rename, recording both writes. An existing file keeps its permissions.
func (g *Guard) WriteFile(rel, tmpDir string, data []byte) error {
	if !g.IsAllowed(rel) {
		return fmt.Errorf("%s: %w", rel, ErrNotAllowed)
	}
	target := filepath.Join(g.root, filepath.FromSlash(rel))
	dir := filepath.Join(g.root, filepath.FromSlash(tmpDir))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	perm := os.FileMode(0o644)
	if info, err := os.Stat(target); err == nil {
		perm = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, ".contexter-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if tmpRel, err := filepath.Rel(g.root, tmpName); err == nil {
		g.RecordWrite(tmpRel)
	}
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		return err
	}
	g.RecordWrite(rel)
	return nil
}
