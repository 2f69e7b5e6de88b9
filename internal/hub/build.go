package hub

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Benny93/contexter-go/internal/budget"
	"github.com/Benny93/contexter-go/internal/config"
	"github.com/Benny93/contexter-go/internal/guard"
	"github.com/Benny93/contexter-go/internal/logging"
	"github.com/Benny93/contexter-go/internal/storage"
)

// Build merges the configured links, writes the hub document and loads the
// merged graph into store. A nil store skips the load.
func Build(ctx context.Context, root string, cfg *config.Config, store storage.Backend, now time.Time) (*Hub, error) {
	logger := logging.GetLogger("hub")

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	est := budget.NewCharEstimator(cfg.Budget.CharsPerToken)
	h := Merge(root, cfg.Links.Repos, cfg.Hub.TokenLimit, est, now)
	for _, bl := range h.Broken {
		logger.Warn().Str("repo", bl.Name).Str("pack_uri", bl.PackURI).Msg(bl.Reason)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g := guard.New(root, cfg.AllowList())
	if err := g.WriteFile(cfg.HubPath(), cfg.Output.Dir, []byte(Render(h))); err != nil {
		return nil, fmt.Errorf("writing hub: %w", err)
	}

	if store != nil {
		if err := store.BulkLoad(ctx, h.Graph()); err != nil {
			return nil, fmt.Errorf("loading hub store: %w", err)
		}
	}

	logger.Info().
		Int("sources", len(h.FrontMatter.Sources)).
		Int("broken", len(h.Broken)).
		Int("edges", len(h.Edges)).
		Msg("Hub written")
	return h, nil
}

// OpenStore opens the Badger hub store of the repository at root.
func OpenStore(root string, cfg *config.Config, readOnly bool) (*storage.BadgerBackend, error) {
	store := storage.NewBadgerBackend()
	p := filepath.Join(root, filepath.FromSlash(cfg.HubStorePath()))
	if err := store.Initialize(p, readOnly); err != nil {
		return nil, err
	}
	return store, nil
}
