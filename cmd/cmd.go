// Package cmd provides CLI command implementations for contexter.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/Benny93/contexter-go/internal/config"
	"github.com/Benny93/contexter-go/internal/graph"
	"github.com/Benny93/contexter-go/internal/guard"
	"github.com/Benny93/contexter-go/internal/hub"
	"github.com/Benny93/contexter-go/internal/ingestion"
	"github.com/Benny93/contexter-go/internal/logging"
	"github.com/Benny93/contexter-go/internal/pack"
	"github.com/Benny93/contexter-go/internal/storage"
	"github.com/Benny93/contexter-go/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	// ErrUsage marks command-line parse errors.
	ErrUsage = errors.New("usage")

	// ErrStale is returned by `status --check` when the pack is out of date.
	ErrStale = errors.New("pack is stale")
)

// Globals are the flags shared by every command.
type Globals struct {
	Version kong.VersionFlag `help:"Show version information"`
	Verbose int              `short:"v" type:"counter" help:"Increase log verbosity (repeatable)"`
	Quiet   bool             `short:"q" help:"Only log errors"`
	Config  string           `help:"Config file (default: <path>/CONTEXTER.yaml)" type:"path"`
}

// RunCmd generates the context pack once.
type RunCmd struct {
	Path       string `arg:"" optional:"" default:"." help:"Path to repository"`
	TokenLimit int    `help:"Override the token limit"`
	Strict     bool   `help:"Fail the run on unresolved imports"`
	Workers    int    `help:"Number of extraction workers (0 = one per CPU)"`
	NoGuidance bool   `help:"Do not update the guidance file"`
}

func (c *RunCmd) overrides() map[string]any {
	o := map[string]any{}
	if c.TokenLimit != 0 {
		o["token_limit"] = c.TokenLimit
	}
	if c.Strict {
		o["dep_sanity_mode"] = config.SanityStrict
	}
	if c.Workers != 0 {
		o["workers"] = c.Workers
	}
	if c.NoGuidance {
		o["output.update_guidance"] = false
	}
	return o
}

// Run executes the run command.
func (c *RunCmd) Run(g *Globals) error {
	root, err := repoRoot(c.Path)
	if err != nil {
		return err
	}
	cfg, err := config.LoadWithOverrides(root, g.Config, c.overrides())
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	res, err := ingestion.Run(ctx, ingestion.Options{Root: root, Config: cfg})
	if err != nil {
		return err
	}
	printResult(res, cfg)
	return res.Err()
}

// WatchCmd regenerates the pack whenever the repository changes.
type WatchCmd struct {
	Path     string        `arg:"" optional:"" default:"." help:"Path to repository"`
	Debounce time.Duration `help:"Quiet period before a re-run (default 2s)"`
}

// Run executes the watch command.
func (c *WatchCmd) Run(g *Globals) error {
	root, err := repoRoot(c.Path)
	if err != nil {
		return err
	}
	overrides := map[string]any{}
	if c.Debounce > 0 {
		overrides["watch.debounce"] = c.Debounce.String()
	}
	cfg, err := config.LoadWithOverrides(root, g.Config, overrides)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	fmt.Println("## Watch Mode")
	fmt.Printf("Watching %s for changes (Ctrl+C to stop)\n\n", root)

	err = ingestion.WatchRepo(ctx, ingestion.Options{Root: root, Config: cfg}, func(res *ingestion.Result, err error) {
		if err != nil {
			color.Red("Run failed: %v", err)
			return
		}
		printResult(res, cfg)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch error: %w", err)
	}

	fmt.Println("Watch mode stopped.")
	return nil
}

// StatusCmd reports the current pack and whether it is fresh.
type StatusCmd struct {
	Path  string `arg:"" optional:"" default:"." help:"Path to repository"`
	Check bool   `help:"Exit non-zero when the pack is stale"`
}

// Run executes the status command.
func (c *StatusCmd) Run(g *Globals) error {
	root, err := repoRoot(c.Path)
	if err != nil {
		return err
	}
	cfg, err := config.LoadWithOverrides(root, g.Config, nil)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(cfg.PackPath())))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no pack found at %s. Run 'contexter run' first", root)
		}
		return fmt.Errorf("reading pack: %w", err)
	}
	doc, err := pack.Parse(data)
	if err != nil {
		return fmt.Errorf("parsing pack: %w", err)
	}
	fm := doc.FrontMatter
	generated, err := fm.GeneratedTime()
	if err != nil {
		return fmt.Errorf("parsing generated time: %w", err)
	}

	scan, err := ingestion.WalkRepo(root, cfg)
	if err != nil {
		return err
	}
	paths := make([]string, 0, len(scan.Files))
	for _, f := range scan.Files {
		paths = append(paths, f.RelPath)
	}
	// generated has second precision; anything within that second is not newer.
	fresh := guard.CheckFreshness(generated.Add(time.Second-time.Nanosecond), guard.Stat(root, paths))

	fmt.Printf("Pack status for %s\n", root)
	fmt.Printf("  Pack:           %s\n", cfg.PackPath())
	fmt.Printf("  Generated:      %s\n", fm.Generated)
	fmt.Printf("  Branch:         %s @ %s\n", fm.Branch, fm.Commit)
	fmt.Printf("  Token limit:    %d\n", fm.TokenLimit)
	fmt.Printf("  Truncated:      %t\n", fm.Truncated)
	fmt.Printf("  Edges:          %d\n", len(doc.Edges))

	if fresh.Stale {
		color.Yellow("  Freshness:      stale (%s modified %s)", fresh.LatestPath, fresh.Latest.UTC().Format(time.RFC3339))
		if c.Check {
			return fmt.Errorf("%w: %s modified after generation", ErrStale, fresh.LatestPath)
		}
		return nil
	}
	color.Green("  Freshness:      fresh")
	return nil
}

// CleanCmd deletes the generated pack.
type CleanCmd struct {
	Path  string `arg:"" optional:"" default:"." help:"Path to repository"`
	Force bool   `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run(g *Globals) error {
	root, err := repoRoot(c.Path)
	if err != nil {
		return err
	}
	cfg, err := config.LoadWithOverrides(root, g.Config, nil)
	if err != nil {
		return err
	}

	packPath := filepath.Join(root, filepath.FromSlash(cfg.PackPath()))
	if _, err := os.Stat(packPath); os.IsNotExist(err) {
		return fmt.Errorf("no pack found at %s. Nothing to clean", root)
	}

	if !c.Force {
		fmt.Printf("Delete %s? [y/N] ", packPath)
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := os.Remove(packPath); err != nil {
		return fmt.Errorf("deleting pack: %w", err)
	}

	color.Green("Deleted %s", packPath)
	return nil
}

// InitCmd writes a starter configuration file.
type InitCmd struct {
	Path  string `arg:"" optional:"" default:"." help:"Path to repository"`
	Force bool   `short:"f" help:"Overwrite an existing config file"`
}

// Run executes the init command.
func (c *InitCmd) Run() error {
	root, err := repoRoot(c.Path)
	if err != nil {
		return err
	}

	cfgPath := filepath.Join(root, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil && !c.Force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
	}
	if err := os.WriteFile(cfgPath, config.DefaultYAML(), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	color.Green("✓ Created %s", cfgPath)
	return nil
}

// HubCmd groups the multi-repository commands.
type HubCmd struct {
	Build HubBuildCmd `cmd:"" help:"Merge linked packs into the hub graph"`
	Query HubQueryCmd `cmd:"" help:"Show hub neighbours of a node"`
}

// HubBuildCmd merges linked packs.
type HubBuildCmd struct {
	Path string `arg:"" optional:"" default:"." help:"Path to the hub repository"`
}

// Run executes the hub build command.
func (c *HubBuildCmd) Run(g *Globals) error {
	root, err := repoRoot(c.Path)
	if err != nil {
		return err
	}
	cfg, err := config.LoadWithOverrides(root, g.Config, nil)
	if err != nil {
		return err
	}
	if len(cfg.Links.Repos) == 0 {
		return fmt.Errorf("no links.repos configured in %s", config.FileName)
	}

	ctx, stop := signalContext()
	defer stop()

	store, err := hub.OpenStore(root, cfg, false)
	if err != nil {
		return fmt.Errorf("opening hub store: %w", err)
	}
	defer func() { _ = store.Close() }()

	h, err := hub.Build(ctx, root, cfg, store, time.Now())
	if err != nil {
		return err
	}

	color.Green("✓ Hub written to %s", cfg.HubPath())
	fmt.Printf("  Sources:        %d\n", len(h.FrontMatter.Sources))
	fmt.Printf("  Edges:          %d", len(h.Edges))
	if h.Dropped > 0 {
		fmt.Printf(" (%d of %d dropped)", h.Dropped, h.Total)
	}
	fmt.Println()
	for _, bl := range h.Broken {
		color.Yellow("  BROKEN LINK: %s (%s): %s", bl.Name, bl.PackURI, bl.Reason)
	}
	return nil
}

// HubQueryCmd walks the hub store from a node.
type HubQueryCmd struct {
	Node      string `arg:"" help:"Qualified node ID (repo:path)"`
	Path      string `default:"." help:"Path to the hub repository"`
	Direction string `short:"d" default:"out" enum:"out,in,both" help:"Edge direction (out|in|both)"`
	Depth     int    `default:"1" help:"Traversal depth"`
}

// Run executes the hub query command.
func (c *HubQueryCmd) Run(g *Globals) error {
	root, err := repoRoot(c.Path)
	if err != nil {
		return err
	}
	cfg, err := config.LoadWithOverrides(root, g.Config, nil)
	if err != nil {
		return err
	}
	dir, err := storage.ParseDirection(c.Direction)
	if err != nil {
		return err
	}

	store, err := loadStore(root, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	node, err := store.GetNode(ctx, c.Node)
	if err != nil {
		return err
	}
	if node == nil {
		fmt.Printf("Node '%s' not found in the hub graph.\n", c.Node)
		return nil
	}

	hops, err := store.Traverse(ctx, c.Node, c.Depth, dir)
	if err != nil {
		return err
	}

	fmt.Printf("## Neighbours of: **%s** (%s, depth: %d)\n\n", c.Node, dir, c.Depth)
	if len(hops) == 0 {
		fmt.Println("None")
		return nil
	}
	for _, h := range hops {
		fmt.Printf("- [%d] %s via %s\n", h.Depth, h.Node, graph.FormatEdge(h.Via))
	}
	return nil
}

// MCPCmd starts the MCP server.
type MCPCmd struct {
	Path string `arg:"" optional:"" default:"." help:"Path to repository"`
}

// Run executes the mcp command.
func (c *MCPCmd) Run(g *Globals) error {
	root, err := repoRoot(c.Path)
	if err != nil {
		return err
	}
	cfg, err := config.LoadWithOverrides(root, g.Config, nil)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	var backend storage.Backend
	if store, err := loadStore(root, cfg); err == nil {
		defer func() { _ = store.Close() }()
		backend = store
	}

	// Note: No output to stdout - the MCP server owns it.
	server := mcp.NewServer(root, cfg, backend)
	return server.Run(ctx)
}

// Helper functions

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func repoRoot(path string) (string, error) {
	root, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("accessing %s: %w", root, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", root)
	}
	return root, nil
}

func loadStore(root string, cfg *config.Config) (*storage.BadgerBackend, error) {
	dbPath := filepath.Join(root, filepath.FromSlash(cfg.HubStorePath()))
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("no hub store found at %s. Run 'contexter hub build' first", root)
	}
	store, err := hub.OpenStore(root, cfg, true)
	if err != nil {
		return nil, fmt.Errorf("opening hub store: %w", err)
	}
	return store, nil
}

func printResult(res *ingestion.Result, cfg *config.Config) {
	m := res.Pack.Metrics
	switch res.Status {
	case ingestion.StatusOK:
		color.Green("✓ Pack written to %s", res.PackPath)
	case ingestion.StatusWarnings:
		color.Yellow("✓ Pack written to %s (with warnings)", res.PackPath)
	default:
		color.Red("✗ Pack written to %s, gate failed", res.PackPath)
	}
	fmt.Printf("  Tokens:         %d / %d\n", m.Tokens, cfg.TokenLimit)
	fmt.Printf("  Files:          %d scanned, %d full, %d truncated, %d omitted\n",
		m.FilesScanned, m.Full, m.Truncated, m.Omitted)
	fmt.Printf("  Edges:          %d", m.Edges)
	if m.EdgesDropped > 0 {
		fmt.Printf(" (%d dropped)", m.EdgesDropped)
	}
	fmt.Println()
	fmt.Printf("  Duration:       %.2fs\n", res.Duration.Seconds())

	for _, w := range res.Warnings {
		color.Yellow("  warning: %s", w)
	}
	for _, r := range res.GateReasons {
		color.Red("  gate: %s", r)
	}
}

// CLI is the root Kong command structure.
type CLI struct {
	Globals

	// Commands
	Run    RunCmd    `cmd:"" help:"Generate the context pack"`
	Watch  WatchCmd  `cmd:"" help:"Regenerate the pack on every change"`
	Status StatusCmd `cmd:"" help:"Show the current pack and its freshness"`
	Clean  CleanCmd  `cmd:"" help:"Delete the generated pack"`
	Init   InitCmd   `cmd:"" help:"Write a starter CONTEXTER.yaml"`
	Hub    HubCmd    `cmd:"" help:"Multi-repository hub graph"`
	MCP    MCPCmd    `cmd:"" help:"Start MCP server (stdio transport)"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	parser, err := kong.New(c,
		kong.Name("contexter"),
		kong.Description("Pack a repository into a bounded-size context document"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	logging.SetupLogger(c.Verbose, c.Quiet)
	return kongCtx.Run(&c.Globals)
}
