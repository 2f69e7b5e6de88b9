package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/modfile"

	"github.com/Benny93/contexter-go/internal/anchors"
	"github.com/Benny93/contexter-go/internal/budget"
	"github.com/Benny93/contexter-go/internal/config"
	"github.com/Benny93/contexter-go/internal/graph"
	"github.com/Benny93/contexter-go/internal/guard"
	"github.com/Benny93/contexter-go/internal/logging"
	"github.com/Benny93/contexter-go/internal/pack"
	"github.com/Benny93/contexter-go/internal/parsers"
	"github.com/Benny93/contexter-go/internal/redact"
)

// Status is the outcome of a run.
type Status string

const (
	StatusOK         Status = "ok"
	StatusWarnings   Status = "ok-with-warnings"
	StatusGateFailed Status = "gate-failed"
)

// ErrGateFailed is returned by Result.Err for gate-failed runs.
var ErrGateFailed = errors.New("gate failed")

// Options configures a run.
type Options struct {
	Root   string
	Config *config.Config

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// LookupEnv resolves rare-fact environment variables. Defaults to
	// os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Result summarizes a run.
type Result struct {
	Status Status
	Pack   *pack.Pack

	// PackPath is the repo-relative path the pack was written to.
	PackPath string

	// Warnings are the recoverable issues of the run.
	Warnings []string

	// GateReasons explain a gate-failed status.
	GateReasons []string

	Violations []string
	Stale      bool
	Duration   time.Duration
}

// Err returns an error wrapping ErrGateFailed for gate-failed runs.
func (r *Result) Err() error {
	if r.Status != StatusGateFailed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrGateFailed, strings.Join(r.GateReasons, "; "))
}

// fileResult is what one worker produces for one file.
type fileResult struct {
	ok     bool
	source pack.SourceFile
	lines  []string
	edges  []graph.Edge
	plan   budget.Plan
	found  []string
	note   string
}

// runEnv holds the read-only state shared by workers.
type runEnv struct {
	extractor *parsers.Extractor
	redactor  redact.Redactor
	estimator budget.Estimator
	windows   []anchors.Window
	middle    anchors.MiddleFunc
	tokens    []string
	workers   int
}

// Run scans the repository, builds the pack and replaces the previous one.
//
// Configuration errors are returned before anything is written. A
// cancelled context before the final write leaves the previous pack in
// place.
func Run(ctx context.Context, opts Options) (*Result, error) {
	logger := logging.GetLogger("pipeline")

	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	lookupEnv := opts.LookupEnv
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	redactor, err := redact.New(cfg.Redact.Enabled, cfg.Redact.Patterns)
	if err != nil {
		return nil, &config.Error{Field: "redact.patterns", Msg: "invalid pattern", Err: err}
	}

	start := now()

	g := guard.New(root, cfg.AllowList())
	if err := g.Snapshot(); err != nil {
		return nil, err
	}

	// Phase 1: inclusion filter
	t := time.Now()
	scan, err := WalkRepo(root, cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("phase", "walk").Int("files", len(scan.Files)).Int("notes", len(scan.Notes)).Msg("Scanned repository")
	logging.LogDuration(logger, t, "walk")

	// Phase 2: edges and retention ladders, one task per file
	t = time.Now()
	paths := make([]string, len(scan.Files))
	for i, c := range scan.Files {
		paths[i] = c.RelPath
	}
	resolver := parsers.NewResolver(paths, aliases(cfg), goModulePath(root), cfg.CaseInsensitiveTargets)

	env := &runEnv{
		extractor: parsers.NewExtractor(resolver, cfg.EnabledKinds(), cfg.IgnoreTargets),
		redactor:  redactor,
		estimator: budget.NewCharEstimator(cfg.Budget.CharsPerToken),
		windows:   windowLadder(cfg.Budget),
		middle:    anchors.Center,
		tokens:    factTokens(cfg.RareFacts),
		workers:   cfg.Workers,
	}
	if cfg.Budget.MidBlock == config.MidLargestDefinition {
		env.middle = anchors.LargestDefinition
	}

	results, err := env.processAll(ctx, scan.Files)
	if err != nil {
		return nil, fmt.Errorf("extracting: %w", err)
	}
	logging.LogDuration(logger, t, "extract")

	// Phase 3: merge
	notes := append([]string(nil), scan.Notes...)
	dg := graph.NewDependencyGraph()
	found := make(map[string]bool)
	var kept []fileResult
	for _, r := range results {
		if r.note != "" {
			notes = append(notes, r.note)
			logger.Info().Str("file", r.source.Path).Msg(r.note)
		}
		if !r.ok {
			continue
		}
		kept = append(kept, r)
		for _, e := range r.edges {
			dg.AddEdge(e)
		}
		for _, tok := range r.found {
			found[tok] = true
		}
	}

	unresolved := dg.Unresolved()
	sanity := guard.CheckSanity(cfg.DepSanityMode, unresolved)
	missing := missingFacts(cfg.RareFacts, lookupEnv, found)

	warnings := append([]string(nil), notes...)
	warnings = append(warnings, sanity.Warnings...)
	for _, m := range missing {
		warnings = append(warnings, "missing rare fact: "+m)
	}

	keptPaths := make([]string, len(kept))
	mtimes := make(map[string]time.Time, len(kept))
	for i, r := range kept {
		keptPaths[i] = r.source.Path
		mtimes[r.source.Path] = r.source.ModTime
	}

	freshness := pack.FreshnessUnchecked
	stale := false
	if cfg.FreshnessCheck {
		freshness = pack.FreshnessFresh
		if f := guard.CheckFreshness(start, mtimes); f.Stale {
			stale = true
			freshness = pack.FreshnessStale
			warnings = append(warnings, fmt.Sprintf("stale: %s modified after generation", f.LatestPath))
		}
	}

	// Phase 4: budget
	t = time.Now()
	git := ReadGitInfo(root)
	p := &pack.Pack{
		FrontMatter: pack.FrontMatter{
			Version:    pack.FormatVersion,
			Generated:  start.UTC().Format(time.RFC3339),
			Encoder:    env.estimator.Name(),
			TokenLimit: cfg.TokenLimit,
			Branch:     git.Branch,
			Commit:     git.Commit,
			Links:      links(cfg),
		},
		Policy: policyLine(cfg),
		Notes:  append([]string(nil), warnings...),
	}
	p.Metrics.Freshness = freshness

	scaffold := env.estimator.Estimate(pack.ScaffoldBound(p, keptPaths))
	edgeCost := func(es []graph.Edge) int { return env.estimator.Estimate(pack.RenderEdges(es)) }

	edges := dg.Edges()
	shown, dropped := budget.TruncateEdges(edges, max(0, cfg.TokenLimit-scaffold), edgeCost)
	graphCost := edgeCost(shown)

	// A truncated graph leaves nothing for files.
	filesBudget := 0
	if dropped == 0 {
		filesBudget = max(0, cfg.TokenLimit-scaffold-graphCost)
	} else {
		p.Notes = append(p.Notes, pack.GraphTruncatedNote(dropped, len(edges)))
	}

	plans := make([]budget.Plan, len(kept))
	for i, r := range kept {
		plans[i] = r.plan
	}
	var degree map[string]int
	if cfg.Budget.Priority == config.PriorityCentrality {
		degree = dg.Degree()
	}
	alloc := budget.Allocate(plans, budget.Order(keptPaths, degree), filesBudget)
	logger.Debug().Str("phase", "allocate").
		Int("scaffold", scaffold).Int("graph", graphCost).Int("files", alloc.Used).
		Int("budget", cfg.TokenLimit).Msg("Allocated budget")
	logging.LogDuration(logger, t, "allocate")

	// Phase 5: assemble
	for i, d := range alloc.Decisions {
		if d.Retention == budget.Omitted {
			continue
		}
		p.Files = append(p.Files, env.section(kept[i].source, kept[i].lines, d.Anchors, d.Retention))
	}
	truncated := alloc.Truncated() || dropped > 0
	p.Edges = shown
	p.FrontMatter.Truncated = truncated
	p.FrontMatter.Limiter = pack.LimiterNone
	if truncated {
		p.FrontMatter.Limiter = pack.LimiterTruncated
	}
	p.Metrics = pack.Metrics{
		FilesScanned:   len(scan.Files),
		FilesPacked:    len(p.Files),
		Full:           alloc.Count(budget.Full),
		Truncated:      alloc.Count(budget.Truncated),
		Omitted:        alloc.Count(budget.Omitted),
		Tokens:         scaffold + graphCost + alloc.Used,
		Edges:          len(shown),
		EdgesDropped:   dropped,
		Unresolved:     len(unresolved),
		Duration:       now().Sub(start),
		Freshness:      freshness,
		OmittedFiles:   alloc.Paths(budget.Omitted),
		TruncatedFiles: alloc.Paths(budget.Truncated),
	}
	doc := pack.Render(p)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Phase 6: write
	t = time.Now()
	packRel := cfg.PackPath()
	if err := g.WriteFile(packRel, cfg.Output.Dir, []byte(doc)); err != nil {
		return nil, fmt.Errorf("writing pack: %w", err)
	}
	if cfg.Output.UpdateGuidance && cfg.Output.GuidanceFile != "" {
		summary := GuidanceSummary{
			PackPath:   packRel,
			Generated:  p.FrontMatter.Generated,
			Scanned:    p.Metrics.FilesScanned,
			Packed:     p.Metrics.FilesPacked,
			Full:       p.Metrics.Full,
			Truncated:  p.Metrics.Truncated,
			Omitted:    p.Metrics.Omitted,
			Edges:      p.Metrics.Edges,
			Unresolved: p.Metrics.Unresolved,
			Freshness:  freshness,
			Warnings:   len(warnings),
		}
		for _, m := range missing {
			summary.Questions = append(summary.Questions, "Missing rare fact: "+m)
		}
		if err := updateGuidance(root, cfg, summary.Block(), g); err != nil {
			return nil, fmt.Errorf("updating guidance: %w", err)
		}
	}
	logging.LogDuration(logger, t, "write")

	// Phase 7: guard
	check, err := g.Check()
	if err != nil {
		return nil, err
	}
	if cfg.FreshnessCheck && !stale {
		if f := guard.CheckFreshness(start, guard.Stat(root, keptPaths)); f.Stale {
			stale = true
			warnings = append(warnings, fmt.Sprintf("stale: %s changed during the run", f.LatestPath))
		}
	}

	res := &Result{
		Pack:       p,
		PackPath:   packRel,
		Warnings:   warnings,
		Violations: check.Violations,
		Stale:      stale,
		Duration:   now().Sub(start),
	}
	if check.Violated() {
		res.GateReasons = append(res.GateReasons, "guard: writes outside the allow-list: "+strings.Join(check.Violations, ", "))
	}
	if sanity.Fatal {
		res.GateReasons = append(res.GateReasons, fmt.Sprintf("dep sanity: %d unresolved imports in strict mode", len(unresolved)))
	}
	switch {
	case len(res.GateReasons) > 0:
		res.Status = StatusGateFailed
	case len(warnings) > 0:
		res.Status = StatusWarnings
	default:
		res.Status = StatusOK
	}

	logger.Info().
		Str("status", string(res.Status)).
		Int("packed", p.Metrics.FilesPacked).
		Int("edges", p.Metrics.Edges).
		Bool("truncated", truncated).
		Msg("Pack written")
	return res, nil
}

// processAll runs one task per file on a bounded pool. Results are merged
// by index so their order matches files.
func (e *runEnv) processAll(ctx context.Context, files []Candidate) ([]fileResult, error) {
	type indexed struct {
		index int
		res   fileResult
	}

	numWorkers := e.workers
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	work := make(chan int, len(files))
	out := make(chan indexed, len(files))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				if ctx.Err() != nil {
					continue
				}
				out <- indexed{index: idx, res: e.processFile(files[idx])}
			}
		}()
	}

	for i := range files {
		work <- i
	}
	close(work)

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]fileResult, len(files))
	for r := range out {
		results[r.index] = r.res
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *runEnv) processFile(c Candidate) fileResult {
	content, err := os.ReadFile(c.Path)
	if err != nil {
		return fileResult{
			source: pack.SourceFile{Path: c.RelPath},
			note:   fmt.Sprintf("unreadable: %s: %v", c.RelPath, err),
		}
	}

	lines := splitLines(content)
	res := fileResult{
		ok: true,
		source: pack.SourceFile{
			Path:     c.RelPath,
			Language: c.Language,
			Size:     int64(len(content)),
			Lines:    len(lines),
			ModTime:  c.ModTime,
		},
		lines: lines,
		found: foundTokens(content, e.tokens),
	}

	res.edges, err = e.extractor.Extract(c.RelPath, c.Language, content)
	if err != nil {
		res.note = fmt.Sprintf("unparseable: %s: edges skipped", c.RelPath)
	}
	res.plan = e.plan(res.source, lines)
	return res
}

// plan builds the retention ladder of a file: each truncating window that
// does not already cover the whole file, then full.
func (e *runEnv) plan(src pack.SourceFile, lines []string) budget.Plan {
	var levels []budget.Level
	var prev []anchors.Anchor
	for _, w := range e.windows {
		a := anchors.Build(lines, w, e.middle)
		if anchors.IsFull(a, len(lines)) {
			break
		}
		if sameAnchors(a, prev) {
			continue
		}
		prev = a
		levels = append(levels, e.level(src, lines, a, budget.Truncated))
	}
	levels = append(levels, e.level(src, lines, anchors.Full(len(lines)), budget.Full))
	return budget.Plan{Path: src.Path, Levels: budget.NormalizeLevels(levels)}
}

func (e *runEnv) level(src pack.SourceFile, lines []string, a []anchors.Anchor, r budget.Retention) budget.Level {
	return budget.Level{
		Anchors:   a,
		Retention: r,
		Cost:      e.estimator.Estimate(pack.RenderSection(e.section(src, lines, a, r))),
	}
}

// section cuts and redacts the snippets of a file for the given anchors.
func (e *runEnv) section(src pack.SourceFile, lines []string, a []anchors.Anchor, r budget.Retention) pack.Section {
	snippets := make([]string, len(a))
	for i, an := range a {
		snippets[i] = redact.KeepLines(e.redactor, strings.Join(lines[an.Start-1:an.End], "\n"))
	}
	return pack.Section{File: src, Retention: r, Anchors: a, Snippets: snippets}
}

// windowLadder returns the truncating windows from smallest to largest:
// the minimal window, a quarter, a half and the whole base window.
func windowLadder(b config.Budget) []anchors.Window {
	base := anchors.Window{Head: b.Window.Head, Mid: b.Window.Mid, Tail: b.Window.Tail}
	floor := anchors.Window{Head: b.MinWindow.Head, Mid: b.MinWindow.Mid, Tail: b.MinWindow.Tail}
	return []anchors.Window{
		floor,
		base.Scale(1, 4, floor),
		base.Scale(1, 2, floor),
		base.Scale(1, 1, floor),
	}
}

func sameAnchors(a, b []anchors.Anchor) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Start != b[i].Start || a[i].End != b[i].End {
			return false
		}
	}
	return true
}

// splitLines splits content into lines without their terminators. A final
// newline does not start another line.
func splitLines(content []byte) []string {
	if len(content) == 0 {
		return nil
	}
	return strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
}

func aliases(cfg *config.Config) []parsers.Alias {
	out := make([]parsers.Alias, 0, len(cfg.PathAliases))
	for _, a := range cfg.PathAliases {
		out = append(out, parsers.Alias{Prefix: a.From, Dir: strings.TrimSuffix(a.To, "/")})
	}
	return out
}

func links(cfg *config.Config) []pack.Link {
	var out []pack.Link
	for _, r := range cfg.Links.Repos {
		out = append(out, pack.Link{Name: r.Name, PackURI: r.PackURI})
	}
	return out
}

func policyLine(cfg *config.Config) string {
	b := cfg.Budget
	return fmt.Sprintf("priority=%s mid_block=%s window=%d/%d/%d min_window=%d/%d/%d dep_sanity=%s",
		b.Priority, b.MidBlock,
		b.Window.Head, b.Window.Mid, b.Window.Tail,
		b.MinWindow.Head, b.MinWindow.Mid, b.MinWindow.Tail,
		cfg.DepSanityMode)
}

// goModulePath returns the module path declared in root/go.mod, or "".
func goModulePath(root string) string {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return ""
	}
	return modfile.ModulePath(data)
}

// updateGuidance replaces the managed block of the guidance file.
func updateGuidance(root string, cfg *config.Config, block string, g *guard.Guard) error {
	target := filepath.Join(root, filepath.FromSlash(cfg.Output.GuidanceFile))
	existing, err := os.ReadFile(target)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	merged := MergeGuidance(string(existing), block)
	if merged == string(existing) {
		return nil
	}
	return g.WriteFile(cfg.Output.GuidanceFile, cfg.Output.Dir, []byte(merged))
}
