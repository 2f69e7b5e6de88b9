package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/contexter-go/internal/graph"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()

	assert.Equal(t, 120000, cfg.TokenLimit)
	assert.Equal(t, SanityWarn, cfg.DepSanityMode)
	assert.Equal(t, PriorityPath, cfg.Budget.Priority)
	assert.Equal(t, MidCenter, cfg.Budget.MidBlock)
	assert.Equal(t, 4, cfg.Budget.CharsPerToken)
	assert.Equal(t, Window{Head: 60, Mid: 40, Tail: 30}, cfg.Budget.Window)
	assert.Equal(t, Window{Head: 3, Mid: 2, Tail: 3}, cfg.Budget.MinWindow)
	assert.Equal(t, 2*time.Second, cfg.Watch.Debounce)
	assert.Equal(t, "contexter/pack/CONTEXTPACK.md", cfg.PackPath())
	assert.Equal(t, "contexter/hub/graph.md", cfg.HubPath())
	assert.Equal(t, []string{"contexter/", "PLAN.md"}, cfg.AllowList())
	assert.Contains(t, cfg.HeavyDirs, "node_modules")
	assert.True(t, cfg.Redact.Enabled)
	assert.NotEmpty(t, cfg.Redact.Patterns)
	assert.Len(t, cfg.EnabledKinds(), 4)
	require.NoError(t, cfg.Validate())
}

func TestDefaultYAML_IsCopy(t *testing.T) {
	t.Parallel()

	a := DefaultYAML()
	a[0] = 'X'
	assert.NotEqual(t, a[0], DefaultYAML()[0])
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(t.TempDir(), "")

	require.NoError(t, err)
	assert.Equal(t, Default().TokenLimit, cfg.TokenLimit)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(t.TempDir(), "/does/not/exist.yaml")

	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, `
token_limit: 500
dep_sanity_mode: strict
ignore: ["*.gen.go"]
languages:
  py: python
path_aliases:
  - from: "@app/"
    to: "src/"
ignore_targets: [os, "github.com/*"]
dependency_kinds: [import, db]
budget:
  priority: centrality
  window: {head: 10, mid: 6, tail: 4}
links:
  repos:
    - name: api
      pack_uri: ../api/contexter/pack/CONTEXTPACK.md
`)

	cfg, err := Load(dir, "")
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.TokenLimit)
	assert.Equal(t, SanityStrict, cfg.DepSanityMode)
	assert.Equal(t, []string{"*.gen.go"}, cfg.Ignore)
	assert.Equal(t, "python", cfg.Languages["py"])
	assert.Equal(t, []PathAlias{{From: "@app/", To: "src/"}}, cfg.PathAliases)
	assert.Equal(t, []string{"os", "github.com/*"}, cfg.IgnoreTargets)
	assert.Equal(t, map[graph.EdgeKind]bool{graph.KindImport: true, graph.KindDB: true}, cfg.EnabledKinds())
	assert.Equal(t, PriorityCentrality, cfg.Budget.Priority)
	assert.Equal(t, Window{Head: 10, Mid: 6, Tail: 4}, cfg.Budget.Window)
	// Untouched nested keys keep their defaults.
	assert.Equal(t, Window{Head: 3, Mid: 2, Tail: 3}, cfg.Budget.MinWindow)
	require.Len(t, cfg.Links.Repos, 1)
	assert.Equal(t, "api", cfg.Links.Repos[0].Name)
}

func TestLoad_MalformedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, "token_limit: [unclosed\n")

	_, err := Load(dir, "")

	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "token_limit: 500\n")
	t.Setenv("CONTEXTER_TOKEN_LIMIT", "900")
	t.Setenv("CONTEXTER_BUDGET__WINDOW__HEAD", "12")

	cfg, err := Load(dir, "")

	require.NoError(t, err)
	assert.Equal(t, 900, cfg.TokenLimit)
	assert.Equal(t, 12, cfg.Budget.Window.Head)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"TokenLimit", func(c *Config) { c.TokenLimit = 0 }, "token_limit"},
		{"SanityMode", func(c *Config) { c.DepSanityMode = "loud" }, "dep_sanity_mode"},
		{"Priority", func(c *Config) { c.Budget.Priority = "random" }, "budget.priority"},
		{"MidBlock", func(c *Config) { c.Budget.MidBlock = "first" }, "budget.mid_block"},
		{"Window", func(c *Config) { c.Budget.Window.Mid = 0 }, "budget.window"},
		{"MinExceedsBase", func(c *Config) { c.Budget.MinWindow.Head = 100 }, "budget.min_window"},
		{"ConflictingAliases", func(c *Config) {
			c.PathAliases = []PathAlias{{From: "@app/", To: "src/"}, {From: "@app/", To: "lib/"}}
		}, "path_aliases"},
		{"EmptyAlias", func(c *Config) { c.PathAliases = []PathAlias{{From: "", To: "src"}} }, "path_aliases"},
		{"Kind", func(c *Config) { c.DependencyKinds = []string{"rpc"} }, "dependency_kinds"},
		{"IgnoreTarget", func(c *Config) { c.IgnoreTargets = []string{"[abc"} }, "ignore_targets"},
		{"RedactPattern", func(c *Config) { c.Redact.Patterns = []string{"(unclosed"} }, "redact.patterns"},
		{"OutputOutsideRepo", func(c *Config) { c.Output.Dir = "../elsewhere" }, "output.dir"},
		{"DuplicateLink", func(c *Config) {
			c.Links.Repos = []RepoLink{{Name: "a", PackURI: "x"}, {Name: "a", PackURI: "y"}}
		}, "links.repos"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			var cerr *Error
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestValidate_SameAliasTwiceIsFine(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.PathAliases = []PathAlias{{From: "@app/", To: "src/"}, {From: "@app/", To: "src"}}

	assert.NoError(t, cfg.Validate())
}

func TestError_Message(t *testing.T) {
	t.Parallel()

	err := &Error{Field: "token_limit", Msg: "must be positive"}
	assert.Equal(t, "config: token_limit: must be positive", err.Error())
	assert.False(t, IsConfigError(os.ErrNotExist))
}

func TestLoadWithOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "token_limit: 500\nbudget:\n  priority: path\n")

	cfg, err := LoadWithOverrides(dir, "", map[string]any{
		"token_limit":     2000,
		"budget.priority": PriorityCentrality,
	})

	require.NoError(t, err)
	assert.Equal(t, 2000, cfg.TokenLimit)
	assert.Equal(t, PriorityCentrality, cfg.Budget.Priority)

	_, err = LoadWithOverrides(dir, "", map[string]any{"dep_sanity_mode": "loud"})
	assert.True(t, IsConfigError(err))
}
