// Package config loads and validates the contexter configuration.
//
// Values are layered: built-in defaults, then CONTEXTER.yaml, then
// CONTEXTER_* environment variables. A missing file is not an error.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/Benny93/contexter-go/internal/graph"
)

// FileName is the config file looked up in the repository root.
const FileName = "CONTEXTER.yaml"

// EnvPrefix prefixes environment overrides. A double underscore separates
// nesting levels: CONTEXTER_BUDGET__WINDOW__HEAD=80.
const EnvPrefix = "CONTEXTER_"

//go:embed defaults.yaml
var defaultConfig []byte

// Dependency sanity modes.
const (
	SanityWarn   = "warn"
	SanityStrict = "strict"
	SanityOff    = "off"
)

// Priority policies.
const (
	PriorityPath       = "path"
	PriorityCentrality = "centrality"
)

// Middle-window strategies.
const (
	MidCenter            = "center"
	MidLargestDefinition = "largest_definition"
)

// Config is the full set of recognized options.
type Config struct {
	Ignore                 []string          `koanf:"ignore"`
	HeavyDirs              []string          `koanf:"heavy_dirs"`
	Languages              map[string]string `koanf:"languages"`
	MaxFileBytes           int64             `koanf:"max_file_bytes"`
	TokenLimit             int               `koanf:"token_limit"`
	DepSanityMode          string            `koanf:"dep_sanity_mode"`
	PathAliases            []PathAlias       `koanf:"path_aliases"`
	IgnoreTargets          []string          `koanf:"ignore_targets"`
	CaseInsensitiveTargets bool              `koanf:"case_insensitive_targets"`
	DependencyKinds        []string          `koanf:"dependency_kinds"`
	Budget                 Budget            `koanf:"budget"`
	Redact                 Redact            `koanf:"redact"`
	Output                 Output            `koanf:"output"`
	FreshnessCheck         bool              `koanf:"freshness_check"`
	RareFacts              RareFacts         `koanf:"rare_facts"`
	Links                  Links             `koanf:"links"`
	Hub                    Hub               `koanf:"hub"`
	Watch                  Watch             `koanf:"watch"`
	Workers                int               `koanf:"workers"`
}

// PathAlias maps an import prefix onto a repository directory.
type PathAlias struct {
	From string `koanf:"from" yaml:"from"`
	To   string `koanf:"to" yaml:"to"`
}

// Window is a head/middle/tail line allowance.
type Window struct {
	Head int `koanf:"head"`
	Mid  int `koanf:"mid"`
	Tail int `koanf:"tail"`
}

// Budget holds estimator and allocator settings.
type Budget struct {
	CharsPerToken int    `koanf:"chars_per_token"`
	Priority      string `koanf:"priority"`
	MidBlock      string `koanf:"mid_block"`
	Window        Window `koanf:"window"`
	MinWindow     Window `koanf:"min_window"`
}

// Redact configures the snippet redactor.
type Redact struct {
	Enabled  bool     `koanf:"enabled"`
	Patterns []string `koanf:"patterns"`
}

// Output names the files the run is allowed to write.
type Output struct {
	Dir            string `koanf:"dir"`
	PackFile       string `koanf:"pack_file"`
	HubFile        string `koanf:"hub_file"`
	HubStore       string `koanf:"hub_store"`
	GuidanceFile   string `koanf:"guidance_file"`
	UpdateGuidance bool   `koanf:"update_guidance"`
}

// RareFacts lists facts the run expects to find.
type RareFacts struct {
	Env   []string `koanf:"env"`
	Flags []string `koanf:"flags"`
	Paths []string `koanf:"paths"`
}

// Links lists other repositories whose packs feed the hub.
type Links struct {
	Repos []RepoLink `koanf:"repos"`
}

// RepoLink points at another repository's pack.
type RepoLink struct {
	Name    string `koanf:"name" yaml:"name"`
	PackURI string `koanf:"pack_uri" yaml:"pack_uri"`
}

// Hub configures the multi-repo merge.
type Hub struct {
	TokenLimit int `koanf:"token_limit"`
}

// Watch configures the watch driver.
type Watch struct {
	Debounce time.Duration `koanf:"debounce"`
}

// Error is a configuration error. It aborts a run before anything is written.
type Error struct {
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return "config: " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsConfigError reports whether err is, or wraps, a configuration error.
func IsConfigError(err error) bool {
	var cerr *Error
	return errors.As(err, &cerr)
}

type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

// DefaultYAML returns the commented default configuration file.
func DefaultYAML() []byte {
	out := make([]byte, len(defaultConfig))
	copy(out, defaultConfig)
	return out
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := load("", nil, nil)
	if err != nil {
		// The embedded defaults are part of the binary.
		panic(err)
	}
	return cfg
}

// Load reads the configuration for the repository at root. When cfgPath is
// empty, root/CONTEXTER.yaml is used if it exists.
func Load(root, cfgPath string) (*Config, error) {
	return LoadWithOverrides(root, cfgPath, nil)
}

// LoadWithOverrides is Load with a final layer of dotted keys, used for
// command-line flags (e.g. "token_limit" or "budget.priority").
func LoadWithOverrides(root, cfgPath string, overrides map[string]any) (*Config, error) {
	if cfgPath == "" {
		candidate := filepath.Join(root, FileName)
		if _, err := os.Stat(candidate); err == nil {
			cfgPath = candidate
		}
	} else if _, err := os.Stat(cfgPath); err != nil {
		return nil, &Error{Msg: "reading " + cfgPath, Err: err}
	}

	cfg, err := load(cfgPath, os.Environ(), overrides)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(cfgPath string, environ []string, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	// 1. Embedded defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if cfgPath != "" {
		if err := k.Load(file.Provider(cfgPath), yaml.Parser()); err != nil {
			return nil, &Error{Msg: "parsing " + cfgPath, Err: err}
		}
	}

	// 3. Environment overrides
	if hasPrefixed(environ) {
		if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
			return nil, &Error{Msg: "loading environment", Err: err}
		}
	}

	// 4. Flag overrides
	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, &Error{Msg: "applying overrides", Err: err}
		}
	}

	// 5. Unmarshal
	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, &Error{Msg: "decoding", Err: err}
	}

	cfg.normalize()
	return &cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

func hasPrefixed(environ []string) bool {
	for _, kv := range environ {
		if strings.HasPrefix(kv, EnvPrefix) {
			return true
		}
	}
	return false
}

// normalize canonicalizes paths and keys after decoding.
func (c *Config) normalize() {
	langs := make(map[string]string, len(c.Languages))
	for ext, lang := range c.Languages {
		ext = strings.ToLower(strings.TrimPrefix(ext, "."))
		langs[ext] = strings.ToLower(lang)
	}
	c.Languages = langs

	for i, a := range c.PathAliases {
		c.PathAliases[i].From = filepath.ToSlash(a.From)
		c.PathAliases[i].To = filepath.ToSlash(a.To)
	}

	c.Output.Dir = strings.TrimSuffix(filepath.ToSlash(c.Output.Dir), "/")
	c.Output.GuidanceFile = filepath.ToSlash(c.Output.GuidanceFile)
	c.DepSanityMode = strings.ToLower(c.DepSanityMode)
	c.Budget.Priority = strings.ToLower(c.Budget.Priority)
	c.Budget.MidBlock = strings.ToLower(c.Budget.MidBlock)
}

// Validate checks the configuration for values the engine cannot act on.
func (c *Config) Validate() error {
	if c.TokenLimit <= 0 {
		return &Error{Field: "token_limit", Msg: "must be positive"}
	}

	switch c.DepSanityMode {
	case SanityWarn, SanityStrict, SanityOff:
	default:
		return &Error{Field: "dep_sanity_mode", Msg: fmt.Sprintf("unknown mode %q (want warn, strict or off)", c.DepSanityMode)}
	}

	switch c.Budget.Priority {
	case PriorityPath, PriorityCentrality:
	default:
		return &Error{Field: "budget.priority", Msg: fmt.Sprintf("unknown policy %q", c.Budget.Priority)}
	}

	switch c.Budget.MidBlock {
	case MidCenter, MidLargestDefinition:
	default:
		return &Error{Field: "budget.mid_block", Msg: fmt.Sprintf("unknown strategy %q", c.Budget.MidBlock)}
	}

	if c.Budget.CharsPerToken <= 0 {
		return &Error{Field: "budget.chars_per_token", Msg: "must be positive"}
	}
	if err := validateWindow("budget.min_window", c.Budget.MinWindow); err != nil {
		return err
	}
	if err := validateWindow("budget.window", c.Budget.Window); err != nil {
		return err
	}
	mw, w := c.Budget.MinWindow, c.Budget.Window
	if mw.Head > w.Head || mw.Mid > w.Mid || mw.Tail > w.Tail {
		return &Error{Field: "budget.min_window", Msg: "exceeds budget.window"}
	}

	if err := validateAliases(c.PathAliases); err != nil {
		return err
	}

	for _, k := range c.DependencyKinds {
		if _, err := graph.ParseKind(k); err != nil {
			return &Error{Field: "dependency_kinds", Msg: err.Error()}
		}
	}

	for _, p := range c.IgnoreTargets {
		if !doublestar.ValidatePattern(p) {
			return &Error{Field: "ignore_targets", Msg: fmt.Sprintf("bad pattern %q", p), Err: doublestar.ErrBadPattern}
		}
	}

	if c.Redact.Enabled {
		for _, p := range c.Redact.Patterns {
			if _, err := regexp.Compile(p); err != nil {
				return &Error{Field: "redact.patterns", Msg: fmt.Sprintf("bad pattern %q", p), Err: err}
			}
		}
	}

	if c.Output.Dir == "" || c.Output.PackFile == "" {
		return &Error{Field: "output", Msg: "dir and pack_file are required"}
	}
	if filepath.IsAbs(c.Output.Dir) || strings.HasPrefix(path.Clean(c.Output.Dir), "..") {
		return &Error{Field: "output.dir", Msg: "must be inside the repository"}
	}

	seen := make(map[string]bool)
	for _, r := range c.Links.Repos {
		if r.Name == "" || r.PackURI == "" {
			return &Error{Field: "links.repos", Msg: "name and pack_uri are required"}
		}
		if seen[r.Name] {
			return &Error{Field: "links.repos", Msg: fmt.Sprintf("duplicate repo name %q", r.Name)}
		}
		seen[r.Name] = true
	}

	if c.Hub.TokenLimit < 0 {
		return &Error{Field: "hub.token_limit", Msg: "must not be negative"}
	}
	if c.Workers < 0 {
		return &Error{Field: "workers", Msg: "must not be negative"}
	}
	return nil
}

func validateWindow(field string, w Window) error {
	if w.Head < 1 || w.Mid < 1 || w.Tail < 1 {
		return &Error{Field: field, Msg: "head, mid and tail must be at least 1"}
	}
	return nil
}

// validateAliases rejects empty prefixes and a prefix mapped to two
// different directories.
func validateAliases(aliases []PathAlias) error {
	targets := make(map[string]string, len(aliases))
	for _, a := range aliases {
		if a.From == "" {
			return &Error{Field: "path_aliases", Msg: "empty prefix"}
		}
		to := path.Clean(a.To)
		if prev, ok := targets[a.From]; ok && prev != to {
			return &Error{Field: "path_aliases", Msg: fmt.Sprintf("conflicting aliases for %q: %q and %q", a.From, prev, to)}
		}
		targets[a.From] = to
	}
	return nil
}

// EnabledKinds returns the configured construct classes.
func (c *Config) EnabledKinds() map[graph.EdgeKind]bool {
	kinds := make(map[graph.EdgeKind]bool, len(c.DependencyKinds))
	for _, k := range c.DependencyKinds {
		if kind, err := graph.ParseKind(k); err == nil {
			kinds[kind] = true
		}
	}
	return kinds
}

// PackPath is the repo-relative path of the pack document.
func (c *Config) PackPath() string {
	return path.Join(c.Output.Dir, c.Output.PackFile)
}

// HubPath is the repo-relative path of the merged hub graph.
func (c *Config) HubPath() string {
	return path.Join(c.Output.Dir, c.Output.HubFile)
}

// HubStorePath is the repo-relative path of the hub edge store.
func (c *Config) HubStorePath() string {
	return path.Join(c.Output.Dir, c.Output.HubStore)
}

// AllowList returns the repo-relative paths the run may write: the output
// directory (with a trailing slash) and the guidance file.
func (c *Config) AllowList() []string {
	allow := []string{c.Output.Dir + "/"}
	if c.Output.GuidanceFile != "" {
		allow = append(allow, c.Output.GuidanceFile)
	}
	return allow
}
