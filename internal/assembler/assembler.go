// Package assembler turns a playbuild configuration into host build
// configurations, one per build target.
package assembler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/yalue/merged_fs"

	"github.com/stianhazel/play.tailwindcss.com/internal/builder"
	"github.com/stianhazel/play.tailwindcss.com/internal/config"
	"github.com/stianhazel/play.tailwindcss.com/internal/envdata"
	"github.com/stianhazel/play.tailwindcss.com/internal/logging"
	"github.com/stianhazel/play.tailwindcss.com/internal/resolve"
	"github.com/stianhazel/play.tailwindcss.com/internal/transform"
)

type Target int

const (
	Client Target = iota
	Server
)

var Targets = []Target{Client, Server}

func (t Target) String() string {
	switch t {
	case Client:
		return "client"
	case Server:
		return "server"
	}
	return fmt.Sprintf("target(%d)", int(t))
}

func ParseTarget(s string) (Target, error) {
	switch s {
	case "client":
		return Client, nil
	case "server":
		return Server, nil
	}
	return 0, fmt.Errorf("unknown build target %q", s)
}

// WorkerFilename is where a worker's bundle is emitted for target.
func WorkerFilename(label string, target Target) string {
	if target == Client {
		return "static/chunks/" + label + ".js"
	}
	return label + ".js"
}

const (
	aliasesPlugin   = "aliases"
	externalsPlugin = "externals"
	workersPlugin   = "workers"
)

type worker struct {
	id, label, entry string
}

// Assembler holds everything derived from the configuration. It is immutable
// after New apart from the record of configured targets.
type Assembler struct {
	cfg       *config.Root
	log       *logging.Logger
	root      string
	modules   string
	targets   envdata.Targets
	aliases   *resolve.Table
	externals *resolve.Table
	pipeline  *transform.Pipeline
	define    builder.Define
	entries   []api.EntryPoint
	workers   []worker

	mu         sync.Mutex
	configured map[Target]bool
}

// New validates cfg and prepares every plugin. Any configuration error is
// returned here, before a build runs.
func New(cfg *config.Root, log *logging.Logger) (*Assembler, error) {
	if log == nil {
		log = logging.Discard()
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}

	a := &Assembler{
		cfg:        cfg,
		log:        log,
		define:     builder.Define(maps.Clone(cfg.Define)),
		configured: map[Target]bool{},
	}

	var err error
	if a.root, err = cfg.ProjectRoot(); err != nil {
		return nil, err
	}
	if a.modules, err = cfg.ModulesPath(); err != nil {
		return nil, err
	}
	if a.targets, err = a.loadTargets(); err != nil {
		return nil, err
	}

	aliases := make(map[string]string, len(cfg.Aliases))
	for id, p := range cfg.Aliases {
		if aliases[id], err = a.aliasPath(p); err != nil {
			return nil, err
		}
	}
	if a.aliases, err = resolve.NewTable(aliases, nil); err != nil {
		return nil, err
	}
	if a.externals, err = resolve.NewTable(nil, cfg.Externals); err != nil {
		return nil, err
	}

	for _, e := range cfg.Entries {
		path, err := a.existing("entry "+e.Name, e.Path)
		if err != nil {
			return nil, err
		}
		a.entries = append(a.entries, api.EntryPoint{InputPath: path, OutputPath: e.Name})
	}

	for _, w := range cfg.Workers {
		path, err := a.existing("worker "+w.ID, w.Entry)
		if err != nil {
			return nil, err
		}
		a.workers = append(a.workers, worker{id: w.ID, label: w.Label, entry: path})
	}

	rules, err := a.rules()
	if err != nil {
		return nil, err
	}
	a.pipeline, err = transform.NewPipeline(rules, transform.Strict(cfg.StrictAnchors), transform.WithLogger(log))
	if err != nil {
		return nil, err
	}

	return a, nil
}

func (a *Assembler) Pipeline() *transform.Pipeline {
	return a.pipeline
}

func (a *Assembler) EnvTargets() envdata.Targets {
	return a.targets
}

// HostConfig returns the base host build configuration for target, without
// any playbuild plugins.
func (a *Assembler) HostConfig(target Target) *builder.Config {
	opts := api.BuildOptions{
		AbsWorkingDir:     a.root,
		Bundle:            true,
		Outdir:            filepath.Join(a.OutputDir(), target.String()),
		NodePaths:         []string{a.modules},
		MinifyWhitespace:  a.cfg.Minify,
		MinifyIdentifiers: a.cfg.Minify,
		MinifySyntax:      a.cfg.Minify,
		Loader:            map[string]api.Loader{".css": api.LoaderText},
		LogLevel:          api.LogLevelSilent,
	}
	if a.cfg.Sourcemap {
		opts.Sourcemap = api.SourceMapLinked
	}

	switch target {
	case Client:
		opts.Platform = api.PlatformBrowser
		opts.Format = api.FormatESModule
	case Server:
		opts.Platform = api.PlatformNode
		opts.Format = api.FormatCommonJS
	}
	switch a.cfg.Format {
	case "esm":
		opts.Format = api.FormatESModule
	case "iife":
		opts.Format = api.FormatIIFE
	case "cjs":
		opts.Format = api.FormatCommonJS
	}

	for _, p := range a.cfg.EntryPoints {
		opts.EntryPoints = append(opts.EntryPoints, a.path(p))
	}
	return &builder.Config{Options: opts}
}

// Configure registers playbuild's plugins, constants, entries and workers on
// host for target. Calling it again for a target that is already configured
// does nothing.
func (a *Assembler) Configure(host *builder.Config, target Target) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.configured[target] {
		a.log.Debugf("%v target already configured", target)
		return
	}

	log := a.log.With("target", target.String())
	add := func(p builder.Plugin) {
		if !host.AddPlugin(p) {
			log.Debugf("plugin %q already registered", p.Name())
		}
	}

	if a.aliases.Len() > 0 {
		add(resolve.NewPlugin(aliasesPlugin, a.aliases))
	}
	if target == Client && a.externals.Len() > 0 {
		add(resolve.NewPlugin(externalsPlugin, a.externals))
	}
	add(transform.NewFieldsPlugin(a.modules))
	if a.pipeline.Len() > 0 {
		add(transform.NewPlugin(a.pipeline))
	}
	if len(a.define) > 0 {
		add(a.define)
	}

	if len(a.entries) > 0 {
		entries := slices.Clone(a.entries)
		host.ComposeEntry(func(context.Context) ([]api.EntryPoint, error) {
			return entries, nil
		})
	}

	if len(a.workers) > 0 {
		units := make([]*builder.Unit, len(a.workers))
		for i, w := range a.workers {
			units[i] = builder.NewWorker(w.id, w.entry, WorkerFilename(w.label, target), builder.LimitChunkCount{Max: 1})
		}
		add(builder.NewOrchestrator(workersPlugin, units...).WithLogger(log))
	}

	a.configured[target] = true
	log.Debugf("configured %d plugin(s)", len(host.Plugins))
}

// WarnUnmatched logs every rule that has not matched a module yet.
func (a *Assembler) WarnUnmatched() []string {
	unmatched := a.pipeline.Unmatched()
	for _, name := range unmatched {
		a.log.Warnf("transform rule %q did not match any module", name)
	}
	return unmatched
}

// OutputDir is where artifacts of every target are written, one directory per
// target.
func (a *Assembler) OutputDir() string {
	dir := a.cfg.Output.Dir
	if dir == "" {
		dir = "dist"
	}
	return a.path(dir)
}

func (a *Assembler) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.root, filepath.FromSlash(p))
}

func (a *Assembler) existing(what, p string) (string, error) {
	path := a.path(p)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%s: %w", what, err)
	}
	return path, nil
}

// aliasPath anchors relative alias targets at the project root. Bare module
// specifiers are left for the host resolver.
func (a *Assembler) aliasPath(p string) (string, error) {
	if strings.HasPrefix(p, "./") || strings.HasPrefix(p, "../") {
		return a.existing("alias", p)
	}
	return p, nil
}

func (a *Assembler) loadTargets() (envdata.Targets, error) {
	if a.cfg.Targets.File != "" {
		return envdata.LoadTargets(a.path(a.cfg.Targets.File))
	}
	return envdata.NewTargets(a.cfg.Targets.Browsers), nil
}

func (a *Assembler) catalog() (*transform.Catalog, error) {
	var fsys fs.FS = os.DirFS(a.root)
	if a.cfg.AssetsDir != "" {
		fsys = merged_fs.NewMergedFS(os.DirFS(a.path(a.cfg.AssetsDir)), fsys)
	}

	assets := make([]transform.Asset, len(a.cfg.Assets))
	for i, asset := range a.cfg.Assets {
		re, err := regexp.Compile(asset.Pattern)
		if err != nil {
			return nil, fmt.Errorf("asset %s: %w", asset.File, err)
		}
		assets[i] = transform.Asset{Pattern: re, Version: asset.Version, File: asset.File}
	}

	c := transform.NewCatalog(fsys, assets)
	if err := c.Check(); err != nil {
		return nil, err
	}
	return c, nil
}

func (a *Assembler) readJSON(what, p string, v any) error {
	if p == "" {
		return fmt.Errorf("%s data is not configured", what)
	}
	bs, err := os.ReadFile(a.path(p))
	if err != nil {
		return fmt.Errorf("%s data: %w", what, err)
	}
	if err := json.Unmarshal(bs, v); err != nil {
		return fmt.Errorf("%s data %s: %w", what, p, err)
	}
	return nil
}

func (a *Assembler) matcher(m *config.Matcher) (transform.Matcher, error) {
	switch {
	case m == nil:
		return nil, errors.New("matcher is required")
	case m.Path != "":
		return transform.Exact(a.path(m.Path)), nil
	case m.Pattern != "":
		re, err := regexp.Compile(m.Pattern)
		if err != nil {
			return nil, err
		}
		return transform.Pattern(re), nil
	case m.Glob != "":
		return transform.Glob(m.Glob)
	case m.Not != nil:
		sub, err := a.matcher(m.Not)
		if err != nil {
			return nil, err
		}
		return transform.Not(sub), nil
	case m.Or != nil, m.And != nil:
		subs := make([]transform.Matcher, 0, len(m.Or)+len(m.And))
		for _, sm := range append(slices.Clone(m.Or), m.And...) {
			sub, err := a.matcher(sm)
			if err != nil {
				return nil, err
			}
			subs = append(subs, sub)
		}
		if m.Or != nil {
			return transform.Or(subs...), nil
		}
		return transform.And(subs...), nil
	}
	return nil, errors.New("empty matcher")
}
