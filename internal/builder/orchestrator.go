package builder

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/stianhazel/play.tailwindcss.com/internal/logging"
	"github.com/stianhazel/play.tailwindcss.com/internal/metrics"
	"github.com/stianhazel/play.tailwindcss.com/internal/tracing"
)

// Artifact is one emitted file. Path is relative to the parent's output
// directory.
type Artifact struct {
	Unit     string
	Path     string
	Contents []byte
}

// Orchestrator runs independent child builds alongside a parent build. As a
// plugin it spawns its units when the parent starts constructing its module
// graph and joins them before the parent may emit.
type Orchestrator struct {
	name  string
	units []*Unit
	log   *logging.Logger
	ctx   context.Context

	mu        sync.Mutex
	current   *run
	last      []*Unit
	artifacts []Artifact
}

type run struct {
	wg       sync.WaitGroup
	children []*child
}

type child struct {
	unit      *Unit
	artifacts []Artifact
	messages  []api.Message
	err       error
}

func NewOrchestrator(name string, units ...*Unit) *Orchestrator {
	return &Orchestrator{
		name:  name,
		units: units,
		log:   logging.Discard(),
		ctx:   context.Background(),
	}
}

func (o *Orchestrator) WithLogger(log *logging.Logger) *Orchestrator {
	o.log = log
	return o
}

// WithContext sets the context children of the plugin form run under. Run
// takes its context explicitly.
func (o *Orchestrator) WithContext(ctx context.Context) *Orchestrator {
	o.ctx = ctx
	return o
}

func (o *Orchestrator) Name() string { return o.name }

// Declared returns the unit templates.
func (o *Orchestrator) Declared() []*Unit {
	return o.units
}

// Units returns the units of the most recent invocation with their final
// states.
func (o *Orchestrator) Units() []*Unit {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// Artifacts returns what the children of the most recent successful
// invocation emitted.
func (o *Orchestrator) Artifacts() []Artifact {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.artifacts
}

// Run builds every unit against parent and waits for all of them. Sibling
// failures do not cancel each other; every failure is reported.
func (o *Orchestrator) Run(ctx context.Context, parent api.BuildOptions) ([]Artifact, error) {
	r := o.spawn(ctx, parent)
	artifacts, msgs := o.join(r)
	if len(msgs) > 0 {
		return nil, &BuildError{Messages: msgs}
	}
	return artifacts, nil
}

func (o *Orchestrator) Setup(build api.PluginBuild) {
	initial := build.InitialOptions

	build.OnStart(func() (api.OnStartResult, error) {
		r := o.spawn(o.ctx, *initial)
		o.mu.Lock()
		o.current = r
		o.mu.Unlock()
		return api.OnStartResult{}, nil
	})

	build.OnEnd(func(*api.BuildResult) (api.OnEndResult, error) {
		o.mu.Lock()
		r := o.current
		o.current = nil
		o.mu.Unlock()

		_, msgs := o.join(r)
		return api.OnEndResult{Errors: msgs}, nil
	})
}

func (o *Orchestrator) spawn(ctx context.Context, parent api.BuildOptions) *run {
	r := &run{children: make([]*child, len(o.units))}
	for i, decl := range o.units {
		c := &child{unit: decl.fresh()}
		r.children[i] = c
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			c.artifacts, c.messages, c.err = o.build(ctx, parent, c.unit)
		}()
	}
	return r
}

func (o *Orchestrator) join(r *run) ([]Artifact, []api.Message) {
	if r == nil {
		return nil, nil
	}
	r.wg.Wait()

	var (
		artifacts []Artifact
		msgs      []api.Message
		units     = make([]*Unit, len(r.children))
	)
	for i, c := range r.children {
		units[i] = c.unit
		if c.err == nil {
			artifacts = append(artifacts, c.artifacts...)
			continue
		}
		msg := api.Message{
			PluginName: o.name,
			Text:       fmt.Sprintf("worker %q: %v", c.unit.ID, c.err),
		}
		for _, m := range c.messages {
			msg.Notes = append(msg.Notes, api.Note{Text: m.Text, Location: m.Location})
		}
		msgs = append(msgs, msg)
	}

	o.mu.Lock()
	o.last = units
	if len(msgs) == 0 {
		o.artifacts = artifacts
	} else {
		o.artifacts = nil
	}
	o.mu.Unlock()
	return artifacts, msgs
}

func (o *Orchestrator) build(ctx context.Context, parent api.BuildOptions, u *Unit) (artifacts []Artifact, msgs []api.Message, err error) {
	log := o.log.With("unit", u.ID)
	start := time.Now()
	metrics.UnitBuildStarted(u.ID, start)
	ctx, span := tracing.Start(ctx, "unit", tracing.Unit(u.ID))

	defer func() {
		tracing.End(span, err)
		if err != nil {
			failedAt := u.state
			_ = u.transition(StateFailed)
			metrics.UnitBuildFailedAt(u.ID, failedAt.String())
			log.Warnf("build failed in state %v: %v", failedAt, err)
			return
		}
		metrics.UnitBuildSucceeded(u.ID, start)
		log.Debugf("built in %v", time.Since(start))
	}()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if err := u.transition(StateGraphConstructing); err != nil {
		return nil, nil, err
	}

	opts := childOptions(parent, u, o.name)
	bctx, cerr := api.Context(opts)
	if cerr != nil {
		return nil, cerr.Errors, fmt.Errorf("%d error(s) configuring build", len(cerr.Errors))
	}
	defer bctx.Dispose()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			bctx.Cancel()
		case <-done:
		}
	}()

	result := bctx.Rebuild()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if len(result.Errors) > 0 {
		return nil, result.Errors, fmt.Errorf("%d error(s)", len(result.Errors))
	}

	if err := u.transition(StateEmitting); err != nil {
		return nil, nil, err
	}
	base := outputBase(&parent)
	for _, f := range result.OutputFiles {
		rel, err := filepath.Rel(base, f.Path)
		if err != nil {
			return nil, nil, err
		}
		artifacts = append(artifacts, Artifact{Unit: u.ID, Path: filepath.ToSlash(rel), Contents: f.Contents})
	}
	if err := u.transition(StateComplete); err != nil {
		return nil, nil, err
	}
	return artifacts, nil, nil
}

// childOptions derives a worker build from the parent: resolution settings
// and shared plugins are inherited, output shape is the unit's own.
func childOptions(parent api.BuildOptions, u *Unit, exclude string) api.BuildOptions {
	define := maps.Clone(parent.Define)
	if define == nil {
		define = map[string]string{}
	}
	define["global"] = "self"

	plugins := slices.DeleteFunc(slices.Clone(parent.Plugins), func(p api.Plugin) bool {
		return p.Name == exclude || slices.ContainsFunc(u.Plugins, func(own Plugin) bool { return own.Name() == p.Name })
	})
	plugins = append(plugins, toAPI(u.Plugins)...)

	opts := api.BuildOptions{
		EntryPoints:       []string{u.Entry},
		Bundle:            true,
		Write:             false,
		Outfile:           filepath.Join(outputBase(&parent), filepath.FromSlash(u.Filename)),
		Format:            api.FormatIIFE,
		Platform:          api.PlatformBrowser,
		Define:            define,
		Plugins:           plugins,
		Loader:            parent.Loader,
		NodePaths:         parent.NodePaths,
		AbsWorkingDir:     parent.AbsWorkingDir,
		ResolveExtensions: parent.ResolveExtensions,
		MainFields:        parent.MainFields,
		Conditions:        parent.Conditions,
		Target:            parent.Target,
		Engines:           parent.Engines,
		MinifyWhitespace:  parent.MinifyWhitespace,
		MinifyIdentifiers: parent.MinifyIdentifiers,
		MinifySyntax:      parent.MinifySyntax,
		Sourcemap:         parent.Sourcemap,
		LogLevel:          api.LogLevelSilent,
	}
	if u.ChunkFilename != "" {
		opts.ChunkNames = u.ChunkFilename
	}
	return opts
}
