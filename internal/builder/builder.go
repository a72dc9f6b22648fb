// Package builder drives esbuild for one build target: a parent bundle plus
// any worker bundles its Orchestrator plugins spawn. Nothing reaches storage
// unless every unit built successfully.
package builder

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/google/uuid"

	"github.com/stianhazel/play.tailwindcss.com/internal/logging"
	"github.com/stianhazel/play.tailwindcss.com/internal/metrics"
	"github.com/stianhazel/play.tailwindcss.com/internal/tracing"
)

// EntryFunc computes the entry points of a build. It may block.
type EntryFunc func(ctx context.Context) ([]api.EntryPoint, error)

// Config is the host build configuration the assembler mutates.
type Config struct {
	Options api.BuildOptions
	Entry   EntryFunc
	Plugins []Plugin
}

func (c *Config) Plugin(name string) (Plugin, bool) {
	i := slices.IndexFunc(c.Plugins, func(p Plugin) bool { return p.Name() == name })
	if i < 0 {
		return nil, false
	}
	return c.Plugins[i], true
}

// AddPlugin appends p unless a plugin with the same name is registered.
func (c *Config) AddPlugin(p Plugin) bool {
	if _, ok := c.Plugin(p.Name()); ok {
		return false
	}
	c.Plugins = append(c.Plugins, p)
	return true
}

// ComposeEntry adds the entries of f to whatever the configuration already
// produces. Existing entries win on output path collisions.
func (c *Config) ComposeEntry(f EntryFunc) {
	prev := c.Entry
	static := c.Options.EntryPointsAdvanced
	for _, p := range c.Options.EntryPoints {
		static = append(static, api.EntryPoint{InputPath: p})
	}
	c.Options.EntryPoints = nil
	c.Options.EntryPointsAdvanced = nil

	c.Entry = func(ctx context.Context) ([]api.EntryPoint, error) {
		entries := slices.Clone(static)
		if prev != nil {
			more, err := prev(ctx)
			if err != nil {
				return nil, err
			}
			entries = append(entries, more...)
		}
		extra, err := f(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range extra {
			if !slices.ContainsFunc(entries, func(x api.EntryPoint) bool {
				return x.OutputPath != "" && x.OutputPath == e.OutputPath
			}) {
				entries = append(entries, e)
			}
		}
		return entries, nil
	}
}

// Publisher persists the artifacts of a successful build.
type Publisher interface {
	Publish(ctx context.Context, buildID string, artifacts []Artifact) error
}

// BuildError carries the diagnostics of a failed build.
type BuildError struct {
	Messages []api.Message
}

func (e *BuildError) Error() string {
	lines := api.FormatMessages(e.Messages, api.FormatMessagesOptions{Kind: api.ErrorMessage})
	return strings.TrimSpace(strings.Join(lines, ""))
}

// PublishError reports a build that succeeded but whose artifacts could not
// be published.
type PublishError struct {
	Err error
}

func (e *PublishError) Error() string { return "publish: " + e.Err.Error() }

func (e *PublishError) Unwrap() error { return e.Err }

type Result struct {
	ID        string
	Target    string
	Artifacts []Artifact
	Warnings  []api.Message
	Units     []*Unit
	Duration  time.Duration
}

type Builder struct {
	config    *Config
	publisher Publisher
	log       *logging.Logger
	target    string
}

func New() *Builder {
	return &Builder{log: logging.Discard()}
}

func (b *Builder) WithConfig(c *Config) *Builder {
	b.config = c
	return b
}

func (b *Builder) WithPublisher(p Publisher) *Builder {
	b.publisher = p
	return b
}

func (b *Builder) WithLogger(log *logging.Logger) *Builder {
	b.log = log
	return b
}

func (b *Builder) WithTarget(target string) *Builder {
	b.target = target
	return b
}

func (b *Builder) Build(ctx context.Context) (*Result, error) {
	if b.config == nil {
		return nil, errors.New("build: no configuration")
	}
	start := time.Now()
	res := &Result{ID: uuid.NewString(), Target: b.target}
	unit := b.target
	if unit == "" {
		unit = "main"
	}
	log := b.log.With("build", res.ID)
	ctx, span := tracing.Start(ctx, "build", tracing.Target(unit), tracing.BuildID(res.ID))

	parent := &Unit{ID: unit, Kind: KindScript}
	metrics.UnitBuildStarted(parent.ID, start)
	fail := func(err error) (*Result, error) {
		tracing.End(span, err)
		failedAt := parent.state
		_ = parent.transition(StateFailed)
		metrics.UnitBuildFailedAt(parent.ID, failedAt.String())
		return nil, err
	}

	opts := b.config.Options
	if b.config.Entry != nil {
		entries, err := b.config.Entry(ctx)
		if err != nil {
			return fail(fmt.Errorf("build entries: %w", err))
		}
		opts.EntryPoints = nil
		opts.EntryPointsAdvanced = entries
	}
	opts.Write = false
	opts.Plugins = append(slices.Clone(opts.Plugins), toAPI(b.config.Plugins)...)

	for _, p := range b.config.Plugins {
		if o, ok := p.(*Orchestrator); ok {
			o.WithContext(ctx)
		}
	}

	if err := parent.transition(StateGraphConstructing); err != nil {
		return fail(err)
	}
	log.Debugf("building %s", unit)
	result := api.Build(opts)
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if len(result.Errors) > 0 {
		return fail(&BuildError{Messages: result.Errors})
	}
	res.Warnings = result.Warnings

	if err := parent.transition(StateEmitting); err != nil {
		return fail(err)
	}
	base := outputBase(&opts)
	for _, f := range result.OutputFiles {
		rel, err := filepath.Rel(base, f.Path)
		if err != nil {
			return fail(err)
		}
		res.Artifacts = append(res.Artifacts, Artifact{Unit: unit, Path: filepath.ToSlash(rel), Contents: f.Contents})
	}
	res.Units = append(res.Units, parent)
	for _, p := range b.config.Plugins {
		if o, ok := p.(*Orchestrator); ok {
			res.Artifacts = append(res.Artifacts, o.Artifacts()...)
			res.Units = append(res.Units, o.Units()...)
		}
	}

	if b.publisher != nil {
		pctx, pspan := tracing.Start(ctx, "publish")
		err := b.publisher.Publish(pctx, res.ID, res.Artifacts)
		tracing.End(pspan, err)
		if err != nil {
			return fail(&PublishError{Err: err})
		}
	}
	if err := parent.transition(StateComplete); err != nil {
		return fail(err)
	}

	metrics.UnitBuildSucceeded(parent.ID, start)
	tracing.End(span, nil)
	res.Duration = time.Since(start)
	log.Infof("built %d artifact(s) in %v", len(res.Artifacts), res.Duration)
	return res, nil
}
