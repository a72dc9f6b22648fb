// Package transform rewrites the source text of selected modules as they are
// loaded by the bundler.
//
// A Pipeline is an ordered list of rules. For every module path, each rule
// whose matcher accepts the path receives the output of the previous one.
// Rules operate on raw text and usually look for a literal anchor in a
// dependency's published source. When the anchor is gone the rule leaves the
// text alone and the miss is reported, unless the pipeline is strict.
package transform

import (
	"fmt"
	"regexp"
	"slices"
	"sync/atomic"

	"github.com/akedrou/textdiff"

	"github.com/stianhazel/play.tailwindcss.com/internal/logging"
	"github.com/stianhazel/play.tailwindcss.com/internal/metrics"
)

// Func rewrites a module's source. It must be deterministic. An error aborts
// loading of the module.
type Func func(source string) (string, error)

type Rule struct {
	Name  string
	Match Matcher

	// Anchor, if set, must occur in the source for Transform to run.
	Anchor *regexp.Regexp

	// Applied, if set, recognizes sources the rule already rewrote. They are
	// passed through without consulting Anchor.
	Applied func(source string) bool

	Transform Func
}

// With returns a copy of r using the transform, anchor and applied check of
// rw.
func (r Rule) With(rw Rewrite) Rule {
	r.Transform, r.Anchor, r.Applied = rw.Transform, rw.Anchor, rw.Applied
	return r
}

// AnchorError is returned by a strict pipeline when a rule matched a module
// but did not find its anchor.
type AnchorError struct {
	Rule   string
	Path   string
	Anchor string
}

func (e *AnchorError) Error() string {
	return fmt.Sprintf("transform %q: anchor %q not found in %s", e.Rule, e.Anchor, e.Path)
}

type Pipeline struct {
	rules  []Rule
	hits   []atomic.Int64
	strict bool
	log    *logging.Logger
}

type Option func(*Pipeline)

// Strict turns missing anchors into errors.
func Strict(strict bool) Option {
	return func(p *Pipeline) { p.strict = strict }
}

func WithLogger(log *logging.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

func NewPipeline(rules []Rule, opts ...Option) (*Pipeline, error) {
	names := make(map[string]struct{}, len(rules))
	for i, r := range rules {
		if r.Name == "" {
			return nil, fmt.Errorf("rule %d: name is required", i)
		}
		if _, ok := names[r.Name]; ok {
			return nil, fmt.Errorf("rule %q declared twice", r.Name)
		}
		names[r.Name] = struct{}{}
		if r.Match == nil {
			return nil, fmt.Errorf("rule %q: matcher is required", r.Name)
		}
		if r.Transform == nil {
			return nil, fmt.Errorf("rule %q: transform is required", r.Name)
		}
	}

	p := &Pipeline{
		rules: slices.Clone(rules),
		hits:  make([]atomic.Int64, len(rules)),
		log:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Matches reports whether any rule applies to path.
func (p *Pipeline) Matches(path string) bool {
	return slices.ContainsFunc(p.rules, func(r Rule) bool { return r.Match.Match(path) })
}

// Apply runs every matching rule over source in declaration order. Paths no
// rule matches get source back unchanged.
func (p *Pipeline) Apply(path, source string) (string, error) {
	for i, r := range p.rules {
		if !r.Match.Match(path) {
			continue
		}
		p.hits[i].Add(1)

		if r.Applied != nil && r.Applied(source) {
			continue
		}
		if r.Anchor != nil && !r.Anchor.MatchString(source) {
			metrics.TransformAnchorMissing.WithLabelValues(r.Name).Inc()
			if p.strict {
				return "", &AnchorError{Rule: r.Name, Path: path, Anchor: r.Anchor.String()}
			}
			p.log.Warnf("transform %q: anchor %q not found in %s, leaving it unchanged", r.Name, r.Anchor.String(), path)
			continue
		}

		out, err := r.Transform(source)
		if err != nil {
			return "", fmt.Errorf("transform %q on %s: %w", r.Name, path, err)
		}
		if out != source {
			metrics.TransformApplied.WithLabelValues(r.Name).Inc()
			if p.log.DebugEnabled() {
				p.log.Debugf("transform %q rewrote %s:\n%s", r.Name, path, textdiff.Unified(path, path, source, out))
			}
		}
		source = out
	}
	return source, nil
}

// Unmatched returns the names of rules that have not matched any module yet.
func (p *Pipeline) Unmatched() []string {
	var names []string
	for i := range p.rules {
		if p.hits[i].Load() == 0 {
			names = append(names, p.rules[i].Name)
		}
	}
	return names
}

func (p *Pipeline) Len() int {
	return len(p.rules)
}
