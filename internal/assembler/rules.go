package assembler

import (
	"fmt"

	"github.com/stianhazel/play.tailwindcss.com/internal/config"
	"github.com/stianhazel/play.tailwindcss.com/internal/envdata"
	"github.com/stianhazel/play.tailwindcss.com/internal/transform"
)

type replaceOptions struct {
	Old string `json:"old"`
	New string `json:"new"`
}

type inlineAssetsOptions struct {
	Version int `json:"version"`
}

type includeOptions struct {
	Globals map[string]string `json:"globals"`
	Pre     []string          `json:"pre"`
	Post    []string          `json:"post"`
}

type caniuseOptions struct {
	Feature string `json:"feature"`
}

func (a *Assembler) rules() ([]transform.Rule, error) {
	var (
		catalog  *transform.Catalog
		agents   envdata.Table
		prefixes envdata.Table
	)

	rules := make([]transform.Rule, 0, len(a.cfg.Rules))
	for _, r := range a.cfg.Rules {
		match, err := a.matcher(r.Test)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		rule := transform.Rule{Name: r.Name, Match: match}

		switch r.Kind {
		case config.KindReplace:
			var opts replaceOptions
			if err := config.Decode(r.Options, &opts); err != nil {
				return nil, fmt.Errorf("rule %q: %w", r.Name, err)
			}
			if opts.Old == "" {
				return nil, fmt.Errorf("rule %q: option old is required", r.Name)
			}
			rule = rule.With(transform.Replace(opts.Old, opts.New))

		case config.KindInlineAssets:
			var opts inlineAssetsOptions
			if err := config.Decode(r.Options, &opts); err != nil {
				return nil, fmt.Errorf("rule %q: %w", r.Name, err)
			}
			if len(a.cfg.Assets) == 0 {
				return nil, fmt.Errorf("rule %q: no assets are configured", r.Name)
			}
			if catalog == nil {
				if catalog, err = a.catalog(); err != nil {
					return nil, fmt.Errorf("rule %q: %w", r.Name, err)
				}
			}
			rule = rule.With(transform.InlineAssets(catalog, opts.Version))

		case config.KindInclude:
			var opts includeOptions
			if err := config.Decode(r.Options, &opts); err != nil {
				return nil, fmt.Errorf("rule %q: %w", r.Name, err)
			}
			rule.Transform = transform.Include(opts.Globals, opts.Pre, opts.Post)

		case config.KindBrowsers:
			if err := a.requireTargets(r.Name); err != nil {
				return nil, err
			}
			if rule.Transform, err = transform.Browsers(a.targets); err != nil {
				return nil, fmt.Errorf("rule %q: %w", r.Name, err)
			}

		case config.KindCanIUse:
			var opts caniuseOptions
			if err := config.Decode(r.Options, &opts); err != nil {
				return nil, fmt.Errorf("rule %q: %w", r.Name, err)
			}
			if err := a.requireTargets(r.Name); err != nil {
				return nil, err
			}
			if agents == nil {
				if err := a.readJSON("agents", a.cfg.Data.Agents, &agents); err != nil {
					return nil, fmt.Errorf("rule %q: %w", r.Name, err)
				}
			}
			var feature map[string]any
			if err := a.readJSON("feature "+opts.Feature, a.cfg.Data.Features[opts.Feature], &feature); err != nil {
				return nil, fmt.Errorf("rule %q: %w", r.Name, err)
			}
			if rule.Transform, err = transform.CanIUse(agents, feature, a.targets); err != nil {
				return nil, fmt.Errorf("rule %q: %w", r.Name, err)
			}

		case config.KindPrefixes:
			if err := a.requireTargets(r.Name); err != nil {
				return nil, err
			}
			if prefixes == nil {
				if err := a.readJSON("prefixes", a.cfg.Data.Prefixes, &prefixes); err != nil {
					return nil, fmt.Errorf("rule %q: %w", r.Name, err)
				}
			}
			if rule.Transform, err = transform.Prefixes(prefixes, a.targets); err != nil {
				return nil, fmt.Errorf("rule %q: %w", r.Name, err)
			}

		default:
			return nil, fmt.Errorf("rule %q: unknown kind %q", r.Name, r.Kind)
		}

		rules = append(rules, rule)
	}
	return rules, nil
}

func (a *Assembler) requireTargets(rule string) error {
	if a.targets.Len() == 0 {
		return fmt.Errorf("rule %q: no environment targets are configured", rule)
	}
	return nil
}
