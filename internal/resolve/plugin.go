package resolve

import (
	"github.com/evanw/esbuild/pkg/api"
)

const externalNamespace = "external-binding"

// Plugin consults a Table before esbuild's default resolution.
type Plugin struct {
	table *Table
	name  string
}

func NewPlugin(name string, table *Table) *Plugin {
	return &Plugin{table: table, name: name}
}

func (p *Plugin) Name() string { return p.name }

func (p *Plugin) Table() *Table { return p.table }

func (p *Plugin) Setup(build api.PluginBuild) {
	if p.table.Len() == 0 {
		return
	}

	build.OnResolve(api.OnResolveOptions{Filter: p.table.filter()}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
		target, ok := p.table.Lookup(args.Path, args.Importer)
		if !ok {
			return api.OnResolveResult{}, nil
		}
		if target.IsExternal() {
			return api.OnResolveResult{
				Path:       args.Path,
				Namespace:  externalNamespace,
				PluginData: target.External,
			}, nil
		}

		// Going through the host resolver keeps its diagnostics for
		// overrides that point at missing files.
		res := build.Resolve(target.Path, api.ResolveOptions{
			Importer:   args.Importer,
			ResolveDir: args.ResolveDir,
			Kind:       args.Kind,
		})
		return api.OnResolveResult{
			Errors:     res.Errors,
			Warnings:   res.Warnings,
			Path:       res.Path,
			External:   res.External,
			Namespace:  res.Namespace,
			Suffix:     res.Suffix,
			PluginData: res.PluginData,
		}, nil
	})

	build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: externalNamespace}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
		binding, _ := args.PluginData.(string)
		contents := "module.exports = " + binding + ";\n"
		return api.OnLoadResult{Contents: &contents, Loader: api.LoaderJS}, nil
	})
}
