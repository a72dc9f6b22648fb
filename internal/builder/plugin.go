package builder

import (
	"fmt"
	"maps"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Plugin is an esbuild plugin with a stable name. Names are used to avoid
// registering the same plugin twice on one build.
type Plugin interface {
	Name() string
	Setup(build api.PluginBuild)
}

func toAPI(plugins []Plugin) []api.Plugin {
	result := make([]api.Plugin, len(plugins))
	for i, p := range plugins {
		result[i] = api.Plugin{Name: p.Name(), Setup: p.Setup}
	}
	return result
}

// LimitChunkCount caps the number of JavaScript chunks a build may emit.
type LimitChunkCount struct {
	Max int
}

func (LimitChunkCount) Name() string { return "limit-chunk-count" }

func (l LimitChunkCount) Setup(build api.PluginBuild) {
	if l.Max <= 1 {
		build.InitialOptions.Splitting = false
	}
	build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
		var n int
		for _, f := range result.OutputFiles {
			if strings.HasSuffix(f.Path, ".js") {
				n++
			}
		}
		if n > l.Max {
			return api.OnEndResult{Errors: []api.Message{{
				Text: fmt.Sprintf("emitted %d chunks, at most %d allowed", n, l.Max),
			}}}, nil
		}
		return api.OnEndResult{}, nil
	})
}

// Define injects compile-time constants. Values are JavaScript expressions.
type Define map[string]string

func (Define) Name() string { return "define" }

func (d Define) Setup(build api.PluginBuild) {
	defs := maps.Clone(build.InitialOptions.Define)
	if defs == nil {
		defs = make(map[string]string, len(d))
	}
	maps.Copy(defs, d)
	build.InitialOptions.Define = defs
}

func outputBase(opts *api.BuildOptions) string {
	if opts.Outdir != "" {
		return opts.Outdir
	}
	if opts.Outfile != "" {
		return filepath.Dir(opts.Outfile)
	}
	return opts.AbsWorkingDir
}
