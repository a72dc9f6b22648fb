package transform

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	lru "github.com/hashicorp/golang-lru"
)

const cacheSize = 256

// Plugin runs a Pipeline over every matching module esbuild loads from disk.
// Rewritten sources are cached per file until the file changes, so rebuilds
// and child builds sharing the plugin do not redo the work.
type Plugin struct {
	pipeline *Pipeline
	cache    *lru.Cache
}

type cacheEntry struct {
	modTime  time.Time
	size     int64
	contents string
}

func NewPlugin(pipeline *Pipeline) *Plugin {
	cache, err := lru.New(cacheSize)
	if err != nil {
		panic(err) // only for non-positive sizes
	}
	return &Plugin{pipeline: pipeline, cache: cache}
}

func (*Plugin) Name() string { return "content-transform" }

func (p *Plugin) Pipeline() *Pipeline { return p.pipeline }

func (p *Plugin) Setup(build api.PluginBuild) {
	loaders := build.InitialOptions.Loader
	build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: "file"}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
		if !p.pipeline.Matches(args.Path) {
			return api.OnLoadResult{}, nil
		}
		contents, err := p.load(args.Path)
		if err != nil {
			return api.OnLoadResult{}, err
		}
		return api.OnLoadResult{
			Contents:   &contents,
			ResolveDir: filepath.Dir(args.Path),
			Loader:     loaderFor(args.Path, loaders),
		}, nil
	})
}

func (p *Plugin) load(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if v, ok := p.cache.Get(path); ok {
		if e := v.(cacheEntry); e.modTime.Equal(fi.ModTime()) && e.size == fi.Size() {
			return e.contents, nil
		}
	}

	bs, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	out, err := p.pipeline.Apply(path, string(bs))
	if err != nil {
		return "", err
	}
	p.cache.Add(path, cacheEntry{modTime: fi.ModTime(), size: fi.Size(), contents: out})
	return out, nil
}

// loaderFor picks the loader the build configured for the file's extension,
// falling back to esbuild's defaults.
func loaderFor(path string, loaders map[string]api.Loader) api.Loader {
	ext := strings.ToLower(filepath.Ext(path))
	if l, ok := loaders[ext]; ok {
		return l
	}
	switch ext {
	case ".jsx":
		return api.LoaderJSX
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	case ".json":
		return api.LoaderJSON
	case ".css":
		return api.LoaderCSS
	}
	return api.LoaderJS
}

const fieldsNamespace = "fields-query"

// FieldsPlugin implements the "?fields=" resource query for JSON imports.
type FieldsPlugin struct {
	modulesRoot string
}

func NewFieldsPlugin(modulesRoot string) *FieldsPlugin {
	return &FieldsPlugin{modulesRoot: modulesRoot}
}

func (*FieldsPlugin) Name() string { return "fields-query" }

func (f *FieldsPlugin) Setup(build api.PluginBuild) {
	build.OnResolve(api.OnResolveOptions{Filter: `\?(.*&)?fields=`}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
		path, query, _ := strings.Cut(args.Path, "?")
		res := build.Resolve(path, api.ResolveOptions{
			Importer:   args.Importer,
			ResolveDir: args.ResolveDir,
			Kind:       args.Kind,
		})
		if len(res.Errors) > 0 {
			return api.OnResolveResult{Errors: res.Errors, Warnings: res.Warnings}, nil
		}
		return api.OnResolveResult{
			Path:       res.Path,
			Namespace:  fieldsNamespace,
			Suffix:     "?" + query,
			PluginData: query,
		}, nil
	})

	build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: fieldsNamespace}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
		query, _ := args.PluginData.(string)
		fields, _ := ParseFieldsQuery(query)

		bs, err := os.ReadFile(args.Path)
		if err != nil {
			return api.OnLoadResult{}, err
		}
		out, err := FilterFields(bs, args.Path, fields, f.modulesRoot)
		if err != nil {
			return api.OnLoadResult{}, err
		}
		contents := string(out)
		return api.OnLoadResult{
			Contents:   &contents,
			Loader:     api.LoaderJSON,
			ResolveDir: filepath.Dir(args.Path),
			WatchFiles: []string{args.Path},
		}, nil
	})
}
