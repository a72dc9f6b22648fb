package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/stianhazel/play.tailwindcss.com/internal/jsonpatch"
)

// Load merges files, applies the JSON patches in order and parses the
// result. Relative paths in the configuration resolve against the directory
// of the first file.
func Load(files []string, patches []string) (*Root, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no configuration files given")
	}

	merged, err := Merge(files, true)
	if err != nil {
		return nil, err
	}

	doc, err := yaml.YAMLToJSON(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to convert merged configuration: %w", err)
	}

	for _, f := range patches {
		bs, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read patch %v: %w", f, err)
		}
		p, err := jsonpatch.Decode(bs)
		if err != nil {
			return nil, fmt.Errorf("patch %v: %w", f, err)
		}
		if doc, err = jsonpatch.Apply(p, doc); err != nil {
			return nil, fmt.Errorf("patch %v: %w", f, err)
		}
	}

	root, err := Parse(doc)
	if err != nil {
		return nil, err
	}

	dir := files[0]
	if fi, err := os.Stat(dir); err == nil && !fi.IsDir() {
		dir = filepath.Dir(dir)
	}
	root.SetDir(dir)
	return root, nil
}
