package transform

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// Asset is a stylesheet that can be inlined in place of a runtime file read.
type Asset struct {
	Pattern *regexp.Regexp // matched against the text of the read call
	Version int            // zero means any version
	File    string         // slash-separated path inside the catalog fs
}

// Catalog resolves read calls to assets. Contents are read once.
type Catalog struct {
	fsys   fs.FS
	assets []Asset

	mu    sync.Mutex
	files map[string]string
}

func NewCatalog(fsys fs.FS, assets []Asset) *Catalog {
	return &Catalog{fsys: fsys, assets: assets, files: map[string]string{}}
}

// Lookup returns the first asset whose pattern matches call and whose version
// is unset or equal to version.
func (c *Catalog) Lookup(call string, version int) (Asset, bool) {
	for _, a := range c.assets {
		if a.Pattern.MatchString(call) && (a.Version == 0 || a.Version == version) {
			return a, true
		}
	}
	return Asset{}, false
}

func (c *Catalog) Read(a Asset) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.files[a.File]; ok {
		return s, nil
	}
	bs, err := fs.ReadFile(c.fsys, filepath.ToSlash(a.File))
	if err != nil {
		return "", fmt.Errorf("asset %s: %w", a.File, err)
	}
	c.files[a.File] = string(bs)
	return c.files[a.File], nil
}

// Check verifies every asset can be read.
func (c *Catalog) Check() error {
	for _, a := range c.assets {
		if _, err := c.Read(a); err != nil {
			return err
		}
	}
	return nil
}

// inlined reports whether source holds the literal of any asset available
// for version.
func (c *Catalog) inlined(source string, version int) bool {
	for _, a := range c.assets {
		if a.Version != 0 && a.Version != version {
			continue
		}
		contents, err := c.Read(a)
		if err == nil && strings.Contains(source, templateLiteral(contents)) {
			return true
		}
	}
	return false
}
