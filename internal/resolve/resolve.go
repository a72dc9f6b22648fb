// Package resolve redirects module imports before esbuild's own resolver sees
// them. An override either points an import at a different file or binds it
// to a value that already exists at runtime.
package resolve

import (
	"fmt"
	"maps"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// Target is what an overridden import resolves to. Exactly one of Path and
// External is set.
type Target struct {
	Path     string // replacement module file
	External string // JavaScript expression the module evaluates to
}

func (t Target) IsExternal() bool { return t.External != "" }

type Entry struct {
	ID     string
	Target Target
}

// Table is an immutable, exact-match lookup from import specifier to Target.
type Table struct {
	entries map[string]Target
}

// NewTable builds a table from path overrides and external bindings. An
// identifier may not appear in both.
func NewTable(paths, externals map[string]string) (*Table, error) {
	t := &Table{entries: make(map[string]Target, len(paths)+len(externals))}
	for _, id := range slices.Sorted(maps.Keys(paths)) {
		if id == "" || paths[id] == "" {
			return nil, fmt.Errorf("override %q: identifier and path are required", id)
		}
		t.entries[id] = Target{Path: paths[id]}
	}
	for _, id := range slices.Sorted(maps.Keys(externals)) {
		if id == "" || externals[id] == "" {
			return nil, fmt.Errorf("external %q: identifier and binding are required", id)
		}
		if _, ok := t.entries[id]; ok {
			return nil, fmt.Errorf("%q is declared both as an override and as an external", id)
		}
		t.entries[id] = Target{External: externals[id]}
	}
	return t, nil
}

// Lookup returns the override for id requested from importer. External
// bindings only apply to imports made from inside node_modules; application
// code importing the same name resolves normally.
func (t *Table) Lookup(id, importer string) (Target, bool) {
	target, ok := t.entries[id]
	if !ok {
		return Target{}, false
	}
	if target.IsExternal() && !inNodeModules(importer) {
		return Target{}, false
	}
	return target, true
}

func (t *Table) Entries() []Entry {
	entries := make([]Entry, 0, len(t.entries))
	for _, id := range slices.Sorted(maps.Keys(t.entries)) {
		entries = append(entries, Entry{ID: id, Target: t.entries[id]})
	}
	return entries
}

func (t *Table) Len() int {
	return len(t.entries)
}

// filter returns an esbuild filter that only matches the table's identifiers.
func (t *Table) filter() string {
	ids := slices.Sorted(maps.Keys(t.entries))
	for i := range ids {
		ids[i] = regexp.QuoteMeta(ids[i])
	}
	return "^(?:" + strings.Join(ids, "|") + ")$"
}

func inNodeModules(importer string) bool {
	return slices.Contains(strings.Split(filepath.ToSlash(filepath.Dir(importer)), "/"), "node_modules")
}
