// Package envdata shrinks the browser compatibility tables that ship inside
// third-party dependencies down to the environments a build targets.
//
// Every function here is pure: it never mutates its input, filtering an
// already-filtered table is a no-op, and filtering with a target set that
// covers every referenced environment returns an equal table.
package envdata

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Targets is an ordered set of environment identifiers of the form
// "<browser> <version>", e.g. "chrome 120" or "ios_saf 17.0-17.1".
type Targets struct {
	list     []string
	set      map[string]struct{}
	browsers map[string]struct{}
}

func NewTargets(ids []string) Targets {
	t := Targets{
		set:      make(map[string]struct{}, len(ids)),
		browsers: make(map[string]struct{}),
	}
	for _, id := range ids {
		id = strings.Join(strings.Fields(id), " ")
		if id == "" {
			continue
		}
		if _, ok := t.set[id]; ok {
			continue
		}
		t.set[id] = struct{}{}
		t.list = append(t.list, id)
		name, _, _ := strings.Cut(id, " ")
		t.browsers[name] = struct{}{}
	}
	return t
}

// LoadTargets reads a JSON array of environment identifiers.
func LoadTargets(path string) (Targets, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return Targets{}, err
	}
	var ids []string
	if err := json.Unmarshal(bs, &ids); err != nil {
		return Targets{}, fmt.Errorf("targets %s: %w", path, err)
	}
	return NewTargets(ids), nil
}

func (t Targets) Contains(id string) bool {
	_, ok := t.set[id]
	return ok
}

// ContainsVersion reports whether browser at version is targeted.
func (t Targets) ContainsVersion(browser, version string) bool {
	return t.Contains(browser + " " + version)
}

// ContainsBrowser reports whether any version of browser is targeted.
func (t Targets) ContainsBrowser(browser string) bool {
	_, ok := t.browsers[browser]
	return ok
}

func (t Targets) List() []string {
	return append([]string(nil), t.list...)
}

func (t Targets) Len() int {
	return len(t.list)
}
