package transform

import (
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/gobwas/glob"
)

// Matcher decides whether a module, identified by its on-disk path, is
// subject to a rule.
type Matcher interface {
	Match(path string) bool
}

type MatcherFunc func(path string) bool

func (f MatcherFunc) Match(path string) bool { return f(path) }

// Exact matches one file. Paths are compared after cleaning.
func Exact(path string) Matcher {
	want := filepath.Clean(path)
	return MatcherFunc(func(p string) bool {
		return filepath.Clean(p) == want
	})
}

// Pattern matches paths against re. The path is presented with forward
// slashes so patterns are portable.
func Pattern(re *regexp.Regexp) Matcher {
	return MatcherFunc(func(p string) bool {
		return re.MatchString(filepath.ToSlash(p))
	})
}

// Glob matches slash-separated paths against a shell pattern where "**"
// crosses directories.
func Glob(pattern string) (Matcher, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	return MatcherFunc(func(p string) bool {
		return g.Match(filepath.ToSlash(p))
	}), nil
}

func Or(ms ...Matcher) Matcher {
	return MatcherFunc(func(p string) bool {
		for _, m := range ms {
			if m.Match(p) {
				return true
			}
		}
		return false
	})
}

func And(ms ...Matcher) Matcher {
	return MatcherFunc(func(p string) bool {
		for _, m := range ms {
			if !m.Match(p) {
				return false
			}
		}
		return len(ms) > 0
	})
}

func Not(m Matcher) Matcher {
	return MatcherFunc(func(p string) bool {
		return !m.Match(p)
	})
}
