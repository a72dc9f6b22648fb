package transform

import (
	"io/fs"
	"regexp"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/stianhazel/play.tailwindcss.com/internal/envdata"
)

func mapFS(m map[string]string) fs.FS {
	fsys := fstest.MapFS{}
	for p, s := range m {
		fsys[p] = &fstest.MapFile{Data: []byte(s)}
	}
	return fsys
}

func preflightCatalog() *Catalog {
	return NewCatalog(mapFS(map[string]string{
		"modern-normalize.css": "/* modern */",
		"normalize.css":        "/* normalize */",
		"v1/preflight.css":     "/* v1 */",
		"v2/preflight.css":     "/* v2 `quoted` ${x} \\ */",
	}), []Asset{
		{Pattern: regexp.MustCompile(`modern-normalize`), File: "modern-normalize.css"},
		{Pattern: regexp.MustCompile(`normalize`), File: "normalize.css"},
		{Pattern: regexp.MustCompile(`preflight`), Version: 1, File: "v1/preflight.css"},
		{Pattern: regexp.MustCompile(`preflight`), Version: 2, File: "v2/preflight.css"},
	})
}

func TestInlineAssets(t *testing.T) {
	src := strings.Join([]string{
		`var a = _fs.default.readFileSync(require.resolve('modern-normalize'), 'utf8');`,
		`var b = _fs.default.readFileSync(require.resolve('normalize.css'), 'utf8');`,
		`var c = _fs.default.readFileSync(_path.default.join(__dirname, './css/preflight.css'), 'utf8');`,
		`var d = _fs.default.readFileSync(_path.default.join(__dirname, './unknown.css'), 'utf8');`,
	}, "\n")

	rw := InlineAssets(preflightCatalog(), 2)
	if !rw.Anchor.MatchString(src) {
		t.Fatal("anchor should match")
	}
	act, err := rw.Transform(src)
	if err != nil {
		t.Fatal(err)
	}
	exp := strings.Join([]string{
		"var a = `/* modern */`;",
		"var b = `/* normalize */`;",
		"var c = `/* v2 \\`quoted\\` \\${x} \\\\ */`;",
		`var d = _fs.default.readFileSync(_path.default.join(__dirname, './unknown.css'), 'utf8');`,
	}, "\n")
	if diff := cmp.Diff(exp, act); diff != "" {
		t.Fatalf("(-want,+got):\n%s", diff)
	}
}

func TestInlineAssetsVersionDiscriminator(t *testing.T) {
	act, err := InlineAssets(preflightCatalog(), 1).Transform(`_fs.default.readFileSync(_path.default.join(__dirname, './css/preflight.css'), 'utf8')`)
	if err != nil {
		t.Fatal(err)
	}
	if act != "`/* v1 */`" {
		t.Fatalf("got %q", act)
	}
}

func TestInlineAssetsMissingFile(t *testing.T) {
	catalog := NewCatalog(mapFS(nil), []Asset{{Pattern: regexp.MustCompile(`preflight`), File: "gone.css"}})
	if _, err := InlineAssets(catalog, 0).Transform(`_fs.default.readFileSync('preflight.css', 'utf8')`); err == nil {
		t.Fatal("expected error for unreadable asset")
	}
	if err := catalog.Check(); err == nil {
		t.Fatal("expected catalog check to fail")
	}
}

func TestInclude(t *testing.T) {
	fn := Include(
		map[string]string{"MonacoEnvironment": "{ globalAPI: true }"},
		[]string{"/m/editor/contrib/find.js"},
		[]string{"/m/language/css/monaco.contribution.js"},
	)
	act, err := fn("export * from './editor.api.js';")
	if err != nil {
		t.Fatal(err)
	}
	exp := includeMarker + "\n" +
		`self["MonacoEnvironment"] = ({ globalAPI: true });` + "\n" +
		`import "/m/editor/contrib/find.js";` + "\n" +
		"export * from './editor.api.js';\n" +
		`import "/m/language/css/monaco.contribution.js";`
	if diff := cmp.Diff(exp, act); diff != "" {
		t.Fatalf("(-want,+got):\n%s", diff)
	}

	again, _ := fn(act)
	if again != act {
		t.Fatal("include applied twice")
	}
}

func TestDataModules(t *testing.T) {
	targets := envdata.NewTargets([]string{"chrome 120", "firefox 120"})

	browsers, err := Browsers(targets)
	if err != nil {
		t.Fatal(err)
	}
	act, _ := browsers("module.exports = browserslist")
	if exp := "module.exports = () => ([\"chrome 120\",\"firefox 120\"])\n"; act != exp {
		t.Fatalf("got %q, want %q", act, exp)
	}

	prefixes, err := Prefixes(envdata.Table{
		"transition": {"browsers": []any{"chrome 120", "ie 9"}},
		"old":        {"browsers": []any{"ie 9"}},
	}, targets)
	if err != nil {
		t.Fatal(err)
	}
	act, _ = prefixes("")
	if exp := "module.exports = {\"transition\":{\"browsers\":[\"chrome 120\"]}}\n"; act != exp {
		t.Fatalf("got %q, want %q", act, exp)
	}

	caniuse, err := CanIUse(
		envdata.Table{"chrome": {"prefix": "webkit", "usage_global": map[string]any{}}, "ie": {"prefix": "ms"}},
		map[string]any{"stats": map[string]any{"chrome": map[string]any{"120": "y", "4": "n"}}},
		targets,
	)
	if err != nil {
		t.Fatal(err)
	}
	act, _ = caniuse("")
	exp := "export const agents = {\"chrome\":{\"prefix\":\"webkit\"}}\n" +
		"export function feature() {\n  return {\"stats\":{\"chrome\":{\"120\":\"y\"}}}\n}\n"
	if diff := cmp.Diff(exp, act); diff != "" {
		t.Fatalf("(-want,+got):\n%s", diff)
	}
}

func TestReplace(t *testing.T) {
	tests := []struct {
		note    string
		old     string
		with    string
		source  string
		exp     string
		applied bool
	}{
		{
			note:   "first occurrence",
			old:    "foo()",
			with:   "bar()",
			source: "foo(); foo();",
			exp:    "bar(); foo();",
		},
		{
			note:    "already rewritten",
			old:     "foo()",
			with:    "bar()",
			source:  "bar();",
			exp:     "bar();",
			applied: true,
		},
		{
			note:   "deletion",
			old:    "console.log('debug');\n",
			source: "a();\nconsole.log('debug');\nb();",
			exp:    "a();\nb();",
		},
		{
			note:    "deletion already applied",
			old:     "console.log('debug');\n",
			source:  "a();\nb();",
			exp:     "a();\nb();",
			applied: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			rw := Replace(tc.old, tc.with)
			if got := rw.Applied(tc.source); got != tc.applied {
				t.Fatalf("expected applied=%v, got %v", tc.applied, got)
			}
			act, err := rw.Transform(tc.source)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.exp, act); diff != "" {
				t.Fatalf("(-want,+got):\n%s", diff)
			}
		})
	}
}

func TestInlineAssetsApplied(t *testing.T) {
	rw := InlineAssets(preflightCatalog(), 2)
	call := `var c = _fs.default.readFileSync(_path.default.join(__dirname, './css/preflight.css'), 'utf8');`
	if rw.Applied(call) {
		t.Fatal("raw source reported as applied")
	}
	out, err := rw.Transform(call)
	if err != nil {
		t.Fatal(err)
	}
	if !rw.Applied(out) {
		t.Fatalf("rewritten source not recognized:\n%s", out)
	}
	if rw.Applied("var c = other();") {
		t.Fatal("unrelated source reported as applied")
	}
}
