package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stianhazel/play.tailwindcss.com/internal/config"
	"github.com/stianhazel/play.tailwindcss.com/internal/validate"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	env := config.Env{LogLevel: "error", LogFormat: "text"}
	cmd := newRootCommand(env)
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for p, content := range map[string]string{
		"src/index.js":        `console.log("index");`,
		"src/workers/css.js":  `global.postMessage("css");`,
		"playbuild.yaml":      "entry_points: [src/index.js]\nworkers:\n  - {label: css, id: css-worker, entry: src/workers/css.js}\n",
		"patches/minify.yaml": "- {op: add, path: /minify, value: true}\n",
	} {
		path := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestValidateCommand(t *testing.T) {
	for _, tc := range []struct {
		note  string
		input string
		exp   validate.Result
	}{
		{
			note:  "valid",
			input: "console.log(1)",
			exp:   validate.Result{Valid: true},
		},
		{
			note:  "syntax error",
			input: "let a = 1\nlet b = (",
			exp:   validate.Result{Error: &validate.Error{Line: 2}},
		},
	} {
		t.Run(tc.note, func(t *testing.T) {
			out, err := run(t, tc.input, "validate")
			if err != nil {
				t.Fatal(err)
			}
			var got validate.Result
			if err := json.Unmarshal([]byte(out), &got); err != nil {
				t.Fatalf("%v: %s", err, out)
			}
			if got.Error != nil {
				got.Error.Message = ""
			}
			if diff := cmp.Diff(tc.exp, got); diff != "" {
				t.Fatalf("unexpected result (-want,+got):\n%s", diff)
			}
		})
	}
}

func TestConfigSchemaCommand(t *testing.T) {
	out, err := run(t, "", "config", "schema")
	if err != nil {
		t.Fatal(err)
	}
	var schema map[string]any
	if err := json.Unmarshal([]byte(out), &schema); err != nil {
		t.Fatal(err)
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected properties in schema, got %v", schema)
	}
	for _, key := range []string{"workers", "rules", "aliases", "externals", "output"} {
		if _, ok := props[key]; !ok {
			t.Errorf("expected property %q", key)
		}
	}
}

func TestConfigCheckCommand(t *testing.T) {
	root := writeProject(t)

	out, err := run(t, "", "config", "check", "-c", filepath.Join(root, "playbuild.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if exp := "ok: 1 worker(s), 0 rule(s), 0 target environment(s)\n"; out != exp {
		t.Fatalf("expected %q, got %q", exp, out)
	}

	if _, err := run(t, "", "config", "check", "-c", filepath.Join(root, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestBuildCommand(t *testing.T) {
	root := writeProject(t)

	out, err := run(t, "", "build",
		"-c", filepath.Join(root, "playbuild.yaml"),
		"--patch", filepath.Join(root, "patches/minify.yaml"),
		"--target", "client")
	if err != nil {
		t.Fatalf("%v: %s", err, out)
	}
	for _, s := range []string{"CLIENT", "SUCCESS"} {
		if !strings.Contains(strings.ToUpper(out), s) {
			t.Errorf("expected %q in summary:\n%s", s, out)
		}
	}
	if strings.Contains(out, "server") {
		t.Errorf("server target should not be built:\n%s", out)
	}

	for _, p := range []string{"dist/client/index.js", "dist/client/static/chunks/css.js", "dist/client/manifest.json"} {
		if _, err := os.Stat(filepath.Join(root, p)); err != nil {
			t.Errorf("expected %s: %v", p, err)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "dist/server")); !os.IsNotExist(err) {
		t.Errorf("expected no server output, got %v", err)
	}
}

func TestBuildCommandInvalidTarget(t *testing.T) {
	root := writeProject(t)
	if _, err := run(t, "", "build", "-c", filepath.Join(root, "playbuild.yaml"), "--target", "edge"); err == nil {
		t.Fatal("expected error for unknown target")
	}
}
