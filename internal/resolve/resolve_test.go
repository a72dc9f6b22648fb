package resolve

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTableLookup(t *testing.T) {
	table, err := NewTable(
		map[string]string{"fs": "./shims/fs.js", "chokidar": "./shims/empty.js"},
		map[string]string{"react": "self.React"},
	)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		note     string
		id       string
		importer string
		want     Target
		found    bool
	}{
		{
			note:     "path override from application code",
			id:       "fs",
			importer: "/app/src/index.js",
			want:     Target{Path: "./shims/fs.js"},
			found:    true,
		},
		{
			note:     "path override from a dependency",
			id:       "chokidar",
			importer: "/app/node_modules/tailwindcss/lib/index.js",
			want:     Target{Path: "./shims/empty.js"},
			found:    true,
		},
		{
			note:     "external from a dependency",
			id:       "react",
			importer: "/app/node_modules/@headlessui/react/index.js",
			want:     Target{External: "self.React"},
			found:    true,
		},
		{
			note:     "external from application code",
			id:       "react",
			importer: "/app/src/App.js",
		},
		{
			note:     "directory merely named like node_modules",
			id:       "react",
			importer: "/app/node_modules_backup/x.js",
		},
		{
			note:     "no prefix matching",
			id:       "fs/promises",
			importer: "/app/src/index.js",
		},
		{
			note:     "unknown identifier",
			id:       "path",
			importer: "/app/src/index.js",
		},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			got, ok := table.Lookup(tc.id, tc.importer)
			if ok != tc.found {
				t.Fatalf("expected found=%v, got %v", tc.found, ok)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("unexpected target (-want,+got):\n%s", diff)
			}
		})
	}
}

func TestNewTableErrors(t *testing.T) {
	tests := []struct {
		note      string
		paths     map[string]string
		externals map[string]string
	}{
		{note: "empty path", paths: map[string]string{"fs": ""}},
		{note: "empty binding", externals: map[string]string{"react": ""}},
		{note: "duplicate", paths: map[string]string{"react": "./r.js"}, externals: map[string]string{"react": "self.React"}},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			if _, err := NewTable(tc.paths, tc.externals); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestTableEntries(t *testing.T) {
	table, err := NewTable(map[string]string{"b": "./b.js", "a": "./a.js"}, map[string]string{"c": "self.C"})
	if err != nil {
		t.Fatal(err)
	}
	want := []Entry{
		{ID: "a", Target: Target{Path: "./a.js"}},
		{ID: "b", Target: Target{Path: "./b.js"}},
		{ID: "c", Target: Target{External: "self.C"}},
	}
	if diff := cmp.Diff(want, table.Entries()); diff != "" {
		t.Fatalf("unexpected entries (-want,+got):\n%s", diff)
	}
}
