package jsonpatch

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestApply(t *testing.T) {
	tests := []struct {
		note  string
		patch string
		doc   string
		exp   string
	}{
		{
			note:  "replace",
			patch: `[{"op": "replace", "path": "/format", "value": "iife"}]`,
			doc:   `{"format":"esm"}`,
			exp:   `{"format":"iife"}`,
		},
		{
			note:  "add creates missing paths",
			patch: `[{"op": "add", "path": "/define/process.env.NODE_ENV", "value": "\"production\""}]`,
			doc:   `{}`,
			exp:   `{"define":{"process.env.NODE_ENV":"\"production\""}}`,
		},
		{
			note:  "remove missing path",
			patch: `[{"op": "remove", "path": "/externals/react"}]`,
			doc:   `{"externals":{}}`,
			exp:   `{"externals":{}}`,
		},
		{
			note: "yaml patch",
			patch: `
- op: add
  path: /minify
  value: true
`,
			doc: `{}`,
			exp: `{"minify":true}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			p, err := Decode([]byte(tc.patch))
			if err != nil {
				t.Fatal(err)
			}
			got, err := Apply(p, []byte(tc.doc))
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.exp, string(got)); diff != "" {
				t.Fatalf("unexpected document (-want,+got):\n%s", diff)
			}
		})
	}
}

func TestApplyUnsupported(t *testing.T) {
	p, err := Decode([]byte(`[{"op": "copy", "from": "/a", "path": "/b"}]`))
	if err != nil {
		t.Fatal(err)
	}
	_, err = Apply(p, []byte(`{"a":1}`))

	var perr *PatchError
	if !errors.As(err, &perr) || perr.Op != "copy" {
		t.Fatalf("expected unsupported operation error, got %v", err)
	}
}
