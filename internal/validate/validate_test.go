package validate

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestJavaScript(t *testing.T) {
	tests := []struct {
		note   string
		script string
		valid  bool
		line   int
	}{
		{note: "empty", script: "", valid: true},
		{note: "expression", script: "1 + 1", valid: true},
		{note: "return", script: "return module.exports", valid: true},
		{note: "incomplete function", script: "function (", line: 0},
		{note: "error on a later line", script: "let a = 1\nlet b = 2\nlet = ;", line: 2},
		{note: "unterminated block", script: "if (x) {", line: 1},
		{note: "closes the wrapper", script: "}); (function () {", line: 0},
		{note: "closes the wrapper on its own line", script: "})\n(function () {", line: 0},
		{note: "return on a later line", script: "const a = 1\nreturn a", valid: true},
		{note: "module syntax", script: "import x from 'y'", line: 0},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			got := JavaScript(tc.script)
			if got.Valid != tc.valid {
				t.Fatalf("expected valid=%v, got %+v", tc.valid, got)
			}
			if tc.valid {
				if got.Error != nil {
					t.Fatalf("unexpected error: %+v", got.Error)
				}
				return
			}
			if got.Error == nil {
				t.Fatal("expected error")
			}
			if got.Error.Line != tc.line {
				t.Errorf("expected line %d, got %d", tc.line, got.Error.Line)
			}
			if !strings.HasPrefix(got.Error.Message, "SyntaxError: ") {
				t.Errorf("unexpected message %q", got.Error.Message)
			}
		})
	}
}

func TestResultJSON(t *testing.T) {
	bs, err := json.Marshal(JavaScript("1 + 1"))
	if err != nil {
		t.Fatal(err)
	}
	if string(bs) != `{"isValid":true}` {
		t.Fatalf("unexpected encoding: %s", bs)
	}
}
