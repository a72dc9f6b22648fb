package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter(&buf, Config{Level: Warn, Format: "json"}).With("unit", "html")

	log.Debugf("dropped %d", 1)
	log.Warnf("anchor %q missing", "case 'css':")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected exactly one json entry, got %q: %v", buf.String(), err)
	}
	if entry["level"] != "warn" || entry["unit"] != "html" || entry["message"] != `anchor "case 'css':" missing` {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestParseLevel(t *testing.T) {
	for in, exp := range map[string]Level{"": Info, "DEBUG": Debug, "warning": Warn, "error": Error} {
		act, err := ParseLevel(in)
		if err != nil || act != exp {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, act, err, exp)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
