package envdata

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustTable(t *testing.T, s string) Table {
	t.Helper()
	var table Table
	if err := json.Unmarshal([]byte(s), &table); err != nil {
		t.Fatal(err)
	}
	return table
}

const prefixes = `{
	"border-radius": {"mistakes": ["-khtml-"], "feature": "border-radius", "browsers": ["safari 3.2", "firefox 2", "chrome 4"]},
	"transition": {"feature": "css-transitions", "browsers": ["chrome 120", "safari 17.2"]},
	":fullscreen": {"selector": true, "feature": "fullscreen", "browsers": ["chrome 120", "firefox 120"]},
	"empty": {"feature": "none", "browsers": []},
	"no-browsers": {"feature": "none"}
}`

func TestFilterPrefixes(t *testing.T) {
	targets := NewTargets([]string{"chrome 120", "firefox 120", "safari 17.2"})

	act := FilterPrefixes(mustTable(t, prefixes), targets)
	exp := mustTable(t, `{
		"transition": {"feature": "css-transitions", "browsers": ["chrome 120", "safari 17.2"]},
		":fullscreen": {"selector": true, "feature": "fullscreen", "browsers": ["chrome 120", "firefox 120"]},
		"empty": {"feature": "none", "browsers": []},
		"no-browsers": {"feature": "none"}
	}`)
	if diff := cmp.Diff(exp, act); diff != "" {
		t.Fatalf("(-want,+got):\n%s", diff)
	}

	if diff := cmp.Diff(act, FilterPrefixes(act, targets)); diff != "" {
		t.Fatalf("filter is not idempotent (-once,+twice):\n%s", diff)
	}
}

func TestFilterPrefixesSuperset(t *testing.T) {
	table := mustTable(t, prefixes)
	all := NewTargets([]string{"safari 3.2", "firefox 2", "chrome 4", "chrome 120", "safari 17.2", "firefox 120", "opera 100"})

	if diff := cmp.Diff(table, FilterPrefixes(table, all)); diff != "" {
		t.Fatalf("superset filter changed the table (-want,+got):\n%s", diff)
	}
}

func TestFilterPrefixesDoesNotMutate(t *testing.T) {
	table := mustTable(t, prefixes)
	before := mustTable(t, prefixes)
	FilterPrefixes(table, NewTargets(nil))
	if diff := cmp.Diff(before, table); diff != "" {
		t.Fatalf("input mutated:\n%s", diff)
	}
}

const agents = `{
	"chrome": {"usage_global": {"120": 10.5}, "prefix": "webkit", "versions": ["119", "120"], "prefix_exceptions": {"4": "webkit", "120": "blink"}},
	"firefox": {"usage_global": {"120": 2.1}, "prefix": "moz", "versions": ["120"]},
	"ie": {"usage_global": {"11": 0.3}, "prefix": "ms", "versions": ["11"], "prefix_exceptions": {"9": "ms"}}
}`

func TestAgents(t *testing.T) {
	targets := NewTargets([]string{"chrome 120", "firefox 120"})

	act := FilterAgents(StripAgents(mustTable(t, agents)), targets)
	exp := mustTable(t, `{
		"chrome": {"prefix": "webkit", "prefix_exceptions": {"120": "blink"}},
		"firefox": {"prefix": "moz"}
	}`)
	if diff := cmp.Diff(exp, act); diff != "" {
		t.Fatalf("(-want,+got):\n%s", diff)
	}

	if diff := cmp.Diff(act, FilterAgents(act, targets)); diff != "" {
		t.Fatalf("filter is not idempotent (-once,+twice):\n%s", diff)
	}
}

func TestFilterAgentsDropsEmptiedExceptions(t *testing.T) {
	act := FilterAgents(StripAgents(mustTable(t, agents)), NewTargets([]string{"ie 11"}))
	exp := mustTable(t, `{"ie": {"prefix": "ms"}}`)
	if diff := cmp.Diff(exp, act); diff != "" {
		t.Fatalf("(-want,+got):\n%s", diff)
	}
}

func TestFilterFeature(t *testing.T) {
	var feature map[string]any
	if err := json.Unmarshal([]byte(`{
		"status": "cr",
		"title": "CSS Feature Queries",
		"stats": {
			"chrome": {"119": "y", "120": "y"},
			"ie": {"11": "n"},
			"safari": {"17.2": "y"}
		}
	}`), &feature); err != nil {
		t.Fatal(err)
	}
	targets := NewTargets([]string{"chrome 120", "safari 17.2"})

	act := FilterFeature(feature, targets)
	exp := map[string]any{
		"status": "cr",
		"title":  "CSS Feature Queries",
		"stats": map[string]any{
			"chrome": map[string]any{"120": "y"},
			"safari": map[string]any{"17.2": "y"},
		},
	}
	if diff := cmp.Diff(exp, act); diff != "" {
		t.Fatalf("(-want,+got):\n%s", diff)
	}
	if diff := cmp.Diff(act, FilterFeature(act, targets)); diff != "" {
		t.Fatalf("filter is not idempotent:\n%s", diff)
	}
}

func TestTargets(t *testing.T) {
	targets := NewTargets([]string{"chrome  120", "chrome 120", "", "ios_saf 17.0-17.1"})

	if diff := cmp.Diff([]string{"chrome 120", "ios_saf 17.0-17.1"}, targets.List()); diff != "" {
		t.Fatalf("(-want,+got):\n%s", diff)
	}
	if !targets.ContainsVersion("ios_saf", "17.0-17.1") || !targets.ContainsBrowser("chrome") || targets.ContainsBrowser("ie") {
		t.Fatal("unexpected membership")
	}
}
