package envdata

import "maps"

// Table is a JSON object keyed by entry name, as found in autoprefixer's
// prefixes data or caniuse's agents data.
type Table map[string]map[string]any

// FilterPrefixes keeps only the targeted environments in each entry's
// "browsers" list. An entry whose list had environments and lost all of them
// is dropped.
func FilterPrefixes(table Table, targets Targets) Table {
	out := make(Table, len(table))
	for name, entry := range table {
		browsers, ok := entry["browsers"].([]any)
		if !ok {
			out[name] = maps.Clone(entry)
			continue
		}

		kept := make([]any, 0, len(browsers))
		for _, b := range browsers {
			if id, ok := b.(string); ok && targets.Contains(id) {
				kept = append(kept, b)
			}
		}
		if len(kept) == 0 && len(browsers) > 0 {
			continue
		}

		e := maps.Clone(entry)
		e["browsers"] = kept
		out[name] = e
	}
	return out
}

// StripAgents reduces each caniuse agent to the fields prefixing needs.
func StripAgents(agents Table) Table {
	out := make(Table, len(agents))
	for name, agent := range agents {
		e := make(map[string]any, 2)
		for _, k := range []string{"prefix", "prefix_exceptions"} {
			if v, ok := agent[k]; ok {
				e[k] = v
			}
		}
		out[name] = e
	}
	return out
}

// FilterAgents drops agents no target refers to and narrows each agent's
// prefix_exceptions to targeted versions.
func FilterAgents(agents Table, targets Targets) Table {
	out := make(Table, len(agents))
	for name, agent := range agents {
		if !targets.ContainsBrowser(name) {
			continue
		}
		e := maps.Clone(agent)
		if exceptions, ok := agent["prefix_exceptions"].(map[string]any); ok {
			kept := filterVersions(name, exceptions, targets)
			if len(kept) == 0 && len(exceptions) > 0 {
				delete(e, "prefix_exceptions")
			} else {
				e["prefix_exceptions"] = kept
			}
		}
		out[name] = e
	}
	return out
}

// FilterFeature narrows a caniuse feature's stats to targeted versions,
// dropping browsers with no targeted version left.
func FilterFeature(feature map[string]any, targets Targets) map[string]any {
	out := maps.Clone(feature)
	stats, ok := feature["stats"].(map[string]any)
	if !ok {
		return out
	}

	filtered := make(map[string]any, len(stats))
	for browser, v := range stats {
		versions, ok := v.(map[string]any)
		if !ok {
			filtered[browser] = v
			continue
		}
		kept := filterVersions(browser, versions, targets)
		if len(kept) == 0 && len(versions) > 0 {
			continue
		}
		filtered[browser] = kept
	}
	out["stats"] = filtered
	return out
}

func filterVersions(browser string, versions map[string]any, targets Targets) map[string]any {
	kept := make(map[string]any, len(versions))
	for version, v := range versions {
		if targets.ContainsVersion(browser, version) {
			kept[version] = v
		}
	}
	return kept
}
