package transform

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/stianhazel/play.tailwindcss.com/internal/envdata"
)

// Rewrite is a transform together with the anchor it needs and a check that
// recognizes its own output.
type Rewrite struct {
	Transform Func
	Anchor    *regexp.Regexp
	Applied   func(source string) bool
}

// Replace swaps the first occurrence of old for with. Sources that already
// contain with are left alone, so replaying the rule is harmless. A deletion
// (empty with) counts as applied once old is gone.
func Replace(old, with string) Rewrite {
	applied := func(source string) bool {
		if with == "" {
			return !strings.Contains(source, old)
		}
		return strings.Contains(source, with)
	}
	return Rewrite{
		Transform: func(source string) (string, error) {
			if applied(source) {
				return source, nil
			}
			return strings.Replace(source, old, with, 1), nil
		},
		Anchor:  regexp.MustCompile(regexp.QuoteMeta(old)),
		Applied: applied,
	}
}

// readFileCall is the compiled form of `fs.readFileSync(path.join(...), 'utf8')`
// in the packages that embed stylesheets at runtime.
var readFileCall = regexp.MustCompile(`_fs\.default\.readFileSync\(.*?'utf8'\)`)

// InlineAssets replaces runtime stylesheet reads with template literals
// holding the file contents, chosen from catalog by matching the call text.
// version narrows ambiguous catalog entries; zero accepts any entry.
func InlineAssets(catalog *Catalog, version int) Rewrite {
	fn := func(source string) (string, error) {
		var err error
		out := readFileCall.ReplaceAllStringFunc(source, func(call string) string {
			asset, ok := catalog.Lookup(call, version)
			if !ok || err != nil {
				return call
			}
			var contents string
			contents, err = catalog.Read(asset)
			if err != nil {
				return call
			}
			return templateLiteral(contents)
		})
		if err != nil {
			return "", err
		}
		return out, nil
	}
	return Rewrite{
		Transform: fn,
		Anchor:    readFileCall,
		Applied: func(source string) bool {
			return !readFileCall.MatchString(source) && catalog.inlined(source, version)
		},
	}
}

var templateEscaper = strings.NewReplacer(`\`, `\\`, "`", "\\`", "${", `\${`)

func templateLiteral(s string) string {
	return "`" + templateEscaper.Replace(s) + "`"
}

const includeMarker = "/* playbuild:include */"

// Include defines globals on self and surrounds the module with side-effect
// imports: pre before its body, post after.
func Include(globals map[string]string, pre, post []string) Func {
	var head strings.Builder
	head.WriteString(includeMarker + "\n")
	for _, name := range slices.Sorted(maps.Keys(globals)) {
		fmt.Fprintf(&head, "self[%s] = (%s);\n", strconv.Quote(name), globals[name])
	}
	for _, p := range pre {
		fmt.Fprintf(&head, "import %s;\n", strconv.Quote(p))
	}

	var tail strings.Builder
	for _, p := range post {
		fmt.Fprintf(&tail, "\nimport %s;", strconv.Quote(p))
	}

	return func(source string) (string, error) {
		if strings.HasPrefix(source, includeMarker) {
			return source, nil
		}
		return head.String() + source + tail.String(), nil
	}
}

// Static replaces the module body with contents.
func Static(contents string) Func {
	return func(string) (string, error) {
		return contents, nil
	}
}

// Browsers replaces a browserslist implementation with a function returning
// the already resolved targets.
func Browsers(targets envdata.Targets) (Func, error) {
	bs, err := json.Marshal(targets.List())
	if err != nil {
		return nil, err
	}
	return Static(fmt.Sprintf("module.exports = () => (%s)\n", bs)), nil
}

// CanIUse replaces caniuse-lite's unpacker with pre-filtered agents and a
// single pre-filtered feature.
func CanIUse(agents envdata.Table, feature map[string]any, targets envdata.Targets) (Func, error) {
	a, err := json.Marshal(envdata.FilterAgents(envdata.StripAgents(agents), targets))
	if err != nil {
		return nil, err
	}
	f, err := json.Marshal(envdata.FilterFeature(feature, targets))
	if err != nil {
		return nil, err
	}
	return Static(fmt.Sprintf("export const agents = %s\nexport function feature() {\n  return %s\n}\n", a, f)), nil
}

// Prefixes replaces autoprefixer's prefix data with the filtered table.
func Prefixes(table envdata.Table, targets envdata.Targets) (Func, error) {
	bs, err := json.Marshal(envdata.FilterPrefixes(table, targets))
	if err != nil {
		return nil, err
	}
	return Static(fmt.Sprintf("module.exports = %s\n", bs)), nil
}
