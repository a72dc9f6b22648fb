package transform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
)

// ParseFieldsQuery extracts the field allow-list from a resource query such
// as "?fields=name,main".
func ParseFieldsQuery(query string) ([]string, bool) {
	values, err := url.ParseQuery(strings.TrimPrefix(query, "?"))
	if err != nil || !values.Has("fields") {
		return nil, false
	}
	var fields []string
	for _, f := range strings.Split(values.Get("fields"), ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields, true
}

// FilterFields loads a JSON document and keeps only the listed keys, at every
// depth. Array elements whose index is not listed become null. A retained
// string "main" is rewritten from a path relative to resourcePath into one
// relative to modulesRoot.
func FilterFields(source []byte, resourcePath string, fields []string, modulesRoot string) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(source))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: %w", resourcePath, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%s: unexpected data after JSON document", resourcePath)
	}

	f := fieldFilter{
		keep: map[string]struct{}{"": {}},
		dir:  filepath.Dir(resourcePath),
		root: modulesRoot,
	}
	for _, k := range fields {
		f.keep[k] = struct{}{}
	}

	out, err := f.value("", doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", resourcePath, err)
	}
	return json.Marshal(out)
}

type fieldFilter struct {
	keep map[string]struct{}
	dir  string
	root string
}

func (f fieldFilter) value(key string, v any) (any, error) {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, child := range v {
			if _, ok := f.keep[k]; !ok {
				continue
			}
			x, err := f.value(k, child)
			if err != nil {
				return nil, err
			}
			out[k] = x
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			if _, ok := f.keep[strconv.Itoa(i)]; !ok {
				continue
			}
			x, err := f.value(strconv.Itoa(i), child)
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	case string:
		if key != "main" {
			return v, nil
		}
		target := v
		if !filepath.IsAbs(target) {
			target = filepath.Join(f.dir, target)
		}
		rel, err := filepath.Rel(f.root, target)
		if err != nil {
			return nil, err
		}
		return filepath.ToSlash(rel), nil
	}
	return v, nil
}
