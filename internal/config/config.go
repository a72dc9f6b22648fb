package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/goccy/go-yaml"
)

// Root is the top-level playbuild configuration.
type Root struct {
	Root          string             `json:"root,omitempty"`        // project root; relative paths below resolve against it
	ModulesDir    string             `json:"modules_dir,omitempty"` // defaults to node_modules
	AssetsDir     string             `json:"assets_dir,omitempty"`  // overlays the project root when inlining assets
	EntryPoints   []string           `json:"entry_points,omitempty"`
	Format        string             `json:"format,omitempty" enum:"esm,iife,cjs"`
	Minify        bool               `json:"minify,omitempty"`
	Sourcemap     bool               `json:"sourcemap,omitempty"`
	Interval      Duration           `json:"rebuild_interval,omitzero"`
	Output        Output             `json:"output,omitzero"`
	Targets       Targets            `json:"targets,omitzero"`
	Data          Data               `json:"data,omitzero"`
	Aliases       map[string]string  `json:"aliases,omitempty"`
	Externals     map[string]string  `json:"externals,omitempty"`
	Define        map[string]string  `json:"define,omitempty"`
	Entries       []Entry            `json:"entries,omitempty"`
	Workers       []Worker           `json:"workers,omitempty"`
	Assets        []Asset            `json:"assets,omitempty"`
	Rules         []Rule             `json:"rules,omitempty"`
	StrictAnchors bool               `json:"strict_anchors,omitempty"`
	Secrets       map[string]*Secret `json:"secrets,omitempty"` // Schema validation overrides Secret to object type.

	// dir is the directory of the configuration file, if any.
	dir string

	_ struct{} `additionalProperties:"false"`
}

func (r *Root) UnmarshalYAML(bs []byte) error {
	type rawRoot Root // avoid recursive calls to UnmarshalYAML by type aliasing
	var raw rawRoot

	if err := yaml.Unmarshal(bs, &raw); err != nil {
		return fmt.Errorf("failed to decode Root: %w", err)
	}

	*r = Root(raw)
	return r.unmarshal()
}

func (r *Root) UnmarshalJSON(bs []byte) error {
	type rawRoot Root
	var raw rawRoot

	if err := json.Unmarshal(bs, &raw); err != nil {
		return fmt.Errorf("failed to decode Root: %w", err)
	}

	*r = Root(raw)
	return r.unmarshal()
}

// unmarshal links secret references to their secrets.
func (r *Root) unmarshal() error {
	for name := range r.Secrets {
		if r.Secrets[name] == nil {
			r.Secrets[name] = &Secret{}
		}
		r.Secrets[name].Name = name
	}
	for _, ref := range r.Output.Storage.credentials() {
		ref.value = r.Secrets[ref.Name]
	}
	return nil
}

// SetDir records the directory the configuration was loaded from.
func (r *Root) SetDir(dir string) {
	r.dir = dir
}

// ProjectRoot returns the absolute project root.
func (r *Root) ProjectRoot() (string, error) {
	root := r.Root
	if !filepath.IsAbs(root) {
		root = filepath.Join(r.dir, root)
	}
	return filepath.Abs(root)
}

// Path resolves p against the project root.
func (r *Root) Path(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	root, err := r.ProjectRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, filepath.FromSlash(p)), nil
}

func (r *Root) ModulesPath() (string, error) {
	dir := r.ModulesDir
	if dir == "" {
		dir = "node_modules"
	}
	return r.Path(dir)
}

// Check performs the semantic validation the schema cannot express.
func (r *Root) Check() error {
	var errs []error

	labels := map[string]bool{}
	ids := map[string]bool{}
	for i, w := range r.Workers {
		if err := w.validate(); err != nil {
			errs = append(errs, fmt.Errorf("workers[%d]: %w", i, err))
			continue
		}
		if labels[w.Label] {
			errs = append(errs, fmt.Errorf("workers[%d]: duplicate label %q", i, w.Label))
		}
		if ids[w.ID] {
			errs = append(errs, fmt.Errorf("workers[%d]: duplicate id %q", i, w.ID))
		}
		labels[w.Label], ids[w.ID] = true, true
	}

	names := map[string]bool{}
	for i, rule := range r.Rules {
		if names[rule.Name] {
			errs = append(errs, fmt.Errorf("rules[%d]: duplicate name %q", i, rule.Name))
		}
		names[rule.Name] = true
		if err := rule.Test.validate(); err != nil {
			errs = append(errs, fmt.Errorf("rules[%d] %q: test: %w", i, rule.Name, err))
		}
	}

	for i, a := range r.Assets {
		if _, err := regexp.Compile(a.Pattern); err != nil {
			errs = append(errs, fmt.Errorf("assets[%d]: %w", i, err))
		}
	}

	for id := range r.Externals {
		if _, ok := r.Aliases[id]; ok {
			errs = append(errs, fmt.Errorf("%q is declared both as an alias and as an external", id))
		}
	}

	if err := r.Targets.validate(); err != nil {
		errs = append(errs, err)
	}
	if err := r.Output.Storage.validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func Validate(data []byte) error {
	var config any
	if err := yaml.Unmarshal(data, &config); err != nil {
		return err
	}

	return rootSchema.Validate(config)
}

func ParseFile(filename string) (*Root, error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	root, err := Parse(bs)
	if err != nil {
		return nil, err
	}
	root.SetDir(filepath.Dir(filename))
	return root, nil
}

func Parse(bs []byte) (*Root, error) {
	if err := Validate(bs); err != nil {
		return nil, err
	}

	var root Root
	if err := yaml.Unmarshal(bs, &root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := root.Check(); err != nil {
		return nil, err
	}
	return &root, nil
}

// Instead of marshaling and unmarshaling as int64 it uses strings, like "5m" or "0.5s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	val, err := time.ParseDuration(str)
	*d = Duration(val)
	return err
}

func (d *Duration) UnmarshalYAML(bs []byte) error {
	var s string
	if err := yaml.Unmarshal(bs, &s); err != nil {
		return err
	}
	val, err := time.ParseDuration(s)
	*d = Duration(val)
	return err
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// Output configures where build artifacts go. Dir is esbuild's output
// directory; Storage is where successful builds are published.
type Output struct {
	Dir     string        `json:"dir,omitempty"`
	Storage ObjectStorage `json:"storage,omitzero"`

	_ struct{} `additionalProperties:"false"`
}

// Targets is the browser matrix the environment data tables are reduced to,
// given inline or as a JSON array file.
type Targets struct {
	Browsers []string `json:"browsers,omitempty"`
	File     string   `json:"file,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

func (t Targets) validate() error {
	if len(t.Browsers) > 0 && t.File != "" {
		return errors.New("targets: browsers and file are mutually exclusive")
	}
	return nil
}

// Data names the JSON snapshots of the environment data tables.
type Data struct {
	Agents   string            `json:"agents,omitempty"`
	Features map[string]string `json:"features,omitempty"`
	Prefixes string            `json:"prefixes,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

// Entry is an additional entry point of the parent build.
type Entry struct {
	Name string `json:"name" required:"true"`
	Path string `json:"path" required:"true"`

	_ struct{} `additionalProperties:"false"`
}

// Worker declares a worker bundle built alongside the parent.
type Worker struct {
	Label string `json:"label" required:"true"`
	ID    string `json:"id" required:"true"`
	Entry string `json:"entry" required:"true"`

	_ struct{} `additionalProperties:"false"`
}

var labelPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func (w Worker) validate() error {
	switch {
	case w.ID == "":
		return errors.New("id is required")
	case w.Entry == "":
		return fmt.Errorf("worker %q: entry is required", w.ID)
	case !labelPattern.MatchString(w.Label):
		return fmt.Errorf("worker %q: label %q must match %s", w.ID, w.Label, labelPattern)
	}
	return nil
}

// Asset is an inlineable file, selected by the text of the read call that
// loads it.
type Asset struct {
	Pattern string `json:"pattern" required:"true"`
	Version int    `json:"version,omitempty"`
	File    string `json:"file" required:"true"`

	_ struct{} `additionalProperties:"false"`
}

const (
	KindReplace      = "replace"
	KindInlineAssets = "inline-assets"
	KindInclude      = "include"
	KindBrowsers     = "browsers"
	KindCanIUse      = "caniuse"
	KindPrefixes     = "prefixes"
)

// Rule declares a content transform. Options depend on Kind.
type Rule struct {
	Name    string         `json:"name" required:"true"`
	Kind    string         `json:"kind" required:"true" enum:"replace,inline-assets,include,browsers,caniuse,prefixes"`
	Test    *Matcher       `json:"test" required:"true"`
	Options map[string]any `json:"options,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

// Matcher selects module paths. Exactly one field is set.
type Matcher struct {
	Path    string     `json:"path,omitempty"`
	Pattern string     `json:"pattern,omitempty"`
	Glob    string     `json:"glob,omitempty"`
	Or      []*Matcher `json:"or,omitempty"`
	And     []*Matcher `json:"and,omitempty"`
	Not     *Matcher   `json:"not,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

func (m *Matcher) validate() error {
	if m == nil {
		return errors.New("matcher is required")
	}

	set := slices.DeleteFunc([]bool{m.Path != "", m.Pattern != "", m.Glob != "", m.Or != nil, m.And != nil, m.Not != nil}, func(b bool) bool { return !b })
	if len(set) != 1 {
		return fmt.Errorf("exactly one of path, pattern, glob, or, and, not must be set, got %d", len(set))
	}

	switch {
	case m.Pattern != "":
		if _, err := regexp.Compile(m.Pattern); err != nil {
			return err
		}
	case m.Glob != "":
		if _, err := glob.Compile(m.Glob, '/'); err != nil {
			return fmt.Errorf("glob %q: %w", m.Glob, err)
		}
	case m.Not != nil:
		return m.Not.validate()
	}
	for _, sub := range append(slices.Clone(m.Or), m.And...) {
		if err := sub.validate(); err != nil {
			return err
		}
	}
	return nil
}

type ObjectStorage struct {
	AmazonS3          *AmazonS3          `json:"aws,omitempty"`
	GCPCloudStorage   *GCPCloudStorage   `json:"gcp,omitempty"`
	AzureBlobStorage  *AzureBlobStorage  `json:"azure,omitempty"`
	MinIOStorage      *MinIOStorage      `json:"minio,omitempty"`
	FileSystemStorage *FileSystemStorage `json:"filesystem,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

func (o *ObjectStorage) validate() error {
	n := 0
	for _, set := range []bool{o.AmazonS3 != nil, o.GCPCloudStorage != nil, o.AzureBlobStorage != nil, o.MinIOStorage != nil, o.FileSystemStorage != nil} {
		if set {
			n++
		}
	}
	if n > 1 {
		return errors.New("output storage: at most one of aws, gcp, azure, minio, filesystem may be set")
	}
	if err := o.AmazonS3.validate(); err != nil {
		return err
	}
	if err := o.GCPCloudStorage.validate(); err != nil {
		return err
	}
	if err := o.AzureBlobStorage.validate(); err != nil {
		return err
	}
	if err := o.MinIOStorage.validate(); err != nil {
		return err
	}
	return o.FileSystemStorage.validate()
}

func (o *ObjectStorage) credentials() []*SecretRef {
	var refs []*SecretRef
	if o.AmazonS3 != nil && o.AmazonS3.Credentials != nil {
		refs = append(refs, o.AmazonS3.Credentials)
	}
	if o.GCPCloudStorage != nil && o.GCPCloudStorage.Credentials != nil {
		refs = append(refs, o.GCPCloudStorage.Credentials)
	}
	if o.AzureBlobStorage != nil && o.AzureBlobStorage.Credentials != nil {
		refs = append(refs, o.AzureBlobStorage.Credentials)
	}
	if o.MinIOStorage != nil && o.MinIOStorage.Credentials != nil {
		refs = append(refs, o.MinIOStorage.Credentials)
	}
	return refs
}

// AmazonS3 defines the configuration for an Amazon S3-compatible object storage.
type AmazonS3 struct {
	Bucket      string     `json:"bucket"`
	Prefix      string     `json:"prefix,omitempty"`
	Region      string     `json:"region"`
	Credentials *SecretRef `json:"credentials,omitempty"` // If nil, use the default credentials chain.
	URL         string     `json:"url,omitempty"`         // custom endpoint, e.g. for S3-compatible stores

	_ struct{} `additionalProperties:"false"`
}

// GCPCloudStorage defines the configuration for a Google Cloud Storage bucket.
type GCPCloudStorage struct {
	Project     string     `json:"project"`
	Bucket      string     `json:"bucket"`
	Prefix      string     `json:"prefix,omitempty"`
	Credentials *SecretRef `json:"credentials,omitempty"`
	URL         string     `json:"url,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

// AzureBlobStorage defines the configuration for an Azure Blob Storage container.
type AzureBlobStorage struct {
	AccountURL  string     `json:"account_url"`
	Container   string     `json:"container"`
	Prefix      string     `json:"prefix,omitempty"`
	Credentials *SecretRef `json:"credentials,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

// MinIOStorage defines the configuration for a MinIO server. Credentials
// refer to an aws_auth secret.
type MinIOStorage struct {
	Endpoint    string     `json:"endpoint"` // host:port, without scheme
	Bucket      string     `json:"bucket"`
	Prefix      string     `json:"prefix,omitempty"`
	Region      string     `json:"region,omitempty"`
	Secure      bool       `json:"secure,omitempty"`
	Credentials *SecretRef `json:"credentials,omitempty"`

	_ struct{} `additionalProperties:"false"`
}

// FileSystemStorage publishes into a local directory.
type FileSystemStorage struct {
	Path string `json:"path"`

	_ struct{} `additionalProperties:"false"`
}

func (a *AmazonS3) validate() error {
	if a == nil {
		return nil
	}

	if a.Bucket == "" {
		return errors.New("amazon s3 bucket is required")
	}

	if a.Region == "" {
		return errors.New("amazon s3 region is required")
	}

	return nil
}

func (g *GCPCloudStorage) validate() error {
	if g == nil {
		return nil
	}

	if g.Project == "" {
		return errors.New("gcp cloud storage project is required")
	}

	if g.Bucket == "" {
		return errors.New("gcp cloud storage bucket is required")
	}

	return nil
}

func (a *AzureBlobStorage) validate() error {
	if a == nil {
		return nil
	}

	if a.AccountURL == "" {
		return errors.New("azure blob storage account URL is required")
	}

	if a.Container == "" {
		return errors.New("azure blob storage container is required")
	}

	return nil
}

func (m *MinIOStorage) validate() error {
	if m == nil {
		return nil
	}

	if m.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}

	if strings.Contains(m.Endpoint, "://") {
		return fmt.Errorf("minio endpoint must not include a scheme: %q", m.Endpoint)
	}

	if m.Bucket == "" {
		return errors.New("minio bucket is required")
	}

	return nil
}

func (f *FileSystemStorage) validate() error {
	if f == nil {
		return nil
	}

	if f.Path == "" {
		return errors.New("filesystem storage path is required")
	}

	return nil
}
