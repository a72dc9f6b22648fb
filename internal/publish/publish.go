// Package publish uploads build artifacts to object storage. A manifest
// naming every artifact is written after all of them, so its presence marks
// a complete publication.
package publish

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"mime"
	"path"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stianhazel/play.tailwindcss.com/internal/builder"
	"github.com/stianhazel/play.tailwindcss.com/internal/logging"
)

const ManifestName = "manifest.json"

type Manifest struct {
	BuildID   string          `json:"build_id"`
	Target    string          `json:"target,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Artifacts []ManifestEntry `json:"artifacts"`
}

type ManifestEntry struct {
	Path   string `json:"path"`
	Unit   string `json:"unit"`
	Size   int    `json:"size"`
	SHA256 string `json:"sha256"`
}

type Publisher struct {
	storage     Storage
	prefix      string
	concurrency int
	log         *logging.Logger
}

// NewPublisher publishes below prefix in storage, typically the build target.
func NewPublisher(storage Storage, prefix string) *Publisher {
	return &Publisher{storage: storage, prefix: prefix, concurrency: 8, log: logging.Discard()}
}

func (p *Publisher) WithLogger(log *logging.Logger) *Publisher {
	p.log = log
	return p
}

func (p *Publisher) WithConcurrency(n int) *Publisher {
	p.concurrency = n
	return p
}

func (p *Publisher) Publish(ctx context.Context, buildID string, artifacts []builder.Artifact) error {
	m := Manifest{
		BuildID:   buildID,
		Target:    p.prefix,
		CreatedAt: time.Now().UTC(),
		Artifacts: make([]ManifestEntry, len(artifacts)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, a := range artifacts {
		sum := sha256.Sum256(a.Contents)
		m.Artifacts[i] = ManifestEntry{Path: a.Path, Unit: a.Unit, Size: len(a.Contents), SHA256: hex.EncodeToString(sum[:])}

		g.Go(func() error {
			return p.storage.Upload(gctx, path.Join(p.prefix, a.Path), a.Contents, contentType(a.Path))
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	bs, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := p.storage.Upload(ctx, path.Join(p.prefix, ManifestName), bs, "application/json"); err != nil {
		return err
	}

	p.log.Debugf("published %d artifact(s) for build %s", len(artifacts), buildID)
	return nil
}

func contentType(p string) string {
	if t := mime.TypeByExtension(path.Ext(p)); t != "" {
		return t
	}
	return "application/octet-stream"
}
