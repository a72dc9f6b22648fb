package publish

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"

	"github.com/stianhazel/play.tailwindcss.com/internal/builder"
	"github.com/stianhazel/play.tailwindcss.com/internal/config"
)

type recordingStorage struct {
	mu   sync.Mutex
	keys []string
	fail string
}

func (r *recordingStorage) Upload(_ context.Context, key string, _ []byte, _ string) error {
	if key == r.fail {
		return errors.New("upload failed")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	return nil
}

func (*recordingStorage) Download(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

var artifacts = []builder.Artifact{
	{Unit: "client", Path: "index.js", Contents: []byte("console.log(1)")},
	{Unit: "html-worker", Path: "static/chunks/html.js", Contents: []byte("self.postMessage(1)")},
	{Unit: "client", Path: "index.css", Contents: []byte("body{}")},
}

func TestPublishManifestLast(t *testing.T) {
	storage := &recordingStorage{}
	if err := NewPublisher(storage, "client").WithConcurrency(2).Publish(context.Background(), "b1", artifacts); err != nil {
		t.Fatal(err)
	}

	if len(storage.keys) != 4 {
		t.Fatalf("expected 4 uploads, got %v", storage.keys)
	}
	if last := storage.keys[len(storage.keys)-1]; last != "client/manifest.json" {
		t.Fatalf("expected manifest last, got %v", storage.keys)
	}
	exp := []string{"client/index.css", "client/index.js", "client/static/chunks/html.js"}
	got := slices.Sorted(slices.Values(storage.keys[:3]))
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Fatalf("unexpected keys (-want,+got):\n%s", diff)
	}
}

func TestPublishFailureSkipsManifest(t *testing.T) {
	storage := &recordingStorage{fail: "client/index.js"}
	if err := NewPublisher(storage, "client").Publish(context.Background(), "b1", artifacts); err == nil {
		t.Fatal("expected error")
	}
	if slices.Contains(storage.keys, "client/manifest.json") {
		t.Fatal("manifest must not be written when an artifact failed")
	}
}

func TestFileSystemStorage(t *testing.T) {
	root := t.TempDir()
	storage := NewFileSystemStorage(root)
	ctx := context.Background()

	if err := NewPublisher(storage, "server").Publish(ctx, "b2", artifacts); err != nil {
		t.Fatal(err)
	}

	bs, err := os.ReadFile(filepath.Join(root, "server", "static", "chunks", "html.js"))
	if err != nil {
		t.Fatal(err)
	}
	if string(bs) != "self.postMessage(1)" {
		t.Fatalf("unexpected contents %q", bs)
	}

	r, err := storage.Download(ctx, "server/manifest.json")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		t.Fatal(err)
	}
	exp := Manifest{
		BuildID: "b2",
		Target:  "server",
		Artifacts: []ManifestEntry{
			{Path: "index.js", Unit: "client", Size: 14},
			{Path: "static/chunks/html.js", Unit: "html-worker", Size: 19},
			{Path: "index.css", Unit: "client", Size: 6},
		},
	}
	if diff := cmp.Diff(exp, m, cmpopts.IgnoreFields(Manifest{}, "CreatedAt"), cmpopts.IgnoreFields(ManifestEntry{}, "SHA256")); diff != "" {
		t.Fatalf("unexpected manifest (-want,+got):\n%s", diff)
	}

	entries, err := os.ReadDir(filepath.Join(root, "server"))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".playbuild-") {
			t.Errorf("unexpected leftover file %s", e.Name())
		}
	}
}

func TestFileSystemStorageInvalidKey(t *testing.T) {
	storage := NewFileSystemStorage(t.TempDir())
	if err := storage.Upload(context.Background(), "/", nil, ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestS3(t *testing.T) {
	// Set mock AWS credentials to avoid IMDS errors.
	t.Setenv("AWS_ACCESS_KEY_ID", "mock-access-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "mock-secret-key")

	mock := s3mem.New()
	if err := mock.CreateBucket("test"); err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(gofakes3.New(mock).Server())
	defer ts.Close()

	ctx := context.Background()

	storage, err := New(ctx, config.ObjectStorage{
		AmazonS3: &config.AmazonS3{
			Bucket: "test",
			Prefix: "play",
			Region: "us-east-1",
			URL:    ts.URL,
		},
	})
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	if err := NewPublisher(storage, "client").Publish(ctx, "b3", artifacts); err != nil {
		t.Fatalf("expected no error while publishing: %v", err)
	}

	object, err := mock.GetObject("test", "play/client/static/chunks/html.js", nil)
	if err != nil {
		t.Fatalf("expected no error while getting object: %v", err)
	}
	contents, err := io.ReadAll(object.Contents)
	if err != nil {
		t.Fatal(err)
	}
	if string(contents) != "self.postMessage(1)" {
		t.Fatalf("unexpected object contents %q", contents)
	}

	reader, err := storage.Download(ctx, "client/manifest.json")
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	var m Manifest
	if err := json.NewDecoder(reader).Decode(&m); err != nil {
		t.Fatal(err)
	}
	if m.BuildID != "b3" || len(m.Artifacts) != 3 {
		t.Fatalf("unexpected manifest: %+v", m)
	}
}

func TestNewWithoutStorage(t *testing.T) {
	storage, err := New(context.Background(), config.ObjectStorage{})
	if err != nil || storage != nil {
		t.Fatalf("expected no storage, got %v, %v", storage, err)
	}
}

func TestNewMinIO(t *testing.T) {
	storage, err := New(context.Background(), config.ObjectStorage{
		MinIOStorage: &config.MinIOStorage{
			Endpoint: "localhost:9000",
			Bucket:   "play",
			Prefix:   "builds",
			Region:   "us-east-1",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	m, ok := storage.(*MinIO)
	if !ok {
		t.Fatalf("expected minio storage, got %T", storage)
	}
	if m.bucket != "play" || m.prefix != "builds" {
		t.Fatalf("unexpected bucket/prefix %q/%q", m.bucket, m.prefix)
	}
}
