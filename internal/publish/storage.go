package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
	"google.golang.org/api/option"

	"github.com/stianhazel/play.tailwindcss.com/internal/config"
)

// Storage is a flat key/value object store. Keys are slash-separated.
type Storage interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

// New returns the storage configured in cfg. With nothing configured, it
// returns nil.
func New(ctx context.Context, cfg config.ObjectStorage) (Storage, error) {
	switch {
	case cfg.AmazonS3 != nil:
		return NewAmazonS3(ctx, cfg.AmazonS3)
	case cfg.GCPCloudStorage != nil:
		return NewGCPCloudStorage(ctx, cfg.GCPCloudStorage)
	case cfg.AzureBlobStorage != nil:
		return NewAzureBlobStorage(ctx, cfg.AzureBlobStorage)
	case cfg.MinIOStorage != nil:
		return NewMinIO(ctx, cfg.MinIOStorage)
	case cfg.FileSystemStorage != nil:
		return NewFileSystemStorage(cfg.FileSystemStorage.Path), nil
	}
	return nil, nil
}

type AmazonS3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

func NewAmazonS3(ctx context.Context, cfg *config.AmazonS3) (*AmazonS3, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	if cfg.Credentials != nil {
		value, err := cfg.Credentials.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		creds, ok := value.(config.SecretAWS)
		if !ok {
			return nil, fmt.Errorf("secret %q is not an aws_auth secret", cfg.Credentials.Name)
		}
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws configuration: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.URL != "" {
			o.BaseEndpoint = aws.String(cfg.URL)
			o.UsePathStyle = true
		}
	})

	return &AmazonS3{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
	}, nil
}

func (s *AmazonS3) Upload(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(path.Join(s.prefix, key)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to s3: %w", key, err)
	}
	return nil
}

func (s *AmazonS3) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path.Join(s.prefix, key)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s from s3: %w", key, err)
	}
	return out.Body, nil
}

type GCPCloudStorage struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewGCPCloudStorage(ctx context.Context, cfg *config.GCPCloudStorage) (*GCPCloudStorage, error) {
	var opts []option.ClientOption
	if cfg.URL != "" {
		opts = append(opts, option.WithEndpoint(cfg.URL), option.WithoutAuthentication())
	}

	if cfg.Credentials != nil {
		value, err := cfg.Credentials.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		creds, ok := value.(config.SecretGCP)
		if !ok {
			return nil, fmt.Errorf("secret %q is not a gcp_auth secret", cfg.Credentials.Name)
		}
		if creds.Credentials != "" {
			opts = append(opts, option.WithCredentialsJSON([]byte(creds.Credentials)))
		} else {
			opts = append(opts, option.WithAPIKey(creds.APIKey))
		}
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}
	return &GCPCloudStorage{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *GCPCloudStorage) Upload(ctx context.Context, key string, body []byte, contentType string) error {
	w := s.client.Bucket(s.bucket).Object(path.Join(s.prefix, key)).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to upload %s to gcs: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to upload %s to gcs: %w", key, err)
	}
	return nil
}

func (s *GCPCloudStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(path.Join(s.prefix, key)).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s from gcs: %w", key, err)
	}
	return r, nil
}

type AzureBlobStorage struct {
	client    *azblob.Client
	container string
	prefix    string
}

func NewAzureBlobStorage(ctx context.Context, cfg *config.AzureBlobStorage) (*AzureBlobStorage, error) {
	var (
		client *azblob.Client
		err    error
	)

	if cfg.Credentials != nil {
		value, rerr := cfg.Credentials.Resolve(ctx)
		if rerr != nil {
			return nil, rerr
		}
		creds, ok := value.(config.SecretAzure)
		if !ok {
			return nil, fmt.Errorf("secret %q is not an azure_auth secret", cfg.Credentials.Name)
		}
		cred, cerr := azblob.NewSharedKeyCredential(creds.AccountName, creds.AccountKey)
		if cerr != nil {
			return nil, cerr
		}
		client, err = azblob.NewClientWithSharedKeyCredential(cfg.AccountURL, cred, nil)
	} else {
		cred, cerr := azidentity.NewDefaultAzureCredential(nil)
		if cerr != nil {
			return nil, fmt.Errorf("failed to obtain azure credentials: %w", cerr)
		}
		client, err = azblob.NewClient(cfg.AccountURL, cred, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create azure blob client: %w", err)
	}

	return &AzureBlobStorage{client: client, container: cfg.Container, prefix: cfg.Prefix}, nil
}

func (s *AzureBlobStorage) Upload(ctx context.Context, key string, body []byte, _ string) error {
	if _, err := s.client.UploadBuffer(ctx, s.container, path.Join(s.prefix, key), body, nil); err != nil {
		return fmt.Errorf("failed to upload %s to azure: %w", key, err)
	}
	return nil
}

func (s *AzureBlobStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, path.Join(s.prefix, key), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s from azure: %w", key, err)
	}
	return resp.Body, nil
}

// FileSystemStorage writes objects below a root directory. Every object is
// written to a temporary file first and renamed into place.
type MinIO struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewMinIO(ctx context.Context, cfg *config.MinIOStorage) (*MinIO, error) {
	opts := &minio.Options{
		Secure: cfg.Secure,
		Region: cfg.Region,
	}
	if cfg.Credentials != nil {
		value, err := cfg.Credentials.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		creds, ok := value.(config.SecretAWS)
		if !ok {
			return nil, fmt.Errorf("secret %q is not an aws_auth secret", cfg.Credentials.Name)
		}
		opts.Creds = miniocreds.NewStaticV4(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)
	} else {
		opts.Creds = miniocreds.NewEnvAWS()
	}

	client, err := minio.New(cfg.Endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &MinIO{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *MinIO) Upload(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, path.Join(s.prefix, key), bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to upload %s to minio: %w", key, err)
	}
	return nil
}

func (s *MinIO) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, path.Join(s.prefix, key), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s from minio: %w", key, err)
	}
	// GetObject is lazy; Stat surfaces a missing object now.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("failed to download %s from minio: %w", key, err)
	}
	return obj, nil
}

type FileSystemStorage struct {
	root string
}

func NewFileSystemStorage(root string) *FileSystemStorage {
	return &FileSystemStorage{root: root}
}

func (s *FileSystemStorage) path(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func (s *FileSystemStorage) Upload(_ context.Context, key string, body []byte, _ string) error {
	dst, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	f, err := os.CreateTemp(filepath.Dir(dst), ".playbuild-*")
	if err != nil {
		return err
	}
	_, werr := f.Write(body)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(f.Name())
		return err
	}
	if err := os.Rename(f.Name(), dst); err != nil {
		_ = os.Remove(f.Name())
		return err
	}
	return nil
}

func (s *FileSystemStorage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}
