// Package s3 pulls CSV datasets from an S3-compatible bucket into the local
// data directory before ingestion. Files already on disk are never
// re-downloaded or overwritten.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Prefix          string
}

type ObjectInfo struct {
	Key  string
	Size int64
}

type client interface {
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

type Summary struct {
	Downloaded int
	Skipped    int
}

type Syncer struct {
	client  client
	bucket  string
	prefix  string
	dataDir string
	logger  *slog.Logger
}

func New(cfg Config, dataDir string, logger *slog.Logger) (*Syncer, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	mc, err := newMinioClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Syncer{
		client:  mc,
		bucket:  strings.TrimSpace(cfg.Bucket),
		prefix:  cleanPrefix(cfg.Prefix),
		dataDir: dataDir,
		logger:  logger,
	}, nil
}

// NewWithClient wires a custom client. Used by tests.
func NewWithClient(bucket, prefix, dataDir string, logger *slog.Logger, c client) (*Syncer, error) {
	if c == nil {
		return nil, fmt.Errorf("client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	return &Syncer{
		client:  c,
		bucket:  strings.TrimSpace(bucket),
		prefix:  cleanPrefix(prefix),
		dataDir: dataDir,
		logger:  logger,
	}, nil
}

// Sync downloads every CSV object under the configured prefix that is not
// already present locally. A single failed object aborts the sync; partial
// downloads never land under their final name.
func (s *Syncer) Sync(ctx context.Context) (Summary, error) {
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("create data directory %q: %w", s.dataDir, err)
	}

	objects, err := s.client.List(ctx, s.bucket, s.prefix)
	if err != nil {
		return Summary{}, fmt.Errorf("list bucket %q: %w", s.bucket, err)
	}

	summary := Summary{}
	for _, object := range objects {
		if !strings.EqualFold(path.Ext(object.Key), ".csv") {
			continue
		}
		fileName := path.Base(object.Key)
		if fileName == "." || fileName == "/" {
			continue
		}
		localPath := filepath.Join(s.dataDir, fileName)
		if _, err := os.Stat(localPath); err == nil {
			summary.Skipped++
			continue
		}

		if err := s.download(ctx, object.Key, localPath); err != nil {
			return summary, fmt.Errorf("download object %q: %w", object.Key, err)
		}
		if s.logger != nil {
			s.logger.Info("downloaded dataset file",
				slog.String("key", object.Key),
				slog.String("file", fileName),
				slog.Int64("bytes", object.Size),
			)
		}
		summary.Downloaded++
	}
	return summary, nil
}

func (s *Syncer) download(ctx context.Context, key, localPath string) error {
	reader, err := s.client.Get(ctx, s.bucket, key)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	tmp, err := os.CreateTemp(s.dataDir, ".sync-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, reader); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, localPath); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("move temp file: %w", err)
	}
	return nil
}

func cleanPrefix(prefix string) string {
	prefix = strings.TrimSpace(strings.TrimPrefix(prefix, "/"))
	if prefix == "" {
		return ""
	}
	prefix = path.Clean(prefix)
	if prefix == "." {
		return ""
	}
	return prefix
}

func newMinioClient(cfg Config) (*minioClient, error) {
	endpoint, secure, err := parseEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	clientImpl, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &minioClient{client: clientImpl}, nil
}

func parseEndpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("endpoint is required")
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		parsed, err := url.Parse(raw)
		if err != nil {
			return "", false, fmt.Errorf("parse endpoint URL: %w", err)
		}
		if parsed.Host == "" {
			return "", false, fmt.Errorf("endpoint host is required")
		}
		if parsed.Scheme == "https" {
			return parsed.Host, true, nil
		}
		return parsed.Host, useSSL, nil
	}
	return raw, useSSL, nil
}

type minioClient struct {
	client *minio.Client
}

func (m *minioClient) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	listPrefix := prefix
	if listPrefix != "" {
		listPrefix += "/"
	}
	objects := make([]ObjectInfo, 0)
	for object := range m.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: listPrefix, Recursive: true}) {
		if object.Err != nil {
			return nil, object.Err
		}
		objects = append(objects, ObjectInfo{Key: object.Key, Size: object.Size})
	}
	return objects, nil
}

func (m *minioClient) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		var response minio.ErrorResponse
		if errors.As(err, &response) && (response.Code == "NoSuchKey" || response.Code == "NotFound") {
			return nil, fmt.Errorf("object %q not found", key)
		}
		return nil, err
	}
	return obj, nil
}
