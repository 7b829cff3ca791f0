// Package publish uploads report artifacts to an S3-compatible bucket.
package publish

import (
	"context"
	"net"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/carbonwise/internal/errors"
	"codeberg.org/mutker/carbonwise/internal/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// objectClient is the subset of the MinIO client used for publishing.
type objectClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Publisher uploads files under the configured prefix.
type Publisher struct {
	client objectClient
	cfg    Config
}

var contentTypes = map[string]string{
	".md":   "text/markdown; charset=utf-8",
	".txt":  "text/plain; charset=utf-8",
	".pdf":  "application/pdf",
	".prom": "text/plain; version=0.0.4",
}

func NewMinIOClient(cfg Config) (*minio.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	}

	client, err := minio.New(cfg.Endpoint, opts)
	if err != nil {
		return nil, errors.New().Wrap(errors.ErrPublish, err)
	}

	return client, nil
}

// New returns a Publisher backed by a MinIO client.
func New(cfg Config) (*Publisher, error) {
	client, err := NewMinIOClient(cfg)
	if err != nil {
		return nil, err
	}

	return &Publisher{client: client, cfg: cfg}, nil
}

// ObjectKey returns the object name for a local file.
func (p *Publisher) ObjectKey(file string) string {
	prefix := strings.Trim(p.cfg.Prefix, "/")
	if prefix == "" {
		return filepath.Base(file)
	}

	return path.Join(prefix, filepath.Base(file))
}

// Publish ensures the bucket exists and uploads the files, returning their
// object keys in order. It stops at the first failed upload.
func (p *Publisher) Publish(ctx context.Context, files ...string) ([]string, error) {
	errFactory := errors.New()

	if err := ensureBucket(ctx, p.client, p.cfg.Bucket, p.cfg.Region); err != nil {
		return nil, errFactory.Wrap(errors.ErrPublish, err).WithData(p.cfg.Bucket)
	}

	keys := make([]string, 0, len(files))
	for _, file := range files {
		key := p.ObjectKey(file)
		opts := minio.PutObjectOptions{ContentType: contentTypes[strings.ToLower(filepath.Ext(file))]}

		info, err := p.client.FPutObject(ctx, p.cfg.Bucket, key, file, opts)
		if err != nil {
			return keys, errFactory.Wrap(errors.ErrPublish, err).WithData(file)
		}

		logger.Info().
			Str("bucket", p.cfg.Bucket).
			Str("key", key).
			Int64("size", info.Size).
			Msg("Artifact published")
		keys = append(keys, key)
	}

	return keys, nil
}

func ensureBucket(ctx context.Context, client objectClient, bucket string, region string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region})
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
