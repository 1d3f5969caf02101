package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tolet/service/internal/upload"
)

// MinioStorage implements Storage using a MinIO (or any S3-compatible) backend.
// Objects live under "uploads/" in the bucket and are referenced by public URL.
type MinioStorage struct {
	client     *minio.Client
	bucket     string
	publicBase string
	transform  *Transform
}

// MinioOptions configures NewMinioStorage.
type MinioOptions struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	PublicBase string // browser-accessible base URL, e.g. "http://localhost:9000/tolet"
	UseSSL     bool
	Transform  *Transform // nil uploads files unchanged
}

// NewMinioStorage creates a MinIO client, ensures the bucket exists with a public-read
// policy, and returns a ready-to-use MinioStorage.
func NewMinioStorage(ctx context.Context, opts MinioOptions) (*MinioStorage, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", opts.Bucket, err)
		}
		slog.Info("storage: created bucket", "bucket", opts.Bucket)
	}

	if err := client.SetBucketPolicy(ctx, opts.Bucket, publicReadPolicy(opts.Bucket)); err != nil {
		return nil, fmt.Errorf("set bucket policy: %w", err)
	}

	return newMinioStorage(client, opts), nil
}

func newMinioStorage(client *minio.Client, opts MinioOptions) *MinioStorage {
	t := opts.Transform
	if t != nil && (t.Width <= 0 || t.Height <= 0) {
		t = nil
	}
	return &MinioStorage{
		client:     client,
		bucket:     opts.Bucket,
		publicBase: strings.TrimRight(opts.PublicBase, "/"),
		transform:  t,
	}
}

// Save uploads the staged file (transformed to JPEG when configured), removes
// the staged copy and returns the object's public URL.
func (s *MinioStorage) Save(ctx context.Context, f upload.File) (string, error) {
	key, body, size, contentType, err := s.prepare(f)
	if err != nil {
		return "", err
	}

	if err := s.Upload(ctx, key, body, size, contentType); err != nil {
		return "", err
	}

	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("storage: staged file not removed", "path", f.Path, "error", err)
	}
	return s.PublicURL(key), nil
}

func (s *MinioStorage) prepare(f upload.File) (key string, body io.Reader, size int64, contentType string, err error) {
	key = path.Join(PublicPrefix, f.Filename)

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", nil, 0, "", fmt.Errorf("read staged file %s: %w", f.Filename, err)
	}

	if s.transform == nil {
		contentType = f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		return key, bytes.NewReader(data), int64(len(data)), contentType, nil
	}

	out, err := s.transform.Apply(bytes.NewReader(data))
	if err != nil {
		return "", nil, 0, "", err
	}
	key = strings.TrimSuffix(key, path.Ext(key)) + ".jpg"
	return key, bytes.NewReader(out), int64(len(out)), "image/jpeg", nil
}

// Upload streams reader to MinIO under key. size must be the exact byte count
// (pass -1 only if the size is genuinely unknown; MinIO will buffer it).
func (s *MinioStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}
	return nil
}

// Delete removes the object behind a public URL created by Save. URLs from
// other hosts and local paths are ignored.
func (s *MinioStorage) Delete(ctx context.Context, ref string) error {
	key, ok := s.KeyFromRef(ref)
	if !ok {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %q: %w", key, err)
	}
	return nil
}

// PublicURL returns the browser-accessible URL for the given key.
func (s *MinioStorage) PublicURL(key string) string {
	return s.publicBase + "/" + key
}

// KeyFromRef reverses PublicURL.
func (s *MinioStorage) KeyFromRef(ref string) (string, bool) {
	key, ok := strings.CutPrefix(ref, s.publicBase+"/")
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

// publicReadPolicy returns an S3 bucket policy JSON that allows anonymous GET on all objects.
func publicReadPolicy(bucket string) string {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Effect":    "Allow",
				"Principal": "*",
				"Action":    "s3:GetObject",
				"Resource":  fmt.Sprintf("arn:aws:s3:::%s/*", bucket),
			},
		},
	}
	b, _ := json.Marshal(policy)
	return string(b)
}
