package file

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DefaultURLExpiry is how long presigned download links stay valid.
const DefaultURLExpiry = 24 * time.Hour

// Options configure the MinIO storage backend.
type Options struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	BucketName string
	UseSSL     bool
	// PublicURL, when set, is the base of public object links
	// (e.g. a CDN or a public bucket). Otherwise links are presigned.
	PublicURL string
	URLExpiry time.Duration
}

// Storage provides an S3-compatible storage backend using MinIO.
// Source images, generated versions and finished exports live in one bucket
// under different prefixes.
type Storage struct {
	client     *minio.Client
	bucketName string
	publicURL  string
	urlExpiry  time.Duration
}

// NewStorage creates a new Storage instance connected to the specified MinIO server.
// If the bucket does not exist, it will be created automatically.
func NewStorage(ctx context.Context, opts Options) (*Storage, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, opts.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	expiry := opts.URLExpiry
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}

	return &Storage{
		client:     client,
		bucketName: opts.BucketName,
		publicURL:  strings.TrimRight(opts.PublicURL, "/"),
		urlExpiry:  expiry,
	}, nil
}

// Save uploads the provided reader to the specified subdirectory in the bucket.
// Returns the object path within the bucket.
func (s *Storage) Save(ctx context.Context, subdir, filename, contentType string, src io.Reader, size int64) (string, error) {
	objectName := path.Join(subdir, filename)

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, s.bucketName, objectName, src, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return objectName, nil
}

// Load retrieves the object at path and returns a reader.
func (s *Storage) Load(ctx context.Context, path string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to load file: %w", err)
	}

	return obj, nil
}

// Delete removes the specified object from the bucket.
func (s *Storage) Delete(ctx context.Context, path string) error {
	if err := s.client.RemoveObject(ctx, s.bucketName, path, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// URL returns a download link for the object at path.
func (s *Storage) URL(ctx context.Context, objectName string) (string, error) {
	if s.publicURL != "" {
		return s.publicURL + "/" + s.bucketName + "/" + objectName, nil
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucketName, objectName, s.urlExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign url: %w", err)
	}

	return u.String(), nil
}

// Upload stores data under objectName and returns its download link.
func (s *Storage) Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	dir, name := path.Split(objectName)

	stored, err := s.Save(ctx, dir, name, contentType, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	return s.URL(ctx, stored)
}

// Deliver stores a finished export under the exports prefix and returns its link.
func (s *Storage) Deliver(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	return s.Upload(ctx, path.Join("exports", filename), data, contentType)
}
