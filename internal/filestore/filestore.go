// Package filestore stores attached onboarding documents and returns the URL
// recorded in a document row's file_url. When no bucket is configured,
// documents are copied into a local directory and addressed by file:// URL.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hyperengineering/onboard/internal/config"
)

// ErrEmptyFile is returned when asked to store a zero-length file.
var ErrEmptyFile = errors.New("document file is empty")

// Store persists a document and returns a URL from which it can be fetched.
type Store interface {
	// Put stores the file at filePath under the given onboarding and returns
	// the document URL.
	Put(ctx context.Context, onboardingID, filePath string) (string, error)
}

// s3Client defines the minimal minio.Client operations used by S3Store.
type s3Client interface {
	FPutObject(ctx context.Context, bucket, objectName, filePath, contentType string) error
	PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error)
}

// minioClientWrapper adapts *minio.Client to s3Client.
type minioClientWrapper struct {
	client *minio.Client
}

func (w *minioClientWrapper) FPutObject(ctx context.Context, bucket, objectName, filePath, contentType string) error {
	_, err := w.client.FPutObject(ctx, bucket, objectName, filePath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (w *minioClientWrapper) PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error) {
	return w.client.PresignedGetObject(ctx, bucket, objectName, expiry, nil)
}

// S3Store uploads documents to S3-compatible storage and hands out
// pre-signed GET URLs.
type S3Store struct {
	client    s3Client
	bucket    string
	prefix    string
	urlExpiry time.Duration
}

// Put uploads the file and returns a pre-signed URL for it.
func (s *S3Store) Put(ctx context.Context, onboardingID, filePath string) (string, error) {
	if err := checkFile(filePath); err != nil {
		return "", err
	}

	key := objectKey(s.prefix, onboardingID, filePath)
	if err := s.client.FPutObject(ctx, s.bucket, key, filePath, contentType(filePath)); err != nil {
		return "", fmt.Errorf("upload document to S3: %w", err)
	}

	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.urlExpiry)
	if err != nil {
		return "", fmt.Errorf("generate pre-signed URL: %w", err)
	}
	return presigned.String(), nil
}

// LocalStore copies documents into a directory on disk.
type LocalStore struct {
	dir string
}

// NewLocalStore returns a LocalStore rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

// Put copies the file under dir and returns its file:// URL.
func (s *LocalStore) Put(ctx context.Context, onboardingID, filePath string) (string, error) {
	if err := checkFile(filePath); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dest := filepath.Join(s.dir, filepath.FromSlash(objectKey("", onboardingID, filePath)))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("create document directory: %w", err)
	}
	if err := copyFile(filePath, dest); err != nil {
		return "", fmt.Errorf("copy document: %w", err)
	}

	abs, err := filepath.Abs(dest)
	if err != nil {
		return "", fmt.Errorf("resolve document path: %w", err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func checkFile(filePath string) error {
	info, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("stat document: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("document %s is a directory", filePath)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFile, filePath)
	}
	return nil
}

// New creates the Store selected by cfg: LocalStore when Bucket is empty,
// S3Store otherwise.
func New(cfg config.FilesConfig) (Store, error) {
	if cfg.Bucket == "" {
		return NewLocalStore(cfg.LocalDir), nil
	}

	useSSL := true
	if cfg.UseSSL != nil {
		useSSL = *cfg.UseSSL
	}
	endpoint := stripScheme(cfg.Endpoint, &useSSL)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	return &S3Store{
		client:    &minioClientWrapper{client: client},
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		urlExpiry: time.Duration(cfg.URLExpiry),
	}, nil
}

// stripScheme removes an http:// or https:// prefix from endpoint, since
// minio expects a bare host. An explicit scheme decides useSSL.
func stripScheme(endpoint string, useSSL *bool) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		*useSSL = true
		return strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		*useSSL = false
		return strings.TrimPrefix(endpoint, "http://")
	}
	return endpoint
}

// objectKey returns the object key of a document.
// Convention: [{prefix}/]{onboarding_id}/{unix_nanos}-{basename}
func objectKey(prefix, onboardingID, filePath string) string {
	name := fmt.Sprintf("%d-%s", time.Now().UnixNano(), filepath.Base(filePath))
	if prefix == "" {
		return path.Join(onboardingID, name)
	}
	return path.Join(prefix, onboardingID, name)
}

func contentType(filePath string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filePath)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
