// Package snapshot provides S3-compatible backup upload and pre-signed URL generation.
// When S3 is not configured (empty bucket), the NoopUploader is used and all
// S3 operations are skipped, keeping backups local-only.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hyperengineering/standup/internal/config"
)

// ErrNotConfigured is returned when S3 snapshot storage is not configured.
var ErrNotConfigured = errors.New("snapshot storage not configured")

// CurrentName is the object name that always holds the latest backup.
const CurrentName = "current.db"

// datedPrefix groups the per-day archives under one listable prefix.
const datedPrefix = "daily/"

// Uploader uploads database backups and generates pre-signed download URLs.
type Uploader interface {
	// Upload uploads the backup file at filePath under name.
	Upload(ctx context.Context, name string, filePath string) error

	// PresignedURL returns a pre-signed URL for downloading the named backup.
	// Returns ErrNotConfigured when S3 is not configured.
	PresignedURL(ctx context.Context, name string) (url string, expiry time.Time, err error)

	// Prune deletes dated archives beyond the retention window and reports
	// how many were removed. The current backup is never pruned.
	Prune(ctx context.Context) (removed int, err error)
}

// s3Client defines the minimal minio.Client operations used by S3Uploader.
type s3Client interface {
	FPutObject(ctx context.Context, bucket, objectName, filePath string, opts interface{}) error
	PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error)
	ListObjectKeys(ctx context.Context, bucket, prefix string) ([]string, error)
	RemoveObject(ctx context.Context, bucket, objectName string) error
}

// minioClientWrapper adapts *minio.Client to s3Client.
type minioClientWrapper struct {
	client *minio.Client
}

func (w *minioClientWrapper) FPutObject(ctx context.Context, bucket, objectName, filePath string, opts interface{}) error {
	putOpts := minio.PutObjectOptions{
		ContentType: "application/vnd.sqlite3",
	}
	_, err := w.client.FPutObject(ctx, bucket, objectName, filePath, putOpts)
	return err
}

func (w *minioClientWrapper) PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error) {
	return w.client.PresignedGetObject(ctx, bucket, objectName, expiry, nil)
}

func (w *minioClientWrapper) ListObjectKeys(ctx context.Context, bucket, prefix string) ([]string, error) {
	// Cancelling stops the listing goroutine if we return early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var keys []string
	for obj := range w.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

func (w *minioClientWrapper) RemoveObject(ctx context.Context, bucket, objectName string) error {
	return w.client.RemoveObject(ctx, bucket, objectName, minio.RemoveObjectOptions{})
}

// S3Uploader uploads backups to S3-compatible storage.
type S3Uploader struct {
	client    s3Client
	bucket    string
	urlExpiry time.Duration
	retain    int
}

// Upload uploads the backup file at filePath under name.
func (u *S3Uploader) Upload(ctx context.Context, name string, filePath string) error {
	key := objectKey(name)
	if err := u.client.FPutObject(ctx, u.bucket, key, filePath, nil); err != nil {
		return fmt.Errorf("upload snapshot to S3: %w", err)
	}
	return nil
}

// PresignedURL returns a pre-signed GET URL for the named backup.
func (u *S3Uploader) PresignedURL(ctx context.Context, name string) (string, time.Time, error) {
	key := objectKey(name)
	presigned, err := u.client.PresignedGetObject(ctx, u.bucket, key, u.urlExpiry)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate pre-signed URL: %w", err)
	}
	expiry := time.Now().Add(u.urlExpiry)
	return presigned.String(), expiry, nil
}

// Prune keeps the newest retain dated archives. A retain of zero keeps all.
func (u *S3Uploader) Prune(ctx context.Context) (int, error) {
	if u.retain <= 0 {
		return 0, nil
	}
	keys, err := u.client.ListObjectKeys(ctx, u.bucket, objectKey(datedPrefix))
	if err != nil {
		return 0, fmt.Errorf("list snapshot archives: %w", err)
	}
	if len(keys) <= u.retain {
		return 0, nil
	}

	// daily/YYYY-MM-DD.db sorts chronologically.
	sort.Strings(keys)
	removed := 0
	for _, key := range keys[:len(keys)-u.retain] {
		if err := u.client.RemoveObject(ctx, u.bucket, key); err != nil {
			return removed, fmt.Errorf("remove snapshot archive %s: %w", key, err)
		}
		removed++
	}
	return removed, nil
}

// NoopUploader is used when S3 storage is not configured.
type NoopUploader struct{}

// Upload is a no-op when S3 is not configured.
func (u *NoopUploader) Upload(ctx context.Context, name string, filePath string) error {
	return nil
}

// PresignedURL returns ErrNotConfigured.
func (u *NoopUploader) PresignedURL(ctx context.Context, name string) (string, time.Time, error) {
	return "", time.Time{}, ErrNotConfigured
}

// Prune is a no-op when S3 is not configured.
func (u *NoopUploader) Prune(ctx context.Context) (int, error) {
	return 0, nil
}

// NewUploader creates the appropriate Uploader based on configuration.
// Returns NoopUploader when bucket is empty, S3Uploader otherwise.
func NewUploader(cfg config.SnapshotStorageConfig) (Uploader, error) {
	if cfg.Bucket == "" {
		return &NoopUploader{}, nil
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

	return &S3Uploader{
		client:    &minioClientWrapper{client: client},
		bucket:    cfg.Bucket,
		urlExpiry: time.Duration(cfg.URLExpiry),
		retain:    cfg.RetainDays,
	}, nil
}

// stripScheme removes an http:// or https:// prefix from endpoint, which
// minio.New rejects, and lets the scheme decide useSSL.
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

// objectKey returns the S3 object key for a named backup.
// Convention: standup/snapshot/{name}
func objectKey(name string) string {
	return "standup/snapshot/" + name
}

// DatedName returns the archive name for a backup taken at t.
func DatedName(t time.Time) string {
	return datedPrefix + t.UTC().Format("2006-01-02") + ".db"
}
