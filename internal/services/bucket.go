package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/commutrace/tripsync-backend/internal/logger"
)

type BucketService interface {
	UploadFile(ctx context.Context, key string, file io.Reader) (int64, error)
	DeleteFile(ctx context.Context, key string) error
	// SignedURL returns a time-limited V4 GET url for the object. Exported
	// archives are never public; this is the only way clients reach them.
	SignedURL(key string, ttl time.Duration) (string, error)
	Enabled() bool
}

type bucketService struct {
	log           *logger.Logger
	storageClient *storage.Client
	bucketName    string
}

// NewBucketService builds the GCS-backed store. When GCS_BUCKET_NAME is not
// set it returns a disabled service: export requests then fail cleanly
// instead of at client construction.
func NewBucketService(log *logger.Logger) (BucketService, error) {
	serviceLog := log.With("service", "BucketService")
	bucket := os.Getenv("GCS_BUCKET_NAME")
	if bucket == "" {
		serviceLog.Warn("GCS_BUCKET_NAME not set, data export is disabled")
		return &bucketService{log: serviceLog}, nil
	}
	saPath := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON")
	ctx := context.Background()
	var stClient *storage.Client
	var err error
	if saPath != "" {
		stClient, err = storage.NewClient(ctx, option.WithCredentialsFile(saPath), option.WithScopes(storage.ScopeReadWrite))
	} else {
		stClient, err = storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	}
	if err != nil {
		return nil, fmt.Errorf("Failed to create storage client: %w", err)
	}
	return &bucketService{
		log:           serviceLog,
		storageClient: stClient,
		bucketName:    bucket,
	}, nil
}

func (bs *bucketService) Enabled() bool {
	return bs.storageClient != nil
}

func (bs *bucketService) UploadFile(ctx context.Context, key string, file io.Reader) (int64, error) {
	if !bs.Enabled() {
		return 0, fmt.Errorf("object storage is not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	w := bs.storageClient.Bucket(bs.bucketName).Object(key).NewWriter(ctx)
	n, err := io.Copy(w, file)
	if err != nil {
		_ = w.Close()
		return 0, fmt.Errorf("Failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("Failed to close GCS writer: %w", err)
	}
	return n, nil
}

func (bs *bucketService) DeleteFile(ctx context.Context, key string) error {
	if !bs.Enabled() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	o := bs.storageClient.Bucket(bs.bucketName).Object(key)
	if err := o.Delete(ctx); err != nil && err != storage.ErrObjectNotExist {
		return fmt.Errorf("Failed to delete GCS object %q: %w", key, err)
	}
	return nil
}

func (bs *bucketService) SignedURL(key string, ttl time.Duration) (string, error) {
	if !bs.Enabled() {
		return "", fmt.Errorf("object storage is not configured")
	}
	url, err := bs.storageClient.Bucket(bs.bucketName).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("Failed to sign url for %q: %w", key, err)
	}
	return url, nil
}
