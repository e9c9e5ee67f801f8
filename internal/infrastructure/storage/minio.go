package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/johnquangdev/meeting-colleague/pkg/config"
)

// MinIOClient wraps MinIO operations used for receipts and recordings
type MinIOClient struct {
	client *minio.Client
	bucket string
}

// NewMinIOClient creates a new MinIO client and makes sure the bucket exists
func NewMinIOClient(ctx context.Context, cfg *config.StorageConfig) (*MinIOClient, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	client := &MinIOClient{
		client: minioClient,
		bucket: cfg.BucketName,
	}
	if err := client.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize bucket: %w", err)
	}
	return client, nil
}

// ensureBucket creates the bucket if it is missing. Receipts are private, so no public policy is set.
func (m *MinIOClient) ensureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// PutObject uploads a small in-memory object
func (m *MinIOClient) PutObject(ctx context.Context, objectName string, data []byte, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", objectName, err)
	}
	return nil
}

// RemovePrefix deletes every object under prefix and returns how many were removed
func (m *MinIOClient) RemovePrefix(ctx context.Context, prefix string) (int, error) {
	objectCh := make(chan minio.ObjectInfo)

	go func() {
		defer close(objectCh)
		for object := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
			if object.Err != nil {
				return
			}
			select {
			case objectCh <- object:
			case <-ctx.Done():
				return
			}
		}
	}()

	removed := 0
	for res := range m.client.RemoveObjectsWithResult(ctx, m.bucket, objectCh, minio.RemoveObjectsOptions{}) {
		if res.Err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", res.ObjectName, res.Err)
		}
		removed++
	}
	return removed, nil
}
