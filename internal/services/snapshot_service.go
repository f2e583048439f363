package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dinemart/internal/models"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// SnapshotStore archives finalized invoice snapshots as JSON documents in
// object storage and hands out short-lived download links. Rendering the
// snapshot into a PDF or an email belongs to downstream consumers.
type SnapshotStore interface {
	Put(ctx context.Context, snapshot *models.InvoiceSnapshot) (string, error)
	PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
	EnsureBucket(ctx context.Context) error
}

type minioSnapshotStore struct {
	client *minio.Client
	bucket string
}

func NewMinioSnapshotStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (SnapshotStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}
	return &minioSnapshotStore{client: client, bucket: bucket}, nil
}

// Put writes the snapshot under invoices/<month>/<invoice_id>.json and returns
// the object name. Re-archiving the same invoice overwrites in place.
func (s *minioSnapshotStore) Put(ctx context.Context, snapshot *models.InvoiceSnapshot) (string, error) {
	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode invoice snapshot: %v", err)
	}

	objectName := fmt.Sprintf("invoices/%s/%s.json", snapshot.Month, snapshot.InvoiceID)
	_, err = s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive invoice snapshot: %v", err)
	}
	return objectName, nil
}

func (s *minioSnapshotStore) PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	url, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, expiry, nil)
	if err != nil {
		return "", err
	}
	return url.String(), nil
}

func (s *minioSnapshotStore) EnsureBucket(ctx context.Context) error {
	found, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !found {
		return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	}
	return nil
}
