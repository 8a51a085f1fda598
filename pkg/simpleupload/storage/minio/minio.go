// Package minio stores uploads in a MinIO server using the native MinIO client.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tendant/simple-upload/pkg/simpleupload"
)

// Config options for the MinIO backend
type Config struct {
	Endpoint        string // host:port, without scheme
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	UseSSL          bool

	CreateBucketIfNotExist bool
}

// Backend is a MinIO implementation of the simpleupload.BlobStore interface
type Backend struct {
	client *minio.Client
	bucket string
}

// New creates a new MinIO storage backend
func New(config Config) (*Backend, error) {
	if config.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	b := &Backend{client: client, bucket: config.Bucket}

	if config.CreateBucketIfNotExist {
		ctx := context.Background()
		exists, err := client.BucketExists(ctx, config.Bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to check bucket: %w", err)
		}
		if !exists {
			err := client.MakeBucket(ctx, config.Bucket, minio.MakeBucketOptions{Region: config.Region})
			if err != nil && !isBucketOwned(err) {
				return nil, fmt.Errorf("failed to create bucket: %w", err)
			}
		}
	}

	return b, nil
}

func objectName(key string) string {
	return strings.TrimLeft(key, "/")
}

// Put uploads content to MinIO. The size is unknown up front so the client
// streams it as a multipart upload.
func (b *Backend) Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	info, err := b.client.PutObject(ctx, b.bucket, objectName(key), r, -1, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upload to minio: %w", err)
	}
	return info.Size, nil
}

// Get downloads content from MinIO
func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, *simpleupload.ObjectMeta, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, b.mapError(err, "failed to download from minio")
	}

	// GetObject is lazy; Stat surfaces a missing object
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, nil, b.mapError(err, "failed to stat object")
	}

	meta := &simpleupload.ObjectMeta{
		Key:         key,
		Size:        info.Size,
		ContentType: info.ContentType,
		UpdatedAt:   info.LastModified,
		ETag:        info.ETag,
	}
	return obj, meta, nil
}

// Delete deletes content from MinIO
func (b *Backend) Delete(ctx context.Context, key string) error {
	name := objectName(key)
	if _, err := b.client.StatObject(ctx, b.bucket, name, minio.StatObjectOptions{}); err != nil {
		return b.mapError(err, "failed to stat object")
	}
	if err := b.client.RemoveObject(ctx, b.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete from minio: %w", err)
	}
	return nil
}

func (b *Backend) mapError(err error, msg string) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return simpleupload.ErrObjectNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func isBucketOwned(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists"
}
