package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tendant/simple-upload/pkg/simpleupload"
)

type object struct {
	data        []byte
	contentType string
	updatedAt   time.Time
	etag        string
}

// Backend is an in-memory implementation of the simpleupload.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects: make(map[string]object),
	}
}

// Put stores content in memory
func (b *Backend) Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read content: %w", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	sum := md5.Sum(data)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[key] = object{
		data:        data,
		contentType: contentType,
		updatedAt:   time.Now().UTC(),
		etag:        hex.EncodeToString(sum[:]),
	}
	return int64(len(data)), nil
}

// Get returns the content stored under key
func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, *simpleupload.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	if !exists {
		return nil, nil, simpleupload.ErrObjectNotFound
	}

	meta := &simpleupload.ObjectMeta{
		Key:         key,
		Size:        int64(len(obj.data)),
		ContentType: obj.contentType,
		UpdatedAt:   obj.updatedAt,
		ETag:        obj.etag,
	}
	return io.NopCloser(bytes.NewReader(obj.data)), meta, nil
}

// Delete deletes content
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[key]; !exists {
		return simpleupload.ErrObjectNotFound
	}
	delete(b.objects, key)
	return nil
}

// Len returns the number of stored objects
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}
