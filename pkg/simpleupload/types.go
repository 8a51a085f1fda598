package simpleupload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"
)

// Authorization is a signed permission to perform one upload.
type Authorization struct {
	Token     string `json:"token"`
	Expire    int64  `json:"expire"`
	Signature string `json:"signature"`
	PublicKey string `json:"publicKey"`
}

// ErrIncompleteAuthorization indicates an authorization with missing fields.
var ErrIncompleteAuthorization = errors.New("incomplete upload authorization")

// Validate reports whether every field of the authorization is populated.
// A provider is certain to reject an incomplete authorization.
func (a Authorization) Validate() error {
	var missing []string
	if a.Token == "" {
		missing = append(missing, "token")
	}
	if a.Expire <= 0 {
		missing = append(missing, "expire")
	}
	if a.Signature == "" {
		missing = append(missing, "signature")
	}
	if a.PublicKey == "" {
		missing = append(missing, "publicKey")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %v", ErrIncompleteAuthorization, missing)
	}
	return nil
}

// ExpiresAt returns the expiry as a time.Time.
func (a Authorization) ExpiresAt() time.Time {
	return time.Unix(a.Expire, 0)
}

// File is a named binary blob selected for upload.
// Open may be called more than once; each call returns a fresh reader.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// FileFromPath stages a file from the local filesystem.
func FileFromPath(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	name := filepath.Base(path)
	return &File{
		Name:        name,
		Size:        info.Size(),
		ContentType: contentTypeFor(name),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// FileFromBytes stages an in-memory blob.
func FileFromBytes(name string, data []byte) *File {
	return &File{
		Name:        name,
		Size:        int64(len(data)),
		ContentType: contentTypeFor(name),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// ProgressFunc receives the number of bytes sent so far and the total size.
// total is zero when the size is unknown.
type ProgressFunc func(loaded, total int64)

// UploadRequest is everything a Provider needs for one upload.
// Cancellation travels separately as the context passed to Provider.Upload.
type UploadRequest struct {
	File          *File
	Authorization Authorization
	Folder        string
	OnProgress    ProgressFunc
}

// UploadResult describes an uploaded asset.
type UploadResult struct {
	FileID       string                 `json:"fileId"`
	Name         string                 `json:"name"`
	FilePath     string                 `json:"filePath"`
	URL          string                 `json:"url"`
	ThumbnailURL string                 `json:"thumbnailUrl,omitempty"`
	Size         int64                  `json:"size"`
	FileType     string                 `json:"fileType,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// ObjectMeta describes a blob held by a BlobStore.
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
}
