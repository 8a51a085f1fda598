package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/tendant/simple-upload/pkg/simpleupload"
)

// Backend is a filesystem implementation of the simpleupload.BlobStore interface
type Backend struct {
	baseDir string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Base directory for storing files
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{baseDir: config.BaseDir}, nil
}

// resolve maps key to a path that cannot escape baseDir
func (b *Backend) resolve(key string) string {
	return filepath.Join(b.baseDir, filepath.FromSlash(path.Clean("/"+key)))
}

// Put writes content to the filesystem. The file is written to a temporary
// name first so readers never observe a partial upload.
func (b *Backend) Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error) {
	filePath := b.resolve(key)

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return 0, fmt.Errorf("failed to store file: %w", err)
	}

	return n, nil
}

// Get opens content from the filesystem
func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, *simpleupload.ObjectMeta, error) {
	filePath := b.resolve(key)

	file, err := os.Open(filePath)
	if os.IsNotExist(err) {
		return nil, nil, simpleupload.ErrObjectNotFound
	} else if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("failed to get file info: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, nil, simpleupload.ErrObjectNotFound
	}

	contentType, err := detectContentType(file)
	if err != nil {
		file.Close()
		return nil, nil, err
	}

	meta := &simpleupload.ObjectMeta{
		Key:         key,
		Size:        info.Size(),
		ContentType: contentType,
		UpdatedAt:   info.ModTime(),
	}
	return file, meta, nil
}

// detectContentType uses the file extension, falling back to sniffing the
// first 512 bytes. The file offset is reset afterwards.
func detectContentType(file *os.File) (string, error) {
	if ct := mime.TypeByExtension(filepath.Ext(file.Name())); ct != "" {
		return ct, nil
	}

	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind file: %w", err)
	}
	return http.DetectContentType(buffer[:n]), nil
}

// Delete deletes content from the filesystem
func (b *Backend) Delete(ctx context.Context, key string) error {
	filePath := b.resolve(key)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return simpleupload.ErrObjectNotFound
	}

	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	b.cleanupEmptyDirectories(filepath.Dir(filePath))
	return nil
}

// cleanupEmptyDirectories removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == filepath.Clean(b.baseDir) {
		return
	}

	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}

// ctxReader stops a copy once ctx is done
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
