package s3

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-upload/pkg/simpleupload"
)

var _ simpleupload.BlobStore = (*Backend)(nil)

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestObjectKey(t *testing.T) {
	b := &Backend{prefix: "uploads"}
	assert.Equal(t, "uploads/avatars/a.png", b.objectKey("/avatars/a.png"))

	b = &Backend{}
	assert.Equal(t, "a.png", b.objectKey("/a.png"))
}

func TestHasErrorCode(t *testing.T) {
	err := &smithy.GenericAPIError{Code: "NoSuchKey", Message: "missing"}
	assert.True(t, hasErrorCode(err, "NotFound", "NoSuchKey"))
	assert.True(t, isNotFound(err))
	assert.False(t, hasErrorCode(err, "AccessDenied"))
	assert.False(t, isNotFound(errors.New("NoSuchKey")))
}

// Runs against a real S3-compatible endpoint when S3_TEST_ENDPOINT is set,
// e.g. a local MinIO: S3_TEST_ENDPOINT=http://localhost:9000
func TestBackend_Integration(t *testing.T) {
	endpoint := os.Getenv("S3_TEST_ENDPOINT")
	if endpoint == "" {
		t.Skip("S3_TEST_ENDPOINT not set")
	}

	b, err := New(Config{
		Region:                 "us-east-1",
		Bucket:                 "simple-upload-test",
		AccessKeyID:            os.Getenv("S3_TEST_ACCESS_KEY_ID"),
		SecretAccessKey:        os.Getenv("S3_TEST_SECRET_ACCESS_KEY"),
		Endpoint:               endpoint,
		UsePathStyle:           true,
		CreateBucketIfNotExist: true,
	})
	require.NoError(t, err)

	ctx := context.Background()
	key := "/it/" + uuid.NewString() + ".txt"

	n, err := b.Put(ctx, key, strings.NewReader("hello"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	rc, meta, err := b.Get(ctx, key)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, "text/plain", meta.ContentType)

	require.NoError(t, b.Delete(ctx, key))
	_, _, err = b.Get(ctx, key)
	assert.ErrorIs(t, err, simpleupload.ErrObjectNotFound)
}
