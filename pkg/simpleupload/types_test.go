package simpleupload

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorization_Validate(t *testing.T) {
	full := Authorization{Token: "t", Expire: 1700000000, Signature: "s", PublicKey: "p"}
	assert.NoError(t, full.Validate())

	partial := Authorization{Token: "t"}
	err := partial.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIncompleteAuthorization)
	assert.Contains(t, err.Error(), "signature")
	assert.Contains(t, err.Error(), "publicKey")
	assert.NotContains(t, err.Error(), "token")
}

func TestFileFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.png")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o644))

	file, err := FileFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "photo.png", file.Name)
	assert.Equal(t, int64(9), file.Size)
	assert.Equal(t, "image/png", file.ContentType)

	for i := 0; i < 2; i++ {
		rc, err := file.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		assert.Equal(t, "png-bytes", string(data))
	}

	_, err = FileFromPath(dir)
	assert.Error(t, err)
	_, err = FileFromPath(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestFileFromBytes_UnknownExtension(t *testing.T) {
	file := FileFromBytes("blob.unknownext", []byte("x"))
	assert.Equal(t, "application/octet-stream", file.ContentType)
}

func TestUploadError(t *testing.T) {
	cause := errors.New("connection reset")
	err := error(&UploadError{Kind: KindServerFailure, Op: "upload", StatusCode: 502, Body: "bad gateway", Err: cause})

	assert.Equal(t, "upload server_failure: request failed with status 502: bad gateway: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindServerFailure, KindOf(err))
	assert.True(t, IsKind(err, KindServerFailure))
	assert.False(t, IsKind(err, KindNetworkFailure))
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, KindUnclassified, KindOf(errors.New("boom")))
	assert.Equal(t, KindUnclassified, KindOf(nil))
}

func TestAsUploadError(t *testing.T) {
	assert.Nil(t, AsUploadError("upload", nil))

	orig := NewError(KindNetworkFailure, "upload", errors.New("timeout"))
	wrapped := AsUploadError("other", errorsJoin(orig))
	assert.Same(t, orig, wrapped)

	plain := AsUploadError("upload", errors.New("boom"))
	assert.Equal(t, KindUnclassified, plain.Kind)
	assert.Equal(t, "upload", plain.Op)
}

func errorsJoin(err error) error {
	return errors.Join(errors.New("context"), err)
}

func TestState(t *testing.T) {
	for _, s := range []State{StateIdle, StateAwaitingAuthorization, StateUploading} {
		assert.False(t, s.IsTerminal(), s.String())
	}
	for _, s := range []State{StateSucceeded, StateFailed, StateAborted} {
		assert.True(t, s.IsTerminal(), s.String())
	}
	assert.Equal(t, StateAborted, Aborted().State)
	assert.Nil(t, Aborted().Err)
}
