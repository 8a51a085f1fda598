package imagekit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-upload/pkg/simpleupload"
)

var _ simpleupload.Provider = (*Provider)(nil)

var testAuth = simpleupload.Authorization{
	Token:     "token-1",
	Expire:    1700000000,
	Signature: "af56da3de455f40078e84228bbf69f59735034c6",
	PublicKey: "public_test_key",
}

func newRequest(data string) simpleupload.UploadRequest {
	return simpleupload.UploadRequest{
		File:          simpleupload.FileFromBytes("photo.png", []byte(data)),
		Authorization: testAuth,
	}
}

func TestUpload_SendsSignedMultipartForm(t *testing.T) {
	var fields map[string]string
	var fileBody, fileName, fileType string
	var contentLength int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentLength = r.ContentLength
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		f, h, err := r.FormFile(FieldFile)
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		fileBody, fileName, fileType = string(data), h.Filename, h.Header.Get("Content-Type")

		json.NewEncoder(w).Encode(simpleupload.UploadResult{
			FileID:   "abc",
			Name:     "photo_x.png",
			FilePath: "/avatars/photo_x.png",
			URL:      "https://cdn.example.com/avatars/photo_x.png",
			Size:     int64(len(data)),
		})
	}))
	defer server.Close()

	var mu sync.Mutex
	var loaded []int64
	req := newRequest("png-bytes")
	req.Folder = "/avatars"
	req.OnProgress = func(l, total int64) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, int64(9), total)
		loaded = append(loaded, l)
	}

	result, err := New(Config{UploadURL: server.URL}).Upload(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "/avatars/photo_x.png", result.FilePath)
	assert.Equal(t, "png-bytes", fileBody)
	assert.Equal(t, "photo.png", fileName)
	assert.Equal(t, "image/png", fileType)
	assert.Greater(t, contentLength, int64(9))
	assert.Equal(t, map[string]string{
		FieldFileName:          "photo.png",
		FieldToken:             testAuth.Token,
		FieldExpire:            "1700000000",
		FieldSignature:         testAuth.Signature,
		FieldPublicKey:         testAuth.PublicKey,
		FieldUseUniqueFileName: "true",
		FieldFolder:            "/avatars",
	}, fields)

	require.NotEmpty(t, loaded)
	assert.Equal(t, int64(9), loaded[len(loaded)-1])
}

func TestUpload_ExactFileName(t *testing.T) {
	var unique string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		unique = r.FormValue(FieldUseUniqueFileName)
		w.Write([]byte(`{"fileId":"a","filePath":"/photo.png"}`))
	}))
	defer server.Close()

	_, err := New(Config{UploadURL: server.URL, ExactFileName: true}).Upload(context.Background(), newRequest("x"))
	require.NoError(t, err)
	assert.Equal(t, "false", unique)
}

func TestUpload_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    simpleupload.ErrorKind
		message string
	}{
		{"bad request", http.StatusBadRequest, `{"message":"Your request contains invalid expire parameter."}`, simpleupload.KindInvalidRequest, "Your request contains invalid expire parameter."},
		{"forbidden nested", http.StatusForbidden, `{"error":{"code":"token_reused","message":"already used"}}`, simpleupload.KindInvalidRequest, "already used"},
		{"server error", http.StatusBadGateway, `upstream down`, simpleupload.KindServerFailure, "upstream down"},
		{"redirect", http.StatusNotModified, ``, simpleupload.KindUnclassified, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.Copy(io.Discard, r.Body)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := New(Config{UploadURL: server.URL}).Upload(context.Background(), newRequest("x"))
			require.Error(t, err)

			var ue *simpleupload.UploadError
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, tt.kind, ue.Kind)
			assert.Equal(t, tt.status, ue.StatusCode)
			assert.Equal(t, tt.message, ue.Body)
		})
	}
}

func TestUpload_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	}))
	defer server.Close()

	_, err := New(Config{UploadURL: server.URL}).Upload(context.Background(), newRequest("x"))
	assert.Equal(t, simpleupload.KindUnclassified, simpleupload.KindOf(err))
}

func TestUpload_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	_, err := New(Config{UploadURL: server.URL}).Upload(context.Background(), newRequest("x"))
	assert.Equal(t, simpleupload.KindNetworkFailure, simpleupload.KindOf(err))
}

func TestUpload_Cancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	req := newRequest(strings.Repeat("x", 1024))
	req.OnProgress = func(loaded, total int64) {
		if loaded == total {
			cancel()
		}
	}

	_, err := New(Config{UploadURL: server.URL}).Upload(ctx, req)
	assert.Equal(t, simpleupload.KindAborted, simpleupload.KindOf(err))
}

func TestUpload_InvalidRequest(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()
	p := New(Config{UploadURL: server.URL})

	_, err := p.Upload(context.Background(), simpleupload.UploadRequest{Authorization: testAuth})
	assert.Equal(t, simpleupload.KindInvalidRequest, simpleupload.KindOf(err))

	req := newRequest("x")
	req.Authorization.Signature = ""
	_, err = p.Upload(context.Background(), req)
	assert.Equal(t, simpleupload.KindInvalidRequest, simpleupload.KindOf(err))
	assert.ErrorIs(t, err, simpleupload.ErrIncompleteAuthorization)

	_, err = New(Config{UploadURL: "://bad"}).Upload(context.Background(), newRequest("x"))
	assert.Equal(t, simpleupload.KindInvalidRequest, simpleupload.KindOf(err))

	assert.Zero(t, calls)
}

func TestEscapeQuotes(t *testing.T) {
	assert.Equal(t, `my \"photo\".png`, escapeQuotes(`my "photo".png`))
}
