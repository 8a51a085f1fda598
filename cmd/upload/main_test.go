package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-upload/pkg/simpleupload/issuer"
	"github.com/tendant/simple-upload/pkg/simpleupload/provider/server"
	"github.com/tendant/simple-upload/pkg/simpleupload/signer"
	memorystorage "github.com/tendant/simple-upload/pkg/simpleupload/storage/memory"
	memorytokens "github.com/tendant/simple-upload/pkg/simpleupload/tokenstore/memory"
)

func newBackend(t *testing.T) (*httptest.Server, Config) {
	t.Helper()
	sgn := signer.New(signer.WithKeys("public_test_key", "private_test_key"))
	r := chi.NewRouter()
	issuer.NewHandlers(sgn, "imagekit").Mount(r)
	server.NewHandlers(sgn, memorystorage.New(), memorytokens.New(), server.WithSuffixFunc(func() string { return "s1" })).Mount(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	return ts, Config{
		APIEndpoint: ts.URL,
		Provider:    "imagekit",
		UploadURL:   ts.URL + server.UploadPath,
		Folder:      "/cli",
	}
}

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
	return p
}

func TestRun_UploadsPathArgument(t *testing.T) {
	_, cfg := newBackend(t)
	path := writeFile(t, "photo.png", "png-bytes")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), cfg, []string{path}, strings.NewReader(""), &stdout, &stderr, false, slog.Default())

	assert.Equal(t, 0, code, stderr.String())
	assert.Equal(t, "/cli/photo_s1.png\n", stdout.String())
	assert.Contains(t, stderr.String(), "100.0%")
}

func TestRun_PromptsWhenInteractive(t *testing.T) {
	_, cfg := newBackend(t)
	path := writeFile(t, "card.jpg", "jpeg")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), cfg, nil, strings.NewReader(path+"\n"), &stdout, &stderr, true, slog.Default())

	assert.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stderr.String(), "File to upload:")
	assert.Equal(t, "/cli/card_s1.jpg\n", stdout.String())
}

func TestRun_NoFile(t *testing.T) {
	_, cfg := newBackend(t)

	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitFailed, run(context.Background(), cfg, nil, strings.NewReader(""), &stdout, &stderr, false, slog.Default()))
	assert.Equal(t, exitFailed, run(context.Background(), cfg, nil, strings.NewReader("\n"), &stdout, &stderr, true, slog.Default()))
	assert.Empty(t, stdout.String())
}

func TestRun_AuthFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "key misconfigured", http.StatusInternalServerError)
	}))
	defer ts.Close()
	cfg := Config{APIEndpoint: ts.URL, Provider: "imagekit", UploadURL: ts.URL + "/upload"}

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), cfg, []string{writeFile(t, "a.png", "x")}, strings.NewReader(""), &stdout, &stderr, false, slog.Default())

	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stderr.String(), "key misconfigured")
}

func TestRun_Cancelled(t *testing.T) {
	_, cfg := newBackend(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	code := run(ctx, cfg, []string{writeFile(t, "a.png", "x")}, strings.NewReader(""), &stdout, &stderr, false, slog.Default())

	assert.Equal(t, exitAborted, code)
	assert.Empty(t, stdout.String())
}
