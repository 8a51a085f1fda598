// Package imagekit uploads files to an ImageKit-compatible upload endpoint
// using a signed client-side authorization. The self-hosted provider in
// provider/server speaks the same protocol.
package imagekit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/tendant/simple-upload/pkg/simpleupload"
)

// DefaultUploadURL is the public CDN upload endpoint
const DefaultUploadURL = "https://upload.imagekit.io/api/v1/files/upload"

// Form field names of the upload protocol
const (
	FieldFile              = "file"
	FieldFileName          = "fileName"
	FieldToken             = "token"
	FieldExpire            = "expire"
	FieldSignature         = "signature"
	FieldPublicKey         = "publicKey"
	FieldFolder            = "folder"
	FieldUseUniqueFileName = "useUniqueFileName"
)

// Config options for the provider client
type Config struct {
	UploadURL     string
	HTTPClient    *http.Client // no timeout by default; cancel through the context
	ExactFileName bool         // ask the provider not to add a unique suffix
}

// Provider is a simpleupload.Provider for ImageKit-compatible endpoints
type Provider struct {
	uploadURL     string
	httpClient    *http.Client
	exactFileName bool
}

// New creates a new Provider
func New(config Config) *Provider {
	if config.UploadURL == "" {
		config.UploadURL = DefaultUploadURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	return &Provider{
		uploadURL:     config.UploadURL,
		httpClient:    config.HTTPClient,
		exactFileName: config.ExactFileName,
	}
}

// Upload streams req.File to the provider and returns the stored asset.
func (p *Provider) Upload(ctx context.Context, req simpleupload.UploadRequest) (*simpleupload.UploadResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, simpleupload.NewError(simpleupload.KindInvalidRequest, "upload", err)
	}

	src, err := req.File.Open()
	if err != nil {
		return nil, simpleupload.NewError(simpleupload.KindInvalidRequest, "upload", fmt.Errorf("failed to open file: %w", err))
	}
	defer src.Close()

	prefix, suffix, contentType, err := p.envelope(req)
	if err != nil {
		return nil, simpleupload.NewError(simpleupload.KindInvalidRequest, "upload", err)
	}

	body := io.MultiReader(
		bytes.NewReader(prefix),
		&progressReader{reader: src, total: req.File.Size, callback: req.OnProgress},
		bytes.NewReader(suffix),
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.uploadURL, body)
	if err != nil {
		return nil, simpleupload.NewError(simpleupload.KindInvalidRequest, "upload", fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if req.File.Size >= 0 {
		httpReq.ContentLength = int64(len(prefix)) + req.File.Size + int64(len(suffix))
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &simpleupload.UploadError{
			Kind:       kindForStatus(resp.StatusCode),
			Op:         "upload",
			StatusCode: resp.StatusCode,
			Body:       errorMessage(raw),
		}
	}

	var result simpleupload.UploadResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, simpleupload.NewError(simpleupload.KindUnclassified, "upload", fmt.Errorf("failed to decode upload response: %w", err))
	}
	if result.FilePath == "" {
		return nil, simpleupload.NewError(simpleupload.KindUnclassified, "upload", errors.New("upload response has no filePath"))
	}

	return &result, nil
}

func validateRequest(req simpleupload.UploadRequest) error {
	if req.File == nil || req.File.Open == nil {
		return errors.New("no file to upload")
	}
	if req.File.Name == "" {
		return errors.New("file name is required")
	}
	return req.Authorization.Validate()
}

// envelope renders the multipart form around the file part so the body can
// be streamed with a known length.
func (p *Provider) envelope(req simpleupload.UploadRequest) (prefix, suffix []byte, contentType string, err error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := [][2]string{
		{FieldFileName, req.File.Name},
		{FieldToken, req.Authorization.Token},
		{FieldExpire, strconv.FormatInt(req.Authorization.Expire, 10)},
		{FieldSignature, req.Authorization.Signature},
		{FieldPublicKey, req.Authorization.PublicKey},
		{FieldUseUniqueFileName, strconv.FormatBool(!p.exactFileName)},
	}
	if req.Folder != "" {
		fields = append(fields, [2]string{FieldFolder, req.Folder})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, nil, "", err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FieldFile, escapeQuotes(req.File.Name)))
	ct := req.File.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	if _, err := mw.CreatePart(h); err != nil {
		return nil, nil, "", err
	}
	prefix = append([]byte(nil), buf.Bytes()...)

	buf.Reset()
	if err := mw.Close(); err != nil {
		return nil, nil, "", err
	}
	suffix = append([]byte(nil), buf.Bytes()...)

	return prefix, suffix, mw.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func transportError(ctx context.Context, err error) *simpleupload.UploadError {
	if ctx.Err() != nil {
		return simpleupload.NewError(simpleupload.KindAborted, "upload", ctx.Err())
	}
	return simpleupload.NewError(simpleupload.KindNetworkFailure, "upload", err)
}

func kindForStatus(status int) simpleupload.ErrorKind {
	switch {
	case status >= 400 && status < 500:
		return simpleupload.KindInvalidRequest
	case status >= 500:
		return simpleupload.KindServerFailure
	default:
		return simpleupload.KindUnclassified
	}
}

// errorMessage extracts {"message": "..."} or {"error": {"message": "..."}}
// from an error body, falling back to the raw text.
func errorMessage(raw []byte) string {
	var flat struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &flat) == nil && flat.Message != "" {
		return flat.Message
	}
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &nested) == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}
	return strings.TrimSpace(string(raw))
}

// progressReader wraps an io.Reader to track upload progress
type progressReader struct {
	reader   io.Reader
	loaded   int64
	total    int64
	callback simpleupload.ProgressFunc
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.loaded += int64(n)
	if pr.callback != nil && n > 0 {
		pr.callback(pr.loaded, pr.total)
	}
	return n, err
}
