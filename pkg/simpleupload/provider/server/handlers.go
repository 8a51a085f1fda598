// Package server is a self-hosted storage provider. It accepts the same
// signed multipart uploads as the CDN, stores files in a BlobStore and
// serves them back.
package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tendant/simple-upload/pkg/simpleupload"
	"github.com/tendant/simple-upload/pkg/simpleupload/provider/imagekit"
	"github.com/tendant/simple-upload/pkg/simpleupload/signer"
)

const (
	// DefaultMaxUploadSize bounds the request body
	DefaultMaxUploadSize = 25 << 20

	// UploadPath is the upload endpoint, matching the CDN's path
	UploadPath = "/api/v1/files/upload"

	// FilesPath prefixes stored files
	FilesPath = "/files"

	maxMemory = 8 << 20
)

// AuthorizationValidator checks a presented authorization
type AuthorizationValidator interface {
	ValidateAuthorization(auth simpleupload.Authorization) error
}

// Handlers serves the upload endpoint and the stored files
type Handlers struct {
	validator     AuthorizationValidator
	store         simpleupload.BlobStore
	tokens        simpleupload.TokenStore
	baseURL       string
	maxUploadSize int64
	suffixFunc    func() string
	validate      *validator.Validate
	logger        *slog.Logger
}

// Option configures Handlers
type Option func(*Handlers)

// WithPublicBaseURL sets the absolute URL prefix of returned file URLs
func WithPublicBaseURL(baseURL string) Option {
	return func(h *Handlers) {
		h.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithMaxUploadSize sets the largest accepted request body in bytes
func WithMaxUploadSize(n int64) Option {
	return func(h *Handlers) {
		h.maxUploadSize = n
	}
}

// WithSuffixFunc sets the generator of unique file name suffixes
func WithSuffixFunc(fn func() string) Option {
	return func(h *Handlers) {
		h.suffixFunc = fn
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handlers) {
		h.logger = logger
	}
}

// NewHandlers creates the provider handlers
func NewHandlers(v AuthorizationValidator, store simpleupload.BlobStore, tokens simpleupload.TokenStore, opts ...Option) *Handlers {
	h := &Handlers{
		validator:     v,
		store:         store,
		tokens:        tokens,
		maxUploadSize: DefaultMaxUploadSize,
		suffixFunc:    defaultSuffix,
		validate:      validator.New(),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func defaultSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// Mount registers the provider routes on r
func (h *Handlers) Mount(r chi.Router) {
	r.Post(UploadPath, h.HandleUpload)
	r.Get(FilesPath+"/*", h.HandleFile)
}

// Routes returns a router serving only the provider routes
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()
	h.Mount(r)
	return r
}

// uploadForm holds the non-file fields of an upload
type uploadForm struct {
	FileName          string `validate:"required,max=255"`
	Token             string `validate:"required,max=128"`
	Expire            int64  `validate:"required,gt=0"`
	Signature         string `validate:"required,hexadecimal"`
	PublicKey         string `validate:"required"`
	Folder            string `validate:"omitempty,max=512"`
	UseUniqueFileName bool
}

func (f uploadForm) authorization() simpleupload.Authorization {
	return simpleupload.Authorization{
		Token:     f.Token,
		Expire:    f.Expire,
		Signature: f.Signature,
		PublicKey: f.PublicKey,
	}
}

// HandleUpload handles POST /api/v1/files/upload
func (h *Handlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "file_too_large", fmt.Sprintf("upload exceeds %d bytes", h.maxUploadSize))
			return
		}
		writeError(w, r, http.StatusBadRequest, "invalid_form", "request must be multipart/form-data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	form, err := h.parseForm(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	file, header, err := r.FormFile(imagekit.FieldFile)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "missing_file", "file is required")
		return
	}
	defer file.Close()

	if err := h.validator.ValidateAuthorization(form.authorization()); err != nil {
		if signer.IsAuthError(err) {
			h.logger.Warn("Rejected upload authorization", "err", err)
			writeError(w, r, http.StatusForbidden, "invalid_authorization", err.Error())
			return
		}
		h.logger.Error("Failed to validate upload authorization", "err", err)
		writeError(w, r, http.StatusInternalServerError, "validation_failed", "upload authorization could not be checked")
		return
	}

	// expire has whole-second precision and is still accepted during its own
	// second, so the claim must outlive it
	claimed, err := h.tokens.Claim(r.Context(), form.Token, time.Unix(form.Expire+1, 0))
	if err != nil {
		h.logger.Error("Failed to claim upload token", "err", err)
		writeError(w, r, http.StatusInternalServerError, "token_store_failed", "upload token could not be recorded")
		return
	}
	if !claimed {
		h.logger.Warn("Rejected reused upload token")
		writeError(w, r, http.StatusForbidden, "token_reused", "upload authorization has already been used")
		return
	}

	result, err := h.save(r, form, file, header)
	if err != nil {
		h.logger.Error("Failed to store upload", "file_name", form.FileName, "err", err)
		writeError(w, r, http.StatusInternalServerError, "storage_failed", "file could not be stored")
		return
	}

	h.logger.Info("Stored upload", "file_path", result.FilePath, "size", result.Size)
	render.Status(r, http.StatusOK)
	render.JSON(w, r, result)
}

func (h *Handlers) parseForm(r *http.Request) (uploadForm, error) {
	form := uploadForm{
		FileName:          r.FormValue(imagekit.FieldFileName),
		Token:             r.FormValue(imagekit.FieldToken),
		Signature:         r.FormValue(imagekit.FieldSignature),
		PublicKey:         r.FormValue(imagekit.FieldPublicKey),
		Folder:            r.FormValue(imagekit.FieldFolder),
		UseUniqueFileName: true,
	}

	if raw := r.FormValue(imagekit.FieldExpire); raw != "" {
		expire, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return form, errors.New("expire must be a unix timestamp")
		}
		form.Expire = expire
	}
	if raw := r.FormValue(imagekit.FieldUseUniqueFileName); raw != "" {
		unique, err := strconv.ParseBool(raw)
		if err != nil {
			return form, errors.New("useUniqueFileName must be true or false")
		}
		form.UseUniqueFileName = unique
	}

	if err := h.validate.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return form, fmt.Errorf("invalid field %s: failed %s", fieldName(verrs[0].Field()), verrs[0].Tag())
		}
		return form, err
	}
	return form, nil
}

// fieldName maps a struct field to its form field name
func fieldName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

func (h *Handlers) save(r *http.Request, form uploadForm, file multipart.File, header *multipart.FileHeader) (*simpleupload.UploadResult, error) {
	name := sanitizeName(form.FileName)
	if form.UseUniqueFileName {
		name = uniqueName(name, h.suffixFunc())
	}
	filePath := path.Join(cleanFolder(form.Folder), name)

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	n, err := h.store.Put(r.Context(), filePath, file, contentType)
	if err != nil {
		return nil, err
	}

	result := &simpleupload.UploadResult{
		FileID:   uuid.NewString(),
		Name:     name,
		FilePath: filePath,
		URL:      h.fileURL(r, filePath),
		Size:     n,
		FileType: fileType(contentType),
	}
	if result.FileType == "image" {
		result.ThumbnailURL = result.URL
	}
	return result, nil
}

func (h *Handlers) fileURL(r *http.Request, filePath string) string {
	base := h.baseURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + FilesPath + filePath
}

// HandleFile handles GET /files/*
func (h *Handlers) HandleFile(w http.ResponseWriter, r *http.Request) {
	key := path.Clean("/" + chi.URLParam(r, "*"))
	if key == "/" {
		writeError(w, r, http.StatusNotFound, "not_found", "file not found")
		return
	}

	rc, meta, err := h.store.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, simpleupload.ErrObjectNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "file not found")
			return
		}
		h.logger.Error("Failed to read stored file", "key", key, "err", err)
		writeError(w, r, http.StatusInternalServerError, "storage_failed", "file could not be read")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", meta.ContentType)
	if meta.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	}
	if meta.ETag != "" {
		w.Header().Set("ETag", `"`+meta.ETag+`"`)
	}
	if !meta.UpdatedAt.IsZero() {
		w.Header().Set("Last-Modified", meta.UpdatedAt.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("Failed to stream stored file", "key", key, "err", err)
	}
}

// sanitizeName keeps letters, digits, dot, dash and underscore
func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if mapped == "" || mapped == "." || mapped == ".." {
		return "file"
	}
	return mapped
}

// uniqueName inserts suffix before the extension: photo.png -> photo_<suffix>.png
func uniqueName(name, suffix string) string {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return base + "_" + suffix + ext
}

func cleanFolder(folder string) string {
	if folder == "" {
		return "/"
	}
	segments := strings.Split(path.Clean("/"+folder), "/")
	for i, s := range segments {
		if s != "" {
			segments[i] = sanitizeName(s)
		}
	}
	return path.Clean("/" + strings.Join(segments, "/"))
}

func fileType(contentType string) string {
	if strings.HasPrefix(contentType, "image/") {
		return "image"
	}
	return "non-image"
}

// ErrorResponse is the JSON error body
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a machine code and a message
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}
