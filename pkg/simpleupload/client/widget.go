// Package client drives signed direct uploads: it requests an authorization
// from the issuer, streams the file to the storage provider and reports
// progress and exactly one terminal outcome per attempt.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tendant/simple-upload/pkg/simpleupload"
	"github.com/tendant/simple-upload/pkg/simpleupload/config"
	"github.com/tendant/simple-upload/pkg/simpleupload/provider/imagekit"
)

// Widget is the upload component. It holds at most one staged file and one
// in-flight attempt, and remembers the last successful result for rendering.
type Widget struct {
	authorizer   simpleupload.Authorizer
	provider     simpleupload.Provider
	onFileChange func(filePath string)

	chooser     FileChooser
	notifier    Notifier
	onProgress  func(percent float64)
	folder      string
	urlEndpoint string
	logger      *slog.Logger

	mu         sync.Mutex
	staged     *simpleupload.File
	current    *Attempt
	lastResult *simpleupload.UploadResult
}

// Option configures a Widget
type Option func(*Widget)

// WithChooser sets the file chooser presented when nothing is staged
func WithChooser(chooser FileChooser) Option {
	return func(w *Widget) {
		w.chooser = chooser
	}
}

// WithNotifier sets the user-facing notification channel
func WithNotifier(n Notifier) Option {
	return func(w *Widget) {
		w.notifier = n
	}
}

// WithProgress sets a callback receiving progress in percent
func WithProgress(fn func(percent float64)) Option {
	return func(w *Widget) {
		w.onProgress = fn
	}
}

// WithFolder uploads into folder
func WithFolder(folder string) Option {
	return func(w *Widget) {
		w.folder = folder
	}
}

// WithURLEndpoint sets the public prefix assets are rendered from
func WithURLEndpoint(endpoint string) Option {
	return func(w *Widget) {
		w.urlEndpoint = endpoint
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(w *Widget) {
		w.logger = logger
	}
}

// New creates a Widget. onFileChange is invoked with the uploaded file path
// exactly once per successful attempt.
func New(authorizer simpleupload.Authorizer, provider simpleupload.Provider, onFileChange func(filePath string), opts ...Option) *Widget {
	w := &Widget{
		authorizer:   authorizer,
		provider:     provider,
		onFileChange: onFileChange,
		notifier:     NoopNotifier{},
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// NewFromConfig creates a Widget talking to the issuer and upload endpoint in cfg
func NewFromConfig(cfg config.ClientConfig, onFileChange func(filePath string), opts ...Option) (*Widget, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client configuration: %w", err)
	}
	var authOpts []AuthOption
	if cfg.SessionToken != "" {
		authOpts = append(authOpts, WithBearerToken(cfg.SessionToken))
	}
	auth := NewAuthClient(cfg, authOpts...)
	provider := imagekit.New(imagekit.Config{UploadURL: cfg.UploadURL})

	opts = append([]Option{WithFolder(cfg.Folder), WithURLEndpoint(cfg.URLEndpoint)}, opts...)
	return New(auth, provider, onFileChange, opts...), nil
}

// Stage selects file for the next attempt
func (w *Widget) Stage(file *simpleupload.File) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.staged = file
}

// Staged returns the staged file, if any
func (w *Widget) Staged() *simpleupload.File {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.staged
}

// Clear drops the staged file
func (w *Widget) Clear() {
	w.Stage(nil)
}

// Trigger is the single user action of the widget. With no file staged it
// presents the chooser, stages the selection and returns (nil, nil) without
// any network call. With a file staged it starts one attempt and returns it
// immediately; the attempt runs in the background and is aborted when ctx is
// cancelled. Triggering while an attempt is in flight returns
// ErrUploadInProgress.
func (w *Widget) Trigger(ctx context.Context) (*Attempt, error) {
	w.mu.Lock()
	if w.current != nil {
		select {
		case <-w.current.done:
		default:
			w.mu.Unlock()
			return nil, ErrUploadInProgress
		}
	}

	file := w.staged
	if file == nil {
		w.mu.Unlock()
		return nil, w.choose(ctx)
	}

	a := newAttempt(ctx, file)
	w.current = a
	w.mu.Unlock()

	go w.run(a)
	return a, nil
}

func (w *Widget) choose(ctx context.Context) error {
	if w.chooser == nil {
		return ErrNoFileStaged
	}
	file, err := w.chooser.Choose(ctx)
	if err != nil {
		return fmt.Errorf("file chooser failed: %w", err)
	}
	if file != nil {
		w.Stage(file)
	}
	return nil
}

// RenderURL joins filePath onto the URL endpoint. It returns "" when no
// endpoint is configured.
func (w *Widget) RenderURL(filePath string) string {
	if w.urlEndpoint == "" || filePath == "" {
		return ""
	}
	return strings.TrimRight(w.urlEndpoint, "/") + "/" + strings.TrimLeft(filePath, "/")
}

// LastRenderURL returns where the last uploaded file can be displayed: the
// provider's URL when it returned one, otherwise the URL endpoint plus the
// file path.
func (w *Widget) LastRenderURL() string {
	result := w.LastResult()
	if result == nil {
		return ""
	}
	if result.URL != "" {
		return result.URL
	}
	return w.RenderURL(result.FilePath)
}

// State returns the state of the current attempt, or Idle
func (w *Widget) State() simpleupload.State {
	w.mu.Lock()
	a := w.current
	w.mu.Unlock()
	if a == nil {
		return simpleupload.StateIdle
	}
	return a.State()
}

// Progress returns the progress of the current attempt in percent
func (w *Widget) Progress() float64 {
	w.mu.Lock()
	a := w.current
	w.mu.Unlock()
	if a == nil {
		return 0
	}
	return a.Progress()
}

// LastResult returns the last successful upload, if any
func (w *Widget) LastResult() *simpleupload.UploadResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastResult
}

func (w *Widget) run(a *Attempt) {
	defer close(a.done)
	defer a.cancel()

	outcome := a.finish(w.execute(a))
	w.report(a, outcome)
}

func (w *Widget) execute(a *Attempt) simpleupload.Outcome {
	if !a.advance(simpleupload.StateAwaitingAuthorization) {
		return simpleupload.Aborted()
	}

	auth, err := w.authorizer.RequestAuthorization(a.ctx)
	if err != nil {
		if a.aborted() {
			return simpleupload.Aborted()
		}
		return simpleupload.Failed(asAuthError(err))
	}

	if !a.advance(simpleupload.StateUploading) {
		return simpleupload.Aborted()
	}

	result, err := w.provider.Upload(a.ctx, simpleupload.UploadRequest{
		File:          a.file,
		Authorization: auth,
		Folder:        w.folder,
		OnProgress: func(loaded, total int64) {
			a.reportProgress(loaded, total, w.onProgress)
		},
	})
	if err != nil {
		if a.aborted() || simpleupload.IsKind(err, simpleupload.KindAborted) {
			return simpleupload.Aborted()
		}
		return simpleupload.Failed(simpleupload.AsUploadError("upload", err))
	}
	if result == nil {
		return simpleupload.Failed(simpleupload.NewError(simpleupload.KindUnclassified, "upload", errors.New("provider returned no result")))
	}

	return simpleupload.Succeeded(result)
}

// asAuthError keeps every authorization failure in the AuthenticationFailed kind
func asAuthError(err error) *simpleupload.UploadError {
	if simpleupload.IsKind(err, simpleupload.KindAuthenticationFailed) {
		return simpleupload.AsUploadError("authenticate", err)
	}
	return authFailed(0, "", err)
}

func (w *Widget) report(a *Attempt, outcome simpleupload.Outcome) {
	switch outcome.State {
	case simpleupload.StateSucceeded:
		w.mu.Lock()
		w.lastResult = outcome.Result
		w.mu.Unlock()

		w.logger.Info("Upload succeeded", "file", a.file.Name, "file_path", outcome.Result.FilePath)
		if w.onFileChange != nil {
			w.onFileChange(outcome.Result.FilePath)
		}
		w.notifier.Success(SuccessTitle, fmt.Sprintf("%s uploaded successfully!", outcome.Result.FilePath))

	case simpleupload.StateAborted:
		w.logger.Info("Upload aborted", "file", a.file.Name)

	case simpleupload.StateFailed:
		w.reportFailure(a, outcome.Err)

	default:
		w.logger.Error("Upload resolved in non-terminal state", "state", outcome.State)
	}
}

func (w *Widget) reportFailure(a *Attempt, err *simpleupload.UploadError) {
	log := w.logger.With("file", a.file.Name, "category", err.Kind.String(), "err", err)

	switch err.Kind {
	case simpleupload.KindAuthenticationFailed:
		log.Error("Failed to authenticate for upload", "status", err.StatusCode)
		w.notifier.Error(FailureTitle, AuthFailureDesc)
		return
	case simpleupload.KindAborted:
		log.Info("Upload aborted")
		return
	case simpleupload.KindInvalidRequest:
		log.Error("Invalid upload request", "status", err.StatusCode)
	case simpleupload.KindNetworkFailure:
		log.Error("Network error during upload")
	case simpleupload.KindServerFailure:
		log.Error("Storage provider error", "status", err.StatusCode)
	case simpleupload.KindUnclassified:
		log.Error("Upload error")
	}

	w.notifier.Error(FailureTitle, FailureDescription)
}
