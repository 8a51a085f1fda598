package client

import (
	"context"
	"log/slog"

	"github.com/tendant/simple-upload/pkg/simpleupload"
)

// User-facing messages
const (
	FailureTitle       = "Image upload failed."
	FailureDescription = "Your image could not be uploaded. Please try again."
	AuthFailureDesc    = "The upload could not be authorized. Please try again."
	SuccessTitle       = "Image uploaded successfully."
)

// Notifier shows short messages to the end user
type Notifier interface {
	Error(title, description string)
	Success(title, description string)
}

// FileChooser presents a file picker. It returns a nil file when the user
// dismisses the picker.
type FileChooser interface {
	Choose(ctx context.Context) (*simpleupload.File, error)
}

// FileChooserFunc adapts a function to FileChooser
type FileChooserFunc func(ctx context.Context) (*simpleupload.File, error)

func (f FileChooserFunc) Choose(ctx context.Context) (*simpleupload.File, error) {
	return f(ctx)
}

// LogNotifier writes notifications to a logger
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Error(title, description string) {
	n.logger().Warn(title, "description", description)
}

func (n LogNotifier) Success(title, description string) {
	n.logger().Info(title, "description", description)
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

// NoopNotifier discards notifications
type NoopNotifier struct{}

func (NoopNotifier) Error(title, description string)   {}
func (NoopNotifier) Success(title, description string) {}
