package client

import "errors"

var (
	// ErrUploadInProgress is returned when triggering while an attempt is in flight
	ErrUploadInProgress = errors.New("upload already in progress")

	// ErrNoFileStaged is returned when triggering without a staged file and no chooser
	ErrNoFileStaged = errors.New("no file staged for upload")
)
