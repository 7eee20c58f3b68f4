package storage

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when no storage backend was selected.
var ErrNotConfigured = errors.New("storage: uploader not configured")

// NoopUploader rejects every upload.
type NoopUploader struct{}

func (NoopUploader) Upload(context.Context, UploadInput) (*UploadResult, error) {
	return nil, ErrNotConfigured
}

func (NoopUploader) PublicURL(string) string {
	return ""
}
