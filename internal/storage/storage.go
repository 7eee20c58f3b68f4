package storage

import "context"

// UploadInput is a single object write. Writes to an existing key overwrite it.
type UploadInput struct {
	Key          string
	Body         []byte
	ContentType  string
	CacheControl string
}

// UploadResult describes the stored object.
type UploadResult struct {
	URL  string
	ETag string
}

// Uploader stores blobs and resolves their public URLs.
type Uploader interface {
	Upload(ctx context.Context, input UploadInput) (*UploadResult, error)
	PublicURL(key string) string
}

// File is an uploaded file handed to storage untouched.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}
