package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
)

// MemoryUploader keeps objects in process. Used for local runs and tests.
type MemoryUploader struct {
	baseURL string

	mu      sync.RWMutex
	objects map[string]UploadInput
}

func NewMemoryUploader(baseURL string) *MemoryUploader {
	return &MemoryUploader{baseURL: strings.TrimRight(baseURL, "/"), objects: make(map[string]UploadInput)}
}

func (m *MemoryUploader) Upload(_ context.Context, input UploadInput) (*UploadResult, error) {
	key := strings.TrimLeft(strings.TrimSpace(input.Key), "/")
	if key == "" {
		return nil, errors.New("storage: object key required")
	}
	m.mu.Lock()
	m.objects[key] = input
	m.mu.Unlock()

	sum := md5.Sum(input.Body)
	return &UploadResult{URL: m.PublicURL(key), ETag: hex.EncodeToString(sum[:])}, nil
}

func (m *MemoryUploader) PublicURL(key string) string {
	return m.baseURL + "/" + strings.TrimLeft(key, "/")
}

// Object returns a stored object.
func (m *MemoryUploader) Object(key string) (UploadInput, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[strings.TrimLeft(key, "/")]
	return obj, ok
}

// Keys lists stored object keys.
func (m *MemoryUploader) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}
