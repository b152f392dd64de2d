package archive

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sync"

	"github.com/oaracle/oaracle/internal/domain/conditions"
)

const defaultMemoryLimit = 256

// MemoryArchive keeps the most recent payloads in memory.
type MemoryArchive struct {
	mu    sync.RWMutex
	limit int
	order []string
	blobs map[string][]byte
}

// NewMemoryArchive constructs an archive holding at most limit objects.
func NewMemoryArchive(limit int) *MemoryArchive {
	if limit <= 0 {
		limit = defaultMemoryLimit
	}
	return &MemoryArchive{limit: limit, blobs: make(map[string][]byte)}
}

// Put stores the blob, evicting the oldest one when full.
func (a *MemoryArchive) Put(_ context.Context, key string, data []byte, mimeType string) (conditions.StoredObject, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.blobs[key]; !exists {
		a.order = append(a.order, key)
	}
	a.blobs[key] = append([]byte(nil), data...)
	for len(a.order) > a.limit {
		delete(a.blobs, a.order[0])
		a.order = a.order[1:]
	}
	hash := md5.Sum(data)
	return conditions.StoredObject{
		Key:      key,
		Size:     int64(len(data)),
		MimeType: mimeType,
		ETag:     hex.EncodeToString(hash[:]),
	}, nil
}

// Get returns a copy of the stored blob.
func (a *MemoryArchive) Get(key string) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	data, ok := a.blobs[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Discard drops every payload.
type Discard struct{}

// Put implements conditions.Archive.
func (Discard) Put(_ context.Context, key string, data []byte, mimeType string) (conditions.StoredObject, error) {
	return conditions.StoredObject{Key: key, Size: int64(len(data)), MimeType: mimeType}, nil
}

var (
	_ conditions.Archive = (*MemoryArchive)(nil)
	_ conditions.Archive = Discard{}
)
