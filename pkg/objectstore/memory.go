package objectstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests and local development.
// Objects are seeded with Put; keys ending in "/" act as directory markers.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*memoryObject
	failure error
}

type memoryObject struct {
	data         []byte
	etag         string
	lastModified time.Time
	contentType  string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]*memoryObject),
	}
}

// FailWith makes every subsequent store call return err, for testing
// outage handling. Pass nil to restore normal operation.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

// Put seeds an object. Directory markers are stored with empty data.
func (s *MemoryStore) Put(key string, data []byte, contentType string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := sha256.Sum256(data)
	s.objects[key] = &memoryObject{
		data:         append([]byte(nil), data...),
		etag:         fmt.Sprintf("%x", hash[:16]),
		lastModified: time.Now(),
		contentType:  contentType,
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.failure != nil {
		return nil, nil, s.failure
	}
	obj, ok := s.objects[key]
	if !ok {
		return nil, nil, ErrNotFound
	}

	return io.NopCloser(bytes.NewReader(obj.data)), s.infoFor(key, obj), nil
}

func (s *MemoryStore) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.failure != nil {
		return nil, s.failure
	}
	obj, ok := s.objects[key]
	if !ok {
		return nil, ErrNotFound
	}

	return s.infoFor(key, obj), nil
}

func (s *MemoryStore) infoFor(key string, obj *memoryObject) *ObjectInfo {
	if strings.HasSuffix(key, "/") {
		return &ObjectInfo{Key: key}
	}
	return &ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.data)),
		ETag:         obj.etag,
		LastModified: obj.lastModified,
		ContentType:  obj.contentType,
	}
}

func (s *MemoryStore) List(ctx context.Context, opts *ListOptions) (*ListResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.failure != nil {
		return nil, s.failure
	}

	prefix := ""
	marker := ""
	maxKeys := 1000

	if opts != nil {
		prefix = opts.Prefix
		marker = opts.Marker
		if opts.MaxKeys > 0 {
			maxKeys = opts.MaxKeys
		}
	}

	var keys []string
	for k := range s.objects {
		if prefix != "" && !strings.HasPrefix(k, prefix) {
			continue
		}
		if marker != "" && k <= marker {
			continue
		}
		keys = append(keys, k)
	}

	sort.Strings(keys)

	result := &ListResult{}
	for i, key := range keys {
		if i >= maxKeys {
			result.IsTruncated = true
			result.NextMarker = keys[i-1]
			break
		}

		result.Objects = append(result.Objects, *s.infoFor(key, s.objects[key]))
	}

	return result, nil
}

func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects = make(map[string]*memoryObject)
}
