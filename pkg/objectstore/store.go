package objectstore

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrNotFound    = errors.New("object not found")
	ErrUnavailable = errors.New("object store unavailable")
)

// ObjectInfo describes one stored object. Metadata fields are filled only
// when the backend actually provides them: S3 supplies ETag and ContentType,
// the filesystem supplies Mode, and nothing is ever synthesized.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
	ContentType  string
	Mode         string
}

// IsDir reports whether the entry is a directory marker. Backends encode
// directories as keys with a trailing slash, matching S3 convention.
func (o ObjectInfo) IsDir() bool {
	n := len(o.Key)
	return n > 0 && o.Key[n-1] == '/'
}

type ListResult struct {
	Objects     []ObjectInfo
	NextMarker  string
	IsTruncated bool
}

type ListOptions struct {
	Prefix  string
	Marker  string
	MaxKeys int
}

// Store is the read surface over a stage's backing storage. Implementations
// must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)
	Head(ctx context.Context, key string) (*ObjectInfo, error)
	List(ctx context.Context, opts *ListOptions) (*ListResult, error)
}
