package objectstore

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FSStore serves a plain directory tree as read-only object storage. Keys
// are slash-separated paths relative to the root; directories appear in
// listings with a trailing slash, the way S3 directory markers do.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: root %s does not exist", ErrUnavailable, abs)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("%w: root %s is not a directory", ErrUnavailable, abs)
	}
	return &FSStore{root: abs}, nil
}

func (s *FSStore) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimSuffix(key, "/")))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", ErrNotFound
	}
	return filepath.Join(s.root, clean), nil
}

func (s *FSStore) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, nil, err
	}

	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	if st.IsDir() {
		return nil, nil, ErrNotFound
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	return file, s.infoFor(key, st), nil
}

func (s *FSStore) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if st.IsDir() {
		return &ObjectInfo{Key: strings.TrimSuffix(key, "/") + "/"}, nil
	}
	return s.infoFor(key, st), nil
}

func (s *FSStore) infoFor(key string, st os.FileInfo) *ObjectInfo {
	return &ObjectInfo{
		Key:          key,
		Size:         st.Size(),
		LastModified: st.ModTime(),
		Mode:         fmt.Sprintf("%04o", st.Mode().Perm()),
	}
}

func (s *FSStore) List(ctx context.Context, opts *ListOptions) (*ListResult, error) {
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

	// Walk order is not byte-lexical ("b/" sorts after "b.txt" on disk but
	// before it as a key), so collect keys first and sort to keep marker
	// resumption consistent with the S3 backend.
	var keys []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == s.root {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if d.IsDir() {
			key += "/"
		}

		if prefix != "" && !strings.HasPrefix(key, prefix) {
			if d.IsDir() && !strings.HasPrefix(prefix, key) {
				return filepath.SkipDir
			}
			return nil
		}
		if marker != "" && key <= marker {
			return nil
		}

		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(keys)

	result := &ListResult{}
	for i, key := range keys {
		if i >= maxKeys {
			result.IsTruncated = true
			result.NextMarker = keys[i-1]
			break
		}

		info := ObjectInfo{Key: key}
		if !strings.HasSuffix(key, "/") {
			path, rerr := s.resolve(key)
			if rerr == nil {
				if st, serr := os.Stat(path); serr == nil {
					info.Size = st.Size()
					info.LastModified = st.ModTime()
					info.Mode = fmt.Sprintf("%04o", st.Mode().Perm())
				}
			}
		}
		result.Objects = append(result.Objects, info)
	}

	return result, nil
}
