package stage

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aistage/aistage/pkg/objectstore"
)

// Operator is a stage bound to its object store. Paths passed to Operator
// methods are relative to the operator root.
type Operator struct {
	store objectstore.Store
	root  string // "" or a key prefix ending in "/"
}

// Store returns the underlying object store.
func (o *Operator) Store() objectstore.Store {
	return o.store
}

// Root returns the operator's key prefix within the store.
func (o *Operator) Root() string {
	return o.root
}

// Read returns the full contents of the object at path.
func (o *Operator) Read(ctx context.Context, path string) ([]byte, error) {
	rc, _, err := o.store.Get(ctx, o.key(path))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Stat returns metadata for the object at path.
func (o *Operator) Stat(ctx context.Context, path string) (*objectstore.ObjectInfo, error) {
	info, err := o.store.Head(ctx, o.key(path))
	if err != nil {
		return nil, err
	}
	stripped := *info
	stripped.Key = o.strip(info.Key)
	return &stripped, nil
}

// Scan returns a lazy iterator over objects under prefix. pageSize bounds
// how many entries are fetched per underlying list call; values <= 0 use
// the store maximum of 1000.
func (o *Operator) Scan(prefix string, pageSize int) *Iterator {
	if pageSize <= 0 || pageSize > 1000 {
		pageSize = 1000
	}
	return &Iterator{
		op:       o,
		prefix:   o.key(prefix),
		pageSize: pageSize,
	}
}

func (o *Operator) key(path string) string {
	return o.root + path
}

func (o *Operator) strip(key string) string {
	return strings.TrimPrefix(key, o.root)
}

func buildOperator(loc *Location, defaults Defaults) (*Operator, error) {
	storageType := strings.ToLower(stringOption(loc.Storage, "type"))
	switch storageType {
	case "s3":
		return buildS3Operator(loc, defaults)
	case "fs":
		return buildFSOperator(loc)
	case "memory":
		return buildMemoryOperator(loc)
	default:
		if storageType == "" {
			storageType = "unknown"
		}
		return nil, fmt.Errorf("%w: unsupported storage type %q", ErrConfiguration, storageType)
	}
}

func buildS3Operator(loc *Location, defaults Defaults) (*Operator, error) {
	storage := loc.Storage

	bucket := stringOption(storage, "bucket", "name")
	if bucket == "" {
		return nil, fmt.Errorf("%w: s3 stage is missing bucket configuration", ErrConfiguration)
	}

	endpoint := stringOption(storage, "endpoint", "endpoint_url")
	if endpoint == "" {
		endpoint = defaults.Endpoint
	}
	useSSL := false
	if endpoint == "" {
		// Stages pointed at AWS proper omit the endpoint entirely.
		endpoint = "s3.amazonaws.com"
		useSSL = true
	}

	region := stringOption(storage, "region")
	if region == "" {
		region = defaults.Region
	}
	if region == "" {
		// S3-compatible endpoints often skip the region; the client still
		// needs one for signing.
		region = "us-east-1"
	}

	cfg := objectstore.S3Config{
		Endpoint:                endpoint,
		Bucket:                  bucket,
		AccessKey:               stringOption(storage, "access_key_id", "aws_key_id"),
		SecretKey:               stringOption(storage, "secret_access_key", "aws_secret_key"),
		SessionToken:            stringOption(storage, "security_token", "session_token", "aws_token"),
		Region:                  region,
		UseSSL:                  useSSL,
		VirtualHostStyle:        boolOption(storage, "enable_virtual_host_style"),
		DisableCredentialLoader: boolOption(storage, "disable_credential_loader"),
	}

	store, err := objectstore.NewS3Store(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return &Operator{
		store: objectstore.NewInstrumentedStore(store),
		root:  normalizeRoot(stringOption(storage, "root")),
	}, nil
}

func buildFSOperator(loc *Location) (*Operator, error) {
	root := stringOption(loc.Storage, "root")
	if root == "" {
		return nil, fmt.Errorf("%w: fs stage is missing root configuration", ErrConfiguration)
	}
	store, err := objectstore.NewFSStore(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return &Operator{store: objectstore.NewInstrumentedStore(store)}, nil
}

func buildMemoryOperator(loc *Location) (*Operator, error) {
	return &Operator{
		store: objectstore.NewMemoryStore(),
		root:  normalizeRoot(stringOption(loc.Storage, "root")),
	}, nil
}

func normalizeRoot(root string) string {
	root = strings.Trim(root, "/")
	if root == "" {
		return ""
	}
	return root + "/"
}

// stringOption returns the first non-empty string value among the aliases
// a stage payload may use for one option.
func stringOption(storage map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := storage[key]
		if !ok {
			continue
		}
		switch s := v.(type) {
		case string:
			if s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64)
		}
	}
	return ""
}

func boolOption(storage map[string]any, key string) bool {
	v, ok := storage[key]
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case float64:
		return b != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		}
	}
	return false
}
