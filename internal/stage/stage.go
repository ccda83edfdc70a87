// Package stage resolves warehouse stage references into object store
// operators. A stage arrives as an opaque JSON payload naming a storage
// backend and its options; operators built from it are cached so repeated
// calls against the same stage reuse one client.
package stage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks an unsupported or invalid stage configuration.
	ErrConfiguration = errors.New("invalid stage configuration")
	// ErrPath marks a stage path that cannot be resolved safely.
	ErrPath = errors.New("invalid stage path")
)

// Location identifies an external stage as described by the calling engine.
// Storage holds the backend options verbatim; option keys vary by warehouse
// version so lookups go through alias lists rather than fixed fields.
type Location struct {
	Name         string         `json:"stage_name"`
	Type         string         `json:"stage_type,omitempty"`
	RelativePath string         `json:"relative_path,omitempty"`
	Storage      map[string]any `json:"storage"`
}

// ParseLocation decodes a stage payload received as a variant argument.
func ParseLocation(data []byte) (*Location, error) {
	var loc Location
	if err := json.Unmarshal(data, &loc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if loc.Storage == nil {
		return nil, fmt.Errorf("%w: missing storage block", ErrConfiguration)
	}
	return &loc, nil
}

// ResolveSubpath combines the stage's relative path with a user-provided
// path. The result is relative to the operator root. Traversal outside the
// stage is rejected.
func ResolveSubpath(loc *Location, path string) (string, error) {
	base, err := normalizeParts(loc.RelativePath)
	if err != nil {
		return "", err
	}
	extra, err := normalizeParts(path)
	if err != nil {
		return "", err
	}
	full := append(base, extra...)
	return strings.Join(full, "/"), nil
}

// AsDirectoryPath ensures the provided path addresses a directory for list
// operations.
func AsDirectoryPath(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasSuffix(path, "/") {
		return path
	}
	return path + "/"
}

func normalizeParts(component string) ([]string, error) {
	if component == "" {
		return nil, nil
	}
	var parts []string
	for _, part := range strings.Split(component, "/") {
		chunk := strings.TrimSpace(part)
		if chunk == "" || chunk == "." {
			continue
		}
		if chunk == ".." {
			return nil, fmt.Errorf("%w: stage paths must not contain '..'", ErrPath)
		}
		parts = append(parts, chunk)
	}
	return parts, nil
}
