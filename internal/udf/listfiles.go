package udf

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aistage/aistage/internal/metrics"
	"github.com/aistage/aistage/internal/stage"
	"github.com/aistage/aistage/pkg/objectstore"
)

// listPageCap bounds how many entries one underlying list call may fetch.
const listPageCap = 1000

// ListFiles enumerates objects under a stage as a table-valued function.
// Entries are pulled lazily and never buffered beyond the caller's limit.
type ListFiles struct {
	stages *stage.Cache
}

func NewListFiles(stages *stage.Cache) *ListFiles {
	return &ListFiles{stages: stages}
}

func (l *ListFiles) Signature() Signature {
	return Signature{
		Name:    "ai_list_files",
		Args:    []ArgType{ArgStage, ArgInt},
		Kind:    KindTable,
		Result:  "table",
		Columns: []string{"stage", "relative_path", "path", "is_dir", "size", "mode", "content_type", "etag"},
	}
}

// CallTable lists up to limit entries. The truncated flag is true iff at
// least one more entry exists beyond the returned rows, which costs one
// extra pull past the limit.
func (l *ListFiles) CallTable(ctx context.Context, args []any) (*TableResult, error) {
	loc, err := stageArg(args[0])
	if err != nil {
		return nil, invalidArg(err)
	}
	limit, err := intArg(args[1])
	if err != nil {
		return nil, fmt.Errorf("%w: limit: %v", ErrInvalidArgument, err)
	}
	if limit <= 0 {
		return &TableResult{Rows: [][]any{}}, nil
	}

	op, err := l.stages.Get(loc)
	if err != nil {
		return nil, invalidArg(err)
	}
	prefix, err := stage.ResolveSubpath(loc, "")
	if err != nil {
		return nil, invalidArg(err)
	}
	prefix = stage.AsDirectoryPath(prefix)

	pageSize := listPageCap
	if limit < listPageCap {
		pageSize = int(limit) + 1
	}
	it := op.Scan(prefix, pageSize)

	strip := ""
	if prefix != "" {
		strip = strings.TrimSuffix(prefix, "/") + "/"
	}

	rows := make([][]any, 0, pageSize-1)
	truncated := false
	for {
		info, err := it.Next(ctx)
		if err != nil {
			if errors.Is(err, objectstore.ErrNotFound) {
				break
			}
			return nil, fmt.Errorf("%w: %v", ErrStageUnreachable, err)
		}
		if info == nil {
			break
		}

		rel := info.Key
		isDir := info.IsDir()
		if strip != "" && strings.HasPrefix(rel, strip) {
			rel = rel[len(strip):]
		}
		// The scan base shows up as its own entry on some backends.
		if rel == "" && isDir {
			continue
		}

		if int64(len(rows)) == limit {
			truncated = true
			break
		}
		rows = append(rows, l.entryRow(ctx, op, loc, info, rel))
	}

	if truncated {
		metrics.IncListTruncation()
	}
	return &TableResult{Rows: rows, Truncated: truncated}, nil
}

// entryRow builds one output row. Directory entries carry no metadata
// columns; file metadata comes from a per-entry stat, falling back to
// whatever the listing supplied when the stat fails. Nothing is ever
// fabricated.
func (l *ListFiles) entryRow(ctx context.Context, op *stage.Operator, loc *stage.Location, info *objectstore.ObjectInfo, rel string) []any {
	row := []any{loc.Name, rel, info.Key, info.IsDir(), nil, nil, nil, nil}
	if info.IsDir() {
		return row
	}

	meta := info
	if statted, err := op.Stat(ctx, info.Key); err == nil {
		meta = statted
	}

	if meta.Size >= 0 {
		row[4] = meta.Size
	}
	if meta.Mode != "" {
		row[5] = meta.Mode
	}
	if meta.ContentType != "" {
		row[6] = meta.ContentType
	}
	if meta.ETag != "" {
		row[7] = meta.ETag
	}
	return row
}
