package stage

import (
	"context"

	"github.com/aistage/aistage/pkg/objectstore"
)

// Iterator lazily enumerates objects under a prefix, fetching pages from
// the store only as entries are consumed. It is valid for a single pass;
// callers needing a fresh enumeration start a new Scan.
type Iterator struct {
	op       *Operator
	prefix   string
	pageSize int

	marker  string
	pending []objectstore.ObjectInfo
	pos     int
	done    bool
}

// Next returns the next object, or (nil, nil) once the listing is
// exhausted. Entry keys are relative to the operator root.
func (it *Iterator) Next(ctx context.Context) (*objectstore.ObjectInfo, error) {
	for it.pos >= len(it.pending) {
		if it.done {
			return nil, nil
		}
		res, err := it.op.store.List(ctx, &objectstore.ListOptions{
			Prefix:  it.prefix,
			Marker:  it.marker,
			MaxKeys: it.pageSize,
		})
		if err != nil {
			return nil, err
		}
		it.pending = res.Objects
		it.pos = 0
		it.marker = res.NextMarker
		// A truncated page with no objects would loop forever; treat it
		// as exhausted.
		it.done = !res.IsTruncated || len(res.Objects) == 0
	}

	entry := it.pending[it.pos]
	it.pos++
	entry.Key = it.op.strip(entry.Key)
	return &entry, nil
}
