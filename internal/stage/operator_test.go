package stage

import (
	"context"
	"errors"
	"testing"

	"github.com/aistage/aistage/pkg/objectstore"
)

func memoryLocation(name string, extra map[string]any) *Location {
	storage := map[string]any{"type": "memory"}
	for k, v := range extra {
		storage[k] = v
	}
	return &Location{Name: name, Storage: storage}
}

func TestBuildOperatorUnsupportedType(t *testing.T) {
	loc := &Location{Name: "x", Storage: map[string]any{"type": "azblob"}}
	_, err := buildOperator(loc, Defaults{})
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestBuildOperatorMissingType(t *testing.T) {
	loc := &Location{Name: "x", Storage: map[string]any{}}
	_, err := buildOperator(loc, Defaults{})
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestBuildS3OperatorMissingBucket(t *testing.T) {
	loc := &Location{Name: "x", Storage: map[string]any{"type": "s3"}}
	_, err := buildOperator(loc, Defaults{})
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestBuildS3Operator(t *testing.T) {
	loc := &Location{Name: "x", Storage: map[string]any{
		"type":              "s3",
		"bucket":            "my-bucket",
		"endpoint":          "http://localhost:9000",
		"access_key_id":     "key",
		"secret_access_key": "secret",
		"root":              "/prefix/",
	}}
	op, err := buildOperator(loc, Defaults{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op.Root() != "prefix/" {
		t.Errorf("expected root prefix/, got %q", op.Root())
	}
}

func TestBuildS3OperatorEndpointDefault(t *testing.T) {
	loc := &Location{Name: "x", Storage: map[string]any{"type": "s3", "bucket": "b"}}
	if _, err := buildOperator(loc, Defaults{Endpoint: "http://localhost:9000"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// No endpoint anywhere falls back to AWS
	if _, err := buildOperator(loc, Defaults{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBuildS3OperatorBucketAlias(t *testing.T) {
	loc := &Location{Name: "x", Storage: map[string]any{
		"type": "s3",
		"name": "aliased-bucket",
	}}
	if _, err := buildOperator(loc, Defaults{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBuildFSOperatorMissingRoot(t *testing.T) {
	loc := &Location{Name: "x", Storage: map[string]any{"type": "fs"}}
	_, err := buildOperator(loc, Defaults{})
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestBuildFSOperator(t *testing.T) {
	dir := t.TempDir()
	loc := &Location{Name: "x", Storage: map[string]any{"type": "fs", "root": dir}}
	op, err := buildOperator(loc, Defaults{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op.Root() != "" {
		t.Errorf("expected empty operator root for fs, got %q", op.Root())
	}
}

func TestMemoryOperatorReadStat(t *testing.T) {
	op, err := buildOperator(memoryLocation("mem", nil), Defaults{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ms := op.Store().(*objectstore.MemoryStore)
	ms.Put("docs/a.txt", []byte("hello"), "text/plain")

	ctx := context.Background()
	data, err := op.Read(ctx, "docs/a.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("expected hello, got %s", data)
	}

	info, err := op.Stat(ctx, "docs/a.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Size != 5 {
		t.Errorf("expected size 5, got %d", info.Size)
	}

	_, err = op.Read(ctx, "docs/missing.txt")
	if !errors.Is(err, objectstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryOperatorRoot(t *testing.T) {
	op, err := buildOperator(memoryLocation("mem", map[string]any{"root": "base"}), Defaults{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op.Root() != "base/" {
		t.Fatalf("expected root base/, got %q", op.Root())
	}

	ms := op.Store().(*objectstore.MemoryStore)
	ms.Put("base/a.txt", []byte("rooted"), "text/plain")

	ctx := context.Background()
	data, err := op.Read(ctx, "a.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "rooted" {
		t.Errorf("expected rooted, got %s", data)
	}

	info, err := op.Stat(ctx, "a.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Key != "a.txt" {
		t.Errorf("expected root-stripped key a.txt, got %s", info.Key)
	}
}

func TestStringOption(t *testing.T) {
	storage := map[string]any{
		"endpoint_url": "http://minio:9000",
		"empty":        "",
		"numeric":      float64(42),
	}

	if got := stringOption(storage, "endpoint", "endpoint_url"); got != "http://minio:9000" {
		t.Errorf("expected alias fallback, got %q", got)
	}
	if got := stringOption(storage, "empty", "endpoint_url"); got != "http://minio:9000" {
		t.Errorf("expected empty value skipped, got %q", got)
	}
	if got := stringOption(storage, "numeric"); got != "42" {
		t.Errorf("expected numeric coercion 42, got %q", got)
	}
	if got := stringOption(storage, "missing"); got != "" {
		t.Errorf("expected empty for missing key, got %q", got)
	}
}

func TestBoolOption(t *testing.T) {
	tests := []struct {
		value any
		want  bool
	}{
		{true, true},
		{false, false},
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"yes", true},
		{"on", true},
		{"false", false},
		{"0", false},
		{"off", false},
		{float64(1), true},
		{float64(0), false},
		{nil, false},
	}
	for _, tt := range tests {
		storage := map[string]any{"flag": tt.value}
		if got := boolOption(storage, "flag"); got != tt.want {
			t.Errorf("boolOption(%v): expected %v, got %v", tt.value, tt.want, got)
		}
	}
	if boolOption(map[string]any{}, "flag") {
		t.Error("expected false for missing key")
	}
}
