// Command stage_ls lists the objects of a stage definition through the same
// operator pipeline the server uses. Useful for checking stage payloads and
// credentials before wiring them into SQL.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aistage/aistage/internal/stage"
)

func main() {
	var (
		stagePath string
		subPath   string
		limit     int
		endpoint  string
		region    string
	)

	flag.StringVar(&stagePath, "stage", "", "Path to stage payload JSON ('-' for stdin)")
	flag.StringVar(&subPath, "path", "", "Relative path inside the stage")
	flag.IntVar(&limit, "limit", 100, "Maximum entries to print")
	flag.StringVar(&endpoint, "endpoint", "", "Default s3 endpoint for stages that omit one")
	flag.StringVar(&region, "region", "us-east-1", "Default s3 region for stages that omit one")
	flag.Parse()

	if stagePath == "" {
		fmt.Fprintln(os.Stderr, "Usage: stage_ls -stage <payload.json> [-path <subpath>] [-limit N]")
		os.Exit(2)
	}

	data, err := readPayload(stagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read stage payload: %v\n", err)
		os.Exit(1)
	}

	loc, err := stage.ParseLocation(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid stage payload: %v\n", err)
		os.Exit(1)
	}

	cache := stage.NewCache(1, stage.Defaults{Endpoint: endpoint, Region: region})
	op, err := cache.Get(loc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build operator: %v\n", err)
		os.Exit(1)
	}

	prefix, err := stage.ResolveSubpath(loc, subPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid path: %v\n", err)
		os.Exit(1)
	}
	prefix = stage.AsDirectoryPath(prefix)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	it := op.Scan(prefix, limit)
	printed := 0
	for printed < limit {
		info, err := it.Next(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "scan failed: %v\n", err)
			os.Exit(1)
		}
		if info == nil {
			break
		}
		rel := info.Key
		if prefix != "" {
			rel = strings.TrimPrefix(rel, strings.TrimSuffix(prefix, "/")+"/")
		}
		if rel == "" && info.IsDir() {
			continue
		}
		if info.IsDir() {
			fmt.Printf("%-12s %s\n", "dir", rel)
		} else {
			fmt.Printf("%-12d %s\n", info.Size, rel)
		}
		printed++
	}

	fmt.Fprintf(os.Stderr, "%d entries under stage %q\n", printed, loc.Name)
}

func readPayload(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
