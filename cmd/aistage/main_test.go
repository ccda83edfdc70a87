package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func binaryPath(t *testing.T) string {
	t.Helper()
	path, err := filepath.Abs("../../aistage")
	if err != nil {
		t.Fatalf("failed to get binary path: %v", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("aistage binary not found - run 'go build -o aistage ./cmd/aistage' first")
	}
	return path
}

func TestSubcommands(t *testing.T) {
	binary := binaryPath(t)

	t.Run("help shows usage", func(t *testing.T) {
		cmd := exec.Command(binary, "help")
		out, err := cmd.CombinedOutput()
		if err != nil {
			t.Fatalf("help command failed: %v", err)
		}
		if !strings.Contains(string(out), "serve") || !strings.Contains(string(out), "version") {
			t.Errorf("help output missing subcommands: %s", out)
		}
	})

	t.Run("version prints version info", func(t *testing.T) {
		cmd := exec.Command(binary, "version")
		out, err := cmd.CombinedOutput()
		if err != nil {
			t.Fatalf("version command failed: %v", err)
		}
		if !strings.Contains(string(out), "aistage version") {
			t.Errorf("version output incorrect: %s", out)
		}
	})

	t.Run("no args shows usage and exits 1", func(t *testing.T) {
		cmd := exec.Command(binary)
		out, err := cmd.CombinedOutput()
		if err == nil {
			t.Fatal("expected non-zero exit for no args")
		}
		if !strings.Contains(string(out), "Usage:") {
			t.Errorf("expected usage output, got: %s", out)
		}
	})

	t.Run("unknown command exits 1", func(t *testing.T) {
		cmd := exec.Command(binary, "notreal")
		out, err := cmd.CombinedOutput()
		if err == nil {
			t.Fatal("expected non-zero exit for unknown command")
		}
		if !strings.Contains(string(out), "Unknown command") {
			t.Errorf("expected unknown command message, got: %s", out)
		}
	})
}

func TestServeRequiresRuntime(t *testing.T) {
	binary := binaryPath(t)

	// Port 1 refuses connections, so the runtime probe fails immediately
	// and serve must exit instead of registering functions.
	cmd := exec.Command(binary, "serve", "--addr=:0")
	cmd.Env = append(os.Environ(), "AISERVER_BACKEND_URL=http://127.0.0.1:1")
	out, err := cmd.CombinedOutput()
	if err == nil {
		t.Fatal("expected non-zero exit when the inference runtime is unreachable")
	}
	if !strings.Contains(string(out), "probe") {
		t.Errorf("expected probe failure in output, got: %s", out)
	}
}
