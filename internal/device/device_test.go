package device

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/runtime" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"cuda": true, "mps": false, "bf16": true, "device_name": "NVIDIA A10G"}`))
	}))
	defer srv.Close()

	caps, err := Probe(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !caps.CUDA {
		t.Error("expected cuda true")
	}
	if caps.MPS {
		t.Error("expected mps false")
	}
	if !caps.BF16 {
		t.Error("expected bf16 true")
	}
	if caps.DeviceName != "NVIDIA A10G" {
		t.Errorf("expected device name NVIDIA A10G, got %s", caps.DeviceName)
	}
}

func TestProbeTrailingSlash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/runtime" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"cuda": false, "mps": false, "bf16": false}`))
	}))
	defer srv.Close()

	if _, err := Probe(context.Background(), srv.Client(), srv.URL+"/"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestProbeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := Probe(context.Background(), srv.Client(), srv.URL); err == nil {
		t.Error("expected error for non-200 status, got nil")
	}
}

func TestProbeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	if _, err := Probe(context.Background(), http.DefaultClient, url); err == nil {
		t.Error("expected error for unreachable runtime, got nil")
	}
}

func TestChoose(t *testing.T) {
	cudaBF16 := Capabilities{CUDA: true, BF16: true}
	cudaOnly := Capabilities{CUDA: true}
	mpsOnly := Capabilities{MPS: true}
	cpuOnly := Capabilities{}

	tests := []struct {
		name       string
		caps       Capabilities
		requested  string
		disableGPU bool
		want       Choice
		wantErr    bool
	}{
		{"auto cuda bf16", cudaBF16, "", false, Choice{CUDA, DTypeBFloat16}, false},
		{"auto cuda fp16", cudaOnly, "", false, Choice{CUDA, DTypeFloat16}, false},
		{"auto mps", mpsOnly, "", false, Choice{MPS, DTypeFloat16}, false},
		{"auto cpu", cpuOnly, "", false, Choice{CPU, DTypeFloat32}, false},
		{"disable gpu with cuda present", cudaBF16, "", true, Choice{CPU, DTypeFloat32}, false},
		{"disable gpu with mps present", mpsOnly, "", true, Choice{CPU, DTypeFloat32}, false},
		{"explicit cuda", cudaBF16, "cuda", false, Choice{CUDA, DTypeBFloat16}, false},
		{"explicit cuda unavailable", cpuOnly, "cuda", false, Choice{}, true},
		{"explicit mps", mpsOnly, "mps", false, Choice{MPS, DTypeFloat16}, false},
		{"explicit mps unavailable", cudaOnly, "mps", false, Choice{}, true},
		{"explicit cpu always works", cudaBF16, "cpu", false, Choice{CPU, DTypeFloat32}, false},
		{"explicit wins over disable flag", cudaBF16, "cuda", true, Choice{CUDA, DTypeBFloat16}, false},
		{"unknown device", cudaBF16, "tpu", false, Choice{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Choose(tt.caps, tt.requested, tt.disableGPU)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestChoiceString(t *testing.T) {
	c := Choice{Device: CUDA, DType: DTypeBFloat16}
	if c.String() != "cuda/bfloat16" {
		t.Errorf("expected cuda/bfloat16, got %s", c.String())
	}
}
