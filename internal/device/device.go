package device

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Device identifiers as reported by the inference runtime.
const (
	CUDA = "cuda"
	MPS  = "mps"
	CPU  = "cpu"
)

// Compute dtypes used for model execution on each device.
const (
	DTypeBFloat16 = "bfloat16"
	DTypeFloat16  = "float16"
	DTypeFloat32  = "float32"
)

// Capabilities describes what the inference runtime can execute on.
type Capabilities struct {
	CUDA       bool   `json:"cuda"`
	MPS        bool   `json:"mps"`
	BF16       bool   `json:"bf16"`
	DeviceName string `json:"device_name,omitempty"`
}

// Choice is a resolved device and dtype pair.
type Choice struct {
	Device string
	DType  string
}

func (c Choice) String() string {
	return c.Device + "/" + c.DType
}

// Probe queries the inference runtime for its device capabilities.
// Startup must not proceed on a failed probe; a server that cannot
// determine its device would misreport every result.
func Probe(ctx context.Context, client *http.Client, baseURL string) (Capabilities, error) {
	url := strings.TrimRight(baseURL, "/") + "/v1/runtime"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Capabilities{}, fmt.Errorf("runtime probe: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Capabilities{}, fmt.Errorf("runtime probe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Capabilities{}, fmt.Errorf("runtime probe: unexpected status %d", resp.StatusCode)
	}

	var caps Capabilities
	if err := json.NewDecoder(resp.Body).Decode(&caps); err != nil {
		return Capabilities{}, fmt.Errorf("runtime probe: decode: %w", err)
	}
	return caps, nil
}

// Choose resolves the device and dtype from probed capabilities.
// An explicit request wins over the disable flag; an explicit request for
// an unavailable device is an error rather than a silent fallback.
// Automatic selection prefers cuda, then mps, then cpu.
func Choose(caps Capabilities, requested string, disableGPU bool) (Choice, error) {
	switch requested {
	case "":
	case CUDA:
		if !caps.CUDA {
			return Choice{}, fmt.Errorf("device %q requested but not available", requested)
		}
		return Choice{Device: CUDA, DType: cudaDType(caps)}, nil
	case MPS:
		if !caps.MPS {
			return Choice{}, fmt.Errorf("device %q requested but not available", requested)
		}
		return Choice{Device: MPS, DType: DTypeFloat16}, nil
	case CPU:
		return Choice{Device: CPU, DType: DTypeFloat32}, nil
	default:
		return Choice{}, fmt.Errorf("unknown device %q", requested)
	}

	if disableGPU {
		return Choice{Device: CPU, DType: DTypeFloat32}, nil
	}
	if caps.CUDA {
		return Choice{Device: CUDA, DType: cudaDType(caps)}, nil
	}
	if caps.MPS {
		return Choice{Device: MPS, DType: DTypeFloat16}, nil
	}
	return Choice{Device: CPU, DType: DTypeFloat32}, nil
}

func cudaDType(caps Capabilities) string {
	if caps.BF16 {
		return DTypeBFloat16
	}
	return DTypeFloat16
}
