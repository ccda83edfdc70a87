package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/x448/float16"

	"github.com/aistage/aistage/internal/device"
)

// HTTPBackend submits embedding requests to the inference sidecar over
// HTTP. Vectors come back either as plain JSON float arrays or as packed
// little-endian binary when a half-precision encoding was negotiated.
type HTTPBackend struct {
	client  *http.Client
	baseURL string
	model   Model
	choice  device.Choice
	timeout time.Duration
}

// NewHTTPBackend creates a backend for the given sidecar and model. A nil
// client uses a dedicated default client.
func NewHTTPBackend(client *http.Client, baseURL string, model Model, choice device.Choice, timeout time.Duration) *HTTPBackend {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPBackend{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		choice:  choice,
		timeout: timeout,
	}
}

// Model returns the model this backend is bound to.
func (b *HTTPBackend) Model() Model {
	return b.model
}

type embedRequest struct {
	Model    string   `json:"model"`
	Input    []string `json:"input"`
	Device   string   `json:"device,omitempty"`
	DType    string   `json:"dtype,omitempty"`
	Encoding string   `json:"encoding,omitempty"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings,omitempty"`
	Data       string      `json:"data,omitempty"`
	DType      string      `json:"dtype,omitempty"`
	Dims       int         `json:"dims,omitempty"`
}

// Embed submits one sub-batch and returns one vector per input text.
func (b *HTTPBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	reqBody := embedRequest{
		Model:  b.model.ID,
		Input:  texts,
		Device: b.choice.Device,
		DType:  b.choice.DType,
	}
	// Request packed float16 when the device computes in half precision
	if b.choice.DType != device.DTypeFloat32 {
		reqBody.Encoding = "float16"
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding backend returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var er embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, fmt.Errorf("embed response: %w", err)
	}

	var vectors [][]float32
	if er.Data != "" {
		dims := er.Dims
		if dims <= 0 {
			dims = b.model.Dimensions
		}
		vectors, err = decodePacked(er.Data, er.DType, dims, len(texts))
		if err != nil {
			return nil, fmt.Errorf("embed response: %w", err)
		}
	} else {
		vectors = er.Embeddings
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding backend returned %d vectors for %d inputs", len(vectors), len(texts))
	}
	return vectors, nil
}

// decodePacked unpacks base64 little-endian vector data.
func decodePacked(data, dtype string, dims, count int) ([][]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode packed vectors: %w", err)
	}

	var width int
	switch dtype {
	case "float16":
		width = 2
	case "float32":
		width = 4
	default:
		return nil, fmt.Errorf("unsupported packed dtype %q", dtype)
	}

	if len(raw) != count*dims*width {
		return nil, fmt.Errorf("packed payload is %d bytes, expected %d", len(raw), count*dims*width)
	}

	vectors := make([][]float32, count)
	off := 0
	for i := range vectors {
		vec := make([]float32, dims)
		for j := range vec {
			if width == 2 {
				vec[j] = float16.Frombits(binary.LittleEndian.Uint16(raw[off:])).Float32()
			} else {
				vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))
			}
			off += width
		}
		vectors[i] = vec
	}
	return vectors, nil
}
