package config

import (
	"encoding/json"
	"fmt"
	"os"
)

type Config struct {
	ListenAddr  string          `json:"listen_addr"`
	MetricsAddr string          `json:"metrics_addr"`
	LogLevel    string          `json:"log_level"`
	Limits      LimitsConfig    `json:"limits"`
	Backend     BackendConfig   `json:"backend"`
	Embedding   EmbeddingConfig `json:"embedding"`
	Parse       ParseConfig     `json:"parse"`
	Stage       StageConfig     `json:"stage"`
	Timeout     TimeoutConfig   `json:"timeout"`
}

// LimitsConfig bounds batch sizes and backend concurrency.
type LimitsConfig struct {
	// MaxBatchRows is the largest input batch accepted per call.
	// Default: 1024
	MaxBatchRows int `json:"max_batch_rows"`
	// MaxConcurrent bounds concurrently in-flight backend invocations.
	// Callers beyond the bound queue rather than fail. Default: 4
	MaxConcurrent int `json:"max_concurrent"`
}

// GetMaxBatchRows returns MaxBatchRows with default fallback.
func (c LimitsConfig) GetMaxBatchRows() int {
	if c.MaxBatchRows <= 0 {
		return 1024
	}
	return c.MaxBatchRows
}

// GetMaxConcurrent returns MaxConcurrent with default fallback.
func (c LimitsConfig) GetMaxConcurrent() int {
	if c.MaxConcurrent <= 0 {
		return 4
	}
	return c.MaxConcurrent
}

// BackendConfig describes the inference sidecar serving embeddings and the
// runtime probe endpoint.
type BackendConfig struct {
	BaseURL string `json:"base_url"`
	// RequestTimeoutMs is the per-invocation timeout against the sidecar.
	// Default: 30000 (30 seconds)
	RequestTimeoutMs int `json:"request_timeout_ms"`
	// Device forces a compute device ("cuda", "mps", "cpu"). Empty selects
	// automatically from probed capabilities.
	Device string `json:"device"`
	// DisableGPU forces CPU even when an accelerator is available.
	DisableGPU bool `json:"disable_gpu"`
}

// GetRequestTimeout returns the sidecar request timeout in milliseconds.
func (c BackendConfig) GetRequestTimeout() int {
	if c.RequestTimeoutMs <= 0 {
		return 30000
	}
	return c.RequestTimeoutMs
}

// EmbeddingConfig holds embedding function configuration.
type EmbeddingConfig struct {
	// Model is the configured model alias resolved at startup.
	// Default: "qwen"
	Model string `json:"model"`
	// SubBatchSize is the number of texts per backend submission.
	// Default: 32
	SubBatchSize int `json:"sub_batch_size"`
	// Normalize enables L2 normalization of returned vectors.
	Normalize bool `json:"normalize"`
}

// GetModel returns the model alias with default fallback.
func (c EmbeddingConfig) GetModel() string {
	if c.Model == "" {
		return "qwen"
	}
	return c.Model
}

// GetSubBatchSize returns SubBatchSize with default fallback.
func (c EmbeddingConfig) GetSubBatchSize() int {
	if c.SubBatchSize <= 0 {
		return 32
	}
	return c.SubBatchSize
}

// ParseConfig holds document parsing configuration.
type ParseConfig struct {
	// ChunkSize is the target page size in characters when chunking.
	// Default: 2048
	ChunkSize int `json:"chunk_size"`
	// ChunkOverlap is the character overlap between adjacent chunks.
	// Default: 128
	ChunkOverlap int `json:"chunk_overlap"`
	// MaxPages caps pages returned per document. 0 means no cap.
	MaxPages int `json:"max_pages"`
}

// GetChunkSize returns ChunkSize with default fallback.
func (c ParseConfig) GetChunkSize() int {
	if c.ChunkSize <= 0 {
		return 2048
	}
	return c.ChunkSize
}

// GetChunkOverlap returns ChunkOverlap with default fallback.
func (c ParseConfig) GetChunkOverlap() int {
	if c.ChunkOverlap <= 0 {
		return 128
	}
	return c.ChunkOverlap
}

// StageConfig holds defaults applied to stage payloads that omit them.
type StageConfig struct {
	// DefaultEndpoint is used when an s3 stage omits its endpoint.
	DefaultEndpoint string `json:"default_endpoint"`
	// DefaultRegion is used when an s3 stage omits its region.
	// Default: "us-east-1"
	DefaultRegion string `json:"default_region"`
	// OperatorCacheSize caps cached stage operators. Default: 64
	OperatorCacheSize int `json:"operator_cache_size"`
}

// GetDefaultRegion returns DefaultRegion with default fallback.
func (c StageConfig) GetDefaultRegion() string {
	if c.DefaultRegion == "" {
		return "us-east-1"
	}
	return c.DefaultRegion
}

// GetOperatorCacheSize returns OperatorCacheSize with default fallback.
func (c StageConfig) GetOperatorCacheSize() int {
	if c.OperatorCacheSize <= 0 {
		return 64
	}
	return c.OperatorCacheSize
}

// TimeoutConfig holds per-request timeout configuration.
type TimeoutConfig struct {
	// InvokeTimeoutMs is the maximum time allowed for one batch call in
	// milliseconds. Default: 60000 (60 seconds)
	InvokeTimeoutMs int `json:"invoke_timeout_ms"`
}

// GetInvokeTimeout returns the invoke timeout in milliseconds with default
// fallback.
func (c TimeoutConfig) GetInvokeTimeout() int {
	if c.InvokeTimeoutMs <= 0 {
		return 60000
	}
	return c.InvokeTimeoutMs
}

func Default() *Config {
	return &Config{
		ListenAddr:  ":8815",
		MetricsAddr: ":9090",
		LogLevel:    "info",
		Limits: LimitsConfig{
			MaxBatchRows:  1024,
			MaxConcurrent: 4,
		},
		Backend: BackendConfig{
			BaseURL:          "http://localhost:8501",
			RequestTimeoutMs: 30000,
		},
		Embedding: EmbeddingConfig{
			Model:        "qwen",
			SubBatchSize: 32,
		},
		Parse: ParseConfig{
			ChunkSize:    2048,
			ChunkOverlap: 128,
		},
		Stage: StageConfig{
			DefaultRegion:     "us-east-1",
			OperatorCacheSize: 64,
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("AISERVER_CONFIG")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	if env := os.Getenv("AISERVER_LISTEN_ADDR"); env != "" {
		cfg.ListenAddr = env
	}
	if env := os.Getenv("AISERVER_METRICS_ADDR"); env != "" {
		cfg.MetricsAddr = env
	}
	if env := os.Getenv("AISERVER_LOG_LEVEL"); env != "" {
		cfg.LogLevel = env
	}

	if env := os.Getenv("AISERVER_MAX_BATCH_ROWS"); env != "" {
		if n, err := parseIntEnv(env); err == nil {
			cfg.Limits.MaxBatchRows = n
		}
	}
	if env := os.Getenv("AISERVER_MAX_CONCURRENT"); env != "" {
		if n, err := parseIntEnv(env); err == nil {
			cfg.Limits.MaxConcurrent = n
		}
	}

	if env := os.Getenv("AISERVER_BACKEND_URL"); env != "" {
		cfg.Backend.BaseURL = env
	}
	if env := os.Getenv("AISERVER_BACKEND_TIMEOUT_MS"); env != "" {
		if n, err := parseIntEnv(env); err == nil {
			cfg.Backend.RequestTimeoutMs = n
		}
	}
	if env := os.Getenv("AISERVER_DEVICE"); env != "" {
		cfg.Backend.Device = env
	}
	if env := os.Getenv("AISERVER_DISABLE_GPU"); env != "" {
		cfg.Backend.DisableGPU = parseBoolEnv(env)
	}

	if env := os.Getenv("AISERVER_EMBED_MODEL"); env != "" {
		cfg.Embedding.Model = env
	}
	if env := os.Getenv("AISERVER_EMBED_SUB_BATCH"); env != "" {
		if n, err := parseIntEnv(env); err == nil {
			cfg.Embedding.SubBatchSize = n
		}
	}
	if env := os.Getenv("AISERVER_EMBED_NORMALIZE"); env != "" {
		cfg.Embedding.Normalize = parseBoolEnv(env)
	}

	if env := os.Getenv("AISERVER_CHUNK_SIZE"); env != "" {
		if n, err := parseIntEnv(env); err == nil {
			cfg.Parse.ChunkSize = n
		}
	}
	if env := os.Getenv("AISERVER_CHUNK_OVERLAP"); env != "" {
		if n, err := parseIntEnv(env); err == nil {
			cfg.Parse.ChunkOverlap = n
		}
	}
	if env := os.Getenv("AISERVER_PARSE_MAX_PAGES"); env != "" {
		if n, err := parseIntEnv(env); err == nil {
			cfg.Parse.MaxPages = n
		}
	}

	if env := os.Getenv("AISERVER_STAGE_ENDPOINT"); env != "" {
		cfg.Stage.DefaultEndpoint = env
	}
	if env := os.Getenv("AISERVER_STAGE_REGION"); env != "" {
		cfg.Stage.DefaultRegion = env
	}
	if env := os.Getenv("AISERVER_OPERATOR_CACHE_SIZE"); env != "" {
		if n, err := parseIntEnv(env); err == nil {
			cfg.Stage.OperatorCacheSize = n
		}
	}

	if env := os.Getenv("AISERVER_INVOKE_TIMEOUT_MS"); env != "" {
		if n, err := parseIntEnv(env); err == nil {
			cfg.Timeout.InvokeTimeoutMs = n
		}
	}

	return cfg, nil
}

func parseIntEnv(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}

func parseBoolEnv(s string) bool {
	return s == "true" || s == "1" || s == "yes"
}
