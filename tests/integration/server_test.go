package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aistage/aistage/internal/config"
	"github.com/aistage/aistage/internal/device"
	"github.com/aistage/aistage/internal/docparse"
	"github.com/aistage/aistage/internal/embedding"
	"github.com/aistage/aistage/internal/logging"
	"github.com/aistage/aistage/internal/stage"
	"github.com/aistage/aistage/internal/udf"
	"github.com/aistage/aistage/pkg/api"
	"github.com/aistage/aistage/pkg/objectstore"
)

// fixture is the full server stack wired the way the serve command wires
// it, with an in-process inference sidecar standing in for the real one.
type fixture struct {
	server  *httptest.Server
	sidecar *httptest.Server
	stages  *stage.Cache
}

// newSidecar serves the runtime probe and embeddings endpoints. Vectors
// are deterministic: slot zero carries the input length.
func newSidecar(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/runtime", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"cuda":        false,
			"mps":         false,
			"bf16":        false,
			"device_name": "test-cpu",
		})
	})
	mux.HandleFunc("POST /v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		vectors := make([][]float32, len(req.Input))
		for i, text := range req.Input {
			vec := make([]float32, dims)
			vec[0] = float32(len(text))
			vectors[i] = vec
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"embeddings": vectors})
	})
	return httptest.NewServer(mux)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	model, err := embedding.Resolve("qwen")
	if err != nil {
		t.Fatalf("resolve model: %v", err)
	}

	sidecar := newSidecar(t, model.Dimensions)
	t.Cleanup(sidecar.Close)

	cfg := config.Default()
	cfg.Backend.BaseURL = sidecar.URL

	probeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	caps, err := device.Probe(probeCtx, sidecar.Client(), cfg.Backend.BaseURL)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	choice, err := device.Choose(caps, cfg.Backend.Device, cfg.Backend.DisableGPU)
	if err != nil {
		t.Fatalf("choose device: %v", err)
	}

	gate := device.NewGate(cfg.Limits.GetMaxConcurrent())
	requestTimeout := time.Duration(cfg.Backend.GetRequestTimeout()) * time.Millisecond
	backend := embedding.NewGatedBackend(
		embedding.NewHTTPBackend(sidecar.Client(), cfg.Backend.BaseURL, model, choice, requestTimeout),
		gate,
	)

	stages := stage.NewCache(cfg.Stage.GetOperatorCacheSize(), stage.Defaults{
		Region: cfg.Stage.GetDefaultRegion(),
	})
	converter := docparse.NewConverter(cfg.Parse.GetChunkSize(), cfg.Parse.GetChunkOverlap(), cfg.Parse.MaxPages)

	registry := udf.NewRegistry()
	functions := []udf.Function{
		udf.NewListFiles(stages),
		udf.NewEmbed(backend, cfg.Embedding.GetSubBatchSize(), cfg.Embedding.Normalize),
		udf.NewParseDocument(stages, converter, gate),
		udf.NewExtractText(stages, converter, gate),
	}
	for _, fn := range functions {
		if err := registry.Register(fn); err != nil {
			t.Fatalf("register %q: %v", fn.Signature().Name, err)
		}
	}

	logger := logging.NewWithWriter(io.Discard, "error")
	dispatcher := udf.NewDispatcher(registry, cfg.Limits.GetMaxBatchRows(), logger)
	router := api.NewRouter(cfg, registry, dispatcher, logger)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &fixture{server: server, sidecar: sidecar, stages: stages}
}

// seedStage fills an in-memory stage and returns the payload rows should
// carry to address it.
func (f *fixture) seedStage(t *testing.T, name string, objects map[string]string) map[string]interface{} {
	t.Helper()
	arg := map[string]interface{}{
		"stage_name": name,
		"storage":    map[string]interface{}{"type": "memory"},
	}
	payload, err := json.Marshal(arg)
	if err != nil {
		t.Fatalf("marshal stage payload: %v", err)
	}
	loc, err := stage.ParseLocation(payload)
	if err != nil {
		t.Fatalf("parse stage payload: %v", err)
	}
	op, err := f.stages.Get(loc)
	if err != nil {
		t.Fatalf("build operator: %v", err)
	}
	mem := op.Store().(*objectstore.MemoryStore)
	for key, content := range objects {
		mem.Put(key, []byte(content), "text/plain")
	}
	return arg
}

func (f *fixture) invoke(t *testing.T, name string, rows [][]interface{}) (int, map[string]interface{}) {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{"rows": rows})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(f.server.URL+"/v1/functions/"+name+"/invoke", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("parse response: %v (%s)", err, body)
	}
	return resp.StatusCode, decoded
}

func TestServerEndToEnd(t *testing.T) {
	f := newFixture(t)
	stageArg := f.seedStage(t, "docs", map[string]string{
		"guide.md":  "# Guide\n\nHow to load stages.\n",
		"notes.txt": "short operational notes",
	})

	t.Run("health", func(t *testing.T) {
		resp, err := http.Get(f.server.URL + "/healthz")
		if err != nil {
			t.Fatalf("health check failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected status 200, got %d", resp.StatusCode)
		}
	})

	t.Run("catalog lists all functions", func(t *testing.T) {
		resp, err := http.Get(f.server.URL + "/v1/functions")
		if err != nil {
			t.Fatalf("catalog failed: %v", err)
		}
		defer resp.Body.Close()
		var body struct {
			Functions []struct {
				Name string `json:"name"`
				Kind string `json:"kind"`
			} `json:"functions"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("parse catalog: %v", err)
		}
		names := make(map[string]string, len(body.Functions))
		for _, fn := range body.Functions {
			names[fn.Name] = fn.Kind
		}
		for name, kind := range map[string]string{
			"ai_list_files":     "table",
			"ai_embed_1024":     "scalar",
			"ai_parse_document": "scalar",
			"ai_extract_text":   "scalar",
		} {
			if names[name] != kind {
				t.Errorf("function %s: expected kind %s, got %q", name, kind, names[name])
			}
		}
	})

	t.Run("list files", func(t *testing.T) {
		status, body := f.invoke(t, "ai_list_files", [][]interface{}{{stageArg, 10}})
		if status != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %v", status, body)
		}
		rows, ok := body["rows"].([]interface{})
		if !ok || len(rows) != 2 {
			t.Fatalf("expected 2 rows, got %v", body["rows"])
		}
		if body["truncated"] != false {
			t.Errorf("expected truncated false, got %v", body["truncated"])
		}
		first := rows[0].([]interface{})
		if first[0] != "docs" {
			t.Errorf("expected stage name 'docs', got %v", first[0])
		}
	})

	t.Run("list files truncates at limit", func(t *testing.T) {
		status, body := f.invoke(t, "ai_list_files", [][]interface{}{{stageArg, 1}})
		if status != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %v", status, body)
		}
		rows := body["rows"].([]interface{})
		if len(rows) != 1 {
			t.Fatalf("expected 1 row, got %d", len(rows))
		}
		if body["truncated"] != true {
			t.Errorf("expected truncated true, got %v", body["truncated"])
		}
	})

	t.Run("embed", func(t *testing.T) {
		status, body := f.invoke(t, "ai_embed_1024", [][]interface{}{{"hello"}, {""}, {nil}})
		if status != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %v", status, body)
		}
		outputs, ok := body["outputs"].([]interface{})
		if !ok || len(outputs) != 3 {
			t.Fatalf("expected 3 outputs, got %v", body["outputs"])
		}
		vec, ok := outputs[0].([]interface{})
		if !ok {
			t.Fatalf("expected vector output, got %T", outputs[0])
		}
		if len(vec) != 1024 {
			t.Errorf("expected 1024 dimensions, got %d", len(vec))
		}
		if vec[0].(float64) != 5 {
			t.Errorf("expected marker 5 for 'hello', got %v", vec[0])
		}
		if outputs[1] != nil || outputs[2] != nil {
			t.Errorf("expected null outputs for empty and null inputs, got %v, %v", outputs[1], outputs[2])
		}
	})

	t.Run("parse document", func(t *testing.T) {
		status, body := f.invoke(t, "ai_parse_document", [][]interface{}{{stageArg, "guide.md"}})
		if status != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %v", status, body)
		}
		outputs := body["outputs"].([]interface{})
		doc, ok := outputs[0].(map[string]interface{})
		if !ok {
			t.Fatalf("expected document object, got %T", outputs[0])
		}
		if doc["errorInformation"] != nil {
			t.Fatalf("unexpected failure: %v", doc["errorInformation"])
		}
		pages := doc["pages"].([]interface{})
		if len(pages) == 0 {
			t.Fatal("expected at least one page")
		}
		meta := doc["metadata"].(map[string]interface{})
		if int(meta["pageCount"].(float64)) != len(pages) {
			t.Errorf("pageCount %v does not match %d pages", meta["pageCount"], len(pages))
		}
		page := pages[0].(map[string]interface{})
		if !strings.Contains(page["content"].(string), "Guide") {
			t.Errorf("page content missing source text: %v", page["content"])
		}
	})

	t.Run("parse missing document fails per row", func(t *testing.T) {
		status, body := f.invoke(t, "ai_parse_document", [][]interface{}{
			{stageArg, "guide.md"},
			{stageArg, "nope.pdf"},
		})
		if status != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %v", status, body)
		}
		outputs := body["outputs"].([]interface{})
		if len(outputs) != 2 {
			t.Fatalf("expected 2 outputs, got %d", len(outputs))
		}
		good := outputs[0].(map[string]interface{})
		if good["errorInformation"] != nil {
			t.Errorf("first row should succeed, got %v", good["errorInformation"])
		}
		bad := outputs[1].(map[string]interface{})
		errInfo, ok := bad["errorInformation"].(map[string]interface{})
		if !ok {
			t.Fatalf("expected errorInformation object, got %v", bad["errorInformation"])
		}
		if errInfo["type"] != "NotFound" {
			t.Errorf("expected NotFound failure, got %v", errInfo["type"])
		}
	})

	t.Run("extract text", func(t *testing.T) {
		status, body := f.invoke(t, "ai_extract_text", [][]interface{}{{stageArg, "notes.txt"}})
		if status != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %v", status, body)
		}
		outputs := body["outputs"].([]interface{})
		text, ok := outputs[0].(string)
		if !ok || !strings.Contains(text, "operational notes") {
			t.Errorf("unexpected extraction output: %v", outputs[0])
		}
	})

	t.Run("unknown function", func(t *testing.T) {
		status, body := f.invoke(t, "ai_nothing", [][]interface{}{{"x"}})
		if status != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", status)
		}
		if body["status"] != "error" {
			t.Errorf("expected error status, got %v", body["status"])
		}
	})
}

func TestServerStageOutage(t *testing.T) {
	f := newFixture(t)
	stageArg := f.seedStage(t, "flaky", map[string]string{
		"doc.txt": "content",
	})

	payload, _ := json.Marshal(stageArg)
	loc, err := stage.ParseLocation(payload)
	if err != nil {
		t.Fatalf("parse stage payload: %v", err)
	}
	op, err := f.stages.Get(loc)
	if err != nil {
		t.Fatalf("build operator: %v", err)
	}
	mem := op.Store().(*objectstore.MemoryStore)
	mem.FailWith(objectstore.ErrUnavailable)

	status, body := f.invoke(t, "ai_list_files", [][]interface{}{{stageArg, 10}})
	if status != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d: %v", status, body)
	}
	if body["status"] != "error" {
		t.Errorf("expected error status, got %v", body["status"])
	}

	mem.FailWith(nil)
	status, _ = f.invoke(t, "ai_list_files", [][]interface{}{{stageArg, 10}})
	if status != http.StatusOK {
		t.Fatalf("expected recovery to status 200, got %d", status)
	}
}
