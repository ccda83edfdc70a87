// Package api carries the UDF dispatcher over HTTP. The warehouse invokes
// functions with JSON row batches; the router frames results, maps
// batch-level errors onto statuses, and handles compression both ways.
package api

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/aistage/aistage/internal/config"
	"github.com/aistage/aistage/internal/logging"
	"github.com/aistage/aistage/internal/udf"
)

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		return gzip.NewWriter(nil)
	},
}

type gzipResponseWriter struct {
	http.ResponseWriter
	gz *gzip.Writer
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	return w.gz.Write(b)
}

// loggingResponseWriter captures status code for logging.
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *loggingResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

type Router struct {
	cfg        *config.Config
	mux        *http.ServeMux
	logger     *logging.Logger
	registry   *udf.Registry
	dispatcher *udf.Dispatcher
}

// NewRouter builds the HTTP surface over a built registry and dispatcher.
func NewRouter(cfg *config.Config, registry *udf.Registry, dispatcher *udf.Dispatcher, logger *logging.Logger) *Router {
	if logger == nil {
		logger = logging.New(cfg.LogLevel)
	}
	r := &Router{
		cfg:        cfg,
		mux:        http.NewServeMux(),
		logger:     logger,
		registry:   registry,
		dispatcher: dispatcher,
	}

	r.mux.HandleFunc("GET /healthz", r.handleHealth)
	r.mux.HandleFunc("GET /v1/functions", r.handleCatalog)
	r.mux.HandleFunc("POST /v1/functions/{name}/invoke", r.invokeTimeoutMiddleware(r.handleInvoke))

	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()

	// Generate or extract request ID
	requestID := req.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.New().String()
	}
	w.Header().Set("X-Request-ID", requestID)

	// Build context with request info
	ctx := req.Context()
	ctx = logging.ContextWithRequestID(ctx, requestID)
	ctx = logging.ContextWithRequestTime(ctx, start)
	ctx = logging.ContextWithEndpoint(ctx, req.Method+" "+req.URL.Path)
	req = req.WithContext(ctx)

	// Wrap response writer to capture status code
	lw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	// Check Content-Length for payload size limit
	if req.ContentLength > MaxRequestBodySize {
		r.writeAPIError(lw, ErrPayloadTooLarge("request body exceeds 256MB limit"))
		r.logRequest(req, lw.statusCode, start)
		return
	}

	// Wrap body with a size limiter
	req.Body = http.MaxBytesReader(lw, req.Body, MaxRequestBodySize)
	req.Body = r.decompressBody(req)

	if strings.Contains(req.Header.Get("Accept-Encoding"), "gzip") {
		gz := gzipWriterPool.Get().(*gzip.Writer)
		gz.Reset(lw)
		defer func() {
			gz.Close()
			gzipWriterPool.Put(gz)
		}()

		lw.Header().Set("Content-Encoding", "gzip")
		lw.Header().Del("Content-Length")
		r.mux.ServeHTTP(&gzipResponseWriter{ResponseWriter: lw, gz: gz}, req)
		r.logRequest(req, lw.statusCode, start)
		return
	}

	r.mux.ServeHTTP(lw, req)
	r.logRequest(req, lw.statusCode, start)
}

// logRequest logs the completed request with structured JSON logging.
func (r *Router) logRequest(req *http.Request, status int, start time.Time) {
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	info := &logging.RequestInfo{
		RequestID:     logging.RequestIDFromContext(req.Context()),
		Function:      req.PathValue("name"),
		Endpoint:      req.Method + " " + req.URL.Path,
		ServerTotalMs: elapsed,
	}

	r.logger.WithRequestInfo(info).Info("request completed",
		"status", status,
		"method", req.Method,
		"path", req.URL.Path,
	)
}

// decompressBody unwraps gzip and zstd request bodies. Warehouse clients
// compress large batches.
func (r *Router) decompressBody(req *http.Request) io.ReadCloser {
	switch req.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(req.Body)
		if err != nil {
			return req.Body
		}
		return gz
	case "zstd":
		dec, err := zstd.NewReader(req.Body)
		if err != nil {
			return req.Body
		}
		return dec.IOReadCloser()
	}
	return req.Body
}

// invokeTimeoutMiddleware wraps a handler with the configured per-call
// deadline.
func (r *Router) invokeTimeoutMiddleware(next http.HandlerFunc) http.HandlerFunc {
	timeout := time.Duration(r.cfg.Timeout.GetInvokeTimeout()) * time.Millisecond
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), timeout)
		defer cancel()
		next(w, req.WithContext(ctx))
	}
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleCatalog lists registered function signatures so the warehouse side
// can build its CREATE FUNCTION statements.
func (r *Router) handleCatalog(w http.ResponseWriter, req *http.Request) {
	r.writeJSON(w, http.StatusOK, map[string]interface{}{
		"functions": r.registry.Signatures(),
	})
}

type invokeRequest struct {
	Rows [][]any `json:"rows"`
}

func (r *Router) handleInvoke(w http.ResponseWriter, req *http.Request) {
	name := req.PathValue("name")

	var body invokeRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			r.writeAPIError(w, ErrPayloadTooLarge("request body exceeds 256MB limit"))
			return
		}
		r.writeAPIError(w, ErrInvalidJSON())
		return
	}

	resp, err := r.dispatcher.Dispatch(req.Context(), name, body.Rows)
	if err != nil {
		r.writeAPIError(w, invokeError(err))
		return
	}

	if resp.Kind == udf.KindTable {
		r.writeJSON(w, http.StatusOK, map[string]interface{}{
			"rows":      resp.Rows,
			"truncated": resp.Truncated,
		})
		return
	}
	r.writeJSON(w, http.StatusOK, map[string]interface{}{
		"outputs": resp.Outputs,
	})
}

// invokeError maps dispatcher errors onto HTTP statuses.
func invokeError(err error) *APIError {
	switch {
	case errors.Is(err, udf.ErrUnknownFunction):
		return ErrNotFound(err.Error())
	case errors.Is(err, udf.ErrInvalidArgument):
		return ErrBadRequest(err.Error())
	case errors.Is(err, udf.ErrBatchTooLarge):
		return ErrPayloadTooLarge(err.Error())
	case errors.Is(err, udf.ErrStageUnreachable):
		return ErrBadGateway(err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrGatewayTimeout("call did not complete: " + err.Error())
	default:
		return ErrInternalServer(err.Error())
	}
}

func (r *Router) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (r *Router) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "error",
		"error":  message,
	})
}

func (r *Router) writeAPIError(w http.ResponseWriter, err *APIError) {
	r.writeError(w, err.StatusCode, err.Message)
}
