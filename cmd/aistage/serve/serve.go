package serve

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aistage/aistage/internal/config"
	"github.com/aistage/aistage/internal/device"
	"github.com/aistage/aistage/internal/docparse"
	"github.com/aistage/aistage/internal/embedding"
	"github.com/aistage/aistage/internal/logging"
	"github.com/aistage/aistage/internal/stage"
	"github.com/aistage/aistage/internal/udf"
	"github.com/aistage/aistage/pkg/api"
)

func Run(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	addr := fs.String("addr", "", "Listen address (overrides config)")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	logger := logging.New(cfg.LogLevel)
	client := &http.Client{}

	// Resolve the compute device before accepting traffic. A server that
	// cannot reach its inference runtime must not register functions.
	probeCtx, cancelProbe := context.WithTimeout(context.Background(), 10*time.Second)
	caps, err := device.Probe(probeCtx, client, cfg.Backend.BaseURL)
	cancelProbe()
	if err != nil {
		log.Fatalf("Failed to probe inference runtime: %v", err)
	}
	choice, err := device.Choose(caps, cfg.Backend.Device, cfg.Backend.DisableGPU)
	if err != nil {
		log.Fatalf("Failed to choose device: %v", err)
	}
	fmt.Printf("Inference device: %s\n", choice)

	model, err := embedding.Resolve(cfg.Embedding.GetModel())
	if err != nil {
		log.Fatalf("Failed to resolve embedding model: %v", err)
	}
	fmt.Printf("Embedding model: %s (%d dimensions)\n", model.ID, model.Dimensions)

	gate := device.NewGate(cfg.Limits.GetMaxConcurrent())
	requestTimeout := time.Duration(cfg.Backend.GetRequestTimeout()) * time.Millisecond
	backend := embedding.NewGatedBackend(
		embedding.NewHTTPBackend(client, cfg.Backend.BaseURL, model, choice, requestTimeout),
		gate,
	)

	stages := stage.NewCache(cfg.Stage.GetOperatorCacheSize(), stage.Defaults{
		Endpoint: cfg.Stage.DefaultEndpoint,
		Region:   cfg.Stage.GetDefaultRegion(),
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
			log.Fatalf("Failed to register function: %v", err)
		}
		fmt.Printf("Registered function: %s\n", fn.Signature().Name)
	}

	dispatcher := udf.NewDispatcher(registry, cfg.Limits.GetMaxBatchRows(), logger)
	router := api.NewRouter(cfg, registry, dispatcher, logger)

	invokeTimeout := time.Duration(cfg.Timeout.GetInvokeTimeout()) * time.Millisecond
	writeTimeout := invokeTimeout + 5*time.Second
	if writeTimeout < 30*time.Second {
		writeTimeout = 30 * time.Second
	}

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
		go func() {
			fmt.Printf("Serving metrics on %s\n", cfg.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		fmt.Printf("Starting aistage server on %s\n", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	fmt.Println("\nShutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			log.Printf("Metrics shutdown error: %v", err)
		}
	}

	fmt.Println("Server stopped")
}
