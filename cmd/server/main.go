package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/modnet-matting/internal/config"
	"github.com/Brownie44l1/modnet-matting/internal/handlers"
	"github.com/Brownie44l1/modnet-matting/internal/hub"
	"github.com/Brownie44l1/modnet-matting/internal/matting"
	"github.com/Brownie44l1/modnet-matting/internal/model"
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config")
	port := flag.String("port", "", "Override listen port")
	modelPath := flag.String("model", "", "Use a local model file instead of downloading it")
	cacheDir := flag.String("cache-dir", "", "Override artifact cache directory")
	libPath := flag.String("onnxruntime-lib", "", "Path to the onnxruntime shared library")
	logLevel := flag.String("log-level", "", "Override log level")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	cfg.ApplyEnv(os.Getenv)
	cfg.ApplyOverrides(config.Overrides{
		Port:        *port,
		ModelPath:   *modelPath,
		CacheDir:    *cacheDir,
		LibraryPath: *libPath,
		LogLevel:    *logLevel,
	})
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid config: %v", err)
	}

	log, err := cfg.NewLogger()
	if err != nil {
		logrus.Fatalf("Invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher := hub.NewFetcher(cfg.CacheDir, log)

	modelFile := cfg.ModelPath
	if modelFile == "" {
		modelFile, err = fetcher.Fetch(ctx, cfg.ResolvedModelURL(), cfg.ModelFile)
		if err != nil {
			log.Fatalf("Failed to fetch model: %v", err)
		}
	}
	log.Infof("Loading model from: %s", modelFile)

	engine := model.NewEngine(modelFile, model.Options{
		LibraryPath:    cfg.LibraryPath,
		IntraOpThreads: cfg.IntraOpThreads,
		Logger:         log,
	})
	defer engine.Close()
	if cfg.Preload {
		if err := engine.Load(); err != nil {
			log.Fatalf("Failed to initialize model engine: %v", err)
		}
	}

	examples := fetchExamples(ctx, fetcher, cfg.Examples, log)

	pipeline := matting.NewPipeline(engine,
		matting.WithReferenceSize(cfg.ReferenceSize),
		matting.WithLogger(log),
	)
	handler := handlers.NewHandler(pipeline, handlers.Options{
		Examples:         examples,
		DefaultThreshold: cfg.DefaultThreshold,
		MaxUploadBytes:   cfg.MaxUploadBytes,
		Logger:           log,
		Ready:            func() bool { return !cfg.Preload || engine.Loaded() },
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Infof("Server starting on port %s", cfg.Port)
	log.Info("Endpoints:")
	log.Info("  GET  /                      - Upload form")
	log.Info("  GET  /health                - Health check")
	log.Info("  POST /api/matte             - Remove background from an image upload")
	log.Info("  GET  /api/examples          - Preset examples")
	log.Info("  POST /api/examples/:name    - Run a preset example")
	log.Infof("Upload test: curl -X POST -F \"image=@face.jpg\" -F threshold=100 http://localhost:%s/api/matte -o out.png", cfg.Port)

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	case <-ctx.Done():
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Graceful shutdown failed")
		}
	}
}

// fetchExamples downloads the preset images. A preset that cannot be
// fetched is left out of the UI rather than failing startup.
func fetchExamples(ctx context.Context, fetcher *hub.Fetcher, presets []config.Example, log logrus.FieldLogger) []handlers.Example {
	examples := make([]handlers.Example, 0, len(presets))
	for _, ex := range presets {
		path, err := fetcher.Fetch(ctx, ex.URL, ex.Filename)
		if err != nil {
			log.WithError(err).WithField("example", ex.Name).Warn("Skipping example")
			continue
		}
		examples = append(examples, handlers.Example{Name: ex.Name, Threshold: ex.Threshold, Path: path})
	}
	return examples
}
