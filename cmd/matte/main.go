// Command matte removes the background of a single image and writes the
// result as a PNG.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/modnet-matting/internal/config"
	"github.com/Brownie44l1/modnet-matting/internal/hub"
	"github.com/Brownie44l1/modnet-matting/internal/matting"
	"github.com/Brownie44l1/modnet-matting/internal/model"
)

type options struct {
	input      string
	output     string
	threshold  int
	color      string
	background string
	fit        bool
	mask       bool
}

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config")
	modelPath := flag.String("model", "", "Use a local model file instead of downloading it")
	cacheDir := flag.String("cache-dir", "", "Override artifact cache directory")
	libPath := flag.String("onnxruntime-lib", "", "Path to the onnxruntime shared library")
	logLevel := flag.String("log-level", "", "Override log level")

	var opts options
	flag.StringVar(&opts.input, "in", "", "Input image path or http(s) URL")
	flag.StringVar(&opts.output, "out", "out.png", "Output PNG path")
	flag.IntVar(&opts.threshold, "threshold", -1, "Mask cutoff threshold 0..250 (default from config)")
	flag.StringVar(&opts.color, "color", "", "Background colour as #rrggbb; transparent when empty")
	flag.StringVar(&opts.background, "background", "", "Background image path")
	flag.BoolVar(&opts.fit, "fit", true, "Stretch the background image to the input size")
	flag.BoolVar(&opts.mask, "mask", false, "Write the matte instead of the foreground")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	cfg.ApplyEnv(os.Getenv)
	cfg.ApplyOverrides(config.Overrides{
		ModelPath:   *modelPath,
		CacheDir:    *cacheDir,
		LibraryPath: *libPath,
		LogLevel:    *logLevel,
	})
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("invalid config: %v", err)
	}
	log, err := cfg.NewLogger()
	if err != nil {
		logrus.Fatalf("invalid config: %v", err)
	}

	if opts.input == "" {
		flag.Usage()
		os.Exit(2)
	}
	if opts.threshold < 0 {
		opts.threshold = cfg.DefaultThreshold
	}
	if opts.threshold > 250 {
		log.Fatalf("threshold %d is outside 0..250", opts.threshold)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, log); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, log *logrus.Logger) error {
	fetcher := hub.NewFetcher(cfg.CacheDir, log)

	modelFile := cfg.ModelPath
	if modelFile == "" {
		var err error
		modelFile, err = fetcher.Fetch(ctx, cfg.ResolvedModelURL(), cfg.ModelFile)
		if err != nil {
			return errors.Wrap(err, "fetch model")
		}
	}

	engine := model.NewEngine(modelFile, model.Options{
		LibraryPath:    cfg.LibraryPath,
		IntraOpThreads: cfg.IntraOpThreads,
		Logger:         log,
	})
	defer engine.Close()

	pipeline := matting.NewPipeline(engine,
		matting.WithReferenceSize(cfg.ReferenceSize),
		matting.WithLogger(log),
	)

	img, err := loadInput(ctx, fetcher, opts.input)
	if err != nil {
		return err
	}

	var out image.Image
	if opts.mask {
		out, err = pipeline.Matte(ctx, img)
	} else {
		bg, berr := background(opts, img.Bounds())
		if berr != nil {
			return berr
		}
		out, err = pipeline.Run(ctx, img, opts.threshold, bg)
	}
	if err != nil {
		return err
	}

	if err := imaging.Save(out, opts.output); err != nil {
		return errors.Wrapf(err, "save %s", opts.output)
	}
	log.WithFields(logrus.Fields{
		"input":     opts.input,
		"output":    opts.output,
		"threshold": opts.threshold,
	}).Info("done")
	return nil
}

func loadInput(ctx context.Context, fetcher *hub.Fetcher, input string) (image.Image, error) {
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		path, err := fetcher.Fetch(ctx, input, "")
		if err != nil {
			return nil, errors.Wrap(err, "download input")
		}
		input = path
	}
	return matting.Open(input)
}

func background(opts options, bounds image.Rectangle) (matting.Background, error) {
	switch {
	case opts.background != "":
		img, err := matting.Open(opts.background)
		if err != nil {
			return matting.Background{}, err
		}
		if opts.fit {
			return matting.FitImageBackground(img, bounds.Dx(), bounds.Dy())
		}
		return matting.ImageBackground(img), nil
	case opts.color != "":
		c, err := matting.ParseHexColor(opts.color)
		if err != nil {
			return matting.Background{}, err
		}
		return matting.SolidColor(c), nil
	default:
		return matting.Transparent(), nil
	}
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s -in portrait.jpg [-out out.png] [-threshold 100]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
}
