// Command grade scores handwriting images offline against a target label.
//
//	grade -target あ -model models/k49_cnn.onnx canvas.png
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/hwr-api/internal/config"
	"github.com/Brownie44l1/hwr-api/internal/grader"
	"github.com/Brownie44l1/hwr-api/internal/logger"
	"github.com/Brownie44l1/hwr-api/internal/model"
	"github.com/Brownie44l1/hwr-api/internal/preprocess"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	var (
		target   string
		labels   string
		debugDir string
		verbose  bool
	)
	flag.StringVar(&target, "target", "", "Target label to grade against (required)")
	flag.StringVar(&cfg.ModelPath, "model", cfg.ModelPath, "Path to the ONNX model")
	flag.StringVar(&cfg.MetadataPath, "metadata", cfg.MetadataPath, "Path to the model metadata JSON")
	flag.StringVar(&cfg.OrtLibrary, "ort-lib", cfg.OrtLibrary, "Path to the onnxruntime shared library")
	flag.StringVar(&labels, "labels", "", "Comma separated label override")
	flag.IntVar(&cfg.Threshold, "threshold", cfg.Threshold, "Ink luminance threshold")
	flag.Float64Var(&cfg.MarginRatio, "margin", cfg.MarginRatio, "Crop margin ratio")
	flag.IntVar(&cfg.MinStrokeArea, "min-stroke", cfg.MinStrokeArea, "Minimum stroke area")
	flag.IntVar(&cfg.TopK, "top", cfg.TopK, "Number of ranked candidates")
	flag.BoolVar(&cfg.StrictLabels, "strict", cfg.StrictLabels, "Reject unknown target labels")
	flag.StringVar(&debugDir, "debug", "", "Write each preprocessed 28x28 image into this directory")
	flag.BoolVar(&verbose, "verbose", false, "Log pipeline details")
	flag.Parse()

	files := flag.Args()
	if target == "" || len(files) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s -target LABEL [options] image_files...\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg.AppEnv = "test" // no log files for a CLI run
	if verbose {
		cfg.LogLevel = "debug"
	} else {
		cfg.LogLevel = "warn"
	}
	log := logger.New(cfg)

	if err := run(cfg, log, target, model.ParseLabels(labels), debugDir, files); err != nil {
		log.Fatal(err)
	}
}

func run(cfg *config.Config, log *logrus.Logger, target string, labels []string, debugDir string, files []string) error {
	metadata, err := model.LoadMetadata(cfg.MetadataPath)
	if err != nil {
		return err
	}
	if len(labels) > 0 {
		metadata.Classes = labels
	}
	cfg.TargetSize = metadata.ImageSize

	graderCfg, err := cfg.Grader()
	if err != nil {
		return err
	}

	classifier, err := model.Open(cfg.ModelPath, metadata, cfg.OrtLibrary)
	if err != nil {
		return err
	}
	defer classifier.Close()

	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	for _, path := range files {
		var opts []grader.Option
		opts = append(opts, grader.WithLogger(log))
		if debugDir != "" {
			out := filepath.Join(debugDir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))+"_preprocessed.png")
			opts = append(opts, grader.WithInspector(func(img *preprocess.PixelBuffer) {
				if err := writePNG(out, img); err != nil {
					log.Warnf("debug image %s: %v", out, err)
				}
			}))
		}
		g := grader.New(classifier, metadata.Classes, graderCfg, opts...)

		buf, err := loadImage(path)
		if err != nil {
			return err
		}

		verdict, err := g.Evaluate(context.Background(), buf, target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			continue
		}
		if err := enc.Encode(map[string]any{"file": path, "verdict": verdict}); err != nil {
			return err
		}
	}
	return nil
}

func loadImage(path string) (*preprocess.PixelBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return preprocess.FromImage(img), nil
}

func writePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
