package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/hwr-api/internal/config"
	"github.com/Brownie44l1/hwr-api/internal/grader"
	"github.com/Brownie44l1/hwr-api/internal/handlers"
	"github.com/Brownie44l1/hwr-api/internal/logger"
	"github.com/Brownie44l1/hwr-api/internal/middleware"
	"github.com/Brownie44l1/hwr-api/internal/model"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	log := logger.New(cfg)

	metadata, err := model.LoadMetadata(cfg.MetadataPath)
	if err != nil {
		log.Warnf("Using default metadata: %v", err)
		metadata = model.DefaultMetadata()
	}
	if len(cfg.Labels) > 0 {
		metadata.Classes = cfg.Labels
	}
	if metadata.ImageSize != cfg.TargetSize {
		log.Warnf("Model expects %dpx input, overriding TARGET_SIZE=%d", metadata.ImageSize, cfg.TargetSize)
		cfg.TargetSize = metadata.ImageSize
	}

	graderCfg, err := cfg.Grader()
	if err != nil {
		log.Fatalf("Invalid pipeline configuration: %v", err)
	}

	log.Infof("Loading model from: %s", cfg.ModelPath)

	// The service stays up without a model; evaluations then report 503.
	var classifier grader.Classifier
	onnx, err := model.Open(cfg.ModelPath, metadata, cfg.OrtLibrary)
	if err != nil {
		log.Errorf("Failed to initialize classifier: %v", err)
	} else {
		defer onnx.Close()
		classifier = onnx
	}

	g := grader.New(classifier, metadata.Classes, graderCfg, grader.WithLogger(log))
	handler := handlers.NewHandler(g, log, cfg.MaxUploadBytes, cfg.MaxImagePixels, cfg.EvalTimeout)
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log)

	srv := &http.Server{
		Addr: ":" + strconv.Itoa(cfg.Port),
		Handler: middleware.Chain(handler.Routes(),
			middleware.WithRequestID,
			middleware.Logging(log),
			middleware.EnableCORS,
			limiter.Middleware,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infof("Server starting on port %d", cfg.Port)
		log.Infof("Classes: %d labels, model loaded: %t", len(metadata.Classes), g.Ready())
		log.Info("Endpoints:")
		log.Info("  GET  /health   - Health check")
		log.Info("  GET  /labels   - Label set")
		log.Info("  GET  /prompt   - Random target character")
		log.Info("  POST /predict  - Raw tensor prediction")
		log.Info("  POST /evaluate - Grade a handwriting image")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithFields(logrus.Fields{"error": err.Error()}).Error("Graceful shutdown failed")
	}
}
