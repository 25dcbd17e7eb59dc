package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/Brownie44l1/hwr-api/internal/grader"
	"github.com/Brownie44l1/hwr-api/internal/preprocess"
	"github.com/Brownie44l1/hwr-api/internal/scoring"
)

type Config struct {
	Port         int `validate:"min=1,max=65535"`
	AppEnv       string
	ModelPath    string
	MetadataPath string
	OrtLibrary   string
	Labels       []string

	Threshold     int     `validate:"min=0,max=254"`
	MarginRatio   float64 `validate:"min=0,max=2"`
	MinStrokeArea int     `validate:"min=0"`
	TargetSize    int     `validate:"min=8,max=512"`
	Interpolation string  `validate:"omitempty,oneof=nearest bilinear bicubic mitchell lanczos2 lanczos3"`
	InvertTensor  bool

	TopK          int `validate:"min=1"`
	TierExcellent int `validate:"min=0,max=100,gtefield=TierGood"`
	TierGood      int `validate:"min=0,max=100,gtefield=TierFair"`
	TierFair      int `validate:"min=0,max=100"`
	StrictLabels  bool

	EvalTimeout    time.Duration `validate:"gt=0"`
	MaxUploadBytes int64         `validate:"gt=0"`
	MaxImagePixels int           `validate:"gt=0"`
	RateLimitRPS   float64       `validate:"gte=0"`
	RateLimitBurst int           `validate:"min=1"`

	LogLevel     string `validate:"oneof=trace debug info warn warning error"`
	LogDirectory string
}

// Load reads an optional .env file, then the environment. Explicit
// environment variables take precedence over .env values.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", f, err)
			}
		}
	}

	cfg := &Config{
		Port:         getEnvAsInt("PORT", 8080),
		AppEnv:       getEnv("APP_ENV", "development"),
		ModelPath:    getEnv("MODEL_PATH", filepath.Join(".", "models", "k49_cnn.onnx")),
		MetadataPath: getEnv("METADATA_PATH", filepath.Join(".", "models", "model_metadata.json")),
		OrtLibrary:   getEnv("ONNXRUNTIME_LIB", ""),
		Labels:       splitList(getEnv("LABELS", "")),

		Threshold:     getEnvAsInt("BIN_THRESHOLD", 15),
		MarginRatio:   getEnvAsFloat("MARGIN_RATIO", 0.3),
		MinStrokeArea: getEnvAsInt("MIN_STROKE_AREA", 100),
		TargetSize:    getEnvAsInt("TARGET_SIZE", 28),
		Interpolation: strings.ToLower(getEnv("INTERPOLATION", "bilinear")),
		InvertTensor:  getEnvAsBool("INVERT_TENSOR", true),

		TopK:          getEnvAsInt("TOP_K", 3),
		TierExcellent: getEnvAsInt("TIER_EXCELLENT", 80),
		TierGood:      getEnvAsInt("TIER_GOOD", 60),
		TierFair:      getEnvAsInt("TIER_FAIR", 40),
		StrictLabels:  getEnvAsBool("STRICT_LABELS", false),

		EvalTimeout:    time.Duration(getEnvAsInt("EVAL_TIMEOUT_MS", 5000)) * time.Millisecond,
		MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_MB", 10)) << 20,
		MaxImagePixels: getEnvAsInt("MAX_IMAGE_PIXELS", 4096*4096),
		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 10),

		LogLevel:     strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogDirectory: getEnv("LOG_DIR", filepath.Join(".", "logs")),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Grader converts the tunables into pipeline configuration.
func (c *Config) Grader() (grader.Config, error) {
	interp, err := preprocess.ParseInterpolation(c.Interpolation)
	if err != nil {
		return grader.Config{}, err
	}
	return grader.Config{
		Preprocess: preprocess.Options{
			Threshold:     c.Threshold,
			MarginRatio:   c.MarginRatio,
			MinStrokeArea: c.MinStrokeArea,
			TargetSize:    c.TargetSize,
			Invert:        c.InvertTensor,
			Interpolation: interp,
		},
		Scoring: scoring.Options{
			TopK: c.TopK,
			Thresholds: scoring.Thresholds{
				Excellent: c.TierExcellent,
				Good:      c.TierGood,
				Fair:      c.TierFair,
			},
			Strict: c.StrictLabels,
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
