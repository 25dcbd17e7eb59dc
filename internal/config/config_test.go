package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nfnt/resize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/hwr-api/internal/config"
)

// noEnvFile points Load at a path that does not exist.
func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 15, cfg.Threshold)
	assert.Equal(t, 0.3, cfg.MarginRatio)
	assert.Equal(t, 100, cfg.MinStrokeArea)
	assert.Equal(t, 28, cfg.TargetSize)
	assert.Equal(t, 3, cfg.TopK)
	assert.Equal(t, 80, cfg.TierExcellent)
	assert.Equal(t, 60, cfg.TierGood)
	assert.Equal(t, 40, cfg.TierFair)
	assert.True(t, cfg.InvertTensor)
	assert.False(t, cfg.StrictLabels)
	assert.Equal(t, 5*time.Second, cfg.EvalTimeout)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 4096*4096, cfg.MaxImagePixels)
	assert.Nil(t, cfg.Labels)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("BIN_THRESHOLD", "30")
	t.Setenv("MARGIN_RATIO", "0.25")
	t.Setenv("STRICT_LABELS", "true")
	t.Setenv("INVERT_TENSOR", "false")
	t.Setenv("LABELS", "a, b ,c")
	t.Setenv("INTERPOLATION", "Lanczos3")
	t.Setenv("EVAL_TIMEOUT_MS", "250")

	cfg, err := config.Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 30, cfg.Threshold)
	assert.Equal(t, 0.25, cfg.MarginRatio)
	assert.True(t, cfg.StrictLabels)
	assert.False(t, cfg.InvertTensor)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Labels)
	assert.Equal(t, 250*time.Millisecond, cfg.EvalTimeout)

	gc, err := cfg.Grader()
	require.NoError(t, err)
	assert.Equal(t, resize.Lanczos3, gc.Preprocess.Interpolation)
	assert.Equal(t, 30, gc.Preprocess.Threshold)
	assert.False(t, gc.Preprocess.Invert)
	assert.True(t, gc.Scoring.Strict)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("TOP_K", "three")
	t.Setenv("MARGIN_RATIO", "wide")

	cfg, err := config.Load(noEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.TopK)
	assert.Equal(t, 0.3, cfg.MarginRatio)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	cases := map[string][2]string{
		"tier order":    {"TIER_GOOD", "90"},
		"top k":         {"TOP_K", "0"},
		"target size":   {"TARGET_SIZE", "2"},
		"interpolation": {"INTERPOLATION", "sinc"},
		"log level":     {"LOG_LEVEL", "loud"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := config.Load(noEnvFile(t))
			assert.ErrorContains(t, err, "invalid configuration")
		})
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TOP_K=5\nTIER_FAIR=35\n"), 0o644))
	t.Setenv("TOP_K", "")
	t.Setenv("TIER_FAIR", "")
	os.Unsetenv("TOP_K")
	os.Unsetenv("TIER_FAIR")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, 35, cfg.TierFair)
}
