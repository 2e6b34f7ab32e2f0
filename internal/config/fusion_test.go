package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obstacle-detection-system/pkg/fusion"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultFusionConfig(t *testing.T) {
	cfg := DefaultFusionConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, fusion.DefaultConfig(), cfg.ToFusionConfig())
}

func TestEmptyFusionConfigFallsBackToDefaults(t *testing.T) {
	assert.Equal(t, fusion.DefaultConfig(), EmptyFusionConfig().ToFusionConfig())
}

func TestLoadFusionConfig(t *testing.T) {
	path := writeConfig(t, "tuning.json", `{
  "distance_threshold": 15,
  "weights": {"swir": [0, 0, 0, 0, 0, 50, 100]}
}`)

	cfg, err := LoadFusionConfig(path)
	require.NoError(t, err)

	fc := cfg.ToFusionConfig()
	assert.Equal(t, 15.0, fc.DistanceThreshold)
	assert.Equal(t, fusion.DefaultAngleThreshold, fc.AngleThreshold)
	assert.Equal(t, [fusion.ZoneCount]int{0, 0, 0, 0, 0, 50, 100}, fc.Weights[fusion.SensorSWIR])
	assert.Equal(t, fusion.DefaultWeights()[fusion.SensorRGB1], fc.Weights[fusion.SensorRGB1])
	assert.NoError(t, fc.Validate())
}

func TestLoadFusionConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"wrong extension", "tuning.yaml", `{}`},
		{"bad json", "tuning.json", `{"distance_threshold":`},
		{"negative distance", "tuning.json", `{"distance_threshold": -1}`},
		{"zero angle", "tuning.json", `{"angle_threshold": 0}`},
		{"unknown sensor", "tuning.json", `{"weights": {"lidar": [1,1,1,1,1,1,1]}}`},
		{"short row", "tuning.json", `{"weights": {"RGB1": [1,1]}}`},
		{"weight above 100", "tuning.json", `{"weights": {"RGB1": [1,1,1,1,1,1,101]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFusionConfig(writeConfig(t, tt.file, tt.body))
			assert.Error(t, err)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFusionConfig(filepath.Join(t.TempDir(), "absent.json"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestFusionConfigApplyTo(t *testing.T) {
	base := fusion.DefaultConfig()
	base.DistanceThreshold = 12
	base.Weights[fusion.SensorUAV] = [fusion.ZoneCount]int{1, 1, 1, 1, 1, 1, 1}

	angle := 30.0
	override := &FusionConfig{
		AngleThreshold: &angle,
		Weights:        map[string][]int{"thermal": {10, 10, 10, 10, 10, 10, 10}},
	}

	got := override.ApplyTo(base)
	assert.Equal(t, 12.0, got.DistanceThreshold)
	assert.Equal(t, 30.0, got.AngleThreshold)
	assert.Equal(t, [fusion.ZoneCount]int{10, 10, 10, 10, 10, 10, 10}, got.Weights[fusion.SensorThermal])
	assert.Equal(t, [fusion.ZoneCount]int{1, 1, 1, 1, 1, 1, 1}, got.Weights[fusion.SensorUAV])

	// base не змінюється
	assert.Equal(t, fusion.DefaultWeights()[fusion.SensorThermal], base.Weights[fusion.SensorThermal])
}
