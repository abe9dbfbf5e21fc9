package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "data/processed", cfg.Data.ProcessedDir)
	assert.Equal(t, "final_{crop}.csv", cfg.Data.CropPattern)
	assert.Equal(t, "final_soil_ratio.csv", cfg.Data.SoilFile)
	assert.Equal(t, "HangJeongDong_ver20230701.geojson", cfg.Data.BoundaryFile)
	assert.Equal(t, "region_code_mapping.csv", cfg.Data.LinkFile)
	assert.Equal(t, 50, cfg.Search.CropTopN)
	assert.Equal(t, 15, cfg.Search.RegionTopN)
	assert.InDelta(t, 0.2, cfg.Model.TestSize, 0.0001)
	assert.Equal(t, uint64(42), cfg.Model.Seed)
	assert.Equal(t, 5, cfg.Model.CVFolds)
	assert.Len(t, cfg.Model.Families, 5)
	assert.InDelta(t, 36.4109466, cfg.Map.CenterLat, 1e-9)
	assert.Equal(t, 7, cfg.Map.Zoom)
	assert.Equal(t, "cartodbpositron", cfg.Map.Tiles)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
data:
  processed_dir: /srv/crop/processed
log:
  level: debug
  format: json
model:
  cv_folds: 3
  families: [linear, ridge]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/srv/crop/processed", cfg.Data.ProcessedDir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 3, cfg.Model.CVFolds)
	assert.Equal(t, []string{"linear", "ridge"}, cfg.Model.Families)
	// Defaults still apply for unset values
	assert.Equal(t, 50, cfg.Search.CropTopN)
}

func TestLoadExplicitPathMissing(t *testing.T) {
	dir := chdirTemp(t)

	_, err := Load(filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("CROP_LOG_LEVEL", "warn")
	t.Setenv("CROP_SEARCH_CROP_TOP_N", "20")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 20, cfg.Search.CropTopN)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Data.CropPattern = "final_{crop}.csv"
	cfg.Search.CropTopN = 50
	cfg.Search.RegionTopN = 15
	cfg.Search.MapTopN = 30
	cfg.Model.TestSize = 0.2
	cfg.Model.CVFolds = 5
	cfg.Model.Families = []string{"linear", "random_forest"}
	cfg.Map.Zoom = 7
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "test size zero", mutate: func(c *Config) { c.Model.TestSize = 0 }, wantErr: "model.test_size"},
		{name: "test size one", mutate: func(c *Config) { c.Model.TestSize = 1 }, wantErr: "model.test_size"},
		{name: "single fold", mutate: func(c *Config) { c.Model.CVFolds = 1 }, wantErr: "model.cv_folds"},
		{name: "unknown family", mutate: func(c *Config) { c.Model.Families = []string{"xgboost"} }, wantErr: "unknown family xgboost"},
		{name: "zero top n", mutate: func(c *Config) { c.Search.RegionTopN = 0 }, wantErr: "top_n"},
		{name: "bad pattern", mutate: func(c *Config) { c.Data.CropPattern = "crops.csv" }, wantErr: "{crop}"},
		{name: "bad zoom", mutate: func(c *Config) { c.Map.Zoom = 30 }, wantErr: "map.zoom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
