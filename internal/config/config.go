package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data   DataConfig   `yaml:"data" mapstructure:"data"`
	Search SearchConfig `yaml:"search" mapstructure:"search"`
	Model  ModelConfig  `yaml:"model" mapstructure:"model"`
	Map    MapConfig    `yaml:"map" mapstructure:"map"`
	Output OutputConfig `yaml:"output" mapstructure:"output"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the input files.
type DataConfig struct {
	Dir          string `yaml:"dir" mapstructure:"dir"`
	ProcessedDir string `yaml:"processed_dir" mapstructure:"processed_dir"`
	GeoDir       string `yaml:"geo_dir" mapstructure:"geo_dir"`
	CropPattern  string `yaml:"crop_pattern" mapstructure:"crop_pattern"`
	SoilFile     string `yaml:"soil_file" mapstructure:"soil_file"`
	BoundaryFile string `yaml:"boundary_file" mapstructure:"boundary_file"`
	LinkFile     string `yaml:"link_file" mapstructure:"link_file"`
}

// SearchConfig holds default result sizes for the two search directions.
type SearchConfig struct {
	CropTopN   int `yaml:"crop_top_n" mapstructure:"crop_top_n"`
	RegionTopN int `yaml:"region_top_n" mapstructure:"region_top_n"`
	MapTopN    int `yaml:"map_top_n" mapstructure:"map_top_n"`
}

// ModelConfig configures the price predictor.
type ModelConfig struct {
	TestSize float64  `yaml:"test_size" mapstructure:"test_size"`
	Seed     uint64   `yaml:"seed" mapstructure:"seed"`
	CVFolds  int      `yaml:"cv_folds" mapstructure:"cv_folds"`
	Families []string `yaml:"families" mapstructure:"families"`
	GridFile string   `yaml:"grid_file" mapstructure:"grid_file"`
}

// MapConfig configures the rendered map page.
type MapConfig struct {
	CenterLat float64 `yaml:"center_lat" mapstructure:"center_lat"`
	CenterLon float64 `yaml:"center_lon" mapstructure:"center_lon"`
	Zoom      int     `yaml:"zoom" mapstructure:"zoom"`
	Tiles     string  `yaml:"tiles" mapstructure:"tiles"`
}

// OutputConfig locates generated artifacts.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// StoreConfig configures the optional SQLite export sink.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// modelFamilies lists the accepted model.families values.
var modelFamilies = map[string]bool{
	"linear":        true,
	"ridge":         true,
	"lasso":         true,
	"polynomial":    true,
	"random_forest": true,
}

// Load reads configuration from file and environment. An empty path searches
// the working directory for config.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("CROP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.processed_dir", "data/processed")
	v.SetDefault("data.geo_dir", "data/geo")
	v.SetDefault("data.crop_pattern", "final_{crop}.csv")
	v.SetDefault("data.soil_file", "final_soil_ratio.csv")
	v.SetDefault("data.boundary_file", "HangJeongDong_ver20230701.geojson")
	v.SetDefault("data.link_file", "region_code_mapping.csv")
	v.SetDefault("search.crop_top_n", 50)
	v.SetDefault("search.region_top_n", 15)
	v.SetDefault("search.map_top_n", 30)
	v.SetDefault("model.test_size", 0.2)
	v.SetDefault("model.seed", 42)
	v.SetDefault("model.cv_folds", 5)
	v.SetDefault("model.families", []string{"linear", "ridge", "lasso", "polynomial", "random_forest"})
	v.SetDefault("map.center_lat", 36.4109466)
	v.SetDefault("map.center_lon", 128.1590828)
	v.SetDefault("map.zoom", 7)
	v.SetDefault("map.tiles", "cartodbpositron")
	v.SetDefault("output.dir", "outputs")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional unless given explicitly)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks value ranges that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	var problems []string

	if c.Model.TestSize <= 0 || c.Model.TestSize >= 1 {
		problems = append(problems, "model.test_size must be in (0, 1)")
	}
	if c.Model.CVFolds < 2 {
		problems = append(problems, "model.cv_folds must be at least 2")
	}
	for _, f := range c.Model.Families {
		if !modelFamilies[f] {
			problems = append(problems, "model.families: unknown family "+f)
		}
	}
	if c.Search.CropTopN < 1 || c.Search.RegionTopN < 1 || c.Search.MapTopN < 1 {
		problems = append(problems, "search top_n values must be positive")
	}
	if !strings.Contains(c.Data.CropPattern, "{crop}") {
		problems = append(problems, "data.crop_pattern must contain {crop}")
	}
	if c.Map.Zoom < 0 || c.Map.Zoom > 20 {
		problems = append(problems, "map.zoom must be in [0, 20]")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
