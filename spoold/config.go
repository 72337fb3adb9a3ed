package spoold

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spoolworks/spooldoc/docproc"
)

// Config holds the full spoold configuration.
type Config struct {
	Listen     string         `yaml:"listen"`
	DBPath     string         `yaml:"db_path"`
	DataDir    string         `yaml:"data_dir"`
	Workers    int            `yaml:"workers"`
	QueueDepth int            `yaml:"queue_depth"`
	MaxJobMB   int            `yaml:"max_job_mb"`
	Render     RenderConfig   `yaml:"render"`
	Heuristics docproc.Config `yaml:"heuristics"`
	Obs        ObsConfig      `yaml:"observability"`
}

// RenderConfig configures thumbnail rendering.
type RenderConfig struct {
	Enabled      bool `yaml:"enabled"`
	MaxDimension int  `yaml:"max_dimension"`
}

// ObsConfig configures the observability database.
type ObsConfig struct {
	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:     ":8086",
		DBPath:     "spoold.db",
		DataDir:    "data",
		Workers:    4,
		QueueDepth: 64,
		MaxJobMB:   100,
		Render: RenderConfig{
			Enabled:      true,
			MaxDimension: 256,
		},
		Obs: ObsConfig{
			DBPath:        "spoold_obs.db",
			RetentionDays: 30,
		},
	}
}

// LoadConfig reads and parses a YAML config file. Returns DefaultConfig merged with the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0")
	}
	if c.QueueDepth <= 0 {
		return fmt.Errorf("queue_depth must be > 0")
	}
	if c.MaxJobMB <= 0 {
		return fmt.Errorf("max_job_mb must be > 0")
	}
	if c.Render.Enabled && c.Render.MaxDimension <= 0 {
		return fmt.Errorf("render.max_dimension must be > 0 when rendering is enabled")
	}
	if c.Heuristics.TextPrintableRatio < 0 || c.Heuristics.TextPrintableRatio > 1 {
		return fmt.Errorf("heuristics.text_printable_ratio must be in [0,1]")
	}
	return nil
}

// MaxJobBytes returns the maximum accepted job payload in bytes.
func (c *Config) MaxJobBytes() int64 { return int64(c.MaxJobMB) * 1024 * 1024 }
