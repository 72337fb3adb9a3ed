package spoold

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Workers <= 0 || cfg.QueueDepth <= 0 {
		t.Errorf("bad worker defaults: %+v", cfg)
	}
	if cfg.MaxJobBytes() != int64(cfg.MaxJobMB)*1024*1024 {
		t.Errorf("MaxJobBytes = %d", cfg.MaxJobBytes())
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spoold.yaml")
	yaml := `
listen: ":9090"
db_path: /tmp/jobs.db
data_dir: /tmp/spool-data
workers: 8
max_job_mb: 50
render:
  enabled: false
heuristics:
  lines_per_page: 60
observability:
  db_path: /tmp/obs.db
  retention_days: 7
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Listen != ":9090" || cfg.Workers != 8 || cfg.MaxJobMB != 50 {
		t.Errorf("loaded config: %+v", cfg)
	}
	if cfg.Render.Enabled {
		t.Error("render.enabled not overridden")
	}
	if cfg.Heuristics.LinesPerPage != 60 {
		t.Errorf("heuristics.lines_per_page = %d", cfg.Heuristics.LinesPerPage)
	}
	if cfg.Obs.RetentionDays != 7 {
		t.Errorf("retention_days = %d", cfg.Obs.RetentionDays)
	}
	// Defaults survive for fields the file omits.
	if cfg.QueueDepth != DefaultConfig().QueueDepth {
		t.Errorf("queue_depth default lost: %d", cfg.QueueDepth)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty db_path", func(c *Config) { c.DBPath = "" }},
		{"empty data_dir", func(c *Config) { c.DataDir = "" }},
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"zero queue depth", func(c *Config) { c.QueueDepth = 0 }},
		{"zero max job", func(c *Config) { c.MaxJobMB = 0 }},
		{"render without dimension", func(c *Config) {
			c.Render.Enabled = true
			c.Render.MaxDimension = 0
		}},
		{"ratio above one", func(c *Config) { c.Heuristics.TextPrintableRatio = 1.5 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
