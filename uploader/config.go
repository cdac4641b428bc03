package uploader

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Delta is the overlap subtracted from the cursor before each scan, so
// files written while the previous run was in flight are not missed.
// It accepts either a duration string ("90s") or, for compatibility with
// the legacy ini config, a bare number of seconds.
type Delta struct {
	time.Duration
}

func (d *Delta) UnmarshalYAML(value *yaml.Node) error {
	if value == nil || value.Kind != yaml.ScalarNode {
		return nil
	}
	if secs, err := strconv.Atoi(value.Value); err == nil {
		d.Duration = time.Duration(secs) * time.Second
		return nil
	}
	dur, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse delta_t: %w", err)
	}
	d.Duration = dur
	return nil
}

// AOIConfig describes the log share of one production line.
type AOIConfig struct {
	// Dir is the root of the AOI log share, containing one YYYY_MM_DD
	// subdirectory per day.
	Dir string `yaml:"dir"`
	// Line names the production line; Station is derived from it.
	Line string `yaml:"line"`
	// Chunks is the batch size for inserts.
	Chunks int `yaml:"chunks"`
	// DeltaT re-scans this much history behind the cursor on every run.
	DeltaT Delta `yaml:"delta_t"`
	// ErrorDir receives XMLs that failed to parse. Empty leaves them in place.
	ErrorDir string `yaml:"error_dir"`
}

type FileConfig struct {
	DB     string    `yaml:"db"`
	Cursor string    `yaml:"cursor"`
	Debug  bool      `yaml:"debug"`
	AOI    AOIConfig `yaml:"aoi"`

	// Schedule is a cron spec (e.g. "@every 5m"). Empty means the run mode
	// comes from the command line (--once or --poll-interval).
	Schedule string `yaml:"schedule"`
}

func LoadConfig(path string) (*FileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
