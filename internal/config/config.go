package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultConfigPath is the path to the canonical run defaults file.
const DefaultConfigPath = "config/simlidar.defaults.json"

// RunConfig selects a recording, a sensor and the frames to transform, and
// where to send the results. Every field is optional; Get* methods supply
// defaults for anything omitted, so partial files are safe.
type RunConfig struct {
	DatasetPath *string `json:"dataset_path,omitempty"`
	Sensor      *string `json:"sensor,omitempty"`
	Frame       *int    `json:"frame,omitempty"`
	// RangeTo, when set, transforms frames [Frame, RangeTo) instead of one.
	RangeTo     *int  `json:"range_to,omitempty"`
	ApplyYawFix *bool `json:"apply_yaw_fix,omitempty"`
	Workers     *int  `json:"workers,omitempty"`

	// Shape overrides for recordings whose metadata lists non-recorded actors.
	ActorsPerFrame *int `json:"actors_per_frame,omitempty"`
	PointsPerFrame *int `json:"points_per_frame,omitempty"`

	// Outputs
	DBPath        *string `json:"db_path,omitempty"`
	PlotPath      *string `json:"plot_path,omitempty"`
	HTMLPath      *string `json:"html_path,omitempty"`
	HTMLMaxPoints *int    `json:"html_max_points,omitempty"`
}

// Helper functions to create pointers
func ptrInt(v int) *int          { return &v }
func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }

// EmptyRunConfig returns a RunConfig with all fields set to nil.
func EmptyRunConfig() *RunConfig {
	return &RunConfig{}
}

// LoadRunConfig loads a RunConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadRunConfig(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyRunConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Cross-field and filesystem checks wait for Validate, after callers
	// have merged their overrides.
	if err := cfg.validateValues(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents up to the repo root.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *RunConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/simlidar/ or internal/lidar/x/
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadRunConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the complete configuration: every field on its own, the
// frame range, and that output directories exist. Call it once all sources
// have been merged.
func (c *RunConfig) Validate() error {
	if err := c.validateValues(); err != nil {
		return err
	}
	if c.RangeTo != nil && *c.RangeTo < c.GetFrame() {
		return fmt.Errorf("range_to (%d) must not be before frame (%d)", *c.RangeTo, c.GetFrame())
	}
	for name, p := range map[string]*string{"plot_path": c.PlotPath, "html_path": c.HTMLPath} {
		if p == nil || *p == "" {
			continue
		}
		if dir := filepath.Dir(*p); dir != "." {
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				return fmt.Errorf("%s directory %q does not exist", name, dir)
			}
		}
	}
	return nil
}

// validateValues checks each set field in isolation.
func (c *RunConfig) validateValues() error {
	if c.Frame != nil && *c.Frame < 0 {
		return fmt.Errorf("frame must be non-negative, got %d", *c.Frame)
	}
	if c.RangeTo != nil && *c.RangeTo < 0 {
		return fmt.Errorf("range_to must be non-negative, got %d", *c.RangeTo)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.ActorsPerFrame != nil && *c.ActorsPerFrame < 0 {
		return fmt.Errorf("actors_per_frame must be non-negative, got %d", *c.ActorsPerFrame)
	}
	if c.PointsPerFrame != nil && *c.PointsPerFrame < 0 {
		return fmt.Errorf("points_per_frame must be non-negative, got %d", *c.PointsPerFrame)
	}
	if c.HTMLMaxPoints != nil && *c.HTMLMaxPoints < 0 {
		return fmt.Errorf("html_max_points must be non-negative, got %d", *c.HTMLMaxPoints)
	}
	if c.Sensor != nil && strings.TrimSpace(*c.Sensor) == "" {
		return fmt.Errorf("sensor must not be empty")
	}
	return nil
}

// Merge overlays every non-nil field of o onto c.
func (c *RunConfig) Merge(o *RunConfig) {
	if o == nil {
		return
	}
	if o.DatasetPath != nil {
		c.DatasetPath = o.DatasetPath
	}
	if o.Sensor != nil {
		c.Sensor = o.Sensor
	}
	if o.Frame != nil {
		c.Frame = o.Frame
	}
	if o.RangeTo != nil {
		c.RangeTo = o.RangeTo
	}
	if o.ApplyYawFix != nil {
		c.ApplyYawFix = o.ApplyYawFix
	}
	if o.Workers != nil {
		c.Workers = o.Workers
	}
	if o.ActorsPerFrame != nil {
		c.ActorsPerFrame = o.ActorsPerFrame
	}
	if o.PointsPerFrame != nil {
		c.PointsPerFrame = o.PointsPerFrame
	}
	if o.DBPath != nil {
		c.DBPath = o.DBPath
	}
	if o.PlotPath != nil {
		c.PlotPath = o.PlotPath
	}
	if o.HTMLPath != nil {
		c.HTMLPath = o.HTMLPath
	}
	if o.HTMLMaxPoints != nil {
		c.HTMLMaxPoints = o.HTMLMaxPoints
	}
}

// GetDatasetPath returns the dataset_path value or the default.
func (c *RunConfig) GetDatasetPath() string {
	if c.DatasetPath == nil {
		return "robots-4/points-per-frame-1000.hdf5"
	}
	return *c.DatasetPath
}

// GetSensor returns the sensor value or the default.
func (c *RunConfig) GetSensor() string {
	if c.Sensor == nil {
		return "robot_1"
	}
	return *c.Sensor
}

// GetFrame returns the frame value or the default.
func (c *RunConfig) GetFrame() int {
	if c.Frame == nil {
		return 680
	}
	return *c.Frame
}

// GetRangeTo returns the exclusive end frame; a single frame when unset.
func (c *RunConfig) GetRangeTo() int {
	if c.RangeTo == nil {
		return c.GetFrame() + 1
	}
	return *c.RangeTo
}

// GetApplyYawFix returns the apply_yaw_fix value or the default.
func (c *RunConfig) GetApplyYawFix() bool {
	if c.ApplyYawFix == nil {
		return true // recorded datasets need it
	}
	return *c.ApplyYawFix
}

// GetWorkers returns the workers value or the default.
func (c *RunConfig) GetWorkers() int {
	if c.Workers == nil {
		return 4
	}
	return *c.Workers
}

// GetActorsPerFrame returns the actors_per_frame override, 0 to infer.
func (c *RunConfig) GetActorsPerFrame() int {
	if c.ActorsPerFrame == nil {
		return 0
	}
	return *c.ActorsPerFrame
}

// GetPointsPerFrame returns the points_per_frame override, 0 to infer.
func (c *RunConfig) GetPointsPerFrame() int {
	if c.PointsPerFrame == nil {
		return 0
	}
	return *c.PointsPerFrame
}

// GetDBPath returns the SQLite output path, empty to skip persistence.
func (c *RunConfig) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}

// GetPlotPath returns the plot output path, empty to skip.
func (c *RunConfig) GetPlotPath() string {
	if c.PlotPath == nil {
		return ""
	}
	return *c.PlotPath
}

// GetHTMLPath returns the HTML chart output path, empty to skip.
func (c *RunConfig) GetHTMLPath() string {
	if c.HTMLPath == nil {
		return ""
	}
	return *c.HTMLPath
}

// GetHTMLMaxPoints returns the html_max_points value or the default. An
// explicit 0 disables downsampling.
func (c *RunConfig) GetHTMLMaxPoints() int {
	if c.HTMLMaxPoints == nil {
		return 8000
	}
	return *c.HTMLMaxPoints
}
