// Package config holds the run configuration of the maskflow command.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/swdee/go-maskflow/lgr"
	"github.com/swdee/go-maskflow/tracker"
)

// Environment variables overriding file values
const (
	EnvCacheDir = "MASKFLOW_CACHE_DIR"
	EnvORTLib   = "MASKFLOW_ORT_LIB"
	EnvLogLevel = "MASKFLOW_LOG_LEVEL"
)

// DefaultModel is the model used when none is configured
const DefaultModel = "Microtubule"

// RunConfig is the JSON run configuration.  Unset fields fall back to the
// defaults returned by the Get methods.
type RunConfig struct {
	Model                 *string  `json:"model,omitempty"`
	CacheDir              *string  `json:"cache_dir,omitempty"`
	Workers               *int     `json:"workers,omitempty"`
	LinkingMaxDistance    *float64 `json:"linking_max_distance,omitempty"`
	GapClosingMaxDistance *float64 `json:"gap_closing_max_distance,omitempty"`
	MaxFrameGap           *int     `json:"max_frame_gap,omitempty"`
	MaskThreshold         *float64 `json:"mask_threshold,omitempty"`
	MergeTracks           *bool    `json:"merge_tracks,omitempty"`
	LogFile               *string  `json:"log_file,omitempty"`
	LogLevel              *string  `json:"log_level,omitempty"`
	ORTLibrary            *string  `json:"ort_library,omitempty"`
}

func ptrString(v string) *string { return &v }

// Empty returns a config with every field unset
func Empty() *RunConfig {
	return &RunConfig{}
}

// Load reads the JSON config at path
func Load(path string) (*RunConfig, error) {

	cleanPath := filepath.Clean(path)

	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)

	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	const maxFileSize = 1 << 20

	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)

	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadEnv loads the given .env files into the process environment.  Missing
// files are skipped.
func LoadEnv(files ...string) error {

	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	return nil
}

// ApplyEnv overrides fields with the MASKFLOW_ environment variables that
// are set
func (c *RunConfig) ApplyEnv() {

	if v := os.Getenv(EnvCacheDir); v != "" {
		c.CacheDir = ptrString(v)
	}

	if v := os.Getenv(EnvORTLib); v != "" {
		c.ORTLibrary = ptrString(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = ptrString(v)
	}
}

// Validate checks every set field
func (c *RunConfig) Validate() error {

	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}

	if c.MaskThreshold != nil && (*c.MaskThreshold <= 0 || *c.MaskThreshold > 1) {
		return fmt.Errorf("mask_threshold must be in (0, 1], got %v", *c.MaskThreshold)
	}

	if c.Model != nil && strings.TrimSpace(*c.Model) == "" {
		return errors.New("model must not be empty")
	}

	if c.LogLevel != nil {
		if _, err := lgr.ParseLevel(*c.LogLevel); err != nil {
			return err
		}
	}

	if err := c.TrackerParams().Validate(); err != nil {
		return err
	}

	return nil
}

// GetModel returns the model name or bundle location
func (c *RunConfig) GetModel() string {
	if c.Model == nil {
		return DefaultModel
	}
	return *c.Model
}

// GetCacheDir returns the model cache directory, by default maskflow under
// the user cache directory
func (c *RunConfig) GetCacheDir() string {
	if c.CacheDir != nil {
		return *c.CacheDir
	}

	dir, err := os.UserCacheDir()

	if err != nil {
		dir = os.TempDir()
	}

	return filepath.Join(dir, "maskflow")
}

// GetWorkers returns the number of models in the inference pool
func (c *RunConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}

// GetMaskThreshold returns the mask binarization threshold
func (c *RunConfig) GetMaskThreshold() float32 {
	if c.MaskThreshold == nil {
		return tracker.DefaultThreshold
	}
	return float32(*c.MaskThreshold)
}

// GetMergeTracks returns whether tracks joined by a link are merged
func (c *RunConfig) GetMergeTracks() bool {
	if c.MergeTracks == nil {
		return false
	}
	return *c.MergeTracks
}

// GetLogFile returns the rotating log file path, empty disables file logging
func (c *RunConfig) GetLogFile() string {
	if c.LogFile == nil {
		return ""
	}
	return *c.LogFile
}

// GetLogLevel returns the log level name
func (c *RunConfig) GetLogLevel() string {
	if c.LogLevel == nil {
		return "info"
	}
	return *c.LogLevel
}

// GetORTLibrary returns the onnxruntime shared library path, empty uses the
// library default
func (c *RunConfig) GetORTLibrary() string {
	if c.ORTLibrary == nil {
		return ""
	}
	return *c.ORTLibrary
}

// TrackerParams returns the solver limits with defaults for unset fields
func (c *RunConfig) TrackerParams() tracker.Params {
	p := tracker.DefaultParams()

	if c.LinkingMaxDistance != nil {
		p.LinkingMaxDistance = *c.LinkingMaxDistance
	}

	if c.GapClosingMaxDistance != nil {
		p.GapClosingMaxDistance = *c.GapClosingMaxDistance
	}

	if c.MaxFrameGap != nil {
		p.MaxFrameGap = *c.MaxFrameGap
	}

	return p
}
