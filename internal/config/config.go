// Package config loads the liderforte YAML configuration and applies
// LIDERFORTE_* environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"liderforte/internal/blob"
	"liderforte/internal/core"
	"liderforte/internal/logging"
)

// Environment variables read by FromEnv in addition to the storage and blob ones.
const (
	EnvEnvironment = "LIDERFORTE_ENV"
	EnvLogLevel    = "LIDERFORTE_LOG_LEVEL"
	EnvLogFormat   = "LIDERFORTE_LOG_FORMAT"
)

// OrgScoring overrides scoring for one organization. Nil fields inherit.
type OrgScoring struct {
	LeadershipThreshold  *float64 `yaml:"leadership_threshold"`
	StabilityPlaceholder *float64 `yaml:"stability_placeholder"`
	PreparingMargin      *float64 `yaml:"preparing_margin"`
	MoveRatio            *float64 `yaml:"move_ratio"`
	OverdueAfterDays     *int     `yaml:"overdue_after_days"`
}

// Scoring mirrors core.Settings in file form. Zero values keep the defaults.
type Scoring struct {
	LeadershipThreshold     float64               `yaml:"leadership_threshold"`
	MinimumMembers          int                   `yaml:"minimum_members"`
	StabilityPlaceholder    float64               `yaml:"stability_placeholder"`
	PreparingMargin         float64               `yaml:"preparing_margin"`
	OverdueAfterDays        int                   `yaml:"overdue_after_days"`
	ProjectionHorizonMonths int                   `yaml:"projection_horizon_months"`
	MoveRatio               float64               `yaml:"move_ratio"`
	Organizations           map[string]OrgScoring `yaml:"organizations"`
}

// Config is the root of liderforte.yaml.
type Config struct {
	Env     string             `yaml:"env"`
	Storage core.StorageConfig `yaml:"storage"`
	Blob    blob.Config        `yaml:"blob"`
	Logging logging.Config     `yaml:"logging"`
	Scoring Scoring            `yaml:"scoring"`
}

// Default returns the configuration used without a file.
func Default() Config {
	return Config{
		Env:     "development",
		Storage: core.StorageConfig{Driver: string(core.StorageSQLite), SQLitePath: "liderforte.db"},
		Blob:    blob.Config{Driver: string(blob.DriverFilesystem), FSRoot: "archive"},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error when path is empty.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := Parse(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if data, err := os.ReadFile("liderforte.yaml"); err == nil {
		if err := Parse(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config liderforte.yaml: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("read config liderforte.yaml: %w", err)
	}
	cfg = FromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, rejecting unknown keys.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// FromEnv overlays LIDERFORTE_* variables on cfg.
func FromEnv(cfg Config) Config {
	if v, ok := os.LookupEnv(EnvEnvironment); ok {
		cfg.Env = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		cfg.Logging.Level = v
	}
	if v, ok := os.LookupEnv(EnvLogFormat); ok {
		cfg.Logging.Format = v
	}
	cfg.Storage = core.StorageConfigFromEnv(cfg.Storage)
	cfg.Blob = blob.ConfigFromEnv(cfg.Blob)
	return cfg
}

// Validate checks ranges of the scoring section.
func (c Config) Validate() error {
	s := c.Scoring
	var problems []string
	if s.LeadershipThreshold < 0 || s.LeadershipThreshold > 100 {
		problems = append(problems, "scoring.leadership_threshold must be within 0..100")
	}
	if s.StabilityPlaceholder < 0 || s.StabilityPlaceholder > 100 {
		problems = append(problems, "scoring.stability_placeholder must be within 0..100")
	}
	if s.PreparingMargin < 0 || s.PreparingMargin >= 1 {
		problems = append(problems, "scoring.preparing_margin must be within [0,1)")
	}
	if s.MoveRatio < 0 || s.MoveRatio >= 1 {
		problems = append(problems, "scoring.move_ratio must be within [0,1)")
	}
	if s.MinimumMembers < 0 || s.OverdueAfterDays < 0 || s.ProjectionHorizonMonths < 0 {
		problems = append(problems, "scoring counts must not be negative")
	}
	for org, o := range s.Organizations {
		if o.MoveRatio != nil && (*o.MoveRatio <= 0 || *o.MoveRatio >= 1) {
			problems = append(problems, fmt.Sprintf("scoring.organizations.%s.move_ratio must be within (0,1)", org))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Settings converts the scoring section into core.Settings.
func (c Config) Settings() core.Settings {
	out := core.DefaultSettings()
	s := c.Scoring
	if s.LeadershipThreshold > 0 {
		out.LeadershipThreshold = s.LeadershipThreshold
	}
	if s.MinimumMembers > 0 {
		out.MinimumMembers = s.MinimumMembers
	}
	if s.StabilityPlaceholder > 0 {
		out.StabilityPlaceholder = s.StabilityPlaceholder
	}
	if s.PreparingMargin > 0 {
		out.PreparingMargin = s.PreparingMargin
	}
	if s.OverdueAfterDays > 0 {
		out.OverdueAfter = days(s.OverdueAfterDays)
	}
	if s.ProjectionHorizonMonths > 0 {
		out.ProjectionHorizonMonths = s.ProjectionHorizonMonths
	}
	if s.MoveRatio > 0 {
		out.MoveRatio = s.MoveRatio
	}
	if len(s.Organizations) > 0 {
		out.Organizations = make(map[string]core.OrgSettings, len(s.Organizations))
		for org, o := range s.Organizations {
			override := core.OrgSettings{
				LeadershipThreshold:  o.LeadershipThreshold,
				StabilityPlaceholder: o.StabilityPlaceholder,
				PreparingMargin:      o.PreparingMargin,
				MoveRatio:            o.MoveRatio,
			}
			if o.OverdueAfterDays != nil {
				d := days(*o.OverdueAfterDays)
				override.OverdueAfter = &d
			}
			out.Organizations[org] = override
		}
	}
	return out
}

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }
