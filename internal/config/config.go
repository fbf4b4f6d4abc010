package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Input    InputConfig    `mapstructure:"input"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Output   OutputConfig   `mapstructure:"output"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// InputConfig describes the outbreak report tables and their columns
type InputConfig struct {
	Paths           []string `mapstructure:"paths"`
	DateColumn      string   `mapstructure:"date_column"`
	CountryColumn   string   `mapstructure:"country_column"`
	SpeciesColumn   string   `mapstructure:"species_column"`
	LatitudeColumn  string   `mapstructure:"latitude_column"`
	LongitudeColumn string   `mapstructure:"longitude_column"`
	DateLayouts     []string `mapstructure:"date_layouts"`
}

// ComparisonConfig is one treatment-versus-control comparison
type ComparisonConfig struct {
	Name         string   `mapstructure:"name"`
	Treatment    string   `mapstructure:"treatment"`
	Controls     []string `mapstructure:"controls"`
	Region       string   `mapstructure:"region"`
	ControlLabel string   `mapstructure:"control_label"`
}

// AnalysisConfig holds the intervention window and comparison design
type AnalysisConfig struct {
	// Intervention window, start inclusive and end exclusive, RFC3339 or 2006-01-02 (UTC)
	WindowStart string             `mapstructure:"window_start"`
	WindowEnd   string             `mapstructure:"window_end"`
	Species     []string           `mapstructure:"species"`
	Regions     map[string]string  `mapstructure:"regions"`
	Comparisons []ComparisonConfig `mapstructure:"comparisons"`
}

// StorageConfig holds SQLite persistence configuration
type StorageConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

// OutputConfig holds report output configuration
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file, environment variables and flags.
// Flags that were set on the command line win over the file; an empty path
// uses defaults only.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("HPAI_ITS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Analysis.Comparisons) == 0 {
		cfg.Analysis.Comparisons = []ComparisonConfig{{
			Name:         "france-vs-europe",
			Treatment:    "France",
			ControlLabel: "Europe (excl. France)",
		}}
	}
	for i := range cfg.Analysis.Comparisons {
		c := &cfg.Analysis.Comparisons[i]
		if c.ControlLabel == "" {
			c.ControlLabel = "control"
		}
		if c.Name == "" {
			c.Name = fmt.Sprintf("%s-vs-%s", strings.ToLower(c.Treatment), c.ControlLabel)
		}
	}

	return &cfg, nil
}

// flag name -> config key
var flagKeys = map[string]string{
	"output":     "output.dir",
	"log-level":  "logging.level",
	"db":         "storage.db_path",
	"no-storage": "",
	"input":      "input.paths",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil || key == "" {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	if f := flags.Lookup("no-storage"); f != nil && f.Changed {
		v.Set("storage.enabled", false)
	}
	return nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Input defaults match the EFSA export column names
	v.SetDefault("input.date_column", "observation date")
	v.SetDefault("input.country_column", "Country")
	v.SetDefault("input.species_column", "Species")
	v.SetDefault("input.latitude_column", "Latitude")
	v.SetDefault("input.longitude_column", "Longitude")

	// French duck vaccination campaign
	v.SetDefault("analysis.window_start", "2023-10-01")
	v.SetDefault("analysis.window_end", "2024-10-01")

	v.SetDefault("storage.enabled", true)
	v.SetDefault("storage.db_path", "./results/hpai-its.db")

	v.SetDefault("output.dir", "./results/analysis")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Window parses the configured intervention bounds as UTC instants.
func (c *AnalysisConfig) Window() (start, end time.Time, err error) {
	if start, err = parseInstant(c.WindowStart); err != nil {
		return start, end, fmt.Errorf("analysis.window_start: %w", err)
	}
	if end, err = parseInstant(c.WindowEnd); err != nil {
		return start, end, fmt.Errorf("analysis.window_end: %w", err)
	}
	return start, end, nil
}

func parseInstant(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as RFC3339 or YYYY-MM-DD", s)
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Input config
	if len(c.Input.Paths) == 0 {
		return fmt.Errorf("input.paths must contain at least one file")
	}
	if c.Input.DateColumn == "" {
		return fmt.Errorf("input.date_column is required")
	}
	if c.Input.CountryColumn == "" {
		return fmt.Errorf("input.country_column is required")
	}

	// Validate Analysis config
	start, end, err := c.Analysis.Window()
	if err != nil {
		return err
	}
	if !end.After(start) {
		return fmt.Errorf("analysis.window_end must be after analysis.window_start")
	}
	seen := make(map[string]bool)
	for i, comp := range c.Analysis.Comparisons {
		if comp.Treatment == "" {
			return fmt.Errorf("analysis.comparisons[%d].treatment is required", i)
		}
		if seen[comp.Name] {
			return fmt.Errorf("analysis.comparisons[%d].name %q is not unique", i, comp.Name)
		}
		seen[comp.Name] = true
		if comp.ControlLabel == comp.Treatment {
			return fmt.Errorf("analysis.comparisons[%d].control_label must differ from treatment", i)
		}
	}

	// Validate Storage config
	if c.Storage.Enabled && c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required when storage is enabled")
	}

	// Validate Output config
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
