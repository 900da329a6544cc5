// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the orderwatch CLI configuration.
//
// Values are layered: built-in defaults, then the YAML file, then
// ORDERWATCH_* environment variables. The result is validated before use.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/orderwatch/pkg/logging"
	"github.com/AleutianAI/orderwatch/services/orderwatch/history"
	"github.com/AleutianAI/orderwatch/services/orderwatch/source"
	"github.com/AleutianAI/orderwatch/services/orderwatch/telemetry"
)

// Store file names, shared by the data and legacy directories.
const (
	OrdersFileName  = "tesla_orders.json"
	HistoryFileName = "tesla_order_history.json"
)

// ErrInvalid wraps every validation failure returned by Load.
var ErrInvalid = errors.New("config: invalid")

// Config is the full CLI configuration.
type Config struct {
	// DataDir holds the orders and history stores.
	DataDir string `yaml:"data_dir" env:"ORDERWATCH_DATA_DIR" validate:"required"`

	// LegacyDir is searched for stores when DataDir has none.
	LegacyDir string `yaml:"legacy_dir" env:"ORDERWATCH_LEGACY_DIR"`

	// Language selects the display locale. Empty uses the environment.
	Language string `yaml:"language" env:"ORDERWATCH_LANGUAGE" validate:"omitempty,locale"`

	Log       LogConfig       `yaml:"log"`
	Options   OptionsConfig   `yaml:"options"`
	Source    SourceConfig    `yaml:"source"`
	Status    StatusConfig    `yaml:"status"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"ORDERWATCH_LOG_LEVEL" validate:"omitempty,oneof=debug info warn warning error err"`
	Dir   string `yaml:"dir" env:"ORDERWATCH_LOG_DIR"`
	JSON  bool   `yaml:"json" env:"ORDERWATCH_LOG_JSON"`
}

type OptionsConfig struct {
	// File overrides or extends the built-in option code labels. A missing
	// file is ignored.
	File string `yaml:"file" env:"ORDERWATCH_OPTION_CODES"`
}

type SourceConfig struct {
	// Dir is the export directory read by source.DirSource.
	Dir     string `yaml:"dir" env:"ORDERWATCH_SOURCE_DIR"`
	Workers int    `yaml:"workers" env:"ORDERWATCH_SOURCE_WORKERS" validate:"gte=1,lte=32"`
}

type StatusConfig struct {
	// IgnoredPrefixes name change keys that never count as a status change.
	IgnoredPrefixes []string `yaml:"ignored_prefixes" env:"ORDERWATCH_IGNORED_PREFIXES" envSeparator:","`
}

type TelemetryConfig struct {
	TraceFile     string `yaml:"trace_file" env:"ORDERWATCH_TRACE_FILE"`
	MetricsFile   string `yaml:"metrics_file" env:"ORDERWATCH_METRICS_FILE"`
	MetricsFormat string `yaml:"metrics_format" env:"ORDERWATCH_METRICS_FORMAT" validate:"omitempty,oneof=prometheus stdout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataDir:   "~/.orderwatch/data",
		LegacyDir: "~/.orderwatch",
		Log:       LogConfig{Level: "info"},
		Options:   OptionsConfig{File: "~/.orderwatch/option_codes.yaml"},
		Source: SourceConfig{
			Dir:     "~/.orderwatch/export",
			Workers: source.DefaultWorkers,
		},
		Status: StatusConfig{
			IgnoredPrefixes: append([]string(nil), history.DefaultIgnoredPrefixes...),
		},
		Telemetry: TelemetryConfig{MetricsFormat: telemetry.FormatPrometheus},
	}
}

// DefaultPath returns ~/.orderwatch/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".orderwatch", "config.yaml"), nil
}

// Load reads the configuration.
//
// # Description
//
// Starts from Default, overlays the YAML file at path (DefaultPath when
// empty) and then the environment. A missing file is not an error. Paths
// are expanded and the result validated.
//
// # Outputs
//
//   - Config: The merged configuration.
//   - error: Unreadable or malformed file, bad environment value, or a
//     validation failure wrapping ErrInvalid.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}

	data, err := os.ReadFile(logging.ExpandPath(path))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("failed to read the config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse the config file %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	cfg.expand()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) expand() {
	c.DataDir = logging.ExpandPath(c.DataDir)
	c.LegacyDir = logging.ExpandPath(c.LegacyDir)
	c.Log.Dir = logging.ExpandPath(c.Log.Dir)
	c.Options.File = logging.ExpandPath(c.Options.File)
	c.Source.Dir = logging.ExpandPath(c.Source.Dir)
	c.Telemetry.TraceFile = logging.ExpandPath(c.Telemetry.TraceFile)
	c.Telemetry.MetricsFile = logging.ExpandPath(c.Telemetry.MetricsFile)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("locale", validateLocale)
	return v
}

// validateLocale accepts BCP 47 tags and POSIX forms such as de_DE.UTF-8.
func validateLocale(fl validator.FieldLevel) bool {
	value, _, _ := strings.Cut(fl.Field().String(), ".")
	_, err := language.Parse(strings.ReplaceAll(value, "_", "-"))
	return err == nil
}

// Validate checks struct constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// OrdersPaths returns the orders store candidates, data dir first.
func (c Config) OrdersPaths() []string {
	return c.candidates(OrdersFileName)
}

// HistoryPaths returns the history store candidates, data dir first.
func (c Config) HistoryPaths() []string {
	return c.candidates(HistoryFileName)
}

func (c Config) candidates(name string) []string {
	paths := []string{filepath.Join(c.DataDir, name)}
	if c.LegacyDir != "" && filepath.Clean(c.LegacyDir) != filepath.Clean(c.DataDir) {
		paths = append(paths, filepath.Join(c.LegacyDir, name))
	}
	return paths
}
