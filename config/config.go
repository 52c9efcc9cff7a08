// config/config.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package config loads the settings of the skycam command from a YAML
// or JSON file. ${VAR} references in the file are replaced with the
// values of environment variables before it is parsed.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mmp/skycam"
	"github.com/mmp/skycam/geodesy"
	"github.com/mmp/skycam/projection"
	"github.com/mmp/skycam/util"

	"github.com/a8m/envsubst"
	"gopkg.in/yaml.v3"
)

const DefaultCategory = "visible"

type Config struct {
	LogLevel string `json:"log_level" yaml:"log_level"`
	// LogDir is where the rotated log file is written; the user's config
	// directory is used if it is empty.
	LogDir string `json:"log_dir" yaml:"log_dir"`
	// CacheDir holds the coordinate cache. If it is empty, mappings are
	// only cached in memory.
	CacheDir       string `json:"cache_dir" yaml:"cache_dir"`
	CalibrationDir string `json:"calibration_dir" yaml:"calibration_dir"`
	// Category selects the calibration, e.g. "visible".
	Category string `json:"category" yaml:"category"`

	Camera     geodesy.CameraPosition `json:"camera" yaml:"camera"`
	Projection projection.Settings    `json:"projection" yaml:"projection"`
	// Earth names the Earth model used for geographic positions: "wgs84"
	// or "sphere".
	Earth string `json:"earth" yaml:"earth"`
	// MemoryCacheSize is the number of coordinate mappings kept in
	// memory.
	MemoryCacheSize int `json:"memory_cache_size" yaml:"memory_cache_size"`
}

// Default returns the configuration used for anything a config file
// doesn't specify.
func Default() *Config {
	c := &Config{
		LogLevel:        "info",
		Category:        DefaultCategory,
		Camera:          geodesy.DefaultCameraPosition(),
		Projection:      projection.DefaultSettings(),
		Earth:           "wgs84",
		MemoryCacheSize: 4,
	}
	if dir, err := util.DefaultCacheDir(); err == nil {
		c.CacheDir = dir
		c.CalibrationDir = filepath.Join(dir, "calibrations")
	}
	return c
}

// Load reads the configuration from path. The format is chosen by the
// file's extension: .yaml, .yml or .json. Fields that are missing from
// the file keep their default values.
func Load(path string) (*Config, error) {
	buf, err := envsubst.ReadFile(path)
	if err != nil {
		var pe *os.PathError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", skycam.ErrConfiguration, path, err)
	}

	c, err := Parse(buf, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse is like Load but takes the contents of the configuration file;
// ext is the file extension that gives its format. Environment
// variables are not substituted.
func Parse(buf []byte, ext string) (*Config, error) {
	c := Default()

	switch ext {
	case ".yaml", ".yml":
		d := yaml.NewDecoder(bytes.NewReader(buf))
		d.KnownFields(true)
		if err := d.Decode(c); err != nil && err != io.EOF {
			return nil, fmt.Errorf("%w: %v", skycam.ErrConfiguration, err)
		}
	case ".json":
		var e util.ErrorLogger
		util.CheckDuplicateJSONKeys(buf, &e)
		if err := e.Err(skycam.ErrConfiguration); err != nil {
			return nil, err
		}

		d := json.NewDecoder(bytes.NewReader(buf))
		d.DisallowUnknownFields()
		if err := d.Decode(c); err != nil {
			return nil, fmt.Errorf("%w: %v", skycam.ErrConfiguration, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q: unknown config file format", skycam.ErrConfiguration, ext)
	}

	c.Projection = c.Projection.WithDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks every field of the configuration and returns an error
// that lists all of the problems it finds.
func (c *Config) Validate() error {
	var e util.ErrorLogger

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		e.ErrorString("log_level: %q must be one of debug, info, warn or error", c.LogLevel)
	}
	if c.Category == "" {
		e.ErrorString("category: must be given")
	} else if strings.ContainsAny(c.Category, `/\`) || c.Category == "." || c.Category == ".." {
		e.ErrorString("category: %q is not a valid name", c.Category)
	}
	if c.MemoryCacheSize < 1 {
		e.ErrorString("memory_cache_size: %d must be at least 1", c.MemoryCacheSize)
	}

	e.Push("camera")
	if err := c.Camera.Validate(); err != nil {
		e.Error(err)
	}
	e.Pop()

	e.Push("projection")
	if err := c.Projection.Validate(); err != nil {
		e.Error(err)
	}
	e.Pop()

	if _, err := geodesy.ModelNamed(c.Earth); err != nil {
		e.Push("earth")
		e.Error(err)
		e.Pop()
	}

	return e.Err(skycam.ErrConfiguration)
}

// EarthModel returns the Earth model named by the configuration.
func (c *Config) EarthModel() geodesy.Model {
	m, err := geodesy.ModelNamed(c.Earth)
	if err != nil {
		return geodesy.WGS84{}
	}
	return m
}
