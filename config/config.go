// Package config reads the optional fsl.yaml compile configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/panyam/fsl/bounds"
	"github.com/panyam/fsl/ir"
	"github.com/panyam/fsl/lower"
	"gopkg.in/yaml.v3"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "fsl.yaml"

// Config carries everything a compilation needs besides the source.
type Config struct {
	// LogLevel is one of debug, info, warn, error. Empty keeps the level
	// set up by the caller.
	LogLevel string `yaml:"log_level,omitempty"`

	// Params overrides param values declared in the source.
	Params map[string]int64 `yaml:"params,omitempty"`

	// Inputs gives the shape and value range of input buffers.
	Inputs map[string]InputConfig `yaml:"inputs,omitempty"`

	// Requests replaces the output declarations of the source.
	Requests []RequestConfig `yaml:"requests,omitempty"`

	MaxRegions     int `yaml:"max_regions,omitempty"`
	MaxImportDepth int `yaml:"max_import_depth,omitempty"`

	// Path the config was read from, empty for defaults
	Path string `yaml:"-"`
}

type InputConfig struct {
	Shape []int64 `yaml:"shape,omitempty"`
	Range []int64 `yaml:"range,omitempty"`
}

// RequestConfig is one region request, one [lo, hi] pair per dim.
type RequestConfig struct {
	Pipeline string    `yaml:"pipeline"`
	Region   [][]int64 `yaml:"region"`
}

func Default() *Config {
	return &Config{
		MaxRegions:     bounds.DefaultMaxRegions,
		MaxImportDepth: 10,
	}
}

// Load reads the config at path. An empty path falls back to $FSL_CONFIG
// and then to fsl.yaml, and a missing default file yields the defaults.
// $FSL_LOG_LEVEL overrides the log level in every case.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		if path = os.Getenv("FSL_CONFIG"); path != "" {
			explicit = true
		} else {
			path = DefaultFile
		}
	}

	cfg := Default()
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if cfg, err = Parse(f); err != nil {
			return nil, fmt.Errorf("reading config '%s': %w", path, err)
		}
		cfg.Path = path
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		slog.Debug("no config file, using defaults", "path", path)
	default:
		return nil, fmt.Errorf("opening config: %w", err)
	}

	if level := os.Getenv("FSL_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	return cfg, cfg.Validate()
}

// Parse decodes a config document over the defaults.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	for name, in := range c.Inputs {
		if in.Range != nil && len(in.Range) != 2 {
			return fmt.Errorf("range of input '%s' needs 2 values, found %d", name, len(in.Range))
		}
	}
	for _, r := range c.Requests {
		if r.Pipeline == "" {
			return fmt.Errorf("request without a pipeline")
		}
		for _, iv := range r.Region {
			if len(iv) != 2 {
				return fmt.Errorf("request of '%s' needs [lo, hi] per dim, found %v", r.Pipeline, iv)
			}
		}
	}
	if c.MaxRegions < 0 || c.MaxImportDepth < 0 {
		return fmt.Errorf("limits cannot be negative")
	}
	return nil
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, fmt.Errorf("invalid log level '%s'", c.LogLevel)
	}
	return level, nil
}

// LowerOptions converts params and inputs into lowering options.
func (c *Config) LowerOptions() []lower.Option {
	var opts []lower.Option
	for name, v := range c.Params {
		opts = append(opts, lower.WithParam(name, v))
	}
	for name, in := range c.Inputs {
		if in.Shape != nil {
			opts = append(opts, lower.WithInputShape(name, in.Shape...))
		}
		if len(in.Range) == 2 {
			opts = append(opts, lower.WithInputRange(name, in.Range[0], in.Range[1]))
		}
	}
	return opts
}

func (c *Config) BoundsOptions() []bounds.Option {
	if c.MaxRegions == 0 {
		return nil
	}
	return []bounds.Option{bounds.WithMaxRegions(c.MaxRegions)}
}

// BoundsRequests returns the configured requests. An empty result tells
// bounds inference to use the output declarations.
func (c *Config) BoundsRequests() bounds.Requests {
	var out bounds.Requests
	for _, r := range c.Requests {
		out = append(out, r.Request())
	}
	return out
}

func (r RequestConfig) Request() bounds.Request {
	req := bounds.Request{Pipeline: r.Pipeline}
	for _, iv := range r.Region {
		req.Region = append(req.Region, ir.Span(iv[0], iv[1]))
	}
	return req
}

// ParseRequest parses the command line form pipeline=lo:hi[,lo:hi...].
func ParseRequest(s string) (RequestConfig, error) {
	name, spans, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" || strings.TrimSpace(spans) == "" {
		return RequestConfig{}, fmt.Errorf("invalid request '%s', expected pipeline=lo:hi[,lo:hi...]", s)
	}
	req := RequestConfig{Pipeline: name}
	for _, part := range strings.Split(spans, ",") {
		lo, hi, ok := strings.Cut(part, ":")
		if !ok {
			return RequestConfig{}, fmt.Errorf("invalid span '%s' in request '%s'", part, s)
		}
		l, err := strconv.ParseInt(strings.TrimSpace(lo), 10, 64)
		if err != nil {
			return RequestConfig{}, fmt.Errorf("invalid span '%s' in request '%s': %w", part, s, err)
		}
		h, err := strconv.ParseInt(strings.TrimSpace(hi), 10, 64)
		if err != nil {
			return RequestConfig{}, fmt.Errorf("invalid span '%s' in request '%s': %w", part, s, err)
		}
		req.Region = append(req.Region, []int64{l, h})
	}
	return req, nil
}
