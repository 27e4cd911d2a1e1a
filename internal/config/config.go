// Copyright The Telegen Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the iotrace agent configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platformbuilds/iotrace/internal/records"
)

// Source types.
const (
	SourceSynthetic = "synthetic"
	SourceBPF       = "bpf"
	SourceNone      = "none"
)

const (
	defaultListen       = ":19090"
	defaultNamespace    = "iotrace"
	defaultCapacity     = 100
	defaultPollInterval = time.Second
	defaultMaxRecords   = 100
)

type Config struct {
	Log           Log           `yaml:"log"`
	SelfTelemetry SelfTelemetry `yaml:"selfTelemetry"`
	Stream        Stream        `yaml:"stream"`
	Watch         Watch         `yaml:"watch"`
	Tracers       []Tracer      `yaml:"tracers"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SelfTelemetry struct {
	Listen string `yaml:"listen"`
	NS     string `yaml:"prometheus_namespace"`
}

// Stream configures the HTTP stream readers.
type Stream struct {
	// PollInterval bounds how long a stream waits for new records before
	// checking its connection again.
	PollInterval time.Duration `yaml:"poll_interval"`
	// MaxRecords is the default number of records per read.
	MaxRecords int `yaml:"max_records"`
}

// Watch configures config file hot reload.
type Watch struct {
	Enabled      bool          `yaml:"enabled"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Tracer configures one trace log and the source feeding it.
type Tracer struct {
	Name     string `yaml:"name"`
	Schema   string `yaml:"schema"`
	Capacity int    `yaml:"capacity"`
	Target   Target `yaml:"target"`
	Source   Source `yaml:"source"`
}

// Target selects the traced device, either by number or by a path on it.
type Target struct {
	Major uint32 `yaml:"major"`
	Minor uint32 `yaml:"minor"`
	Path  string `yaml:"path"`
}

// Resolve returns the target device numbers, looking up Path if set.
func (t Target) Resolve() (major, minor uint32, err error) {
	if t.Path == "" {
		return t.Major, t.Minor, nil
	}
	return records.DeviceOf(t.Path)
}

type Source struct {
	Type             string `yaml:"type"`
	Rate             int    `yaml:"rate"`
	Files            int    `yaml:"files"`
	PinPath          string `yaml:"pin_path"`
	PerCPUBufferSize int    `yaml:"per_cpu_buffer_size"`
}

// SchemaOf returns the parsed record schema of t.
func (t Tracer) SchemaOf() records.Schema {
	s, _ := records.ParseSchema(t.Schema)
	return s
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes, defaults and validates a YAML configuration.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.SelfTelemetry.Listen == "" {
		c.SelfTelemetry.Listen = defaultListen
	}
	if c.SelfTelemetry.NS == "" {
		c.SelfTelemetry.NS = defaultNamespace
	}
	if c.Stream.PollInterval <= 0 {
		c.Stream.PollInterval = defaultPollInterval
	}
	if c.Stream.MaxRecords <= 0 {
		c.Stream.MaxRecords = defaultMaxRecords
	}
	if c.Watch.PollInterval <= 0 {
		c.Watch.PollInterval = 30 * time.Second
	}
	for i := range c.Tracers {
		t := &c.Tracers[i]
		if t.Capacity == 0 {
			t.Capacity = defaultCapacity
		}
		if t.Source.Type == "" {
			t.Source.Type = SourceNone
		}
	}
}

// Validate reports every problem in the configuration.
func (c *Config) Validate() error {
	var errs []error
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	seen := make(map[string]bool)
	for i, t := range c.Tracers {
		at := fmt.Sprintf("tracers[%d]", i)
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", at))
		} else if seen[t.Name] {
			errs = append(errs, fmt.Errorf("%s: duplicate name %q", at, t.Name))
		}
		seen[t.Name] = true

		if _, err := records.ParseSchema(t.Schema); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", at, err))
		}
		if t.Capacity < 2 {
			errs = append(errs, fmt.Errorf("%s: capacity must be at least 2", at))
		}
		if t.Target.Path != "" && t.Target.Major != 0 {
			errs = append(errs, fmt.Errorf("%s: target takes either path or major/minor", at))
		}
		switch t.Source.Type {
		case SourceSynthetic, SourceNone:
		case SourceBPF:
			if t.Source.PinPath == "" {
				errs = append(errs, fmt.Errorf("%s: bpf source requires pin_path", at))
			}
		default:
			errs = append(errs, fmt.Errorf("%s: unknown source type %q", at, t.Source.Type))
		}
	}
	return errors.Join(errs...)
}

// Tracer returns the tracer named name.
func (c *Config) Tracer(name string) (Tracer, bool) {
	for _, t := range c.Tracers {
		if t.Name == name {
			return t, true
		}
	}
	return Tracer{}, false
}
