// Package config loads the analyzer configuration: stage bands, the action
// pattern table, the message catalog and the temp basal thresholds.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/action"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/message"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/pairing"
	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/state"
)

// Config is the root configuration of an analysis run.
type Config struct {
	OperationalStage int             `yaml:"operational_stage"`
	DBPath           string          `yaml:"db_path"`
	Thresholds       ThresholdConfig `yaml:"thresholds"`
	// Actions replaces the whole pattern table when set. Order is priority.
	Actions []ActionConfig `yaml:"actions"`
	Catalog CatalogConfig  `yaml:"catalog"`
}

// ThresholdConfig tunes the temp basal summary.
type ThresholdConfig struct {
	ShortInterval time.Duration `yaml:"short_interval"`
	RepeatWindow  time.Duration `yaml:"repeat_window"`
}

// ActionConfig is one row of the action pattern table.
type ActionConfig struct {
	Name   string   `yaml:"name"`
	Anchor int      `yaml:"anchor"`
	Shape  []string `yaml:"shape"`
}

// CatalogConfig is the request/response vocabulary used by the pairer.
type CatalogConfig struct {
	Requests  []RequestConfig  `yaml:"requests"`
	Responses []ResponseConfig `yaml:"responses"`
}

// RequestConfig maps a request tag to its expected response.
type RequestConfig struct {
	Tag      string `yaml:"tag"`
	Response string `yaml:"response"`
	Label    string `yaml:"label"`
}

// ResponseConfig names a response-only tag.
type ResponseConfig struct {
	Tag   string `yaml:"tag"`
	Label string `yaml:"label"`
}

// Default returns the built-in tables and an on-disk database next to the
// working directory.
func Default() *Config {
	th := action.DefaultThresholds()
	cfg := &Config{
		OperationalStage: state.StageOperational,
		DBPath:           "pod_state.db",
		Thresholds: ThresholdConfig{
			ShortInterval: th.ShortInterval,
			RepeatWindow:  th.RepeatWindow,
		},
	}
	for _, p := range action.DefaultPatterns() {
		shape := make([]string, len(p.Shape))
		for i, tag := range p.Shape {
			shape[i] = string(tag)
		}
		cfg.Actions = append(cfg.Actions, ActionConfig{Name: p.Name, Anchor: p.Anchor, Shape: shape})
	}
	c := pairing.DefaultCatalog()
	for _, r := range c.Requests() {
		cfg.Catalog.Requests = append(cfg.Catalog.Requests, RequestConfig{
			Tag: string(r.Tag), Response: string(r.Response), Label: r.Label,
		})
	}
	for _, r := range c.Responses() {
		cfg.Catalog.Responses = append(cfg.Catalog.Responses, ResponseConfig{Tag: string(r.Tag), Label: r.Label})
	}
	return cfg
}

// Load reads a YAML file at path and overlays it on Default(). A missing file
// (or an empty path) yields the defaults. Environment overrides are applied
// last:
//
//	PODSTATE_DB                 sets db_path
//	PODSTATE_OPERATIONAL_STAGE  sets operational_stage
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		applyEnv(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PODSTATE_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("PODSTATE_OPERATIONAL_STAGE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.OperationalStage = n
		}
	}
}

// Validate returns the first inconsistency found.
func (c *Config) Validate() error {
	if c.OperationalStage < 1 || c.OperationalStage >= state.StageLimit {
		return fmt.Errorf("operational_stage must be between 1 and %d", state.StageLimit-1)
	}
	if c.DBPath == "" {
		return errors.New("db_path must not be empty")
	}
	if c.Thresholds.ShortInterval <= 0 {
		return errors.New("thresholds.short_interval must be positive")
	}
	if c.Thresholds.RepeatWindow <= c.Thresholds.ShortInterval {
		return errors.New("thresholds.repeat_window must exceed thresholds.short_interval")
	}
	if len(c.Actions) == 0 {
		return errors.New("actions must not be empty")
	}
	if _, err := c.Patterns(); err != nil {
		return err
	}
	if _, err := c.PairingCatalog(); err != nil {
		return err
	}
	return nil
}

// Patterns converts the action table. Names must be unique.
func (c *Config) Patterns() ([]action.Pattern, error) {
	seen := make(map[string]bool, len(c.Actions))
	out := make([]action.Pattern, 0, len(c.Actions))
	for _, a := range c.Actions {
		if seen[a.Name] {
			return nil, fmt.Errorf("actions: duplicate name %q", a.Name)
		}
		seen[a.Name] = true
		shape := make([]message.Tag, len(a.Shape))
		for i, tag := range a.Shape {
			shape[i] = message.Tag(tag)
		}
		p, err := action.NewPattern(a.Name, a.Anchor, shape...)
		if err != nil {
			return nil, fmt.Errorf("actions: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

// PairingCatalog converts the catalog section.
func (c *Config) PairingCatalog() (*pairing.Catalog, error) {
	requests := make([]pairing.Request, len(c.Catalog.Requests))
	for i, r := range c.Catalog.Requests {
		requests[i] = pairing.Request{Tag: message.Tag(r.Tag), Response: message.Tag(r.Response), Label: r.Label}
	}
	responses := make([]pairing.Response, len(c.Catalog.Responses))
	for i, r := range c.Catalog.Responses {
		responses[i] = pairing.Response{Tag: message.Tag(r.Tag), Label: r.Label}
	}
	cat, err := pairing.NewCatalog(requests, responses)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return cat, nil
}

// ActionThresholds converts the thresholds section.
func (c *Config) ActionThresholds() action.Thresholds {
	return action.Thresholds{
		ShortInterval: c.Thresholds.ShortInterval,
		RepeatWindow:  c.Thresholds.RepeatWindow,
	}
}
