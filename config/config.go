// Package config loads the match and faction-AI configuration from YAML.
// Load applies defaults, decodes, normalizes and validates the file, and
// checks the raw document against an embedded JSON Schema.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/Vynokris/RTS-AI/model"
	"github.com/Vynokris/RTS-AI/sim"
	"github.com/Vynokris/RTS-AI/strategy"
	"github.com/Vynokris/RTS-AI/utility"
	"github.com/Vynokris/RTS-AI/world"
)

//go:embed schema.json
var schemaJSON []byte

type Config struct {
	Log       LogConfig       `yaml:"log" json:"log"`
	Map       world.GenConfig `yaml:"map" json:"map"`
	World     world.Config    `yaml:"world" json:"world"`
	Influence InfluenceConfig `yaml:"influence" json:"influence"`
	Match     sim.Config      `yaml:"match" json:"match"`
	Decision  DecisionConfig  `yaml:"decision" json:"decision"`
	Factions  []FactionSpec   `yaml:"factions" json:"factions"`
	Journal   JournalConfig   `yaml:"journal" json:"journal"`
	Observer  ObserverConfig  `yaml:"observer" json:"observer"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug | info | warn | error
	Format string `yaml:"format" json:"format"` // text | json
}

type InfluenceConfig struct {
	Resolution  int     `yaml:"resolution" json:"resolution"`
	BlurRadius  int     `yaml:"blurRadius" json:"blurRadius"`
	Sigma       float64 `yaml:"sigma" json:"sigma"`
	Workers     int     `yaml:"workers" json:"workers"`
	TroopWeight float64 `yaml:"troopWeight" json:"troopWeight"`
}

type DecisionConfig struct {
	Interval    time.Duration        `yaml:"interval" json:"interval"`
	ReloadEvery time.Duration        `yaml:"reloadEvery" json:"reloadEvery"` // 0 disables catalog hot reload
	Tuning      strategy.Tuning      `yaml:"tuning" json:"tuning"`
	Actions     []utility.ActionSpec `yaml:"actions" json:"actions"`
}

type FactionSpec struct {
	ID   model.FactionID `yaml:"id" json:"id"`
	Name string          `yaml:"name" json:"name"`
	AI   bool            `yaml:"ai" json:"ai"`
	Seed int64           `yaml:"seed" json:"seed"`
}

type JournalConfig struct {
	Path  string `yaml:"path" json:"path"`   // sqlite file, empty disables
	Trace string `yaml:"trace" json:"trace"` // zstd JSONL trace, empty disables
}

type ObserverConfig struct {
	Addr         string        `yaml:"addr" json:"addr"`     // websocket listen address, empty disables
	Socket       string        `yaml:"socket" json:"socket"` // unix socket tap, empty disables
	HeatmapEvery time.Duration `yaml:"heatmapEvery" json:"heatmapEvery"`
}

// defaultResolution is the raster width used when the map is narrower.
const defaultResolution = 96

// Defaults is a two-faction AI-versus-AI match with the stock catalog. The
// influence resolution is left to Normalize so it can follow map.cols.
func Defaults() Config {
	return Config{
		Log:       LogConfig{Level: "info", Format: "text"},
		Map:       world.DefaultGenConfig(),
		World:     world.DefaultConfig(),
		Influence: InfluenceConfig{BlurRadius: 3, Sigma: 1.5, Workers: 4, TroopWeight: 0.25},
		Match:     sim.DefaultConfig(),
		Decision: DecisionConfig{
			Interval: time.Second,
			Tuning:   strategy.DefaultTuning(),
			Actions:  strategy.DefaultCatalog(),
		},
		Factions: []FactionSpec{
			{ID: 0, Name: "blue", AI: true, Seed: 1},
			{ID: 1, Name: "red", AI: true, Seed: 2},
		},
		Observer: ObserverConfig{HeatmapEvery: 5 * time.Second},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	return parse(path, b)
}

func parse(name string, b []byte) (Config, error) {
	cfg := Defaults()
	if err := validateSchema(b); err != nil {
		return cfg, fmt.Errorf("%s: %w", name, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	// Sequences replace the defaults, so a file listing actions drops the
	// stock catalog.
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("%s: %w", name, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", name, err)
	}
	return cfg, nil
}

// LoadActions reads only the validated action catalog. It backs the catalog
// hot reload.
func LoadActions(path string) ([]utility.ActionSpec, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return cfg.Decision.Actions, nil
}

// Normalize fills zero values with defaults and canonicalizes enums.
func (c *Config) Normalize() {
	d := Defaults()
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Map.TileSize <= 0 {
		c.Map.TileSize = d.Map.TileSize
	}
	if c.Influence.Resolution <= 0 {
		c.Influence.Resolution = max(defaultResolution, c.Map.Cols)
	}
	if c.Influence.Workers <= 0 {
		c.Influence.Workers = 1
	}
	if c.Influence.TroopWeight <= 0 {
		c.Influence.TroopWeight = d.Influence.TroopWeight
	}
	if c.Decision.Interval <= 0 {
		c.Decision.Interval = d.Decision.Interval
	}
	if c.Match.Frame <= 0 {
		c.Match.Frame = d.Match.Frame
	}
	if c.Match.InfluenceEvery <= 0 {
		c.Match.InfluenceEvery = d.Match.InfluenceEvery
	}
	if c.Match.Speed < 0 {
		c.Match.Speed = 0
	}
	for i := range c.Factions {
		c.Factions[i].Name = strings.TrimSpace(c.Factions[i].Name)
		if c.Factions[i].Name == "" {
			c.Factions[i].Name = fmt.Sprintf("faction-%d", c.Factions[i].ID)
		}
	}
}

func (c Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q: want debug, info, warn or error", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q: want text or json", c.Log.Format)
	}
	if c.Map.Cols <= 0 || c.Map.Rows <= 0 {
		return fmt.Errorf("map: size %dx%d must be positive", c.Map.Cols, c.Map.Rows)
	}
	// One tile per raster cell at most, so point writes never clobber a neighbour.
	if c.Influence.Resolution < c.Map.Cols {
		return fmt.Errorf("influence.resolution %d: must be >= map.cols %d", c.Influence.Resolution, c.Map.Cols)
	}
	if c.Influence.BlurRadius < 0 {
		return fmt.Errorf("influence.blurRadius must be >= 0")
	}

	if len(c.Factions) < 2 {
		return fmt.Errorf("factions: need at least 2, got %d", len(c.Factions))
	}
	seen := make(map[model.FactionID]bool, len(c.Factions))
	for _, f := range c.Factions {
		if f.ID == model.Neutral {
			return fmt.Errorf("factions: id %d is reserved", f.ID)
		}
		if seen[f.ID] {
			return fmt.Errorf("factions: duplicate id %d", f.ID)
		}
		seen[f.ID] = true
	}

	names := make(map[string]bool, len(c.Decision.Actions))
	for _, a := range c.Decision.Actions {
		if strings.TrimSpace(a.Name) == "" {
			return fmt.Errorf("decision.actions: empty name")
		}
		if names[a.Name] {
			return fmt.Errorf("decision.actions: duplicate %q", a.Name)
		}
		names[a.Name] = true
		if a.Weight < 0 {
			return fmt.Errorf("decision.actions[%s]: negative weight", a.Name)
		}
		if _, err := a.Curve.Build(); err != nil {
			return fmt.Errorf("decision.actions[%s]: %w", a.Name, err)
		}
	}
	return nil
}

// FactionIDs lists the configured faction ids in order.
func (c Config) FactionIDs() []model.FactionID {
	ids := make([]model.FactionID, len(c.Factions))
	for i, f := range c.Factions {
		ids[i] = f.ID
	}
	return ids
}

// SlogLevel maps the configured level.
func (c Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("config.schema.json", bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile("config.schema.json")
	})
	return schema, schemaErr
}

// validateSchema checks the raw YAML document. It is decoded to generic
// values and round-tripped through JSON so the validator sees JSON types.
func validateSchema(b []byte) error {
	var doc any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}
