// Package config loads modelchat settings from a file, the environment and
// an optional .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"modelchat/internal/backend"
	"modelchat/pkg/types"
)

// Speech configures narration of responses.
type Speech struct {
	Enabled bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Binary  string `json:"binary" yaml:"binary" toml:"binary"`
	Voice   string `json:"voice" yaml:"voice" toml:"voice"`
	Mode    string `json:"mode" yaml:"mode" toml:"mode"`
	// QueueSize bounds fragments waiting for synthesis; 0 uses the token budget.
	QueueSize int `json:"queue_size" yaml:"queue_size" toml:"queue_size"`
}

// Config holds runtime parameters for the chat host.
type Config struct {
	ModelPath    string           `json:"model_path" yaml:"model_path" toml:"model_path"`
	Backend      string           `json:"backend" yaml:"backend" toml:"backend"`
	ServerURL    string           `json:"server_url" yaml:"server_url" toml:"server_url"`
	Persona      string           `json:"persona" yaml:"persona" toml:"persona"`
	Personas     []types.Persona  `json:"personas" yaml:"personas" toml:"personas"`
	Injection    string           `json:"injection" yaml:"injection" toml:"injection"`
	TokenBudget  int              `json:"token_budget" yaml:"token_budget" toml:"token_budget"`
	SubmitPolicy string           `json:"submit_policy" yaml:"submit_policy" toml:"submit_policy"`
	Sampling     backend.Sampling `json:"sampling" yaml:"sampling" toml:"sampling"`
	Speech       Speech           `json:"speech" yaml:"speech" toml:"speech"`
	LogLevel     string           `json:"log_level" yaml:"log_level" toml:"log_level"`
	MetricsAddr  string           `json:"metrics_addr" yaml:"metrics_addr" toml:"metrics_addr"`
	Trace        string           `json:"trace" yaml:"trace" toml:"trace"`
}

// Default returns the built-in settings. Load decodes over these, so keys a
// file omits keep their default.
func Default() Config {
	return Config{
		Backend:      string(backend.KindLlama),
		ServerURL:    "http://127.0.0.1:8080",
		Persona:      "ai-engineer",
		Injection:    "per-turn",
		TokenBudget:  2000,
		SubmitPolicy: "reject",
		Sampling:     backend.DefaultSampling(),
		Speech: Speech{
			Binary: "espeak",
			Voice:  "english+f5",
			Mode:   "sentence",
		},
		LogLevel: "info",
		Trace:    "none",
	}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyDefaults fills fields left zero by a file or overlay.
func (c *Config) ApplyDefaults() {
	d := Default()
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	if c.ServerURL == "" {
		c.ServerURL = d.ServerURL
	}
	if c.Persona == "" {
		c.Persona = d.Persona
	}
	if c.Injection == "" {
		c.Injection = d.Injection
	}
	if c.TokenBudget <= 0 {
		c.TokenBudget = d.TokenBudget
	}
	if c.SubmitPolicy == "" {
		c.SubmitPolicy = d.SubmitPolicy
	}
	if c.Sampling.Threads <= 0 {
		c.Sampling.Threads = d.Sampling.Threads
	}
	if c.Speech.Binary == "" {
		c.Speech.Binary = d.Speech.Binary
	}
	if c.Speech.Mode == "" {
		c.Speech.Mode = d.Speech.Mode
	}
	if c.Speech.QueueSize <= 0 {
		c.Speech.QueueSize = c.TokenBudget
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.Trace == "" {
		c.Trace = d.Trace
	}
}
