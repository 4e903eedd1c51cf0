package config

import (
	"path/filepath"
	"testing"
)

func validConfig(t *testing.T) Config {
	t.Helper()
	cfg := Default()
	cfg.ModelPath = writeTempFile(t, t.TempDir(), "model.gguf", "gguf")
	return cfg
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidate_ModelFileNotFound(t *testing.T) {
	for _, p := range []string{"", filepath.Join(t.TempDir(), "missing.gguf"), t.TempDir()} {
		cfg := Default()
		cfg.ModelPath = p
		err := cfg.Validate()
		if !IsModelFileNotFound(err) {
			t.Fatalf("model_path %q: expected model file not found, got %v", p, err)
		}
	}
}

func TestValidate_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeTempFile(t, home, "m.gguf", "gguf")
	cfg := Default()
	cfg.ModelPath = "~/m.gguf"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.ModelPath != filepath.Join(home, "m.gguf") {
		t.Fatalf("model path not expanded: %q", cfg.ModelPath)
	}
}

func TestValidate_ServerBackendSkipsModelFile(t *testing.T) {
	cfg := Default()
	cfg.Backend = "server"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidate_RejectsBadEnums(t *testing.T) {
	mutations := map[string]func(*Config){
		"backend":   func(c *Config) { c.Backend = "onnx" },
		"persona":   func(c *Config) { c.Persona = "nobody" },
		"injection": func(c *Config) { c.Injection = "sometimes" },
		"policy":    func(c *Config) { c.SubmitPolicy = "queue" },
		"speech":    func(c *Config) { c.Speech.Mode = "word" },
		"log level": func(c *Config) { c.LogLevel = "loud" },
		"trace":     func(c *Config) { c.Trace = "jaeger" },
		"budget":    func(c *Config) { c.TokenBudget = 0 },
	}
	for name, mutate := range mutations {
		cfg := validConfig(t)
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
