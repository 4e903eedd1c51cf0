package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", `model_path: /m/a.gguf
persona: zen-guide
token_budget: 300
sampling:
  temperature: 0.5
speech:
  enabled: true
personas:
  - id: pirate
    marker: Pirate
    preamble: "Arr. "
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ModelPath != "/m/a.gguf" || cfg.Persona != "zen-guide" || cfg.TokenBudget != 300 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Sampling.Temperature != 0.5 || cfg.Sampling.TopK != 40 {
		t.Fatalf("sampling should merge over defaults: %+v", cfg.Sampling)
	}
	if !cfg.Speech.Enabled || cfg.Speech.Voice != "english+f5" {
		t.Fatalf("speech: %+v", cfg.Speech)
	}
	if len(cfg.Personas) != 1 || cfg.Personas[0].Marker != "Pirate" {
		t.Fatalf("personas: %+v", cfg.Personas)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"model_path":"/m/b.gguf","backend":"server","server_url":"http://gpu:8080","submit_policy":"preempt"}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ModelPath != "/m/b.gguf" || cfg.Backend != "server" || cfg.ServerURL != "http://gpu:8080" || cfg.SubmitPolicy != "preempt" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.TokenBudget != 2000 {
		t.Fatalf("default budget lost: %d", cfg.TokenBudget)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "model_path=\"/m/c.gguf\"\ninjection=\"first-turn\"\n[speech]\nmode=\"fragment\"\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ModelPath != "/m/c.gguf" || cfg.Injection != "first-turn" || cfg.Speech.Mode != "fragment" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	if _, err := Load("/definitely/not/a/real/file-12345.yaml"); err == nil {
		t.Fatalf("expected error for nonexistent file")
	}
	d := t.TempDir()
	for name, content := range map[string]string{
		"cfg.txt":  "not supported",
		"bad.yaml": "model_path: /m\n: broken\n",
		"bad.json": `{ "model_path": }`,
		"bad.toml": "model_path=/m\npersona\n",
	} {
		p := writeTempFile(t, d, name, content)
		if _, err := Load(p); err == nil {
			t.Fatalf("expected error for %s", name)
		}
	}
}

func TestApplyDefaults(t *testing.T) {
	var c Config
	c.TokenBudget = 50
	c.ApplyDefaults()
	if c.Backend != "llama" || c.Persona != "ai-engineer" || c.Speech.QueueSize != 50 || c.Trace != "none" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}
