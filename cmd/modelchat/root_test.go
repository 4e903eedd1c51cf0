package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"modelchat/internal/config"
)

func TestPersonasCommand(t *testing.T) {
	t.Setenv("MODELCHAT_PERSONA", "zen-guide")
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"personas"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "  ai-engineer") || !strings.HasPrefix(lines[1], "* zen-guide") {
		t.Fatalf("output:\n%s", out.String())
	}
}

func TestRootCommand_MissingModelIsFatal(t *testing.T) {
	t.Setenv("MODELCHAT_MODEL_PATH", "")
	root := newRootCmd()
	root.SetArgs([]string{"--model", t.TempDir() + "/missing.gguf"})
	err := root.Execute()
	if !config.IsModelFileNotFound(err) {
		t.Fatalf("expected model file not found, got %v", err)
	}
	if exitCode(err) != 2 || exitCode(errors.New("other")) != 1 {
		t.Fatal("unexpected exit codes")
	}
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("MODELCHAT_TOKEN_BUDGET", "64")
	t.Setenv("MODELCHAT_INJECTION", "first-turn")
	root := newRootCmd()
	if err := root.ParseFlags([]string{"--budget", "10"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := loadConfig(root, &options{budget: 10}, false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TokenBudget != 10 || cfg.Injection != "first-turn" || cfg.Speech.QueueSize != 10 {
		t.Fatalf("cfg: %+v", cfg)
	}
}
