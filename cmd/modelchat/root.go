package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"modelchat/internal/backend"
	"modelchat/internal/config"
	"modelchat/internal/prompt"
)

// options mirror the persistent flags. A flag overrides the config file and
// environment only when it was set on the command line.
type options struct {
	configPath  string
	envFile     string
	model       string
	backend     string
	serverURL   string
	persona     string
	injection   string
	policy      string
	budget      int
	speech      bool
	logLevel    string
	metricsAddr string
	trace       string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "modelchat",
		Short:         "Chat with a local language model in the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts, true)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, os.Stdout, os.Stderr)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "Config file (.yaml, .yml, .json or .toml)")
	f.StringVar(&opts.envFile, "env-file", "", "Load MODELCHAT_* variables from this file (default ./.env if present)")
	f.StringVar(&opts.model, "model", "", "Path to the model file")
	f.StringVar(&opts.backend, "backend", "", "Model backend: llama|server")
	f.StringVar(&opts.serverURL, "server-url", "", "llama.cpp server URL for --backend server")
	f.StringVar(&opts.persona, "persona", "", "Persona id")
	f.StringVar(&opts.injection, "injection", "", "Preamble injection: per-turn|first-turn")
	f.StringVar(&opts.policy, "policy", "", "Policy for concurrent Session.Submit calls (embedders): reject|preempt")
	f.IntVar(&opts.budget, "budget", 0, "Token budget per response")
	f.BoolVar(&opts.speech, "speech", false, "Narrate responses with espeak")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics, /healthz and /status on this address")
	f.StringVar(&opts.trace, "trace", "", "Trace exporter: none|stdout")

	root.AddCommand(newPersonasCmd(opts), newVersionCmd())
	return root
}

func newPersonasCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "personas",
		Short: "List the available personas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts, false)
			if err != nil {
				return err
			}
			catalog, err := prompt.NewCatalog(cfg.Personas...)
			if err != nil {
				return err
			}
			return listPersonas(cmd.OutOrStdout(), catalog, cfg.Persona)
		},
	}
}

func listPersonas(w io.Writer, c prompt.Catalog, current string) error {
	for _, p := range c.List() {
		mark := " "
		if p.ID == current {
			mark = "*"
		}
		if _, err := fmt.Fprintf(w, "%s %-14s %-16s %s\n", mark, p.ID, p.Name, strings.TrimSpace(p.Preamble)); err != nil {
			return err
		}
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "modelchat %s (llama backend built: %t)\n", version, backend.LlamaBuilt())
		},
	}
}

// loadConfig layers defaults, the config file, the environment and the
// command line, in that order.
func loadConfig(cmd *cobra.Command, opts *options, validate bool) (config.Config, error) {
	if err := config.LoadEnvFile(opts.envFile); err != nil {
		return config.Config{}, err
	}
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	applyFlags(cmd, opts, &cfg)
	cfg.ApplyDefaults()
	if !validate {
		return cfg, nil
	}
	return cfg, cfg.Validate()
}

func applyFlags(cmd *cobra.Command, opts *options, cfg *config.Config) {
	changed := cmd.Flags().Changed
	str := func(name, v string, dst *string) {
		if changed(name) {
			*dst = v
		}
	}
	str("model", opts.model, &cfg.ModelPath)
	str("backend", opts.backend, &cfg.Backend)
	str("server-url", opts.serverURL, &cfg.ServerURL)
	str("persona", opts.persona, &cfg.Persona)
	str("injection", opts.injection, &cfg.Injection)
	str("policy", opts.policy, &cfg.SubmitPolicy)
	str("log-level", opts.logLevel, &cfg.LogLevel)
	str("metrics-addr", opts.metricsAddr, &cfg.MetricsAddr)
	str("trace", opts.trace, &cfg.Trace)
	if changed("budget") {
		cfg.TokenBudget = opts.budget
	}
	if changed("speech") {
		cfg.Speech.Enabled = opts.speech
	}
}

// newLogger writes human-readable logs to w.
func newLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).
		Level(lvl).
		With().Timestamp().Logger()
}
