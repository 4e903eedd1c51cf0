package config

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"modelchat/internal/backend"
	"modelchat/internal/common/fsutil"
	"modelchat/internal/prompt"
	"modelchat/internal/session"
	"modelchat/internal/speech"
)

// modelFileNotFoundError reports a missing or unusable model_path.
type modelFileNotFoundError struct{ path string }

func (e modelFileNotFoundError) Error() string {
	if e.path == "" {
		return "model file not found: model_path is empty"
	}
	return "model file not found: " + e.path
}

// ErrModelFileNotFound constructs a modelFileNotFoundError.
func ErrModelFileNotFound(path string) error { return modelFileNotFoundError{path: path} }

// IsModelFileNotFound reports whether err came from a missing model file.
func IsModelFileNotFound(err error) bool {
	var m modelFileNotFoundError
	return errors.As(err, &m)
}

// Validate expands ModelPath in place and checks every enumerated setting.
// The model file must exist for the llama backend; the server backend loads
// its own model.
func (c *Config) Validate() error {
	kind, err := backend.ParseKind(c.Backend)
	if err != nil {
		return err
	}
	if c.ModelPath != "" {
		p, err := fsutil.ExpandHome(c.ModelPath)
		if err != nil {
			return err
		}
		c.ModelPath = p
	}
	if kind == backend.KindLlama && (c.ModelPath == "" || !fsutil.RegularFile(c.ModelPath)) {
		return ErrModelFileNotFound(c.ModelPath)
	}
	if kind == backend.KindServer && c.ServerURL == "" {
		return errors.New("server_url is required for the server backend")
	}
	if c.TokenBudget <= 0 {
		return fmt.Errorf("token_budget must be positive, got %d", c.TokenBudget)
	}
	catalog, err := prompt.NewCatalog(c.Personas...)
	if err != nil {
		return err
	}
	if _, err := catalog.Lookup(c.Persona); err != nil {
		return err
	}
	if _, err := prompt.ParseInjection(c.Injection); err != nil {
		return err
	}
	if _, err := session.ParsePolicy(c.SubmitPolicy); err != nil {
		return err
	}
	if _, err := speech.ParseMode(c.Speech.Mode); err != nil {
		return err
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	switch c.Trace {
	case "", "none", "stdout":
	default:
		return fmt.Errorf("unknown trace exporter %q (want none or stdout)", c.Trace)
	}
	return nil
}
