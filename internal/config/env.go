package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// EnvPrefix namespaces the environment overlay.
const EnvPrefix = "MODELCHAT_"

// LoadEnvFile exports the variables of a .env file into the process
// environment. Variables already set win. A missing default file is not an
// error; a missing explicit file is.
func LoadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays MODELCHAT_* variables found through lookup. os.LookupEnv
// is the usual lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	str("MODEL_PATH", &c.ModelPath)
	str("BACKEND", &c.Backend)
	str("SERVER_URL", &c.ServerURL)
	str("PERSONA", &c.Persona)
	str("INJECTION", &c.Injection)
	str("SUBMIT_POLICY", &c.SubmitPolicy)
	str("SPEECH_BINARY", &c.Speech.Binary)
	str("SPEECH_VOICE", &c.Speech.Voice)
	str("SPEECH_MODE", &c.Speech.Mode)
	str("LOG_LEVEL", &c.LogLevel)
	str("METRICS_ADDR", &c.MetricsAddr)
	str("TRACE", &c.Trace)

	if v, ok := lookup(EnvPrefix + "TOKEN_BUDGET"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sTOKEN_BUDGET: %w", EnvPrefix, err)
		}
		c.TokenBudget = n
	}
	if v, ok := lookup(EnvPrefix + "SPEECH"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sSPEECH: %w", EnvPrefix, err)
		}
		c.Speech.Enabled = b
	}
	return nil
}
