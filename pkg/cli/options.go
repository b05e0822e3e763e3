package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"cube-sync/internal/config"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	dataDir            string
	envFile            string
	logLevel           string
	logFormat          string
	output             string
	allowUnknownFields bool
}

// flagEnv maps persistent flags to the environment variables that back them
// when the flag is not given explicitly.
var flagEnv = map[string]string{
	"data-dir":   "KBC_DATADIR",
	"log-level":  "LOG_LEVEL",
	"log-format": "LOG_FORMAT",
	"output":     "CUBESYNC_OUTPUT",
}

func (o *rootOptions) bindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.dataDir, "data-dir", "", "Data directory holding config.json and in/tables (default $KBC_DATADIR or /data)")
	fs.StringVar(&o.envFile, "env-file", ".env", "Optional dotenv file loaded before reading the environment")
	fs.StringVar(&o.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&o.logFormat, "log-format", "", "Log format (text, json); defaults to text on a terminal")
	fs.StringVarP(&o.output, "output", "o", "text", "Output format (text, json)")
	fs.BoolVar(&o.allowUnknownFields, "allow-unknown-fields", false, "Ignore unknown keys in config.json")
}

// resolve applies precedence flag > env > default and validates enum flags.
func (o *rootOptions) resolve(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return err
	}

	flags := cmd.Flags()
	var setErr error
	flags.VisitAll(func(f *pflag.Flag) {
		env, ok := flagEnv[f.Name]
		if !ok || f.Changed || setErr != nil {
			return
		}
		if v := os.Getenv(env); v != "" {
			if err := flags.Set(f.Name, v); err != nil {
				setErr = fmt.Errorf("invalid %s from %s: %w", f.Name, env, err)
			}
		}
	})
	if setErr != nil {
		return setErr
	}

	if err := validateOutputFormat(o.output); err != nil {
		return err
	}
	switch strings.ToLower(o.logFormat) {
	case "", "text", "json":
	default:
		return usageErrorf("unsupported log format %q: use 'text' or 'json'", o.logFormat)
	}
	return nil
}

// loadConfig reads config.json from the data directory. A non-empty action
// overrides the one in the file. Flags take precedence over the environment
// values picked up by config.Load.
func (o *rootOptions) loadConfig(action string) (*config.Config, error) {
	cfg, err := config.Load(config.ResolveDataDir(o.dataDir), config.LoadOptions{
		AllowUnknownFields: o.allowUnknownFields,
	})
	if err != nil {
		return nil, usageErrorf("load config: %v", err)
	}
	if action != "" {
		cfg.Action = action
	}
	cfg.LogLevel = o.logLevel
	cfg.LogFormat = o.logFormat
	return cfg, nil
}

// usageError marks a problem with how the CLI was invoked or configured.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...interface{}) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func isUsageError(err error) bool {
	var ue *usageError
	return errors.As(err, &ue)
}
