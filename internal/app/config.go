package app

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/moondance-labs/netports/internal/proc"
)

const envPrefix = "NETPORTS"

// Config holds the settings shared by every command. Flags win over
// NETPORTS_* environment variables.
type Config struct {
	JSON        bool   `mapstructure:"json"`
	Verbose     bool   `mapstructure:"verbose"`
	NoColor     bool   `mapstructure:"no-color"`
	ProcRoot    string `mapstructure:"proc-root"`
	Concurrency int    `mapstructure:"concurrency"`
}

func bindGlobalFlags(flags *pflag.FlagSet) {
	flags.Bool("json", false, "Output machine-readable JSON.")
	flags.BoolP("verbose", "v", false, "Verbose logs to stderr")
	flags.Bool("no-color", false, "Disable colored output")
	flags.String("proc-root", proc.DefaultRoot, "procfs mount point")
	flags.Int("concurrency", proc.DefaultConcurrency, "Maximum concurrent /proc reads")
	_ = flags.MarkHidden("proc-root")
	_ = flags.MarkHidden("concurrency")
}

// loadConfig resolves Config from flags and the environment. A fresh viper
// instance is used per call so nothing leaks between invocations.
func loadConfig(flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return Config{}, errors.Wrap(err, "bind flags")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if cfg.ProcRoot == "" {
		cfg.ProcRoot = proc.DefaultRoot
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = proc.DefaultConcurrency
	}
	return cfg, nil
}
