package app

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/DEADSEC-SECURITY/claude-home-assistant/internal/homeassistant"
	"github.com/DEADSEC-SECURITY/claude-home-assistant/internal/secrets"
)

const envPrefix = "HAMCP"

type serveConfig struct {
	TokenRef     string        `mapstructure:"token_ref"`
	Timeout      time.Duration `mapstructure:"timeout"`
	LogLevel     string        `mapstructure:"log_level"`
	LogFile      string        `mapstructure:"log_file"`
	HTTPListen   string        `mapstructure:"http_listen"`
	// HTTPTokenRef names the bearer token required on POST /mcp.
	HTTPTokenRef string        `mapstructure:"http_token_ref"`
	Stdio        bool          `mapstructure:"stdio"`
	Tracing      tracingConfig `mapstructure:"tracing"`
}

type tracingConfig struct {
	Endpoint           string            `mapstructure:"endpoint"`
	Insecure           bool              `mapstructure:"insecure"`
	Headers            map[string]string `mapstructure:"headers"`
	CAFile             string            `mapstructure:"ca_file"`
	ServerName         string            `mapstructure:"server_name"`
	InsecureSkipVerify bool              `mapstructure:"insecure_skip_verify"`
}

func (c tracingConfig) enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

// serveFlagKeys maps serve flags onto configuration keys. Only flags set on
// the command line override file and environment values.
var serveFlagKeys = map[string]string{
	"token-ref":      "token_ref",
	"timeout":        "timeout",
	"log-level":      "log_level",
	"log-file":       "log_file",
	"http-listen":    "http_listen",
	"http-token-ref": "http_token_ref",
	"stdio":          "stdio",
	"otel-endpoint":  "tracing.endpoint",
	"otel-insecure":  "tracing.insecure",
}

// loadServeConfig layers defaults, the optional YAML file, HAMCP_* environment
// variables and explicitly set flags, in increasing precedence.
func loadServeConfig(path string, fs *flag.FlagSet) (serveConfig, error) {
	v := viper.New()
	v.SetDefault("token_ref", secrets.DefaultTokenRef)
	v.SetDefault("timeout", homeassistant.DefaultTimeout)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("http_listen", "")
	v.SetDefault("http_token_ref", "")
	v.SetDefault("stdio", true)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("tracing.headers", map[string]string{})
	v.SetDefault("tracing.ca_file", "")
	v.SetDefault("tracing.server_name", "")
	v.SetDefault("tracing.insecure_skip_verify", false)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if p := strings.TrimSpace(path); p != "" {
		v.SetConfigFile(p)
		if err := v.ReadInConfig(); err != nil {
			return serveConfig{}, fmt.Errorf("read config %q: %w", p, err)
		}
	}

	if fs != nil {
		fs.Visit(func(f *flag.Flag) {
			if key, ok := serveFlagKeys[f.Name]; ok {
				v.Set(key, f.Value.String())
			}
		})
	}

	var cfg serveConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return serveConfig{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return serveConfig{}, err
	}
	return cfg, nil
}

func (c serveConfig) validate() error {
	var errs []error
	if err := secrets.ValidateRef(c.TokenRef); err != nil {
		errs = append(errs, fmt.Errorf("token_ref: %w", err))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if _, err := parseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.HTTPTokenRef != "" {
		if err := secrets.ValidateRef(c.HTTPTokenRef); err != nil {
			errs = append(errs, fmt.Errorf("http_token_ref: %w", err))
		}
	}
	if !c.Stdio && strings.TrimSpace(c.HTTPListen) == "" {
		errs = append(errs, errors.New("stdio=false requires http_listen"))
	}
	if (c.Tracing.CAFile != "" || c.Tracing.ServerName != "" || c.Tracing.InsecureSkipVerify) && !c.Tracing.enabled() {
		errs = append(errs, errors.New("tracing tls options require tracing.endpoint"))
	}
	return errors.Join(errs...)
}
