package app

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DEADSEC-SECURITY/claude-home-assistant/internal/homeassistant"
	"github.com/DEADSEC-SECURITY/claude-home-assistant/internal/secrets"
)

func newServeFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.String("token-ref", secrets.DefaultTokenRef, "")
	fs.Duration("timeout", homeassistant.DefaultTimeout, "")
	fs.String("log-level", "info", "")
	fs.String("log-file", "", "")
	fs.String("http-listen", "", "")
	fs.String("http-token-ref", "", "")
	fs.Bool("stdio", true, "")
	fs.String("otel-endpoint", "", "")
	fs.Bool("otel-insecure", false, "")
	return fs
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hamcp.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadServeConfig_Defaults(t *testing.T) {
	cfg, err := loadServeConfig("", newServeFlagSet())
	if err != nil {
		t.Fatalf("loadServeConfig: %v", err)
	}
	if cfg.TokenRef != secrets.DefaultTokenRef {
		t.Fatalf("token ref: got %q", cfg.TokenRef)
	}
	if cfg.Timeout != homeassistant.DefaultTimeout {
		t.Fatalf("timeout: got %s", cfg.Timeout)
	}
	if cfg.LogLevel != "info" || !cfg.Stdio || cfg.HTTPListen != "" || cfg.Tracing.enabled() {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
}

func TestLoadServeConfig_FileEnvFlagPrecedence(t *testing.T) {
	path := writeConfigFile(t, `
token_ref: file:/run/secrets/ha_token
timeout: 10s
log_level: warn
http_listen: 127.0.0.1:9000
tracing:
  endpoint: http://collector:4318
  headers:
    x-team: home
`)
	t.Setenv("HAMCP_LOG_LEVEL", "error")
	t.Setenv("HAMCP_TIMEOUT", "20s")

	fs := newServeFlagSet()
	if err := fs.Parse([]string{"--timeout", "45s"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := loadServeConfig(path, fs)
	if err != nil {
		t.Fatalf("loadServeConfig: %v", err)
	}
	if cfg.TokenRef != "file:/run/secrets/ha_token" {
		t.Fatalf("token ref from file: got %q", cfg.TokenRef)
	}
	if cfg.LogLevel != "error" {
		t.Fatalf("env should override file: got %q", cfg.LogLevel)
	}
	if cfg.Timeout != 45*time.Second {
		t.Fatalf("flag should override env: got %s", cfg.Timeout)
	}
	if cfg.HTTPListen != "127.0.0.1:9000" {
		t.Fatalf("http listen: got %q", cfg.HTTPListen)
	}
	if cfg.Tracing.Endpoint != "http://collector:4318" || cfg.Tracing.Headers["x-team"] != "home" {
		t.Fatalf("tracing: got %#v", cfg.Tracing)
	}
}

func TestLoadServeConfig_UnsetFlagsDoNotOverride(t *testing.T) {
	path := writeConfigFile(t, "log_level: debug\n")
	fs := newServeFlagSet()
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := loadServeConfig(path, fs)
	if err != nil {
		t.Fatalf("loadServeConfig: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("default flag value overrode file: got %q", cfg.LogLevel)
	}
}

func TestLoadServeConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		file string
		want string
	}{
		{name: "bad_token_ref", args: []string{"--token-ref", "vault:x"}, want: "token_ref"},
		{name: "zero_timeout", args: []string{"--timeout", "0s"}, want: "timeout"},
		{name: "bad_log_level", args: []string{"--log-level", "loud"}, want: "log-level"},
		{name: "bad_http_token_ref", args: []string{"--http-token-ref", "plain"}, want: "http_token_ref"},
		{name: "no_transport", args: []string{"--stdio=false"}, want: "http_listen"},
		{name: "tls_without_endpoint", file: "tracing:\n  insecure_skip_verify: true\n", want: "tracing.endpoint"},
		{name: "missing_file", file: "-", want: "read config"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fs := newServeFlagSet()
			if err := fs.Parse(tc.args); err != nil {
				t.Fatalf("parse flags: %v", err)
			}
			path := ""
			switch tc.file {
			case "":
			case "-":
				path = filepath.Join(t.TempDir(), "missing.yaml")
			default:
				path = writeConfigFile(t, tc.file)
			}
			_, err := loadServeConfig(path, fs)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}
