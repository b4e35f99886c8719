package app

import (
	"path/filepath"
	"testing"
)

func TestBuildTracingTLSConfig_None(t *testing.T) {
	cfg, err := buildTracingTLSConfig(tracingConfig{Endpoint: "https://otel.example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != nil {
		t.Fatalf("expected nil config, got %#v", cfg)
	}
}

func TestBuildTracingTLSConfig_MissingCAFile(t *testing.T) {
	_, err := buildTracingTLSConfig(tracingConfig{
		CAFile: filepath.Join(t.TempDir(), "missing-ca.pem"),
	})
	if err == nil {
		t.Fatalf("expected error for missing ca file")
	}
}

func TestBuildTracingTLSConfig_ServerNameAndSkipVerify(t *testing.T) {
	cfg, err := buildTracingTLSConfig(tracingConfig{
		ServerName:         "otel.example.com",
		InsecureSkipVerify: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatalf("expected tls config")
	}
	if cfg.ServerName != "otel.example.com" {
		t.Fatalf("unexpected server name %q", cfg.ServerName)
	}
	if !cfg.InsecureSkipVerify {
		t.Fatalf("expected insecure skip verify true")
	}
}

func TestTracingExporterOptions(t *testing.T) {
	tests := []struct {
		name     string
		cfg      tracingConfig
		wantErr  bool
		wantOpts int
	}{
		{name: "empty", cfg: tracingConfig{}, wantErr: true},
		{name: "not_a_url", cfg: tracingConfig{Endpoint: "collector:4318"}, wantErr: true},
		{name: "plain", cfg: tracingConfig{Endpoint: "http://collector:4318"}, wantOpts: 1},
		{
			name: "headers_and_insecure",
			cfg: tracingConfig{
				Endpoint: "http://collector:4318/v1/traces",
				Insecure: true,
				Headers:  map[string]string{"Authorization": "Bearer x"},
			},
			wantOpts: 3,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts, err := tracingExporterOptions(tc.cfg)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(opts) != tc.wantOpts {
				t.Fatalf("expected %d options, got %d", tc.wantOpts, len(opts))
			}
		})
	}
}
