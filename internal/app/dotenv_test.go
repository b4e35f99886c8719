package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDotenv_SetsVars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	data := []byte(`
# comment
SUPERVISOR_TOKEN=devtoken
export HAMCP_LOG_LEVEL="debug"
SINGLE='a b'
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	t.Setenv("SUPERVISOR_TOKEN", "")
	t.Setenv("HAMCP_LOG_LEVEL", "")
	t.Setenv("SINGLE", "")
	if err := loadDotenv(path); err != nil {
		t.Fatalf("loadDotenv: %v", err)
	}

	if got := os.Getenv("SUPERVISOR_TOKEN"); got != "devtoken" {
		t.Fatalf("SUPERVISOR_TOKEN=%q, want devtoken", got)
	}
	if got := os.Getenv("HAMCP_LOG_LEVEL"); got != "debug" {
		t.Fatalf("HAMCP_LOG_LEVEL=%q, want debug", got)
	}
	if got := os.Getenv("SINGLE"); got != "a b" {
		t.Fatalf("SINGLE=%q, want 'a b'", got)
	}
}

func TestLoadDotenv_DoesNotOverrideNonEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("SUPERVISOR_TOKEN=devtoken\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	t.Setenv("SUPERVISOR_TOKEN", "prodtoken")
	if err := loadDotenv(path); err != nil {
		t.Fatalf("loadDotenv: %v", err)
	}
	if got := os.Getenv("SUPERVISOR_TOKEN"); got != "prodtoken" {
		t.Fatalf("SUPERVISOR_TOKEN=%q, want prodtoken", got)
	}
}

func TestLoadDotenv_Errors(t *testing.T) {
	dir := t.TempDir()
	if err := loadDotenv(filepath.Join(dir, "missing.env")); err == nil {
		t.Fatalf("expected error for missing file")
	}

	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("BROKEN=\"unterminated\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	if err := loadDotenv(path); err == nil {
		t.Fatalf("expected error for unterminated quote")
	}
}
