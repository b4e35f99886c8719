package secrets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRef_Env(t *testing.T) {
	t.Setenv("HAMCP_TEST_SECRET", "top-secret")

	got, err := LoadRef("env:HAMCP_TEST_SECRET")
	if err != nil {
		t.Fatalf("LoadRef(env): %v", err)
	}
	if got != "top-secret" {
		t.Fatalf("unexpected env secret: %q", got)
	}
}

func TestLoadRef_EnvMissing(t *testing.T) {
	t.Setenv("HAMCP_TEST_SECRET", "")

	_, err := LoadRef("env:HAMCP_TEST_SECRET")
	if !errors.Is(err, ErrSecretMissing) {
		t.Fatalf("expected ErrSecretMissing, got %v", err)
	}
}

func TestLoadRef_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.txt")
	if err := os.WriteFile(path, []byte("  file-secret \n"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	got, err := LoadRef("file:" + path)
	if err != nil {
		t.Fatalf("LoadRef(file): %v", err)
	}
	if got != "file-secret" {
		t.Fatalf("unexpected file secret: %q", got)
	}
}

func TestLoadRef_FileMissing(t *testing.T) {
	_, err := LoadRef("file:" + filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, ErrSecretMissing) {
		t.Fatalf("expected ErrSecretMissing, got %v", err)
	}
}

func TestLoadRef_Raw(t *testing.T) {
	got, err := LoadRef("raw:raw-secret")
	if err != nil {
		t.Fatalf("LoadRef(raw): %v", err)
	}
	if got != "raw-secret" {
		t.Fatalf("unexpected raw secret: %q", got)
	}
}

func TestValidateRef(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		ok   bool
	}{
		{name: "env", ref: "env:SUPERVISOR_TOKEN", ok: true},
		{name: "file", ref: "file:/run/secrets/token", ok: true},
		{name: "raw", ref: "raw:abc", ok: true},
		{name: "empty", ref: "", ok: false},
		{name: "no_scheme", ref: "SUPERVISOR_TOKEN", ok: false},
		{name: "empty_env", ref: "env: ", ok: false},
		{name: "vault_unsupported", ref: "vault:secret/data/ha", ok: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRef(tc.ref)
			if tc.ok && err != nil {
				t.Fatalf("ValidateRef(%q): %v", tc.ref, err)
			}
			if !tc.ok && !errors.Is(err, ErrSecretRef) {
				t.Fatalf("ValidateRef(%q) = %v, want ErrSecretRef", tc.ref, err)
			}
		})
	}
}
