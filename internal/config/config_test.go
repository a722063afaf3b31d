package config

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", envMap(nil))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ListenAddr != ":3000" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.Cookie.MaxAge != time.Hour || !cfg.Cookie.Secure || !cfg.Cookie.HttpOnly {
		t.Errorf("unexpected cookie defaults: %+v", cfg.Cookie)
	}
	if cfg.Revocation.Backend != BackendNone {
		t.Errorf("Backend = %q", cfg.Revocation.Backend)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookiedemo.yaml")
	data := `
listen_addr: ":9000"
cookie:
  name: app_session
  secrets:
    - "the-newest-secret-which-is-long-enough"
    - "the-previous-secret-still-long-enough!"
  max_age: 30m
  same_site: strict
  encrypt: true
revocation:
  backend: sqlite
  dsn: revocations.db
log:
  level: debug
  format: text
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path, envMap(map[string]string{
		"COOKIEDEMO_LISTEN_ADDR":   "127.0.0.1:8081",
		"COOKIEDEMO_COOKIE_SECURE": "false",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ListenAddr != "127.0.0.1:8081" {
		t.Errorf("env should override file, ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.Cookie.Name != "app_session" || cfg.Cookie.MaxAge != 30*time.Minute || !cfg.Cookie.Encrypt {
		t.Errorf("unexpected cookie config: %+v", cfg.Cookie)
	}
	if cfg.Cookie.Secure {
		t.Error("COOKIEDEMO_COOKIE_SECURE=false should disable Secure")
	}
	if len(cfg.Cookie.Secrets) != 2 {
		t.Errorf("expected 2 secrets, got %d", len(cfg.Cookie.Secrets))
	}
	if cfg.Revocation.Backend != BackendSQLite || cfg.Revocation.DSN != "revocations.db" {
		t.Errorf("unexpected revocation config: %+v", cfg.Revocation)
	}
	// Untouched defaults survive a partial file.
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}

	mc := cfg.ManagerConfig()
	if mc.SameSite != http.SameSiteStrictMode || *mc.Secure || mc.TTL != 30*time.Minute {
		t.Errorf("unexpected manager config: %+v", mc)
	}
	if string(mc.Secrets[0]) != "the-newest-secret-which-is-long-enough" {
		t.Errorf("secret order not preserved: %q", mc.Secrets[0])
	}
}

func TestLoad_EnvSecrets(t *testing.T) {
	cfg, err := Load("", envMap(map[string]string{
		"COOKIEDEMO_SESSION_SECRETS": " first-secret-that-is-long-enough-to-use , second-secret-that-is-long-enough-too ",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []string{"first-secret-that-is-long-enough-to-use", "second-secret-that-is-long-enough-too"}
	if strings.Join(cfg.Cookie.Secrets, "|") != strings.Join(want, "|") {
		t.Errorf("Secrets = %q, want %q", cfg.Cookie.Secrets, want)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"short secret", map[string]string{"COOKIEDEMO_SESSION_SECRETS": "short"}, "cookie.secrets[0]"},
		{"bad bool", map[string]string{"COOKIEDEMO_COOKIE_SECURE": "maybe"}, "COOKIE_SECURE"},
		{"bad duration", map[string]string{"COOKIEDEMO_COOKIE_MAX_AGE": "soon"}, "COOKIE_MAX_AGE"},
		{"unknown backend", map[string]string{"COOKIEDEMO_REVOCATION_BACKEND": "etcd"}, "unknown revocation.backend"},
		{"missing dsn", map[string]string{"COOKIEDEMO_REVOCATION_BACKEND": "postgres"}, "revocation.dsn"},
		{"missing addrs", map[string]string{"COOKIEDEMO_REVOCATION_BACKEND": "redis"}, "revocation.addrs"},
		{"bad format", map[string]string{"COOKIEDEMO_LOG_FORMAT": "xml"}, "log.format"},
		{"negative cleanup interval", map[string]string{"COOKIEDEMO_REVOCATION_CLEANUP_INTERVAL": "-1s"}, "revocation.cleanup_interval"},
		{"bad cleanup interval", map[string]string{"COOKIEDEMO_REVOCATION_CLEANUP_INTERVAL": "often"}, "REVOCATION_CLEANUP_INTERVAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load("", envMap(tt.env))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), envMap(nil)); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "cleanup.yaml")
	data := "revocation:\n  backend: memory\n  cleanup_interval: -1s\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := Load(path, envMap(nil)); err == nil || !strings.Contains(err.Error(), "revocation.cleanup_interval") {
		t.Errorf("negative cleanup_interval in YAML: got %v", err)
	}
}

func TestParseSameSite(t *testing.T) {
	tests := map[string]http.SameSite{
		"":       http.SameSiteLaxMode,
		"Lax":    http.SameSiteLaxMode,
		"strict": http.SameSiteStrictMode,
		"NONE":   http.SameSiteNoneMode,
	}
	for in, want := range tests {
		got, err := ParseSameSite(in)
		if err != nil || got != want {
			t.Errorf("ParseSameSite(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseSameSite("sometimes"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
