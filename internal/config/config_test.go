package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{BaseURLEnv, "TASKSYNC_API_BASE_URL", "TASKSYNC_API_REQUEST_TIMEOUT", "TASKSYNC_OUTPUT_FORMAT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestNew_Defaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if cfg.Dir != dir {
		t.Errorf("Dir = %q, want %q", cfg.Dir, dir)
	}
	if cfg.API.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.API.BaseURL, DefaultBaseURL)
	}
	if cfg.API.RequestTimeout != 15*time.Second {
		t.Errorf("RequestTimeout = %s", cfg.API.RequestTimeout)
	}
	if cfg.API.HealthTimeout != 5*time.Second {
		t.Errorf("HealthTimeout = %s", cfg.API.HealthTimeout)
	}
	if cfg.Diagnostics.ProbeTimeout != 10*time.Second || cfg.Diagnostics.EndpointTimeout != 5*time.Second {
		t.Errorf("unexpected diagnostics timeouts: %+v", cfg.Diagnostics)
	}
	if cfg.Form.SuccessLinger != 3*time.Second {
		t.Errorf("SuccessLinger = %s", cfg.Form.SuccessLinger)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

// TestDefault_MatchesNew verifies Default decodes the same values New
// reads when no file or environment overrides exist.
func TestDefault_MatchesNew(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	loaded, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	cfg := Default(dir)

	if cfg.API != loaded.API || cfg.Diagnostics != loaded.Diagnostics || cfg.Form != loaded.Form ||
		cfg.Output != loaded.Output || cfg.Logging != loaded.Logging {
		t.Errorf("Default = %+v, New = %+v", cfg, loaded)
	}
	if cfg.Dir != dir {
		t.Errorf("Dir = %q, want %q", cfg.Dir, dir)
	}
}

func TestNew_ConfigFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	content := `api:
  base_url: http://tasks.internal:9000
  request_timeout: 20s
output:
  format: json
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if cfg.API.BaseURL != "http://tasks.internal:9000" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.RequestTimeout != 20*time.Second {
		t.Errorf("RequestTimeout = %s", cfg.API.RequestTimeout)
	}
	if cfg.API.HealthTimeout != 5*time.Second {
		t.Errorf("HealthTimeout should keep default, got %s", cfg.API.HealthTimeout)
	}
	if cfg.Output.Format != FormatJSON {
		t.Errorf("Format = %q", cfg.Output.Format)
	}
}

func TestNew_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	content := "api:\n  base_url: http://from-file:9000\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv(BaseURLEnv, "http://from-env:8000")
	t.Setenv("TASKSYNC_API_REQUEST_TIMEOUT", "2s")

	cfg, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if cfg.API.BaseURL != "http://from-env:8000" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.RequestTimeout != 2*time.Second {
		t.Errorf("RequestTimeout = %s", cfg.API.RequestTimeout)
	}
}

func TestNew_MalformedConfigFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("api: [unclosed"), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := New(dir); err == nil {
		t.Error("expected error for malformed config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad scheme", func(c *Config) { c.API.BaseURL = "ftp://host" }, "api.base_url"},
		{"no host", func(c *Config) { c.API.BaseURL = "http://" }, "api.base_url"},
		{"zero timeout", func(c *Config) { c.API.RequestTimeout = 0 }, "api.request_timeout"},
		{"bad format", func(c *Config) { c.Output.Format = "xml" }, "output.format"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(t.TempDir())
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultConfigDir_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := DefaultConfigDir(); got != filepath.Join("/tmp/xdg", AppName) {
		t.Errorf("DefaultConfigDir = %q", got)
	}
}

func TestTokenHelpers(t *testing.T) {
	cfg := Default(t.TempDir())
	if cfg.HasToken() {
		t.Fatal("expected no token in fresh dir")
	}
	if err := os.WriteFile(cfg.TokenPath(), []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}
	if !cfg.HasToken() {
		t.Error("expected token to exist")
	}
	if err := cfg.RemoveToken(); err != nil {
		t.Errorf("RemoveToken: %v", err)
	}
	if cfg.HasToken() {
		t.Error("expected token to be removed")
	}
}
