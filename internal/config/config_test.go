package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stratum.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
listen: "127.0.0.1:9900"
data_dir: /tmp/stratum-test
remote:
  url: wss://sync.example.com/ws
  token: s3cret
  reconnect: true
identity:
  id: u-1
  email: gopher@example.com
ignore_patterns:
  - "bank.test/**"
log_level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Listen != "127.0.0.1:9900" || cfg.DataDir != "/tmp/stratum-test" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Remote.URL != "wss://sync.example.com/ws" || !cfg.Remote.Reconnect {
		t.Errorf("unexpected remote config: %+v", cfg.Remote)
	}
	if cfg.Identity.Email != "gopher@example.com" {
		t.Errorf("unexpected identity: %+v", cfg.Identity)
	}
	if len(cfg.IgnorePatterns) != 1 || cfg.LogLevel != "debug" {
		t.Errorf("unexpected patterns/level: %+v", cfg)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "data_dir: /tmp/stratum-test\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	def := Default()
	if cfg.Listen != def.Listen || cfg.LogLevel != def.LogLevel {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"bad listen":    "listen: nonsense\ndata_dir: /tmp/x\n",
		"bad log level": "data_dir: /tmp/x\nlog_level: loud\n",
		"bad email":     "data_dir: /tmp/x\nidentity:\n  email: not-an-email\n",
		"not yaml":      "{{{\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
