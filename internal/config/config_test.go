package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOverDefaults(t *testing.T) {
	path := writeConfig(t, `
paths:
  data_dir: /tmp/sl-data
engine:
  binary: /opt/sing-box/sing-box
  tail_interval: 1s
subscription:
  proxy: socks5://127.0.0.1:1080
sync:
  identity: embedded
export:
  github:
    owner: me
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Paths.DataDir != "/tmp/sl-data" || cfg.ProfilesPath() != filepath.Join("/tmp/sl-data", "profiles.json") {
		t.Fatalf("data dir not applied: %#v", cfg.Paths)
	}
	if cfg.Engine.TailInterval != time.Second || cfg.Engine.Binary != "/opt/sing-box/sing-box" {
		t.Fatalf("engine section not applied: %#v", cfg.Engine)
	}
	if cfg.Engine.ProcessName != "sing-box" || cfg.Engine.LogLevel != "info" || cfg.Engine.StartGrace != 500*time.Millisecond {
		t.Fatalf("engine defaults lost: %#v", cfg.Engine)
	}
	if cfg.Sync.Identity != IdentityEmbedded || cfg.Subscription.Proxy != "socks5://127.0.0.1:1080" {
		t.Fatalf("unexpected sections: %#v %#v", cfg.Sync, cfg.Subscription)
	}
	if cfg.Export.GitHub.Owner != "me" || cfg.Export.GitHub.APIURL != "https://api.github.com" || !cfg.Export.Base64 {
		t.Fatalf("export defaults lost: %#v", cfg.Export)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("explicit missing file must be an error")
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("missing default file should yield defaults: %v", err)
	}
	if cfg.Engine.Binary != "sing-box" || cfg.Sync.Identity != "" {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
}

func TestLoadInvalid(t *testing.T) {
	if _, err := Load(writeConfig(t, "engine: [not a map")); err == nil {
		t.Fatalf("expected yaml error")
	}

	_, err := Load(writeConfig(t, "sync:\n  identity: newest\n"))
	if err == nil || !strings.Contains(err.Error(), "sync.identity") {
		t.Fatalf("expected identity error, got %v", err)
	}
}

func TestValidateFillsGaps(t *testing.T) {
	cfg := Default()
	cfg.Engine.Binary = "/usr/local/bin/sing-box-beta"
	cfg.Engine.ProcessName = ""
	cfg.Engine.TailInterval = 0
	cfg.Sync.Identity = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if cfg.Engine.ProcessName != "sing-box-beta" || cfg.Engine.TailInterval <= 0 || cfg.Sync.Identity != "" {
		t.Fatalf("gaps not filled: %#v %#v", cfg.Engine, cfg.Sync)
	}
}
