package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
server:
  port: "9000"
capture:
  timeout_sec: 45
identity:
  trust_domain: orb.test
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Port != "9000" {
		t.Errorf("expected port 9000, got %s", cfg.Server.Port)
	}
	if cfg.Capture.TimeoutSec != 45 {
		t.Errorf("expected timeout 45, got %d", cfg.Capture.TimeoutSec)
	}
	if cfg.Identity.TrustDomain != "orb.test" {
		t.Errorf("expected trust domain orb.test, got %s", cfg.Identity.TrustDomain)
	}
}

func TestApplyDefaultsFillsZeroValues(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Capture.TimeoutSec != 30 {
		t.Errorf("expected default timeout 30, got %d", cfg.Capture.TimeoutSec)
	}
	if len(cfg.Capture.IrWavelengths) != 2 {
		t.Errorf("expected 2 default wavelengths, got %d", len(cfg.Capture.IrWavelengths))
	}
	if cfg.Identity.TrustDomain != "orb.example.com" {
		t.Errorf("expected default trust domain, got %s", cfg.Identity.TrustDomain)
	}
}

func TestLoadConfigMissingFileReturnsError(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
