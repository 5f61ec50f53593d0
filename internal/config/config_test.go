package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingSuggestsInit(t *testing.T) {
	_, err := Load(t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "tb init") {
		t.Fatalf("missing config should point at tb init, got %v", err)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "taskboard.yml"), []byte(GenerateDefault("ana@example.com")), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Actor.ID != "ana@example.com" {
		t.Fatalf("actor id: got %q", cfg.Actor.ID)
	}
	if cfg.TokenTTL() != 24*time.Hour {
		t.Fatalf("token ttl: got %s", cfg.TokenTTL())
	}
	if cfg.Store.Backend != "sqlite" {
		t.Fatalf("backend: got %q", cfg.Store.Backend)
	}
}

func TestLoadOptionalMissingIsNil(t *testing.T) {
	cfg, err := LoadOptional(t.TempDir())
	if err != nil || cfg != nil {
		t.Fatalf("missing config should be nil,nil, got %v, %v", cfg, err)
	}
}

func TestFromYAMLRejectsBadValues(t *testing.T) {
	if _, err := FromYAML([]byte("store:\n  backend: redis\n")); err == nil {
		t.Fatal("unknown backend should fail validation")
	}
	if _, err := FromYAML([]byte("server:\n  token_ttl: soon\n")); err == nil {
		t.Fatal("unparseable duration should fail validation")
	}
}
