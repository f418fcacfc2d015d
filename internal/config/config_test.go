package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.HTTPPort != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.HTTPPort)
	}
	if cfg.Addr() != ":8000" {
		t.Errorf("expected :8000, got %s", cfg.Addr())
	}
	if cfg.ResultsDir != "results" || cfg.DataDir != "data" {
		t.Errorf("unexpected dirs %s %s", cfg.ResultsDir, cfg.DataDir)
	}
	if cfg.Engine != "g2b" {
		t.Errorf("expected g2b engine, got %s", cfg.Engine)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("CRAWL_ENGINE", "script")
	t.Setenv("SCRIPT_PATH", "testdata/run.yaml")

	cfg := Load()
	if cfg.HTTPPort != 9100 {
		t.Errorf("expected port 9100, got %d", cfg.HTTPPort)
	}
	if cfg.Engine != "script" || cfg.ScriptPath != "testdata/run.yaml" {
		t.Errorf("unexpected engine config %s %s", cfg.Engine, cfg.ScriptPath)
	}
}

func TestLoadIgnoresBadPort(t *testing.T) {
	t.Setenv("HTTP_PORT", "eight thousand")

	if cfg := Load(); cfg.HTTPPort != 8000 {
		t.Errorf("expected fallback port, got %d", cfg.HTTPPort)
	}
}
