package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/castline/castline/internal/config"
)

func TestBuildMediaConfig_UsesConfiguredTimeouts(t *testing.T) {
	t.Setenv(config.EnvDataDir, t.TempDir())
	cfg, err := config.New()
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}

	mediaCfg := buildMediaConfig(cfg)

	if mediaCfg.WorkDir != cfg.WorkDir() {
		t.Errorf("WorkDir = %q, want %q", mediaCfg.WorkDir, cfg.WorkDir())
	}
	if mediaCfg.ExtractTimeout != cfg.ExtractTimeout() {
		t.Errorf("ExtractTimeout = %v, want %v", mediaCfg.ExtractTimeout, cfg.ExtractTimeout())
	}
	if mediaCfg.ConcatTimeout != cfg.ConcatTimeout() {
		t.Errorf("ConcatTimeout = %v, want %v", mediaCfg.ConcatTimeout, cfg.ConcatTimeout())
	}
	if mediaCfg.ProbeTimeout != 30*time.Second {
		t.Errorf("ProbeTimeout = %v, want 30s", mediaCfg.ProbeTimeout)
	}
	if got, want := mediaCfg.WorkDir, filepath.Join(cfg.DataDir(), "work"); got != want {
		t.Errorf("WorkDir = %q, want %q", got, want)
	}
}
