package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-focuspet/pkg/camera"
	"github.com/teslashibe/go-focuspet/pkg/detection"
	"github.com/teslashibe/go-focuspet/pkg/focus"
	"github.com/teslashibe/go-focuspet/pkg/mood"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "focuspet.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Camera != camera.DefaultConfig() {
		t.Errorf("camera: got %+v", cfg.Camera)
	}
	if cfg.Detection != detection.DefaultConfig() {
		t.Errorf("detection: got %+v", cfg.Detection)
	}
	if cfg.Focus != focus.DefaultConfig() {
		t.Errorf("focus: got %+v", cfg.Focus)
	}
	if cfg.Mood != mood.DefaultConfig() {
		t.Errorf("mood: got %+v", cfg.Mood)
	}
	if cfg.Backend != BackendDevice || cfg.Stats.Driver != StatsMemory || cfg.Redis.Enabled {
		t.Errorf("backends: got %q %q %v", cfg.Backend, cfg.Stats.Driver, cfg.Redis.Enabled)
	}
	if cfg.Pipeline.PreviewStride != 3 || cfg.Pipeline.DetectEveryFrame {
		t.Errorf("pipeline: got %+v", cfg.Pipeline)
	}
	if cfg.Redis.TTL != 30*time.Second {
		t.Errorf("redis ttl: got %v", cfg.Redis.TTL)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
backend: mock
camera:
  width: 160
  height: 120
  target_fps: 5
mood:
  away_timeout: 10s
  ema_alpha: 0.3
redis:
  enabled: true
  addr: redis:6379
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != BackendMock {
		t.Errorf("backend: got %q", cfg.Backend)
	}
	if cfg.Camera.Width != 160 || cfg.Camera.TargetFPS != 5 {
		t.Errorf("camera: got %+v", cfg.Camera)
	}
	if cfg.Mood.AwayTimeout != 10*time.Second || cfg.Mood.EMAAlpha != 0.3 {
		t.Errorf("mood: got %+v", cfg.Mood)
	}
	// Unset keys keep their defaults
	if cfg.Mood.InteractDuration != 3*time.Second {
		t.Errorf("interact duration: got %v", cfg.Mood.InteractDuration)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "redis:6379" {
		t.Errorf("redis: got %+v", cfg.Redis)
	}

	cc := cfg.Companion()
	if cc.Pipeline.Camera.Width != 160 || cc.Mood.EMAAlpha != 0.3 {
		t.Errorf("companion config: got %+v", cc)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("FOCUSPET_CAMERA_WIDTH", "640")
	t.Setenv("FOCUSPET_MOOD_FOCUS_TICK", "100ms")
	t.Setenv("FOCUSPET_PIPELINE_DETECT_EVERY_FRAME", "true")

	path := writeFile(t, "camera:\n  width: 160\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Camera.Width != 640 {
		t.Errorf("env must win over file: width %d", cfg.Camera.Width)
	}
	if cfg.Mood.FocusTick != 100*time.Millisecond {
		t.Errorf("focus tick: got %v", cfg.Mood.FocusTick)
	}
	if !cfg.Pipeline.DetectEveryFrame {
		t.Error("detect every frame: want true")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"camera range", "camera:\n  width: 10\n", "width"},
		{"backend", "backend: carrier-pigeon\n", "unknown backend"},
		{"remote without url", "backend: remote\n", "signalling_url"},
		{"postgres without dsn", "stats:\n  driver: postgres\n", "stats.dsn"},
		{"stats driver", "stats:\n  driver: sqlite\n", "unknown stats driver"},
		{"alpha", "mood:\n  ema_alpha: 0\n", "ema_alpha"},
		{"thresholds", "mood:\n  exit_threshold: 0.9\n", "exit_threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDump_RoundTrip(t *testing.T) {
	path := writeFile(t, "backend: mock\nmood:\n  away_timeout: 7s\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	out, err := cfg.Dump()
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if !strings.Contains(string(out), "away_timeout: 7s") {
		t.Errorf("dump missing readable duration:\n%s", out)
	}

	again, err := Load(writeFile(t, string(out)))
	if err != nil {
		t.Fatalf("reload dump: %v\n%s", err, out)
	}
	if again.Mood != cfg.Mood || again.Camera != cfg.Camera || again.Backend != cfg.Backend {
		t.Errorf("round trip mismatch:\n%+v\n%+v", again, cfg)
	}
}
