package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultMatchesRobotWiring(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	p := cfg.Pins
	if p.Motor1Step != 27 || p.Motor1Dir != 17 || p.Motor2Step != 6 || p.Motor2Dir != 26 {
		t.Fatalf("unexpected motor pins: %+v", p)
	}
	if p.Limit1 != 16 || p.Limit2 != 5 || p.Servo != 13 {
		t.Fatalf("unexpected switch/servo pins: %+v", p)
	}
	if cfg.ListenAddr != "0.0.0.0:8080" || cfg.Subprotocol != "robochess-websocket" {
		t.Fatalf("unexpected transport defaults: %s %s", cfg.ListenAddr, cfg.Subprotocol)
	}
}

func TestApplyYAMLOverlaysOnlyGivenFields(t *testing.T) {
	cfg := Default()
	doc := []byte("geometry:\n  placement_offset: 40\nmotion:\n  slow_period: 10ms\n  homing_magnet: disengaged\n")
	if err := cfg.ApplyYAML(doc); err != nil {
		t.Fatalf("ApplyYAML: %v", err)
	}
	if cfg.Geometry.PlacementOffset != 40 {
		t.Fatalf("placement offset = %d", cfg.Geometry.PlacementOffset)
	}
	if cfg.Geometry.SquareSize != 264 {
		t.Fatalf("square size overwritten: %d", cfg.Geometry.SquareSize)
	}
	if cfg.Motion.SlowPeriod != 10*time.Millisecond {
		t.Fatalf("slow period = %s", cfg.Motion.SlowPeriod)
	}
	if cfg.Motion.FastPeriod != 4*time.Millisecond {
		t.Fatalf("fast period overwritten: %s", cfg.Motion.FastPeriod)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadReadsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "robot.yaml")
	if err := os.WriteFile(path, []byte("listen_addr: 127.0.0.1:9000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ROBOCHESS_CONFIG", path)
	t.Setenv("REDIS_URL", "redis://localhost:6379/2")
	t.Setenv("HOMING_TIMEOUT", "30s")
	t.Setenv("STATUS_ADDR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:9000" {
		t.Fatalf("listen addr = %s", cfg.ListenAddr)
	}
	if cfg.RedisURL != "redis://localhost:6379/2" {
		t.Fatalf("redis url = %s", cfg.RedisURL)
	}
	if cfg.Motion.HomingTimeout != 30*time.Second {
		t.Fatalf("homing timeout = %s", cfg.Motion.HomingTimeout)
	}
	if cfg.StatusAddr != "" {
		t.Fatalf("status addr should be disabled, got %q", cfg.StatusAddr)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*AppConfig){
		"square size":   func(c *AppConfig) { c.Geometry.SquareSize = 0 },
		"board too big": func(c *AppConfig) { c.Geometry.XMax = 1000 },
		"periods":       func(c *AppConfig) { c.Motion.SlowPeriod = 0 },
		"magnet":        func(c *AppConfig) { c.Motion.HomingMagnet = "sideways" },
		"servo":         func(c *AppConfig) { c.Motion.ServoMaxPulse = c.Motion.ServoMinPulse },
		"subprotocol":   func(c *AppConfig) { c.Subprotocol = " " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
