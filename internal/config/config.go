package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Pins holds BCM GPIO numbers.
type Pins struct {
	Motor1Step int `yaml:"motor1_step"`
	Motor1Dir  int `yaml:"motor1_dir"`
	Motor2Step int `yaml:"motor2_step"`
	Motor2Dir  int `yaml:"motor2_dir"`
	Limit1     int `yaml:"limit1"`
	Limit2     int `yaml:"limit2"`
	Servo      int `yaml:"servo"`
}

// Geometry describes the board in step units.
type Geometry struct {
	SquareSize      int `yaml:"square_size"`
	XOffset         int `yaml:"x_offset"`
	YOffset         int `yaml:"y_offset"`
	PlacementOffset int `yaml:"placement_offset"`
	XMax            int `yaml:"x_max"`
	YMax            int `yaml:"y_max"`
}

// Motion holds timing of the gantry and the homing routine.
type Motion struct {
	SlowPeriod     time.Duration `yaml:"slow_period"`
	FastPeriod     time.Duration `yaml:"fast_period"`
	MinPeriod      time.Duration `yaml:"min_period"`
	SettleDelay    time.Duration `yaml:"settle_delay"`
	HomingTimeout  time.Duration `yaml:"homing_timeout"`
	HomingMagnet   string        `yaml:"homing_magnet"`
	BackoffSteps   int           `yaml:"backoff_steps"`
	ReleaseSteps   int           `yaml:"release_steps"`
	InvertMotor1   bool          `yaml:"invert_motor1"`
	InvertMotor2   bool          `yaml:"invert_motor2"`
	ServoMinPulse  time.Duration `yaml:"servo_min_pulse"`
	ServoMaxPulse  time.Duration `yaml:"servo_max_pulse"`
	ServoFrame     time.Duration `yaml:"servo_frame"`
	LimitPollDelay time.Duration `yaml:"limit_poll_delay"`
}

type AppConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	Subprotocol string `yaml:"subprotocol"`
	StatusAddr  string `yaml:"status_addr"`

	Pins     Pins     `yaml:"pins"`
	Geometry Geometry `yaml:"geometry"`
	Motion   Motion   `yaml:"motion"`

	RedisURL    string        `yaml:"redis_url"`
	SnapshotTTL time.Duration `yaml:"snapshot_ttl"`
	DatabaseURL string        `yaml:"database_url"`

	StockfishPath string `yaml:"stockfish_path"`
	EngineDepth   int    `yaml:"engine_depth"`

	// SimulateHardware swaps the GPIO layer for in-memory pins (development without a Pi).
	SimulateHardware bool `yaml:"simulate_hardware"`
}

// Default returns the compiled-in configuration of the robot.
func Default() *AppConfig {
	return &AppConfig{
		ListenAddr:  "0.0.0.0:8080",
		Subprotocol: "robochess-websocket",
		StatusAddr:  "0.0.0.0:8081",
		Pins: Pins{
			Motor1Step: 27,
			Motor1Dir:  17,
			Motor2Step: 6,
			Motor2Dir:  26,
			Limit1:     16,
			Limit2:     5,
			Servo:      13,
		},
		Geometry: Geometry{
			SquareSize:      264,
			XOffset:         100,
			YOffset:         0,
			PlacementOffset: 50,
			XMax:            2400,
			YMax:            2200,
		},
		Motion: Motion{
			SlowPeriod:     8 * time.Millisecond,
			FastPeriod:     4 * time.Millisecond,
			MinPeriod:      500 * time.Microsecond,
			SettleDelay:    500 * time.Millisecond,
			HomingMagnet:   "engaged",
			BackoffSteps:   40,
			ReleaseSteps:   100,
			ServoMinPulse:  time.Millisecond,
			ServoMaxPulse:  2 * time.Millisecond,
			ServoFrame:     20 * time.Millisecond,
			LimitPollDelay: time.Millisecond,
		},
		SnapshotTTL: 7 * 24 * time.Hour,
		EngineDepth: 3,
	}
}

// Load builds the configuration: compiled-in defaults, then the optional YAML file named by
// ROBOCHESS_CONFIG, then environment overrides for service endpoints.
func Load() (*AppConfig, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("ROBOCHESS_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := cfg.ApplyYAML(raw); err != nil {
			return nil, err
		}
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv("STATUS_ADDR"); ok {
		cfg.StatusAddr = strings.TrimSpace(v)
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("STOCKFISH_PATH")); v != "" {
		cfg.StockfishPath = v
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_DEPTH")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineDepth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("HOMING_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.Motion.HomingTimeout = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("SIMULATE_HARDWARE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			cfg.SimulateHardware = b
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyYAML overlays the YAML document onto the configuration. Fields absent from the
// document keep their current values.
func (c *AppConfig) ApplyYAML(raw []byte) error {
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return errors.New("listen_addr is required")
	}
	if strings.TrimSpace(c.Subprotocol) == "" {
		return errors.New("subprotocol is required")
	}
	g := c.Geometry
	if g.SquareSize <= 0 || g.SquareSize%4 != 0 {
		return fmt.Errorf("square_size must be a positive multiple of 4: %d", g.SquareSize)
	}
	if g.XMax <= 0 || g.YMax <= 0 {
		return fmt.Errorf("envelope must be positive: %dx%d", g.XMax, g.YMax)
	}
	if g.XOffset+8*g.SquareSize > g.XMax {
		return fmt.Errorf("board does not fit the x envelope: offset %d + 8*%d > %d", g.XOffset, g.SquareSize, g.XMax)
	}
	m := c.Motion
	if m.SlowPeriod <= 0 || m.FastPeriod <= 0 {
		return errors.New("step periods must be positive")
	}
	if m.BackoffSteps <= 0 {
		return fmt.Errorf("backoff_steps must be > 0: %d", m.BackoffSteps)
	}
	switch strings.ToLower(strings.TrimSpace(m.HomingMagnet)) {
	case "engaged", "disengaged":
	default:
		return fmt.Errorf("homing_magnet must be engaged or disengaged: %q", m.HomingMagnet)
	}
	if m.ServoMinPulse <= 0 || m.ServoMaxPulse <= m.ServoMinPulse || m.ServoFrame <= m.ServoMaxPulse {
		return errors.New("servo pulse widths must satisfy 0 < min < max < frame")
	}
	if c.EngineDepth <= 0 {
		return fmt.Errorf("engine_depth must be > 0: %d", c.EngineDepth)
	}
	return nil
}
