// Package config loads gestureboard settings from a YAML file with
// GESTUREBOARD_ environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/gestureboard/internal/action"
	"github.com/ayusman/gestureboard/internal/board"
	"github.com/ayusman/gestureboard/internal/capture"
	"github.com/ayusman/gestureboard/internal/detector"
	"github.com/ayusman/gestureboard/internal/emitter"
	"github.com/ayusman/gestureboard/internal/handstate"
	"github.com/ayusman/gestureboard/internal/pipeline"
	"github.com/ayusman/gestureboard/internal/scoring"
	"github.com/ayusman/gestureboard/internal/smoothing"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GESTUREBOARD_"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete application configuration.
type Config struct {
	Log       LogConfig        `yaml:"log" envPrefix:"LOG_"`
	Server    ServerConfig     `yaml:"server" envPrefix:"SERVER_"`
	Camera    CameraConfig     `yaml:"camera" envPrefix:"CAMERA_"`
	Detector  detector.Config  `yaml:"detector" envPrefix:"DETECTOR_"`
	Scoring   scoring.Config   `yaml:"scoring" envPrefix:"SCORING_"`
	Smoothing smoothing.Config `yaml:"smoothing" envPrefix:"SMOOTHING_"`
	HandState handstate.Config `yaml:"hand_state" envPrefix:"HAND_STATE_"`
	Actions   ActionsConfig    `yaml:"actions" envPrefix:"ACTIONS_"`
	Board     BoardConfig      `yaml:"board" envPrefix:"BOARD_"`
	Store     StoreConfig      `yaml:"store" envPrefix:"STORE_"`
	MQTT      emitter.Config   `yaml:"mqtt" envPrefix:"MQTT_"`
	Plugins   PluginsConfig    `yaml:"plugins" envPrefix:"PLUGINS_"`
	Session   SessionConfig    `yaml:"session" envPrefix:"SESSION_"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr      string `yaml:"addr" env:"ADDR"`
	StaticDir string `yaml:"static_dir" env:"STATIC_DIR"`
}

// CameraConfig combines the device settings with the frame source settings.
type CameraConfig struct {
	capture.CameraConfig `yaml:",inline"`
	capture.SourceConfig `yaml:",inline"`
}

// ActionsConfig extends the action machine settings with adjudication
// behaviour.
type ActionsConfig struct {
	action.Config `yaml:",inline"`

	// ReselectOnReject selects the target cell of a rejected move when it
	// holds one of the mover's pieces.
	ReselectOnReject bool `yaml:"reselect_on_reject" env:"RESELECT_ON_REJECT"`
}

// BoardConfig places the board in the viewport. A zero rectangle selects
// the largest centred square.
type BoardConfig struct {
	ViewportWidth  float64 `yaml:"viewport_width" env:"VIEWPORT_WIDTH"`
	ViewportHeight float64 `yaml:"viewport_height" env:"VIEWPORT_HEIGHT"`
	X              float64 `yaml:"x" env:"X"`
	Y              float64 `yaml:"y" env:"Y"`
	Width          float64 `yaml:"width" env:"WIDTH"`
	Height         float64 `yaml:"height" env:"HEIGHT"`
}

// Rect returns the configured board rectangle.
func (b BoardConfig) Rect() board.Rect {
	return board.Rect{X: b.X, Y: b.Y, W: b.Width, H: b.Height}
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// PluginsConfig locates action hook plugins.
type PluginsConfig struct {
	Dir     string        `yaml:"dir" env:"DIR"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// SessionConfig controls session housekeeping and preview cadence.
type SessionConfig struct {
	// IdleTimeout removes sessions without clients or camera.
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`

	// FrameEvery broadcasts a preview frame every n processed frames.
	FrameEvery int `yaml:"frame_every" env:"FRAME_EVERY"`
}

// DataDir returns ~/.gestureboard, or .gestureboard when the home directory
// is unknown.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gestureboard"
	}
	return filepath.Join(home, ".gestureboard")
}

// DefaultPath is the configuration file used when none is given.
func DefaultPath() string {
	return filepath.Join(DataDir(), "config.yaml")
}

// Default returns the calibrated default configuration.
func Default() *Config {
	dataDir := DataDir()
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Server: ServerConfig{
			Addr:      ":8080",
			StaticDir: "web",
		},
		Camera: CameraConfig{
			CameraConfig: capture.CameraConfig{
				Width:  capture.DefaultWidth,
				Height: capture.DefaultHeight,
				FPS:    capture.DefaultFPS,
			},
			SourceConfig: capture.DefaultSourceConfig(),
		},
		Detector:  detector.DefaultConfig(),
		Scoring:   scoring.DefaultConfig(),
		Smoothing: smoothing.DefaultConfig(),
		HandState: handstate.DefaultConfig(),
		Actions: ActionsConfig{
			Config:           action.DefaultConfig(),
			ReselectOnReject: true,
		},
		Board: BoardConfig{
			ViewportWidth:  pipeline.DefaultViewportWidth,
			ViewportHeight: pipeline.DefaultViewportHeight,
		},
		Store: StoreConfig{Path: filepath.Join(dataDir, "gestureboard.db")},
		MQTT:  emitter.DefaultConfig(),
		Plugins: PluginsConfig{
			Dir:     filepath.Join(dataDir, "plugins"),
			Timeout: 5 * time.Second,
		},
		Session: SessionConfig{
			IdleTimeout: 10 * time.Minute,
			FrameEvery:  3,
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating the parent directory.
func (c *Config) Save(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Marshal encodes cfg as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// Pipeline returns the gesture pipeline settings.
func (c *Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		Scoring:        c.Scoring,
		Smoothing:      c.Smoothing,
		HandState:      c.HandState,
		Actions:        c.Actions.Config,
		ViewportWidth:  c.Board.ViewportWidth,
		ViewportHeight: c.Board.ViewportHeight,
		Bounds:         c.Board.Rect(),
	}
}
