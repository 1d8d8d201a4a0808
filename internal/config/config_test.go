package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/gestureboard/internal/board"
	"github.com/ayusman/gestureboard/internal/detector"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 15, cfg.HandState.Window)
	assert.Equal(t, 4, cfg.HandState.StabilityFrames)
	assert.Equal(t, 0.75, cfg.HandState.ThresholdFrac)
	assert.Equal(t, 200*time.Millisecond, cfg.Actions.Cooldown)
	assert.Equal(t, 10, cfg.Actions.HoverWindow)
	assert.Equal(t, 2, cfg.Actions.HoverThreshold)
	assert.True(t, cfg.Actions.ReselectOnReject)
	assert.Equal(t, 0.45, cfg.Scoring.Floor)
	assert.Equal(t, 640.0, cfg.Board.ViewportWidth)
	assert.True(t, cfg.Board.Rect().Empty())
	assert.Equal(t, 3, cfg.Session.FrameEvery)
	assert.False(t, cfg.MQTT.Enabled())
	assert.True(t, cfg.Camera.Mirror)
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Addr, cfg.Server.Addr)
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
camera:
  device_id: 1
  fps: 20
  idle_fps: 4
  idle_timeout: 3s
  mirror: false
detector:
  strategy: marker
  marker:
    preset: skin
actions:
  cooldown: 300ms
  reselect_on_reject: false
board:
  x: 80
  y: 0
  width: 480
  height: 480
mqtt:
  broker: localhost:1883
  qos: 1
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 1, cfg.Camera.DeviceID)
	assert.Equal(t, 20, cfg.Camera.FPS)
	assert.Equal(t, 4, cfg.Camera.IdleFPS)
	assert.Equal(t, 3*time.Second, cfg.Camera.IdleTimeout)
	assert.False(t, cfg.Camera.Mirror)
	assert.Equal(t, detector.StrategyMarker, cfg.Detector.Strategy)
	assert.Equal(t, detector.PresetSkin, cfg.Detector.Marker.Preset)
	assert.Equal(t, 300*time.Millisecond, cfg.Actions.Cooldown)
	assert.False(t, cfg.Actions.ReselectOnReject)
	assert.Equal(t, board.Rect{X: 80, Y: 0, W: 480, H: 480}, cfg.Board.Rect())
	assert.True(t, cfg.MQTT.Enabled())
	assert.Equal(t, byte(1), cfg.MQTT.QoS)

	// Unset keys keep their defaults.
	assert.Equal(t, 10, cfg.Actions.HoverWindow)
	assert.Equal(t, Default().Scoring, cfg.Scoring)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9090\"\n")
	t.Setenv("GESTUREBOARD_SERVER_ADDR", ":7070")
	t.Setenv("GESTUREBOARD_CAMERA_FPS", "24")
	t.Setenv("GESTUREBOARD_ACTIONS_COOLDOWN", "150ms")
	t.Setenv("GESTUREBOARD_SCORING_FLOOR", "0.5")
	t.Setenv("GESTUREBOARD_MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("GESTUREBOARD_DETECTOR_LANDMARK_IDLE_TIMEOUT", "1m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 24, cfg.Camera.FPS)
	assert.Equal(t, 150*time.Millisecond, cfg.Actions.Cooldown)
	assert.Equal(t, 0.5, cfg.Scoring.Floor)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, time.Minute, cfg.Detector.Landmark.IdleTimeout)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("bad yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "server: [unclosed"))
		assert.Error(t, err)
	})

	t.Run("bad env", func(t *testing.T) {
		t.Setenv("GESTUREBOARD_CAMERA_FPS", "fast")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("invalid value", func(t *testing.T) {
		_, err := Load(writeConfig(t, "hand_state:\n  threshold_frac: 0.5\n"))
		assert.ErrorIs(t, err, ErrInvalid)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"zero fps", func(c *Config) { c.Camera.FPS = 0 }},
		{"idle above active", func(c *Config) { c.Camera.IdleFPS = 30 }},
		{"queue depth", func(c *Config) { c.Camera.QueueDepth = 3 }},
		{"strategy", func(c *Config) { c.Detector.Strategy = "psychic" }},
		{"marker preset", func(c *Config) { c.Detector.Marker.Preset = "purple" }},
		{"weights", func(c *Config) { c.Scoring.Weights.Color = 0.9 }},
		{"threshold frac", func(c *Config) { c.HandState.ThresholdFrac = 0.4 }},
		{"viewport", func(c *Config) { c.Board.ViewportWidth = 0 }},
		{"hover threshold", func(c *Config) { c.Actions.HoverThreshold = 11 }},
		{"board outside viewport", func(c *Config) {
			c.Board.X, c.Board.Width, c.Board.Height = 400, 480, 480
		}},
		{"store path", func(c *Config) { c.Store.Path = "" }},
		{"mqtt qos", func(c *Config) { c.MQTT.QoS = 3 }},
		{"frame every", func(c *Config) { c.Session.FrameEvery = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Server.Addr = ":1234"
	cfg.Actions.Cooldown = 250 * time.Millisecond

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "cooldown: 250ms")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":1234", loaded.Server.Addr)
	assert.Equal(t, cfg.Actions, loaded.Actions)
	assert.Equal(t, cfg.Camera, loaded.Camera)
	assert.Equal(t, cfg.Scoring, loaded.Scoring)
	assert.Equal(t, cfg.Plugins, loaded.Plugins)
}

func TestPipeline(t *testing.T) {
	cfg := Default()
	cfg.Board.X, cfg.Board.Width, cfg.Board.Height = 80, 480, 480

	pc := cfg.Pipeline()
	assert.Equal(t, cfg.Actions.Config, pc.Actions)
	assert.Equal(t, board.Rect{X: 80, W: 480, H: 480}, pc.Bounds)
	assert.NoError(t, pc.Validate())
}
