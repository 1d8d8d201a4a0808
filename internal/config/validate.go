package config

import (
	"fmt"
	"strings"

	"github.com/ayusman/gestureboard/internal/detector"
)

var (
	logLevels  = []string{"debug", "info", "warn", "warning", "error"}
	logFormats = []string{"text", "json"}
	strategies = []string{
		detector.StrategyAuto,
		detector.StrategyMarker,
		detector.StrategyLandmark,
		detector.StrategySimulated,
	}
)

// Validate checks every section. Failures wrap ErrInvalid.
func (c *Config) Validate() error {
	if !oneOf(c.Log.Level, logLevels) {
		return invalid("log.level must be one of %v, got %q", logLevels, c.Log.Level)
	}
	if !oneOf(c.Log.Format, logFormats) {
		return invalid("log.format must be one of %v, got %q", logFormats, c.Log.Format)
	}

	if c.Server.Addr == "" {
		return invalid("server.addr is required")
	}

	cam := c.Camera
	if cam.FPS <= 0 {
		return invalid("camera.fps must be > 0, got %d", cam.FPS)
	}
	if cam.Width <= 0 || cam.Height <= 0 {
		return invalid("camera resolution must be positive, got %dx%d", cam.Width, cam.Height)
	}
	if cam.IdleFPS < 0 || cam.IdleFPS > cam.FPS {
		return invalid("camera.idle_fps must be between 0 and fps (%d), got %d", cam.FPS, cam.IdleFPS)
	}
	if cam.QueueDepth < 1 || cam.QueueDepth > 2 {
		return invalid("camera.queue_depth must be 1 or 2, got %d", cam.QueueDepth)
	}
	if cam.IdleTimeout < 0 {
		return invalid("camera.idle_timeout must not be negative")
	}

	if !oneOf(c.Detector.Strategy, strategies) {
		return invalid("detector.strategy must be one of %v, got %q", strategies, c.Detector.Strategy)
	}
	if _, err := c.Detector.Marker.Resolve(); err != nil {
		return invalid("detector.marker: %v", err)
	}

	if err := c.Pipeline().Validate(); err != nil {
		return invalid("%v", err)
	}
	if c.Smoothing.History < 2 {
		return invalid("smoothing.history must be >= 2, got %d", c.Smoothing.History)
	}
	if c.Actions.HoverWindow < 1 || c.Actions.HoverThreshold < 1 || c.Actions.HoverThreshold > c.Actions.HoverWindow {
		return invalid("actions.hover_threshold must be between 1 and hover_window")
	}
	if c.Actions.Cooldown < 0 {
		return invalid("actions.cooldown must not be negative")
	}

	r := c.Board.Rect()
	if !r.Empty() && (r.X < 0 || r.Y < 0 || r.X+r.W > c.Board.ViewportWidth || r.Y+r.H > c.Board.ViewportHeight) {
		return invalid("board rectangle %+v exceeds the %vx%v viewport", r, c.Board.ViewportWidth, c.Board.ViewportHeight)
	}

	if c.Store.Path == "" {
		return invalid("store.path is required")
	}
	if c.MQTT.QoS > 2 {
		return invalid("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if c.Plugins.Timeout < 0 {
		return invalid("plugins.timeout must not be negative")
	}
	if c.Session.FrameEvery < 1 {
		return invalid("session.frame_every must be >= 1, got %d", c.Session.FrameEvery)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func oneOf(v string, options []string) bool {
	for _, o := range options {
		if strings.EqualFold(v, o) {
			return true
		}
	}
	return false
}
