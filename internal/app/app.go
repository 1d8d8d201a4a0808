// Package app wires the gestureboard components together: storage, sinks,
// sessions and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ayusman/gestureboard/internal/action"
	"github.com/ayusman/gestureboard/internal/capture"
	"github.com/ayusman/gestureboard/internal/config"
	"github.com/ayusman/gestureboard/internal/detector"
	"github.com/ayusman/gestureboard/internal/emitter"
	"github.com/ayusman/gestureboard/internal/log"
	"github.com/ayusman/gestureboard/internal/plugin"
	"github.com/ayusman/gestureboard/internal/server"
	"github.com/ayusman/gestureboard/internal/session"
	"github.com/ayusman/gestureboard/internal/store"
)

// ShutdownTimeout bounds the graceful HTTP shutdown.
const ShutdownTimeout = 5 * time.Second

// ActionListener is notified of every emitted gesture action.
type ActionListener func(session string, rec action.Record)

// App is the running application.
type App struct {
	cfg *config.Config

	store    *store.Store
	emitter  *emitter.MQTTEmitter
	plugins  *plugin.Manager
	hooks    *plugin.Hooks
	sessions *session.Manager
	server   *server.Server

	mu       sync.RWMutex
	fit      *detector.AreaFit
	last     *action.Record
	listener ActionListener
}

// New opens the store, connects the configured sinks and builds the session
// manager and server. The returned App must be closed.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg}

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = st

	var fit detector.AreaFit
	switch err := st.Settings().GetJSON(store.CalibrationFitKey, &fit); {
	case err == nil:
		a.fit = &fit
		log.Info("loaded marker calibration", "min_area", fit.MinArea, "max_area", fit.MaxArea, "points", fit.Points)
	case !errors.Is(err, store.ErrNotFound):
		log.Warn("failed to load marker calibration", "error", err)
	}

	opts := session.Options{
		Pipeline:         cfg.Pipeline(),
		ReselectOnReject: cfg.Actions.ReselectOnReject,
		NewDetector:      a.NewDetector,
		NewCamera: func() capture.Camera {
			return capture.NewCamera(cfg.Camera.CameraConfig)
		},
		Source:      cfg.Camera.SourceConfig,
		FrameEvery:  cfg.Session.FrameEvery,
		IdleTimeout: cfg.Session.IdleTimeout,
		Store:       st,
		OnAction:    a.recordAction,
	}

	if cfg.MQTT.Enabled() {
		a.emitter = emitter.NewMQTTEmitter(cfg.MQTT)
		if err := a.emitter.Connect(ctx); err != nil {
			log.Warn("mqtt broker unreachable, publishing once connected", "error", err)
		}
		opts.Publisher = a.emitter
	}

	a.plugins = plugin.NewManager(cfg.Plugins.Dir)
	if err := a.plugins.Discover(); err != nil {
		log.Warn("failed to discover plugins", "dir", cfg.Plugins.Dir, "error", err)
	}
	if n := len(a.plugins.List()); n > 0 {
		a.hooks = plugin.NewHooks(a.plugins, plugin.NewExecutor(cfg.Plugins.Timeout))
		opts.Hooks = a.hooks
		log.Info("plugins loaded", "count", n, "dir", cfg.Plugins.Dir)
	}

	a.sessions = session.NewManager(opts)
	a.server = server.New(server.Config{
		StaticDir:     cfg.Server.StaticDir,
		Store:         st,
		Sessions:      a.sessions,
		OnCalibration: a.SetCalibration,
	})
	return a, nil
}

// NewDetector builds a detector from the configuration. A marker detector
// uses the stored calibration range when one exists.
func (a *App) NewDetector() (detector.Detector, error) {
	d, err := detector.New(a.cfg.Detector)
	if err != nil {
		return nil, err
	}
	if md, ok := d.(*detector.MarkerDetector); ok {
		a.applyCalibration(md)
	}
	return d, nil
}

func (a *App) applyCalibration(md *detector.MarkerDetector) {
	a.mu.RLock()
	fit := a.fit
	a.mu.RUnlock()
	if fit == nil {
		return
	}
	if err := md.SetAreaRange(fit.MinArea, fit.MaxArea); err != nil {
		log.Warn("ignoring marker calibration", "error", err)
	}
}

// SetCalibration stores fit for new detectors and applies it to the marker
// detectors of running sessions.
func (a *App) SetCalibration(fit detector.AreaFit) {
	a.mu.Lock()
	a.fit = &fit
	a.mu.Unlock()

	for _, info := range a.sessions.List() {
		s, ok := a.sessions.Get(info.ID)
		if !ok {
			continue
		}
		if md, ok := s.Pipeline().Detector().(*detector.MarkerDetector); ok {
			a.applyCalibration(md)
		}
	}
}

// Calibration returns the current marker area fit.
func (a *App) Calibration() (detector.AreaFit, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.fit == nil {
		return detector.AreaFit{}, false
	}
	return *a.fit, true
}

func (a *App) recordAction(session string, rec action.Record) {
	a.mu.Lock()
	r := rec
	a.last = &r
	fn := a.listener
	a.mu.Unlock()

	if fn != nil {
		fn(session, rec)
	}
}

// OnAction registers fn to be called for every emitted action.
func (a *App) OnAction(fn ActionListener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listener = fn
}

// LastAction returns the most recent emitted action.
func (a *App) LastAction() (action.Record, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.last == nil {
		return action.Record{}, false
	}
	return *a.last, true
}

// SetEnabled pauses or resumes gesture processing.
func (a *App) SetEnabled(enabled bool) {
	a.sessions.SetEnabled(enabled)
}

// IsEnabled returns whether gesture processing is enabled.
func (a *App) IsEnabled() bool {
	return a.sessions.Enabled()
}

// Store returns the application store.
func (a *App) Store() *store.Store {
	return a.store
}

// Sessions returns the session manager.
func (a *App) Sessions() *session.Manager {
	return a.sessions
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.server
}

// Run serves HTTP on the configured address and removes idle sessions until
// ctx is done, then shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.sessions.Run(ctx)

	srv := a.server.HTTPServer(a.cfg.Server.Addr)
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", a.cfg.Server.Addr, "static_dir", a.cfg.Server.StaticDir)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info("http server stopped")
	return nil
}

// Close stops every session and releases the sinks and the store.
func (a *App) Close() error {
	var errs []error
	if err := a.sessions.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.hooks != nil {
		a.hooks.Close()
	}
	if a.emitter != nil {
		a.emitter.Disconnect()
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
