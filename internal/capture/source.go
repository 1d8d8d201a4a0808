package capture

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/gestureboard/internal/log"
)

// ErrSourceRunning is returned by Start on a source that is already running.
var ErrSourceRunning = errors.New("frame source already running")

// SourceConfig controls the frame queue and the adaptive capture rate.
type SourceConfig struct {
	// QueueDepth is the number of frames held for the consumer (1 or 2).
	QueueDepth int `yaml:"queue_depth" env:"QUEUE_DEPTH"`
	// Mirror flips frames horizontally so the view behaves like a mirror.
	Mirror bool `yaml:"mirror" env:"MIRROR"`
	// IdleFPS is the rate used after IdleTimeout without motion. Zero keeps
	// the camera at its configured rate.
	IdleFPS         int           `yaml:"idle_fps" env:"IDLE_FPS"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	MotionThreshold float64       `yaml:"motion_threshold" env:"MOTION_THRESHOLD"`
}

// DefaultSourceConfig returns the defaults used by the serve command.
func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		QueueDepth:      1,
		Mirror:          true,
		IdleFPS:         DefaultIdleFPS,
		IdleTimeout:     5 * time.Second,
		MotionThreshold: 1.0,
	}
}

// SourceStats counts frames through the source.
type SourceStats struct {
	Produced  uint64 `json:"produced"`
	Dropped   uint64 `json:"dropped"`
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
}

// Source reads a Camera on its own goroutine and keeps only the newest
// frames. A slow consumer never blocks capture: when the queue is full the
// oldest frame is released.
type Source struct {
	cam       Camera
	cfg       SourceConfig
	activeFPS int

	queue chan *gocv.Mat

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}

	produced  atomic.Uint64
	dropped   atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
}

// NewSource creates a source over cam. The camera's current rate is the
// active rate.
func NewSource(cam Camera, cfg SourceConfig) *Source {
	if cfg.QueueDepth < 1 {
		cfg.QueueDepth = 1
	}
	if cfg.QueueDepth > 2 {
		cfg.QueueDepth = 2
	}
	return &Source{
		cam:       cam,
		cfg:       cfg,
		activeFPS: cam.FPS(),
		queue:     make(chan *gocv.Mat, cfg.QueueDepth),
	}
}

// Start opens the camera and begins producing frames.
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSourceRunning
	}
	if err := s.cam.Open(); err != nil {
		return err
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true

	go s.run(s.stop, s.done)

	log.Info("frame source started",
		"fps", s.cam.FPS(),
		"idle_fps", s.cfg.IdleFPS,
		"queue_depth", s.cfg.QueueDepth,
		"mirror", s.cfg.Mirror)
	return nil
}

// Stop halts capture, releases queued frames and closes the camera.
func (s *Source) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
	s.drain()

	stats := s.Stats()
	log.Info("frame source stopped",
		"produced", stats.Produced,
		"dropped", stats.Dropped,
		"delivered", stats.Delivered)
	return s.cam.Close()
}

// Running reports whether the producer goroutine is active.
func (s *Source) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Latest waits up to timeout for a frame and returns the newest one queued.
// Older queued frames are released. The caller owns the returned Mat.
func (s *Source) Latest(timeout time.Duration) (*gocv.Mat, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var frame *gocv.Mat
	select {
	case frame = <-s.queue:
	case <-timer.C:
		return nil, false
	}

	for {
		select {
		case newer := <-s.queue:
			frame.Close()
			s.dropped.Add(1)
			frame = newer
		default:
			s.delivered.Add(1)
			return frame, true
		}
	}
}

// Stats returns a snapshot of the frame counters.
func (s *Source) Stats() SourceStats {
	return SourceStats{
		Produced:  s.produced.Load(),
		Dropped:   s.dropped.Load(),
		Delivered: s.delivered.Load(),
		Failed:    s.failed.Load(),
	}
}

func (s *Source) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	var (
		motion *MotionDetector
		rate   *RateController
	)
	if s.cfg.IdleFPS > 0 && s.cfg.IdleFPS < s.activeFPS {
		motion = NewMotionDetector(s.cfg.MotionThreshold)
		defer motion.Close()
		rate = NewRateController(s.activeFPS, s.cfg.IdleFPS, s.cfg.IdleTimeout)
		s.cam.SetFPS(rate.FPS())
	}

	ticker := time.NewTicker(interval(s.cam.FPS()))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			frame, err := s.cam.ReadFrame()
			if err != nil {
				s.failed.Add(1)
				log.Debug("frame read failed", "error", err)
				continue
			}
			if s.cfg.Mirror {
				gocv.Flip(*frame, frame, 1)
			}

			if motion != nil {
				moved, pct := motion.Detect(frame)
				if fps, changed := rate.Observe(now, moved); changed {
					s.cam.SetFPS(fps)
					ticker.Reset(interval(fps))
					log.Debug("capture rate changed", "fps", fps, "change_percent", pct)
				}
			}

			s.produced.Add(1)
			s.push(frame)
		}
	}
}

// push enqueues frame, releasing the oldest queued frame when full.
func (s *Source) push(frame *gocv.Mat) {
	for {
		select {
		case s.queue <- frame:
			return
		default:
		}
		select {
		case old := <-s.queue:
			old.Close()
			s.dropped.Add(1)
		default:
		}
	}
}

func (s *Source) drain() {
	for {
		select {
		case frame := <-s.queue:
			frame.Close()
		default:
			return
		}
	}
}

func interval(fps int) time.Duration {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return time.Second / time.Duration(fps)
}
