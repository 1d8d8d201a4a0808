package session

import (
	"encoding/base64"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/gestureboard/internal/capture"
	"github.com/ayusman/gestureboard/internal/log"
	"github.com/ayusman/gestureboard/internal/pipeline"
)

// LatestTimeout bounds the wait for a frame on each tick.
const LatestTimeout = 100 * time.Millisecond

// camera holds a session's frame source and its latest preview.
type camera struct {
	mu     sync.Mutex
	source *capture.Source
	stop   chan struct{}
	done   chan struct{}

	previewMu  sync.RWMutex
	preview    []byte
	previewSeq uint64
}

func (c *camera) active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source != nil
}

func (c *camera) stats() (capture.SourceStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source == nil {
		return capture.SourceStats{}, false
	}
	return c.source.Stats(), true
}

func (c *camera) setPreview(jpg []byte) {
	c.previewMu.Lock()
	c.preview = jpg
	c.previewSeq++
	c.previewMu.Unlock()
}

// CameraActive reports whether the session's camera is running.
func (s *Session) CameraActive() bool {
	return s.cam.active()
}

// Preview returns the latest preview JPEG and its sequence number, which
// increases with every new preview.
func (s *Session) Preview() ([]byte, uint64) {
	s.cam.previewMu.RLock()
	defer s.cam.previewMu.RUnlock()
	return s.cam.preview, s.cam.previewSeq
}

// StartCamera opens a camera and starts gesture processing. Starting a
// running camera is a no-op.
func (s *Session) StartCamera() error {
	if s.opts.NewCamera == nil {
		return ErrNoCamera
	}

	s.cam.mu.Lock()
	defer s.cam.mu.Unlock()
	if s.cam.source != nil {
		return nil
	}

	cam := s.opts.NewCamera()
	src := capture.NewSource(cam, s.opts.Source)
	if err := src.Start(); err != nil {
		return err
	}

	fps := cam.FPS()
	if fps <= 0 {
		fps = capture.DefaultFPS
	}

	s.cam.source = src
	s.cam.stop = make(chan struct{})
	s.cam.done = make(chan struct{})
	go s.run(src, fps, s.cam.stop, s.cam.done)

	s.touch()
	log.Info("camera started", "session", s.id, "fps", fps)
	return nil
}

// StopCamera stops gesture processing and releases the camera.
func (s *Session) StopCamera() error {
	s.cam.mu.Lock()
	src := s.cam.source
	if src == nil {
		s.cam.mu.Unlock()
		return nil
	}
	close(s.cam.stop)
	done := s.cam.done
	s.cam.source = nil
	s.cam.mu.Unlock()

	<-done
	s.touch()
	log.Info("camera stopped", "session", s.id)
	return src.Stop()
}

func (s *Session) run(src *capture.Source, fps int, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	frames := 0
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			frame, ok := src.Latest(LatestTimeout)
			if !ok {
				continue
			}
			if s.enabled() {
				frames++
				s.processFrame(frame, now, frames)
			}
			frame.Close()
		}
	}
}

func (s *Session) processFrame(frame *gocv.Mat, now time.Time, n int) {
	res := s.pipe.Process(frame, now)
	s.handleResult(res)

	every := s.opts.FrameEvery
	if every <= 0 {
		every = 1
	}
	if n%every != 0 {
		return
	}

	jpg, err := s.renderPreview(frame, res)
	if err != nil {
		log.Warn("preview encode failed", "session", s.id, "error", err)
		return
	}
	s.cam.setPreview(jpg)

	if s.ClientCount() > 0 {
		s.Broadcast(Message{Type: TypeCameraFrame, Data: CameraFrame{
			Frame:     base64.StdEncoding.EncodeToString(jpg),
			DebugInfo: s.debugInfo(res),
		}})
	}
}

func (s *Session) debugInfo(res pipeline.Result) DebugInfo {
	return DebugInfo{
		Detected:   res.Detected,
		Reason:     string(res.Reason),
		IsOpen:     res.Open,
		Confidence: res.Confidence,
		Fingers:    res.Fingers,
		HullRatio:  res.HullRatio,
		Cell:       res.Cell,
		Selected:   s.pipe.Selected(),
		Detector:   s.pipe.Detector().Name(),
	}
}
