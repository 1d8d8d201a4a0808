package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/gestureboard/internal/handstate"
	"github.com/ayusman/gestureboard/internal/log"
	"github.com/ayusman/gestureboard/internal/scoring"
)

// LandmarkConfig configures the landmark service strategy.
type LandmarkConfig struct {
	// MinConfidence is the minimum hand score reported by the service.
	MinConfidence float64 `yaml:"min_confidence" env:"MIN_CONFIDENCE"`

	// IdleTimeout shuts the service down after this long without frames.
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`

	// ScriptPath overrides the service script search.
	ScriptPath string `yaml:"script_path" env:"SCRIPT_PATH"`

	// PythonPath overrides the interpreter search.
	PythonPath string `yaml:"python_path" env:"PYTHON_PATH"`

	// Margins decide which fingers count as extended.
	Margins FingerMargins `yaml:"margins" envPrefix:"MARGINS_"`
}

// DefaultLandmarkConfig returns the landmark defaults.
func DefaultLandmarkConfig() LandmarkConfig {
	return LandmarkConfig{
		MinConfidence: 0.7,
		IdleTimeout:   30 * time.Second,
		Margins:       DefaultFingerMargins(),
	}
}

// LandmarkDetector implements Detector using the MediaPipe hand landmark
// service running as a Python subprocess.
type LandmarkDetector struct {
	config    LandmarkConfig
	script    string
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	lastUsed  time.Time
	idleTimer *time.Timer
}

// NewLandmarkDetector creates a landmark detector. The Python process is
// started lazily on first detection.
func NewLandmarkDetector(config LandmarkConfig) (*LandmarkDetector, error) {
	script := FindServiceScript(config.ScriptPath)
	if script == "" {
		return nil, ErrServiceNotFound
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultLandmarkConfig().IdleTimeout
	}
	if config.Margins == (FingerMargins{}) {
		config.Margins = DefaultFingerMargins()
	}
	return &LandmarkDetector{
		config: config,
		script: script,
	}, nil
}

// Name returns the strategy name.
func (d *LandmarkDetector) Name() string {
	return StrategyLandmark
}

// Detect sends the frame to the service and converts the most confident
// hand into an Observation.
func (d *LandmarkDetector) Detect(frame *gocv.Mat) (*Observation, error) {
	if frame == nil || frame.Empty() {
		return nil, nil
	}
	hands, err := d.landmarks(frame)
	if err != nil {
		return nil, err
	}
	return d.observe(hands, float64(frame.Cols()), float64(frame.Rows())), nil
}

// observe picks the most confident hand above the floor.
func (d *LandmarkDetector) observe(hands []HandLandmarks, w, h float64) *Observation {
	best := -1
	for i := range hands {
		if best < 0 || hands[i].Score > hands[best].Score {
			best = i
		}
	}
	if best < 0 || hands[best].Score < d.config.MinConfidence {
		return nil
	}
	return ObservationFromLandmarks(&hands[best], w, h, d.config.Margins)
}

// ObservationFromLandmarks builds an Observation for one hand in a w×h
// frame, counting fingers with m. The geometric sub-score is the model's
// hand score; landmark models have no color or uniformity signal, so those
// score 1.
func ObservationFromLandmarks(lm *HandLandmarks, w, h float64, m FingerMargins) *Observation {
	hand := *lm
	return &Observation{
		Position:   lm.Centroid(),
		Confidence: lm.Score,
		Scores: scoring.Scores{
			Geometric:  lm.Score,
			Color:      1,
			Uniformity: 1,
			Temporal:   1,
		},
		Openness: handstate.Openness{
			Fingers:   CountFingers(lm, w, h, m),
			HullRatio: HullRatio(lm, w, h),
		},
		Area:      lm.BoundsArea(w, h),
		Landmarks: &hand,
		Timestamp: time.Now(),
	}
}

func (d *LandmarkDetector) landmarks(frame *gocv.Mat) ([]HandLandmarks, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	if err := writeFrame(d.stdin, buf.GetBytes()); err != nil {
		d.shutdown()
		return nil, err
	}

	line, err := d.stdout.ReadString('\n')
	if err != nil {
		d.shutdown()
		return nil, fmt.Errorf("read response: %w", err)
	}

	hands, err := parseResponse([]byte(line))
	if err != nil {
		return nil, err
	}

	d.lastUsed = time.Now()
	d.resetIdleTimer()
	return hands, nil
}

// writeFrame writes a 4-byte big-endian length followed by the payload.
func writeFrame(w io.Writer, data []byte) error {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))
	if _, err := w.Write(length); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}

func parseResponse(line []byte) ([]HandLandmarks, error) {
	var response struct {
		Hands []jsonHand `json:"hands"`
		Error string     `json:"error"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("landmark service: %s", response.Error)
	}
	result := make([]HandLandmarks, 0, len(response.Hands))
	for _, h := range response.Hands {
		if len(h.Points) < NumLandmarks {
			continue
		}
		result = append(result, h.toHandLandmarks())
	}
	return result, nil
}

// Close shuts down the Python process.
func (d *LandmarkDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *LandmarkDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	python := d.config.PythonPath
	if python == "" {
		python = findVenvPython()
	}
	if python == "" {
		python = "python3"
	}

	d.cmd = exec.Command(python, d.script)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start landmark service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	d.lastUsed = time.Now()
	log.Info("landmark service started", "script", d.script, "python", python, "pid", d.cmd.Process.Pid)
	return nil
}

func (d *LandmarkDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}
	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil
	log.Info("landmark service stopped")
	return err
}

func (d *LandmarkDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(d.config.IdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

// FindServiceScript returns the absolute path of the landmark service
// script, or "" when it is not installed. An explicit path is checked
// first.
func FindServiceScript(explicit string) string {
	candidates := []string{}
	if explicit != "" {
		candidates = append(candidates, explicit)
	}
	candidates = append(candidates, searchPaths("scripts/mediapipe_service.py")...)
	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	return firstExisting(append(searchPaths("venv/bin/python"), "../../venv/bin/python"))
}

func searchPaths(rel string) []string {
	var execDir string
	if execPath, err := os.Executable(); err == nil {
		execDir = filepath.Dir(execPath)
	}
	return []string{
		rel,
		filepath.Join("..", rel),
		filepath.Join(execDir, rel),
		filepath.Join(os.Getenv("HOME"), ".gestureboard", rel),
	}
}

func firstExisting(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}
	return ""
}

// jsonHand represents the JSON structure from the Python service.
type jsonHand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

func (h jsonHand) toHandLandmarks() HandLandmarks {
	lm := HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}
	copy(lm.Points[:], h.Points)
	return lm
}
