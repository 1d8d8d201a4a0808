package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ayusman/gestureboard/internal/capture"
	"github.com/ayusman/gestureboard/internal/detector"
	"github.com/ayusman/gestureboard/internal/log"
	"github.com/ayusman/gestureboard/internal/store"
)

// ErrNoMarker is returned when no frame of a measurement found the marker.
var ErrNoMarker = errors.New("marker not detected")

var (
	calibrateDistances []float64
	calibrateFrames    int
	calibrateClear     bool
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Fit the marker size model",
	Long: `Measure the marker's contour area at known distances and fit
area = a/d² + b. The fitted model narrows the accepted contour area range
of the marker detector.

Hold the marker at each distance when prompted. At least three distances
are needed; points from earlier runs are kept unless --clear is given.`,
	Example: `  gestureboard calibrate --distance 30 --distance 50 --distance 80
  gestureboard calibrate --distance 40,60,90,120 --frames 60 --clear`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if len(calibrateDistances) == 0 {
			return fmt.Errorf("at least one --distance is required")
		}
		if calibrateFrames <= 0 {
			return fmt.Errorf("--frames must be positive")
		}

		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
		st, err := store.New(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		det, err := detector.NewMarkerDetector(cfg.Detector.Marker)
		if err != nil {
			return err
		}
		defer det.Close()

		cam := capture.NewCamera(cfg.Camera.CameraConfig)
		if err := cam.Open(); err != nil {
			return err
		}
		defer cam.Close()

		c := &calibrator{
			in:    bufio.NewReader(cmd.InOrStdin()),
			out:   cmd.OutOrStdout(),
			store: st,
			measure: func() (float64, error) {
				return measureArea(cam, det, calibrateFrames)
			},
		}
		fit, err := c.run(calibrateDistances, calibrateClear)
		if err != nil {
			return err
		}

		fmt.Fprintf(c.out, "\nFitted area = %.1f/d² + %.1f from %d points\n", fit.A, fit.B, fit.Points)
		fmt.Fprintf(c.out, "Accepted marker area: %.0f to %.0f px²\n", fit.MinArea, fit.MaxArea)
		return nil
	},
}

func init() {
	calibrateCmd.Flags().Float64SliceVar(&calibrateDistances, "distance", nil, "distance in cm (repeatable)")
	calibrateCmd.Flags().IntVar(&calibrateFrames, "frames", 30, "frames measured per distance")
	calibrateCmd.Flags().BoolVar(&calibrateClear, "clear", false, "discard earlier calibration points")
}

// calibrator runs the interactive measurement and stores points and fit.
type calibrator struct {
	in      *bufio.Reader
	out     io.Writer
	store   *store.Store
	measure func() (float64, error)
}

func (c *calibrator) run(distances []float64, clear bool) (detector.AreaFit, error) {
	if clear {
		if err := c.store.Calibration().Clear(); err != nil {
			return detector.AreaFit{}, err
		}
	}

	for _, d := range distances {
		if d <= 0 {
			return detector.AreaFit{}, fmt.Errorf("distance must be positive, got %v", d)
		}
		fmt.Fprintf(c.out, "Hold the marker %.0f cm from the camera and press Enter... ", d)
		if _, err := c.in.ReadString('\n'); err != nil && !errors.Is(err, io.EOF) {
			return detector.AreaFit{}, err
		}

		area, err := c.measure()
		if err != nil {
			return detector.AreaFit{}, fmt.Errorf("measure at %.0f cm: %w", d, err)
		}
		fmt.Fprintf(c.out, "median area %.0f px²\n", area)
		log.Debug("calibration point measured", "distance_cm", d, "area", area)

		if err := c.store.Calibration().AddPoint(&store.CalibrationPoint{DistanceCM: d, Area: area}); err != nil {
			return detector.AreaFit{}, err
		}
	}

	points, err := c.store.Calibration().Points()
	if err != nil {
		return detector.AreaFit{}, err
	}
	samples := make([]detector.CalibrationPoint, len(points))
	for i, p := range points {
		samples[i] = detector.CalibrationPoint{DistanceCM: p.DistanceCM, Area: p.Area}
	}
	fit, err := detector.FitAreaModel(samples)
	if err != nil {
		return detector.AreaFit{}, err
	}
	if err := c.store.Settings().SetJSON(store.CalibrationFitKey, fit); err != nil {
		return detector.AreaFit{}, err
	}
	log.Info("marker calibration stored", "points", fit.Points, "min_area", fit.MinArea, "max_area", fit.MaxArea)
	return fit, nil
}

// measureArea returns the median detected area over n frames.
func measureArea(cam capture.Camera, det detector.Detector, n int) (float64, error) {
	areas := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		frame, err := cam.ReadFrame()
		if err != nil {
			return 0, err
		}
		obs, err := det.Detect(frame)
		frame.Close()
		if err != nil {
			return 0, err
		}
		if obs != nil {
			areas = append(areas, obs.Area)
		}
	}

	area, ok := detector.MedianArea(areas)
	if !ok {
		return 0, ErrNoMarker
	}
	return area, nil
}
