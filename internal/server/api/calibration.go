package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/gestureboard/internal/detector"
	"github.com/ayusman/gestureboard/internal/log"
	"github.com/ayusman/gestureboard/internal/store"
)

// CalibrationHandler manages marker size calibration points and the fitted
// area model.
type CalibrationHandler struct {
	store *store.Store
	onFit func(detector.AreaFit)
}

// NewCalibrationHandler creates a handler. onFit, when set, is called with
// every newly stored fit.
func NewCalibrationHandler(s *store.Store, onFit func(detector.AreaFit)) *CalibrationHandler {
	return &CalibrationHandler{store: s, onFit: onFit}
}

// ServeHTTP routes /api/calibration, /api/calibration/points and
// /api/calibration/fit.
func (h *CalibrationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/calibration"), "/")

	switch {
	case path == "" && r.Method == http.MethodGet:
		h.get(w)
	case path == "" && r.Method == http.MethodDelete:
		h.clear(w)
	case path == "points" && r.Method == http.MethodPost:
		h.addPoint(w, r)
	case path == "fit" && r.Method == http.MethodPost:
		h.fit(w)
	case path == "" || path == "points" || path == "fit":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type calibrationResponse struct {
	Points []*store.CalibrationPoint `json:"points"`
	Fit    *detector.AreaFit         `json:"fit"`
}

type addPointRequest struct {
	DistanceCM float64 `json:"distance_cm"`
	Area       float64 `json:"area"`
}

// get handles GET /api/calibration.
func (h *CalibrationHandler) get(w http.ResponseWriter) {
	points, err := h.store.Calibration().Points()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list calibration points")
		return
	}
	if points == nil {
		points = []*store.CalibrationPoint{}
	}

	resp := calibrationResponse{Points: points}
	var fit detector.AreaFit
	switch err := h.store.Settings().GetJSON(store.CalibrationFitKey, &fit); {
	case err == nil:
		resp.Fit = &fit
	case !errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusInternalServerError, "Failed to load calibration fit")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// addPoint handles POST /api/calibration/points.
func (h *CalibrationHandler) addPoint(w http.ResponseWriter, r *http.Request) {
	var req addPointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.DistanceCM <= 0 || req.Area <= 0 {
		writeError(w, http.StatusBadRequest, "distance_cm and area must be positive")
		return
	}

	p := &store.CalibrationPoint{DistanceCM: req.DistanceCM, Area: req.Area}
	if err := h.store.Calibration().AddPoint(p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store calibration point")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// fit handles POST /api/calibration/fit.
func (h *CalibrationHandler) fit(w http.ResponseWriter) {
	points, err := h.store.Calibration().Points()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list calibration points")
		return
	}

	samples := make([]detector.CalibrationPoint, len(points))
	for i, p := range points {
		samples[i] = detector.CalibrationPoint{DistanceCM: p.DistanceCM, Area: p.Area}
	}
	fit, err := detector.FitAreaModel(samples)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.store.Settings().SetJSON(store.CalibrationFitKey, fit); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store calibration fit")
		return
	}
	log.Info("marker calibration fitted", "points", fit.Points, "min_area", fit.MinArea, "max_area", fit.MaxArea)

	if h.onFit != nil {
		h.onFit(fit)
	}
	writeJSON(w, http.StatusOK, fit)
}

// clear handles DELETE /api/calibration.
func (h *CalibrationHandler) clear(w http.ResponseWriter) {
	if err := h.store.Calibration().Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to clear calibration")
		return
	}
	if err := h.store.Settings().Delete(store.CalibrationFitKey); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to clear calibration")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
