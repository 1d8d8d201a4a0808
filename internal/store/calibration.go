package store

import (
	"database/sql"
	"time"
)

// CalibrationPoint is one measured marker area at a known distance.
type CalibrationPoint struct {
	ID         int64     `json:"id"`
	DistanceCM float64   `json:"distance_cm"`
	Area       float64   `json:"area"`
	CreatedAt  time.Time `json:"created_at"`
}

// CalibrationRepository stores calibration measurements.
type CalibrationRepository struct {
	db *sql.DB
}

// Calibration returns the calibration repository for this store.
func (s *Store) Calibration() *CalibrationRepository {
	return &CalibrationRepository{db: s.db}
}

// AddPoint inserts a measurement and sets its ID.
func (r *CalibrationRepository) AddPoint(p *CalibrationPoint) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	result, err := r.db.Exec(
		`INSERT INTO calibration_points (distance_cm, area, created_at) VALUES (?, ?, ?)`,
		p.DistanceCM, p.Area, p.CreatedAt,
	)
	if err != nil {
		return err
	}
	p.ID, err = result.LastInsertId()
	return err
}

// Points returns every measurement ordered by distance.
func (r *CalibrationRepository) Points() ([]*CalibrationPoint, error) {
	rows, err := r.db.Query(
		`SELECT id, distance_cm, area, created_at FROM calibration_points ORDER BY distance_cm, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []*CalibrationPoint
	for rows.Next() {
		p := &CalibrationPoint{}
		if err := rows.Scan(&p.ID, &p.DistanceCM, &p.Area, &p.CreatedAt); err != nil {
			return nil, err
		}
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

// Clear deletes every measurement.
func (r *CalibrationRepository) Clear() error {
	_, err := r.db.Exec(`DELETE FROM calibration_points`)
	return err
}
