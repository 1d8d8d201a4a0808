package store

import (
	"database/sql"
	"time"

	"github.com/ayusman/gestureboard/internal/board"
)

// GestureAction is one action emitted by a session's gesture pipeline.
type GestureAction struct {
	ID         int64       `json:"id"`
	SessionID  string      `json:"session_id"`
	Seq        int         `json:"seq"`
	Type       string      `json:"type"`
	Position   *board.Cell `json:"position,omitempty"`
	From       *board.Cell `json:"from,omitempty"`
	To         *board.Cell `json:"to,omitempty"`
	Confidence float64     `json:"confidence"`
	CreatedAt  time.Time   `json:"created_at"`
}

// ActionRepository stores gesture actions.
type ActionRepository struct {
	db *sql.DB
}

// Actions returns the gesture action repository for this store.
func (s *Store) Actions() *ActionRepository {
	return &ActionRepository{db: s.db}
}

// Create inserts a gesture action and sets its ID.
func (r *ActionRepository) Create(a *GestureAction) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.Exec(
		`INSERT INTO gesture_actions (session_id, seq, type, position, from_cell, to_cell, confidence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.SessionID, a.Seq, a.Type, nullCell(a.Position), nullCell(a.From), nullCell(a.To), a.Confidence, a.CreatedAt,
	)
	if err != nil {
		return err
	}

	a.ID, err = result.LastInsertId()
	return err
}

// List returns the most recent actions first. An empty session lists all
// sessions; a limit of 0 returns every action.
func (r *ActionRepository) List(session string, limit int) ([]*GestureAction, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(
		`SELECT id, session_id, seq, type, position, from_cell, to_cell, confidence, created_at
		 FROM gesture_actions
		 WHERE ? = '' OR session_id = ?
		 ORDER BY id DESC LIMIT ?`,
		session, session, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []*GestureAction
	for rows.Next() {
		a := &GestureAction{}
		var pos, from, to sql.NullString
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Seq, &a.Type, &pos, &from, &to, &a.Confidence, &a.CreatedAt); err != nil {
			return nil, err
		}
		if a.Position, err = scanCell(pos); err != nil {
			return nil, err
		}
		if a.From, err = scanCell(from); err != nil {
			return nil, err
		}
		if a.To, err = scanCell(to); err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return actions, nil
}
