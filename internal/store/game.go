package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/gestureboard/internal/board"
)

// GameStatus is the lifecycle state of a persisted game.
type GameStatus string

const (
	GameActive    GameStatus = "active"
	GameFinished  GameStatus = "finished"
	GameAbandoned GameStatus = "abandoned"
)

// Game is one played game.
type Game struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	Status    GameStatus    `json:"status"`
	Winner    string        `json:"winner,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
	Moves     []*MoveRecord `json:"moves,omitempty"`
}

// MoveRecord is one executed move of a game.
type MoveRecord struct {
	GameID    string      `json:"game_id"`
	Seq       int         `json:"seq"`
	Player    string      `json:"player"`
	From      board.Cell  `json:"from"`
	To        board.Cell  `json:"to"`
	Captured  *board.Cell `json:"captured,omitempty"`
	Promoted  bool        `json:"promoted"`
	CreatedAt time.Time   `json:"created_at"`
}

// GameRepository stores games and their moves.
type GameRepository struct {
	db *sql.DB
}

// Games returns the game repository for this store.
func (s *Store) Games() *GameRepository {
	return &GameRepository{db: s.db}
}

// Create inserts a new active game.
func (r *GameRepository) Create(g *Game) error {
	if g.StartedAt.IsZero() {
		g.StartedAt = time.Now().UTC()
	}
	if g.Status == "" {
		g.Status = GameActive
	}

	_, err := r.db.Exec(
		`INSERT INTO games (id, session_id, status, winner, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		g.ID, g.SessionID, string(g.Status), g.Winner, g.StartedAt,
	)
	return err
}

// Finish closes a game with status and winner.
func (r *GameRepository) Finish(id string, status GameStatus, winner string) error {
	result, err := r.db.Exec(
		`UPDATE games SET status = ?, winner = ?, ended_at = ? WHERE id = ?`,
		string(status), winner, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a game with its moves.
func (r *GameRepository) GetByID(id string) (*Game, error) {
	g, err := scanGame(r.db.QueryRow(
		`SELECT id, session_id, status, winner, started_at, ended_at
		 FROM games WHERE id = ?`,
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	g.Moves, err = r.Moves(id)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// List returns the most recent games first, without moves. A limit of 0
// returns all games.
func (r *GameRepository) List(limit int) ([]*Game, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(
		`SELECT id, session_id, status, winner, started_at, ended_at
		 FROM games ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []*Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return games, nil
}

// AddMove appends a move to its game.
func (r *GameRepository) AddMove(m *MoveRecord) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(
		`INSERT INTO moves (game_id, seq, player, from_cell, to_cell, captured, promoted, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.GameID, m.Seq, m.Player, m.From.String(), m.To.String(), nullCell(m.Captured), m.Promoted, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("add move %d to game %s: %w", m.Seq, m.GameID, err)
	}
	return nil
}

// Moves returns the moves of a game in order.
func (r *GameRepository) Moves(gameID string) ([]*MoveRecord, error) {
	rows, err := r.db.Query(
		`SELECT game_id, seq, player, from_cell, to_cell, captured, promoted, created_at
		 FROM moves WHERE game_id = ? ORDER BY seq`,
		gameID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var moves []*MoveRecord
	for rows.Next() {
		m := &MoveRecord{}
		var from, to string
		var captured sql.NullString
		if err := rows.Scan(&m.GameID, &m.Seq, &m.Player, &from, &to, &captured, &m.Promoted, &m.CreatedAt); err != nil {
			return nil, err
		}
		if m.From, err = board.ParseCell(from); err != nil {
			return nil, err
		}
		if m.To, err = board.ParseCell(to); err != nil {
			return nil, err
		}
		if m.Captured, err = scanCell(captured); err != nil {
			return nil, err
		}
		moves = append(moves, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return moves, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*Game, error) {
	g := &Game{}
	var status string
	var ended sql.NullTime
	if err := row.Scan(&g.ID, &g.SessionID, &status, &g.Winner, &g.StartedAt, &ended); err != nil {
		return nil, err
	}
	g.Status = GameStatus(status)
	if ended.Valid {
		t := ended.Time
		g.EndedAt = &t
	}
	return g, nil
}
