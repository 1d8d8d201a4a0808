package store

import (
	"database/sql"

	"github.com/ayusman/gestureboard/internal/board"
)

func nullCell(c *board.Cell) sql.NullString {
	if c == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: c.String(), Valid: true}
}

func scanCell(s sql.NullString) (*board.Cell, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	c, err := board.ParseCell(s.String)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
