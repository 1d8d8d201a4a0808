package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS games (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			status TEXT NOT NULL CHECK(status IN ('active', 'finished', 'abandoned')),
			winner TEXT NOT NULL DEFAULT '',
			started_at DATETIME NOT NULL,
			ended_at DATETIME
		)`,

		`CREATE TABLE IF NOT EXISTS moves (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			game_id TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			player TEXT NOT NULL,
			from_cell TEXT NOT NULL,
			to_cell TEXT NOT NULL,
			captured TEXT,
			promoted INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			UNIQUE(game_id, seq)
		)`,

		`CREATE TABLE IF NOT EXISTS gesture_actions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			type TEXT NOT NULL,
			position TEXT,
			from_cell TEXT,
			to_cell TEXT,
			confidence REAL NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS calibration_points (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			distance_cm REAL NOT NULL CHECK(distance_cm > 0),
			area REAL NOT NULL CHECK(area > 0),
			created_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_games_session_id ON games(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_moves_game_id ON moves(game_id)`,
		`CREATE INDEX IF NOT EXISTS idx_gesture_actions_session_id ON gesture_actions(session_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
