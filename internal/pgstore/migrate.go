package pgstore

import "context"

// CreateSchema creates the tables if they do not exist. Catalog and
// membership rows are written by external systems; the engine only needs the
// columns below.
func (s *Store) CreateSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS books (
			id               TEXT PRIMARY KEY,
			code             TEXT NOT NULL DEFAULT '',
			title            TEXT NOT NULL,
			author           TEXT NOT NULL,
			isbn             TEXT NOT NULL DEFAULT '',
			category         TEXT NOT NULL DEFAULT '',
			total_copies     INT  NOT NULL CHECK (total_copies >= 0),
			available_copies INT  NOT NULL CHECK (available_copies >= 0 AND available_copies <= total_copies),
			created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS members (
			id              TEXT PRIMARY KEY,
			code            TEXT NOT NULL DEFAULT '',
			name            TEXT NOT NULL,
			email           TEXT NOT NULL,
			status          TEXT NOT NULL DEFAULT 'active',
			membership_type TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS loans (
			id           TEXT PRIMARY KEY,
			book_id      TEXT NOT NULL,
			member_id    TEXT NOT NULL,
			book_title   TEXT NOT NULL,
			book_author  TEXT NOT NULL,
			book_code    TEXT NOT NULL DEFAULT '',
			member_name  TEXT NOT NULL,
			member_code  TEXT NOT NULL DEFAULT '',
			member_email TEXT NOT NULL,
			borrow_date  TIMESTAMPTZ NOT NULL,
			due_date     TIMESTAMPTZ NOT NULL,
			return_date  TIMESTAMPTZ,
			status       TEXT NOT NULL,
			fine         INT  NOT NULL DEFAULT 0 CHECK (fine >= 0),
			condition    TEXT,
			created_at   TIMESTAMPTZ NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS loans_open_due_idx ON loans (due_date) WHERE return_date IS NULL`,
		`CREATE TABLE IF NOT EXISTS reservations (
			id               TEXT PRIMARY KEY,
			book_id          TEXT NOT NULL,
			member_id        TEXT NOT NULL,
			reservation_date TIMESTAMPTZ NOT NULL,
			expiry_date      TIMESTAMPTZ NOT NULL,
			status           TEXT NOT NULL,
			notes            TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS reservations_active_expiry_idx
			ON reservations (expiry_date) WHERE status IN ('pending','approved')`,
	}
	for _, stmt := range stmts {
		if _, err := s.DB.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
