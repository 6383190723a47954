package db

import (
	"time"

	"github.com/tphummel/sitewatch/internal/models"
)

// CreateUser inserts a new user record.
func (d *DB) CreateUser(u *models.User) error {
	_, err := d.conn.Exec(`
		INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, formatTime(u.CreatedAt), formatTime(u.UpdatedAt),
	)
	return err
}

// GetUserByEmail returns the user with the given email, or sql.ErrNoRows.
func (d *DB) GetUserByEmail(email string) (*models.User, error) {
	row := d.conn.QueryRow(`
		SELECT id, email, password_hash, created_at, updated_at
		FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// GetUserByID returns the user with the given ID, or sql.ErrNoRows.
func (d *DB) GetUserByID(id string) (*models.User, error) {
	row := d.conn.QueryRow(`
		SELECT id, email, password_hash, created_at, updated_at
		FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var createdAt, updatedAt string
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if u.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateSession records an issued session.
func (d *DB) CreateSession(s *models.Session) error {
	_, err := d.conn.Exec(`
		INSERT INTO sessions (id, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)`,
		s.ID, s.UserID, formatTime(s.CreatedAt), formatTime(s.ExpiresAt),
	)
	return err
}

// GetSession returns the session with the given ID, or sql.ErrNoRows.
func (d *DB) GetSession(id string) (*models.Session, error) {
	var s models.Session
	var createdAt, expiresAt string
	err := d.conn.QueryRow(`
		SELECT id, user_id, created_at, expires_at
		FROM sessions WHERE id = ?`, id).Scan(&s.ID, &s.UserID, &createdAt, &expiresAt)
	if err != nil {
		return nil, err
	}
	if s.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if s.ExpiresAt, err = parseTime("expires_at", expiresAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteSession removes a session. Returns sql.ErrNoRows if it does not exist.
func (d *DB) DeleteSession(id string) error {
	return affectedOne(d.conn.Exec(`DELETE FROM sessions WHERE id = ?`, id))
}

// DeleteExpiredSessions removes every session that expired before now and
// returns how many were removed.
func (d *DB) DeleteExpiredSessions(now time.Time) (int64, error) {
	res, err := d.conn.Exec(`DELETE FROM sessions WHERE expires_at < ?`, formatTime(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountSessions returns the number of stored sessions.
func (d *DB) CountSessions() (int, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n)
	return n, err
}
