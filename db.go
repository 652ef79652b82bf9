package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// UserStore is the persistence boundary for user records. Save enforces
// username and email uniqueness itself and reports a violation as
// ErrUsernameTaken or ErrEmailTaken.
type UserStore interface {
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	Save(ctx context.Context, u *User) (*User, error)
	Ping(ctx context.Context) error
	Close() error
}

func userNotFound(by string, v any) error {
	return &Error{Kind: KindUserNotFound, Message: fmt.Sprintf("user not found with %s: %v", by, v)}
}

// Memory DB
type MemDB struct {
	mu         sync.RWMutex
	byID       map[int64]*User
	byUsername map[string]*User
	byEmail    map[string]*User
	seq        int64
}

func NewMemoryDB() *MemDB {
	return &MemDB{
		byID:       map[int64]*User{},
		byUsername: map[string]*User{},
		byEmail:    map[string]*User{},
		seq:        1,
	}
}

func (m *MemDB) ExistsByUsername(_ context.Context, username string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byUsername[username]
	return ok, nil
}

func (m *MemDB) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byEmail[strings.ToLower(email)]
	return ok, nil
}

func (m *MemDB) FindByUsername(_ context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.byUsername[username]; ok {
		return u.clone(), nil
	}
	return nil, userNotFound("username", username)
}

func (m *MemDB) FindByID(_ context.Context, id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.byID[id]; ok {
		return u.clone(), nil
	}
	return nil, userNotFound("id", id)
}

// Save checks both unique keys and inserts under one lock, the in-memory
// equivalent of the UNIQUE constraints the SQL stores rely on.
func (m *MemDB) Save(_ context.Context, u *User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(u.Email)
	if _, ok := m.byUsername[u.Username]; ok {
		return nil, ErrUsernameTaken
	}
	if _, ok := m.byEmail[email]; ok {
		return nil, ErrEmailTaken
	}

	stored := u.clone()
	stored.ID = m.seq
	m.seq++
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	m.byID[stored.ID] = stored
	m.byUsername[stored.Username] = stored
	m.byEmail[email] = stored
	return stored.clone(), nil
}

func (m *MemDB) Ping(context.Context) error { return nil }
func (m *MemDB) Close() error               { return nil }

// SQLite DB
type SQLiteDB struct {
	db   *sql.DB
	path string
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer at a time; also keeps ":memory:" databases on a single connection
	d.SetMaxOpenConns(1)
	s := &SQLiteDB{db: d, path: path}
	if err := s.Init(); err != nil {
		d.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteDB) Init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE COLLATE NOCASE,
			full_name TEXT NOT NULL DEFAULT '',
			password TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			roles TEXT NOT NULL DEFAULT 'USER',
			created_at TEXT NOT NULL
		);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteDB) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE username = ?`, username).Scan(&n); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteDB) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE email = ?`, email).Scan(&n); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

const sqliteUserColumns = `id,username,email,full_name,password,enabled,roles,created_at`

func (s *SQLiteDB) scanUser(row *sql.Row) (*User, error) {
	var u User
	var enabled int
	var roles, created string
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.Password, &enabled, &roles, &created); err != nil {
		return nil, err
	}
	u.Enabled = enabled != 0
	u.Roles = splitRoles(roles)
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		u.CreatedAt = t
	}
	return &u, nil
}

func (s *SQLiteDB) FindByUsername(ctx context.Context, username string) (*User, error) {
	u, err := s.scanUser(s.db.QueryRowContext(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE username = ?`, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, userNotFound("username", username)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (s *SQLiteDB) FindByID(ctx context.Context, id int64) (*User, error) {
	u, err := s.scanUser(s.db.QueryRowContext(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, userNotFound("id", id)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (s *SQLiteDB) Save(ctx context.Context, u *User) (*User, error) {
	stored := u.clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	enabled := 0
	if stored.Enabled {
		enabled = 1
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users(username,email,full_name,password,enabled,roles,created_at) VALUES(?,?,?,?,?,?,?)`,
		stored.Username, stored.Email, stored.FullName, stored.Password, enabled,
		strings.Join(stored.Roles, ","), stored.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		if taken := sqliteUniqueViolation(err); taken != nil {
			return nil, taken
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	stored.ID = id
	return stored, nil
}

// sqliteUniqueViolation recognises "UNIQUE constraint failed: users.<column>".
func sqliteUniqueViolation(err error) error {
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return nil
	}
	switch {
	case strings.Contains(msg, "users.username"):
		return ErrUsernameTaken
	case strings.Contains(msg, "users.email"):
		return ErrEmailTaken
	}
	return nil
}

func splitRoles(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

func (s *SQLiteDB) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *SQLiteDB) Close() error                   { return s.db.Close() }
