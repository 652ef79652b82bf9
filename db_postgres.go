package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

type PostgresDB struct {
	db  *sql.DB
	dsn string
}

func NewPostgresDB(dsn string) (*PostgresDB, error) {
	d, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	p := &PostgresDB{db: d, dsn: dsn}
	if err := p.Init(); err != nil {
		d.Close()
		return nil, err
	}
	return p, nil
}

// Init relies on migrations to create tables; it only verifies connectivity.
func (p *PostgresDB) Init() error {
	return p.db.Ping()
}

func (p *PostgresDB) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (p *PostgresDB) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

const pgUserColumns = `id,username,email,full_name,password,enabled,roles,created_at`

func (p *PostgresDB) scanUser(row *sql.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.Password, &u.Enabled, pq.Array(&u.Roles), &u.CreatedAt); err != nil {
		return nil, err
	}
	if u.Roles == nil {
		u.Roles = []string{}
	}
	return &u, nil
}

func (p *PostgresDB) FindByUsername(ctx context.Context, username string) (*User, error) {
	u, err := p.scanUser(p.db.QueryRowContext(ctx, `SELECT `+pgUserColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, userNotFound("username", username)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (p *PostgresDB) FindByID(ctx context.Context, id int64) (*User, error) {
	u, err := p.scanUser(p.db.QueryRowContext(ctx, `SELECT `+pgUserColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, userNotFound("id", id)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

// Save inserts the user; the users_username_key and users_email_key
// constraints decide concurrent duplicate signups.
func (p *PostgresDB) Save(ctx context.Context, u *User) (*User, error) {
	stored := u.clone()
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO users(username,email,full_name,password,enabled,roles,created_at)
		 VALUES($1,$2,$3,$4,$5,$6,now())
		 RETURNING id, created_at`,
		stored.Username, stored.Email, stored.FullName, stored.Password, stored.Enabled, pq.Array(stored.Roles),
	).Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		if taken := pgUniqueViolationError(err); taken != nil {
			return nil, taken
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return stored, nil
}

func pgUniqueViolationError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pgUniqueViolation {
		return nil
	}
	switch pqErr.Constraint {
	case "users_username_key":
		return ErrUsernameTaken
	case "users_email_key":
		return ErrEmailTaken
	}
	return nil
}

func (p *PostgresDB) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }
func (p *PostgresDB) Close() error                   { return p.db.Close() }
