package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// UserService implements signup and login on top of a UserStore.
type UserService struct {
	store  UserStore
	hasher PasswordHasher
	tokens *TokenService
	log    *slog.Logger

	// dummyHash is verified against when the user does not exist, so unknown
	// usernames cost as much as wrong passwords.
	dummyHash string
}

func NewUserService(store UserStore, hasher PasswordHasher, tokens *TokenService, log *slog.Logger) (*UserService, error) {
	dummy, err := hasher.Hash("not-a-real-password")
	if err != nil {
		return nil, err
	}
	return &UserService{store: store, hasher: hasher, tokens: tokens, log: log, dummyHash: dummy}, nil
}

// CreateUser registers a new enabled user with the USER role.
func (s *UserService) CreateUser(ctx context.Context, req SignUpRequest) (*User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	exists, err := s.store.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUsernameTaken
	}

	exists, err = s.store.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hash, err := s.hasher.Hash(req.Password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, ValidationError(map[string]string{"password": "must be at most 72 bytes"})
	}
	if err != nil {
		return nil, newError(KindInternal, "failed to hash password", err)
	}

	// the store's unique keys still decide a race between concurrent signups
	user, err := s.store.Save(ctx, &User{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Password: hash,
		Enabled:  true,
		Roles:    []string{RoleUser},
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Login verifies credentials and issues a token. Unknown users and wrong
// passwords both surface as ErrBadCredentials.
func (s *UserService) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.store.FindByUsername(ctx, req.Username)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		s.hasher.Verify(s.dummyHash, req.Password)
		s.log.InfoContext(ctx, "login failed", "username", req.Username, "reason", "user not found")
		return nil, newError(KindBadCredentials, ErrBadCredentials.Message, err)
	}

	if !s.hasher.Verify(user.Password, req.Password) {
		s.log.InfoContext(ctx, "login failed", "username", req.Username, "reason", "bad password")
		return nil, ErrBadCredentials
	}

	if !user.Enabled {
		s.log.InfoContext(ctx, "login failed", "username", req.Username, "reason", "account disabled")
		return nil, ErrAccountDisabled
	}

	token, exp, err := s.tokens.Issue(user.Username, user.Roles)
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		Token:     token,
		Type:      "Bearer",
		Username:  user.Username,
		Roles:     user.Roles,
		ExpiresAt: exp,
	}, nil
}

func (s *UserService) FindByUsername(ctx context.Context, username string) (*User, error) {
	return s.store.FindByUsername(ctx, username)
}

func (s *UserService) FindByID(ctx context.Context, id int64) (*User, error) {
	return s.store.FindByID(ctx, id)
}
