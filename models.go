package main

import (
	"slices"
	"time"
)

// Role names. A role grants the authority "ROLE_" + name.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

const authorityPrefix = "ROLE_"

// User represents a user in the system
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	Password  string    `json:"-"`
	Enabled   bool      `json:"enabled"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u *User) clone() *User {
	c := *u
	c.Roles = slices.Clone(u.Roles)
	return &c
}

// AuthenticatedIdentity is what a verified token proves about its bearer.
type AuthenticatedIdentity struct {
	Username string
	Roles    []string
}

func (id *AuthenticatedIdentity) HasRole(role string) bool {
	return slices.Contains(id.Roles, role)
}

// Authorities renders the roles the way clients see them, e.g. ROLE_USER.
func (id *AuthenticatedIdentity) Authorities() []string {
	out := make([]string, 0, len(id.Roles))
	for _, r := range id.Roles {
		out = append(out, authorityPrefix+r)
	}
	return out
}

// SignUpRequest is the signup payload.
type SignUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
}

// LoginRequest carries the transient credentials of a login attempt.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is the login payload.
type TokenResponse struct {
	Token     string    `json:"token"`
	Type      string    `json:"type"`
	Username  string    `json:"username"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UserInfo is returned by /api/user/info.
type UserInfo struct {
	Username    string   `json:"username"`
	Authorities []string `json:"authorities"`
}
