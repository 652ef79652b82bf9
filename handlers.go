package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// appHandler is a handler that returns its failure instead of writing it.
type appHandler func(w http.ResponseWriter, r *http.Request) error

// handle adapts an appHandler so every error goes through the mapper.
func (a *App) handle(h appHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			a.writeError(w, r, err)
		}
	})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return newError(KindValidation, "Request body is required", nil)
		}
		return newError(KindValidation, "Malformed request body", err)
	}
	return nil
}

func (a *App) HandleHealth(w http.ResponseWriter, r *http.Request) error {
	writeSuccess(w, http.StatusOK, "Application is running", nil)
	return nil
}

func (a *App) HandleReady(w http.ResponseWriter, r *http.Request) error {
	if err := a.DB.Ping(r.Context()); err != nil {
		return newError(KindUnavailable, ErrUnavailable.Message, err)
	}
	writeSuccess(w, http.StatusOK, "Ready", nil)
	return nil
}

func (a *App) HandleInfo(w http.ResponseWriter, r *http.Request) error {
	writeSuccess(w, http.StatusOK, "JWT Authentication Example - Production Ready", "Version: "+a.cfg.Version)
	return nil
}

func (a *App) HandleSignUp(w http.ResponseWriter, r *http.Request) error {
	var req SignUpRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	user, err := a.users.CreateUser(r.Context(), req)
	if err != nil {
		return err
	}
	writeSuccess(w, http.StatusOK, "User registered successfully", user)
	return nil
}

func (a *App) HandleLogin(w http.ResponseWriter, r *http.Request) error {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	tok, err := a.users.Login(r.Context(), req)
	if err != nil {
		return err
	}
	writeSuccess(w, http.StatusOK, "Login successful", tok)
	return nil
}

func (a *App) HandleProfile(w http.ResponseWriter, r *http.Request) error {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		return ErrMissingToken
	}
	writeSuccess(w, http.StatusOK, "User profile retrieved", id.Username)
	return nil
}

func (a *App) HandleUserInfo(w http.ResponseWriter, r *http.Request) error {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		return ErrMissingToken
	}
	writeSuccess(w, http.StatusOK, "User info retrieved", UserInfo{Username: id.Username, Authorities: id.Authorities()})
	return nil
}
