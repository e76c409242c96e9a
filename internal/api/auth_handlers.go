package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ngocdanh181/ChildTrackingIOT/internal/auth"
)

// credentialsRequest is the request body for register and login.
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// tokenResponse is the success payload for register and login.
type tokenResponse struct {
	Token     string     `json:"token"`
	TokenType string     `json:"token_type"`
	ExpiresIn int        `json:"expires_in"`
	User      *auth.User `json:"user"`
}

// handleRegister creates a new account and returns a bearer token.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if !auth.IsValidEmail(req.Email) {
		writeBadRequest(w, "invalid email address")
		return
	}
	if !auth.IsValidPassword(req.Password) {
		writeBadRequest(w, "password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("hashing password failed", "error", err)
		writeInternalError(w, "failed to register")
		return
	}

	user := &auth.User{Email: req.Email, PasswordHash: hash}
	if err := s.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, auth.ErrEmailExists) {
			writeConflict(w, "email already registered")
			return
		}
		s.logger.Error("creating user failed", "error", err)
		writeInternalError(w, "failed to register")
		return
	}

	s.writeToken(w, http.StatusCreated, user)
}

// handleLogin authenticates an account and returns a bearer token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	user, err := s.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeUnauthorized(w, "invalid credentials")
			return
		}
		s.logger.Error("looking up user failed", "error", err)
		writeInternalError(w, "failed to log in")
		return
	}

	ok, err := auth.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !ok {
		writeUnauthorized(w, "invalid credentials")
		return
	}

	s.writeToken(w, http.StatusOK, user)
}

// handleMe returns the account behind the presented token.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeUnauthorized(w, "authentication required")
		return
	}

	user, err := s.users.GetByID(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeUnauthorized(w, "account no longer exists")
			return
		}
		writeInternalError(w, "failed to load account")
		return
	}

	writeSuccess(w, http.StatusOK, user)
}

func (s *Server) writeToken(w http.ResponseWriter, status int, user *auth.User) {
	ttl := s.authCfg.TokenTTLMinutes
	token, err := auth.GenerateToken(user, s.authCfg.JWTSecret, ttl)
	if err != nil {
		s.logger.Error("signing token failed", "error", err)
		writeInternalError(w, "failed to generate token")
		return
	}

	writeSuccess(w, status, tokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: ttl * 60, // seconds
		User:      user,
	})
}
