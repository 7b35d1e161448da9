package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/whobuiltmyroad/backend/internal/apperr"
	"github.com/whobuiltmyroad/backend/internal/database"
	"github.com/whobuiltmyroad/backend/internal/middleware"
	"github.com/whobuiltmyroad/backend/internal/models"
	"github.com/whobuiltmyroad/backend/internal/ratelimit"
	"github.com/whobuiltmyroad/backend/internal/services"
	"github.com/whobuiltmyroad/backend/pkg/utils"
)

const minPasswordLength = 6

type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SigninRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthHandler owns account registration and session issuance. Accounts
// live in Postgres; sessions live in Redis.
type AuthHandler struct {
	sessions *services.SessionService
	limiter  ratelimit.Limiter
}

func NewAuthHandler(sessions *services.SessionService, limiter ratelimit.Limiter) *AuthHandler {
	return &AuthHandler{sessions: sessions, limiter: limiter}
}

// Signup handles user registration
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if err := h.limiter.Admit(r.Context(), middleware.RateKey(r), ratelimit.ClassRegister, time.Now()); err != nil {
		writeError(w, r, err)
		return
	}

	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperr.New(apperr.Validation, "Invalid request body"))
		return
	}

	if err := utils.ValidateUsername(req.Username); err != nil {
		writeError(w, r, apperr.New(apperr.Validation, err.Error()))
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, r, apperr.Newf(apperr.Validation, "Password must be at least %d characters", minPasswordLength))
		return
	}

	username := utils.NormalizeUsername(req.Username)

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.Upstream, "Failed to create account", err))
		return
	}

	user := models.User{Username: username, IsActive: true}
	err = database.PostgresDB.QueryRowContext(r.Context(), `
		INSERT INTO users (username, password_hash)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, username, hashed).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			writeError(w, r, apperr.New(apperr.Validation, "Username already taken"))
			return
		}
		writeError(w, r, apperr.Wrap(apperr.Upstream, "Failed to create account", err))
		return
	}

	writeJSON(w, http.StatusCreated, "Account created successfully", user)
}

// Signin handles user login
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	if err := h.limiter.Admit(r.Context(), middleware.RateKey(r), ratelimit.ClassLogin, time.Now()); err != nil {
		writeError(w, r, err)
		return
	}

	var req SigninRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperr.New(apperr.Validation, "Invalid request body"))
		return
	}

	username := utils.NormalizeUsername(req.Username)
	if username == "" || req.Password == "" {
		writeError(w, r, apperr.New(apperr.Validation, "Username and password are required"))
		return
	}

	var user models.User
	err := database.PostgresDB.QueryRowContext(r.Context(), `
		SELECT id, created_at, username, password_hash, is_active FROM users WHERE username = $1
	`, username).Scan(&user.ID, &user.CreatedAt, &user.Username, &user.Password, &user.IsActive)
	if err == sql.ErrNoRows {
		writeInvalidCredentials(w)
		return
	}
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.Upstream, "Failed to sign in", err))
		return
	}
	if !user.IsActive {
		writeInvalidCredentials(w)
		return
	}

	ok, err := utils.VerifyPassword(req.Password, user.Password)
	if err != nil || !ok {
		writeInvalidCredentials(w)
		return
	}

	token, err := h.sessions.Create(r.Context(), user.ID, user.Username)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.Upstream, "Failed to create session", err))
		return
	}

	writeJSON(w, http.StatusOK, "Signed in successfully", map[string]interface{}{
		"token":    token,
		"username": user.Username,
	})
}

// Signout invalidates the caller's session token.
func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	if token != "" {
		if err := h.sessions.Invalidate(r.Context(), token); err != nil {
			writeError(w, r, apperr.Wrap(apperr.Upstream, "Failed to sign out", err))
			return
		}
	}
	writeJSON(w, http.StatusOK, "Signed out", nil)
}

// Me returns the identity behind the session token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r)
	if !ok {
		writeError(w, r, apperr.New(apperr.Authorization, "Authentication required"))
		return
	}
	writeJSON(w, http.StatusOK, "OK", map[string]interface{}{
		"id":       id.UserID,
		"username": id.Username,
	})
}

// Credential probes get one uniform answer so usernames cannot be
// enumerated through error messages.
func writeInvalidCredentials(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(APIResponse{Status: "error", Message: "Invalid credentials"})
}
