package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/diewo77/chantierpro/internal/auth"
	"github.com/diewo77/chantierpro/internal/httpx"
	"github.com/diewo77/chantierpro/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthHandler struct {
	db       *gorm.DB
	sessions *auth.Sessions
	log      *slog.Logger
}

func NewAuthHandler(db *gorm.DB, sessions *auth.Sessions, lg *slog.Logger) *AuthHandler {
	if lg == nil {
		lg = slog.Default()
	}
	return &AuthHandler{db: db, sessions: sessions, log: lg}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Login: POST /auth/login. The token is set as a cookie and returned for
// Bearer clients.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.Decode(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", map[string]string{"email": "required", "password": "required"})
		return
	}

	var user models.User
	err := h.db.WithContext(r.Context()).Preload("Profile").Where("email = ?", email).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		h.log.Error("login lookup failed", "error", err)
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	if err != nil || !user.Active || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		httpx.JSONError(w, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}

	token, exp, err := h.sessions.Issue(user.ID)
	if err != nil {
		h.log.Error("issue session failed", "error", err)
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	h.sessions.SetCookie(w, token, exp)
	h.log.Info("user logged in", "user_id", user.ID)
	httpx.JSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: exp, User: &user})
}

// Logout: POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.sessions.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me: GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var user models.User
	if err := h.db.WithContext(r.Context()).Preload("Profile.Permissions").First(&user, userID).Error; err != nil {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

// ActiveUser reports whether userID is an existing, active account. It backs
// the session middleware so deactivated users lose access immediately.
func (h *AuthHandler) ActiveUser(ctx context.Context, userID uint) bool {
	var n int64
	err := h.db.WithContext(ctx).Model(&models.User{}).Where("id = ? AND active = ?", userID, true).Count(&n).Error
	return err == nil && n == 1
}
