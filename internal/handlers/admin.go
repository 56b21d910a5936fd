package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/diewo77/chantierpro/internal/httpx"
	"github.com/diewo77/chantierpro/internal/models"
	"github.com/diewo77/chantierpro/internal/validation"
	"gorm.io/gorm"
)

// ProfileCache forgets cached profiles after an assignment changes.
type ProfileCache interface {
	InvalidateUser(userID uint)
}

// AdminHandler manages profile assignments. Routes are mounted behind
// RequireAdmin.
type AdminHandler struct {
	DB    *gorm.DB
	Cache ProfileCache
	log   *slog.Logger
}

func NewAdminHandler(db *gorm.DB, cache ProfileCache, lg *slog.Logger) *AdminHandler {
	if lg == nil {
		lg = slog.Default()
	}
	return &AdminHandler{DB: db, Cache: cache, log: lg}
}

// ListProfiles: GET /admin/profiles
func (h *AdminHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	var profiles []models.Profile
	if err := h.DB.WithContext(r.Context()).Preload("Permissions").Order("name").Find(&profiles).Error; err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"profiles": profiles})
}

// ListUsers: GET /admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	var users []models.User
	if err := h.DB.WithContext(r.Context()).Preload("Profile").Order("id").Find(&users).Error; err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users})
}

type assignProfileRequest struct {
	ProfileID *uint `json:"profile_id"`
}

// AssignProfile: PUT /admin/users/{id}/profile {"profile_id": 2}. A null
// profile_id removes every permission from the user.
func (h *AdminHandler) AssignProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := urlID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var req assignProfileRequest
	if err := httpx.Decode(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	db := h.DB.WithContext(r.Context())
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
			return
		}
		writeServiceError(w, h.log, err)
		return
	}
	if req.ProfileID != nil {
		var n int64
		if err := db.Model(&models.Profile{}).Where("id = ?", *req.ProfileID).Count(&n).Error; err != nil {
			writeServiceError(w, h.log, err)
			return
		}
		if n == 0 {
			httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", validation.Violations{"profile_id": "not_found"})
			return
		}
	}

	if err := db.Model(&user).Update("profile_id", req.ProfileID).Error; err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	if h.Cache != nil {
		h.Cache.InvalidateUser(user.ID)
	}
	attrs := []any{"user_id", user.ID}
	if req.ProfileID != nil {
		attrs = append(attrs, "profile_id", *req.ProfileID)
	}
	h.log.Info("profile assigned", attrs...)
	httpx.JSON(w, http.StatusOK, map[string]any{"user_id": user.ID, "profile_id": req.ProfileID})
}
