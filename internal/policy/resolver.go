package policy

import (
	"context"
	"errors"

	"github.com/diewo77/chantierpro/internal/gate"
	"github.com/diewo77/chantierpro/internal/models"
	"gorm.io/gorm"
)

// DBProfileResolver loads a user's profile and its permissions from the database.
type DBProfileResolver struct {
	DB *gorm.DB
}

func NewDBProfileResolver(db *gorm.DB) *DBProfileResolver {
	return &DBProfileResolver{DB: db}
}

// Resolve returns a nil profile for unknown or deactivated users, and for
// users without an assigned profile.
func (r *DBProfileResolver) Resolve(ctx context.Context, userID uint) (gate.Profile, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Preload("Profile.Permissions").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !user.Active || user.Profile == nil {
		return nil, nil
	}
	return &dbProfile{profile: user.Profile}, nil
}

type dbProfile struct {
	profile *models.Profile
}

func (p *dbProfile) Name() string { return p.profile.Name }

func (p *dbProfile) HasPermission(perm gate.Permission) bool {
	for _, granted := range p.profile.Permissions {
		if gate.Permission(granted.Code()).Matches(perm) {
			return true
		}
	}
	return false
}
