// Package policy wires the generic gate to ChantierPro: profiles from the
// database, ownership of documents and HTTP middleware.
package policy

import (
	"context"
	"net/http"
	"time"

	"github.com/diewo77/chantierpro/internal/auth"
	"github.com/diewo77/chantierpro/internal/gate"
	"github.com/diewo77/chantierpro/internal/httpx"
	"gorm.io/gorm"
)

// ResourceDocument is the resource type of quotes, invoices and situations.
const ResourceDocument = "document"

// AuthGate is the application's authorization checkpoint.
type AuthGate struct {
	Gate  *gate.Gate[uint]
	Cache *gate.CachedResolver[uint]
}

// NewAuthGate caches resolver for ttl and registers the document policy:
// owners act on their documents, admins on all of them.
func NewAuthGate(resolver gate.ProfileResolver[uint], ttl time.Duration) *AuthGate {
	cache := gate.NewCachedResolver[uint](resolver, ttl)
	ag := &AuthGate{Gate: gate.New[uint](cache), Cache: cache}
	ag.Gate.Register(ResourceDocument, NewAdminBypassPolicy(NewOwnershipPolicy(), ag.IsAdmin))
	return ag
}

func NewDBAuthGate(db *gorm.DB, ttl time.Duration) *AuthGate {
	return NewAuthGate(NewDBProfileResolver(db), ttl)
}

// Authorize checks the current user against action on resource.
func (ag *AuthGate) Authorize(ctx context.Context, action gate.Action, resourceType string, resource any) error {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return gate.ErrUnauthenticated
	}
	return ag.Gate.Authorize(ctx, userID, action, resourceType, resource)
}

func (ag *AuthGate) CanProfile(ctx context.Context, action gate.Action, resourceType string) bool {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return false
	}
	return ag.Gate.CanProfile(ctx, userID, action, resourceType)
}

// IsAdmin reports whether the user holds the superadmin permission.
func (ag *AuthGate) IsAdmin(ctx context.Context, userID uint) bool {
	return ag.Gate.HasPermission(ctx, userID, gate.SuperAdmin)
}

// InvalidateUser forgets the cached profile after a profile assignment changed.
func (ag *AuthGate) InvalidateUser(userID uint) { ag.Cache.Invalidate(userID) }

func (ag *AuthGate) InvalidateAll() { ag.Cache.InvalidateAll() }

// RequirePermission rejects requests whose profile lacks resourceType:action.
func (ag *AuthGate) RequirePermission(resourceType string, action gate.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := auth.UserIDFromContext(r.Context()); !ok {
				httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			if !ag.CanProfile(r.Context(), action, resourceType) {
				httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin only lets superadmins through.
func (ag *AuthGate) RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := auth.UserIDFromContext(r.Context())
			if !ok {
				httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			if !ag.IsAdmin(r.Context(), userID) {
				httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
