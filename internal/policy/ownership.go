package policy

import (
	"context"

	"github.com/diewo77/chantierpro/internal/gate"
)

// Ownable is implemented by records that belong to one account.
// models.Document implements it with its UserID, and a situation carries the
// user id of the quote it bills, so the quote owner keeps control of every
// progressive invoice issued from it.
type Ownable interface {
	GetUserID() uint
}

// AdminCheck reports whether a user may act on records they do not own.
type AdminCheck func(ctx context.Context, userID uint) bool

// OwnershipPolicy lets a user act only on the quotes and invoices they own.
//
// It runs after the profile permission was granted. Listing and creating
// documents happen before any document is loaded, so the gate passes a nil
// resource and the profile decides alone. A resource that does not expose an
// owner is refused: a new model has to implement Ownable before this policy
// lets anyone touch it.
type OwnershipPolicy struct{}

func NewOwnershipPolicy() *OwnershipPolicy {
	return &OwnershipPolicy{}
}

// Can reports whether userID owns resource. The action is ignored: once a
// conducteur owns a document, the profile permission alone decides which
// lifecycle actions they may run on it.
func (p *OwnershipPolicy) Can(_ context.Context, userID uint, _ gate.Action, resource any) bool {
	if resource == nil {
		return true
	}
	doc, ok := resource.(Ownable)
	if !ok {
		return false
	}
	return doc.GetUserID() == userID
}

// AdminBypassPolicy grants administrators access to every document and falls
// back to the wrapped policy for everyone else. The admin check is evaluated
// on every call, so removing the superadmin permission from a profile takes
// effect as soon as the cached profile expires or is invalidated.
type AdminBypassPolicy struct {
	inner gate.Policy[uint]
	admin AdminCheck
}

// NewAdminBypassPolicy wraps inner; AuthGate passes its own IsAdmin as admin.
func NewAdminBypassPolicy(inner gate.Policy[uint], admin AdminCheck) *AdminBypassPolicy {
	return &AdminBypassPolicy{inner: inner, admin: admin}
}

func (p *AdminBypassPolicy) Can(ctx context.Context, userID uint, action gate.Action, resource any) bool {
	if p.admin != nil && p.admin(ctx, userID) {
		return true
	}
	return p.inner.Can(ctx, userID, action, resource)
}
