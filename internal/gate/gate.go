// Package gate is a profile + policy authorization checkpoint. A user's profile
// grants "resource:action" permissions; a policy registered for a resource type
// then decides on a concrete resource (ownership). The package knows nothing of
// the domain models.
package gate

import (
	"context"
	"errors"
)

// Action is the verb half of a permission.
type Action string

const (
	ActionView   Action = "view"
	ActionList   Action = "list"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

var (
	// ErrUnauthenticated means no user was supplied.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden means the user lacks the permission or fails the policy.
	ErrForbidden = errors.New("forbidden")
)

// Policy decides on a concrete resource once the profile permission is granted.
type Policy[U any] interface {
	Can(ctx context.Context, user U, action Action, resource any) bool
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc[U any] func(ctx context.Context, user U, action Action, resource any) bool

func (f PolicyFunc[U]) Can(ctx context.Context, user U, action Action, resource any) bool {
	return f(ctx, user, action, resource)
}

// Gate checks profile permissions first, then the resource policy if one is
// registered and a resource is given.
type Gate[U comparable] struct {
	resolver ProfileResolver[U]
	policies map[string]Policy[U]
}

func New[U comparable](resolver ProfileResolver[U]) *Gate[U] {
	return &Gate[U]{resolver: resolver, policies: make(map[string]Policy[U])}
}

// Register sets the policy of resourceType, replacing any previous one.
func (g *Gate[U]) Register(resourceType string, p Policy[U]) {
	g.policies[resourceType] = p
}

func (g *Gate[U]) Authorize(ctx context.Context, user U, action Action, resourceType string, resource any) error {
	if err := g.checkProfile(ctx, user, NewPermission(resourceType, action)); err != nil {
		return err
	}
	if resource == nil {
		return nil
	}
	if p, ok := g.policies[resourceType]; ok && !p.Can(ctx, user, action, resource) {
		return ErrForbidden
	}
	return nil
}

func (g *Gate[U]) Can(ctx context.Context, user U, action Action, resourceType string, resource any) bool {
	return g.Authorize(ctx, user, action, resourceType, resource) == nil
}

// CanProfile checks the permission alone, before any resource is loaded.
func (g *Gate[U]) CanProfile(ctx context.Context, user U, action Action, resourceType string) bool {
	return g.checkProfile(ctx, user, NewPermission(resourceType, action)) == nil
}

// HasPermission reports whether the user's profile grants perm.
func (g *Gate[U]) HasPermission(ctx context.Context, user U, perm Permission) bool {
	return g.checkProfile(ctx, user, perm) == nil
}

func (g *Gate[U]) checkProfile(ctx context.Context, user U, perm Permission) error {
	var zero U
	if user == zero {
		return ErrUnauthenticated
	}
	profile, err := g.resolver.Resolve(ctx, user)
	if err != nil || profile == nil || !profile.HasPermission(perm) {
		return ErrForbidden
	}
	return nil
}
