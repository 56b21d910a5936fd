package gate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diewo77/chantierpro/internal/gate"
)

type owned struct{ owner uint }

func ownerOnly() gate.Policy[uint] {
	return gate.PolicyFunc[uint](func(_ context.Context, user uint, _ gate.Action, resource any) bool {
		r, ok := resource.(*owned)
		return ok && r.owner == user
	})
}

func TestGate_ProfilePermissions(t *testing.T) {
	ctx := context.Background()
	resolver := gate.NewStaticResolver[uint]()
	resolver.Set(1, gate.NewStaticProfile("lecteur",
		gate.NewPermission("document", gate.ActionView),
		gate.NewPermission("document", gate.ActionList),
	))
	g := gate.New[uint](resolver)

	if !g.Can(ctx, 1, gate.ActionView, "document", nil) {
		t.Error("lecteur should view documents")
	}
	if err := g.Authorize(ctx, 1, "send", "document", nil); !errors.Is(err, gate.ErrForbidden) {
		t.Errorf("send: got %v, want ErrForbidden", err)
	}
	if err := g.Authorize(ctx, 2, gate.ActionView, "document", nil); !errors.Is(err, gate.ErrForbidden) {
		t.Errorf("user without profile: got %v", err)
	}
	if err := g.Authorize(ctx, 0, gate.ActionView, "document", nil); !errors.Is(err, gate.ErrUnauthenticated) {
		t.Errorf("zero user: got %v", err)
	}
}

func TestGate_ResourcePolicy(t *testing.T) {
	ctx := context.Background()
	resolver := gate.NewStaticResolver[uint]()
	conducteur := gate.NewStaticProfile("conducteur", "document:*")
	resolver.Set(1, conducteur)
	resolver.Set(2, conducteur)

	g := gate.New[uint](resolver)
	g.Register("document", ownerOnly())
	doc := &owned{owner: 1}

	if !g.Can(ctx, 1, "convert", "document", doc) {
		t.Error("owner should be allowed")
	}
	if g.Can(ctx, 2, "convert", "document", doc) {
		t.Error("non-owner should be denied")
	}
	if !g.CanProfile(ctx, 2, "convert", "document") {
		t.Error("CanProfile ignores ownership")
	}
	if !g.Can(ctx, 2, gate.ActionCreate, "document", nil) {
		t.Error("nil resource skips the policy")
	}
}

func TestPermission_Matches(t *testing.T) {
	tests := []struct {
		have gate.Permission
		want gate.Permission
		ok   bool
	}{
		{"document:view", "document:view", true},
		{"document:view", "document:send", false},
		{"document:*", "document:send", true},
		{"document:*", "user:view", false},
		{gate.SuperAdmin, "user:update", true},
		{"*:view", "document:view", true},
		{"*:view", "document:pay", false},
		{"broken", "broken", true},
		{"broken", "document:view", false},
	}
	for _, tt := range tests {
		if got := tt.have.Matches(tt.want); got != tt.ok {
			t.Errorf("%q.Matches(%q) = %v, want %v", tt.have, tt.want, got, tt.ok)
		}
	}
}

// countingResolver records how often the cache falls through.
type countingResolver struct {
	calls   int
	profile gate.Profile
}

func (r *countingResolver) Resolve(context.Context, uint) (gate.Profile, error) {
	r.calls++
	return r.profile, nil
}

func TestCachedResolver(t *testing.T) {
	ctx := context.Background()
	inner := &countingResolver{profile: gate.NewStaticProfile("lecteur")}
	cached := gate.NewCachedResolver[uint](inner, time.Minute)

	for range 3 {
		p, err := cached.Resolve(ctx, 1)
		if err != nil || p.Name() != "lecteur" {
			t.Fatalf("Resolve = %v, %v", p, err)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("inner called %d times, want 1", inner.calls)
	}

	inner.profile = gate.NewStaticProfile("admin", gate.SuperAdmin)
	cached.Invalidate(1)
	if p, _ := cached.Resolve(ctx, 1); p.Name() != "admin" {
		t.Fatalf("after Invalidate got %q", p.Name())
	}

	_, _ = cached.Resolve(ctx, 2)
	calls := inner.calls
	cached.InvalidateAll()
	_, _ = cached.Resolve(ctx, 1)
	_, _ = cached.Resolve(ctx, 2)
	if inner.calls != calls+2 {
		t.Fatalf("InvalidateAll did not clear entries: %d calls", inner.calls-calls)
	}
}

func TestCachedResolver_Expiry(t *testing.T) {
	ctx := context.Background()
	inner := &countingResolver{profile: gate.NewStaticProfile("lecteur")}
	cached := gate.NewCachedResolver[uint](inner, 10*time.Millisecond)

	_, _ = cached.Resolve(ctx, 1)
	time.Sleep(20 * time.Millisecond)
	_, _ = cached.Resolve(ctx, 1)
	if inner.calls != 2 {
		t.Fatalf("expired entry served from cache (%d calls)", inner.calls)
	}
}
