package gate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/diewo77/taskflow/gate"
)

type subject struct {
	ID    uint
	Scope uint
	Role  string
}

func (s subject) ScopeID() uint { return s.Scope }

type doc struct {
	OwnerID uint
	Scope   uint
}

func (d *doc) ScopeID() uint { return d.Scope }

func newTestGate() *gate.Gate[subject] {
	profiles := map[string]gate.Profile{
		"editor": gate.NewStaticProfile("editor", "doc:view", "doc:update"),
		"viewer": gate.NewStaticProfile("viewer", "doc:view"),
	}
	g := gate.NewGate[subject](gate.ResolverFunc[subject](func(_ context.Context, s subject) (gate.Profile, error) {
		return profiles[s.Role], nil
	}))
	g.Register("doc", gate.PolicyFunc[subject](func(_ context.Context, s subject, action gate.Action, resource any) error {
		d, ok := resource.(*doc)
		if !ok || action == gate.ActionView {
			return nil
		}
		if d.OwnerID != s.ID {
			return gate.Deny("only the owner may edit")
		}
		return nil
	}))
	return g
}

func TestGate_ZeroSubject(t *testing.T) {
	g := newTestGate()
	err := g.Authorize(context.Background(), subject{}, gate.ActionView, "doc", nil)
	if !errors.Is(err, gate.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestGate_ProfilePermission(t *testing.T) {
	g := newTestGate()
	viewer := subject{ID: 2, Scope: 1, Role: "viewer"}

	if !g.Can(context.Background(), viewer, gate.ActionView, "doc", nil) {
		t.Error("viewer should view")
	}
	err := g.Authorize(context.Background(), viewer, gate.ActionUpdate, "doc", nil)
	if !errors.Is(err, gate.ErrUnauthorized) {
		t.Fatalf("expected denial, got %v", err)
	}
	if g.Can(context.Background(), subject{ID: 3, Scope: 1, Role: "ghost"}, gate.ActionView, "doc", nil) {
		t.Error("subject without profile should be denied")
	}
}

func TestGate_PolicyDenialCarriesReason(t *testing.T) {
	g := newTestGate()
	editor := subject{ID: 1, Scope: 1, Role: "editor"}

	if err := g.Authorize(context.Background(), editor, gate.ActionUpdate, "doc", &doc{OwnerID: 1, Scope: 1}); err != nil {
		t.Fatalf("owner should update: %v", err)
	}
	err := g.Authorize(context.Background(), editor, gate.ActionUpdate, "doc", &doc{OwnerID: 9, Scope: 1})
	if !errors.Is(err, gate.ErrUnauthorized) {
		t.Fatalf("expected denial, got %v", err)
	}
	if gate.ReasonOf(err) != "only the owner may edit" {
		t.Errorf("reason = %q", gate.ReasonOf(err))
	}
}

func TestGate_OutOfScopeIsNotFound(t *testing.T) {
	g := newTestGate()
	editor := subject{ID: 1, Scope: 1, Role: "editor"}

	err := g.Authorize(context.Background(), editor, gate.ActionView, "doc", &doc{OwnerID: 1, Scope: 2})
	if !errors.Is(err, gate.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// Even without the permission the foreign resource stays hidden.
	viewer := subject{ID: 2, Scope: 1, Role: "viewer"}
	err = g.Authorize(context.Background(), viewer, gate.ActionDelete, "doc", &doc{Scope: 2})
	if !errors.Is(err, gate.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGate_CanProfile(t *testing.T) {
	g := newTestGate()
	editor := subject{ID: 1, Scope: 1, Role: "editor"}
	if !g.CanProfile(context.Background(), editor, gate.ActionUpdate, "doc") {
		t.Error("editor profile grants doc:update")
	}
	if g.CanProfile(context.Background(), subject{}, gate.ActionView, "doc") {
		t.Error("zero subject never passes")
	}
}
