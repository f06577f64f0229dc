package registry_test

import (
	"sort"
	"testing"

	"github.com/XavierBriggs/fortuna/services/live-sync/internal/registry"
	"github.com/XavierBriggs/fortuna/services/live-sync/pkg/models"
)

// fakeConn implements registry.Conn for tests
type fakeConn struct {
	id     string
	kicked bool
}

func (f *fakeConn) ID() string                          { return f.id }
func (f *fakeConn) TrySend(_ models.ServerMessage) bool { return true }
func (f *fakeConn) Kick(_ string)                       { f.kicked = true }

func TestRegistry_SubscribeTransitions(t *testing.T) {
	r := registry.New()
	a := &fakeConn{id: "a"}
	b := &fakeConn{id: "b"}

	if !r.Subscribe(a, "basketball_nba") {
		t.Error("first subscriber should report first = true")
	}
	if r.Subscribe(b, "basketball_nba") {
		t.Error("second subscriber should report first = false")
	}
	if r.Count("basketball_nba") != 2 {
		t.Errorf("Count() = %d, want 2", r.Count("basketball_nba"))
	}
}

func TestRegistry_DuplicateSubscribeIsIdempotent(t *testing.T) {
	r := registry.New()
	a := &fakeConn{id: "a"}

	r.Subscribe(a, "basketball_nba")
	if r.Subscribe(a, "basketball_nba") {
		t.Error("duplicate subscribe should not report a transition")
	}
	if r.Count("basketball_nba") != 1 {
		t.Errorf("Count() = %d after duplicate subscribe, want 1", r.Count("basketball_nba"))
	}

	// A single unsubscribe undoes a doubled subscribe completely.
	if !r.Unsubscribe(a, "basketball_nba") {
		t.Error("unsubscribing the only subscriber should report last = true")
	}
}

func TestRegistry_UnsubscribeTransitions(t *testing.T) {
	r := registry.New()
	a := &fakeConn{id: "a"}
	b := &fakeConn{id: "b"}

	r.Subscribe(a, "basketball_nba")
	r.Subscribe(b, "basketball_nba")

	if r.Unsubscribe(a, "basketball_nba") {
		t.Error("unsubscribe with remaining subscribers should report last = false")
	}
	if !r.Unsubscribe(b, "basketball_nba") {
		t.Error("unsubscribing the final subscriber should report last = true")
	}
	if r.Unsubscribe(b, "basketball_nba") {
		t.Error("unsubscribe of a non-subscription should be a no-op")
	}
}

func TestRegistry_DropReturnsEmptiedTopics(t *testing.T) {
	r := registry.New()
	a := &fakeConn{id: "a"}
	b := &fakeConn{id: "b"}

	r.Subscribe(a, "basketball_nba")
	r.Subscribe(a, "americanfootball_nfl")
	r.Subscribe(b, "basketball_nba")

	emptied := r.Drop(a)
	sort.Strings(emptied)

	// NBA still has b; NFL is emptied.
	if len(emptied) != 1 || emptied[0] != "americanfootball_nfl" {
		t.Errorf("Drop() emptied = %v, want [americanfootball_nfl]", emptied)
	}
	if r.Count("basketball_nba") != 1 {
		t.Errorf("Count(basketball_nba) = %d after drop, want 1", r.Count("basketball_nba"))
	}
}

func TestRegistry_Subscribers(t *testing.T) {
	r := registry.New()
	a := &fakeConn{id: "a"}
	b := &fakeConn{id: "b"}

	r.Subscribe(a, "basketball_nba")
	r.Subscribe(b, "americanfootball_nfl")

	subs := r.Subscribers("basketball_nba")
	if len(subs) != 1 || subs[0].ID() != "a" {
		t.Errorf("Subscribers(basketball_nba) = %v, want [a]", subs)
	}
	if len(r.Subscribers("baseball_mlb")) != 0 {
		t.Error("Subscribers() of an unknown topic should be empty")
	}
}
