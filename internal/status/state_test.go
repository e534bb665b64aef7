package status

import (
	"testing"

	"github.com/matheus3301/inbox/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want BOOTING", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Booting, AuthRequired},
		{Booting, Connecting},
		{AuthRequired, Connecting},
		{Connecting, Syncing},
		{Connecting, AuthRequired},
		{Connecting, Degraded},
		{Syncing, Ready},
		{Syncing, Degraded},
		{Ready, Degraded},
		{Ready, AuthRequired},
		{Degraded, Ready},
		{Degraded, Connecting},
		{Error, Booting},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to, "test"); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Booting, Ready},
		{AuthRequired, Syncing},
		{AuthRequired, Ready},
		{Ready, Syncing},
		{Error, Ready},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to, ""); err == nil {
				t.Errorf("Transition(%s -> %s) should fail", tt.from, tt.to)
			}
			if m.Current() != tt.from {
				t.Errorf("state = %s, want unchanged %s", m.Current(), tt.from)
			}
		})
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(AuthRequired, "no stored token"); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != EventChanged {
		t.Errorf("event kind = %q, want %s", evt.Kind, EventChanged)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Booting || change.To != AuthRequired || change.Reason != "no stored token" {
		t.Errorf("change = %+v, want BOOTING -> AUTH_REQUIRED with reason", change)
	}
	if m.Reason() != "no stored token" {
		t.Errorf("Reason() = %q", m.Reason())
	}
}

// TestEnsureIsIdempotent covers refresh outcomes repeating the current
// state: READY after READY must neither fail nor publish.
func TestEnsureIsIdempotent(t *testing.T) {
	b := bus.New()
	m := NewMachine(b)
	walkTo(t, m, Ready)

	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	if err := m.Ensure(Ready, "refresh ok"); err != nil {
		t.Fatalf("Ensure(READY) from READY: %v", err)
	}
	if len(ch) != 0 {
		t.Errorf("Ensure published %d events for a no-op", len(ch))
	}
	if err := m.Ensure(Degraded, "refresh failed"); err != nil {
		t.Fatalf("Ensure(DEGRADED): %v", err)
	}
	if len(ch) != 1 {
		t.Errorf("events = %d, want 1", len(ch))
	}
}

// TestLoginLifecycle simulates a first run:
// BOOTING → AUTH_REQUIRED → CONNECTING → SYNCING → READY
func TestLoginLifecycle(t *testing.T) {
	m := NewMachine(nil)

	for _, s := range []State{AuthRequired, Connecting, Syncing, Ready} {
		if err := m.Transition(s, ""); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if m.CanTransition(Syncing) {
		t.Error("READY should not reach SYNCING directly")
	}
}

// TestRejectedStoredToken covers a restart whose stored token the backend
// no longer accepts: BOOTING → CONNECTING → AUTH_REQUIRED.
func TestRejectedStoredToken(t *testing.T) {
	m := NewMachine(nil)
	for _, s := range []State{Connecting, AuthRequired} {
		if err := m.Transition(s, ""); err != nil {
			t.Fatalf("Transition to %s: %v", s, err)
		}
	}
}

// walkTo is a helper that transitions the machine to a target state.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Booting:      {},
		AuthRequired: {AuthRequired},
		Connecting:   {AuthRequired, Connecting},
		Syncing:      {Connecting, Syncing},
		Ready:        {Connecting, Syncing, Ready},
		Degraded:     {Connecting, Syncing, Degraded},
		Error:        {Error},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s, ""); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
