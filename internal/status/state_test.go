package status

import (
	"testing"

	"github.com/matheus3301/matrixtui/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine("@a:hs", nil)
	if m.Current() != Disconnected {
		t.Errorf("initial state = %s, want DISCONNECTED", m.Current())
	}
	if m.HasSynced() {
		t.Error("HasSynced() = true before any sync")
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Disconnected, Syncing},
		{Disconnected, Error},
		{Syncing, Synced},
		{Syncing, Error},
		{Synced, Syncing},
		{Synced, Disconnected},
		{Error, Syncing},
		{Error, Disconnected},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine("@a:hs", nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine("@a:hs", nil)
	if err := m.Transition(Synced); err == nil {
		t.Error("Transition(DISCONNECTED -> SYNCED) should fail")
	}
	if m.Current() != Disconnected {
		t.Errorf("state = %s, want DISCONNECTED", m.Current())
	}
}

func TestRepeatedSyncedIsNoop(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("account.", 10)
	defer unsub()

	m := NewMachine("@a:hs", b)
	walkTo(t, m, Synced)
	for len(ch) > 0 {
		<-ch
	}
	if err := m.Transition(Synced); err != nil {
		t.Fatalf("repeat Synced: %v", err)
	}
	if len(ch) != 0 {
		t.Errorf("repeat transition published %d events, want 0", len(ch))
	}
}

func TestFailCarriesReason(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("account.", 10)
	defer unsub()

	m := NewMachine("@a:hs", b)
	_ = m.Transition(Syncing)
	<-ch
	if err := m.Fail("connection refused"); err != nil {
		t.Fatal(err)
	}
	if m.Reason() != "connection refused" {
		t.Errorf("reason = %q", m.Reason())
	}

	evt := <-ch
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.Account != "@a:hs" || change.From != Syncing || change.To != Error || change.Reason != "connection refused" {
		t.Errorf("change = %+v", change)
	}

	// Recovering clears the reason.
	if err := m.Transition(Syncing); err != nil {
		t.Fatal(err)
	}
	if m.Reason() != "" {
		t.Errorf("reason after recovery = %q, want empty", m.Reason())
	}
}

func TestFailWithoutReason(t *testing.T) {
	m := NewMachine("@a:hs", nil)
	if err := m.Fail(""); err != nil {
		t.Fatal(err)
	}
	if m.Reason() == "" {
		t.Error("Fail must always record a reason")
	}
}

func TestFirstSyncSticks(t *testing.T) {
	m := NewMachine("@a:hs", nil)
	walkTo(t, m, Synced)
	_ = m.Fail("timeout")
	if !m.HasSynced() {
		t.Error("HasSynced() reset by a later error")
	}
}

func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Disconnected: {},
		Syncing:      {Syncing},
		Synced:       {Syncing, Synced},
		Error:        {Error},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
