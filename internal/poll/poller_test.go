package poll

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matheus3301/inbox/internal/bus"
	"github.com/matheus3301/inbox/internal/chat"
)

// mockRefresher counts refreshes. When block is set, LoadConversations waits
// on it until the context ends or the channel is closed.
type mockRefresher struct {
	convs  atomic.Int32
	unread atomic.Int32
	block  chan struct{}
	err    error
}

func (m *mockRefresher) LoadConversations(ctx context.Context) error {
	m.convs.Add(1)
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.err
}

func (m *mockRefresher) LoadUnreadCount(context.Context) error {
	m.unread.Add(1)
	return nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStartRefreshesImmediately(t *testing.T) {
	m := &mockRefresher{}
	p := New(m, time.Hour, nil, nil)

	p.Start(context.Background(), "u1")
	defer p.Stop()

	waitFor(t, func() bool { return m.unread.Load() == 1 })
	if got := m.convs.Load(); got != 1 {
		t.Errorf("LoadConversations calls = %d, want 1", got)
	}
	if p.State() != Polling {
		t.Errorf("State() = %q, want polling", p.State())
	}
}

func TestStartSameIdentityKeepsOneLoop(t *testing.T) {
	m := &mockRefresher{}
	p := New(m, time.Hour, nil, nil)
	ctx := context.Background()

	p.Start(ctx, "u1")
	p.Start(ctx, "u1")
	p.Start(ctx, "u1")
	defer p.Stop()

	waitFor(t, func() bool { return m.unread.Load() >= 1 })
	time.Sleep(50 * time.Millisecond)
	if got := m.convs.Load(); got != 1 {
		t.Errorf("refreshes = %d, want 1 for repeated Start", got)
	}
}

func TestStartOtherIdentityReplacesLoop(t *testing.T) {
	m := &mockRefresher{}
	b := bus.New()
	ch, unsub := b.Subscribe(EventState, 10)
	defer unsub()
	p := New(m, time.Hour, b, nil)
	ctx := context.Background()

	p.Start(ctx, "u1")
	p.Start(ctx, "u2")
	defer p.Stop()

	waitFor(t, func() bool { return m.unread.Load() == 2 })
	if p.Identity() != "u2" {
		t.Errorf("Identity() = %q, want u2", p.Identity())
	}

	want := []State{Polling, Idle, Polling}
	for _, w := range want {
		select {
		case evt := <-ch:
			if evt.Payload.(State) != w {
				t.Errorf("state event = %v, want %v", evt.Payload, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing state event %v", w)
		}
	}
}

func TestStopCancelsTimer(t *testing.T) {
	m := &mockRefresher{}
	p := New(m, 10*time.Millisecond, nil, nil)

	p.Start(context.Background(), "u1")
	waitFor(t, func() bool { return m.convs.Load() >= 2 })
	p.Stop()
	p.Wait()

	n := m.convs.Load()
	time.Sleep(50 * time.Millisecond)
	if got := m.convs.Load(); got != n {
		t.Errorf("refreshes after Stop: %d -> %d", n, got)
	}
	if p.State() != Idle || p.Identity() != "" {
		t.Errorf("after Stop state = %q identity = %q, want idle", p.State(), p.Identity())
	}
	p.Stop()
}

func TestSlowTickDoesNotBlockNext(t *testing.T) {
	m := &mockRefresher{block: make(chan struct{})}
	p := New(m, 10*time.Millisecond, nil, nil)

	p.Start(context.Background(), "u1")
	waitFor(t, func() bool { return m.convs.Load() >= 3 })
	if got := m.unread.Load(); got != 0 {
		t.Errorf("blocked ticks finished early: unread calls = %d", got)
	}

	close(m.block)
	p.Stop()
	p.Wait()
}

func TestTickErrorsAreReported(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe(EventTick, 10)
	defer unsub()

	m := &mockRefresher{err: errors.New("backend down")}
	p := New(m, time.Hour, b, nil)

	p.Start(context.Background(), "u1")
	defer p.Stop()

	select {
	case evt := <-ch:
		tick := evt.Payload.(Tick)
		if tick.Identity != "u1" || tick.Err == nil {
			t.Errorf("tick = %+v, want failure for u1", tick)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no tick event")
	}
}

func TestStaleOutcomesAreNotFailures(t *testing.T) {
	for _, err := range []error{chat.ErrStale, chat.ErrSignedOut, context.Canceled} {
		if ignorable(err) != nil {
			t.Errorf("ignorable(%v) != nil", err)
		}
	}
	if ignorable(errors.New("x")) == nil {
		t.Error("ignorable dropped a real failure")
	}
}
