package poll

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/matheus3301/inbox/internal/bus"
	"github.com/matheus3301/inbox/internal/chat"
	"go.uber.org/zap"
)

// DefaultInterval is the refresh period used when none is configured.
const DefaultInterval = 30 * time.Second

// Event kinds published by the poller.
const (
	EventState = "poll.state"
	EventTick  = "poll.tick"
)

// State is the lifecycle state of a Poller.
type State string

const (
	Idle    State = "idle"
	Polling State = "polling"
)

// Refresher is what a tick refreshes. *chat.Synchronizer implements it.
type Refresher interface {
	LoadConversations(ctx context.Context) error
	LoadUnreadCount(ctx context.Context) error
}

// Tick describes one finished refresh.
type Tick struct {
	Identity string
	Started  time.Time
	Duration time.Duration
	Err      error
}

// Poller periodically refreshes the conversation list and the unread counter
// while an identity is signed in. It never loads messages.
type Poller struct {
	refresher Refresher
	interval  time.Duration
	bus       *bus.Bus
	logger    *zap.Logger

	mu       sync.Mutex
	identity string
	cancel   context.CancelFunc
	done     chan struct{}
	ticks    sync.WaitGroup
}

// New creates an idle poller. A non-positive interval selects DefaultInterval.
func New(r Refresher, interval time.Duration, b *bus.Bus, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if b == nil {
		b = bus.New()
	}
	return &Poller{
		refresher: r,
		interval:  interval,
		bus:       b,
		logger:    logger,
	}
}

// Start enters polling for identity: one refresh runs immediately, then one
// per interval. Starting again for the same identity is a no-op; starting for
// another identity replaces the running loop, so at most one loop exists.
func (p *Poller) Start(ctx context.Context, identity string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil && p.identity == identity {
		return
	}
	p.stopLocked()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.identity = identity
	p.cancel = cancel
	p.done = done
	go p.loop(ctx, identity, done)

	p.logger.Info("polling started", zap.String("identity", identity), zap.Duration("interval", p.interval))
	p.bus.Emit(EventState, Polling)
}

// Stop returns to idle and cancels the timer along with in-flight refreshes.
// Stopping an idle poller does nothing.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Poller) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.logger.Info("polling stopped", zap.String("identity", p.identity))
	p.cancel = nil
	p.done = nil
	p.identity = ""
	p.bus.Emit(EventState, Idle)
}

// Wait blocks until every refresh started so far has returned.
func (p *Poller) Wait() {
	p.ticks.Wait()
}

// State reports whether the poller is running.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		return Idle
	}
	return Polling
}

// Identity returns the identity being polled for, or "" when idle.
func (p *Poller) Identity() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.identity
}

// Interval returns the refresh period.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

func (p *Poller) loop(ctx context.Context, identity string, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.spawn(ctx, identity)
	for {
		select {
		case <-ticker.C:
			p.spawn(ctx, identity)
		case <-ctx.Done():
			return
		}
	}
}

// spawn runs a refresh on its own goroutine so a slow one never delays the next.
func (p *Poller) spawn(ctx context.Context, identity string) {
	p.ticks.Add(1)
	go func() {
		defer p.ticks.Done()
		p.refresh(ctx, identity)
	}()
}

func (p *Poller) refresh(ctx context.Context, identity string) {
	start := time.Now()

	convErr := p.refresher.LoadConversations(ctx)
	unreadErr := p.refresher.LoadUnreadCount(ctx)
	err := errors.Join(ignorable(convErr), ignorable(unreadErr))

	tick := Tick{Identity: identity, Started: start, Duration: time.Since(start), Err: err}
	if err != nil {
		p.logger.Warn("poll refresh failed", zap.String("identity", identity), zap.Error(err))
	} else {
		p.logger.Debug("poll refresh done", zap.String("identity", identity), zap.Duration("took", tick.Duration))
	}
	p.bus.Emit(EventTick, tick)
}

// ignorable drops outcomes that only mean the tick outlived its identity.
func ignorable(err error) error {
	switch {
	case err == nil,
		errors.Is(err, chat.ErrStale),
		errors.Is(err, chat.ErrSignedOut),
		errors.Is(err, context.Canceled):
		return nil
	}
	return err
}
