// Package account owns the signed-in identity of a daemon: it restores and
// persists credentials, drives the status machine and starts or stops polling
// as the identity comes and goes.
package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/matheus3301/inbox/internal/bus"
	"github.com/matheus3301/inbox/internal/poll"
	"github.com/matheus3301/inbox/internal/remote"
	"github.com/matheus3301/inbox/internal/status"
	"github.com/matheus3301/inbox/internal/store"
	"go.uber.org/zap"
)

// Event kinds published by the manager.
const (
	EventAuthenticated = "session.authenticated"
	EventAuthFailed    = "session.auth_failed"
	EventLoggedOut     = "session.logged_out"
)

var (
	ErrSignedIn    = errors.New("already signed in; log out first")
	ErrNotSignedIn = errors.New("not signed in")
)

// Sessions authenticates against the backend. *remote.Client implements it.
type Sessions interface {
	Login(ctx context.Context, email, password string) (*remote.Session, error)
	Me(ctx context.Context) (*remote.User, error)
	Logout(ctx context.Context) error
	SetToken(token string)
	Token() string
}

// Credentials persists the token and identity. *store.DB implements it.
type Credentials interface {
	GetState(key string) (string, bool, error)
	SetState(key, value string) error
	DeleteState(keys ...string) error
}

// Identities receives identity changes. *chat.Synchronizer implements it.
type Identities interface {
	SetIdentity(u *remote.User) bool
	SetUnauthorizedHandler(fn func())
}

// Poller refreshes on a timer while an identity is set. *poll.Poller implements it.
type Poller interface {
	Start(ctx context.Context, identity string)
	Stop()
}

// Manager tracks the signed-in identity.
type Manager struct {
	sessions Sessions
	creds    Credentials
	ids      Identities
	poller   Poller
	machine  *status.Machine
	bus      *bus.Bus
	logger   *zap.Logger

	mu       sync.Mutex
	identity *remote.User
	baseCtx  context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewManager wires a manager. Rejected credentials reported by ids sign the
// identity out.
func NewManager(sessions Sessions, creds Credentials, ids Identities, poller Poller, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		sessions: sessions,
		creds:    creds,
		ids:      ids,
		poller:   poller,
		machine:  machine,
		bus:      b,
		logger:   logger,
		baseCtx:  context.Background(),
	}
	ids.SetUnauthorizedHandler(m.handleUnauthorized)
	return m
}

// Start follows refresh outcomes to move between READY and DEGRADED. Polling
// started later runs under ctx.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	m.baseCtx = ctx
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	ch, unsub := m.bus.Subscribe(poll.EventTick, 16)
	go func() {
		defer close(m.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				if tick, ok := evt.Payload.(poll.Tick); ok {
					m.handleTick(tick)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops polling and the tick watcher. The identity stays persisted.
func (m *Manager) Stop() {
	m.poller.Stop()
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

// Identity returns the signed-in user, or nil.
func (m *Manager) Identity() *remote.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity == nil {
		return nil
	}
	cp := *m.identity
	return &cp
}

// Restore signs in with stored credentials. Without a token the daemon waits
// for a login. A token the backend rejects is discarded. When the backend is
// unreachable the cached identity is used and polling starts anyway, so the
// first successful refresh brings the daemon to READY.
func (m *Manager) Restore(ctx context.Context) error {
	token, ok, err := m.creds.GetState(store.StateToken)
	if err != nil {
		return fmt.Errorf("read stored token: %w", err)
	}
	if !ok || token == "" {
		return m.machine.Ensure(status.AuthRequired, "no stored credentials")
	}

	if err := m.machine.Ensure(status.Connecting, "restoring session"); err != nil {
		return err
	}
	m.sessions.SetToken(token)

	u, err := m.sessions.Me(ctx)
	switch {
	case err == nil:
		return m.activate(token, u)
	case errors.Is(err, remote.ErrUnauthorized):
		m.logger.Warn("stored token rejected", zap.Error(err))
		m.clearCredentials()
		m.bus.Emit(EventAuthFailed, err.Error())
		return m.machine.Transition(status.AuthRequired, "stored token rejected")
	}

	cached, cerr := m.cachedIdentity()
	if cerr != nil || cached == nil {
		_ = m.machine.Transition(status.Degraded, err.Error())
		return fmt.Errorf("validate stored token: %w", err)
	}
	m.logger.Warn("backend unreachable, using cached identity", zap.String("identity", cached.ID), zap.Error(err))
	return m.activate(token, cached)
}

// Login authenticates with email and password and starts syncing.
func (m *Manager) Login(ctx context.Context, email, password string) (*remote.User, error) {
	if m.Identity() != nil {
		return nil, ErrSignedIn
	}
	if err := m.machine.Ensure(status.Connecting, "logging in"); err != nil {
		return nil, err
	}

	sess, err := m.sessions.Login(ctx, email, password)
	if err != nil {
		m.logger.Warn("login failed", zap.String("email", email), zap.Error(err))
		m.bus.Emit(EventAuthFailed, err.Error())
		_ = m.machine.Transition(status.AuthRequired, "login failed")
		return nil, err
	}
	u := sess.User
	if err := m.activate(sess.Token, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Logout ends the session on the backend and locally. A failing backend
// call does not keep the local session alive.
func (m *Manager) Logout(ctx context.Context) error {
	if m.Identity() == nil {
		return ErrNotSignedIn
	}
	if err := m.sessions.Logout(ctx); err != nil {
		m.logger.Warn("backend logout failed", zap.Error(err))
	}
	m.deactivate("signed out")
	return nil
}

func (m *Manager) activate(token string, u *remote.User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}
	if err := m.creds.SetState(store.StateToken, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	if err := m.creds.SetState(store.StateIdentity, string(raw)); err != nil {
		return fmt.Errorf("store identity: %w", err)
	}

	m.mu.Lock()
	cp := *u
	m.identity = &cp
	ctx := m.baseCtx
	m.mu.Unlock()

	m.ids.SetIdentity(u)
	if err := m.machine.Ensure(status.Syncing, "signed in as "+u.DisplayName()); err != nil {
		m.logger.Warn("unexpected status transition", zap.Error(err))
	}
	m.poller.Start(ctx, u.ID)

	m.logger.Info("signed in", zap.String("identity", u.ID))
	m.bus.Emit(EventAuthenticated, cp)
	return nil
}

func (m *Manager) deactivate(reason string) {
	m.mu.Lock()
	had := m.identity != nil
	m.identity = nil
	m.mu.Unlock()
	if !had {
		return
	}

	m.poller.Stop()
	m.ids.SetIdentity(nil)
	m.clearCredentials()
	if err := m.machine.Ensure(status.AuthRequired, reason); err != nil {
		m.logger.Warn("unexpected status transition", zap.Error(err))
	}
	m.logger.Info("signed out", zap.String("reason", reason))
	m.bus.Emit(EventLoggedOut, reason)
}

func (m *Manager) clearCredentials() {
	m.sessions.SetToken("")
	if err := m.creds.DeleteState(store.StateToken, store.StateIdentity); err != nil {
		m.logger.Error("failed to clear stored credentials", zap.Error(err))
	}
}

func (m *Manager) cachedIdentity() (*remote.User, error) {
	raw, ok, err := m.creds.GetState(store.StateIdentity)
	if err != nil || !ok {
		return nil, err
	}
	var u remote.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, nil
	}
	return &u, nil
}

func (m *Manager) handleUnauthorized() {
	m.deactivate("credentials rejected by backend")
}

func (m *Manager) handleTick(t poll.Tick) {
	m.mu.Lock()
	current := m.identity != nil && m.identity.ID == t.Identity
	m.mu.Unlock()
	if !current {
		return
	}

	var err error
	if t.Err != nil {
		err = m.machine.Ensure(status.Degraded, t.Err.Error())
	} else {
		err = m.machine.Ensure(status.Ready, "refreshed")
	}
	if err != nil {
		m.logger.Debug("ignoring refresh outcome", zap.Error(err))
	}
}
