package model

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/matheus3301/inbox/internal/chat"
	"github.com/matheus3301/inbox/internal/remote"
	"github.com/matheus3301/inbox/internal/rpc"
)

// ErrNoConversation is returned by Send when no conversation is open.
var ErrNoConversation = errors.New("no conversation open")

// Daemon is the part of the daemon client the view model uses.
// *rpc.Client implements it.
type Daemon interface {
	Status(ctx context.Context) (*rpc.StatusResponse, error)
	Login(ctx context.Context, email, password string) (*rpc.LoginResponse, error)
	Logout(ctx context.Context) error
	Snapshot(ctx context.Context) (*chat.Snapshot, error)
	Refresh(ctx context.Context) (*chat.Snapshot, error)
	SelectConversation(ctx context.Context, id string) (*chat.Snapshot, error)
	LoadMessages(ctx context.Context, id string) (*chat.Snapshot, error)
	OpenConversation(ctx context.Context, userID string) (*rpc.ConversationResponse, error)
	SendMessage(ctx context.Context, in *rpc.SendMessageRequest) (*rpc.MessageResponse, error)
	Search(ctx context.Context, query, conversationID string) (*rpc.SearchResponse, error)
	LocalSearch(ctx context.Context, in *rpc.LocalSearchRequest) (*rpc.LocalSearchResponse, error)
	DismissError(ctx context.Context) error
}

// SearchRow is one line of the search page, from either the backend or the
// local mirror.
type SearchRow struct {
	ConversationID string
	MessageID      string
	Sender         string
	Snippet        string
	AtUnixMs       int64
}

// ViewModel caches daemon state and signals the UI when it changed.
type ViewModel struct {
	mu sync.RWMutex

	daemon   Daemon
	status   *rpc.StatusResponse
	snapshot *chat.Snapshot

	statusDirty   bool
	snapshotDirty bool

	refreshCh chan struct{}
}

// NewViewModel creates a new view model connected to the daemon client.
func NewViewModel(d Daemon) *ViewModel {
	return &ViewModel{
		daemon:    d,
		snapshot:  &chat.Snapshot{},
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// HandleEvent marks the state an event invalidates and signals a refresh.
// It reports whether the event was relevant.
func (vm *ViewModel) HandleEvent(evt *rpc.Event) bool {
	vm.mu.Lock()
	switch {
	case strings.HasPrefix(evt.Kind, "chat."):
		vm.snapshotDirty = true
		if evt.Kind == chat.EventIdentity {
			vm.statusDirty = true
		}
	case strings.HasPrefix(evt.Kind, "session."), evt.Kind == "poll.state":
		vm.statusDirty = true
	default:
		vm.mu.Unlock()
		return false
	}
	vm.mu.Unlock()
	vm.signalRefresh()
	return true
}

// Invalidate marks all cached state stale, for instance after the event
// stream reconnected and events may have been missed.
func (vm *ViewModel) Invalidate() {
	vm.mu.Lock()
	vm.statusDirty, vm.snapshotDirty = true, true
	vm.mu.Unlock()
	vm.signalRefresh()
}

// Sync reloads whatever HandleEvent marked stale.
func (vm *ViewModel) Sync(ctx context.Context) error {
	vm.mu.Lock()
	status, snap := vm.statusDirty, vm.snapshotDirty
	vm.statusDirty, vm.snapshotDirty = false, false
	vm.mu.Unlock()

	var errs []error
	if status {
		errs = append(errs, vm.LoadStatus(ctx))
	}
	if snap {
		errs = append(errs, vm.LoadSnapshot(ctx))
	}
	return errors.Join(errs...)
}

// LoadStatus fetches the daemon status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	resp, err := vm.daemon.Status(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status = resp
	vm.mu.Unlock()
	return nil
}

// LoadSnapshot fetches the synchronizer state without side effects.
func (vm *ViewModel) LoadSnapshot(ctx context.Context) error {
	return vm.apply(vm.daemon.Snapshot(ctx))
}

// Refresh reloads conversations and the unread count from the backend.
func (vm *ViewModel) Refresh(ctx context.Context) error {
	return vm.apply(vm.daemon.Refresh(ctx))
}

// Open selects a conversation; the daemon loads and marks its messages read.
func (vm *ViewModel) Open(ctx context.Context, id string) error {
	return vm.apply(vm.daemon.SelectConversation(ctx, id))
}

// Reload refetches the messages of the open conversation.
func (vm *ViewModel) Reload(ctx context.Context) error {
	id := vm.Snapshot().CurrentID
	if id == "" {
		return ErrNoConversation
	}
	return vm.apply(vm.daemon.LoadMessages(ctx, id))
}

// OpenWith finds or creates the direct conversation with userID and opens it.
func (vm *ViewModel) OpenWith(ctx context.Context, userID string) error {
	resp, err := vm.daemon.OpenConversation(ctx, userID)
	if err != nil {
		return err
	}
	return vm.Open(ctx, resp.Conversation.ID)
}

func (vm *ViewModel) apply(snap *chat.Snapshot, err error) error {
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.snapshot = snap
	vm.mu.Unlock()
	return nil
}

// Send posts body to the open conversation.
func (vm *ViewModel) Send(ctx context.Context, body string) error {
	if vm.Snapshot().CurrentID == "" {
		return ErrNoConversation
	}
	_, err := vm.daemon.SendMessage(ctx, &rpc.SendMessageRequest{Body: body})
	return err
}

// Search queries the backend. With scoped set, only the open conversation
// is searched.
func (vm *ViewModel) Search(ctx context.Context, query string, scoped bool) ([]SearchRow, error) {
	var convID string
	if scoped {
		convID = vm.Snapshot().CurrentID
	}
	resp, err := vm.daemon.Search(ctx, query, convID)
	if err != nil {
		return nil, err
	}
	rows := make([]SearchRow, 0, len(resp.Results))
	for _, m := range resp.Results {
		rows = append(rows, SearchRow{
			ConversationID: m.ConversationID,
			MessageID:      m.ID,
			Sender:         m.Sender.DisplayName(),
			Snippet:        m.Body,
			AtUnixMs:       m.CreatedAt.UnixMilli(),
		})
	}
	return rows, nil
}

// SearchLocal queries the daemon's offline mirror.
func (vm *ViewModel) SearchLocal(ctx context.Context, query string) ([]SearchRow, error) {
	resp, err := vm.daemon.LocalSearch(ctx, &rpc.LocalSearchRequest{Query: query})
	if err != nil {
		return nil, err
	}
	rows := make([]SearchRow, 0, len(resp.Results))
	for _, r := range resp.Results {
		rows = append(rows, SearchRow{
			ConversationID: r.ConversationID,
			MessageID:      r.MsgID,
			Sender:         r.SenderName,
			Snippet:        r.Snippet,
			AtUnixMs:       r.CreatedAtMs,
		})
	}
	return rows, nil
}

// Login signs the daemon in and reloads everything.
func (vm *ViewModel) Login(ctx context.Context, email, password string) error {
	if _, err := vm.daemon.Login(ctx, email, password); err != nil {
		return err
	}
	return errors.Join(vm.LoadStatus(ctx), vm.LoadSnapshot(ctx))
}

// Logout signs the daemon out.
func (vm *ViewModel) Logout(ctx context.Context) error {
	if err := vm.daemon.Logout(ctx); err != nil {
		return err
	}
	vm.mu.Lock()
	vm.snapshot = &chat.Snapshot{}
	vm.mu.Unlock()
	return vm.LoadStatus(ctx)
}

// DismissError clears the error held by the synchronizer.
func (vm *ViewModel) DismissError(ctx context.Context) error {
	return vm.daemon.DismissError(ctx)
}

// Status returns the last fetched daemon status, or nil.
func (vm *ViewModel) Status() *rpc.StatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// Snapshot returns the last fetched synchronizer state. Callers must not modify it.
func (vm *ViewModel) Snapshot() *chat.Snapshot {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.snapshot
}

// AuthRequired reports whether the daemon waits for credentials.
func (vm *ViewModel) AuthRequired() bool {
	st := vm.Status()
	return st != nil && st.Status == "AUTH_REQUIRED"
}

// SelfID returns the signed-in user's id, or "".
func (vm *ViewModel) SelfID() string {
	if id := vm.Snapshot().Identity; id != nil {
		return id.ID
	}
	if st := vm.Status(); st != nil && st.Identity != nil {
		return st.Identity.ID
	}
	return ""
}

// Conversation looks up a conversation of the current list by id.
func (vm *ViewModel) Conversation(id string) *remote.Conversation {
	snap := vm.Snapshot()
	for i := range snap.Conversations {
		if snap.Conversations[i].ID == id {
			return &snap.Conversations[i]
		}
	}
	if snap.CurrentConversation != nil && snap.CurrentConversation.ID == id {
		return snap.CurrentConversation
	}
	return nil
}

// FindConversation returns the id of the first conversation whose title
// contains name, case-insensitively.
func (vm *ViewModel) FindConversation(name string) string {
	self := vm.SelfID()
	name = strings.ToLower(name)
	for _, c := range vm.Snapshot().Conversations {
		if strings.Contains(strings.ToLower(ConversationTitle(&c, self)), name) {
			return c.ID
		}
	}
	return ""
}

// ConversationTitle names a conversation by its other participants.
func ConversationTitle(c *remote.Conversation, selfID string) string {
	var names []string
	for _, u := range c.Users {
		if u.ID == selfID {
			continue
		}
		names = append(names, u.DisplayName())
	}
	if len(names) == 0 {
		return c.ID
	}
	return strings.Join(names, ", ")
}
