package chat

import (
	"context"
	"slices"

	"github.com/matheus3301/inbox/internal/remote"
)

// SearchMessages replaces the search results with the server's matches for
// query, optionally limited to one conversation. A newer search supersedes
// an older one still in flight. Messages and conversations are not touched.
func (s *Synchronizer) SearchMessages(ctx context.Context, query, conversationID string) ([]Message, error) {
	s.mu.Lock()
	if s.identity == nil {
		s.mu.Unlock()
		return nil, ErrSignedOut
	}
	s.searchGen++
	s.st.searching = true
	t := s.ticketLocked()
	s.bus.Emit(EventSearch, slices.Clone(s.st.search))
	s.mu.Unlock()

	found, err := s.backend.SearchMessages(ctx, query, conversationID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.identityCurrent(t) || t.search != s.searchGen {
		return nil, s.staleLocked("search messages")
	}
	s.st.searching = false
	if err != nil {
		return nil, s.failLocked("search messages", err)
	}
	s.st.search = slices.Clone(found)
	s.bus.Emit(EventSearch, slices.Clone(found))

	out := make([]Message, len(found))
	for i, m := range found {
		out[i] = Message{Message: m, State: StateConfirmed}
		applyRead(&out[i], s.read)
	}
	return out, nil
}

// ClearSearch empties the search results and supersedes a search still in
// flight. It never touches the network and is a no-op when there are no
// results and no search running.
func (s *Synchronizer) ClearSearch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.st.search) == 0 && !s.st.searching {
		return
	}
	s.searchGen++
	s.st.searching = false
	s.st.search = nil
	s.bus.Emit(EventSearch, []remote.Message{})
}
