package chat

import (
	"slices"
	"time"

	"github.com/matheus3301/inbox/internal/remote"
)

// activityAt is the ordering key of a conversation: the last message
// timestamp, or the creation time when the conversation has no messages.
func activityAt(c *remote.Conversation) time.Time {
	if c.LastMessage != nil && !c.LastMessage.CreatedAt.IsZero() {
		return c.LastMessage.CreatedAt
	}
	return c.CreatedAt
}

// sortConversations orders conversations by activity, newest first.
// Equal keys keep the server's order.
func sortConversations(convs []remote.Conversation) {
	slices.SortStableFunc(convs, func(a, b remote.Conversation) int {
		return activityAt(&b).Compare(activityAt(&a))
	})
}

// applyConversationReads keeps last-message previews read once a mark-read
// was confirmed for them in this session.
func applyConversationReads(convs []remote.Conversation, read map[string]struct{}) {
	for i := range convs {
		lm := convs[i].LastMessage
		if lm == nil {
			continue
		}
		if _, ok := read[lm.ID]; ok {
			lm.Read = true
		}
	}
}

func applyRead(m *Message, read map[string]struct{}) {
	if _, ok := read[m.ID]; ok {
		m.Read = true
	}
}

// confirmedMessages converts a fetched page into the local representation:
// time ordered, one entry per id, confirmed read marks applied.
func confirmedMessages(in []remote.Message, read map[string]struct{}) []Message {
	out := make([]Message, 0, len(in))
	seen := make(map[string]int, len(in))
	for _, rm := range in {
		m := Message{Message: rm, State: StateConfirmed}
		applyRead(&m, read)
		if i, ok := seen[m.ID]; ok {
			out[i] = m
			continue
		}
		seen[m.ID] = len(out)
		out = append(out, m)
	}
	slices.SortStableFunc(out, func(a, b Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

// mergeFetched replaces the confirmed part of the list with a fresh page and
// keeps pending entries, which the server cannot know about yet, at the end.
func mergeFetched(fetched, existing []Message) []Message {
	out := fetched
	for _, m := range existing {
		if m.Pending() {
			out = append(out, m)
		}
	}
	return out
}

func indexOf(msgs []Message, id string) int {
	return slices.IndexFunc(msgs, func(m Message) bool { return m.ID == id })
}

func indexOfLocal(msgs []Message, localID string) int {
	return slices.IndexFunc(msgs, func(m Message) bool { return m.LocalID != "" && m.LocalID == localID })
}

// replaceMessage swaps the entry with the same id. Unknown ids are ignored.
func replaceMessage(msgs []Message, m Message) ([]Message, bool) {
	i := indexOf(msgs, m.ID)
	if i < 0 {
		return msgs, false
	}
	msgs[i] = m
	return msgs, true
}

func removeMessage(msgs []Message, id string) ([]Message, bool) {
	i := indexOf(msgs, id)
	if i < 0 {
		return msgs, false
	}
	return slices.Delete(msgs, i, i+1), true
}

func removeLocal(msgs []Message, localID string) []Message {
	if i := indexOfLocal(msgs, localID); i >= 0 {
		return slices.Delete(msgs, i, i+1)
	}
	return msgs
}

// promotePending replaces the pending entry correlated by localID with the
// confirmed record. If the confirmed id is already listed (a reload raced the
// send), the existing entry is updated and the placeholder dropped, so the id
// appears once.
func promotePending(msgs []Message, localID string, confirmed Message) []Message {
	idx := indexOfLocal(msgs, localID)
	existing := indexOf(msgs, confirmed.ID)
	switch {
	case idx < 0 && existing < 0:
		return append(msgs, confirmed)
	case idx < 0:
		msgs[existing] = confirmed
		return msgs
	case existing >= 0 && existing != idx:
		msgs[existing] = confirmed
		return slices.Delete(msgs, idx, idx+1)
	default:
		msgs[idx] = confirmed
		return msgs
	}
}

// resolveReceiver picks the receiver among the conversation participants.
// An explicit receiverID must name a participant other than self; an empty
// one selects the first other participant in participant order.
func resolveReceiver(conv *remote.Conversation, selfID, receiverID string) (remote.User, bool) {
	for _, u := range conv.Users {
		if u.ID == selfID {
			continue
		}
		if receiverID == "" || u.ID == receiverID {
			return u, true
		}
	}
	return remote.User{}, false
}

// unreadFor lists ids of unread messages addressed to userID.
func unreadFor(msgs []Message, userID string) []string {
	var ids []string
	for _, m := range msgs {
		if !m.Read && !m.Pending() && m.Receiver.ID == userID {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func cloneConversation(c *remote.Conversation) *remote.Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Users = slices.Clone(c.Users)
	if c.LastMessage != nil {
		lm := *c.LastMessage
		cp.LastMessage = &lm
	}
	return &cp
}

func cloneConversations(in []remote.Conversation) []remote.Conversation {
	out := make([]remote.Conversation, len(in))
	for i := range in {
		out[i] = *cloneConversation(&in[i])
	}
	return out
}
