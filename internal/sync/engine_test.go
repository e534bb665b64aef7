package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/inbox/internal/bus"
	"github.com/matheus3301/inbox/internal/chat"
	"github.com/matheus3301/inbox/internal/poll"
	"github.com/matheus3301/inbox/internal/remote"
	"github.com/matheus3301/inbox/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

var (
	alice = remote.User{ID: "u1", Fullname: "Alice"}
	bob   = remote.User{ID: "u2", Username: "bob"}
)

func confirmed(id, body string, sec int64) chat.Message {
	return chat.Message{
		Message: remote.Message{
			ID: id, ConversationID: "c1", Sender: bob, Receiver: alice,
			Body: body, CreatedAt: time.Unix(sec, 0),
		},
		State: chat.StateConfirmed,
	}
}

func TestMirrorMessagesSkipsPending(t *testing.T) {
	db := testDB(t)
	e := NewEngine(db, bus.New(), nil)

	pending := confirmed("local-1", "sending", 3)
	pending.LocalID = "local-1"
	pending.State = chat.StatePending

	n, err := e.MirrorMessages([]chat.Message{confirmed("m1", "hello", 1), pending})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("mirrored %d messages, want 1", n)
	}
	msgs, err := db.ListMessages("c1", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].MsgID != "m1" || msgs[0].SenderName != "bob" {
		t.Errorf("mirror = %+v, want only m1 from bob", msgs)
	}
}

func TestMirrorConversationPreview(t *testing.T) {
	db := testDB(t)
	e := NewEngine(db, bus.New(), nil)

	err := e.MirrorConversations([]remote.Conversation{
		{ID: "c1", Users: []remote.User{alice, bob}, CreatedAt: time.UnixMilli(1000)},
		{ID: "c2", Users: []remote.User{alice, bob}, CreatedAt: time.UnixMilli(500),
			LastMessage: &remote.LastMessage{ID: "m9", Message: "latest", Sender: &bob, CreatedAt: time.UnixMilli(9000)}},
	})
	if err != nil {
		t.Fatal(err)
	}

	convs, err := db.ListConversations(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 || convs[0].ID != "c2" {
		t.Fatalf("convs = %+v, want c2 first", convs)
	}
	if convs[0].LastMessagePreview != "latest" || convs[0].LastMessageSenderID != "u2" {
		t.Errorf("preview = %+v", convs[0])
	}
	if convs[1].LastActivityAt != 1000 {
		t.Errorf("empty conversation activity = %d, want createdAt", convs[1].LastActivityAt)
	}
}

func TestEngineMirrorsBusEvents(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	e := NewEngine(db, b, nil)

	updates, unsub := b.Subscribe(EventUpdated, 16)
	defer unsub()

	e.Start(context.Background())
	defer e.Stop()

	u := alice
	b.Emit(chat.EventIdentity, &u)
	b.Emit(chat.EventConversations, []remote.Conversation{{ID: "c1", Users: []remote.User{alice, bob}}})
	b.Emit(chat.EventMessages, []chat.Message{confirmed("m1", "hello", 1), confirmed("m2", "bye", 2)})
	b.Emit(chat.EventMessageDeleted, "m2")
	b.Emit(chat.EventUnread, 4)
	waitUpdates(t, updates, 5)

	// Ticks arrive on their own subscription; send it once the owner is set.
	b.Emit(poll.EventTick, poll.Tick{Identity: "u1", Started: time.Unix(1700000000, 0)})
	waitUpdates(t, updates, 1)

	st, err := ReadStats(db)
	if err != nil {
		t.Fatal(err)
	}
	if st.Owner != "u1" || st.Conversations != 1 || st.Messages != 1 || st.UnreadCount != 4 {
		t.Errorf("stats = %+v", st)
	}
	if !st.LastRefreshAt.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("LastRefreshAt = %v", st.LastRefreshAt)
	}
	if st.SchemaVersion != 2 {
		t.Errorf("SchemaVersion = %d, want 2", st.SchemaVersion)
	}
}

func TestFailedTickIsNotCheckpointed(t *testing.T) {
	db := testDB(t)
	e := NewEngine(db, bus.New(), nil)

	e.handleEvent(bus.Event{Kind: poll.EventTick, Payload: poll.Tick{Started: time.Now(), Err: context.DeadlineExceeded}})

	if _, ok, _ := db.GetState(store.StateLastRefreshAt); ok {
		t.Error("failed tick recorded as last refresh")
	}
}

func TestSwitchOwnerResetsMirror(t *testing.T) {
	db := testDB(t)
	e := NewEngine(db, bus.New(), nil)

	if err := e.SwitchOwner(&alice); err != nil {
		t.Fatal(err)
	}
	if _, err := e.MirrorMessages([]chat.Message{confirmed("m1", "hello", 1)}); err != nil {
		t.Fatal(err)
	}

	// Same owner again keeps rows.
	if err := e.SwitchOwner(&alice); err != nil {
		t.Fatal(err)
	}
	if n, _ := db.MessageCount(); n != 1 {
		t.Fatalf("messages = %d after same-owner switch, want 1", n)
	}

	if err := e.SwitchOwner(&bob); err != nil {
		t.Fatal(err)
	}
	if n, _ := db.MessageCount(); n != 0 {
		t.Errorf("messages = %d after owner change, want 0", n)
	}

	if err := e.SwitchOwner(nil); err != nil {
		t.Fatal(err)
	}
	st, err := ReadStats(db)
	if err != nil {
		t.Fatal(err)
	}
	if st.Owner != "" {
		t.Errorf("owner = %q after sign-out, want none", st.Owner)
	}
}

func waitUpdates(t *testing.T, ch <-chan bus.Event, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("got %d mirror updates, want %d", i, n)
		}
	}
}
