package fakeapi

import "github.com/matheus3301/inbox/internal/remote"

// DemoPassword is the password of every seeded account.
const DemoPassword = "password"

// Demo holds the accounts created by Seed.
type Demo struct {
	Alice, Bob, Carol remote.User
}

// Seed creates three accounts, a direct conversation between Alice and Bob
// with a short exchange, and a group with all three.
func Seed(b *Backend) (*Demo, error) {
	var d Demo
	var err error
	if d.Alice, err = b.AddUser("Alice Moreira", "alice", "alice@example.com", DemoPassword); err != nil {
		return nil, err
	}
	if d.Bob, err = b.AddUser("Bob Tanaka", "bob", "bob@example.com", DemoPassword); err != nil {
		return nil, err
	}
	if d.Carol, err = b.AddUser("Carol Diaz", "carol", "carol@example.com", DemoPassword); err != nil {
		return nil, err
	}

	if _, err := b.conversationWith(d.Alice.ID, d.Bob.ID); err != nil {
		return nil, err
	}
	for _, m := range []struct {
		from, to remote.User
		body     string
	}{
		{d.Bob, d.Alice, "the pallet of SKU-1042 arrived damaged"},
		{d.Alice, d.Bob, "thanks, I'll open a claim with the supplier"},
		{d.Bob, d.Alice, "photos are in the shared folder"},
	} {
		if _, err := b.sendMessage(m.from.ID, remote.SendMessageRequest{ReceiverID: m.to.ID, Message: m.body}); err != nil {
			return nil, err
		}
	}

	if _, err := b.createConversation(d.Alice.ID, []string{d.Bob.ID, d.Carol.ID}); err != nil {
		return nil, err
	}
	return &d, nil
}
