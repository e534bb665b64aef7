package rpc

import (
	"testing"

	"google.golang.org/grpc/encoding"
)

func TestCodecRegistered(t *testing.T) {
	c := encoding.GetCodec(CodecName)
	if c == nil {
		t.Fatalf("codec %q not registered", CodecName)
	}

	data, err := c.Marshal(&SendMessageRequest{ReceiverID: "u2", Body: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"receiverId":"u2","body":"hi"}` {
		t.Errorf("wire = %s", data)
	}

	var out SendMessageRequest
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.ReceiverID != "u2" || out.Body != "hi" {
		t.Errorf("decoded = %+v", out)
	}
}

func TestCodecAcceptsEmptyFrame(t *testing.T) {
	var e Empty
	if err := (jsonCodec{}).Unmarshal(nil, &e); err != nil {
		t.Errorf("Unmarshal(nil) = %v, want nil", err)
	}
}

func TestServiceDescriptorsCoverInterfaces(t *testing.T) {
	if got := len(sessionServiceDesc.Methods); got != 3 {
		t.Errorf("session methods = %d, want 3", got)
	}
	seen := map[string]bool{}
	for _, m := range chatServiceDesc.Methods {
		if seen[m.MethodName] {
			t.Errorf("duplicate method %s", m.MethodName)
		}
		seen[m.MethodName] = true
	}
	for _, name := range []string{"SendMessage", "SelectConversation", "LocalSearch", "ClearSearch"} {
		if !seen[name] {
			t.Errorf("missing method %s", name)
		}
	}
	if len(chatServiceDesc.Streams) != 1 || !chatServiceDesc.Streams[0].ServerStreams {
		t.Error("Watch must be a server stream")
	}
}
