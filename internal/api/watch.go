package api

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/matheus3301/inbox/internal/bus"
	"github.com/matheus3301/inbox/internal/poll"
	"github.com/matheus3301/inbox/internal/rpc"
	"go.uber.org/zap"
)

const watchBuffer = 256

// tickPayload is the wire form of poll.Tick; errors do not marshal.
type tickPayload struct {
	Identity   string `json:"identity"`
	StartedAt  int64  `json:"startedAtUnixMs"`
	DurationMs int64  `json:"durationMs"`
	Error      string `json:"error,omitempty"`
}

// Watch forwards bus events to the client until it disconnects. Events the
// client cannot keep up with are dropped by the bus, never queued without bound.
func (s *ChatService) Watch(req *rpc.WatchRequest, stream rpc.WatchStream) error {
	ch, unsub := s.bus.Subscribe("", watchBuffer)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			if !matches(evt.Kind, req.Prefixes) {
				continue
			}
			env, err := s.envelope(evt)
			if err != nil {
				s.logger.Warn("encode event", zap.String("kind", evt.Kind), zap.Error(err))
				continue
			}
			if err := stream.Send(env); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func matches(kind string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(kind, p) {
			return true
		}
	}
	return false
}

func (s *ChatService) envelope(evt bus.Event) (*rpc.Event, error) {
	payload := evt.Payload
	if t, ok := payload.(poll.Tick); ok {
		tp := tickPayload{
			Identity:   t.Identity,
			StartedAt:  t.Started.UnixMilli(),
			DurationMs: t.Duration.Milliseconds(),
		}
		if t.Err != nil {
			tp.Error = t.Err.Error()
		}
		payload = tp
	}

	env := &rpc.Event{
		ID:               uuid.New().String(),
		Profile:          s.profile,
		Kind:             evt.Kind,
		OccurredAtUnixMs: evt.Timestamp.UnixMilli(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return env, nil
}
