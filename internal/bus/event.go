package bus

import "time"

// Event is a state change announced on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
