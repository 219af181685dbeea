package stream

import (
	"fmt"

	"github.com/poiesic/counsel/chat"
)

// Kind tags an Event.
type Kind uint8

const (
	// EventMessage carries one character of the answer in Data.
	EventMessage Kind = iota + 1
	// EventComplete carries the full answer and ends the stream.
	EventComplete
	// EventError carries a failure summary in Err and ends the stream.
	EventError
)

func (k Kind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventComplete:
		return "complete"
	case EventError:
		return "error"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Event is one item of a streamed answer. Only the field matching Kind is set.
type Event struct {
	Kind   Kind
	Data   string
	Answer *chat.Answer
	Err    string
}
