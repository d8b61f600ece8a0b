package voice

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the lifecycle state of a call.
type State string

// Session states.
const (
	StateStarting  State = "starting"
	StateRinging   State = "ringing"
	StateConnected State = "connected"
	StateEnded     State = "ended"
)

// Description is the user-facing status line for the state.
func (s State) Description() string {
	switch s {
	case StateStarting:
		return "Calling..."
	case StateRinging:
		return "Ringing..."
	case StateConnected:
		return "Connected"
	case StateEnded:
		return "Call ended"
	default:
		return string(s)
	}
}

// EventType is a provider event.
type EventType string

// Provider events.
const (
	EventCallStart   EventType = "call-start"
	EventSpeechStart EventType = "speech-start"
	EventCallEnd     EventType = "call-end"
)

var (
	// ErrUnknownEvent is returned for event types outside the lifecycle.
	ErrUnknownEvent = errors.New("unknown voice event")

	// ErrSessionEnded is returned when an event arrives after call-end.
	ErrSessionEnded = errors.New("voice session ended")
)

// ParseEventType validates a provider event name.
func ParseEventType(s string) (EventType, error) {
	switch t := EventType(s); t {
	case EventCallStart, EventSpeechStart, EventCallEnd:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEvent, s)
}

// Transition is the effect of one event on a session.
type Transition struct {
	From State
	To   State
}

// Changed reports whether the event moved the session.
func (t Transition) Changed() bool { return t.From != t.To }

// transitions lists the moves out of each state. Events not listed leave
// the state unchanged.
var transitions = map[State]map[EventType]State{
	StateStarting: {
		EventCallStart:   StateRinging,
		EventSpeechStart: StateConnected,
		EventCallEnd:     StateEnded,
	},
	StateRinging: {
		EventSpeechStart: StateConnected,
		EventCallEnd:     StateEnded,
	},
	StateConnected: {
		EventCallEnd: StateEnded,
	},
}

// Session tracks one call. It is safe for concurrent use.
type Session struct {
	CallID    string
	UserID    string
	FlowID    string
	StartedAt time.Time

	mu      sync.Mutex
	state   State
	endedAt time.Time
	now     func() time.Time
}

// NewSession returns a session in StateStarting.
func NewSession(call Call, userID, flowID string) *Session {
	return &Session{
		CallID:    call.ID,
		UserID:    userID,
		FlowID:    flowID,
		StartedAt: time.Now(),
		state:     StateStarting,
		now:       time.Now,
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ended reports whether call-end was seen.
func (s *Session) Ended() bool {
	return s.State() == StateEnded
}

// EndedAt returns when the session ended, or the zero time.
func (s *Session) EndedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endedAt
}

// Handle applies evt.
func (s *Session) Handle(evt EventType) (Transition, error) {
	if _, err := ParseEventType(string(evt)); err != nil {
		return Transition{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEnded {
		return Transition{From: StateEnded, To: StateEnded}, ErrSessionEnded
	}

	from := s.state
	if to, ok := transitions[from][evt]; ok {
		s.state = to
		if to == StateEnded {
			s.endedAt = s.now()
		}
	}
	return Transition{From: from, To: s.state}, nil
}
