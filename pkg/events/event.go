package events

// EventType classifies queued events.
type EventType int

const (
	EvMessage    EventType = iota // Text for a player's connection
	EvDisconnect                  // Close the recipient's connection
	EvCall                        // Deferred function call
)

// String returns a human-readable name for the event type.
func (t EventType) String() string {
	switch t {
	case EvMessage:
		return "player-message"
	case EvDisconnect:
		return "disconnect"
	case EvCall:
		return "call"
	default:
		return "unknown"
	}
}

// Recipient is the player-like object an event is addressed to. Both fully
// connected players and connections still logging in are recipients.
type Recipient interface {
	// Accepts reports whether the event may still run against the recipient.
	// A recipient that has disconnected, or has moved past the login stage the
	// event was queued for, returns false and the event is dropped.
	Accepts(ev Event) bool
	// Deliver performs a message or disconnect event.
	Deliver(ev Event)
}

// Event is a deferred unit of work executed once by the scheduler.
type Event struct {
	Type   EventType
	Player Recipient // nil for events not addressed to anyone
	Stage  int       // login stage the recipient must be in; 0 = connected player
	Text   string    // EvMessage payload
	Run    func()    // EvCall payload
}

// Message builds a message event for a connected player.
func Message(to Recipient, text string) Event {
	return Event{Type: EvMessage, Player: to, Text: text}
}

// Disconnect builds a disconnect event for a connected player.
func Disconnect(to Recipient) Event {
	return Event{Type: EvDisconnect, Player: to}
}

// Call builds an event that runs fn. If to is non-nil the call is dropped
// once the recipient stops accepting events.
func Call(to Recipient, fn func()) Event {
	return Event{Type: EvCall, Player: to, Run: fn}
}

// Applicable reports whether the event should run now.
func (ev Event) Applicable() bool {
	return ev.Player == nil || ev.Player.Accepts(ev)
}

// Execute runs the event. Panics are not recovered here.
func (ev Event) Execute() {
	switch ev.Type {
	case EvCall:
		if ev.Run != nil {
			ev.Run()
		}
	default:
		if ev.Player != nil {
			ev.Player.Deliver(ev)
		}
	}
}
