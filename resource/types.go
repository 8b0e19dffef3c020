package resource

// Handle is an opaque reference to an entry in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Kind tags what an entry holds.
type Kind uint8

const (
	KindObject Kind = iota + 1 // module object
	KindNode                   // host node lent to a hook call
	KindValue                  // any other host value
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindNode:
		return "node"
	case KindValue:
		return "value"
	}
	return "unknown"
}

// EventType is the kind of lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

// Event represents a table lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	Kind   Kind
	Type   EventType
}

// Observer receives notifications about table lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// Dropper is optionally implemented by values that need cleanup on removal.
type Dropper interface {
	Drop()
}
