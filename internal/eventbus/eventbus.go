package eventbus

// Event represents an arbitrary event passed on the bus.
type Event interface{}

// EventBus carries heterogeneous pipeline events to subscribers.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// Bus is the untyped bus, a TypedBus over Event.
type Bus = TypedBus[Event]

// New creates a new Bus.
func New() *Bus { return NewTyped[Event]() }

var _ EventBus = (*Bus)(nil)
