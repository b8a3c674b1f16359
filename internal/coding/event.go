package coding

// EventKind names the change carried by an Event.
type EventKind string

const (
	EventAdded   EventKind = "added"
	EventUpdated EventKind = "updated"
	EventRemoved EventKind = "removed"
)

// Event describes one change of a session. Delivery is synchronous.
type Event struct {
	Kind       EventKind
	ProjectID  string
	SourceID   string
	Codes      []Code
	Selections []Selection
}

// Empty reports whether the event carries no entities.
func (e Event) Empty() bool {
	return len(e.Codes) == 0 && len(e.Selections) == 0
}

// Observer receives session events.
type Observer interface {
	Notify(event Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(event Event)

func (f ObserverFunc) Notify(event Event) {
	f(event)
}
