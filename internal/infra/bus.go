package infra

// EventType represents the type of event in the collector
type EventType int

const (
	RecordStaged EventType = iota
	RecordAcknowledged
	RecordRejected
	RecordDeferred
	RecordCorrupt
)

// String returns the string representation of the EventType
func (et EventType) String() string {
	switch et {
	case RecordStaged:
		return "RecordStaged"
	case RecordAcknowledged:
		return "RecordAcknowledged"
	case RecordRejected:
		return "RecordRejected"
	case RecordDeferred:
		return "RecordDeferred"
	case RecordCorrupt:
		return "RecordCorrupt"
	default:
		return "Unknown"
	}
}

type Event interface{ EventType() EventType }
type Handler func(Event)

// Bus delivers events synchronously to the handlers subscribed to their type.
// A nil *Bus drops everything.
type Bus struct{ subs map[EventType][]Handler }

func NewBus() *Bus { return &Bus{subs: map[EventType][]Handler{}} }
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	for _, h := range b.subs[e.EventType()] {
		h(e)
	}
}
func (b *Bus) Subscribe(evt EventType, h Handler) { b.subs[evt] = append(b.subs[evt], h) }

// RecordEvent is published for every state change of a staged record.
type RecordEvent struct {
	Type     EventType
	RecordID string
	Reason   string
}

func (e RecordEvent) EventType() EventType { return e.Type }
