// sim/eventstream.go

package sim

import (
	"log/slog"
	"sync"

	"github.com/tracon-sim/tracon/aviation"
	"github.com/tracon-sim/tracon/log"
	"github.com/tracon-sim/tracon/taxi"
)

// EventStream provides a basic pub/sub event interface that allows any
// part of the system to post an event to the stream and other parts to
// subscribe and receive messages from the stream. Quest and stats
// observers hang off of it; the core itself never consumes events.
type EventStream struct {
	mu            sync.Mutex
	events        []Event
	subscriptions map[*EventsSubscription]interface{}
	lg            *log.Logger
}

type EventsSubscription struct {
	stream *EventStream
	// offset is the offset in the stream up to which the subscriber has
	// consumed events so far.
	offset int
}

func NewEventStream(lg *log.Logger) *EventStream {
	return &EventStream{
		subscriptions: make(map[*EventsSubscription]interface{}),
		lg:            lg,
	}
}

// Subscribe registers a new subscriber to the stream.
func (e *EventStream) Subscribe() *EventsSubscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	sub := &EventsSubscription{stream: e, offset: len(e.events)}
	e.subscriptions[sub] = nil
	return sub
}

func (e *EventsSubscription) Unsubscribe() {
	e.stream.mu.Lock()
	defer e.stream.mu.Unlock()
	delete(e.stream.subscriptions, e)
}

// Post adds an event to the stream.
func (e *EventStream) Post(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lg.Debug("posting event", slog.String("type", event.Type.String()))
	e.events = append(e.events, event)
	e.compact()
}

// Get returns all events posted since the last Get call.
func (e *EventsSubscription) Get() []Event {
	e.stream.mu.Lock()
	defer e.stream.mu.Unlock()

	events := e.stream.events[e.offset:]
	e.offset = len(e.stream.events)
	return events
}

// compact reclaims the prefix every subscriber has consumed. Must be
// called with the mutex held.
func (e *EventStream) compact() {
	minOffset := len(e.events)
	for sub := range e.subscriptions {
		minOffset = min(minOffset, sub.offset)
	}
	if minOffset > len(e.events)/2 {
		n := len(e.events) - minOffset
		copy(e.events, e.events[minOffset:])
		e.events = e.events[:n]
		for sub := range e.subscriptions {
			sub.offset -= minOffset
		}
	}
}

type EventType int

const (
	ObjectSpawnedEvent EventType = iota
	SegmentChangedEvent
	EndpointChangedEvent
	TargetResolutionEvent
	DestinationReachedEvent
	ConflictDetectedEvent
	InstructionDispatchedEvent
	RouteCompletedEvent
	GoAroundEvent
	NumEventTypes
)

func (t EventType) String() string {
	return [...]string{"ObjectSpawned", "SegmentChanged", "EndpointChanged",
		"TargetResolution", "DestinationReached", "ConflictDetected",
		"InstructionDispatched", "RouteCompleted", "GoAround", "NumTypes"}[t]
}

type Event struct {
	Type EventType

	Object      ObjectID
	OtherObject ObjectID

	Segment  aviation.SegmentID
	Endpoint aviation.EndpointID

	Resolution  *taxi.Resolution
	Instruction InstructionID

	WrittenText string
}

func (e *Event) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("type", e.Type.String()),
		slog.Int("object", int(e.Object)))
}
