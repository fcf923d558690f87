package mapstate

import (
	"context"
	"time"
)

// Event types sent to map subscribers.
const (
	EventLayerAdded    = "layer_added"
	EventLayerToggled  = "layer_toggled"
	EventLayerRemoved  = "layer_removed"
	EventLayersCleared = "layers_cleared"
	EventViewport      = "viewport"
)

// Event is one change to the map state.
type Event struct {
	Type     string     `json:"type"`
	Layer    *LayerInfo `json:"layer,omitempty"`
	LayerID  string     `json:"layerId,omitempty"`
	Count    int        `json:"count,omitempty"`
	Viewport *Viewport  `json:"viewport,omitempty"`
	At       time.Time  `json:"at"`
}

func viewportEvent(vp Viewport) Event {
	return Event{Type: EventViewport, Viewport: &vp, At: time.Now()}
}

// Publisher receives map events. Implementations must not block.
type Publisher interface {
	Publish(Event)
}

// Bus fans events out to subscribers through a single goroutine, so no
// locks are needed around the subscriber set.
type Bus struct {
	publish     chan Event
	subscribe   chan chan Event
	unsubscribe chan chan Event
	count       chan chan int
}

// NewBus starts the broadcaster. It lives for the whole process.
func NewBus(buffer int) *Bus {
	b := &Bus{
		publish:     make(chan Event, buffer),
		subscribe:   make(chan chan Event),
		unsubscribe: make(chan chan Event),
		count:       make(chan chan int),
	}
	go b.run()
	return b
}

// Publish drops the event when the bus is saturated so registry mutations
// never wait on slow clients.
func (b *Bus) Publish(e Event) {
	select {
	case b.publish <- e:
	default:
	}
}

// Subscribe returns a channel of events that closes when ctx ends.
func (b *Bus) Subscribe(ctx context.Context, buffer int) <-chan Event {
	ch := make(chan Event, buffer)
	b.subscribe <- ch

	go func() {
		<-ctx.Done()
		b.unsubscribe <- ch
		close(ch)
	}()

	return ch
}

// Subscribers reports the current subscriber count.
func (b *Bus) Subscribers() int {
	reply := make(chan int)
	b.count <- reply
	return <-reply
}

func (b *Bus) run() {
	listeners := make(map[chan Event]struct{})

	for {
		select {
		case ch := <-b.subscribe:
			listeners[ch] = struct{}{}
		case ch := <-b.unsubscribe:
			delete(listeners, ch)
		case reply := <-b.count:
			reply <- len(listeners)
		case e := <-b.publish:
			for ch := range listeners {
				select {
				case ch <- e:
				default:
				}
			}
		}
	}
}
