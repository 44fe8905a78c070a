package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dicklesworthstone/wavedit/internal/timeline"
)

// Handler receives published events.
type Handler func(Event)

type subscription struct {
	id      uint64
	typ     string // empty matches every type
	handler Handler
}

// Bus is a synchronous publish/subscribe hub with a bounded history.
// Handlers run on the publisher's goroutine in registration order.
type Bus struct {
	mu      sync.RWMutex
	subs    []subscription
	nextID  uint64
	seq     uint64
	history []Event
	limit   int

	dropped atomic.Int64
}

// NewBus creates a bus retaining the last historySize events.
func NewBus(historySize int) *Bus {
	if historySize < 1 {
		historySize = 256
	}
	return &Bus{limit: historySize}
}

// Subscribe registers h for one event type and returns its unsubscribe func.
func (b *Bus) Subscribe(typ string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, typ: typ, handler: h})
	return func() { b.unsubscribe(id) }
}

// SubscribeAll registers h for every event type.
func (b *Bus) SubscribeAll(h Handler) func() {
	return b.Subscribe("", h)
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish stamps ev with a sequence number, records it and calls the
// matching handlers before returning.
func (b *Bus) Publish(ev Event) Event {
	b.mu.Lock()
	b.seq++
	ev.Seq = b.seq
	b.history = append(b.history, ev)
	if over := len(b.history) - b.limit; over > 0 {
		b.history = append(b.history[:0:0], b.history[over:]...)
	}
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		if s.typ == "" || s.typ == ev.Type {
			s.handler(ev)
		}
	}
	return ev
}

// History returns up to n most recent events, oldest first. n <= 0 returns
// everything retained.
func (b *Bus) History(n int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	h := b.history
	if n > 0 && n < len(h) {
		h = h[len(h)-n:]
	}
	out := make([]Event, len(h))
	copy(out, h)
	return out
}

// Last returns the most recent event.
func (b *Bus) Last() (Event, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.history) == 0 {
		return Event{}, false
	}
	return b.history[len(b.history)-1], true
}

// Stream subscribes a buffered channel to every event. Sends never block the
// publisher: when the buffer is full the event is dropped and counted.
func (b *Bus) Stream(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	var once sync.Once
	var closed atomic.Bool
	unsub := b.SubscribeAll(func(ev Event) {
		if closed.Load() {
			return
		}
		select {
		case ch <- ev:
		default:
			n := b.dropped.Add(1)
			// Only the first drop and every 1000th after it get logged.
			if n == 1 || n%1000 == 0 {
				slog.Default().Debug("event stream dropped events (buffer full)", "dropped", n, "event_type", ev.Type)
			}
		}
	})
	return ch, func() {
		once.Do(func() {
			closed.Store(true)
			unsub()
		})
	}
}

// Dropped returns the number of events dropped by full streams.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Notifier publishes timeline callbacks onto a Bus.
type Notifier struct {
	Bus *Bus
}

var _ timeline.Notifier = Notifier{}

// NewNotifier returns a Notifier for bus.
func NewNotifier(bus *Bus) Notifier { return Notifier{Bus: bus} }

func (n Notifier) SegmentSelected(label string, seg timeline.SegmentTimes) {
	n.Bus.Publish(NewSegmentEvent(SegmentSelected, label, seg))
}

func (n Notifier) SegmentChanged(label string, seg timeline.SegmentTimes) {
	n.Bus.Publish(NewSegmentEvent(SegmentChanged, label, seg))
}

func (n Notifier) PreviewRangeChanged(start, end float64) {
	n.Bus.Publish(NewPreviewEvent(start, end))
}

// EngineFailed reports a rendering engine failure.
func (n Notifier) EngineFailed(msg string) {
	n.Bus.Publish(NewMessageEvent(EngineFailed, msg))
}

// ModeChanged reports an interaction mode switch.
func (n Notifier) ModeChanged(m timeline.Mode) {
	n.Bus.Publish(NewMessageEvent(ModeChanged, m.String()))
}

// EngineCommands publishes the controller's engine commands so a remote
// rendering engine can follow them.
type EngineCommands struct {
	Bus *Bus
}

var _ timeline.Engine = EngineCommands{}

func (e EngineCommands) SeekTo(fraction float64) {
	e.Bus.Publish(NewValueEvent(EngineSeek, fraction))
}

func (e EngineCommands) ZoomTo(pxPerSec float64) {
	e.Bus.Publish(NewValueEvent(EngineZoom, pxPerSec))
}

func (e EngineCommands) PlayPause() {
	e.Bus.Publish(Event{Type: EnginePlayPause, Timestamp: time.Now().UTC()})
}
