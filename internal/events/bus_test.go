package events

import (
	"math"
	"testing"

	"github.com/Dicklesworthstone/wavedit/internal/timeline"
)

func TestBus_PublishIsSynchronousAndOrdered(t *testing.T) {
	bus := NewBus(10)
	var order []string
	bus.SubscribeAll(func(e Event) { order = append(order, "all:"+e.Type) })
	bus.Subscribe(SegmentChanged, func(e Event) { order = append(order, "changed:"+e.Label) })

	bus.Publish(NewSegmentEvent(SegmentChanged, "bark", timeline.SegmentTimes{T0: 1, T1: 2}))
	bus.Publish(NewPreviewEvent(3, 5))

	want := []string{"all:segment.changed", "changed:bark", "all:preview.changed"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(10)
	calls := 0
	unsub := bus.SubscribeAll(func(Event) { calls++ })
	bus.Publish(NewMessageEvent(ModeChanged, "pan"))
	unsub()
	unsub()
	bus.Publish(NewMessageEvent(ModeChanged, "seek"))
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestBus_HistoryIsBounded(t *testing.T) {
	bus := NewBus(3)
	for i := 0; i < 5; i++ {
		bus.Publish(NewPreviewEvent(float64(i), float64(i)+1))
	}
	h := bus.History(0)
	if len(h) != 3 {
		t.Fatalf("history = %d, want 3", len(h))
	}
	if h[0].Seq != 3 || h[2].Seq != 5 {
		t.Errorf("seqs = %d..%d, want 3..5", h[0].Seq, h[2].Seq)
	}
	if got := bus.History(1); len(got) != 1 || *got[0].Start != 4 {
		t.Errorf("History(1) = %+v", got)
	}
	last, ok := bus.Last()
	if !ok || last.Seq != 5 {
		t.Errorf("Last = %+v,%v", last, ok)
	}
}

func TestBus_StreamDropsWhenFull(t *testing.T) {
	bus := NewBus(10)
	ch, stop := bus.Stream(2)
	defer stop()
	for i := 0; i < 5; i++ {
		bus.Publish(NewMessageEvent(EngineFailed, "x"))
	}
	if len(ch) != 2 {
		t.Errorf("buffered = %d, want 2", len(ch))
	}
	if bus.Dropped() != 3 {
		t.Errorf("dropped = %d, want 3", bus.Dropped())
	}
	stop()
	bus.Publish(NewMessageEvent(EngineFailed, "y"))
	if bus.Dropped() != 3 {
		t.Error("stopped stream still counted drops")
	}
}

func TestNotifier_ImplementsTimelineCallbacks(t *testing.T) {
	bus := NewBus(10)
	n := NewNotifier(bus)
	n.SegmentChanged("knock", timeline.SegmentTimes{T0: 4, T1: 6, Score: math.NaN()})
	n.SegmentSelected("knock", timeline.SegmentTimes{T0: 4, T1: 6, Score: 0.7})
	n.PreviewRangeChanged(1, 2)
	n.EngineFailed("decode failed")
	n.ModeChanged(timeline.ModePan)

	h := bus.History(0)
	types := []string{SegmentChanged, SegmentSelected, PreviewChanged, EngineFailed, ModeChanged}
	if len(h) != len(types) {
		t.Fatalf("history = %d events, want %d", len(h), len(types))
	}
	for i, typ := range types {
		if h[i].Type != typ {
			t.Errorf("event %d type = %q, want %q", i, h[i].Type, typ)
		}
	}
	if *h[0].Score != 0 {
		t.Errorf("NaN score should be published as 0, got %v", *h[0].Score)
	}
	if h[4].Message != "pan" {
		t.Errorf("mode message = %q", h[4].Message)
	}
}

func TestEngineCommands(t *testing.T) {
	bus := NewBus(10)
	e := EngineCommands{Bus: bus}
	e.SeekTo(0.25)
	e.ZoomTo(96)
	e.PlayPause()
	h := bus.History(0)
	if len(h) != 3 || h[0].Type != EngineSeek || *h[0].Value != 0.25 || *h[1].Value != 96 || h[2].Type != EnginePlayPause {
		t.Errorf("history = %+v", h)
	}
}
