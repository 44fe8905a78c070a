package timeline

import "testing"

func TestTrackChooser_DefersSwitchToProcessed(t *testing.T) {
	var queued []func()
	var changes []TrackKind
	c := &TrackChooser{
		Defer:    func(fn func()) { queued = append(queued, fn) },
		OnChange: func(k TrackKind) { changes = append(changes, k) },
	}

	c.OutputAvailable()
	if c.Active() != TrackOriginal {
		t.Fatal("switched before the deferred callback ran")
	}
	if !c.HasProcessed() || len(queued) != 1 {
		t.Fatalf("hasProcessed=%v queued=%d", c.HasProcessed(), len(queued))
	}
	c.OutputAvailable()
	if len(queued) != 1 {
		t.Errorf("second availability queued another switch")
	}

	queued[0]()
	if c.Active() != TrackProcessed {
		t.Errorf("active = %v, want processed", c.Active())
	}
	if len(changes) != 1 || changes[0] != TrackProcessed {
		t.Errorf("changes = %v", changes)
	}
}

func TestTrackChooser_RemovalCancelsPendingSwitch(t *testing.T) {
	var queued []func()
	c := &TrackChooser{Defer: func(fn func()) { queued = append(queued, fn) }}
	c.OutputAvailable()
	c.OutputRemoved()
	queued[0]()
	if c.Active() != TrackOriginal {
		t.Errorf("active = %v after removal, want original", c.Active())
	}
}

func TestTrackChooser_Select(t *testing.T) {
	c := &TrackChooser{}
	if c.Select(TrackProcessed) {
		t.Error("selected processed without an output")
	}
	c.OutputAvailable()
	if c.Active() != TrackProcessed {
		t.Fatalf("nil Defer should switch immediately, active = %v", c.Active())
	}
	if !c.Select(TrackOriginal) || c.Active() != TrackOriginal {
		t.Errorf("manual select back to original failed")
	}
	if c.Active().String() != "original" || TrackProcessed.String() != "processed" {
		t.Error("unexpected track names")
	}
}
