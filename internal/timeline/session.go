package timeline

// SessionKind identifies the gesture an InteractionSession tracks.
type SessionKind int

const (
	SessionSeek SessionKind = iota
	SessionPan
	SessionPreview
	SessionRegion
)

func (k SessionKind) String() string {
	switch k {
	case SessionPan:
		return "pan"
	case SessionPreview:
		return "preview"
	case SessionRegion:
		return "region"
	default:
		return "seek"
	}
}

// InteractionSession is the mutable state of one pointer gesture. It exists
// from pointer-down until pointer-up, cancel, a mode switch or Close, and is
// never shared with another gesture.
type InteractionSession struct {
	Kind   SessionKind
	StartX float64 // viewport px at pointer-down

	// pan
	InitialScrollLeft float64

	// preview
	PreviewGesture PreviewGesture
	InitialWindow  PreviewWindow

	// region
	RegionID      string
	RegionGesture RegionGesture
	InitialRegion Region
	Moved         bool

	release func()
}

// end releases pointer capture. It is safe to call more than once.
func (s *InteractionSession) end() {
	if s.release != nil {
		s.release()
		s.release = nil
	}
}

// PointerEvent is a pointer sample in viewport pixels.
type PointerEvent struct {
	X      float64
	Target Target
}

// WheelEvent is a wheel sample. Modifier is the zoom modifier (ctrl/cmd).
type WheelEvent struct {
	X        float64
	DeltaX   float64
	DeltaY   float64
	Modifier bool
}
