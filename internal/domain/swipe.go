package domain

// SwipeState is the state of a swipe-to-delete list row
type SwipeState int

const (
	SwipeIdle SwipeState = iota
	SwipeDragging
	SwipeOpen
)

func (s SwipeState) String() string {
	switch s {
	case SwipeIdle:
		return "idle"
	case SwipeDragging:
		return "dragging"
	case SwipeOpen:
		return "open"
	}
	return "unknown"
}

const (
	// SwipeActivation is the horizontal movement needed before a drag starts
	SwipeActivation = 10.0
	// SwipeOpenOffset is where the row rests while the delete action is revealed
	SwipeOpenOffset = -80.0
	// SwipeCloseThreshold: releasing right of this offset closes the row
	SwipeCloseThreshold = -40.0
)

// SwipeRow tracks one row's offset and state. Offsets are negative to the left.
type SwipeRow struct {
	state     SwipeState
	offset    float64
	start     float64
	wasOpen   bool
	activated bool
}

// State returns the current state
func (r *SwipeRow) State() SwipeState {
	return r.state
}

// Offset returns the current horizontal offset, in [SwipeOpenOffset, 0]
func (r *SwipeRow) Offset() float64 {
	return r.offset
}

// Reveal returns how much of the delete action is visible, 0..1
func (r *SwipeRow) Reveal() float64 {
	v := r.offset / SwipeOpenOffset
	if v > 1 {
		return 1
	}
	return v
}

// Begin marks the start of a gesture
func (r *SwipeRow) Begin() {
	r.start = r.offset
	r.wasOpen = r.state == SwipeOpen
	r.activated = false
}

// Move applies the gesture translation measured from Begin
func (r *SwipeRow) Move(dx float64) {
	if !r.activated {
		if dx > -SwipeActivation && dx < SwipeActivation {
			return
		}
		r.activated = true
		r.state = SwipeDragging
	}
	r.offset = clampOffset(r.start + dx)
}

// End releases the gesture and snaps the row open or closed
func (r *SwipeRow) End() SwipeState {
	if !r.activated {
		if r.wasOpen {
			r.state = SwipeOpen
		} else {
			r.state = SwipeIdle
		}
		return r.state
	}
	r.activated = false
	if r.offset > SwipeCloseThreshold {
		r.Close()
	} else {
		r.state = SwipeOpen
		r.offset = SwipeOpenOffset
	}
	return r.state
}

// Close snaps the row back, e.g. after a cancelled or confirmed delete
func (r *SwipeRow) Close() {
	r.state = SwipeIdle
	r.offset = 0
	r.activated = false
}

// AcceptsTap reports whether a tap should open the row's item; taps are
// swallowed while dragging or while the delete action is shown.
func (r *SwipeRow) AcceptsTap() bool {
	return r.state == SwipeIdle
}

// CanDelete reports whether the delete action is reachable
func (r *SwipeRow) CanDelete() bool {
	return r.state == SwipeOpen
}

func clampOffset(v float64) float64 {
	if v > 0 {
		return 0
	}
	if v < SwipeOpenOffset {
		return SwipeOpenOffset
	}
	return v
}
