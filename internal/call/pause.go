package call

// PauseSource identifies who asked for a video pause.
type PauseSource int

const (
	PauseSourceUser PauseSource = iota
	PauseSourceNetwork
)

func (p PauseSource) String() string {
	switch p {
	case PauseSourceUser:
		return "user"
	case PauseSourceNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// pauseTracker tracks which sources currently hold a video pause so a
// network-initiated resume cannot undo a user-initiated pause.
type pauseTracker struct {
	sources map[PauseSource]struct{}
}

// RequestPause records a pause request and reports whether the pause
// should actually be issued to the session (only on the first source).
func (t *pauseTracker) RequestPause(src PauseSource) bool {
	if t.sources == nil {
		t.sources = make(map[PauseSource]struct{})
	}
	wasEmpty := len(t.sources) == 0
	t.sources[src] = struct{}{}
	return wasEmpty
}

// RequestResume clears a pause request and reports whether the resume
// should actually be issued (only when no source still holds a pause).
func (t *pauseTracker) RequestResume(src PauseSource) bool {
	delete(t.sources, src)
	return len(t.sources) == 0
}

// Paused reports whether any source holds a pause.
func (t *pauseTracker) Paused() bool {
	return len(t.sources) > 0
}

// PausedBy reports whether the given source holds a pause.
func (t *pauseTracker) PausedBy(src PauseSource) bool {
	_, ok := t.sources[src]
	return ok
}

// Clear drops all pause requests, used when a call ends or downgrades.
func (t *pauseTracker) Clear() {
	t.sources = nil
}
