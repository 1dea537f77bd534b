// Package call holds the call-leg and call-slot model the tracker
// mutates. Everything here is touched only from the tracker event
// loop; diagnostic snapshots go through the tracker registry lock.
package call

// State is the lifecycle state of a connection or slot.
type State int

const (
	Idle State = iota
	Dialing
	Alerting
	Incoming
	Waiting
	Active
	Holding
	Disconnected
)

var stateNames = [...]string{
	Idle:         "idle",
	Dialing:      "dialing",
	Alerting:     "alerting",
	Incoming:     "incoming",
	Waiting:      "waiting",
	Active:       "active",
	Holding:      "holding",
	Disconnected: "disconnected",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// IsAlive reports whether the state represents a live call leg.
func (s State) IsAlive() bool {
	return s != Idle && s != Disconnected
}

// IsRinging reports whether the state represents an unanswered
// incoming leg.
func (s State) IsRinging() bool {
	return s == Incoming || s == Waiting
}

// IsDialing reports whether the state represents an outgoing leg that
// has not connected yet.
func (s State) IsDialing() bool {
	return s == Dialing || s == Alerting
}

// IsTerminal reports whether the state can never be left.
func (s State) IsTerminal() bool {
	return s == Disconnected
}
