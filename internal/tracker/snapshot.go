package tracker

import (
	"time"

	"github.com/imstrack/imstrack/internal/call"
)

// ConnectionInfo is the diagnostic view of one call leg.
type ConnectionInfo struct {
	ID           string    `json:"id"`
	Address      string    `json:"address"`
	Slot         string    `json:"slot"`
	State        string    `json:"state"`
	Incoming     bool      `json:"incoming"`
	Emergency    bool      `json:"emergency,omitempty"`
	VideoState   string    `json:"video_state"`
	RemoteHeld   bool      `json:"remote_held,omitempty"`
	CreateTime   time.Time `json:"create_time"`
	ConnectTime  time.Time `json:"connect_time,omitzero"`
	Cause        string    `json:"cause,omitempty"`
	PreciseCause int       `json:"precise_cause,omitempty"`
}

// Snapshot is the off-loop view of the tracker, rebuilt after every
// loop iteration and read under the registry lock.
type Snapshot struct {
	PhoneState    string           `json:"phone_state"`
	Muted         bool             `json:"muted"`
	SwapInFlight  bool             `json:"swap_in_flight"`
	PendingDial   bool             `json:"pending_dial"`
	Connections   []ConnectionInfo `json:"connections"`
	ActiveCount   int              `json:"active_count"`
	RingingCount  int              `json:"ringing_count"`
	HoldingCount  int              `json:"holding_count"`
	TrackedCount  int              `json:"tracked_count"`
}

// publishSnapshot rebuilds the published view. Runs on the loop after
// every event.
func (t *Tracker) publishSnapshot() {
	snap := Snapshot{
		PhoneState:   t.phoneState.String(),
		Muted:        t.desiredMute,
		SwapInFlight: t.swap != swapIdle,
		PendingDial:  t.pendingMO != nil,
	}

	for _, slot := range []*call.Slot{t.ringing, t.foreground, t.background, t.handover} {
		for _, c := range slot.Connections() {
			info := ConnectionInfo{
				ID:          c.ID(),
				Address:     c.Address(),
				Slot:        slot.Role().String(),
				State:       c.State().String(),
				Incoming:    c.Incoming(),
				Emergency:   c.Emergency(),
				VideoState:  c.VideoState().String(),
				RemoteHeld:  c.RemoteHeld(),
				CreateTime:  c.CreateTime(),
				ConnectTime: c.ConnectTime(),
			}
			switch c.State() {
			case call.Active:
				snap.ActiveCount++
			case call.Holding:
				snap.HoldingCount++
			case call.Incoming, call.Waiting:
				snap.RingingCount++
			case call.Disconnected:
				info.Cause = c.DisconnectCause().String()
				info.PreciseCause = int(c.PreciseCause())
			}
			snap.Connections = append(snap.Connections, info)
		}
	}

	t.regMu.Lock()
	snap.TrackedCount = t.connCount
	t.snapshot = snap
	t.regMu.Unlock()
}

// Dump returns the current diagnostic snapshot. Safe off-loop.
func (t *Tracker) Dump() Snapshot {
	t.regMu.RLock()
	defer t.regMu.RUnlock()
	return t.snapshot
}

// PhoneState returns the last published phone state. Safe off-loop.
func (t *Tracker) PhoneState() PhoneState {
	t.regMu.RLock()
	defer t.regMu.RUnlock()
	switch t.snapshot.PhoneState {
	case "ringing":
		return PhoneRinging
	case "offhook":
		return PhoneOffhook
	default:
		return PhoneIdle
	}
}

// PhoneStateString returns the last published phone state name. Safe
// off-loop.
func (t *Tracker) PhoneStateString() string {
	t.regMu.RLock()
	defer t.regMu.RUnlock()
	if t.snapshot.PhoneState == "" {
		return PhoneIdle.String()
	}
	return t.snapshot.PhoneState
}

// ActiveCalls reports the number of active legs, for metrics.
func (t *Tracker) ActiveCalls() int {
	t.regMu.RLock()
	defer t.regMu.RUnlock()
	return t.snapshot.ActiveCount
}

// TrackedCalls reports the number of tracked legs, for metrics.
func (t *Tracker) TrackedCalls() int {
	t.regMu.RLock()
	defer t.regMu.RUnlock()
	return t.snapshot.TrackedCount
}

// DisconnectCounts returns a copy of the per-cause disconnect
// counters, for metrics.
func (t *Tracker) DisconnectCounts() map[string]uint64 {
	t.regMu.RLock()
	defer t.regMu.RUnlock()
	out := make(map[string]uint64, len(t.disconnectCounts))
	for dc, n := range t.disconnectCounts {
		out[dc.String()] = n
	}
	return out
}

// HandoverCounts returns a copy of the handover counters, for
// metrics.
func (t *Tracker) HandoverCounts() map[string]uint64 {
	t.regMu.RLock()
	defer t.regMu.RUnlock()
	out := make(map[string]uint64, len(t.handoverCounts))
	for k, n := range t.handoverCounts {
		out[k] = n
	}
	return out
}
