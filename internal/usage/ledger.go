// Package usage accumulates video call data usage from the cumulative
// byte counters the session layer reports.
package usage

import (
	"log/slog"
	"sync"
)

// UnknownUID is the attribution bucket used while the dialer UID
// cannot be resolved.
const UnknownUID = -1

// UIDResolver returns the UID of the default dialer application.
// Resolution can fail early in boot; the ledger retries on the next
// report.
type UIDResolver func() (int, bool)

// Snapshot is an rx/tx byte pair.
type Snapshot struct {
	RxBytes uint64 `json:"rx_bytes"`
	TxBytes uint64 `json:"tx_bytes"`
}

// Total returns rx + tx.
func (s Snapshot) Total() uint64 { return s.RxBytes + s.TxBytes }

func (s Snapshot) add(delta uint64) Snapshot {
	rx := delta / 2
	s.RxBytes += rx
	s.TxBytes += delta - rx
	return s
}

// Ledger turns per-call cumulative byte counts into device-wide and
// per-UID usage snapshots. Reports carry the total bytes used so far
// in a call, so each report contributes only its delta over the
// previous one; a duplicate report contributes nothing.
type Ledger struct {
	mu sync.Mutex

	resolver UIDResolver
	logger   *slog.Logger

	lastByCall map[string]uint64
	device     Snapshot
	perUID     map[int]Snapshot
	dialerUID  int
}

// NewLedger builds an empty ledger. resolver may be nil, in which case
// all usage is attributed to UnknownUID.
func NewLedger(resolver UIDResolver, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		resolver:   resolver,
		logger:     logger,
		lastByCall: make(map[string]uint64),
		perUID:     make(map[int]Snapshot),
		dialerUID:  UnknownUID,
	}
}

// Record ingests one cumulative usage report for a call. The delta
// over the previous report is split evenly between rx and tx and added
// to the device-wide snapshot and to the attributed UID's snapshot.
func (l *Ledger) Record(callID string, cumulative uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	last := l.lastByCall[callID]
	if cumulative <= last {
		if cumulative < last {
			l.logger.Warn("usage counter went backwards",
				"call_id", callID, "last", last, "reported", cumulative)
		}
		return
	}
	delta := cumulative - last
	l.lastByCall[callID] = cumulative

	l.device = l.device.add(delta)

	uid := l.attributionUID()
	l.perUID[uid] = l.perUID[uid].add(delta)

	l.logger.Debug("video data usage",
		"call_id", callID, "delta_bytes", delta, "uid", uid)
}

// attributionUID returns the cached dialer UID, re-resolving it while
// unknown. Caller holds l.mu.
func (l *Ledger) attributionUID() int {
	if l.dialerUID != UnknownUID {
		return l.dialerUID
	}
	if l.resolver != nil {
		if uid, ok := l.resolver(); ok {
			l.dialerUID = uid
			return uid
		}
	}
	return UnknownUID
}

// Forget drops the per-call counter once a call is gone. Accumulated
// snapshots are unaffected.
func (l *Ledger) Forget(callID string) {
	l.mu.Lock()
	delete(l.lastByCall, callID)
	l.mu.Unlock()
}

// Device returns the device-wide snapshot.
func (l *Ledger) Device() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.device
}

// PerUID returns a copy of the per-UID snapshots.
func (l *Ledger) PerUID() map[int]Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[int]Snapshot, len(l.perUID))
	for uid, s := range l.perUID {
		out[uid] = s
	}
	return out
}

// CallBytes returns the cumulative bytes last reported for a call.
func (l *Ledger) CallBytes(callID string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastByCall[callID]
}
