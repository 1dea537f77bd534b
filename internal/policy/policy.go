// Package policy decides what happens to video calls when mobile data
// availability changes.
package policy

import (
	"log/slog"
	"sync"

	"github.com/imstrack/imstrack/internal/call"
	"github.com/imstrack/imstrack/internal/carrier"
	"github.com/imstrack/imstrack/internal/ims"
)

// DisableReason is why mobile data became unavailable.
type DisableReason int

const (
	DisableReasonUnknown DisableReason = iota
	DisableReasonUser
	DisableReasonDataLimit
)

func (r DisableReason) String() string {
	switch r {
	case DisableReasonUser:
		return "user"
	case DisableReasonDataLimit:
		return "data-limit"
	default:
		return "unknown"
	}
}

// ReasonCode maps a disable reason onto the session reason code that
// accompanies the resulting downgrade, pause, or termination.
func (r DisableReason) ReasonCode() ims.ReasonCode {
	if r == DisableReasonDataLimit {
		return ims.CodeDataLimitReached
	}
	return ims.CodeDataDisabled
}

// ActionKind is what to do with one video connection.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionDowngrade
	ActionPause
	ActionTerminate
	ActionResume
)

func (k ActionKind) String() string {
	switch k {
	case ActionDowngrade:
		return "downgrade"
	case ActionPause:
		return "pause"
	case ActionTerminate:
		return "terminate"
	case ActionResume:
		return "resume"
	default:
		return "none"
	}
}

// Action is a per-connection directive with the reason code to report
// downstream.
type Action struct {
	Kind   ActionKind
	Reason ims.ReasonCode
}

// Decide picks the action for one connection when video can no longer
// be carried, given the carrier policy and the reason code behind the
// loss. Downgrading to voice is preferred, then pausing, then
// terminating. A wifi-lost reason inhibits pausing: the call is about
// to drop anyway and a paused call would linger.
func Decide(c *call.Connection, snap *carrier.Snapshot, reason ims.ReasonCode) Action {
	if snap.IgnoreDataEnabledForVideoCalls || !snap.ViLTEDataMetered {
		return Action{Kind: ActionNone}
	}
	if !c.IsVideo() {
		return Action{Kind: ActionNone}
	}

	if snap.SupportDowngradeVtToAudio &&
		(c.Can(call.CapDowngradeToVoiceLocal) || c.Can(call.CapDowngradeToVoiceRemote)) {
		return Action{Kind: ActionDowngrade, Reason: reason}
	}
	if snap.SupportPauseVideo && reason != ims.CodeWifiLost {
		return Action{Kind: ActionPause, Reason: reason}
	}
	return Action{Kind: ActionTerminate, Reason: reason}
}

// DecideResume picks the action for one connection when data comes
// back. Only a pause the network itself requested is resumed; a pause
// the user requested stays.
func DecideResume(c *call.Connection, snap *carrier.Snapshot) Action {
	if snap.IgnoreDataEnabledForVideoCalls || !snap.ViLTEDataMetered {
		return Action{Kind: ActionNone}
	}
	if !snap.SupportPauseVideo || !c.PausedBy(call.PauseSourceNetwork) {
		return Action{Kind: ActionNone}
	}
	return Action{Kind: ActionResume}
}

// Monitor tracks mobile data availability. State changes come from
// the platform; the tracker consults the monitor when deciding call
// eligibility and reacts to Changed notifications.
type Monitor struct {
	mu sync.Mutex

	enabled bool
	known   bool
	reason  DisableReason

	logger *slog.Logger
}

// NewMonitor builds a monitor that assumes data is available until
// told otherwise.
func NewMonitor(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{enabled: true, logger: logger}
}

// Update records a data availability change and reports whether the
// value actually changed.
func (m *Monitor) Update(enabled bool, reason DisableReason) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed := !m.known || m.enabled != enabled
	m.enabled = enabled
	m.known = true
	m.reason = reason
	if changed {
		m.logger.Info("mobile data availability changed",
			"enabled", enabled, "reason", reason.String())
	}
	return changed
}

// DataEnabled reports the last known availability.
func (m *Monitor) DataEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// DisableReason reports why data was last disabled.
func (m *Monitor) DisableReason() DisableReason {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reason
}
