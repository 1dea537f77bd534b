package tracker

import (
	"strconv"
	"time"

	"github.com/imstrack/imstrack/internal/call"
	"github.com/imstrack/imstrack/internal/cause"
	"github.com/imstrack/imstrack/internal/ims"
	"github.com/imstrack/imstrack/internal/policy"
	"github.com/imstrack/imstrack/internal/telemetry"
	"github.com/imstrack/imstrack/internal/usage"
)

// onSessionEvent is the single entry point for session layer
// notifications, marshalled onto the event loop.
func (t *Tracker) onSessionEvent(evt ims.SessionEvent) {
	t.run(func() {
		t.handleEvent(evt)
	})
}

func (t *Tracker) handleEvent(evt ims.SessionEvent) {
	if evt.Kind == ims.EventIncoming {
		t.handleIncoming(evt)
		return
	}

	conn := t.lookup(evt.Session)
	if conn == nil {
		t.logger.Warn("event for unknown session dropped",
			"kind", evt.Kind.String(), "session_id", sessionID(evt.Session))
		return
	}

	// Media renegotiation can ride on any event, transition or not.
	t.applyMediaState(conn, evt.Session)

	switch evt.Kind {
	case ims.EventProgressing:
		t.handleProgressing(conn)
	case ims.EventStarted:
		t.handleStarted(conn)
	case ims.EventStartFailed:
		t.handleStartFailed(conn, evt.Reason)
	case ims.EventUpdated:
		t.emitCall("updated", conn, nil)
	case ims.EventTerminated:
		t.handleTerminated(conn, evt.Reason)
	case ims.EventHeld:
		t.handleHeld(conn)
	case ims.EventHoldFailed:
		t.handleHoldFailed(conn, evt.Reason)
	case ims.EventResumed:
		t.handleResumed(conn)
	case ims.EventResumeFailed:
		t.handleResumeFailed(conn, evt.Reason)
	case ims.EventHoldReceived:
		conn.SetRemoteHeld(true)
		t.emitCall("remote-hold", conn, nil)
	case ims.EventResumeReceived:
		conn.SetRemoteHeld(false)
		t.emitCall("remote-resume", conn, nil)
	case ims.EventMerged:
		t.handleMerged(conn)
	case ims.EventMergeFailed:
		t.handleMergeFailed(conn, evt.Reason)
	case ims.EventMultipartyChanged:
		t.emitCall("multiparty-changed", conn, map[string]string{
			"multiparty": strconv.FormatBool(evt.Multiparty),
		})
	case ims.EventHandover:
		t.handleHandover(conn, evt.SrcTech, evt.TargetTech)
	case ims.EventHandoverFailed:
		t.handleHandoverFailed(conn, evt.SrcTech, evt.TargetTech, evt.Reason)
	case ims.EventUsageUpdated:
		t.ledger.Record(conn.ID(), evt.UsageBytes)
	default:
		t.logger.Warn("unhandled session event", "kind", evt.Kind.String())
	}
}

func sessionID(s ims.CallSession) string {
	if s == nil {
		return ""
	}
	return s.ID()
}

// applyMediaState folds the session's current video state and
// capabilities into the connection.
func (t *Tracker) applyMediaState(conn *call.Connection, s ims.CallSession) {
	if s == nil {
		return
	}
	video := s.Profile().VideoState
	if conn.VideoState() != video && !conn.VideoPaused() {
		conn.SetVideoState(video)
	}

	var caps call.Capability
	sc := s.Capabilities()
	if sc&ims.CapsDowngradeToVoiceLocal != 0 {
		caps |= call.CapDowngradeToVoiceLocal
	}
	if sc&ims.CapsDowngradeToVoiceRemote != 0 {
		caps |= call.CapDowngradeToVoiceRemote
	}
	if sc&ims.CapsPauseVideo != 0 {
		caps |= call.CapPauseVideo
	}
	conn.SetCapabilities(caps)
}

func (t *Tracker) handleIncoming(evt ims.SessionEvent) {
	s := evt.Session
	if s == nil {
		return
	}
	if t.connCount >= maxConnections {
		t.logger.Warn("rejecting incoming call, too many calls", "address", evt.Address)
		if err := s.Reject(ims.CodeLocalCallExceeded); err != nil {
			t.logger.Warn("reject failed", "error", err)
		}
		return
	}

	conn := call.NewIncoming(s, evt.Address, t.clock())
	if t.foreground.IsAlive() || t.background.IsAlive() {
		conn.SetState(call.Waiting)
	}
	t.ringing.Attach(conn)
	t.register(conn)
	t.applyMediaState(conn, s)
	t.updatePhoneState()
	t.emitCall("incoming", conn, nil)
}

func (t *Tracker) handleProgressing(conn *call.Connection) {
	if conn.State() == call.Dialing {
		conn.SetState(call.Alerting)
	}
	t.updatePhoneState()
	t.emitCall("progressing", conn, nil)
}

func (t *Tracker) handleStarted(conn *call.Connection) {
	// An answered ringing leg moves to the foreground slot.
	if conn.Slot() == t.ringing {
		t.ringing.Detach(conn)
		t.foreground.Attach(conn)
	}
	conn.SetState(call.Active)
	conn.SetConnectTime(t.clock())
	conn.CompletePull()

	if conn == t.pendingMO {
		t.clearPendingDial()
	}
	if conn == t.expectedResume || t.swap != swapIdle && conn.Slot() == t.foreground {
		t.swap = swapIdle
		t.expectedResume = nil
	}
	if t.pendingAcc != nil && t.pendingAcc.conn == conn {
		t.pendingAcc = nil
	}

	t.maybeStartWifiCheck(conn)
	t.updatePhoneState()
	t.emitCall("started", conn, nil)
}

// maybeStartWifiCheck arms the handover check timer for a video call
// that started off-WIFI.
func (t *Tracker) maybeStartWifiCheck(conn *call.Connection) {
	s := conn.Session()
	if s == nil || !conn.IsVideo() || s.IsWifiCall() {
		return
	}
	t.cancelWifiCheck()
	t.wifiCheckConn = conn
	t.wifiCheckTimer = t.afterFunc(t.wifiCheckDelay, func() {
		t.run(func() {
			t.handleWifiCheckExpired(conn)
		})
	})
}

func (t *Tracker) cancelWifiCheck() {
	if t.wifiCheckTimer != nil {
		t.wifiCheckTimer.Stop()
		t.wifiCheckTimer = nil
	}
	t.wifiCheckConn = nil
}

// handleWifiCheckExpired reports a missed handover-to-WIFI window.
func (t *Tracker) handleWifiCheckExpired(conn *call.Connection) {
	if t.wifiCheckConn != conn {
		return
	}
	t.wifiCheckConn = nil
	t.wifiCheckTimer = nil

	s := conn.Session()
	if s == nil || !conn.State().IsAlive() || s.IsWifiCall() {
		return
	}
	t.logger.Info("video call did not hand over to wifi", "call_id", conn.ID())
	t.countHandover("to-wifi-timeout")
	if t.carrier.Snapshot().NotifyVtHandoverToWifiFail {
		t.emitCall("handover-to-wifi-timeout", conn, nil)
	}
	t.registerConnectivityWatch()
}

func (t *Tracker) handleStartFailed(conn *call.Connection, reason ims.ReasonInfo) {
	reason = t.mapper().MaybeRemap(reason)

	if conn == t.pendingMO {
		t.clearPendingDial()
	}
	if conn == t.expectedResume {
		t.swap = swapIdle
		t.expectedResume = nil
	}

	if reason.Code == ims.CodeLocalCallCSRetryRequired && t.onCSFallback != nil {
		t.logger.Info("cs retry requested", "call_id", conn.ID())
		t.onCSFallback(conn.Address(), conn.VideoState())
	}

	dc := cause.DisconnectCauseFromReason(reason, true)
	t.finishDisconnect(conn, dc, cause.PreciseCauseFromReason(reason))
}

func (t *Tracker) handleTerminated(conn *call.Connection, reason ims.ReasonInfo) {
	reason = t.mapper().MaybeRemap(reason)
	dialing := conn.State().IsDialing()
	dc := cause.DisconnectCauseFromReason(reason, dialing)

	s := conn.Session()

	// A failed pull keeps the original call usable on the other
	// device; report nothing.
	if conn.PullInProgress() {
		dc = cause.NotDisconnected
	}

	// An unanswered incoming leg ended by the remote is missed, not
	// rejected, unless it was answered elsewhere.
	if conn.Incoming() && conn.ConnectTime().IsZero() && dc != cause.AnsweredElsewhere {
		switch dc {
		case cause.Local, cause.IncomingRejected:
			dc = cause.IncomingRejected
		case cause.Normal:
			dc = cause.IncomingMissed
		}
	}

	// A member leg ending because the merge completed is a success.
	if dc == cause.Normal && s != nil && s.IsMerged() {
		dc = cause.MergedSuccessfully
	}

	if conn == t.expectedResume {
		t.swap = swapIdle
		t.expectedResume = nil
	}
	if conn == t.wifiCheckConn {
		t.cancelWifiCheck()
	}
	if conn == t.pendingMO {
		t.clearPendingDial()
	}

	t.finishDisconnect(conn, dc, cause.PreciseCauseFromReason(reason))

	// Answering-an-audio-call path: the foreground call we ended makes
	// room for the waiting call.
	if t.pendingAcc != nil && t.pendingAcc.conn != conn {
		acc := t.pendingAcc
		if acc.conn.State().IsRinging() && acc.conn.Session() != nil {
			if err := acc.conn.Session().Accept(acc.video); err != nil {
				t.logger.Warn("deferred accept failed", "call_id", acc.conn.ID(), "error", err)
				t.pendingAcc = nil
			}
		}
	}
}

// finishDisconnect marks the connection dead, records the CDR, and
// rederives phone state. The connection stays visible in its slot
// until ClearDisconnected.
func (t *Tracker) finishDisconnect(conn *call.Connection, dc cause.DisconnectCause, pc cause.PreciseCause) {
	conn.Disconnect(dc, pc, t.clock())
	t.unregister(conn)
	t.countDisconnect(conn.DisconnectCause())
	t.writeCDR(conn)
	t.maybeReleaseConnectivityWatch()
	t.updatePhoneState()
	t.emitCall("terminated", conn, nil)
}

func (t *Tracker) handleHeld(conn *call.Connection) {
	oldState := conn.State()
	conn.SetState(call.Holding)

	if t.swap != swapPending || oldState != call.Active {
		t.emitCall("held", conn, nil)
		return
	}
	t.swap = swapCommitted

	switch {
	case t.pendingAcc != nil && t.pendingAcc.conn.State() == call.Waiting:
		acc := t.pendingAcc
		if err := acc.conn.Session().Accept(acc.video); err != nil {
			t.logger.Warn("accept after hold failed", "call_id", acc.conn.ID(), "error", err)
			t.pendingAcc = nil
			t.swap = swapIdle
		}

	case t.expectedResume != nil:
		if err := t.expectedResume.Session().Resume(); err != nil {
			t.logger.Warn("resume after hold failed", "call_id", t.expectedResume.ID(), "error", err)
			t.swap = swapIdle
			t.expectedResume = nil
		}

	case t.pendingMO != nil:
		t.dialPending()
		t.swap = swapIdle

	default:
		t.swap = swapIdle
	}
	t.emitCall("held", conn, nil)
}

// dialPending replays the cached dial after the hold that made room
// for it.
func (t *Tracker) dialPending() {
	conn := t.pendingMO
	t.clearPendingDial()
	if conn == nil {
		return
	}
	if err := t.placeCall(conn, t.pendingVideo, t.pendingExtras); err != nil {
		t.logger.Error("pending dial failed", "call_id", conn.ID(), "error", err)
		t.failPendingDial(conn, cause.ErrorUnspecified)
		return
	}
	t.updatePhoneState()
	t.emitCall("dial", conn, nil)
}

// failPendingDial reports the failure immediately and removes the
// corpse after a short delay so observers can see the cause.
func (t *Tracker) failPendingDial(conn *call.Connection, dc cause.DisconnectCause) {
	conn.Disconnect(dc, cause.PreciseUnspecified, t.clock())
	t.countDisconnect(dc)
	t.writeCDR(conn)
	t.updatePhoneState()
	t.emitCall("dial-failed", conn, nil)

	t.pendingTeardownTimer = t.afterFunc(t.pendingTeardownDelay, func() {
		t.run(func() {
			t.removeFromCount(conn)
			t.updatePhoneState()
		})
	})
}

func (t *Tracker) handleHoldFailed(conn *call.Connection, reason ims.ReasonInfo) {
	t.logger.Warn("hold failed", "call_id", conn.ID(), "reason", reason.String())

	if reason.Code == ims.CodeLocalCallTerminated {
		// The call we tried to hold died concurrently; its terminated
		// event handles the cleanup. The pending dial can go ahead.
		t.swap = swapIdle
		t.expectedResume = nil
		if t.pendingMO != nil {
			t.dialPending()
		}
		return
	}

	if t.swap == swapPending {
		// Roll the optimistic role swap back.
		t.foreground.SwitchWith(t.background)
	}
	t.swap = swapIdle
	t.expectedResume = nil

	if t.pendingMO != nil {
		pend := t.pendingMO
		t.clearPendingDial()
		t.failPendingDial(pend, cause.ErrorUnspecified)
	}
	if t.pendingAcc != nil {
		t.pendingAcc = nil
	}
	t.emitCall("hold-failed", conn, nil)
}

func (t *Tracker) handleResumed(conn *call.Connection) {
	conn.SetState(call.Active)
	if conn == t.expectedResume || t.swap != swapIdle {
		t.swap = swapIdle
		t.expectedResume = nil
	}
	t.updatePhoneState()
	t.emitCall("resumed", conn, nil)
}

func (t *Tracker) handleResumeFailed(conn *call.Connection, reason ims.ReasonInfo) {
	t.logger.Warn("resume failed", "call_id", conn.ID(), "reason", reason.String())

	if t.swap != swapIdle {
		t.foreground.SwitchWith(t.background)
		t.swap = swapIdle
		t.expectedResume = nil

		// If the call we held on the way in ended up holding, bring it
		// back.
		if t.foreground.State() == call.Holding {
			fg := t.foreground.FirstAlive()
			if fg != nil && fg.Session() != nil {
				if err := fg.Session().Resume(); err != nil {
					t.logger.Warn("re-resume failed", "call_id", fg.ID(), "error", err)
				}
			}
		}
	}
	t.emitCall("resume-failed", conn, nil)
}

func (t *Tracker) handleMerged(conn *call.Connection) {
	if t.mergeRequested && !t.conferenceTime.IsZero() {
		conn.OverrideConnectTime(t.conferenceTime)
	}
	t.mergeRequested = false
	t.conferenceTime = time.Time{}
	t.emitCall("merged", conn, nil)
}

func (t *Tracker) handleMergeFailed(conn *call.Connection, reason ims.ReasonInfo) {
	t.logger.Warn("merge failed", "call_id", conn.ID(), "reason", reason.String())
	t.mergeRequested = false
	t.conferenceTime = time.Time{}
	t.emitCall("merge-failed", conn, nil)
}

func (t *Tracker) handleHandover(conn *call.Connection, src, dst ims.AccessTech) {
	t.logger.Info("handover", "call_id", conn.ID(), "from", src.String(), "to", dst.String())
	snap := t.carrier.Snapshot()
	detail := map[string]string{"from": src.String(), "to": dst.String()}

	switch {
	case dst == ims.AccessTechIWLAN:
		// Landed on WIFI: the check timer is satisfied and the watch
		// is no longer needed.
		if conn == t.wifiCheckConn {
			t.cancelWifiCheck()
		}
		t.maybeReleaseConnectivityWatch()
		t.countHandover("to-wifi")
		if conn.IsVideo() && snap.NotifyHandoverVideoFromLTEToWifi {
			t.emitCall("handover-video-to-wifi", conn, detail)
		}

	case src == ims.AccessTechIWLAN && dst == ims.AccessTechLTE:
		t.countHandover("from-wifi")
		if conn.IsVideo() {
			if snap.NotifyHandoverVideoFromWifiToLTE {
				t.emitCall("handover-video-from-wifi", conn, detail)
			}
			t.registerConnectivityWatch()
			if !t.policyMon.DataEnabled() && snap.ViLTEDataMetered {
				t.applyPolicyAction(conn, policy.Decide(conn, snap, ims.CodeWifiLost))
			}
		}
	}
	t.emitCall("handover", conn, detail)
}

func (t *Tracker) handleHandoverFailed(conn *call.Connection, src, dst ims.AccessTech, reason ims.ReasonInfo) {
	t.logger.Warn("handover failed", "call_id", conn.ID(),
		"from", src.String(), "to", dst.String(), "reason", reason.String())
	t.countHandover("failed")

	if dst == ims.AccessTechIWLAN {
		if conn == t.wifiCheckConn {
			t.cancelWifiCheck()
		}
		if conn.IsVideo() {
			if t.carrier.Snapshot().NotifyVtHandoverToWifiFail {
				t.emitCall("handover-to-wifi-failed", conn, nil)
			}
			t.registerConnectivityWatch()
		}
	}
}

// registerConnectivityWatch starts watching WIFI availability for a
// video call that may retry a handover.
func (t *Tracker) registerConnectivityWatch() {
	if t.connMon == nil {
		return
	}
	t.connMon.Register(func(wifiAvailable bool) {
		t.run(func() {
			if !wifiAvailable {
				return
			}
			t.logger.Info("wifi available, handover possible")
			t.emit(telemetry.Event{Kind: "wifi-available"})
		})
	})
}

// maybeReleaseConnectivityWatch drops the WIFI watch when no video
// call remains to care about it.
func (t *Tracker) maybeReleaseConnectivityWatch() {
	if t.connMon == nil {
		return
	}
	for _, slot := range []*call.Slot{t.foreground, t.background} {
		for _, c := range slot.Connections() {
			if c.State().IsAlive() && c.IsVideo() {
				return
			}
		}
	}
	t.connMon.Unregister()
}

// UsageDevice exposes the device-wide usage totals.
func (t *Tracker) UsageDevice() usage.Snapshot { return t.ledger.Device() }

// UsagePerUID exposes the per-UID usage snapshots.
func (t *Tracker) UsagePerUID() map[int]usage.Snapshot { return t.ledger.PerUID() }
