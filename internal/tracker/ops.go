package tracker

import (
	"fmt"
	"time"

	"github.com/imstrack/imstrack/internal/call"
	"github.com/imstrack/imstrack/internal/cause"
	"github.com/imstrack/imstrack/internal/ims"
	"github.com/imstrack/imstrack/internal/policy"
	"github.com/imstrack/imstrack/internal/telemetry"
)

// DialRequest describes an outgoing call.
type DialRequest struct {
	Address   string
	Video     ims.VideoState
	Emergency bool
	Extras    map[string]string
}

// Dial places an outgoing call. When the foreground call is active it
// is held first and the dial replays once the hold completes. The
// returned connection is in Dialing state.
func (t *Tracker) Dial(req DialRequest) (*call.Connection, error) {
	var (
		conn *call.Connection
		err  error
	)
	t.run(func() {
		conn, err = t.dialLocked(req)
	})
	return conn, err
}

func (t *Tracker) dialLocked(req DialRequest) (*call.Connection, error) {
	if req.Address == "" {
		return nil, stateErr("dial", "empty address")
	}
	if t.pendingMO != nil {
		return nil, stateErr("dial", "a dial is already pending")
	}
	if t.ringing.State().IsRinging() {
		return nil, stateErr("dial", "a call is ringing")
	}
	if t.foreground.IsAlive() && t.background.IsAlive() {
		return nil, stateErr("dial", "foreground and background calls already in use")
	}

	holdBeforeDial := t.foreground.State() == call.Active
	if !holdBeforeDial && t.foreground.State().IsAlive() {
		return nil, stateErr("dial", "foreground call in state %s", t.foreground.State())
	}
	if t.connCount >= maxConnections {
		return nil, stateErr("dial", "too many calls (%d)", t.connCount)
	}

	if t.provider == nil || (!t.provider.Ready() && !req.Emergency) {
		return nil, stateErr("dial", "ims service not available")
	}
	if t.provider.ShouldProcessCall(req.Address, req.Emergency) == ims.ProcessCallCSFallback {
		return nil, &CallStateError{Op: "dial", Reason: "transport gate", Err: ErrCSFallback}
	}

	snap := t.carrier.Snapshot()
	video := req.Video
	if req.Emergency && video.IsVideo() && !snap.AllowEmergencyVideoCalls {
		t.logger.Info("downgrading emergency call to audio", "address", req.Address)
		video = ims.VideoStateAudioOnly
	}

	conn := call.NewOutgoing(req.Address, video, req.Emergency, t.clock())

	if holdBeforeDial {
		// Cache what the deferred dial needs and hold the active
		// call; dialPending runs when the hold confirms.
		t.pendingMO = conn
		t.pendingVideo = video
		t.pendingExtras = req.Extras
		t.addToCount()
		if err := t.holdForSwapLocked(); err != nil {
			t.pendingMO = nil
			t.pendingExtras = nil
			t.regMu.Lock()
			t.connCount--
			t.regMu.Unlock()
			return nil, err
		}
		t.updatePhoneState()
		t.emitCall("dial-pending", conn, nil)
		return conn, nil
	}

	if err := t.placeCall(conn, video, req.Extras); err != nil {
		return nil, err
	}
	t.addToCount()
	t.updatePhoneState()
	t.emitCall("dial", conn, nil)
	return conn, nil
}

// placeCall attaches the connection to the foreground slot and issues
// the lower-layer dial.
func (t *Tracker) placeCall(conn *call.Connection, video ims.VideoState, extras map[string]string) error {
	service := ims.ServiceTypeNormal
	if conn.Emergency() {
		service = ims.ServiceTypeEmergency
	}
	callType := ims.CallTypeVoice
	if video.IsVideo() {
		callType = ims.CallTypeVideo
	}

	profile, err := t.provider.CreateProfile(service, callType)
	if err != nil {
		return fmt.Errorf("creating call profile: %w", err)
	}
	profile.VideoState = video
	if len(extras) > 0 {
		profile.Extras = extras
	}

	session, err := t.provider.MakeCall(profile, conn.Address())
	if err != nil {
		return fmt.Errorf("placing call: %w", err)
	}

	conn.SetSession(session)
	t.foreground.Attach(conn)
	t.indexSession(conn)
	return nil
}

// AcceptCall answers the ringing call with the given video state.
func (t *Tracker) AcceptCall(video ims.VideoState) error {
	var err error
	t.run(func() {
		err = t.acceptLocked(video)
	})
	return err
}

func (t *Tracker) acceptLocked(video ims.VideoState) error {
	rc := t.ringing.FirstAlive()
	if rc == nil || rc.Session() == nil {
		return stateErr("accept", "no ringing call")
	}

	if t.ringing.State() == call.Waiting && t.foreground.IsAlive() {
		if t.background.IsAlive() {
			return stateErr("accept", "cannot accept a waiting call with an active and a held call")
		}

		fg := t.foreground.FirstAlive()
		snap := t.carrier.Snapshot()
		answeringWillDisconnect := snap.DropVideoWhenAnsweringAudio &&
			fg != nil && fg.IsVideo() && !video.IsVideo()

		t.pendingAcc = &pendingAccept{conn: rc, video: video}
		if answeringWillDisconnect {
			if err := fg.Session().Terminate(ims.CodeUserTerminated); err != nil {
				t.pendingAcc = nil
				return fmt.Errorf("ending foreground call: %w", err)
			}
			return nil
		}
		if err := t.holdForSwapLocked(); err != nil {
			t.pendingAcc = nil
			return err
		}
		return nil
	}

	if err := rc.Session().Accept(video); err != nil {
		return fmt.Errorf("accepting call: %w", err)
	}
	return nil
}

// RejectCall declines the ringing call.
func (t *Tracker) RejectCall() error {
	var err error
	t.run(func() {
		err = t.rejectLocked()
	})
	return err
}

func (t *Tracker) rejectLocked() error {
	rc := t.ringing.FirstAlive()
	if rc == nil || rc.Session() == nil {
		return stateErr("reject", "no ringing call")
	}
	if err := rc.Session().Reject(ims.CodeUserDecline); err != nil {
		return fmt.Errorf("rejecting call: %w", err)
	}
	return nil
}

// Hangup ends every alive connection in the given slot. The slot must
// belong to this tracker.
func (t *Tracker) Hangup(slot *call.Slot) error {
	var err error
	t.run(func() {
		err = t.hangupLocked(slot)
	})
	return err
}

func (t *Tracker) hangupLocked(slot *call.Slot) error {
	if slot == nil || !t.ownsSlot(slot) {
		return stateErr("hangup", "call is not owned by this tracker")
	}

	// A pending dial has no session yet; synthesize the disconnect.
	if t.pendingMO != nil && (slot == t.foreground || t.pendingMO.Slot() == slot) {
		conn := t.pendingMO
		t.clearPendingDial()
		conn.Disconnect(cause.Local, cause.PreciseNormal, t.clock())
		t.countDisconnect(cause.Local)
		t.writeCDR(conn)
		t.removeFromCount(conn)
		t.updatePhoneState()
		t.emitCall("hangup", conn, nil)
		if !slot.IsAlive() {
			return nil
		}
	}

	if !slot.IsAlive() {
		return stateErr("hangup", "no call to hang up in %s slot", slot.Role())
	}

	for _, conn := range slot.Connections() {
		if !conn.State().IsAlive() || conn.Session() == nil {
			continue
		}
		var err error
		if conn.State().IsRinging() {
			err = conn.Session().Reject(ims.CodeUserDecline)
		} else {
			err = conn.Session().Terminate(ims.CodeUserTerminated)
		}
		if err != nil {
			return fmt.Errorf("hanging up %s: %w", conn.ID(), err)
		}
		t.emitCall("hangup-requested", conn, nil)
	}
	return nil
}

// removeFromCount drops a never-attached or detached connection from
// the tracked count.
func (t *Tracker) removeFromCount(conn *call.Connection) {
	if slot := conn.Slot(); slot != nil {
		slot.Detach(conn)
	}
	t.regMu.Lock()
	if t.connCount > 0 {
		t.connCount--
	}
	t.regMu.Unlock()
}

// clearPendingDial forgets the pending dial and cancels its teardown
// timer.
func (t *Tracker) clearPendingDial() {
	t.pendingMO = nil
	t.pendingExtras = nil
	if t.pendingTeardownTimer != nil {
		t.pendingTeardownTimer.Stop()
		t.pendingTeardownTimer = nil
	}
}

// SwitchWaitingOrHoldingAndActive swaps the foreground and background
// calls: the active call is held and the held call, if any, resumes
// once the hold confirms. The role swap is optimistic and rolled back
// if the hold is refused synchronously.
func (t *Tracker) SwitchWaitingOrHoldingAndActive() error {
	var err error
	t.run(func() {
		err = t.switchLocked()
	})
	return err
}

func (t *Tracker) switchLocked() error {
	if t.swap != swapIdle {
		return stateErr("switch", "a switch is already in progress")
	}
	if t.foreground.State() == call.Active {
		return t.holdForSwapLocked()
	}
	if t.background.State() == call.Holding {
		return t.resumeLocked()
	}
	return stateErr("switch", "no active or held call")
}

// holdForSwapLocked performs the optimistic role swap and requests the
// hold. On a synchronous refusal the swap is undone and the error
// returned; asynchronous failures arrive as a hold-failed event.
func (t *Tracker) holdForSwapLocked() error {
	active := t.foreground.FirstAlive()
	if active == nil || active.Session() == nil {
		return stateErr("switch", "no active call to hold")
	}

	t.expectedResume = t.background.FirstAlive()
	t.swap = swapPending
	t.foreground.SwitchWith(t.background)

	if err := active.Session().Hold(); err != nil {
		t.foreground.SwitchWith(t.background)
		t.swap = swapIdle
		t.expectedResume = nil
		return fmt.Errorf("holding active call: %w", err)
	}
	t.emitCall("hold-requested", active, nil)
	return nil
}

// ResumeWaitingOrHolding resumes the held call. Fails when a call is
// already active.
func (t *Tracker) ResumeWaitingOrHolding() error {
	var err error
	t.run(func() {
		if t.foreground.State() == call.Active {
			err = stateErr("resume", "a call is already active")
			return
		}
		err = t.resumeLocked()
	})
	return err
}

// resumeLocked swaps roles optimistically and requests the resume.
func (t *Tracker) resumeLocked() error {
	held := t.background.FirstAlive()
	if held == nil || held.State() != call.Holding || held.Session() == nil {
		return stateErr("resume", "no held call")
	}

	t.expectedResume = held
	t.swap = swapPending
	t.foreground.SwitchWith(t.background)

	if err := held.Session().Resume(); err != nil {
		t.foreground.SwitchWith(t.background)
		t.swap = swapIdle
		t.expectedResume = nil
		return fmt.Errorf("resuming held call: %w", err)
	}
	t.emitCall("resume-requested", held, nil)
	return nil
}

// Conference merges the foreground and background calls. A merge
// already pending on either side makes this a logged no-op.
func (t *Tracker) Conference() error {
	var err error
	t.run(func() {
		err = t.conferenceLocked()
	})
	return err
}

func (t *Tracker) conferenceLocked() error {
	fg := t.foreground.FirstAlive()
	bg := t.background.FirstAlive()
	if fg == nil || bg == nil || fg.Session() == nil || bg.Session() == nil {
		return stateErr("conference", "need an active and a held call to merge")
	}
	if fg.Session().IsMergePending() || bg.Session().IsMergePending() {
		t.logger.Info("merge already pending, ignoring conference request")
		return nil
	}

	// The conference inherits the earliest connect time of either
	// side, applied when the merge completes.
	fgTime := t.foreground.EarliestConnectTime()
	bgTime := t.background.EarliestConnectTime()
	switch {
	case fgTime.IsZero():
		t.conferenceTime = bgTime
	case bgTime.IsZero():
		t.conferenceTime = fgTime
	case bgTime.Before(fgTime):
		t.conferenceTime = bgTime
	default:
		t.conferenceTime = fgTime
	}
	t.mergeRequested = true

	if err := fg.Session().Merge(bg.Session()); err != nil {
		t.mergeRequested = false
		t.conferenceTime = time.Time{}
		return fmt.Errorf("merging calls: %w", err)
	}
	t.emitCall("merge-requested", fg, map[string]string{"with": bg.ID()})
	return nil
}

// SendDTMF forwards a DTMF digit to the active call.
func (t *Tracker) SendDTMF(digit byte) error {
	var err error
	t.run(func() {
		fg := t.foreground.FirstAlive()
		if fg == nil || fg.State() != call.Active || fg.Session() == nil {
			err = stateErr("dtmf", "no active call")
			return
		}
		err = fg.Session().SendDTMF(digit)
	})
	return err
}

// ClearDisconnected drops disconnected connections from every slot.
func (t *Tracker) ClearDisconnected() {
	t.run(func() {
		for _, slot := range []*call.Slot{t.ringing, t.foreground, t.background, t.handover} {
			for _, conn := range slot.ClearDisconnected() {
				t.unregister(conn)
				t.regMu.Lock()
				if t.connCount > 0 {
					t.connCount--
				}
				t.regMu.Unlock()
				t.ledger.Forget(conn.ID())
			}
		}
		t.updatePhoneState()
	})
}

// NotifySRVCCState feeds the radio layer's SRVCC progress. On
// completion every connection moves to the handover slot with its
// state intact; the legs continue on the circuit-switched domain.
func (t *Tracker) NotifySRVCCState(state SrvccState) {
	t.run(func() {
		t.logger.Info("srvcc state", "state", int(state))
		if state != SrvccCompleted {
			return
		}
		t.handover.TakeFrom(t.foreground)
		t.handover.TakeFrom(t.background)
		t.handover.TakeFrom(t.ringing)
		t.swap = swapIdle
		t.expectedResume = nil
		t.updatePhoneState()
		t.emit(telemetry.Event{Kind: "srvcc-completed"})
		t.countHandover("srvcc")
	})
}

// OnDataEnabledChanged reacts to mobile data availability changes,
// downgrading, pausing, or ending video calls per carrier policy.
func (t *Tracker) OnDataEnabledChanged(enabled bool, reason policy.DisableReason) {
	t.run(func() {
		if !t.policyMon.Update(enabled, reason) {
			return
		}
		snap := t.carrier.Snapshot()
		for _, slot := range []*call.Slot{t.foreground, t.background} {
			for _, conn := range slot.Connections() {
				if !conn.State().IsAlive() || conn.Session() == nil {
					continue
				}
				if enabled {
					t.applyPolicyAction(conn, policy.DecideResume(conn, snap))
				} else {
					t.applyPolicyAction(conn, policy.Decide(conn, snap, reason.ReasonCode()))
				}
			}
		}
	})
}

// applyPolicyAction executes one policy directive on a connection.
func (t *Tracker) applyPolicyAction(conn *call.Connection, a policy.Action) {
	switch a.Kind {
	case policy.ActionDowngrade:
		t.logger.Info("downgrading video call", "call_id", conn.ID(), "reason", int(a.Reason))
		if err := conn.Session().RequestVideoState(ims.VideoStateAudioOnly); err != nil {
			t.logger.Warn("video downgrade failed", "call_id", conn.ID(), "error", err)
			return
		}
		conn.SetVideoState(ims.VideoStateAudioOnly)
		t.emitCall("video-downgraded", conn, nil)

	case policy.ActionPause:
		if conn.RequestPause(call.PauseSourceNetwork) {
			paused := conn.VideoState().WithPause()
			if err := conn.Session().RequestVideoState(paused); err != nil {
				t.logger.Warn("video pause failed", "call_id", conn.ID(), "error", err)
				return
			}
			conn.SetVideoState(paused)
		}
		t.emitCall("video-paused", conn, nil)

	case policy.ActionTerminate:
		t.logger.Info("terminating video call", "call_id", conn.ID(), "reason", int(a.Reason))
		if err := conn.Session().Terminate(a.Reason); err != nil {
			t.logger.Warn("terminate failed", "call_id", conn.ID(), "error", err)
		}

	case policy.ActionResume:
		if conn.RequestResume(call.PauseSourceNetwork) {
			resumed := conn.VideoState().WithoutPause()
			if err := conn.Session().RequestVideoState(resumed); err != nil {
				t.logger.Warn("video resume failed", "call_id", conn.ID(), "error", err)
				return
			}
			conn.SetVideoState(resumed)
			t.emitCall("video-resumed", conn, nil)
		}
	}
}

// PauseVideo pauses video on the active call at the user's request.
func (t *Tracker) PauseVideo() error {
	var err error
	t.run(func() {
		fg := t.foreground.FirstAlive()
		if fg == nil || fg.Session() == nil || !fg.IsVideo() {
			err = stateErr("pause-video", "no active video call")
			return
		}
		if !t.carrier.Snapshot().SupportPauseVideo {
			err = stateErr("pause-video", "carrier does not support video pause")
			return
		}
		if fg.RequestPause(call.PauseSourceUser) {
			paused := fg.VideoState().WithPause()
			if e := fg.Session().RequestVideoState(paused); e != nil {
				err = fmt.Errorf("pausing video: %w", e)
				return
			}
			fg.SetVideoState(paused)
		}
	})
	return err
}

// ResumeVideo clears the user's video pause.
func (t *Tracker) ResumeVideo() error {
	var err error
	t.run(func() {
		fg := t.foreground.FirstAlive()
		if fg == nil || fg.Session() == nil {
			err = stateErr("resume-video", "no active call")
			return
		}
		if fg.RequestResume(call.PauseSourceUser) {
			resumed := fg.VideoState().WithoutPause()
			if e := fg.Session().RequestVideoState(resumed); e != nil {
				err = fmt.Errorf("resuming video: %w", e)
				return
			}
			fg.SetVideoState(resumed)
		}
	})
	return err
}
