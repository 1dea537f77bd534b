package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/imstrack/imstrack/internal/call"
	"github.com/imstrack/imstrack/internal/ims"
	"github.com/imstrack/imstrack/internal/tracker"
)

// dialRequest is the body for POST /calls/dial.
type dialRequest struct {
	Address   string            `json:"address"`
	Video     string            `json:"video,omitempty"`
	Emergency bool              `json:"emergency,omitempty"`
	Extras    map[string]string `json:"extras,omitempty"`
}

// handleDial places an outgoing call.
func (s *Server) handleDial(w http.ResponseWriter, r *http.Request) {
	var req dialRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	video, err := ims.ParseVideoState(req.Video)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := s.trk.Dial(tracker.DialRequest{
		Address:   req.Address,
		Video:     video,
		Emergency: req.Emergency,
		Extras:    req.Extras,
	})
	if err != nil {
		writeTrackerError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"id":      conn.ID(),
		"address": conn.Address(),
		"state":   conn.State().String(),
	})
}

// acceptRequest is the body for POST /calls/accept.
type acceptRequest struct {
	Video string `json:"video,omitempty"`
}

// handleAccept answers the ringing call.
func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	var req acceptRequest
	if errMsg := readJSONOptional(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	video, err := ims.ParseVideoState(req.Video)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.trk.AcceptCall(video); err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// handleReject declines the ringing call.
func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	if err := s.trk.RejectCall(); err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

// hangupRequest is the body for POST /calls/hangup. Slot defaults to
// foreground.
type hangupRequest struct {
	Slot string `json:"slot,omitempty"`
}

// handleHangup terminates every live leg in the named slot.
func (s *Server) handleHangup(w http.ResponseWriter, r *http.Request) {
	var req hangupRequest
	if errMsg := readJSONOptional(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	role, err := parseRole(req.Slot)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.trk.Hangup(s.trk.Slot(role)); err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "hangup", "slot": role.String()})
}

// handleSwap switches the foreground and background calls.
func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	if err := s.trk.SwitchWaitingOrHoldingAndActive(); err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "swapping"})
}

// handleResume resumes the held background call.
func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.trk.ResumeWaitingOrHolding(); err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resuming"})
}

// handleConference merges the foreground and background calls.
func (s *Server) handleConference(w http.ResponseWriter, r *http.Request) {
	if err := s.trk.Conference(); err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "merging"})
}

// dtmfRequest is the body for POST /calls/dtmf.
type dtmfRequest struct {
	Digit string `json:"digit"`
}

// handleDTMF forwards a DTMF digit to the active call.
func (s *Server) handleDTMF(w http.ResponseWriter, r *http.Request) {
	var req dtmfRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if len(req.Digit) != 1 {
		writeError(w, http.StatusBadRequest, "digit must be a single character")
		return
	}

	if err := s.trk.SendDTMF(req.Digit[0]); err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// muteRequest is the body for POST /calls/mute.
type muteRequest struct {
	Muted bool `json:"muted"`
}

// handleMute records the desired mute state.
func (s *Server) handleMute(w http.ResponseWriter, r *http.Request) {
	var req muteRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	s.trk.SetMute(req.Muted)
	writeJSON(w, http.StatusOK, map[string]bool{"muted": req.Muted})
}

// handleVideoPause pauses outgoing video on the foreground call.
func (s *Server) handleVideoPause(w http.ResponseWriter, r *http.Request) {
	if err := s.trk.PauseVideo(); err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "pausing"})
}

// handleVideoResume resumes user-paused video on the foreground call.
func (s *Server) handleVideoResume(w http.ResponseWriter, r *http.Request) {
	if err := s.trk.ResumeVideo(); err != nil {
		writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resuming"})
}

// handleClearDisconnected drops disconnected legs from every slot.
func (s *Server) handleClearDisconnected(w http.ResponseWriter, r *http.Request) {
	s.trk.ClearDisconnected()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// handleListCalls returns the tracked call legs.
func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	conns := s.trk.Dump().Connections
	if conns == nil {
		conns = []tracker.ConnectionInfo{}
	}
	writeJSON(w, http.StatusOK, conns)
}

// handleUsage returns the VT usage ledger totals.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"device":  s.trk.UsageDevice(),
		"per_uid": s.trk.UsagePerUID(),
	})
}

// parseRole maps a slot name from the API to a call.Role. The empty
// string means foreground.
func parseRole(name string) (call.Role, error) {
	switch name {
	case "", "foreground":
		return call.RoleForeground, nil
	case "ringing":
		return call.RoleRinging, nil
	case "background":
		return call.RoleBackground, nil
	case "handover":
		return call.RoleHandover, nil
	default:
		return 0, fmt.Errorf("unknown slot %q", name)
	}
}

// writeTrackerError maps tracker errors to HTTP status codes. State
// conflicts and CS fallback map to 409 so clients can distinguish them
// from malformed requests.
func writeTrackerError(w http.ResponseWriter, err error) {
	var stateErr *tracker.CallStateError
	switch {
	case errors.Is(err, tracker.ErrCSFallback):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &stateErr):
		writeError(w, http.StatusConflict, stateErr.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
