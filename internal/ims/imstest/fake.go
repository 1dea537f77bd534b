// Package imstest provides an in-memory session layer used by tests and
// by the loopback provider of cmd/imstrack. Request methods only record
// the request; outcomes are delivered explicitly through the Emit
// helpers, mirroring the asynchronous contract of the real layer.
package imstest

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/imstrack/imstrack/internal/ims"
)

var sessionSeq atomic.Int64

// Session is a scriptable ims.CallSession.
type Session struct {
	mu sync.Mutex

	id      string
	profile ims.CallProfile
	address string

	tech         ims.AccessTech
	caps         ims.CallCaps
	wasVideo     bool
	multiparty   bool
	mergePending bool
	merged       bool

	// Injected synchronous failures, returned by the matching request
	// method.
	AcceptErr    error
	RejectErr    error
	HoldErr      error
	ResumeErr    error
	TerminateErr error
	MergeErr     error
	DTMFErr      error
	VideoErr     error

	// Requests records request method invocations in order, e.g.
	// "hold", "terminate(501)".
	Requests []string
}

// NewSession builds a fake session with a unique ID.
func NewSession(profile ims.CallProfile, address string) *Session {
	return &Session{
		id:      fmt.Sprintf("fake-%d", sessionSeq.Add(1)),
		profile: profile,
		address: address,
		tech:    ims.AccessTechLTE,
	}
}

func (s *Session) record(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Requests = append(s.Requests, op)
}

// Requested reports whether op was requested at least once.
func (s *Session) Requested(op string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.Requests {
		if r == op {
			return true
		}
	}
	return false
}

// LastRequest returns the most recent request, or "".
func (s *Session) LastRequest() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Requests) == 0 {
		return ""
	}
	return s.Requests[len(s.Requests)-1]
}

func (s *Session) ID() string { return s.id }

func (s *Session) Accept(video ims.VideoState) error {
	s.record(fmt.Sprintf("accept(%s)", video))
	return s.AcceptErr
}

func (s *Session) Reject(code ims.ReasonCode) error {
	s.record(fmt.Sprintf("reject(%d)", int(code)))
	return s.RejectErr
}

func (s *Session) Hold() error {
	s.record("hold")
	return s.HoldErr
}

func (s *Session) Resume() error {
	s.record("resume")
	return s.ResumeErr
}

func (s *Session) Terminate(code ims.ReasonCode) error {
	s.record(fmt.Sprintf("terminate(%d)", int(code)))
	return s.TerminateErr
}

func (s *Session) Merge(with ims.CallSession) error {
	s.record("merge")
	if s.MergeErr != nil {
		return s.MergeErr
	}
	s.mu.Lock()
	s.mergePending = true
	s.mu.Unlock()
	return nil
}

func (s *Session) SendDTMF(digit byte) error {
	s.record(fmt.Sprintf("dtmf(%c)", digit))
	return s.DTMFErr
}

func (s *Session) RequestVideoState(video ims.VideoState) error {
	s.record(fmt.Sprintf("video(%s)", video))
	if s.VideoErr != nil {
		return s.VideoErr
	}
	s.mu.Lock()
	if s.profile.VideoState.IsVideo() {
		s.wasVideo = true
	}
	s.profile.VideoState = video
	s.mu.Unlock()
	return nil
}

func (s *Session) Profile() ims.CallProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// Address returns the dialed or calling address.
func (s *Session) Address() string { return s.address }

func (s *Session) Capabilities() ims.CallCaps {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps
}

// SetCaps sets the negotiated capability bits.
func (s *Session) SetCaps(caps ims.CallCaps) {
	s.mu.Lock()
	s.caps = caps
	s.mu.Unlock()
}

func (s *Session) RemoteTech() ims.AccessTech {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tech
}

func (s *Session) IsVideoCall() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.VideoState.IsVideo()
}

func (s *Session) WasVideoCall() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wasVideo || s.profile.VideoState.IsVideo()
}

func (s *Session) IsWifiCall() bool {
	return s.RemoteTech() == ims.AccessTechIWLAN
}

func (s *Session) IsMultiparty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.multiparty
}

func (s *Session) IsMergePending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mergePending
}

func (s *Session) IsMerged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.merged
}

// SetTech sets the reported access technology.
func (s *Session) SetTech(t ims.AccessTech) {
	s.mu.Lock()
	s.tech = t
	s.mu.Unlock()
}

// SetVideoState sets the profile video state without going through
// RequestVideoState.
func (s *Session) SetVideoState(v ims.VideoState) {
	s.mu.Lock()
	if s.profile.VideoState.IsVideo() {
		s.wasVideo = true
	}
	s.profile.VideoState = v
	s.mu.Unlock()
}

// SetMultiparty marks the session as a conference host.
func (s *Session) SetMultiparty(m bool) {
	s.mu.Lock()
	s.multiparty = m
	s.mu.Unlock()
}

// SetMerged resolves a pending merge.
func (s *Session) SetMerged(m bool) {
	s.mu.Lock()
	s.merged = m
	s.mergePending = false
	s.mu.Unlock()
}

// Provider is a scriptable ims.Provider.
type Provider struct {
	mu      sync.Mutex
	handler ims.EventHandler

	NotReady      bool
	ProcessResult ims.ProcessCallResult
	MakeCallErr   error

	// Made records every session created by MakeCall.
	Made []*Session
}

func NewProvider() *Provider { return &Provider{} }

func (p *Provider) Ready() bool { return !p.NotReady }

func (p *Provider) ShouldProcessCall(address string, emergency bool) ims.ProcessCallResult {
	return p.ProcessResult
}

func (p *Provider) CreateProfile(service ims.ServiceType, call ims.CallType) (ims.CallProfile, error) {
	video := ims.VideoStateAudioOnly
	switch call {
	case ims.CallTypeVideo:
		video = ims.VideoStateBidirectional
	case ims.CallTypeVideoNTx:
		video = ims.VideoStateTXEnabled
	case ims.CallTypeVideoNRx:
		video = ims.VideoStateRXEnabled
	}
	return ims.CallProfile{ServiceType: service, CallType: call, VideoState: video}, nil
}

func (p *Provider) MakeCall(profile ims.CallProfile, address string) (ims.CallSession, error) {
	if p.MakeCallErr != nil {
		return nil, p.MakeCallErr
	}
	s := NewSession(profile, address)
	p.mu.Lock()
	p.Made = append(p.Made, s)
	p.mu.Unlock()
	return s, nil
}

func (p *Provider) SetHandler(h ims.EventHandler) {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
}

// Emit delivers one event to the registered handler. Tests must not
// call Emit from inside a session request method.
func (p *Provider) Emit(evt ims.SessionEvent) {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	if h != nil {
		h(evt)
	}
}

// Incoming creates a ringing session and delivers the incoming event.
func (p *Provider) Incoming(address string, video ims.VideoState) *Session {
	s := NewSession(ims.CallProfile{CallType: ims.CallTypeVoice, VideoState: video}, address)
	p.Emit(ims.SessionEvent{Kind: ims.EventIncoming, Session: s, Address: address})
	return s
}
