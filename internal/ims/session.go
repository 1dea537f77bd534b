package ims

// ServiceType selects the class of service a call profile is built for.
type ServiceType int

const (
	ServiceTypeNormal ServiceType = iota
	ServiceTypeEmergency
)

// CallType selects the media composition of a call profile.
type CallType int

const (
	CallTypeVoice CallType = iota
	CallTypeVideoNTx
	CallTypeVideoNRx
	CallTypeVideo
)

// AccessTech identifies the radio access technology a session is
// currently carried over.
type AccessTech int

const (
	AccessTechUnknown AccessTech = iota
	AccessTechLTE
	AccessTechIWLAN
)

func (a AccessTech) String() string {
	switch a {
	case AccessTechLTE:
		return "lte"
	case AccessTechIWLAN:
		return "iwlan"
	default:
		return "unknown"
	}
}

// CallProfile describes the requested or negotiated properties of a
// session. Extras carries opaque key/value pairs passed through to the
// lower layer.
type CallProfile struct {
	ServiceType ServiceType
	CallType    CallType
	VideoState  VideoState
	Extras      map[string]string
}

// CallCaps is a bit field of negotiated per-call capabilities.
type CallCaps uint8

const (
	CapsDowngradeToVoiceLocal CallCaps = 1 << iota
	CapsDowngradeToVoiceRemote
	CapsPauseVideo
)

// ProcessCallResult is the transport eligibility verdict for a dial
// request.
type ProcessCallResult int

const (
	// ProcessCallIMS means the call may proceed on the IMS transport.
	ProcessCallIMS ProcessCallResult = iota
	// ProcessCallCSFallback means the call must be retried on the
	// circuit-switched domain.
	ProcessCallCSFallback
)

// CallSession is one lower-layer session. All request methods are
// asynchronous: a returned nil error means the request was issued, and
// the outcome arrives later as a SessionEvent. A non-nil error is an
// immediate local failure.
type CallSession interface {
	ID() string
	Accept(video VideoState) error
	Reject(code ReasonCode) error
	Hold() error
	Resume() error
	Terminate(code ReasonCode) error
	Merge(with CallSession) error
	SendDTMF(digit byte) error
	RequestVideoState(video VideoState) error

	Profile() CallProfile
	Capabilities() CallCaps
	RemoteTech() AccessTech
	IsVideoCall() bool
	WasVideoCall() bool
	IsWifiCall() bool
	IsMultiparty() bool
	IsMergePending() bool
	IsMerged() bool
}

// EventKind discriminates SessionEvent.
type EventKind int

const (
	EventIncoming EventKind = iota
	EventProgressing
	EventStarted
	EventStartFailed
	EventUpdated
	EventTerminated
	EventHeld
	EventHoldFailed
	EventResumed
	EventResumeFailed
	EventResumeReceived
	EventHoldReceived
	EventMerged
	EventMergeFailed
	EventMultipartyChanged
	EventHandover
	EventHandoverFailed
	EventUsageUpdated
)

func (k EventKind) String() string {
	switch k {
	case EventIncoming:
		return "incoming"
	case EventProgressing:
		return "progressing"
	case EventStarted:
		return "started"
	case EventStartFailed:
		return "start-failed"
	case EventUpdated:
		return "updated"
	case EventTerminated:
		return "terminated"
	case EventHeld:
		return "held"
	case EventHoldFailed:
		return "hold-failed"
	case EventResumed:
		return "resumed"
	case EventResumeFailed:
		return "resume-failed"
	case EventResumeReceived:
		return "resume-received"
	case EventHoldReceived:
		return "hold-received"
	case EventMerged:
		return "merged"
	case EventMergeFailed:
		return "merge-failed"
	case EventMultipartyChanged:
		return "multiparty-changed"
	case EventHandover:
		return "handover"
	case EventHandoverFailed:
		return "handover-failed"
	case EventUsageUpdated:
		return "usage-updated"
	default:
		return "unknown"
	}
}

// SessionEvent is a single notification from the session layer. Which
// fields are populated depends on Kind.
type SessionEvent struct {
	Kind    EventKind
	Session CallSession

	// Peer is the surviving host session after a merge, or the newly
	// created conference session.
	Peer CallSession

	// Address is the caller address for EventIncoming.
	Address string

	Reason     ReasonInfo
	SrcTech    AccessTech
	TargetTech AccessTech
	Multiparty bool

	// UsageBytes is the cumulative byte count for EventUsageUpdated.
	UsageBytes uint64
}

// EventHandler receives session layer notifications. The tracker
// marshals every invocation onto its event loop.
type EventHandler func(SessionEvent)

// Provider is the session layer entry point consumed by the tracker.
type Provider interface {
	// Ready reports whether the IMS service is available for new calls.
	Ready() bool
	// ShouldProcessCall decides whether a dial may proceed on IMS or
	// must fall back to the circuit-switched domain.
	ShouldProcessCall(address string, emergency bool) ProcessCallResult
	// CreateProfile builds a call profile for an outgoing call.
	CreateProfile(service ServiceType, call CallType) (CallProfile, error)
	// MakeCall starts an outgoing session. Progress is reported
	// through the registered handler.
	MakeCall(profile CallProfile, address string) (CallSession, error)
	// SetHandler registers the single event handler. Must be called
	// before any session activity.
	SetHandler(h EventHandler)
}
