package call

import (
	"time"

	"github.com/google/uuid"

	"github.com/imstrack/imstrack/internal/cause"
	"github.com/imstrack/imstrack/internal/ims"
)

// Capability is a bit flag describing what a connection supports.
type Capability uint8

const (
	CapDowngradeToVoiceLocal Capability = 1 << iota
	CapDowngradeToVoiceRemote
	CapPauseVideo
)

// Connection is one call leg. A connection belongs to exactly one slot
// at a time; Slot.Attach and Slot.Detach maintain the owner pointer.
type Connection struct {
	id        string
	address   string
	incoming  bool
	emergency bool

	session ims.CallSession
	slot    *Slot

	state State
	video ims.VideoState
	caps  Capability

	createTime     time.Time
	connectTime    time.Time
	disconnectTime time.Time

	disconnectCause cause.DisconnectCause
	preciseCause    cause.PreciseCause

	remoteHeld bool

	// Call pull bookkeeping. pulled marks a connection created to
	// continue a call pulled from another device; pullInProgress is
	// set while the pull has not completed.
	pulled         bool
	pullInProgress bool

	pause pauseTracker
}

// NewOutgoing builds a connection for a dialed call. The session is
// attached later, once the lower layer accepts the dial.
func NewOutgoing(address string, video ims.VideoState, emergency bool, now time.Time) *Connection {
	return &Connection{
		id:              uuid.NewString(),
		address:         address,
		video:           video,
		emergency:       emergency,
		state:           Dialing,
		createTime:      now,
		disconnectCause: cause.NotDisconnected,
	}
}

// NewIncoming builds a connection for a ringing call.
func NewIncoming(session ims.CallSession, address string, now time.Time) *Connection {
	c := &Connection{
		id:              uuid.NewString(),
		address:         address,
		incoming:        true,
		session:         session,
		state:           Incoming,
		createTime:      now,
		disconnectCause: cause.NotDisconnected,
	}
	if session != nil {
		c.video = session.Profile().VideoState
	}
	return c
}

func (c *Connection) ID() string      { return c.id }
func (c *Connection) Address() string { return c.address }
func (c *Connection) Incoming() bool  { return c.incoming }
func (c *Connection) Emergency() bool { return c.emergency }

func (c *Connection) Session() ims.CallSession { return c.session }

// SetSession attaches the lower-layer session once the dial is placed.
func (c *Connection) SetSession(s ims.CallSession) { c.session = s }

// Slot returns the owning slot, nil when detached.
func (c *Connection) Slot() *Slot { return c.slot }

func (c *Connection) State() State { return c.state }

// SetState moves the connection to a new state. The owning slot's
// derived state follows on the next Slot.State call.
func (c *Connection) SetState(s State) { c.state = s }

func (c *Connection) VideoState() ims.VideoState { return c.video }

func (c *Connection) SetVideoState(v ims.VideoState) { c.video = v }

// IsVideo reports whether the connection currently carries video.
func (c *Connection) IsVideo() bool { return c.video.IsVideo() }

func (c *Connection) Capabilities() Capability { return c.caps }

func (c *Connection) SetCapabilities(caps Capability) { c.caps = caps }

// Can reports whether all given capability bits are set.
func (c *Connection) Can(caps Capability) bool { return c.caps&caps == caps }

func (c *Connection) CreateTime() time.Time  { return c.createTime }
func (c *Connection) ConnectTime() time.Time { return c.connectTime }

// SetConnectTime records when the call went active. Only the first
// value sticks; a conference may later lower it through
// OverrideConnectTime.
func (c *Connection) SetConnectTime(t time.Time) {
	if c.connectTime.IsZero() {
		c.connectTime = t
	}
}

// OverrideConnectTime replaces the connect time, used when a merged
// conference inherits the earliest member connect time.
func (c *Connection) OverrideConnectTime(t time.Time) { c.connectTime = t }

func (c *Connection) DisconnectTime() time.Time { return c.disconnectTime }

func (c *Connection) DisconnectCause() cause.DisconnectCause { return c.disconnectCause }
func (c *Connection) PreciseCause() cause.PreciseCause       { return c.preciseCause }

// Disconnect marks the connection terminally disconnected. The first
// non-default cause wins; later calls only fill in a cause if none was
// set.
func (c *Connection) Disconnect(dc cause.DisconnectCause, pc cause.PreciseCause, now time.Time) {
	if c.disconnectCause == cause.NotDisconnected {
		c.disconnectCause = dc
		c.preciseCause = pc
	}
	c.state = Disconnected
	if c.disconnectTime.IsZero() {
		c.disconnectTime = now
	}
	c.pause.Clear()
}

// RemoteHeld reports whether the far end has put this leg on hold.
func (c *Connection) RemoteHeld() bool { return c.remoteHeld }

func (c *Connection) SetRemoteHeld(held bool) { c.remoteHeld = held }

func (c *Connection) Pulled() bool        { return c.pulled }
func (c *Connection) PullInProgress() bool { return c.pullInProgress }

// MarkPulled flags the connection as the continuation of a pulled
// call.
func (c *Connection) MarkPulled() {
	c.pulled = true
	c.pullInProgress = true
}

// CompletePull clears the in-progress marker once the pull settles.
func (c *Connection) CompletePull() { c.pullInProgress = false }

// RequestPause records a pause request and reports whether the pause
// must be sent to the session.
func (c *Connection) RequestPause(src PauseSource) bool { return c.pause.RequestPause(src) }

// RequestResume records a resume request and reports whether the
// resume must be sent to the session.
func (c *Connection) RequestResume(src PauseSource) bool { return c.pause.RequestResume(src) }

// PausedBy reports whether src currently holds a video pause.
func (c *Connection) PausedBy(src PauseSource) bool { return c.pause.PausedBy(src) }

// VideoPaused reports whether any source holds a video pause.
func (c *Connection) VideoPaused() bool { return c.pause.Paused() }
