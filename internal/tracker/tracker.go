// Package tracker owns the call state machine: four call slots, a
// pending dial, a registry of live connections, and the session event
// handlers that drive everything. All mutation happens on a single
// event loop goroutine; public operations run their body on the loop
// and return synchronously.
package tracker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/imstrack/imstrack/internal/call"
	"github.com/imstrack/imstrack/internal/carrier"
	"github.com/imstrack/imstrack/internal/cause"
	"github.com/imstrack/imstrack/internal/connectivity"
	"github.com/imstrack/imstrack/internal/ims"
	"github.com/imstrack/imstrack/internal/policy"
	"github.com/imstrack/imstrack/internal/telemetry"
	"github.com/imstrack/imstrack/internal/usage"
)

const (
	// maxConnections caps the total number of tracked call legs.
	maxConnections = 7

	// defaultPendingTeardownDelay is how long a failed pending dial
	// stays visible before it is removed.
	defaultPendingTeardownDelay = 500 * time.Millisecond

	// defaultWifiCheckDelay is how long a video call started off-WIFI
	// may wait for a handover before the failure is reported.
	defaultWifiCheckDelay = 60 * time.Second
)

// PhoneState is the device-level call state derived from the slots.
type PhoneState int

const (
	PhoneIdle PhoneState = iota
	PhoneRinging
	PhoneOffhook
)

func (s PhoneState) String() string {
	switch s {
	case PhoneRinging:
		return "ringing"
	case PhoneOffhook:
		return "offhook"
	default:
		return "idle"
	}
}

// PhoneStateListener observes phone state edges. Invoked on the event
// loop, once per transition.
type PhoneStateListener func(old, new PhoneState)

// SrvccState mirrors the radio layer's SRVCC progress notification.
type SrvccState int

const (
	SrvccStarted SrvccState = iota
	SrvccCompleted
	SrvccFailed
	SrvccCanceled
)

// CDR is the call detail record written on terminal disconnect.
type CDR struct {
	ID           string
	Address      string
	Incoming     bool
	Video        bool
	StartTime    time.Time
	ConnectTime  time.Time
	EndTime      time.Time
	Cause        cause.DisconnectCause
	PreciseCause cause.PreciseCause
	UsageBytes   uint64
}

// CDRSink persists call detail records.
type CDRSink interface {
	RecordCDR(cdr CDR) error
}

// swapPhase tracks the foreground/background role swap.
//
//	swapIdle:      no swap in progress
//	swapPending:   roles swapped optimistically, hold/resume requested
//	swapCommitted: hold confirmed, waiting for the expected resume
type swapPhase int

const (
	swapIdle swapPhase = iota
	swapPending
	swapCommitted
)

type pendingAccept struct {
	conn  *call.Connection
	video ims.VideoState
}

// Deps wires the tracker's collaborators. Provider and Logger are
// required; everything else may be nil.
type Deps struct {
	Logger       *slog.Logger
	Provider     ims.Provider
	Carrier      *carrier.Source
	Policy       *policy.Monitor
	Connectivity connectivity.Monitor
	Ledger       *usage.Ledger
	CDRs         CDRSink
	Events       telemetry.Sink
	Clock        func() time.Time

	// OnCSFallback is invoked when a dial start failure asks for a
	// silent redial on the circuit-switched domain.
	OnCSFallback func(address string, video ims.VideoState)
}

// Tracker is the call state machine.
type Tracker struct {
	logger       *slog.Logger
	provider     ims.Provider
	carrier      *carrier.Source
	policyMon    *policy.Monitor
	connMon      connectivity.Monitor
	ledger       *usage.Ledger
	cdrs         CDRSink
	events       telemetry.Sink
	clock        func() time.Time
	onCSFallback func(string, ims.VideoState)

	loopCh chan func()
	stopCh chan struct{}
	wg     sync.WaitGroup

	ringing    *call.Slot
	foreground *call.Slot
	background *call.Slot
	handover   *call.Slot

	// Loop-owned state.
	pendingMO     *call.Connection
	pendingVideo  ims.VideoState
	pendingExtras map[string]string
	pendingAcc    *pendingAccept

	swap           swapPhase
	expectedResume *call.Connection

	conferenceTime time.Time
	mergeRequested bool

	phoneState PhoneState
	listeners  []PhoneStateListener

	desiredMute bool

	pendingTeardownTimer *time.Timer
	wifiCheckTimer       *time.Timer
	wifiCheckConn        *call.Connection

	pendingTeardownDelay time.Duration
	wifiCheckDelay       time.Duration

	// regMu guards everything read off-loop: the session index, the
	// published snapshot, and the metric counters.
	regMu            sync.RWMutex
	bySession        map[string]*call.Connection
	connCount        int
	snapshot         Snapshot
	disconnectCounts map[cause.DisconnectCause]uint64
	handoverCounts   map[string]uint64
}

// New builds a stopped tracker. Call Start before use.
func New(d Deps) *Tracker {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Carrier == nil {
		d.Carrier, _ = carrier.NewSource("")
	}
	if d.Policy == nil {
		d.Policy = policy.NewMonitor(d.Logger)
	}
	if d.Ledger == nil {
		d.Ledger = usage.NewLedger(nil, d.Logger)
	}

	t := &Tracker{
		logger:       d.Logger,
		provider:     d.Provider,
		carrier:      d.Carrier,
		policyMon:    d.Policy,
		connMon:      d.Connectivity,
		ledger:       d.Ledger,
		cdrs:         d.CDRs,
		events:       d.Events,
		clock:        d.Clock,
		onCSFallback: d.OnCSFallback,

		loopCh: make(chan func()),
		stopCh: make(chan struct{}),

		ringing:    call.NewSlot(call.RoleRinging),
		foreground: call.NewSlot(call.RoleForeground),
		background: call.NewSlot(call.RoleBackground),
		handover:   call.NewSlot(call.RoleHandover),

		pendingTeardownDelay: defaultPendingTeardownDelay,
		wifiCheckDelay:       defaultWifiCheckDelay,

		bySession:        make(map[string]*call.Connection),
		disconnectCounts: make(map[cause.DisconnectCause]uint64),
		handoverCounts:   make(map[string]uint64),
	}
	return t
}

// Start spins up the event loop and hooks the session provider.
func (t *Tracker) Start() {
	t.wg.Add(1)
	go t.loop()
	if t.provider != nil {
		t.provider.SetHandler(t.onSessionEvent)
	}
}

// Stop shuts the event loop down. Pending timers are dropped.
func (t *Tracker) Stop() {
	close(t.stopCh)
	t.wg.Wait()
}

func (t *Tracker) loop() {
	defer t.wg.Done()
	for {
		select {
		case fn := <-t.loopCh:
			fn()
		case <-t.stopCh:
			return
		}
	}
}

// run executes fn on the event loop and waits for it to finish.
// The snapshot is republished before the wait ends so callers read
// their own writes through Dump and PhoneState. Returns false if the
// tracker is stopped.
func (t *Tracker) run(fn func()) bool {
	done := make(chan struct{})
	select {
	case t.loopCh <- func() {
		defer close(done)
		fn()
		t.publishSnapshot()
	}:
		<-done
		return true
	case <-t.stopCh:
		return false
	}
}

func (t *Tracker) afterFunc(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, fn)
}

// AddPhoneStateListener registers a phone state observer. Listeners
// run on the event loop.
func (t *Tracker) AddPhoneStateListener(l PhoneStateListener) {
	t.run(func() {
		t.listeners = append(t.listeners, l)
	})
}

// Slot returns one of the four long-lived slots.
func (t *Tracker) Slot(role call.Role) *call.Slot {
	switch role {
	case call.RoleRinging:
		return t.ringing
	case call.RoleForeground:
		return t.foreground
	case call.RoleBackground:
		return t.background
	case call.RoleHandover:
		return t.handover
	default:
		return nil
	}
}

// ownsSlot reports whether s is one of the tracker's slots.
func (t *Tracker) ownsSlot(s *call.Slot) bool {
	return s == t.ringing || s == t.foreground || s == t.background || s == t.handover
}

// register indexes a connection. Caller is on the loop.
func (t *Tracker) register(c *call.Connection) {
	t.regMu.Lock()
	if s := c.Session(); s != nil {
		t.bySession[s.ID()] = c
	}
	t.connCount++
	t.regMu.Unlock()
}

// indexSession maps a late-bound session to its connection.
func (t *Tracker) indexSession(c *call.Connection) {
	if s := c.Session(); s != nil {
		t.regMu.Lock()
		t.bySession[s.ID()] = c
		t.regMu.Unlock()
	}
}

// unregister forgets a connection's session index entry. The count
// drops when the connection leaves its slot.
func (t *Tracker) unregister(c *call.Connection) {
	t.regMu.Lock()
	if s := c.Session(); s != nil {
		delete(t.bySession, s.ID())
	}
	t.regMu.Unlock()
}

// addToCount counts a connection that is not indexed yet, such as a
// pending dial without a session.
func (t *Tracker) addToCount() {
	t.regMu.Lock()
	t.connCount++
	t.regMu.Unlock()
}

func (t *Tracker) lookup(s ims.CallSession) *call.Connection {
	if s == nil {
		return nil
	}
	t.regMu.RLock()
	defer t.regMu.RUnlock()
	return t.bySession[s.ID()]
}

// derivePhoneState computes RINGING > OFFHOOK > IDLE.
func (t *Tracker) derivePhoneState() PhoneState {
	if t.ringing.State().IsRinging() {
		return PhoneRinging
	}
	if t.foreground.IsAlive() || t.background.IsAlive() || t.pendingMO != nil {
		return PhoneOffhook
	}
	return PhoneIdle
}

// updatePhoneState rederives the phone state and fires listeners on
// an edge.
func (t *Tracker) updatePhoneState() {
	next := t.derivePhoneState()
	if next == t.phoneState {
		return
	}
	old := t.phoneState
	t.phoneState = next
	t.logger.Info("phone state changed", "from", old.String(), "to", next.String())
	for _, l := range t.listeners {
		l(old, next)
	}
	t.emit(telemetry.Event{
		Kind:  "phone-state",
		State: next.String(),
		Detail: map[string]string{
			"previous": old.String(),
		},
	})
}

// emit writes a telemetry event, stamping the time.
func (t *Tracker) emit(evt telemetry.Event) {
	if t.events == nil {
		return
	}
	evt.Time = t.clock()
	if err := t.events.Write(evt); err != nil {
		t.logger.Warn("telemetry write failed", "kind", evt.Kind, "error", err)
	}
}

// emitCall writes a per-connection telemetry event.
func (t *Tracker) emitCall(kind string, c *call.Connection, detail map[string]string) {
	evt := telemetry.Event{
		Kind:    kind,
		CallID:  c.ID(),
		Address: c.Address(),
		State:   c.State().String(),
		Detail:  detail,
	}
	if c.State() == call.Disconnected {
		evt.Cause = c.DisconnectCause().String()
	}
	t.emit(evt)
}

// mapper builds the reason mapper for the current carrier snapshot.
func (t *Tracker) mapper() *cause.Mapper {
	return cause.NewMapper(t.carrier.Snapshot().Remap)
}

// writeCDR persists the record for a disconnected connection.
func (t *Tracker) writeCDR(c *call.Connection) {
	if t.cdrs == nil {
		return
	}
	cdr := CDR{
		ID:           c.ID(),
		Address:      c.Address(),
		Incoming:     c.Incoming(),
		Video:        c.VideoState().IsVideo() || t.wasVideo(c),
		StartTime:    c.CreateTime(),
		ConnectTime:  c.ConnectTime(),
		EndTime:      c.DisconnectTime(),
		Cause:        c.DisconnectCause(),
		PreciseCause: c.PreciseCause(),
		UsageBytes:   t.ledger.CallBytes(c.ID()),
	}
	if err := t.cdrs.RecordCDR(cdr); err != nil {
		t.logger.Error("cdr write failed", "call_id", c.ID(), "error", err)
	}
}

// wasVideo reports whether a call carried video at any point,
// honoring the carrier policy that counts downgraded calls as video.
func (t *Tracker) wasVideo(c *call.Connection) bool {
	s := c.Session()
	if s == nil {
		return false
	}
	if s.WasVideoCall() {
		return t.carrier.Snapshot().TreatDowngradedVideoAsVideo || s.IsVideoCall()
	}
	return false
}

// countDisconnect bumps the metric counter for a cause.
func (t *Tracker) countDisconnect(dc cause.DisconnectCause) {
	t.regMu.Lock()
	t.disconnectCounts[dc]++
	t.regMu.Unlock()
}

func (t *Tracker) countHandover(kind string) {
	t.regMu.Lock()
	t.handoverCounts[kind]++
	t.regMu.Unlock()
}

// SetMute records the desired mute for the foreground call.
func (t *Tracker) SetMute(mute bool) {
	t.run(func() {
		t.desiredMute = mute
	})
}

// Muted reports the desired mute state.
func (t *Tracker) Muted() bool {
	t.regMu.RLock()
	defer t.regMu.RUnlock()
	return t.snapshot.Muted
}

// ReloadCarrierConfig re-reads the carrier policy file.
func (t *Tracker) ReloadCarrierConfig() error {
	var err error
	t.run(func() {
		err = t.carrier.Reload()
		if err == nil {
			t.logger.Info("carrier config reloaded")
		}
	})
	return err
}
