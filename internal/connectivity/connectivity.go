// Package connectivity exposes WIFI availability changes to the
// tracker. The watch is held only while a video call is looking for a
// handover opportunity.
package connectivity

import "sync"

// Callback receives WIFI availability changes.
type Callback func(wifiAvailable bool)

// Monitor registers at most one availability callback at a time.
type Monitor interface {
	Register(cb Callback)
	Unregister()
}

// Manual is a Monitor fed by explicit SetWifiAvailable calls. It backs
// tests and the loopback provider; a platform integration would wrap
// netlink or similar behind the same interface.
type Manual struct {
	mu        sync.Mutex
	cb        Callback
	available bool
}

func NewManual() *Manual { return &Manual{} }

func (m *Manual) Register(cb Callback) {
	m.mu.Lock()
	m.cb = cb
	m.mu.Unlock()
}

func (m *Manual) Unregister() {
	m.mu.Lock()
	m.cb = nil
	m.mu.Unlock()
}

// Registered reports whether a callback is currently held.
func (m *Manual) Registered() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cb != nil
}

// SetWifiAvailable records availability and notifies the registered
// callback on change.
func (m *Manual) SetWifiAvailable(available bool) {
	m.mu.Lock()
	changed := m.available != available
	m.available = available
	cb := m.cb
	m.mu.Unlock()
	if changed && cb != nil {
		cb(available)
	}
}
