package call

import (
	"fmt"
	"time"
)

// Role tags the four long-lived slots.
type Role int

const (
	RoleRinging Role = iota
	RoleForeground
	RoleBackground
	RoleHandover
)

func (r Role) String() string {
	switch r {
	case RoleRinging:
		return "ringing"
	case RoleForeground:
		return "foreground"
	case RoleBackground:
		return "background"
	case RoleHandover:
		return "handover"
	default:
		return "unknown"
	}
}

// Slot is a role-tagged container of connections. Slots are created
// once at tracker construction; their contents churn. Connection
// order is insertion order and doubles as display order.
type Slot struct {
	role  Role
	conns []*Connection
}

// NewSlot builds an empty slot for the given role.
func NewSlot(role Role) *Slot {
	return &Slot{role: role}
}

func (s *Slot) Role() Role { return s.role }

// State derives the slot state from its connections: the state of the
// first alive connection, Disconnected if only dead connections
// remain, Idle when empty.
func (s *Slot) State() State {
	if len(s.conns) == 0 {
		return Idle
	}
	for _, c := range s.conns {
		if c.state.IsAlive() {
			return c.state
		}
	}
	return Disconnected
}

// IsIdle reports whether the slot holds no alive connection.
func (s *Slot) IsIdle() bool {
	st := s.State()
	return st == Idle || st == Disconnected
}

// IsAlive reports whether the slot holds at least one alive
// connection.
func (s *Slot) IsAlive() bool { return s.State().IsAlive() }

// Len returns the number of connections, dead ones included.
func (s *Slot) Len() int { return len(s.conns) }

// Connections returns the connections in display order. The returned
// slice is a copy.
func (s *Slot) Connections() []*Connection {
	out := make([]*Connection, len(s.conns))
	copy(out, s.conns)
	return out
}

// First returns the first connection, nil when empty.
func (s *Slot) First() *Connection {
	if len(s.conns) == 0 {
		return nil
	}
	return s.conns[0]
}

// FirstAlive returns the first alive connection, nil if none.
func (s *Slot) FirstAlive() *Connection {
	for _, c := range s.conns {
		if c.state.IsAlive() {
			return c
		}
	}
	return nil
}

// Contains reports whether c is attached to this slot.
func (s *Slot) Contains(c *Connection) bool {
	return c != nil && c.slot == s
}

// Attach appends c to the slot and takes ownership. Attaching a
// connection that already has an owner is a programming error.
func (s *Slot) Attach(c *Connection) {
	if c.slot != nil {
		panic(fmt.Sprintf("call: connection %s already attached to %s slot", c.id, c.slot.role))
	}
	c.slot = s
	s.conns = append(s.conns, c)
}

// Detach removes c from the slot and clears its owner pointer.
// Detaching a connection that is not attached here is a no-op.
func (s *Slot) Detach(c *Connection) {
	if c == nil || c.slot != s {
		return
	}
	for i, cc := range s.conns {
		if cc == c {
			s.conns = append(s.conns[:i], s.conns[i+1:]...)
			break
		}
	}
	c.slot = nil
}

// SwitchWith exchanges the contents of two slots, reparenting every
// connection. Used for the foreground/background role swap and for
// SRVCC reparenting.
func (s *Slot) SwitchWith(other *Slot) {
	if other == nil || other == s {
		return
	}
	s.conns, other.conns = other.conns, s.conns
	for _, c := range s.conns {
		c.slot = s
	}
	for _, c := range other.conns {
		c.slot = other
	}
}

// TakeFrom moves every connection of other into this slot, preserving
// order. other is left empty.
func (s *Slot) TakeFrom(other *Slot) {
	if other == nil || other == s {
		return
	}
	for _, c := range other.conns {
		c.slot = s
		s.conns = append(s.conns, c)
	}
	other.conns = nil
}

// EarliestConnectTime returns the earliest non-zero connect time of
// the slot's connections, zero if none connected.
func (s *Slot) EarliestConnectTime() time.Time {
	var earliest time.Time
	for _, c := range s.conns {
		ct := c.connectTime
		if ct.IsZero() {
			continue
		}
		if earliest.IsZero() || ct.Before(earliest) {
			earliest = ct
		}
	}
	return earliest
}

// ClearDisconnected detaches and returns every disconnected
// connection.
func (s *Slot) ClearDisconnected() []*Connection {
	var removed []*Connection
	kept := s.conns[:0]
	for _, c := range s.conns {
		if c.state == Disconnected {
			c.slot = nil
			removed = append(removed, c)
		} else {
			kept = append(kept, c)
		}
	}
	s.conns = kept
	return removed
}
