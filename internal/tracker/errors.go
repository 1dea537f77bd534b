package tracker

import (
	"errors"
	"fmt"
)

// ErrCSFallback signals that a dial must be retried on the
// circuit-switched domain. Callers detect it with errors.Is.
var ErrCSFallback = errors.New("retry call on circuit-switched domain")

// CallStateError reports an operation attempted in a state that does
// not permit it. The tracker's own bookkeeping is untouched when one
// is returned.
type CallStateError struct {
	Op     string
	Reason string
	Err    error
}

func (e *CallStateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *CallStateError) Unwrap() error { return e.Err }

func stateErr(op, format string, args ...any) error {
	return &CallStateError{Op: op, Reason: fmt.Sprintf(format, args...)}
}
