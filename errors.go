// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgq

import (
	"errors"

	"code.hybscloud.com/iox"
)

// Status classifies the outcome of a queue operation.
type Status uint8

const (
	StatusOK Status = iota
	StatusInvalidID
	StatusInvalidLength
	StatusInvalidCount
	StatusUnavailable
	StatusTimeout
	StatusDeleted
	StatusInvalidArgument
	StatusAlreadyRegistered
	StatusNotRegistered
	StatusZeroEvents
	StatusEventSendFailed
	StatusOutOfMemory
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInvalidID:
		return "invalid queue id"
	case StatusInvalidLength:
		return "invalid message length"
	case StatusInvalidCount:
		return "invalid message count"
	case StatusUnavailable:
		return "queue unavailable"
	case StatusTimeout:
		return "timed out"
	case StatusDeleted:
		return "queue deleted"
	case StatusInvalidArgument:
		return "invalid argument"
	case StatusAlreadyRegistered:
		return "events already registered"
	case StatusNotRegistered:
		return "task not registered for events"
	case StatusZeroEvents:
		return "zero events"
	case StatusEventSendFailed:
		return "event send failed"
	case StatusOutOfMemory:
		return "not enough memory"
	default:
		return "unknown"
	}
}

// Error is a status-coded queue error.
//
// Two errors match under [errors.Is] when their statuses are equal, so a
// wrapped facility error still matches the sentinel of its class:
//
//	_, err := k.Receive(ctx, h, buf, 10)
//	if errors.Is(err, msgq.ErrTimeout) {
//	    // deadline elapsed
//	}
type Error struct {
	Status Status
	Err    error // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil && !isSemantic(e.Err) {
		return "msgq: " + e.Status.String() + ": " + e.Err.Error()
	}
	return "msgq: " + e.Status.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same status.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Status == e.Status
}

var (
	// ErrInvalidID indicates the handle does not name a live queue.
	ErrInvalidID = &Error{Status: StatusInvalidID}

	// ErrInvalidLength indicates a message longer than the slot size, or a
	// receive buffer shorter than it.
	ErrInvalidLength = &Error{Status: StatusInvalidLength}

	// ErrInvalidCount indicates a bad capacity at creation.
	ErrInvalidCount = &Error{Status: StatusInvalidCount}

	// ErrUnavailable indicates the operation would block and NoWait was
	// requested.
	//
	// It unwraps to [iox.ErrWouldBlock]. A full or empty queue under NoWait
	// is a control flow signal, not a failure.
	ErrUnavailable = &Error{Status: StatusUnavailable, Err: iox.ErrWouldBlock}

	// ErrTimeout indicates the deadline elapsed while blocked.
	ErrTimeout = &Error{Status: StatusTimeout}

	// ErrDeleted indicates the queue was deleted while the caller was blocked.
	ErrDeleted = &Error{Status: StatusDeleted}

	// ErrInvalidArgument indicates malformed create or open parameters.
	ErrInvalidArgument = &Error{Status: StatusInvalidArgument}

	// ErrAlreadyRegistered indicates another task owns the event registration.
	ErrAlreadyRegistered = &Error{Status: StatusAlreadyRegistered}

	// ErrNotRegistered indicates the caller does not own the event registration.
	ErrNotRegistered = &Error{Status: StatusNotRegistered}

	// ErrZeroEvents indicates an empty event mask.
	ErrZeroEvents = &Error{Status: StatusZeroEvents}

	// ErrEventSendFailed indicates an event could not be dispatched.
	// The message that triggered it stays queued.
	ErrEventSendFailed = &Error{Status: StatusEventSendFailed}

	// ErrOutOfMemory indicates queue storage could not be allocated.
	ErrOutOfMemory = &Error{Status: StatusOutOfMemory}
)

// statusErr returns an error of the given class wrapping cause.
func statusErr(s Status, cause error) error {
	return &Error{Status: s, Err: cause}
}

// StatusOf returns the status carried by err.
// It returns StatusOK for nil and false for errors outside the taxonomy.
func StatusOf(err error) (Status, bool) {
	if err == nil {
		return StatusOK, true
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Status, true
	}
	return 0, false
}

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Returns true for nil or ErrUnavailable.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}

func isSemantic(err error) bool {
	return errors.Is(err, iox.ErrWouldBlock)
}
