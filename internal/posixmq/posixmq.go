// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package posixmq is a thin wrapper over POSIX message queue system calls.
//
// Only Linux is supported; elsewhere Open returns [ErrUnsupported].
// Deadlines are absolute. A zero deadline blocks until the call completes
// or the context is done; blocking calls wake up every [PollInterval] to
// observe the context.
package posixmq

import (
	"errors"
	"strings"
	"time"
)

// PollInterval bounds a single kernel wait so context cancellation is
// noticed.
const PollInterval = 100 * time.Millisecond

// ErrUnsupported is returned on platforms without POSIX message queues.
var ErrUnsupported = errors.New("posixmq: not supported on this platform")

// Attr describes a queue's limits and current depth.
type Attr struct {
	MaxMsg  int
	MsgSize int
	CurMsgs int
}

// kernelName strips the leading slash; the system call takes the bare name.
func kernelName(name string) string {
	return strings.TrimPrefix(name, "/")
}

// step returns the wait deadline for one kernel call and whether it is the
// caller's own deadline.
func step(deadline time.Time) (time.Time, bool) {
	next := time.Now().Add(PollInterval)
	if !deadline.IsZero() && !deadline.After(next) {
		return deadline, true
	}
	return next, false
}
