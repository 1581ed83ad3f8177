// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgq

import (
	"context"
	"os"
	"time"

	"code.hybscloud.com/msgq/internal/posixmq"
	"github.com/pkg/errors"
)

// PosixFacility is the operating system's POSIX message queue namespace.
// Names are prefixed with prefix, normally "/".
type PosixFacility struct {
	prefix string
}

// NewPosixFacility returns a facility mapping name to prefix+name.
func NewPosixFacility(prefix string) *PosixFacility {
	return &PosixFacility{prefix: prefix}
}

func (f *PosixFacility) path(name string) string { return f.prefix + name }

// Open implements [Facility].
func (f *PosixFacility) Open(name string, flags OpenFlag, perm os.FileMode, capacity, slotSize int) (Backing, error) {
	q, err := posixmq.Open(f.path(name), flags&Create != 0, flags&Exclusive != 0, perm, capacity, slotSize)
	if err != nil {
		return nil, errors.Wrapf(err, "open named queue %q", name)
	}
	return &posixBacking{q: q}, nil
}

// Unlink implements [Facility].
func (f *PosixFacility) Unlink(name string) error {
	if err := posixmq.Unlink(f.path(name)); err != nil {
		return errors.Wrapf(err, "unlink named queue %q", name)
	}
	return nil
}

type posixBacking struct {
	q *posixmq.Queue
}

// posixErr sorts an errno into the queue taxonomy, keeping the errno
// reachable through Unwrap.
func posixErr(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case posixmq.IsTimeout(err):
		return statusErr(StatusTimeout, err)
	case posixmq.IsWouldBlock(err):
		return statusErr(StatusUnavailable, err)
	default:
		return errors.Wrapf(err, "%s named queue", op)
	}
}

func (b *posixBacking) Send(ctx context.Context, msg []byte, prio uint, deadline time.Time) error {
	return posixErr(b.q.Send(ctx, msg, prio, deadline), "send")
}

func (b *posixBacking) Receive(ctx context.Context, buf []byte, deadline time.Time) (int, error) {
	n, _, err := b.q.Receive(ctx, buf, deadline)
	if err != nil {
		return 0, posixErr(err, "receive")
	}
	return n, nil
}

func (b *posixBacking) Depth() (int, error) {
	n, err := b.q.Depth()
	return n, posixErr(err, "depth")
}

func (b *posixBacking) Close() error {
	return posixErr(b.q.Close(), "close")
}
