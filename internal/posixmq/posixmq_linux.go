// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package posixmq

import (
	"context"
	"errors"
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// mqAttr mirrors struct mq_attr.
type mqAttr struct {
	flags    int
	maxMsg   int
	msgSize  int
	curMsgs  int
	reserved [4]int
}

// Queue is an open message queue descriptor.
type Queue struct {
	fd   int
	name string
	attr Attr
}

// Open opens name, creating it with the given limits when create is set.
// With exclusive, an existing name fails with EEXIST.
func Open(name string, create, exclusive bool, perm os.FileMode, maxMsg, msgSize int) (*Queue, error) {
	p, err := unix.BytePtrFromString(kernelName(name))
	if err != nil {
		return nil, err
	}
	flag := unix.O_RDWR | unix.O_CLOEXEC
	var attrp uintptr
	attr := mqAttr{maxMsg: maxMsg, msgSize: msgSize}
	if create {
		flag |= unix.O_CREAT
		if exclusive {
			flag |= unix.O_EXCL
		}
		attrp = uintptr(unsafe.Pointer(&attr))
	}

	var fd uintptr
	var errno unix.Errno
	for {
		fd, _, errno = unix.Syscall6(unix.SYS_MQ_OPEN,
			uintptr(unsafe.Pointer(p)),
			uintptr(flag),
			uintptr(perm.Perm()),
			attrp,
			0, 0)
		if errno != unix.EINTR {
			break
		}
	}
	if errno != 0 {
		return nil, &os.PathError{Op: "mq_open", Path: name, Err: errno}
	}

	q := &Queue{fd: int(fd), name: name}
	a, err := q.getattr()
	if err != nil {
		unix.Close(q.fd)
		return nil, err
	}
	q.attr = a
	return q, nil
}

// Unlink removes name from the namespace.
func Unlink(name string) error {
	p, err := unix.BytePtrFromString(kernelName(name))
	if err != nil {
		return err
	}
	_, _, errno := unix.Syscall(unix.SYS_MQ_UNLINK, uintptr(unsafe.Pointer(p)), 0, 0)
	if errno != 0 {
		return &os.PathError{Op: "mq_unlink", Path: name, Err: errno}
	}
	return nil
}

// Name returns the name the queue was opened with.
func (q *Queue) Name() string { return q.name }

// Attr returns the limits read at open.
func (q *Queue) Attr() Attr { return q.attr }

// Send writes msg with the given priority.
func (q *Queue) Send(ctx context.Context, msg []byte, prio uint, deadline time.Time) error {
	var zero byte
	ptr := unsafe.Pointer(&zero)
	if len(msg) > 0 {
		ptr = unsafe.Pointer(&msg[0])
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		at, final := step(deadline)
		ts, err := unix.TimeToTimespec(at)
		if err != nil {
			return err
		}
		_, _, errno := unix.Syscall6(unix.SYS_MQ_TIMEDSEND,
			uintptr(q.fd),
			uintptr(ptr),
			uintptr(len(msg)),
			uintptr(prio),
			uintptr(unsafe.Pointer(&ts)),
			0)
		switch {
		case errno == 0:
			return nil
		case errno == unix.EINTR:
		case errno == unix.ETIMEDOUT && !final:
		default:
			return os.NewSyscallError("mq_timedsend", errno)
		}
	}
}

// Receive reads the highest-priority message into buf and returns its
// length and priority. buf must hold at least Attr().MsgSize bytes.
func (q *Queue) Receive(ctx context.Context, buf []byte, deadline time.Time) (int, uint, error) {
	var zero byte
	ptr := unsafe.Pointer(&zero)
	if len(buf) > 0 {
		ptr = unsafe.Pointer(&buf[0])
	}
	var prio uint32
	for {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		at, final := step(deadline)
		ts, err := unix.TimeToTimespec(at)
		if err != nil {
			return 0, 0, err
		}
		n, _, errno := unix.Syscall6(unix.SYS_MQ_TIMEDRECEIVE,
			uintptr(q.fd),
			uintptr(ptr),
			uintptr(len(buf)),
			uintptr(unsafe.Pointer(&prio)),
			uintptr(unsafe.Pointer(&ts)),
			0)
		switch {
		case errno == 0:
			return int(n), uint(prio), nil
		case errno == unix.EINTR:
		case errno == unix.ETIMEDOUT && !final:
		default:
			return 0, 0, os.NewSyscallError("mq_timedreceive", errno)
		}
	}
}

// Depth returns the number of queued messages.
func (q *Queue) Depth() (int, error) {
	a, err := q.getattr()
	if err != nil {
		return 0, err
	}
	return a.CurMsgs, nil
}

// Close releases the descriptor.
func (q *Queue) Close() error {
	if err := unix.Close(q.fd); err != nil {
		return os.NewSyscallError("close", err)
	}
	return nil
}

func (q *Queue) getattr() (Attr, error) {
	var a mqAttr
	_, _, errno := unix.Syscall(unix.SYS_MQ_GETSETATTR, uintptr(q.fd), 0, uintptr(unsafe.Pointer(&a)))
	if errno != 0 {
		return Attr{}, os.NewSyscallError("mq_getsetattr", errno)
	}
	return Attr{MaxMsg: a.maxMsg, MsgSize: a.msgSize, CurMsgs: a.curMsgs}, nil
}

// IsTimeout reports whether err is a kernel wait expiry.
func IsTimeout(err error) bool {
	return errors.Is(err, unix.ETIMEDOUT)
}

// IsWouldBlock reports whether err is EAGAIN.
func IsWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN)
}

// IsUnsupported reports whether the running kernel lacks message queues or
// refuses access to them.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported) || errors.Is(err, unix.ENOSYS) ||
		errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM)
}
