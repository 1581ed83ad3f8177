// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package posixmq

import (
	"context"
	"errors"
	"os"
	"time"
)

// Queue is an open message queue descriptor.
type Queue struct{}

// Open always fails with ErrUnsupported.
func Open(name string, create, exclusive bool, perm os.FileMode, maxMsg, msgSize int) (*Queue, error) {
	return nil, ErrUnsupported
}

// Unlink always fails with ErrUnsupported.
func Unlink(name string) error { return ErrUnsupported }

func (q *Queue) Name() string { return "" }

func (q *Queue) Attr() Attr { return Attr{} }

func (q *Queue) Send(ctx context.Context, msg []byte, prio uint, deadline time.Time) error {
	return ErrUnsupported
}

func (q *Queue) Receive(ctx context.Context, buf []byte, deadline time.Time) (int, uint, error) {
	return 0, 0, ErrUnsupported
}

func (q *Queue) Depth() (int, error) { return 0, ErrUnsupported }

func (q *Queue) Close() error { return ErrUnsupported }

func IsTimeout(err error) bool { return false }

func IsWouldBlock(err error) bool { return false }

func IsUnsupported(err error) bool { return errors.Is(err, ErrUnsupported) }
