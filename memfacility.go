// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgq

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// MemoryFacility is an in-process [Facility].
//
// It keeps POSIX message queue naming rules: an unlinked name disappears
// at once, and its queue lives on until the last backing closes. Queues
// are served by the same engine as local queues, in Fifo order.
type MemoryFacility struct {
	mu    sync.Mutex
	tick  time.Duration
	names map[string]*memQueue
}

type memQueue struct {
	q        *localQueue
	refs     int
	unlinked bool
}

// NewMemoryFacility returns an empty in-process facility.
func NewMemoryFacility() *MemoryFacility {
	return &MemoryFacility{
		tick:  10 * time.Millisecond,
		names: make(map[string]*memQueue),
	}
}

// Open implements [Facility].
func (f *MemoryFacility) Open(name string, flags OpenFlag, perm os.FileMode, capacity, slotSize int) (Backing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if m, ok := f.names[name]; ok {
		if flags&Create != 0 && flags&Exclusive != 0 {
			return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrExist}
		}
		m.refs++
		return &memBacking{f: f, m: m}, nil
	}
	if flags&Create == 0 {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
	}
	if _, ok := ringBytes(capacity, slotSize); !ok || capacity < 1 {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrInvalid}
	}
	m := &memQueue{q: newLocalQueue(capacity, slotSize, Fifo, f.tick), refs: 1}
	f.names[name] = m
	return &memBacking{f: f, m: m}, nil
}

// Unlink implements [Facility].
func (f *MemoryFacility) Unlink(name string) error {
	f.mu.Lock()
	m, ok := f.names[name]
	if !ok {
		f.mu.Unlock()
		return &os.PathError{Op: "unlink", Path: name, Err: os.ErrNotExist}
	}
	delete(f.names, name)
	m.unlinked = true
	destroy := m.refs == 0
	f.mu.Unlock()

	if destroy {
		return m.q.kill()
	}
	return nil
}

// Names returns the names currently linked.
func (f *MemoryFacility) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.names))
	for name := range f.names {
		out = append(out, name)
	}
	return out
}

type memBacking struct {
	f      *MemoryFacility
	m      *memQueue
	closed bool // guarded by f.mu
}

func memCall(deadline time.Time) *call {
	c := &call{task: -1, prio: DefaultTaskPriority, deadline: deadline}
	c.noWait = !deadline.IsZero() && !time.Now().Before(deadline)
	return c
}

func (b *memBacking) Send(ctx context.Context, msg []byte, prio uint, deadline time.Time) error {
	pri := Normal
	if prio > 0 {
		pri = Urgent
	}
	_, _, err := b.m.q.send(ctx, memCall(deadline), msg, pri)
	return err
}

func (b *memBacking) Receive(ctx context.Context, buf []byte, deadline time.Time) (int, error) {
	return b.m.q.receive(ctx, memCall(deadline), buf)
}

func (b *memBacking) Depth() (int, error) {
	return b.m.q.depth()
}

// Close drops this reference. The queue is destroyed when the name was
// unlinked and no reference remains.
func (b *memBacking) Close() error {
	b.f.mu.Lock()
	if b.closed {
		b.f.mu.Unlock()
		return errors.Wrap(os.ErrClosed, "memory facility")
	}
	b.closed = true
	b.m.refs--
	destroy := b.m.refs == 0 && b.m.unlinked
	b.f.mu.Unlock()

	if destroy {
		return b.m.q.kill()
	}
	return nil
}
