// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgq

import (
	"context"
	"math"
	"os"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Kernel owns a set of message queues and the services they depend on:
// clock, task lookup, event dispatch and the named queue facility.
//
// All methods are safe for concurrent use.
type Kernel struct {
	opts   Options
	log    logrus.FieldLogger
	reg    registry
	events *notifier

	namesMu sync.Mutex
	names   map[string]*nameRefs

	anon atomix.Int32

	sends       atomix.Uint64
	receives    atomix.Uint64
	timeouts    atomix.Uint64
	unavailable atomix.Uint64
	deleted     atomix.Uint64
}

// nameRefs counts the handles a kernel holds on one name.
type nameRefs struct {
	open   int
	unlink bool // some handle asked for DeleteOnLastClose
}

func newKernel(o Options) *Kernel {
	k := &Kernel{
		opts:  o,
		log:   o.logger,
		names: make(map[string]*nameRefs),
	}
	k.events = newNotifier(o.eventMailbox, o.eventRetries, o.sender, o.logger)
	return k
}

// Shutdown stops event dispatch after delivering pending events.
// Queues stay usable, but later events fail with ErrEventSendFailed.
func (k *Kernel) Shutdown() {
	k.events.close()
}

// Clock returns the kernel's tick source.
func (k *Kernel) Clock() Clock { return k.opts.clock }

// Tasks returns the kernel's task priority lookup.
func (k *Kernel) Tasks() Tasks { return k.opts.tasks }

// newCall resolves the caller and its deadline once, at entry.
func (k *Kernel) newCall(ctx context.Context, wait Ticks) *call {
	c := &call{noWait: wait == NoWait}
	if id, ok := TaskFromContext(ctx); ok {
		c.task = id
	} else {
		c.task = TaskID(k.anon.Add(-1))
	}
	c.prio = k.opts.tasks.Priority(c.task)
	if wait > 0 {
		c.deadline = time.Now().Add(Duration(k.opts.clock, wait))
	}
	return c
}

func (k *Kernel) record(err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrTimeout):
		k.timeouts.Add(1)
	case errors.Is(err, ErrUnavailable):
		k.unavailable.Add(1)
	case errors.Is(err, ErrDeleted):
		k.deleted.Add(1)
	}
}

// MaxCapacity is the largest queue capacity Create and Open accept.
const MaxCapacity = math.MaxUint32

// fits reports whether a queue of this shape stays within the per-queue
// memory cap.
func (k *Kernel) fits(capacity, slotSize int) bool {
	size, ok := ringBytes(capacity, slotSize)
	return ok && (k.opts.maxQueueBytes == 0 || size <= k.opts.maxQueueBytes)
}

// Create makes a local queue holding up to capacity messages of at most
// slotSize bytes. A zero capacity makes a rendezvous queue.
func (k *Kernel) Create(capacity, slotSize int, order Order) (Handle, error) {
	if capacity < 0 || uint64(capacity) > MaxCapacity {
		return 0, ErrInvalidCount
	}
	if slotSize < 0 {
		return 0, ErrInvalidLength
	}
	if order != Fifo && order != PriorityOrder {
		return 0, ErrInvalidArgument
	}
	if !k.fits(capacity, slotSize) {
		return 0, ErrOutOfMemory
	}

	q := newLocalQueue(capacity, slotSize, order, k.opts.clock.TickDuration())
	h := k.reg.add(queueRef{mode: Local, local: q})
	k.log.WithFields(logrus.Fields{
		"queue":    h,
		"capacity": capacity,
		"slot":     slotSize,
		"order":    order,
	}).Debug("queue created")
	return h, nil
}

// Delete destroys a local queue. Every task blocked on it returns
// ErrDeleted before Delete returns.
func (k *Kernel) Delete(h Handle) error {
	ref, ok := k.reg.lookup(h)
	if !ok {
		return ErrInvalidID
	}
	if ref.mode != Local {
		return errors.Wrap(ErrInvalidID, "named queues are closed, not deleted")
	}
	if err := ref.local.kill(); err != nil {
		return err
	}
	k.reg.remove(h)
	k.log.WithField("queue", h).Debug("queue deleted")
	return nil
}

// Open creates or attaches to a named queue.
//
// name must not be empty, capacity must be at least 1 and slotSize must
// not be negative. At least one of Create, Exclusive or DeleteOnLastClose
// must be requested.
func (k *Kernel) Open(name string, capacity, slotSize int, flags OpenFlag, perm os.FileMode, policy ClosePolicy) (Handle, error) {
	switch {
	case name == "":
		return 0, ErrInvalidArgument
	case capacity < 1 || uint64(capacity) > MaxCapacity:
		return 0, ErrInvalidCount
	case slotSize < 0:
		return 0, ErrInvalidLength
	case flags&(Create|Exclusive) == 0 && policy != DeleteOnLastClose:
		return 0, ErrInvalidArgument
	case policy != KeepOnLastClose && policy != DeleteOnLastClose:
		return 0, ErrInvalidArgument
	case !k.fits(capacity, slotSize):
		return 0, ErrOutOfMemory
	}

	b, err := k.opts.facility.Open(name, flags, perm, capacity, slotSize)
	if err != nil {
		return 0, err
	}
	q := &namedQueue{
		name:     name,
		capacity: capacity,
		slotSize: slotSize,
		backing:  b,
	}
	h := k.reg.add(queueRef{mode: Named, named: q})

	k.namesMu.Lock()
	r := k.names[name]
	if r == nil {
		r = &nameRefs{}
		k.names[name] = r
	}
	r.open++
	if policy == DeleteOnLastClose {
		r.unlink = true
	}
	k.namesMu.Unlock()

	k.log.WithFields(logrus.Fields{
		"queue":    h,
		"name":     name,
		"capacity": capacity,
		"slot":     slotSize,
	}).Debug("named queue opened")
	return h, nil
}

// Close detaches a named queue handle. Closing the last handle this kernel
// holds on the name also unlinks it if any of those handles was opened
// with DeleteOnLastClose.
//
// The handle is released even when the facility reports an error; that
// error is returned.
func (k *Kernel) Close(h Handle) error {
	ref, ok := k.reg.lookup(h)
	if !ok {
		return ErrInvalidID
	}
	if ref.mode != Named {
		return errors.Wrap(ErrInvalidID, "local queues are deleted, not closed")
	}
	q := ref.named
	closeErr := q.close()
	if errors.Is(closeErr, ErrInvalidID) {
		return closeErr
	}
	k.reg.remove(h)

	k.namesMu.Lock()
	r := k.names[q.name]
	r.open--
	unlink := r.open == 0 && r.unlink
	if r.open == 0 {
		delete(k.names, q.name)
	}
	k.namesMu.Unlock()

	log := k.log.WithFields(logrus.Fields{"queue": h, "name": q.name})
	if closeErr != nil {
		log.WithError(closeErr).Warn("named queue close failed")
	}
	var unlinkErr error
	if unlink {
		unlinkErr = k.opts.facility.Unlink(q.name)
		if unlinkErr != nil {
			log.WithError(unlinkErr).Warn("named queue unlink failed")
		}
	}
	log.Debug("named queue closed")
	if closeErr != nil {
		return closeErr
	}
	return unlinkErr
}

// Unlink removes name from the facility namespace. Open handles keep
// working until closed.
func (k *Kernel) Unlink(name string) error {
	if name == "" {
		return ErrInvalidArgument
	}
	if err := k.opts.facility.Unlink(name); err != nil {
		return err
	}
	k.log.WithField("name", name).Debug("named queue unlinked")
	return nil
}

// Send puts msg on the queue.
//
// With wait NoWait, a full queue fails with ErrUnavailable. With a
// positive wait, the call blocks up to that many ticks and fails with
// ErrTimeout. A negative wait blocks until space, deletion or ctx is done.
// Urgent messages are received before every queued normal message.
//
// If an event registration exists, Send posts the event after the message
// is queued; a failed post returns ErrEventSendFailed with the message
// still queued.
func (k *Kernel) Send(ctx context.Context, h Handle, msg []byte, wait Ticks, pri Priority) error {
	ref, ok := k.reg.lookup(h)
	if !ok {
		return ErrInvalidID
	}
	c := k.newCall(ctx, wait)

	var note eventNote
	var notify bool
	var err error
	switch ref.mode {
	case Local:
		note, notify, err = ref.local.send(ctx, c, msg, pri)
	case Named:
		note, notify, err = ref.named.send(ctx, c, msg, pri)
	}
	k.record(err)
	if err != nil {
		return err
	}
	k.sends.Add(1)
	if notify {
		return k.events.post(note)
	}
	return nil
}

// Receive takes the next message into buf and returns its length. buf
// must be at least the queue's slot size. wait has the same meaning as
// for Send.
func (k *Kernel) Receive(ctx context.Context, h Handle, buf []byte, wait Ticks) (int, error) {
	ref, ok := k.reg.lookup(h)
	if !ok {
		return 0, ErrInvalidID
	}
	c := k.newCall(ctx, wait)

	var n int
	var err error
	switch ref.mode {
	case Local:
		n, err = ref.local.receive(ctx, c, buf)
	case Named:
		n, err = ref.named.receive(ctx, c, buf)
	}
	k.record(err)
	if err != nil {
		return 0, err
	}
	k.receives.Add(1)
	return n, nil
}

// Depth returns the number of queued messages.
func (k *Kernel) Depth(h Handle) (int, error) {
	ref, ok := k.reg.lookup(h)
	if !ok {
		return 0, ErrInvalidID
	}
	if ref.mode == Named {
		return ref.named.depth()
	}
	return ref.local.depth()
}

// EventStart registers the calling task for events on the queue. The task
// must be carried by ctx; see [WithTask].
func (k *Kernel) EventStart(ctx context.Context, h Handle, mask uint32, opts EventOption) error {
	ref, ok := k.reg.lookup(h)
	if !ok {
		return ErrInvalidID
	}
	self, ok := TaskFromContext(ctx)
	if !ok {
		return errors.Wrap(ErrInvalidArgument, "event registration needs a task")
	}
	if mask == 0 {
		return ErrZeroEvents
	}

	var note eventNote
	var notify bool
	var err error
	if ref.mode == Named {
		note, notify, err = ref.named.eventStart(self, mask, opts)
	} else {
		note, notify, err = ref.local.eventStart(self, mask, opts)
	}
	if err != nil {
		return err
	}
	if notify {
		return k.events.post(note)
	}
	return nil
}

// EventStop drops the calling task's event registration.
func (k *Kernel) EventStop(ctx context.Context, h Handle) error {
	ref, ok := k.reg.lookup(h)
	if !ok {
		return ErrInvalidID
	}
	self, ok := TaskFromContext(ctx)
	if !ok {
		return ErrNotRegistered
	}
	if ref.mode == Named {
		return ref.named.eventStop(self)
	}
	return ref.local.eventStop(self)
}

// Queues returns the handles of all live local queues.
func (k *Kernel) Queues() []Handle {
	return k.reg.handles(Local)
}

// NamedQueues returns the handles of all open named queues.
func (k *Kernel) NamedQueues() []Handle {
	return k.reg.handles(Named)
}

// Stat returns a snapshot of one queue.
func (k *Kernel) Stat(h Handle) (QueueStats, error) {
	ref, ok := k.reg.lookup(h)
	if !ok {
		return QueueStats{}, ErrInvalidID
	}
	st := QueueStats{Handle: h}
	var err error
	if ref.mode == Named {
		err = ref.named.stat(&st)
	} else {
		err = ref.local.stat(&st)
	}
	if err != nil {
		return QueueStats{}, err
	}
	return st, nil
}

// Counters returns kernel-wide operation totals.
func (k *Kernel) Counters() Counters {
	return Counters{
		Sends:           k.sends.Load(),
		Receives:        k.receives.Load(),
		Timeouts:        k.timeouts.Load(),
		Unavailable:     k.unavailable.Load(),
		Deleted:         k.deleted.Load(),
		EventsDelivered: k.events.delivered.Load(),
		EventsFailed:    k.events.failed.Load(),
	}
}
