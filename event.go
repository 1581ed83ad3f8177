// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgq

import (
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// registration is a queue's single event subscriber.
type registration struct {
	task TaskID
	mask uint32
	opts EventOption
}

// eventSlot holds at most one registration. Guarded by the owning queue's lock.
type eventSlot struct {
	reg *registration
}

// start installs a registration for self. nonEmpty tells whether the queue
// holds messages right now; when it does and SendIfNotEmpty is set, the
// returned note must be delivered.
func (s *eventSlot) start(self TaskID, mask uint32, opts EventOption, nonEmpty bool) (eventNote, bool, error) {
	if s.reg != nil && s.reg.task != self && opts&AllowOverwrite == 0 {
		return eventNote{}, false, ErrAlreadyRegistered
	}
	s.reg = &registration{task: self, mask: mask, opts: opts}
	if opts&SendIfNotEmpty != 0 && nonEmpty {
		n, ok := s.fire()
		return n, ok, nil
	}
	return eventNote{}, false, nil
}

func (s *eventSlot) stop(self TaskID) error {
	if s.reg == nil || s.reg.task != self {
		return ErrNotRegistered
	}
	s.reg = nil
	return nil
}

// fire returns the note for one delivery. A SendOnce registration is
// consumed by it.
func (s *eventSlot) fire() (eventNote, bool) {
	r := s.reg
	if r == nil {
		return eventNote{}, false
	}
	if r.opts&SendOnce != 0 {
		s.reg = nil
	}
	return eventNote{task: r.task, mask: r.mask}, true
}

func (s *eventSlot) clear() { s.reg = nil }

// notifier delivers event notes on its own goroutine.
//
// Posting never blocks: notes go into a bounded mailbox and the dispatcher
// drains it into the EventSender. A sender reporting iox.ErrWouldBlock is
// retried with backoff up to retries times.
type notifier struct {
	box     *mailbox
	sender  EventSender
	log     logrus.FieldLogger
	retries int

	wake chan struct{}
	stop chan struct{}
	done chan struct{}

	mu        sync.RWMutex // held shared by post, exclusively to close
	closed    bool
	closeOnce sync.Once
	delivered atomix.Uint64
	failed    atomix.Uint64
}

func newNotifier(capacity, retries int, sender EventSender, log logrus.FieldLogger) *notifier {
	n := &notifier{
		box:     newMailbox(capacity),
		sender:  sender,
		log:     log,
		retries: retries,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go n.run()
	return n
}

// post queues a note for delivery.
func (n *notifier) post(note eventNote) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return statusErr(StatusEventSendFailed, errors.New("notifier closed"))
	}
	if err := n.box.post(note); err != nil {
		n.failed.Add(1)
		return statusErr(StatusEventSendFailed, errors.Wrapf(err, "event mailbox full (cap %d)", n.box.cap()))
	}
	select {
	case n.wake <- struct{}{}:
	default:
	}
	return nil
}

func (n *notifier) run() {
	defer close(n.done)
	for {
		select {
		case <-n.wake:
			n.flush()
		case <-n.stop:
			n.flush()
			return
		}
	}
}

func (n *notifier) flush() {
	for {
		note, err := n.box.take()
		if err != nil {
			return
		}
		n.deliver(note)
	}
}

func (n *notifier) deliver(note eventNote) {
	b := iox.Backoff{}
	for attempt := 0; ; attempt++ {
		err := n.sender.SendEvents(note.task, note.mask)
		if err == nil {
			n.delivered.Add(1)
			return
		}
		if iox.IsWouldBlock(err) && attempt < n.retries {
			b.Wait()
			continue
		}
		n.failed.Add(1)
		n.log.WithFields(logrus.Fields{
			"task":   note.task,
			"events": note.mask,
		}).WithError(err).Warn("event delivery failed")
		return
	}
}

// close stops accepting notes, delivers what is already queued and waits
// for the dispatcher to exit. Posts in flight finish before the final
// flush. Safe to call more than once.
func (n *notifier) close() {
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		n.box.drain()
		n.mu.Unlock()
		close(n.stop)
	})
	<-n.done
}

// discardSender drops events. It is the default EventSender.
type discardSender struct {
	log logrus.FieldLogger
}

func (d discardSender) SendEvents(task TaskID, events uint32) error {
	d.log.WithFields(logrus.Fields{"task": task, "events": events}).Debug("event dropped: no sender")
	return nil
}
