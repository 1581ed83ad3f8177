// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgq

import (
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/spin"
)

// eventNote is one pending event delivery.
type eventNote struct {
	task TaskID
	mask uint32
}

// mailbox is an FAA-based multi-producer single-consumer bounded queue of
// event notes.
//
// Senders post from any goroutine after dropping their queue lock; the
// kernel dispatcher is the only consumer. A producer claims a position by
// CAS on tail only after seeing room for it, so every claimed slot is free
// and gets filled. Slots are laid out 2n deep for capacity n so a consumed
// slot's cycle never reads as ready.
type mailbox struct {
	_        pad
	head     atomix.Uint64 // consumer index
	_        pad
	tail     atomix.Uint64 // producer index (FAA)
	_        pad
	draining atomix.Bool
	_        pad
	buffer   []mailboxSlot
	capacity uint64
	size     uint64
	mask     uint64
}

type mailboxSlot struct {
	cycle atomix.Uint64
	note  eventNote
	_     padShort
}

// newMailbox rounds capacity up to the next power of 2, minimum 2.
func newMailbox(capacity int) *mailbox {
	if capacity < 2 {
		capacity = 2
	}
	n := uint64(roundToPow2(capacity))
	size := n * 2

	m := &mailbox{
		buffer:   make([]mailboxSlot, size),
		capacity: n,
		size:     size,
		mask:     size - 1,
	}
	for i := uint64(0); i < size; i++ {
		m.buffer[i].cycle.StoreRelaxed(i / n)
	}
	return m
}

// drain refuses further posts. Notes already posted stay dequeueable.
func (m *mailbox) drain() {
	m.draining.StoreRelease(true)
}

// post appends a note. Safe for concurrent producers.
// Returns iox.ErrWouldBlock when the mailbox is full or draining.
func (m *mailbox) post(n eventNote) error {
	if m.draining.LoadAcquire() {
		return iox.ErrWouldBlock
	}
	sw := spin.Wait{}
	for {
		tail := m.tail.LoadAcquire()
		head := m.head.LoadAcquire()
		if tail >= head+m.capacity {
			return iox.ErrWouldBlock
		}
		if !m.tail.CompareAndSwapAcqRel(tail, tail+1) {
			sw.Once()
			continue
		}

		// tail < head+capacity: the consumer has released this slot.
		slot := &m.buffer[tail&m.mask]
		slot.note = n
		slot.cycle.StoreRelease(tail/m.capacity + 1)
		return nil
	}
}

// take removes the oldest note. Single consumer only.
// Returns iox.ErrWouldBlock when empty.
func (m *mailbox) take() (eventNote, error) {
	head := m.head.LoadRelaxed()
	slot := &m.buffer[head&m.mask]

	if slot.cycle.LoadAcquire() != head/m.capacity+1 {
		return eventNote{}, iox.ErrWouldBlock
	}

	n := slot.note
	slot.note = eventNote{}
	slot.cycle.StoreRelease((head + m.size) / m.capacity)
	m.head.StoreRelease(head + 1)
	return n, nil
}

func (m *mailbox) cap() int { return int(m.capacity) }

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// pad separates hot atomics onto their own cache lines.
type pad [64]byte

// padShort fills a mailbox slot up to a cache line.
type padShort [64 - 8 - unsafe.Sizeof(eventNote{})]byte
