// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgq

import "math/bits"

// ring is a circular store of length-prefixed messages with two insertion
// ends.
//
// It holds capacity+1 slots of slotSize bytes in one contiguous block. The
// extra slot lets an urgent message in when the ring is full for normal
// traffic. Normal messages go in at tail, urgent ones at head-1; both are
// taken from head.
type ring struct {
	data     []byte
	lens     []int
	slotSize int
	slots    int
	head     int
	tail     int
	count    int
}

// lenWord is the per-slot cost of the length table.
const lenWord = bits.UintSize / 8

// ringBytes returns the memory footprint of a ring for capacity messages of
// slotSize bytes, payload plus length table, or false on overflow.
func ringBytes(capacity, slotSize int) (int, bool) {
	if capacity < 0 || slotSize < 0 || capacity == maxInt || slotSize > maxInt-lenWord {
		return 0, false
	}
	hi, lo := bits.Mul64(uint64(capacity)+1, uint64(slotSize)+lenWord)
	if hi != 0 || lo > uint64(maxInt) {
		return 0, false
	}
	return int(lo), true
}

const maxInt = int(^uint(0) >> 1)

// newRing allocates the ring. The caller has checked ringBytes.
func newRing(capacity, slotSize int) ring {
	return ring{
		data:     make([]byte, (capacity+1)*slotSize),
		lens:     make([]int, capacity+1),
		slotSize: slotSize,
		slots:    capacity + 1,
	}
}

func (r *ring) slot(i int) []byte {
	off := i * r.slotSize
	return r.data[off : off+r.slotSize : off+r.slotSize]
}

func (r *ring) pushBack(msg []byte) {
	r.lens[r.tail] = copy(r.slot(r.tail), msg)
	r.tail++
	if r.tail == r.slots {
		r.tail = 0
	}
	r.count++
}

func (r *ring) pushFront(msg []byte) {
	if r.head == 0 {
		r.head = r.slots
	}
	r.head--
	r.lens[r.head] = copy(r.slot(r.head), msg)
	r.count++
}

// pop copies the head message into buf, zeroes the slot and returns the
// message length. The ring must not be empty.
func (r *ring) pop(buf []byte) int {
	s := r.slot(r.head)
	n := copy(buf, s[:r.lens[r.head]])
	clear(s[:r.lens[r.head]])
	r.lens[r.head] = 0
	r.head++
	if r.head == r.slots {
		r.head = 0
	}
	r.count--
	return n
}

func (r *ring) len() int { return r.count }

// release drops the storage.
func (r *ring) release() {
	r.data = nil
	r.lens = nil
	r.head, r.tail, r.count = 0, 0, 0
}
