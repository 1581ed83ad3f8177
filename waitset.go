// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgq

// waiter is one blocked call on one side of a queue.
//
// It records the task by id only. The hand-off fields are used by
// zero-capacity queues, where data moves between waiters directly.
type waiter struct {
	task TaskID
	prio int    // task priority at insertion, lower is more urgent
	seq  uint64 // arrival stamp
	pri  Priority

	msg  []byte // writer payload
	buf  []byte // reader destination
	n    int    // bytes handed to a reader
	done bool   // hand-off completed

	linked bool
}

// waitSet is an ordered set of waiters.
//
// Fifo appends. PriorityOrder keeps entries sorted by task priority with
// arrival order breaking ties, so the head is always the entry entitled to
// the next unit.
type waitSet struct {
	order Order
	list  []*waiter
	seq   uint64
}

func (s *waitSet) insert(w *waiter) {
	s.seq++
	w.seq = s.seq
	w.linked = true
	if s.order == Fifo {
		s.list = append(s.list, w)
		return
	}
	i := len(s.list)
	for i > 0 && s.list[i-1].prio > w.prio {
		i--
	}
	s.list = append(s.list, nil)
	copy(s.list[i+1:], s.list[i:])
	s.list[i] = w
}

// remove unlinks w. Removing an absent waiter is a no-op.
func (s *waitSet) remove(w *waiter) {
	if !w.linked {
		return
	}
	for i, e := range s.list {
		if e == w {
			copy(s.list[i:], s.list[i+1:])
			s.list[len(s.list)-1] = nil
			s.list = s.list[:len(s.list)-1]
			break
		}
	}
	w.linked = false
}

func (s *waitSet) empty() bool { return len(s.list) == 0 }

func (s *waitSet) len() int { return len(s.list) }

// head returns the first entry accepted by eligible, or nil.
// A nil eligible accepts every entry.
func (s *waitSet) head(eligible func(*waiter) bool) *waiter {
	for _, e := range s.list {
		if eligible == nil || eligible(e) {
			return e
		}
	}
	return nil
}

// resolveFor reports whether w is the entry entitled to the unit that just
// became available, and unlinks it if so.
func (s *waitSet) resolveFor(w *waiter, eligible func(*waiter) bool) bool {
	if s.head(eligible) != w {
		return false
	}
	s.remove(w)
	return true
}
