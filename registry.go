// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgq

import "sync"

// queueRef is a registry record: exactly one of local and named is set.
type queueRef struct {
	mode  Mode
	local *localQueue
	named *namedQueue
}

type slot struct {
	gen  uint32
	live bool
	ref  queueRef
}

// registry is an arena of queue records addressed by Handle.
//
// Freed slots are reused through a free list; each reuse bumps the slot
// generation so stale handles fail lookup. The lock covers membership only
// and is never held while a queue lock is taken.
type registry struct {
	mu    sync.Mutex
	slots []slot
	free  []uint32
	live  int
}

func (r *registry) add(ref queueRef) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	var i uint32
	if n := len(r.free); n > 0 {
		i = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, slot{})
		i = uint32(len(r.slots) - 1)
	}
	s := &r.slots[i]
	s.live = true
	s.ref = ref
	r.live++
	return makeHandle(i, s.gen)
}

func (r *registry) lookup(h Handle) (queueRef, bool) {
	if h == 0 {
		return queueRef{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	i := h.index()
	if int(i) >= len(r.slots) {
		return queueRef{}, false
	}
	s := &r.slots[i]
	if !s.live || s.gen != h.generation() {
		return queueRef{}, false
	}
	return s.ref, true
}

// remove frees the slot of h. It reports false if h was not live.
func (r *registry) remove(h Handle) bool {
	if h == 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	i := h.index()
	if int(i) >= len(r.slots) {
		return false
	}
	s := &r.slots[i]
	if !s.live || s.gen != h.generation() {
		return false
	}
	s.live = false
	s.ref = queueRef{}
	s.gen++
	r.free = append(r.free, i)
	r.live--
	return true
}

// handles returns the live handles of the given mode in slot order.
func (r *registry) handles(mode Mode) []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Handle, 0, r.live)
	for i := range r.slots {
		s := &r.slots[i]
		if s.live && s.ref.mode == mode {
			out = append(out, makeHandle(uint32(i), s.gen))
		}
	}
	return out
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}
