// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgq

import (
	"errors"
	"sync"
	"testing"

	"code.hybscloud.com/iox"
)

func TestMailboxBasic(t *testing.T) {
	m := newMailbox(3)
	if m.cap() != 4 {
		t.Fatalf("cap: got %d, want 4", m.cap())
	}
	for i := range 4 {
		if err := m.post(eventNote{task: TaskID(i), mask: uint32(i)}); err != nil {
			t.Fatalf("post(%d): %v", i, err)
		}
	}
	if err := m.post(eventNote{task: 9}); !errors.Is(err, iox.ErrWouldBlock) {
		t.Fatalf("post on full: got %v, want ErrWouldBlock", err)
	}
	for i := range 4 {
		n, err := m.take()
		if err != nil {
			t.Fatalf("take(%d): %v", i, err)
		}
		if n.task != TaskID(i) || n.mask != uint32(i) {
			t.Fatalf("take(%d): got %+v", i, n)
		}
	}
	if _, err := m.take(); !errors.Is(err, iox.ErrWouldBlock) {
		t.Fatalf("take on empty: got %v, want ErrWouldBlock", err)
	}
}

func TestMailboxDrain(t *testing.T) {
	m := newMailbox(2)
	_ = m.post(eventNote{task: 1})
	m.drain()
	if err := m.post(eventNote{task: 2}); !errors.Is(err, iox.ErrWouldBlock) {
		t.Fatalf("post after drain: got %v, want ErrWouldBlock", err)
	}
	if n, err := m.take(); err != nil || n.task != 1 {
		t.Fatalf("take after drain: got (%+v, %v)", n, err)
	}
}

func TestMailboxConcurrentProducers(t *testing.T) {
	if RaceEnabled {
		t.Skip("skip: atomix ordering is invisible to the race detector")
	}
	const producers, each = 4, 1000
	m := newMailbox(64)

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			b := iox.Backoff{}
			for i := range each {
				for m.post(eventNote{task: TaskID(p), mask: uint32(i)}) != nil {
					b.Wait()
				}
				b.Reset()
			}
		}(p)
	}

	next := make([]uint32, producers)
	for got := 0; got < producers*each; {
		n, err := m.take()
		if err != nil {
			continue
		}
		if n.mask != next[n.task] {
			t.Fatalf("producer %d: got %d, want %d", n.task, n.mask, next[n.task])
		}
		next[n.task]++
		got++
	}
	wg.Wait()
}

// TestMailboxRacingFullCheck posts from more producers than the mailbox
// holds, all at once. Losers must not leave a claimed slot behind that
// would stall the consumer.
func TestMailboxRacingFullCheck(t *testing.T) {
	if RaceEnabled {
		t.Skip("skip: atomix ordering is invisible to the race detector")
	}
	const producers = 64
	m := newMailbox(4)

	for round := range 3 {
		var wg sync.WaitGroup
		var mu sync.Mutex
		posted := 0
		start := make(chan struct{})
		for p := range producers {
			wg.Add(1)
			go func(p int) {
				defer wg.Done()
				<-start
				if m.post(eventNote{task: TaskID(p)}) == nil {
					mu.Lock()
					posted++
					mu.Unlock()
				}
			}(p)
		}
		close(start)
		wg.Wait()

		if posted != m.cap() {
			t.Fatalf("round %d: posted %d, want %d", round, posted, m.cap())
		}
		for i := range posted {
			if _, err := m.take(); err != nil {
				t.Fatalf("round %d: take(%d): %v", round, i, err)
			}
		}
		if _, err := m.take(); !errors.Is(err, iox.ErrWouldBlock) {
			t.Fatalf("round %d: take on empty: got %v, want ErrWouldBlock", round, err)
		}
	}
}
