// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgq_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"

	"code.hybscloud.com/msgq"
)

// =============================================================================
// Event Registration and Delivery
// =============================================================================

type delivery struct {
	task msgq.TaskID
	mask uint32
}

// recorder is an EventSender that forwards deliveries to a channel.
func recorder() (msgq.EventSender, <-chan delivery) {
	ch := make(chan delivery, 64)
	return msgq.EventSenderFunc(func(task msgq.TaskID, events uint32) error {
		ch <- delivery{task, events}
		return nil
	}), ch
}

func expectDelivery(t *testing.T, ch <-chan delivery, want delivery) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("delivery: got %+v, want %+v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no delivery, want %+v", want)
	}
}

func expectNoDelivery(t *testing.T, ch <-chan delivery) {
	t.Helper()
	select {
	case got := <-ch:
		t.Fatalf("unexpected delivery %+v", got)
	case <-time.After(5 * tick):
	}
}

// TestEventOnSend checks one delivery per successful send.
func TestEventOnSend(t *testing.T) {
	sender, ch := recorder()
	k := newKernel(t, msgq.New().EventSender(sender))
	h, _ := k.Create(4, 4, msgq.Fifo)
	task := msgq.WithTask(context.Background(), 7)

	if err := k.EventStart(task, h, 0x30, 0); err != nil {
		t.Fatalf("EventStart: %v", err)
	}
	for range 2 {
		if err := k.Send(context.Background(), h, []byte("m"), msgq.NoWait, msgq.Normal); err != nil {
			t.Fatalf("Send: %v", err)
		}
		expectDelivery(t, ch, delivery{7, 0x30})
	}

	_ = k.Send(context.Background(), h, make([]byte, 5), msgq.NoWait, msgq.Normal)
	expectNoDelivery(t, ch)

	if err := k.EventStop(task, h); err != nil {
		t.Fatalf("EventStop: %v", err)
	}
	_ = k.Send(context.Background(), h, []byte("m"), msgq.NoWait, msgq.Normal)
	expectNoDelivery(t, ch)
}

// TestEventSendOnce checks a SendOnce registration fires a single time.
func TestEventSendOnce(t *testing.T) {
	sender, ch := recorder()
	k := newKernel(t, msgq.New().EventSender(sender))
	h, _ := k.Create(4, 4, msgq.Fifo)
	task := msgq.WithTask(context.Background(), 3)

	if err := k.EventStart(task, h, 0x1, msgq.SendOnce); err != nil {
		t.Fatalf("EventStart: %v", err)
	}
	_ = k.Send(context.Background(), h, []byte("a"), msgq.NoWait, msgq.Normal)
	_ = k.Send(context.Background(), h, []byte("b"), msgq.NoWait, msgq.Normal)
	expectDelivery(t, ch, delivery{3, 0x1})
	expectNoDelivery(t, ch)

	if err := k.EventStop(task, h); !errors.Is(err, msgq.ErrNotRegistered) {
		t.Fatalf("EventStop after SendOnce: got %v, want ErrNotRegistered", err)
	}
}

// TestEventSendIfNotEmpty checks the immediate delivery at registration.
func TestEventSendIfNotEmpty(t *testing.T) {
	sender, ch := recorder()
	k := newKernel(t, msgq.New().EventSender(sender))
	h, _ := k.Create(4, 4, msgq.Fifo)
	task := msgq.WithTask(context.Background(), 5)

	if err := k.EventStart(task, h, 0x2, msgq.SendIfNotEmpty); err != nil {
		t.Fatalf("EventStart on empty: %v", err)
	}
	expectNoDelivery(t, ch)

	_ = k.Send(context.Background(), h, []byte("a"), msgq.NoWait, msgq.Normal)
	expectDelivery(t, ch, delivery{5, 0x2})

	if err := k.EventStart(task, h, 0x4, msgq.SendIfNotEmpty|msgq.SendOnce); err != nil {
		t.Fatalf("EventStart on non-empty: %v", err)
	}
	expectDelivery(t, ch, delivery{5, 0x4})

	_ = k.Send(context.Background(), h, []byte("b"), msgq.NoWait, msgq.Normal)
	expectNoDelivery(t, ch)
}

// TestEventRegistrationRules checks ownership errors.
func TestEventRegistrationRules(t *testing.T) {
	k := newKernel(t, nil)
	h, _ := k.Create(1, 1, msgq.Fifo)
	bg := context.Background()
	a := msgq.WithTask(bg, 1)
	b := msgq.WithTask(bg, 2)

	if err := k.EventStart(a, h, 0, 0); !errors.Is(err, msgq.ErrZeroEvents) {
		t.Fatalf("EventStart(mask 0): got %v, want ErrZeroEvents", err)
	}
	if err := k.EventStart(bg, h, 1, 0); !errors.Is(err, msgq.ErrInvalidArgument) {
		t.Fatalf("EventStart without task: got %v, want ErrInvalidArgument", err)
	}
	if err := k.EventStop(a, h); !errors.Is(err, msgq.ErrNotRegistered) {
		t.Fatalf("EventStop unregistered: got %v, want ErrNotRegistered", err)
	}
	if err := k.EventStart(a, h, 1, 0); err != nil {
		t.Fatalf("EventStart(a): %v", err)
	}
	if err := k.EventStart(a, h, 2, 0); err != nil {
		t.Fatalf("EventStart(a) again: %v", err)
	}
	if err := k.EventStart(b, h, 1, 0); !errors.Is(err, msgq.ErrAlreadyRegistered) {
		t.Fatalf("EventStart(b): got %v, want ErrAlreadyRegistered", err)
	}
	if err := k.EventStop(b, h); !errors.Is(err, msgq.ErrNotRegistered) {
		t.Fatalf("EventStop(b): got %v, want ErrNotRegistered", err)
	}
	if err := k.EventStart(b, h, 1, msgq.AllowOverwrite); err != nil {
		t.Fatalf("EventStart(b, AllowOverwrite): %v", err)
	}
	if err := k.EventStop(a, h); !errors.Is(err, msgq.ErrNotRegistered) {
		t.Fatalf("EventStop(a) after overwrite: got %v, want ErrNotRegistered", err)
	}
	if err := k.EventStop(b, h); err != nil {
		t.Fatalf("EventStop(b): %v", err)
	}
}

// TestEventAfterShutdown checks a send still queues its message when the
// event cannot be posted.
func TestEventAfterShutdown(t *testing.T) {
	k := newKernel(t, nil)
	h, _ := k.Create(2, 1, msgq.Fifo)
	if err := k.EventStart(msgq.WithTask(context.Background(), 1), h, 1, 0); err != nil {
		t.Fatalf("EventStart: %v", err)
	}
	k.Shutdown()

	err := k.Send(context.Background(), h, []byte{1}, msgq.NoWait, msgq.Normal)
	if !errors.Is(err, msgq.ErrEventSendFailed) {
		t.Fatalf("Send: got %v, want ErrEventSendFailed", err)
	}
	if d, _ := k.Depth(h); d != 1 {
		t.Fatalf("Depth: got %d, want 1", d)
	}
}

// TestEventRetry checks a sender that would block is retried until it
// accepts the event.
func TestEventRetry(t *testing.T) {
	var calls atomix.Int64
	done := make(chan struct{})
	sender := msgq.EventSenderFunc(func(task msgq.TaskID, events uint32) error {
		if calls.Add(1) < 3 {
			return iox.ErrWouldBlock
		}
		close(done)
		return nil
	})
	k := newKernel(t, msgq.New().EventSender(sender).EventRetries(5))
	h, _ := k.Create(1, 1, msgq.Fifo)
	_ = k.EventStart(msgq.WithTask(context.Background(), 1), h, 1, 0)
	if err := k.Send(context.Background(), h, []byte{1}, msgq.NoWait, msgq.Normal); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
	waitFor(t, "delivery count", func() bool { return k.Counters().EventsDelivered == 1 })
	if got := calls.Load(); got != 3 {
		t.Fatalf("SendEvents calls: got %d, want 3", got)
	}
}

// TestEventRendezvous checks a rendezvous send fires the event once the
// hand-off completes.
func TestEventRendezvous(t *testing.T) {
	sender, ch := recorder()
	k := newKernel(t, msgq.New().EventSender(sender))
	h, _ := k.Create(0, 4, msgq.Fifo)
	_ = k.EventStart(msgq.WithTask(context.Background(), 9), h, 0x8, 0)

	r := receiveAsync(k, context.Background(), h, msgq.Forever)
	waitBlocked(t, k, h, 1, 0)
	if err := k.Send(context.Background(), h, []byte("x"), msgq.NoWait, msgq.Normal); err != nil {
		t.Fatalf("Send: %v", err)
	}
	recv(t, r)
	expectDelivery(t, ch, delivery{9, 0x8})
}
