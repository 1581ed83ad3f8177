// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package msgq provides blocking, bounded message queues with the
// semantics of a classic real-time kernel.
//
// A queue holds up to a fixed number of messages of bounded size. Any
// number of tasks may send and receive concurrently. Blocked tasks are
// resolved in arrival order (Fifo) or by task priority (PriorityOrder).
// Urgent messages jump the line, and a queue created with zero capacity
// is a rendezvous point where a send completes only by handing its
// message to a waiting receiver.
//
// # Quick Start
//
//	k, err := msgq.New().TicksPerSecond(100).Build()
//	if err != nil {
//	    return err
//	}
//	defer k.Shutdown()
//
//	h, err := k.Create(16, 64, msgq.Fifo)
//	if err != nil {
//	    return err
//	}
//	err = k.Send(ctx, h, []byte("ping"), msgq.NoWait, msgq.Normal)
//
//	buf := make([]byte, 64)
//	n, err := k.Receive(ctx, h, buf, msgq.Forever)
//
// # Waiting
//
// Wait arguments are in clock ticks:
//
//   - NoWait (0): fail with ErrUnavailable instead of blocking
//   - Forever (any negative value): block without deadline
//   - N > 0: block at most N ticks, then fail with ErrTimeout
//
// The deadline is fixed when the call starts. A blocked call also returns
// when its context is done, with the context's error. Deleting a queue
// wakes every blocked call with ErrDeleted, and Delete itself returns only
// after all of them have left the queue.
//
// # Tasks
//
// The calling task is carried on the context:
//
//	ctx = msgq.WithTask(ctx, 7)
//
// Calls without a task are anonymous and get the default priority. Event
// registration requires a task.
//
// # Urgent Messages
//
// An urgent send goes to the head of the queue. Urgent messages are
// received before all queued normal ones and in LIFO order among
// themselves. One slot beyond capacity is reserved for them, so an urgent
// send succeeds on a queue that is full for normal traffic.
//
// # Events
//
// A task may register for an event mask on a queue:
//
//	err := k.EventStart(ctx, h, 0x1, msgq.SendIfNotEmpty)
//
// Every successful send then posts the mask to the registered task
// through the kernel's [EventSender]. Delivery runs on a dispatcher
// goroutine and never blocks the sender.
//
// # Named Queues
//
// Open creates or attaches to a queue in a [Facility] namespace: POSIX
// message queues on Linux, or an in-process [MemoryFacility]. Named queues
// support the same Send, Receive, Depth and event calls as local queues,
// and are released with Close instead of Delete.
//
// # Error Handling
//
// Errors are [*Error] values carrying a [Status]. Compare with errors.Is:
//
//	err := k.Send(ctx, h, msg, msgq.NoWait, msgq.Normal)
//	switch {
//	case errors.Is(err, msgq.ErrUnavailable):
//	    // full; retry later
//	case errors.Is(err, msgq.ErrInvalidID):
//	    // queue gone
//	}
//
// ErrUnavailable wraps [iox.ErrWouldBlock], so [IsWouldBlock] reports it
// as a control flow signal rather than a failure.
package msgq
