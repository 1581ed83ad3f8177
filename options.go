// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msgq

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Options configures a Kernel.
type Options struct {
	ticksPerSecond int
	eventMailbox   int
	eventRetries   int
	maxQueueBytes  int
	namedPrefix    string

	clock    Clock
	tasks    Tasks
	sender   EventSender
	facility Facility
	logger   logrus.FieldLogger
}

// Builder creates kernels with fluent configuration.
//
// Example:
//
//	tasks := msgq.NewTaskTable()
//	k, err := msgq.New().
//	    TicksPerSecond(100).
//	    Tasks(tasks).
//	    EventSender(sender).
//	    Build()
type Builder struct {
	opts Options
}

// New creates a kernel builder with default settings: 100 ticks per
// second, a 256-entry event mailbox, 64 MiB per queue, in-process named
// queues, and the standard logrus logger.
func New() *Builder {
	return &Builder{opts: Options{
		ticksPerSecond: 100,
		eventMailbox:   256,
		eventRetries:   8,
		maxQueueBytes:  64 << 20,
		namedPrefix:    "/",
	}}
}

// TicksPerSecond sets the default clock rate. Ignored when Clock is set.
func (b *Builder) TicksPerSecond(n int) *Builder {
	b.opts.ticksPerSecond = n
	return b
}

// EventMailbox sets the capacity of the event delivery mailbox.
// It rounds up to the next power of 2.
func (b *Builder) EventMailbox(n int) *Builder {
	b.opts.eventMailbox = n
	return b
}

// EventRetries bounds how often a would-block event delivery is retried.
func (b *Builder) EventRetries(n int) *Builder {
	b.opts.eventRetries = n
	return b
}

// MaxQueueBytes caps the storage of one queue, payload plus one length
// word per slot. Create and Open fail with ErrOutOfMemory beyond it; zero
// means no cap.
func (b *Builder) MaxQueueBytes(n int) *Builder {
	b.opts.maxQueueBytes = n
	return b
}

// NamedPrefix sets the namespace prefix of the default POSIX facility.
func (b *Builder) NamedPrefix(p string) *Builder {
	b.opts.namedPrefix = p
	return b
}

// Clock sets the tick source.
func (b *Builder) Clock(c Clock) *Builder {
	b.opts.clock = c
	return b
}

// Tasks sets the task priority lookup.
func (b *Builder) Tasks(t Tasks) *Builder {
	b.opts.tasks = t
	return b
}

// EventSender sets the event delivery target.
func (b *Builder) EventSender(s EventSender) *Builder {
	b.opts.sender = s
	return b
}

// Facility sets the named queue facility. Without it, named queues use a
// private [MemoryFacility].
func (b *Builder) Facility(f Facility) *Builder {
	b.opts.facility = f
	return b
}

// Posix selects the operating system's POSIX message queues for named
// queues, under the configured prefix.
func (b *Builder) Posix() *Builder {
	b.opts.facility = NewPosixFacility(b.opts.namedPrefix)
	return b
}

// Logger sets the logger.
func (b *Builder) Logger(l logrus.FieldLogger) *Builder {
	b.opts.logger = l
	return b
}

func (o *Options) validate() error {
	if o.clock == nil && (o.ticksPerSecond < 1 || o.ticksPerSecond > 1000) {
		return errors.Wrapf(ErrInvalidArgument, "ticks per second %d out of [1, 1000]", o.ticksPerSecond)
	}
	if o.clock != nil && o.clock.TickDuration() <= 0 {
		return errors.Wrapf(ErrInvalidArgument, "clock tick %v", o.clock.TickDuration())
	}
	if o.eventMailbox < 1 {
		return errors.Wrapf(ErrInvalidArgument, "event mailbox %d", o.eventMailbox)
	}
	if o.eventRetries < 0 {
		return errors.Wrapf(ErrInvalidArgument, "event retries %d", o.eventRetries)
	}
	if o.maxQueueBytes < 0 {
		return errors.Wrapf(ErrInvalidArgument, "max queue bytes %d", o.maxQueueBytes)
	}
	return nil
}

// Build creates the kernel and starts its event dispatcher.
// Call [Kernel.Shutdown] to stop it.
func (b *Builder) Build() (*Kernel, error) {
	o := b.opts
	if err := o.validate(); err != nil {
		return nil, err
	}
	if o.logger == nil {
		o.logger = logrus.StandardLogger()
	}
	if o.clock == nil {
		o.clock = NewTickClock(o.ticksPerSecond)
	}
	if o.tasks == nil {
		o.tasks = NewTaskTable()
	}
	if o.sender == nil {
		o.sender = discardSender{log: o.logger}
	}
	if o.facility == nil {
		o.facility = NewMemoryFacility()
	}
	return newKernel(o), nil
}
