package reactor

import (
	"log/slog"
	"sync/atomic"
)

const (
	stateIdle uint32 = iota
	stateRunning
)

// Context is a single-threaded reactor: it owns an I/O multiplexer, a
// monotonic timer source, a local and a remote work queue, and
// coordinates wake-ups across threads. Exactly one goroutine may
// drive it via Run at a time.
type Context struct {
	mux    multiplexer
	interr *interrupter
	timers timerHeap

	local  localQueue
	remote *remoteQueue

	timersDirty                  bool
	processedRemoteQueueSubmitted bool

	running    atomic.Uint32
	stopped    atomic.Bool
	ioThreadID atomic.Uint64

	logger *slog.Logger
	clock  func() TimePoint

	maxPollEvents int
	eventBuf      []readyEvent
}

// NewContext constructs a Context, creating the multiplexer, the
// kernel timer handle and the interrupter. Construction failure is
// fatal to the caller (spec §6): there is no partially-usable
// Context.
func NewContext(opts ...Option) (*Context, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(o)
	}

	mux, err := newMultiplexer(o.maxPollEvents)
	if err != nil {
		return nil, err
	}
	interr, err := newInterrupter()
	if err != nil {
		_ = mux.close()
		return nil, err
	}
	if err := mux.addInterrupter(interr.readFD()); err != nil {
		_ = interr.Close()
		_ = mux.close()
		return nil, err
	}

	c := &Context{
		mux:           mux,
		interr:        interr,
		remote:        newRemoteQueue(),
		logger:        o.logger,
		clock:         o.clock,
		maxPollEvents: o.maxPollEvents,
		eventBuf:      make([]readyEvent, 0, o.maxPollEvents),
	}
	c.processedRemoteQueueSubmitted = true
	return c, nil
}

// Now returns the context's current monotonic time-point.
func (c *Context) Now() TimePoint { return c.clock() }

// Scheduler is a cheap-to-copy, non-owning handle to a Context.
// Equality compares the underlying pointer.
type Scheduler struct {
	ctx *Context
}

// Scheduler returns a handle operations use to submit work.
func (c *Context) Scheduler() Scheduler { return Scheduler{ctx: c} }

func (s Scheduler) Now() TimePoint { return s.ctx.Now() }

// Run drives the event loop until stop is requested. Only one Run
// call may be active at a time; a concurrent call returns
// ErrAlreadyRunning immediately (spec §8 scenario 6).
func (c *Context) Run() error {
	if !c.running.CompareAndSwap(stateIdle, stateRunning) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(stateIdle)
	c.stopped.Store(false)
	c.ioThreadID.Store(goroutineID())
	defer c.ioThreadID.Store(0)

	for {
		c.drainLocal()
		if c.stopped.Load() {
			return nil
		}
		if c.timersDirty {
			c.reconcileTimers()
		}
		if !c.processedRemoteQueueSubmitted {
			head, tail := c.remote.tryMarkInactiveOrDequeueAll()
			if head != nil {
				c.local.pushListBack(head, tail)
				c.processedRemoteQueueSubmitted = false
			} else {
				c.processedRemoteQueueSubmitted = true
			}
		}

		block := c.local.empty()
		events, err := c.mux.wait(c.eventBuf[:0], block)
		if err != nil {
			c.logger.Error("reactor: multiplexer wait failed", "error", err)
			continue
		}
		for _, ev := range events {
			switch ev.user {
			case pollUserInterrupter:
				c.processedRemoteQueueSubmitted = false
			case pollUserTimer:
				c.timersDirty = true
			case pollUserOperation:
				n := &ev.op.opNode
				if n.enqueued.CompareAndSwap(false, true) {
					c.local.pushBack(n)
				}
			}
		}
	}
}

func (c *Context) drainLocal() {
	// Work enqueued during this drain is deferred to the next
	// iteration: snapshot the current tail and stop once reached.
	limit := c.local.tail
	for {
		n := c.local.popFront()
		if n == nil {
			return
		}
		n.enqueued.Store(false)
		next := n.next
		n.next = nil
		n.execute(n)
		if n == limit {
			return
		}
		_ = next
	}
}

func (c *Context) reconcileTimers() {
	now := c.Now()
	c.timers.reconcile(now, &c.local,
		func(deadline TimePoint) { _ = c.mux.setTimer(deadline) },
		func() { _ = c.mux.disarmTimer() },
	)
	c.timersDirty = false
}

// RequestStop is safe to call from any goroutine. It does not
// actively cancel in-flight operations (see DESIGN.md Open Question
// #1); the run loop abandons pending work and returns on its next
// check.
func (c *Context) RequestStop() {
	if c.stopped.CompareAndSwap(false, true) {
		_ = c.interr.interrupt()
	}
}

// StopRequested reports whether RequestStop has been called.
func (c *Context) StopRequested() bool { return c.stopped.Load() }

// IsRunning reports whether a goroutine is currently inside Run.
func (c *Context) IsRunning() bool { return c.running.Load() == stateRunning }

// isRunningOnIOThread answers whether the calling goroutine is the
// one currently inside Run.
func (c *Context) isRunningOnIOThread() bool {
	id := c.ioThreadID.Load()
	return id != 0 && id == goroutineID()
}

// scheduleLocal enqueues op on the local queue. Precondition: caller
// is on the I/O thread and !op.enqueued.
func (c *Context) scheduleLocal(op *opNode) {
	op.enqueued.Store(true)
	c.local.pushBack(op)
}

// scheduleRemote enqueues op on the remote queue, interrupting the
// I/O thread if the queue was inactive.
func (c *Context) scheduleRemote(op *opNode) {
	op.enqueued.Store(true)
	if c.remote.enqueue(op) {
		_ = c.interr.interrupt()
	}
}

// schedule dispatches to local or remote based on which thread is
// calling.
func (c *Context) schedule(op *opNode) {
	if c.isRunningOnIOThread() {
		c.scheduleLocal(op)
		return
	}
	c.scheduleRemote(op)
}

// Close releases the context's owned descriptors (multiplexer,
// interrupter) in reverse order of construction. The context must
// not be running.
func (c *Context) Close() error {
	err1 := c.interr.Close()
	err2 := c.mux.close()
	if err1 != nil {
		return err1
	}
	return err2
}
