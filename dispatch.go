// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gpioharness

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Dispatcher delivers interrupt Events to registered Handlers.
//
// Drivers Post events from their interrupt context, which never blocks, and
// the Dispatcher calls the matching Handlers one at a time from a single
// goroutine.  So Handlers never run concurrently with each other.
//
// Events posted while the queue is full are dropped and counted.
type Dispatcher struct {
	q       chan Event
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once

	mu     sync.RWMutex
	regs   map[uint64]dispatchEntry
	nextID atomic.Uint64

	drops atomic.Uint32
}

type dispatchEntry struct {
	reg Registration
	h   Handler
}

// NewDispatcher creates and starts a Dispatcher with a queue of the given
// depth.
func NewDispatcher(depth int) *Dispatcher {
	if depth <= 0 {
		depth = 64
	}
	d := &Dispatcher{
		q:       make(chan Event, depth),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		regs:    map[uint64]dispatchEntry{},
	}
	go d.run()
	return d
}

// Close stops the dispatch goroutine.
//
// Pending events are discarded.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.done)
		<-d.stopped
	})
}

// Register adds a Handler for events on any of the pins in the mask.
func (d *Dispatcher) Register(port string, mask PinMask, h Handler) Registration {
	r := Registration{id: d.nextID.Add(1), port: port, mask: mask}
	d.mu.Lock()
	d.regs[r.id] = dispatchEntry{reg: r, h: h}
	d.mu.Unlock()
	return r
}

// Unregister removes a Handler.
//
// A call to the Handler already in progress may complete after Unregister
// returns, but no new calls are made.
func (d *Dispatcher) Unregister(r Registration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.regs[r.id]; !ok {
		return ErrUnknownRegistration
	}
	delete(d.regs, r.id)
	return nil
}

// Watched returns the union of the masks registered for the port.
func (d *Dispatcher) Watched(port string) PinMask {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var m PinMask
	for _, e := range d.regs {
		if e.reg.port == port {
			m |= e.reg.mask
		}
	}
	return m
}

// Post queues an event for delivery.
//
// Returns false if the event was dropped.
func (d *Dispatcher) Post(evt Event) bool {
	select {
	case d.q <- evt:
		return true
	default:
		d.drops.Add(1)
		return false
	}
}

// Drops returns the number of events dropped because the queue was full.
func (d *Dispatcher) Drops() uint32 {
	return d.drops.Load()
}

func (d *Dispatcher) run() {
	defer close(d.stopped)
	for {
		select {
		case <-d.done:
			return
		case evt := <-d.q:
			d.deliver(evt)
		}
	}
}

func (d *Dispatcher) deliver(evt Event) {
	d.mu.RLock()
	var matched []dispatchEntry
	for _, e := range d.regs {
		if e.reg.port == evt.Port && e.reg.mask&evt.Pins != 0 {
			matched = append(matched, e)
		}
	}
	d.mu.RUnlock()
	// registration order
	sort.Slice(matched, func(i, j int) bool { return matched[i].reg.id < matched[j].reg.id })
	for _, e := range matched {
		e.h(evt)
	}
}
