// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package cdev provides a gpioharness.Driver for GPIO chips accessed through
// the Linux GPIO character device.
//
// Ports are gpiochips, identified by name (e.g. "gpiochip0") or path.
// Lines are requested when first configured and released when configured as
// Disconnected.  Reconfiguring edge detection requires uAPI v2.
//
// The character device provides edge detection only, so level triggers are
// emulated.  A level trigger watches for the edge into the asserted level,
// and fires immediately if the line is already asserted when armed.
package cdev

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
	"github.com/warthog618/go-gpioharness"
	"golang.org/x/sys/unix"
)

// Driver drives GPIO lines through the character device.
type Driver struct {
	consumer string
	depth    int
	log      *slog.Logger
	disp     *gpioharness.Dispatcher
	clock    gpioharness.Timer

	mu    sync.Mutex
	chips map[string]*chip
}

type chip struct {
	c     *gpiocdev.Chip
	lines map[int]*line
}

type line struct {
	l     *gpiocdev.Line
	flags gpioharness.Flags
	trig  gpioharness.Trigger
}

var _ gpioharness.Driver = (*Driver)(nil)

// NewDriver creates a Driver.
//
// The available options are [WithConsumer], [WithLogger] and
// [WithQueueDepth].
func NewDriver(options ...Option) *Driver {
	d := &Driver{
		consumer: "gpioharness",
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		chips:    map[string]*chip{},
		clock:    gpioharness.NewMonotonicTimer(),
	}
	for _, o := range options {
		o.applyDriverOption(d)
	}
	d.disp = gpioharness.NewDispatcher(d.depth)
	return d
}

// Close releases all requested lines and stops interrupt delivery.
func (d *Driver) Close() error {
	d.mu.Lock()
	var err error
	for name, c := range d.chips {
		for o, l := range c.lines {
			if cerr := l.l.Close(); cerr != nil && err == nil {
				err = errors.Wrapf(cerr, "%s:%d", name, o)
			}
		}
		c.c.Close()
	}
	d.chips = map[string]*chip{}
	d.mu.Unlock()
	d.disp.Close()
	return err
}

// Drops returns the number of edge events dropped because the event queue
// was full.
func (d *Driver) Drops() uint32 {
	return d.disp.Drops()
}

// PortInfo returns the geometry of the chip.
//
// The kernel serialises access to all the lines of a chip, so the whole chip
// is reported as a single bank.
func (d *Driver) PortInfo(port string) (gpioharness.PortInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, err := d.chip(port)
	if err != nil {
		return gpioharness.PortInfo{}, err
	}
	n := c.c.Lines()
	return gpioharness.PortInfo{
		Name:      port,
		NumPins:   n,
		BankWidth: n,
		Caps:      gpioharness.CapAll,
	}, nil
}

// Configure applies the flags to the line, requesting it if necessary.
//
// Configuring an output clears any interrupt trigger.
func (d *Driver) Configure(pin gpioharness.PinHandle, flags gpioharness.Flags) error {
	if err := flags.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	c, err := d.chip(pin.Port())
	if err != nil {
		return err
	}
	l := c.lines[pin.Pin()]
	if flags == gpioharness.Disconnected {
		if l == nil {
			return nil
		}
		delete(c.lines, pin.Pin())
		return mapError(l.l.Close())
	}
	if l == nil {
		ll, err := c.c.RequestLine(pin.Pin(),
			gpiocdev.WithConsumer(d.consumer),
			gpiocdev.AsIs,
			gpiocdev.WithEventHandler(d.eventHandler(pin.Port())))
		if err != nil {
			return mapError(err)
		}
		l = &line{l: ll}
		c.lines[pin.Pin()] = l
	}
	trig := l.trig
	if flags.IsOutput() {
		trig = gpioharness.TriggerDisabled
	}
	if err = l.l.Reconfigure(lineConfig(flags, trig)...); err != nil {
		return mapError(err)
	}
	l.flags = flags
	l.trig = trig
	return nil
}

// ConfigureInterrupt sets the edge detection for an input line.
//
// Disabling the trigger on a line that has not been requested is a no-op.
func (d *Driver) ConfigureInterrupt(pin gpioharness.PinHandle, trigger gpioharness.Trigger) error {
	if trigger < gpioharness.TriggerDisabled || trigger > gpioharness.TriggerLevelLow {
		return gpioharness.ErrUnsupportedTrigger
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	c, err := d.chip(pin.Port())
	if err != nil {
		return err
	}
	l := c.lines[pin.Pin()]
	if l == nil {
		if trigger == gpioharness.TriggerDisabled {
			return nil
		}
		return errors.Wrapf(gpioharness.ErrNotReady, "%s not configured", pin)
	}
	if l.flags.IsOutput() {
		if trigger == gpioharness.TriggerDisabled {
			return nil
		}
		return gpioharness.ErrUnsupportedTrigger
	}
	if err = l.l.Reconfigure(lineConfig(l.flags, trigger)...); err != nil {
		// edge detection cannot be reconfigured with uAPI v1
		if errors.Is(err, unix.EINVAL) {
			return errors.Wrapf(gpioharness.ErrUnsupportedTrigger, "%v", err)
		}
		return mapError(err)
	}
	l.trig = trigger
	if !trigger.IsLevel() {
		return nil
	}
	v, err := l.l.Value()
	if err != nil {
		return mapError(err)
	}
	if (trigger == gpioharness.TriggerLevelHigh) == (v == 1) {
		d.disp.Post(gpioharness.Event{
			Port:      pin.Port(),
			Pins:      pin.Mask(),
			Level:     v,
			Timestamp: time.Duration(d.clock.Now()),
		})
	}
	return nil
}

// SetLevel drives an output line.
func (d *Driver) SetLevel(pin gpioharness.PinHandle, level int) error {
	l, flags := d.line(pin)
	if l == nil || !flags.IsOutput() {
		return gpioharness.ErrNotOutput
	}
	return mapError(l.SetValue(level))
}

// Level returns the level of a requested line.
func (d *Driver) Level(pin gpioharness.PinHandle) (int, error) {
	l, _ := d.line(pin)
	if l == nil {
		return 0, errors.Wrapf(gpioharness.ErrNotReady, "%s not configured", pin)
	}
	v, err := l.Value()
	return v, mapError(err)
}

// RegisterCallback adds a handler for edge events on the lines in the mask.
func (d *Driver) RegisterCallback(port string, mask gpioharness.PinMask, h gpioharness.Handler) (gpioharness.Registration, error) {
	pi, err := d.PortInfo(port)
	if err != nil {
		return gpioharness.Registration{}, err
	}
	if mask == 0 || (pi.NumPins < 64 && mask>>uint(pi.NumPins) != 0) {
		return gpioharness.Registration{}, errors.Wrapf(gpioharness.ErrInvalidPin, "%s: mask %#x", port, uint64(mask))
	}
	return d.disp.Register(port, mask, h), nil
}

// UnregisterCallback removes a handler added by RegisterCallback.
func (d *Driver) UnregisterCallback(r gpioharness.Registration) error {
	return d.disp.Unregister(r)
}

// chip returns the opened chip, opening it if necessary.
//
// Must be called with the mutex held.
func (d *Driver) chip(port string) (*chip, error) {
	if c, ok := d.chips[port]; ok {
		return c, nil
	}
	cc, err := gpiocdev.NewChip(port, gpiocdev.WithConsumer(d.consumer))
	if err != nil {
		return nil, errors.Wrapf(gpioharness.ErrNotReady, "%s: %v", port, err)
	}
	c := &chip{c: cc, lines: map[int]*line{}}
	d.chips[port] = c
	d.log.Debug("opened chip", "port", port, "lines", cc.Lines(), "label", cc.Label)
	return c, nil
}

func (d *Driver) line(pin gpioharness.PinHandle) (*gpiocdev.Line, gpioharness.Flags) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.chips[pin.Port()]
	if !ok {
		return nil, 0
	}
	l, ok := c.lines[pin.Pin()]
	if !ok {
		return nil, 0
	}
	return l.l, l.flags
}

// eventHandler returns the handler that forwards edge events from the chip
// to the dispatcher.
func (d *Driver) eventHandler(port string) func(gpiocdev.LineEvent) {
	return func(evt gpiocdev.LineEvent) {
		level := 0
		if evt.Type == gpiocdev.LineEventRisingEdge {
			level = 1
		}
		if !d.disp.Post(gpioharness.Event{
			Port:      port,
			Pins:      gpioharness.MaskOf(evt.Offset),
			Level:     level,
			Timestamp: evt.Timestamp,
		}) {
			d.log.Debug("edge event dropped", "port", port, "offset", evt.Offset, "seqno", evt.Seqno)
		}
	}
}

// lineConfig maps the flags and trigger to the equivalent line
// configuration.
func lineConfig(flags gpioharness.Flags, trig gpioharness.Trigger) []gpiocdev.LineConfigOption {
	var opts []gpiocdev.LineConfigOption
	if flags.IsOutput() {
		opts = append(opts, gpiocdev.AsOutput(flags.InitialLevel()))
	} else {
		opts = append(opts, gpiocdev.AsInput)
	}
	switch {
	case flags&gpioharness.PullUp != 0:
		opts = append(opts, gpiocdev.WithPullUp)
	case flags&gpioharness.PullDown != 0:
		opts = append(opts, gpiocdev.WithPullDown)
	default:
		opts = append(opts, gpiocdev.WithBiasDisabled)
	}
	switch trig {
	case gpioharness.TriggerEdgeRising, gpioharness.TriggerLevelHigh:
		opts = append(opts, gpiocdev.WithRisingEdge)
	case gpioharness.TriggerEdgeFalling, gpioharness.TriggerLevelLow:
		opts = append(opts, gpiocdev.WithFallingEdge)
	case gpioharness.TriggerEdgeBoth:
		opts = append(opts, gpiocdev.WithBothEdges)
	default:
		opts = append(opts, gpiocdev.WithoutEdges)
	}
	return opts
}

// mapError maps errors from the uAPI to driver status codes.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EBUSY),
		errors.Is(err, gpiocdev.ErrClosed),
		errors.Is(err, gpiocdev.ErrPermissionDenied):
		return errors.Wrapf(gpioharness.ErrNotReady, "%v", err)
	case errors.Is(err, unix.EINVAL):
		return errors.Wrapf(gpioharness.ErrRejectedFlags, "%v", err)
	case errors.Is(err, gpiocdev.ErrInvalidOffset):
		return errors.Wrapf(gpioharness.ErrInvalidPin, "%v", err)
	}
	return err
}
