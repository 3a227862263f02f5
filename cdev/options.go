// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package cdev

import "log/slog"

// Option defines the interface required to provide an option to NewDriver.
type Option interface {
	applyDriverOption(*Driver)
}

// ConsumerOption defines the consumer label for lines requested by the
// Driver.
type ConsumerOption string

// WithConsumer returns an option that sets the consumer label reported for
// the requested lines.
func WithConsumer(consumer string) ConsumerOption {
	return ConsumerOption(consumer)
}

func (o ConsumerOption) applyDriverOption(d *Driver) {
	d.consumer = string(o)
}

// LoggerOption defines the logger used by the Driver.
type LoggerOption struct {
	log *slog.Logger
}

// WithLogger returns an option that sets the logger used by the Driver.
func WithLogger(log *slog.Logger) LoggerOption {
	return LoggerOption{log}
}

func (o LoggerOption) applyDriverOption(d *Driver) {
	if o.log != nil {
		d.log = o.log
	}
}

// QueueDepthOption sets the depth of the interrupt event queue.
type QueueDepthOption int

// WithQueueDepth returns an option that sets the number of edge events that
// may be pending delivery before further events are dropped.
func WithQueueDepth(depth int) QueueDepthOption {
	return QueueDepthOption(depth)
}

func (o QueueDepthOption) applyDriverOption(d *Driver) {
	d.depth = int(o)
}
