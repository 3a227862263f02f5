// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package cli

import (
	"log/slog"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpioharness"
	"github.com/warthog618/go-gpioharness/cdev"
	"github.com/warthog618/go-gpioharness/config"
	"github.com/warthog618/go-gpioharness/memsim"
	"github.com/warthog618/go-gpioharness/simwire"
)

// backend is a driver under test and the port it is tested on.
type backend struct {
	drv   gpioharness.Driver
	port  string
	close func()
}

// simLines returns the number of lines given to a simulated chip, enough
// to cover every configured pin.
func simLines(cfg config.Config) int {
	n := cfg.MaxPin() + 1
	if n < 32 {
		n = 32
	}
	return n
}

// openBackend creates the driver named by the configuration.
//
// The simulated backends wire the configured loopback pairs themselves, and
// ignore the configured port in favour of the chip they create.
func openBackend(cfg config.Config, log *slog.Logger) (*backend, error) {
	switch cfg.Backend {
	case "memsim":
		s, err := memsim.NewSim(
			memsim.WithName("memsim"),
			memsim.WithBank(memsim.NewBank("gpioharness", simLines(cfg),
				memsim.WithLoopback(cfg.Loopback.Output, cfg.Loopback.Input),
				memsim.WithLoopback(cfg.Echo.Output, cfg.Echo.Input))))
		if err != nil {
			return nil, errors.Wrap(err, "create memsim")
		}
		port := s.Chips[0].ChipName()
		if cfg.Port != "" && cfg.Port != port {
			log.Warn("ignoring configured port", "port", cfg.Port, "using", port)
		}
		return &backend{drv: s, port: port, close: s.Close}, nil

	case "gpiosim":
		b, err := simwire.NewBench(simLines(cfg), []simwire.Pair{
			{Output: cfg.Loopback.Output, Input: cfg.Loopback.Input},
			{Output: cfg.Echo.Output, Input: cfg.Echo.Input},
		})
		if err != nil {
			return nil, err
		}
		d := cdev.NewDriver(cdev.WithLogger(log))
		log.Info("gpio-sim bench created", "port", b.Port(), "dev", b.Chip().DevPath())
		return &backend{
			drv:  d,
			port: b.Port(),
			close: func() {
				if err := d.Close(); err != nil {
					log.Warn("driver close failed", "err", err)
				}
				b.Close()
			},
		}, nil

	case "cdev":
		d := cdev.NewDriver(cdev.WithLogger(log))
		if _, err := d.PortInfo(cfg.Port); err != nil {
			d.Close()
			return nil, errors.Wrapf(err, "port %s", cfg.Port)
		}
		return &backend{
			drv:  d,
			port: cfg.Port,
			close: func() {
				if err := d.Close(); err != nil {
					log.Warn("driver close failed", "err", err)
				}
			},
		}, nil
	}
	return nil, errors.Errorf("unknown backend %q", cfg.Backend)
}
