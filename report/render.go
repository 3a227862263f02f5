// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package report

import (
	"io"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// Formats lists the supported output formats.
var Formats = []string{"text", "yaml"}

// Write renders the report in the named format.
func (r *Report) Write(w io.Writer, format string) error {
	switch format {
	case "text":
		return r.WriteText(w)
	case "yaml":
		return r.WriteYAML(w)
	}
	return errors.Errorf("unknown format %q: must be one of %v", format, Formats)
}

// WriteYAML renders the report as a YAML document.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return errors.Wrap(err, "encode report")
	}
	return errors.Wrap(enc.Close(), "encode report")
}

// textWriter latches the first write error so rendering can proceed
// unchecked.
type textWriter struct {
	p   *message.Printer
	w   io.Writer
	err error
}

func (t *textWriter) printf(format string, args ...interface{}) {
	if t.err != nil {
		return
	}
	_, t.err = t.p.Fprintf(t.w, format, args...)
}

// field prints an indented line with the label in a fixed width column.
func (t *textWriter) field(label, format string, args ...interface{}) {
	t.printf("  "+pad(label, 10)+" "+format+"\n", args...)
}

func pad(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}

// rate rounds a rate to a whole number for display.
func rate(f float64) int64 {
	return int64(math.Round(f))
}

func dur(d time.Duration) string {
	return d.String()
}

// WriteText renders the report for humans.
//
// Counts and rates are grouped by thousands.
func (r *Report) WriteText(w io.Writer) error {
	t := &textWriter{p: message.NewPrinter(language.English), w: w}
	t.printf("run     %s\n", r.Run)
	t.printf("backend %s\n", r.Backend)
	t.printf("port    %s\n", r.Port)

	if v := r.Validation; v != nil {
		t.printf("\nvalidation %s\n", v.Wiring)
		for _, s := range v.Scenarios {
			if s.Passed {
				t.printf("  PASS %s (%s)\n", s.Name, dur(s.Elapsed))
			} else {
				t.printf("  FAIL %s (%s): %s\n", s.Name, dur(s.Elapsed), s.Error)
			}
		}
		t.printf("  %d passed, %d failed\n", v.Passed, v.Failed)
	}

	if l := r.Latency; l != nil {
		t.printf("\nlatency %s\n", l.Wiring)
		t.field("samples", "%d valid of %d, %d timed out, %d discarded",
			l.Valid, l.Attempted, l.Timeouts, l.Discarded)
		if l.Valid > 0 {
			t.field("mean", "%s (%d cycles)", dur(l.Mean), l.MeanCycles)
			t.field("min", "%s", dur(l.Min))
			t.field("max", "%s", dur(l.Max))
		}
		if l.Error != "" {
			t.field("error", "%s", l.Error)
		}
	}

	if tp := r.Throughput; tp != nil {
		if tg := tp.Toggle; tg != nil {
			t.printf("\noutput toggle pin %d\n", tg.Pin)
			if tg.Error != "" {
				t.field("error", "%s", tg.Error)
			} else {
				t.field("toggles", "%d in %s", tg.Toggles, dur(tg.Elapsed))
				t.field("per toggle", "%s", dur(tg.PerToggle))
				t.field("rate", "%d toggles/s", rate(tg.TogglesPerSec))
				t.field("square", "%d Hz", rate(tg.SquareWaveHz))
			}
		}
		if rd := tp.Read; rd != nil {
			t.printf("\ninput read pin %d\n", rd.Pin)
			if rd.Error != "" {
				t.field("error", "%s", rd.Error)
			} else {
				t.field("reads", "%d in %s", rd.Reads, dur(rd.Elapsed))
				t.field("per read", "%s", dur(rd.PerRead))
				t.field("rate", "%d reads/s", rate(rd.ReadsPerSec))
				t.field("checksum", "%d", rd.Checksum)
			}
		}
		if co := tp.Config; co != nil {
			t.printf("\nconfiguration overhead pin %d\n", co.Pin)
			for _, e := range co.Entries {
				name := e.Name
				if e.Interrupt {
					name = "irq " + name
				}
				if e.Supported {
					t.printf("  %s %s\n", pad(name, 18), dur(e.Mean))
				} else {
					t.printf("  %s unsupported\n", pad(name, 18))
				}
			}
			if co.Error != "" {
				t.field("error", "%s", co.Error)
			}
		}
	}

	if s := r.Stress; s != nil {
		t.printf("\nstress %s, %d iterations per worker\n", s.Port, s.Iterations)
		for _, wk := range s.Workers {
			t.printf("  pin %d: %d succeeded, %d config failures, %d interrupt failures, %d consistency errors\n",
				wk.Pin, wk.Successes, wk.ConfigFailures, wk.InterruptFailures, wk.ConsistencyErrors)
		}
		if s.Error != "" {
			t.field("error", "%s", s.Error)
		}
	}

	if len(r.Checks) != 0 {
		t.printf("\nreproducibility\n")
		for _, c := range r.Checks {
			if c.Error != "" {
				t.printf("  FAIL %s: %s\n", c.Name, c.Error)
			} else {
				t.printf("  PASS %s %d\n", c.Name, rate(c.Value))
			}
		}
	}

	if f := r.Failures(); len(f) != 0 {
		t.printf("\nFAIL %d\n", len(f))
	} else {
		t.printf("\nPASS\n")
	}
	return t.err
}
