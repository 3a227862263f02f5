// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package results_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/go-gpioharness/results"
)

func openStore(t *testing.T) *results.Store {
	t.Helper()
	s, err := results.Open(filepath.Join(t.TempDir(), "results.db"))
	require.Nil(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newRun(t *testing.T, at time.Time) results.Run {
	t.Helper()
	r, err := results.NewRun("memsim", "memsim-0")
	require.Nil(t, err)
	r.StartedAt = at
	return r
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	s, err := results.Open(path)
	require.Nil(t, err)
	require.Nil(t, s.Close())

	// reopen existing
	s, err = results.Open(path)
	require.Nil(t, err)
	require.Nil(t, s.Close())

	_, err = results.Open(filepath.Join(t.TempDir(), "nosuchdir", "results.db"))
	assert.NotNil(t, err)
}

func TestNewRun(t *testing.T) {
	r1, err := results.NewRun("cdev", "gpiochip0")
	require.Nil(t, err)
	r2, err := results.NewRun("cdev", "gpiochip0")
	require.Nil(t, err)
	assert.Equal(t, uuid.Version(7), r1.ID.Version())
	assert.NotEqual(t, r1.ID, r2.ID)
	assert.Equal(t, "cdev", r1.Backend)
	assert.Equal(t, "gpiochip0", r1.Port)
}

func TestRecord(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	r := newRun(t, time.Unix(1700000000, 42))
	r.Add("throughput.toggles_per_sec", 1.5e6, "1/s")
	r.Add("latency.mean", 12500, "ns")
	r.AddScenario("loopback", nil)
	r.AddScenario("interrupt edge-rising", errors.New("expected 1, got 0"))
	require.Nil(t, s.Record(ctx, r))

	got, err := s.Run(ctx, r.ID)
	require.Nil(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.True(t, r.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, "memsim", got.Backend)
	assert.Equal(t, "memsim-0", got.Port)
	// ordered by name
	assert.Equal(t, []results.Measurement{
		{Name: "latency.mean", Value: 12500, Unit: "ns"},
		{Name: "throughput.toggles_per_sec", Value: 1.5e6, Unit: "1/s"},
	}, got.Measurements)
	assert.Equal(t, []results.Scenario{
		{Name: "loopback", Passed: true},
		{Name: "interrupt edge-rising", Passed: false, Error: "expected 1, got 0"},
	}, got.Scenarios)

	// duplicate
	err = s.Record(ctx, r)
	assert.NotNil(t, err)

	// duplicate measurement rolls back the run
	r2 := newRun(t, time.Unix(1700000001, 0))
	r2.Add("latency.mean", 1, "ns")
	r2.Add("latency.mean", 2, "ns")
	err = s.Record(ctx, r2)
	assert.NotNil(t, err)
	_, err = s.Run(ctx, r2.ID)
	assert.NotNil(t, err)
}

func TestHistory(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	base := time.Unix(1700000000, 0)
	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		r := newRun(t, base.Add(time.Duration(i)*time.Minute))
		r.Add("throughput.reads_per_sec", float64(100+i), "1/s")
		require.Nil(t, s.Record(ctx, r))
		ids = append(ids, r.ID)
	}

	hist, err := s.History(ctx, "throughput.reads_per_sec", 3)
	require.Nil(t, err)
	require.Equal(t, 3, len(hist))
	// newest first
	assert.Equal(t, ids[4], hist[0].RunID)
	assert.Equal(t, 104.0, hist[0].Value)
	assert.Equal(t, 103.0, hist[1].Value)
	assert.Equal(t, 102.0, hist[2].Value)

	hist, err = s.History(ctx, "nosuchmeasurement", 3)
	assert.Nil(t, err)
	assert.Empty(t, hist)
}

func TestCheckReproducible(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	name := "throughput.toggles_per_sec"

	// no history
	assert.Nil(t, s.CheckReproducible(ctx, name, 1e6, 10))

	for i, v := range []float64{0.9e6, 1.1e6} {
		r := newRun(t, time.Unix(1700000000+int64(i), 0))
		r.Add(name, v, "1/s")
		require.Nil(t, s.Record(ctx, r))
	}
	assert.Nil(t, s.CheckReproducible(ctx, name, 1e6, 10))
	assert.Nil(t, s.CheckReproducible(ctx, name, 5e6, 10))
	assert.Nil(t, s.CheckReproducible(ctx, name, 0.2e6, 10))

	err := s.CheckReproducible(ctx, name, 20e6, 10)
	var nre *results.NotReproducibleError
	require.True(t, errors.As(err, &nre))
	assert.Equal(t, name, nre.Name)
	assert.Equal(t, 1e6, nre.Mean)
	assert.Equal(t, 2, nre.Runs)

	err = s.CheckReproducible(ctx, name, 0.05e6, 10)
	assert.True(t, errors.As(err, &nre))

	err = s.CheckReproducible(ctx, name, 0, 10)
	assert.True(t, errors.As(err, &nre))
}
