// Copyright 2025 The go-perfmeasure Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package perf

import (
	"errors"
	"os"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/benchkit/go-perfmeasure/events"
)

// openTestSession opens a session for the given event, skipping the
// test where the kernel won't grant a counter (no PMU, or
// perf_event_paranoid too strict).
func openTestSession(t *testing.T, ev events.Event) *Session {
	t.Helper()
	s, err := OpenSession(ev)
	if err != nil {
		t.Skipf("cannot open counter: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// spin does a fixed amount of deterministic work.
func spin(iters int) uint64 {
	var sum uint64
	for i := 0; i < iters; i++ {
		sum += uint64(i)
	}
	return sum
}

var spinSink uint64

func TestSessionLifecycle(t *testing.T) {
	s := openTestSession(t, events.EventInstructions)

	if s.Running() {
		t.Fatal("session running before ResetAndStart")
	}

	// A counter that was never started reads 0.
	n, err := s.StopAndRead()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("unstarted counter read %d, want 0", n)
	}

	s.ResetAndStart()
	if !s.Running() {
		t.Fatal("session not running after ResetAndStart")
	}
	spinSink += spin(100000)
	n, err = s.StopAndRead()
	if err != nil {
		t.Fatal(err)
	}
	if n == 0 {
		t.Fatal("counted 0 instructions over a 100000-iteration loop")
	}
	if s.Running() {
		t.Fatal("session still running after StopAndRead")
	}
}

func TestResetDiscardsPriorCounts(t *testing.T) {
	s := openTestSession(t, events.EventInstructions)

	// Establish how much a real workload counts.
	s.ResetAndStart()
	spinSink += spin(100000)
	workload, err := s.StopAndRead()
	if err != nil {
		t.Fatal(err)
	}

	// A reset followed by an immediate stop must not see the prior
	// iteration: only the measurement overhead itself, which is far
	// below any real workload.
	s.ResetAndStart()
	overhead, err := s.StopAndRead()
	if err != nil {
		t.Fatal(err)
	}
	if overhead >= workload/10 {
		t.Errorf("reset+stop counted %d, prior workload was %d; reset didn't zero the counter", overhead, workload)
	}

	// And it stays repeat-safe.
	s.ResetAndStart()
	s.ResetAndStart()
	n, err := s.StopAndRead()
	if err != nil {
		t.Fatal(err)
	}
	if n >= workload/10 {
		t.Errorf("double reset counted %d", n)
	}
}

// badEvent is an event specification no kernel accepts.
type badEvent struct{}

func (badEvent) String() string { return "bad-event" }

func (badEvent) SetAttrs(attr *unix.PerfEventAttr) error {
	attr.Type = ^uint32(0)
	attr.Config = ^uint64(0)
	return nil
}

func TestOpenFailure(t *testing.T) {
	before := countFDs(t)

	s, err := OpenSession(badEvent{})
	if err == nil {
		s.Close()
		t.Fatal("OpenSession succeeded for an invalid event")
	}
	var cfg *ConfigError
	if !errors.As(err, &cfg) {
		t.Fatalf("error is %T, want *ConfigError", err)
	}
	if cfg.Event != "bad-event" {
		t.Errorf("ConfigError names event %q, want %q", cfg.Event, "bad-event")
	}

	// A failed open must hold no resource.
	if after := countFDs(t); after != before {
		t.Errorf("fd count changed from %d to %d across failed open", before, after)
	}
}

func countFDs(t *testing.T) int {
	t.Helper()
	ents, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Fatal(err)
	}
	return len(ents)
}

func TestCloseIdempotent(t *testing.T) {
	s := openTestSession(t, events.EventInstructions)
	s.Close()
	s.Close()

	// Operations on a closed session are inert.
	s.ResetAndStart()
	n, err := s.StopAndRead()
	if err != nil || n != 0 {
		t.Fatalf("closed session read (%d, %v), want (0, nil)", n, err)
	}

	var nilSession *Session
	nilSession.ResetAndStart()
	nilSession.Close()
	if nilSession.Running() {
		t.Fatal("nil session reports running")
	}
}
