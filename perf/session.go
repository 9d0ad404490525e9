// Copyright 2025 The go-perfmeasure Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

// Package perf manages kernel performance-counter sessions.
//
// A [Session] owns one open perf_event counter bound to a single
// [events.Event] for the session's whole lifetime. Sessions count
// events on the calling goroutine only, and are not safe for use from
// multiple goroutines; a parallel benchmark worker must open its own
// session.
package perf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/benchkit/go-perfmeasure/events"
)

// A Session is one open performance counter. It is bound to exactly one
// event specification when opened and keeps that binding until Close;
// measuring a different event requires a fresh session.
type Session struct {
	event   events.Event
	f       *os.File
	running bool
	readBuf [8]byte
}

// OpenSession opens a counter for the given event, monitoring the
// calling goroutine. The calling goroutine is locked to its OS thread
// until the session is closed.
//
// The counter is initially stopped and zeroed. Call
// [Session.ResetAndStart] to begin counting and [Session.Close] to
// release the counter.
//
// If the kernel refuses the event, OpenSession returns a [*ConfigError]
// and holds no resource. Common causes are an event the hardware does
// not support, exhausted counter slots, and insufficient permission
// (gated by /proc/sys/kernel/perf_event_paranoid).
func OpenSession(event events.Event) (*Session, error) {
	attr := unix.PerfEventAttr{}
	attr.Size = uint32(unsafe.Sizeof(attr))
	if err := event.SetAttrs(&attr); err != nil {
		return nil, &ConfigError{Event: event.String(), Err: err}
	}
	attr.Bits = unix.PerfBitDisabled

	runtime.LockOSThread()
	fd, err := unix.PerfEventOpen(&attr, 0, -1, -1, unix.PERF_FLAG_FD_CLOEXEC)
	if err != nil {
		runtime.UnlockOSThread()
		if errors.Is(err, syscall.EACCES) {
			err = describeParanoid(err)
		}
		return nil, &ConfigError{Event: event.String(), Err: err}
	}

	return &Session{
		event: event,
		f:     os.NewFile(uintptr(fd), "<perf-event>"),
	}, nil
}

// describeParanoid annotates a permission error with the current
// perf_event_paranoid setting, when it is readable and restrictive.
func describeParanoid(err error) error {
	const path = "/proc/sys/kernel/perf_event_paranoid"
	data, err2 := os.ReadFile(path)
	data = bytes.TrimSpace(data)
	if val, err3 := strconv.Atoi(string(data)); err2 != nil || err3 != nil || val > 0 {
		// We can't read it, or it's set to > 0.
		return fmt.Errorf("%w (consider: echo 0 | sudo tee %s)", err, path)
	}
	return err
}

// Event returns the event specification this session was opened with.
func (s *Session) Event() events.Event {
	if s == nil {
		return nil
	}
	return s.event
}

// ResetAndStart zeroes the counter and enables counting. It is safe to
// call repeatedly, whether or not the counter is running, and performs
// no work beyond the two ioctls.
func (s *Session) ResetAndStart() {
	if s == nil || s.f == nil {
		return
	}
	fd := int(s.f.Fd())
	unix.IoctlGetInt(fd, unix.PERF_EVENT_IOC_RESET)
	unix.IoctlGetInt(fd, unix.PERF_EVENT_IOC_ENABLE)
	s.running = true
}

// StopAndRead disables counting and returns the value accumulated since
// the last reset. An error here means the counter state is no longer
// trustworthy; callers must treat it as fatal for the run rather than
// retrying or substituting zero.
func (s *Session) StopAndRead() (uint64, error) {
	if s == nil || s.f == nil {
		return 0, nil
	}
	fd := int(s.f.Fd())
	if _, err := unix.IoctlGetInt(fd, unix.PERF_EVENT_IOC_DISABLE); err != nil {
		return 0, &MeasurementError{Event: s.event.String(), Op: "disable", Err: err}
	}
	s.running = false

	if _, err := s.f.Read(s.readBuf[:]); err != nil {
		return 0, &MeasurementError{Event: s.event.String(), Op: "read", Err: err}
	}
	return binary.NativeEndian.Uint64(s.readBuf[:]), nil
}

// Running reports whether the counter is currently counting.
func (s *Session) Running() bool {
	return s != nil && s.running
}

// Close releases the counter and unlocks the goroutine from its OS
// thread. It is safe to call more than once.
func (s *Session) Close() {
	if s == nil || s.f == nil {
		return
	}
	s.f.Close()
	s.f = nil
	s.running = false
	runtime.UnlockOSThread()
}
