// Copyright 2025 The go-perfmeasure Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package events

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// The directory and fs.FS of the event source devices. These are
// variables so they can be stubbed by tests.
var (
	pmuDir = "/sys/bus/event_source/devices"
	pmuFS  = fs.FS(os.DirFS(pmuDir))
)

// errUnknownEvent is an internal error reporting that a PMU has no
// event with the requested name.
var errUnknownEvent = errors.New("unknown event")

// pmuDesc describes one dynamic PMU from /sys/bus/event_source/devices.
type pmuDesc struct {
	typ    uint32
	format map[string]pmuFormat    // Keyed by symbolic field name
	events map[string][]eventParam // Keyed by event name
}

// pmuFormat describes how one symbolic parameter maps onto bits of a
// perf_event_attr field.
type pmuFormat struct {
	name  string
	field func(*rawEvent) *uint64
	bits  []bitRange
}

type bitRange struct {
	shift int
	nBits int
}

var allBits = []bitRange{{0, 64}}

func fieldConfig(e *rawEvent) *uint64  { return &e.config }
func fieldConfig1(e *rawEvent) *uint64 { return &e.config1 }
func fieldConfig2(e *rawEvent) *uint64 { return &e.config2 }
func fieldPeriod(e *rawEvent) *uint64  { return &e.period }

// getFormat returns the format for the given parameter name. The raw
// attr fields are always addressable by their own names, in addition to
// whatever formats the PMU declares.
func (d *pmuDesc) getFormat(param string) (pmuFormat, bool) {
	switch param {
	case "config":
		return pmuFormat{param, fieldConfig, allBits}, true
	case "config1":
		return pmuFormat{param, fieldConfig1, allBits}, true
	case "config2":
		return pmuFormat{param, fieldConfig2, allBits}, true
	case "period":
		return pmuFormat{param, fieldPeriod, allBits}, true
	}
	f, ok := d.format[param]
	return f, ok
}

func (d *pmuDesc) hasEvent(name string) bool {
	_, ok := d.events[name]
	return ok
}

// applyNamedEvent sets ev's fields from the PMU's description of the
// named event.
func (d *pmuDesc) applyNamedEvent(name string, ev *rawEvent) error {
	params, ok := d.events[name]
	if !ok {
		return errUnknownEvent
	}
	for _, param := range params {
		f, ok := d.getFormat(param.k)
		if !ok {
			return fmt.Errorf("unknown parameter %q in description of %q", param.k, name)
		}
		if err := f.set(ev, param.v); err != nil {
			return err
		}
	}
	return nil
}

// set writes val into the format's bit ranges of ev.
func (f pmuFormat) set(ev *rawEvent, val uint64) error {
	field := f.field(ev)
	totalBits := 0
	x := val
	for _, bits := range f.bits {
		totalBits += bits.nBits
		max := (uint64(1) << bits.nBits) - 1
		*field &^= max << bits.shift
		*field |= (x & max) << bits.shift
		x >>= bits.nBits
	}
	if x != 0 {
		// Bits left over, so the value is out of range.
		max := (uint64(1) << totalBits) - 1
		return fmt.Errorf("parameter %s=%d not in range 0-%d", f.name, val, max)
	}
	return nil
}

// pmus caches PMU descriptions by name. Reading /sys is not free, and
// the descriptions never change while we run.
var pmus = newLazyMap(readPMU)

func lookupPMU(name string) (*pmuDesc, error) {
	return pmus.get(name)
}

// readPMU parses one PMU directory under pmuFS.
func readPMU(pmu string) (*pmuDesc, error) {
	var desc pmuDesc

	typData, err := fs.ReadFile(pmuFS, filepath.Join(pmu, "type"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("unknown PMU %q", pmu)
	} else if err != nil {
		return nil, fmt.Errorf("unknown PMU %q: %w", pmu, err)
	}
	typData = bytes.TrimRight(typData, "\n")
	typ, err := strconv.ParseUint(string(typData), 0, 32)
	if err != nil {
		return nil, fmt.Errorf("error parsing PMU %q type %q: %w", pmu, string(typData), err)
	}
	desc.typ = uint32(typ)

	desc.format = make(map[string]pmuFormat)
	err = pmuForEachFile(filepath.Join(pmu, "format"), func(name, data string) error {
		format, err := parsePMUFormat(data)
		if err != nil {
			return err
		}
		format.name = name
		desc.format[name] = format
		return nil
	})
	if err != nil {
		return nil, err
	}

	// See https://www.kernel.org/doc/Documentation/ABI/testing/sysfs-bus-event_source-devices-events
	desc.events = make(map[string][]eventParam)
	err = pmuForEachFile(filepath.Join(pmu, "events"), func(name, data string) error {
		if strings.Contains(name, ".") {
			// <event>.scale, <event>.unit, or some other special file.
			// We report raw counts, so scaling metadata is ignored.
			return nil
		}
		params, err := parseParamList(strings.TrimRight(data, "\n"))
		if err != nil {
			return err
		}
		desc.events[name] = params
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &desc, nil
}

// pmuForEachFile calls f for each file under path in the pmuFS. A
// missing directory is treated as empty; every directory we read is
// optional.
func pmuForEachFile(path string, f func(name, data string) error) error {
	ents, err := fs.ReadDir(pmuFS, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error reading %s: %w", filepath.Join(pmuDir, path), err)
	}
	for _, ent := range ents {
		entPath := filepath.Join(path, ent.Name())
		b, err := fs.ReadFile(pmuFS, entPath)
		if err != nil {
			return fmt.Errorf("error reading %s: %w", filepath.Join(pmuDir, entPath), err)
		}
		if err := f(ent.Name(), string(b)); err != nil {
			return fmt.Errorf("%w (from %s)", err, filepath.Join(pmuDir, entPath))
		}
	}
	return nil
}

// parsePMUFormat parses the content of a format description from
// /sys/bus/event_source/devices/*/format/*, e.g. "config:0-7" or
// "config1:1,6-10".
func parsePMUFormat(s string) (pmuFormat, error) {
	// See https://www.kernel.org/doc/Documentation/ABI/testing/sysfs-bus-event_source-devices-format
	s = strings.TrimRight(s, "\n")
	field, ranges, ok := strings.Cut(s, ":")
	if !ok {
		return pmuFormat{}, fmt.Errorf("error parsing format %q", s)
	}
	var format pmuFormat
	switch field {
	case "config":
		format.field = fieldConfig
	case "config1":
		format.field = fieldConfig1
	case "config2":
		format.field = fieldConfig2
	default:
		return pmuFormat{}, fmt.Errorf("error parsing format %q: unknown field %s", s, field)
	}
	for _, r := range strings.Split(ranges, ",") {
		lo, hi, ok := strings.Cut(r, "-")
		shift, err := strconv.Atoi(lo)
		nBits := 1
		if ok {
			hiVal, err2 := strconv.Atoi(hi)
			if err == nil {
				err = err2
			}
			nBits = hiVal - shift + 1
		}
		if err != nil {
			return pmuFormat{}, fmt.Errorf("error parsing format %q: %w", s, err)
		}
		format.bits = append(format.bits, bitRange{shift, nBits})
	}
	return format, nil
}
