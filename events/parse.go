// Copyright 2025 The go-perfmeasure Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package events

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// rawEvent is an event resolved to explicit perf_event_attr fields,
// either from a raw rNNN encoding or from a dynamic PMU description.
type rawEvent struct {
	name    string
	pmu     uint32
	config  uint64
	config1 uint64
	config2 uint64
	period  uint64
}

var _ Event = (*rawEvent)(nil)

func (e *rawEvent) String() string {
	return e.name
}

func (e *rawEvent) SetAttrs(attr *unix.PerfEventAttr) error {
	attr.Type = e.pmu
	attr.Config = e.config
	attr.Ext1 = e.config1
	attr.Ext2 = e.config2
	attr.Sample = e.period // Union of sample_period and sample_freq
	return nil
}

// ParseEvent translates a textual event selector into an [Event]. It
// accepts builtin symbolic names ("instructions", "cache-misses",
// "context-switches"), legacy cache names ("L1-dcache-load-misses"),
// raw encodings ("r1a2"), and PMU format events ("cpu/event=0xd0,umask=0x82/"
// or "cpu/mem-stores/"), resolving dynamic PMUs from
// /sys/bus/event_source/devices.
func ParseEvent(name string) (Event, error) {
	pmu, params, err := splitPMUEvent(name)
	if err == errNotPMUEvent {
		return resolveSymbolic(name)
	} else if err != nil {
		return nil, err
	}
	return resolvePMU(name, pmu, params)
}

var errNotPMUEvent = errors.New("not a PMU format event")

// splitPMUEvent splits selectors of the form pmu/k=v,.../ into the PMU
// name and the parameter list.
func splitPMUEvent(name string) (pmu string, params []eventParam, err error) {
	if strings.Count(name, "/") != 2 || strings.HasPrefix(name, "/") || !strings.HasSuffix(name, "/") {
		return "", nil, errNotPMUEvent
	}

	pmu, rest, _ := strings.Cut(name, "/")
	rest = strings.TrimSuffix(rest, "/")
	params, err = parseParamList(rest)
	if err != nil {
		return "", nil, fmt.Errorf("event %q: %w", name, err)
	}
	return pmu, params, nil
}

type eventParam struct {
	k     string
	v     uint64
	kOnly bool // Param may be an event name or k=1
}

// parseParamList parses a comma-separated list of k strings and k=v
// pairs. A lone k is assumed to have value 1 and may also be an event
// name; perf disambiguates the two by looking in /sys, and so do we. See
// https://www.kernel.org/doc/Documentation/ABI/testing/sysfs-bus-event_source-devices-events.
func parseParamList(list string) ([]eventParam, error) {
	var params []eventParam
	for _, s := range strings.Split(list, ",") {
		k, vs, ok := strings.Cut(s, "=")
		if k == "" {
			return nil, fmt.Errorf("error parsing event param list %q: missing parameter name in %q", list, s)
		}
		if !ok {
			params = append(params, eventParam{k, 1, true})
			continue
		}
		// The value can be decimal, hex, or octal.
		v, err := strconv.ParseUint(vs, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("error parsing event param list %q: parameter %q not a number", list, s)
		}
		params = append(params, eventParam{k, v, false})
	}
	return params, nil
}

// parseRawConfig parses perf's raw event encoding: "r" followed by a
// hex config value, counted on the CPU PMU.
func parseRawConfig(name string) (*rawEvent, bool) {
	if len(name) < 2 || name[0] != 'r' {
		return nil, false
	}
	for _, c := range name[1:] {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return nil, false
		}
	}
	config, err := strconv.ParseUint(name[1:], 16, 64)
	if err != nil {
		return nil, false
	}
	return &rawEvent{name: name, pmu: unix.PERF_TYPE_RAW, config: config}, true
}

// resolveSymbolic resolves a bare event name: builtin events first (perf
// prefers those even when /sys also describes them), then raw
// encodings, then named events of the CPU PMU.
func resolveSymbolic(name string) (Event, error) {
	if be, ok := lookupBuiltin("", name); ok {
		return &rawEvent{name: name, pmu: be.typ, config: be.config}, nil
	}
	if ev, ok := parseRawConfig(name); ok {
		return ev, nil
	}

	desc, err := lookupPMU("cpu")
	if err != nil {
		return nil, fmt.Errorf("unknown event %q", name)
	}
	ev := &rawEvent{name: name, pmu: desc.typ}
	if err := desc.applyNamedEvent(name, ev); err != nil {
		if err == errUnknownEvent {
			return nil, fmt.Errorf("unknown event %q", name)
		}
		return nil, fmt.Errorf("event %q: %w", name, err)
	}
	return ev, nil
}

// resolvePMU resolves a pmu/params/ selector. Each parameter is either
// a format field of the PMU or the name of one of its events; at most
// one parameter may name an event.
func resolvePMU(enc, pmuName string, params []eventParam) (Event, error) {
	// Builtin events win over /sys descriptions, but only when no other
	// parameter is given: builtin events use the static PMU types, so
	// mixing in dynamic format fields would produce a malformed event.
	if len(params) == 1 && params[0].kOnly {
		if be, ok := lookupBuiltin(pmuName, params[0].k); ok {
			return &rawEvent{name: enc, pmu: be.typ, config: be.config}, nil
		}
	}

	desc, err := lookupPMU(pmuName)
	if err != nil {
		return nil, err
	}
	ev := &rawEvent{name: enc, pmu: desc.typ}

	// Split the parameters into format fields and at most one event
	// name.
	var eventName string
	var fields []eventParam
	for _, param := range params {
		if _, ok := desc.getFormat(param.k); ok {
			fields = append(fields, param)
			continue
		}
		if param.kOnly && desc.hasEvent(param.k) {
			if eventName != "" {
				return nil, fmt.Errorf("event %q: multiple events %q and %q", enc, eventName, param.k)
			}
			eventName = param.k
			continue
		}
		return nil, fmt.Errorf("event %q: unknown event or parameter %q", enc, param.k)
	}

	// The named event's own parameters are applied first so that
	// explicit parameters override them, regardless of order.
	if eventName != "" {
		if err := desc.applyNamedEvent(eventName, ev); err != nil {
			return nil, fmt.Errorf("event %q: %w", enc, err)
		}
	}
	for _, param := range fields {
		f, _ := desc.getFormat(param.k)
		if err := f.set(ev, param.v); err != nil {
			return nil, fmt.Errorf("event %q: %w", enc, err)
		}
	}

	return ev, nil
}
