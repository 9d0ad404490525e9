// Copyright 2025 The go-perfmeasure Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package events

import (
	"sort"

	"golang.org/x/sys/unix"
)

// builtinEvent is an event with a fixed perf_event_attr encoding. These
// correspond to perf's hard-coded symbol tables and generally do not
// appear under /sys/bus/event_source.
type builtinEvent struct {
	typ    uint32
	config uint64
}

// namedConfig binds one event config to its accepted names. The first
// name is canonical; the rest are aliases perf also accepts.
type namedConfig struct {
	config uint64
	names  []string
}

// See parse-events.c:event_symbols_hw in the kernel's perf tool.
var hardwareTable = []namedConfig{
	{unix.PERF_COUNT_HW_CPU_CYCLES, []string{"cpu-cycles", "cycles"}},
	{unix.PERF_COUNT_HW_INSTRUCTIONS, []string{"instructions"}},
	{unix.PERF_COUNT_HW_CACHE_REFERENCES, []string{"cache-references"}},
	{unix.PERF_COUNT_HW_CACHE_MISSES, []string{"cache-misses"}},
	{unix.PERF_COUNT_HW_BRANCH_INSTRUCTIONS, []string{"branch-instructions", "branches"}},
	{unix.PERF_COUNT_HW_BRANCH_MISSES, []string{"branch-misses"}},
	{unix.PERF_COUNT_HW_BUS_CYCLES, []string{"bus-cycles"}},
	{unix.PERF_COUNT_HW_STALLED_CYCLES_FRONTEND, []string{"stalled-cycles-frontend", "idle-cycles-frontend"}},
	{unix.PERF_COUNT_HW_STALLED_CYCLES_BACKEND, []string{"stalled-cycles-backend", "idle-cycles-backend"}},
	{unix.PERF_COUNT_HW_REF_CPU_CYCLES, []string{"ref-cycles"}},
}

// See parse-events.c:event_symbols_sw.
var softwareTable = []namedConfig{
	{unix.PERF_COUNT_SW_CPU_CLOCK, []string{"cpu-clock"}},
	{unix.PERF_COUNT_SW_TASK_CLOCK, []string{"task-clock"}},
	{unix.PERF_COUNT_SW_PAGE_FAULTS, []string{"page-faults", "faults"}},
	{unix.PERF_COUNT_SW_CONTEXT_SWITCHES, []string{"context-switches", "cs"}},
	{unix.PERF_COUNT_SW_CPU_MIGRATIONS, []string{"cpu-migrations", "migrations"}},
	{unix.PERF_COUNT_SW_PAGE_FAULTS_MIN, []string{"minor-faults"}},
	{unix.PERF_COUNT_SW_PAGE_FAULTS_MAJ, []string{"major-faults"}},
	{unix.PERF_COUNT_SW_ALIGNMENT_FAULTS, []string{"alignment-faults"}},
	{unix.PERF_COUNT_SW_EMULATION_FAULTS, []string{"emulation-faults"}},
	{unix.PERF_COUNT_SW_DUMMY, []string{"dummy"}},
	{unix.PERF_COUNT_SW_BPF_OUTPUT, []string{"bpf-output"}},
}

var (
	hardwareByName = indexNames(hardwareTable)
	softwareByName = indexNames(softwareTable)
)

func indexNames(table []namedConfig) map[string]uint64 {
	m := make(map[string]uint64)
	for _, nc := range table {
		for _, name := range nc.names {
			m[name] = nc.config
		}
	}
	return m
}

// cacheName is one component of a legacy cache event name such as
// "L1-dcache-load-misses".
type cacheName struct {
	name   string
	config uint64
}

// See evsel.c:evsel__hw_cache, evsel__hw_cache_op, and
// evsel__hw_cache_result in the kernel's perf tool.
var (
	cacheLevels = []cacheName{
		{"L1-dcache", unix.PERF_COUNT_HW_CACHE_L1D},
		{"l1-d", unix.PERF_COUNT_HW_CACHE_L1D},
		{"l1d", unix.PERF_COUNT_HW_CACHE_L1D},
		{"L1-data", unix.PERF_COUNT_HW_CACHE_L1D},
		{"L1-icache", unix.PERF_COUNT_HW_CACHE_L1I},
		{"l1-i", unix.PERF_COUNT_HW_CACHE_L1I},
		{"l1i", unix.PERF_COUNT_HW_CACHE_L1I},
		{"L1-instruction", unix.PERF_COUNT_HW_CACHE_L1I},
		{"LLC", unix.PERF_COUNT_HW_CACHE_LL},
		{"L2", unix.PERF_COUNT_HW_CACHE_LL},
		{"dTLB", unix.PERF_COUNT_HW_CACHE_DTLB},
		{"d-tlb", unix.PERF_COUNT_HW_CACHE_DTLB},
		{"Data-TLB", unix.PERF_COUNT_HW_CACHE_DTLB},
		{"iTLB", unix.PERF_COUNT_HW_CACHE_ITLB},
		{"i-tlb", unix.PERF_COUNT_HW_CACHE_ITLB},
		{"Instruction-TLB", unix.PERF_COUNT_HW_CACHE_ITLB},
		{"branch", unix.PERF_COUNT_HW_CACHE_BPU},
		{"branches", unix.PERF_COUNT_HW_CACHE_BPU},
		{"bpu", unix.PERF_COUNT_HW_CACHE_BPU},
		{"btb", unix.PERF_COUNT_HW_CACHE_BPU},
		{"bpc", unix.PERF_COUNT_HW_CACHE_BPU},
		{"node", unix.PERF_COUNT_HW_CACHE_NODE},
	}
	cacheOps = []cacheName{
		{"load", unix.PERF_COUNT_HW_CACHE_OP_READ},
		{"loads", unix.PERF_COUNT_HW_CACHE_OP_READ},
		{"read", unix.PERF_COUNT_HW_CACHE_OP_READ},
		{"store", unix.PERF_COUNT_HW_CACHE_OP_WRITE},
		{"stores", unix.PERF_COUNT_HW_CACHE_OP_WRITE},
		{"write", unix.PERF_COUNT_HW_CACHE_OP_WRITE},
		{"prefetch", unix.PERF_COUNT_HW_CACHE_OP_PREFETCH},
		{"prefetches", unix.PERF_COUNT_HW_CACHE_OP_PREFETCH},
		{"speculative-read", unix.PERF_COUNT_HW_CACHE_OP_PREFETCH},
		{"speculative-load", unix.PERF_COUNT_HW_CACHE_OP_PREFETCH},
	}
	cacheResults = []cacheName{
		{"refs", unix.PERF_COUNT_HW_CACHE_RESULT_ACCESS},
		{"Reference", unix.PERF_COUNT_HW_CACHE_RESULT_ACCESS},
		{"ops", unix.PERF_COUNT_HW_CACHE_RESULT_ACCESS},
		{"access", unix.PERF_COUNT_HW_CACHE_RESULT_ACCESS},
		{"misses", unix.PERF_COUNT_HW_CACHE_RESULT_MISS},
		{"miss", unix.PERF_COUNT_HW_CACHE_RESULT_MISS},
	}
)

// cacheAllowedOps maps each cache level to the bitmap of operations the
// kernel actually implements for it.
var cacheAllowedOps = func() map[uint64]uint8 {
	r := uint8(1) << unix.PERF_COUNT_HW_CACHE_OP_READ
	w := uint8(1) << unix.PERF_COUNT_HW_CACHE_OP_WRITE
	p := uint8(1) << unix.PERF_COUNT_HW_CACHE_OP_PREFETCH
	return map[uint64]uint8{
		unix.PERF_COUNT_HW_CACHE_L1D:  r | w | p,
		unix.PERF_COUNT_HW_CACHE_L1I:  r | p,
		unix.PERF_COUNT_HW_CACHE_LL:   r | w | p,
		unix.PERF_COUNT_HW_CACHE_DTLB: r | w | p,
		unix.PERF_COUNT_HW_CACHE_ITLB: r,
		unix.PERF_COUNT_HW_CACHE_BPU:  r,
		unix.PERF_COUNT_HW_CACHE_NODE: r | w | p,
	}
}()

func init() {
	// Match longer component names first so that, e.g., "l1-d" is not
	// claimed by a shorter prefix.
	byLen := func(names []cacheName) {
		sort.SliceStable(names, func(i, j int) bool {
			return len(names[i].name) > len(names[j].name)
		})
	}
	byLen(cacheLevels)
	byLen(cacheOps)
	byLen(cacheResults)
}

// lookupBuiltin resolves a builtin event name under the given PMU name
// (which may be empty). All builtin events live either under no PMU or
// under cpu/.
func lookupBuiltin(pmu, name string) (builtinEvent, bool) {
	if pmu != "" && pmu != "cpu" {
		return builtinEvent{}, false
	}

	if config, ok := hardwareByName[name]; ok {
		return builtinEvent{unix.PERF_TYPE_HARDWARE, config}, true
	}

	// Software events are only accepted without a PMU name.
	if pmu == "" {
		if config, ok := softwareByName[name]; ok {
			return builtinEvent{unix.PERF_TYPE_SOFTWARE, config}, true
		}
	}

	return lookupCacheEvent(name)
}

// lookupCacheEvent parses legacy cache event names of the form
// level[-op][-result], such as "LLC-load-misses". See
// parse-events.c:parse_events__decode_legacy_cache.
func lookupCacheEvent(name string) (builtinEvent, bool) {
	match := func(s string, names []cacheName) (uint64, string, bool) {
		for _, cn := range names {
			if s == cn.name {
				return cn.config, "", true
			}
			if len(s) > len(cn.name) && s[:len(cn.name)] == cn.name && s[len(cn.name)] == '-' {
				return cn.config, s[len(cn.name)+1:], true
			}
		}
		return 0, "", false
	}

	level, rest, ok := match(name, cacheLevels)
	if !ok {
		return builtinEvent{}, false
	}

	// Up to two more fields, an operation and a result, in either
	// order. Missing fields default to read accesses.
	op := uint64(unix.PERF_COUNT_HW_CACHE_OP_READ)
	result := uint64(unix.PERF_COUNT_HW_CACHE_RESULT_ACCESS)
	var haveOp, haveResult bool
	for i := 0; i < 2 && rest != ""; i++ {
		if !haveOp {
			if v, s, ok := match(rest, cacheOps); ok {
				op, rest, haveOp = v, s, true
				continue
			}
		}
		if !haveResult {
			if v, s, ok := match(rest, cacheResults); ok {
				result, rest, haveResult = v, s, true
				continue
			}
		}
		break
	}
	if rest != "" {
		return builtinEvent{}, false
	}
	if cacheAllowedOps[level]&(1<<op) == 0 {
		return builtinEvent{}, false
	}

	config := level | op<<8 | result<<16
	return builtinEvent{unix.PERF_TYPE_HW_CACHE, config}, true
}

// builtinNames returns the canonical hardware and software event names.
func builtinNames() (hardware, software []string) {
	canon := func(table []namedConfig) []string {
		names := make([]string, len(table))
		for i, nc := range table {
			names[i] = nc.names[0]
		}
		sort.Strings(names)
		return names
	}
	return canon(hardwareTable), canon(softwareTable)
}
