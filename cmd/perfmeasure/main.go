// Copyright 2025 The go-perfmeasure Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

// Perfmeasure inspects and exercises hardware performance counters.
//
// It is a thin shell around the measure and events packages: it
// translates textual event selectors, probes whether the kernel will
// grant a counter for them, and can measure a small deterministic
// workload to sanity-check a counter before wiring it into a benchmark.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/benchkit/go-perfmeasure/events"
	"github.com/benchkit/go-perfmeasure/measure"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "perfmeasure",
		Short:         "inspect and exercise hardware performance counters",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newListCmd(), newCheckCmd(), newRunCmd())
	return root
}

func newListCmd() *cobra.Command {
	var setsFile string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "list builtin event names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hw, sw := events.BuiltinNames()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Hardware events:")
			for _, name := range hw {
				fmt.Fprintf(out, "  %s\n", name)
			}
			fmt.Fprintln(out, "Software events:")
			for _, name := range sw {
				fmt.Fprintf(out, "  %s\n", name)
			}

			if setsFile == "" {
				return nil
			}
			sets, err := loadEventSets(setsFile)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(sets))
			for name := range sets {
				names = append(names, name)
			}
			sort.Strings(names)
			fmt.Fprintf(out, "Event sets (%s):\n", setsFile)
			for _, name := range names {
				fmt.Fprintf(out, "  %s: %v\n", name, sets[name])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&setsFile, "sets", "", "YAML file of named event sets")
	return cmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <event>...",
		Short: "check whether events can be opened as counters",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			var failed bool
			for _, sel := range args {
				c, err := measure.OpenSelector(sel)
				if err != nil {
					fmt.Fprintf(out, "%s: %v\n", sel, err)
					failed = true
					continue
				}
				c.Close()
				fmt.Fprintf(out, "%s: ok\n", sel)
			}
			if failed {
				return fmt.Errorf("some events are unavailable")
			}
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	var (
		iters    int
		bufBytes uint64
		per      string
		setName  string
		setsFile string
	)
	cmd := &cobra.Command{
		Use:   "run [<event>...]",
		Short: "measure a deterministic workload under the given events",
		Long: `Run measures a fixed workload (a linear walk over a byte buffer)
under each given event, accumulating the counts of --iters batches the
way a benchmark harness would, and prints the formatted reading.

Events are measured one at a time; a session holds exactly one counter.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			selectors := args
			if setName != "" {
				if setsFile == "" {
					return fmt.Errorf("--set requires --sets")
				}
				sets, err := loadEventSets(setsFile)
				if err != nil {
					return err
				}
				set, ok := sets[setName]
				if !ok {
					return fmt.Errorf("no event set %q in %s", setName, setsFile)
				}
				selectors = append(set, selectors...)
			}
			if len(selectors) == 0 {
				return fmt.Errorf("no events given")
			}

			var tp measure.Throughput
			switch per {
			case "":
			case "byte":
				tp = measure.PerByte(bufBytes * uint64(iters))
			case "element":
				tp = measure.PerElement(uint64(iters))
			default:
				return fmt.Errorf("unknown --per unit %q (want byte or element)", per)
			}

			out := cmd.OutOrStdout()
			buf := make([]byte, bufBytes)
			for i := range buf {
				buf[i] = byte(i)
			}
			for _, sel := range selectors {
				c, err := measure.OpenSelector(sel)
				if err != nil {
					return err
				}
				total := c.Zero()
				for i := 0; i < iters; i++ {
					batch := c.Start()
					walkSink += walk(buf)
					total = c.Add(total, c.End(batch))
				}
				c.Close()
				fmt.Fprintf(out, "%s\n", c.FormattedValue(total, tp))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&iters, "iters", 3, "iteration batches to accumulate")
	cmd.Flags().Uint64Var(&bufBytes, "bytes", 1<<20, "workload buffer size")
	cmd.Flags().StringVar(&per, "per", "", "report per \"byte\" or \"element\" of input")
	cmd.Flags().StringVar(&setName, "set", "", "measure a named event set")
	cmd.Flags().StringVar(&setsFile, "sets", "", "YAML file of named event sets")
	return cmd
}

// walkSink keeps the compiler from removing the workload.
var walkSink uint64

func walk(buf []byte) uint64 {
	var sum uint64
	for _, b := range buf {
		sum += uint64(b)
	}
	return sum
}
