package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/kcore"
	"github.com/viant/kcore/runtime/proc"
	"github.com/viant/kcore/service/ptable"
)

// procInfo implements the proc_info program
type procInfo struct {
	out    io.Writer
	fs     afs.Service
	table  *ptable.Service
	output string
}

func help(w io.Writer) {
	fmt.Fprint(w, "usage: command <inputs>\n")
	fmt.Fprint(w, "list of commands:\n")
	fmt.Fprint(w, "    info\n")
	fmt.Fprint(w, "    change_queue <pid> <new_queue>\n")
	fmt.Fprint(w, "    set_bjf_process <pid> <priority_ratio> <arrival_time_ratio> <executed_cycles_ratio> <process_size_ratio>\n")
	fmt.Fprint(w, "    set_bjf_system <priority_ratio> <arrival_time_ratio> <executed_cycles_ratio> <process_size_ratio>\n")
}

// program returns the proc_info image for args
func (c *procInfo) program(args []string) kcore.Program {
	return func(sys *kcore.Sys) {
		c.run(sys, args)
	}
}

func (c *procInfo) run(sys *kcore.Sys, args []string) {
	if len(args) == 0 {
		help(c.out)
		return
	}
	switch {
	case args[0] == "info" && len(args) == 1:
		c.info(sys)
	case args[0] == "change_queue" && len(args) == 3:
		c.changeQueue(sys, atoi(args[1]), args[2])
	case args[0] == "set_bjf_process" && len(args) == 6:
		ratios, ok := parseRatios(args[2:])
		if !ok {
			help(c.out)
			return
		}
		c.setProcessRatios(sys, atoi(args[1]), ratios)
	case args[0] == "set_bjf_system" && len(args) == 5:
		ratios, ok := parseRatios(args[1:])
		if !ok {
			help(c.out)
			return
		}
		c.setSystemRatios(sys, ratios)
	default:
		help(c.out)
	}
}

func (c *procInfo) info(sys *kcore.Sys) {
	if c.output == "" {
		if err := sys.PrintProcessTable(); err != nil {
			fmt.Fprintf(c.out, "failed to print process table: %v\n", err)
		}
		return
	}
	buffer := &bytes.Buffer{}
	if err := c.table.WriteTable(buffer); err != nil {
		fmt.Fprintf(c.out, "failed to print process table: %v\n", err)
		return
	}
	if err := c.fs.Upload(context.Background(), c.output, file.DefaultFileOsMode, buffer); err != nil {
		fmt.Fprintf(c.out, "failed to write process table to %v: %v\n", c.output, err)
		return
	}
	fmt.Fprintf(c.out, "process table written to %v\n", c.output)
}

func (c *procInfo) changeQueue(sys *kcore.Sys, pid int, value string) {
	if pid < 1 {
		fmt.Fprint(c.out, "pid cannot be less than 1\n")
	}
	q, ok := proc.ParseQueue(value)
	if !ok || q < proc.RoundRobin || q > proc.BJF {
		fmt.Fprint(c.out, "new queue number should be in range [1, 3]\n")
		if !ok {
			q = proc.Queue(-1)
		}
	}
	prev, err := sys.ChangeQueue(pid, q)
	if err != nil || prev < proc.RoundRobin {
		fmt.Fprint(c.out, "error in changing queue\n")
		return
	}
	fmt.Fprintf(c.out, "your process with id %d has changed queue from: %d -> %d\n", pid, int(prev), int(q))
}

func (c *procInfo) setProcessRatios(sys *kcore.Sys, pid int, ratios proc.Ratios) {
	if pid < 1 {
		fmt.Fprint(c.out, "pid cannot be less than 1\n")
	}
	if ratios.Validate() != nil {
		fmt.Fprint(c.out, "ratios can not be less than 0\n")
	}
	if err := sys.SetProcessRankRatios(pid, ratios); err != nil {
		fmt.Fprint(c.out, "error in setting bjf process parameters\n")
		return
	}
	fmt.Fprintf(c.out, "the process with id %d has changed bjf parameters successfully\n", pid)
}

func (c *procInfo) setSystemRatios(sys *kcore.Sys, ratios proc.Ratios) {
	if ratios.Validate() != nil {
		fmt.Fprint(c.out, "ratios can not be less than 0\n")
	}
	if err := sys.SetSystemRankRatios(ratios); err != nil {
		fmt.Fprint(c.out, "error in setting bjf system parameters\n")
		return
	}
	fmt.Fprint(c.out, "bjf parameters for system has changed successfully\n")
}

// atoi parses a decimal integer; malformed input yields 0
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func parseRatios(args []string) (proc.Ratios, bool) {
	if len(args) != 4 {
		return proc.Ratios{}, false
	}
	var values [4]float64
	for i, arg := range args {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return proc.Ratios{}, false
		}
		values[i] = v
	}
	return proc.Ratios{Priority: values[0], ArrivalTime: values[1], ExecutedCycle: values[2], ProcessSize: values[3]}, true
}
