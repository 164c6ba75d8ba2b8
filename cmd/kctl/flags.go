package main

import (
	"context"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/viant/kcore"
)

// Flags holds command line settings
type Flags struct {
	ShowHelp    bool
	ConfigURL   string
	CPUs        int
	Permissive  bool
	Tick        time.Duration
	Workers     int
	Warmup      int64
	Duration    time.Duration
	Output      string
	Trace       bool
	TraceOutput string
}

// SetFlags registers every flag on fs
func (f *Flags) SetFlags(fs *flag.FlagSet) {
	fs.BoolVarP(&f.ShowHelp, "help", "h", false, "display this message and exit")
	fs.StringVar(&f.ConfigURL, "config", "", "kernel configuration URL (YAML)")
	fs.IntVar(&f.CPUs, "cpus", 2, "number of simulated CPUs")
	fs.BoolVar(&f.Permissive, "permissive", false, "apply negative BJF ratios with a warning instead of rejecting them")
	fs.DurationVar(&f.Tick, "tick", 10*time.Millisecond, "timer interrupt period")
	fs.IntVar(&f.Workers, "workers", 5, "number of demo worker processes")
	fs.Int64Var(&f.Warmup, "warmup", 20, "ticks the demo workload runs before the command")
	fs.DurationVar(&f.Duration, "duration", 2*time.Second, "how long the events command listens")
	fs.StringVar(&f.Output, "output", "", "write the process table to this URL instead of the console (info)")
	fs.BoolVar(&f.Trace, "trace", false, "trace system calls")
	fs.StringVar(&f.TraceOutput, "trace-output", "", "trace file, stdout when empty")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: kctl [options] <command> [args]\n")
		fmt.Fprintf(os.Stderr, "    Available commands: info, change_queue, set_bjf_process, set_bjf_system, top, events\n")
		fmt.Fprintf(os.Stderr, "    Available options:\n")
		fs.PrintDefaults()
	}
}

// Config resolves kernel configuration; explicitly set flags override the loaded file.
func (f *Flags) Config(ctx context.Context, fs *flag.FlagSet) (*kcore.Config, error) {
	config := kcore.DefaultConfig()
	if f.ConfigURL != "" {
		var err error
		if config, err = kcore.LoadConfig(ctx, f.ConfigURL); err != nil {
			return nil, err
		}
	}
	if f.ConfigURL == "" || fs.Changed("cpus") {
		config.Scheduler.CPUs = f.CPUs
	}
	if f.ConfigURL == "" || fs.Changed("tick") {
		config.Scheduler.TickInterval = f.Tick
	}
	if f.Permissive {
		config.Validation = kcore.ValidationPermissive
	}
	if f.Trace {
		config.Tracing.Enabled = true
		config.Tracing.Output = f.TraceOutput
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
